package dto

import "imgshare-backend/internal/models"

type FileListResponse struct {
	Files  []models.FileRecord `json:"files"`
	Viewer string              `json:"viewer"`
}

type UploadResponse struct {
	Record models.FileRecord `json:"record"`
	Quota  models.Quota      `json:"quota"`
}

type EventListResponse struct {
	Events []models.UploadEvent `json:"events"`
}
