package dto

import "imgshare-backend/internal/models"

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type MeResponse struct {
	User  models.PublicUser `json:"user"`
	Quota models.Quota      `json:"quota"`
}
