package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"imgshare-backend/internal/blobstore"
	"imgshare-backend/internal/dto"
	"imgshare-backend/internal/middleware"
	"imgshare-backend/internal/services"
	"imgshare-backend/utils/response"
)

type FileHandler struct {
	files   *services.FileService
	uploads *services.UploadService
}

func NewFileHandler(files *services.FileService, uploads *services.UploadService) *FileHandler {
	return &FileHandler{files: files, uploads: uploads}
}

func (h *FileHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())
	if session == nil {
		response.Error(w, http.StatusUnauthorized, response.CodeUnauthenticated, "Not authenticated")
		return
	}

	files, err := h.files.List(r.Context())
	if err != nil {
		response.Error(w, http.StatusServiceUnavailable, response.CodeStorageUnavailable, "Storage unavailable")
		return
	}

	response.JSON(w, http.StatusOK, response.SuccessResponse{
		Success: true,
		Data:    dto.FileListResponse{Files: files, Viewer: session.Username},
	})
}

// UploadFile streams the multipart body straight into the blob store; the
// body is never buffered whole.
func (h *FileHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())
	if session == nil {
		response.Error(w, http.StatusUnauthorized, response.CodeUnauthenticated, "Not authenticated")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if !strings.Contains(contentType, "multipart/form-data") {
		response.Error(w, http.StatusBadRequest, response.CodeBadRequest, "Invalid content type")
		return
	}

	record, quota, err := h.uploads.Upload(r.Context(), session.Username, r.Body, contentType)
	if err != nil {
		writeUploadError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.SuccessResponse{
		Success: true,
		Data:    dto.UploadResponse{Record: record, Quota: quota},
		Message: "File uploaded successfully",
	})
}

func (h *FileHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	cid := r.PathValue("cid")
	if cid == "" {
		response.Error(w, http.StatusBadRequest, response.CodeBadRequest, "'cid' not present in path")
		return
	}

	rc, size, mime, err := h.files.Open(r.Context(), cid)
	if err != nil {
		if errors.Is(err, blobstore.ErrBlobNotFound) {
			response.Error(w, http.StatusNotFound, response.CodeNotFound, "File not found")
			return
		}
		response.Error(w, http.StatusBadGateway, response.CodeUploadFailed, "Failed to fetch file")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
	w.Header().Set("Cache-Control", "private, max-age=0")
	w.WriteHeader(http.StatusOK)
	io.Copy(w, rc)
}

func (h *FileHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.files.ListEvents(r.Context(), 50)
	if err != nil {
		response.Error(w, http.StatusServiceUnavailable, response.CodeStorageUnavailable, "Storage unavailable")
		return
	}

	response.JSON(w, http.StatusOK, response.SuccessResponse{
		Success: true,
		Data:    dto.EventListResponse{Events: events},
	})
}

func writeUploadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrQuotaExceeded):
		response.Error(w, http.StatusForbidden, response.CodeQuotaExceeded, "Quota exceeded")
	case errors.Is(err, services.ErrInvalidFileType):
		response.Error(w, http.StatusBadRequest, response.CodeInvalidFileType, "Invalid file type")
	case errors.Is(err, services.ErrFileTooLarge):
		response.Error(w, http.StatusRequestEntityTooLarge, response.CodeFileTooLarge, "File too large")
	case errors.Is(err, services.ErrNoFileReceived):
		response.Error(w, http.StatusBadRequest, response.CodeNoFileReceived, "No file received")
	case errors.Is(err, services.ErrUploadFailed):
		response.Error(w, http.StatusBadGateway, response.CodeUploadFailed, "Upload failed")
	default:
		response.Error(w, http.StatusServiceUnavailable, response.CodeStorageUnavailable, "Storage unavailable")
	}
}
