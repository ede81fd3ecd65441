package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"imgshare-backend/internal/dto"
	"imgshare-backend/internal/models"
	"imgshare-backend/internal/services"
	"imgshare-backend/utils/response"
)

// UserHandler serves the admin-only account endpoints; RequireAdmin runs
// in front of every route here.
type UserHandler struct {
	users      *services.UserService
	defaultMax int
}

func NewUserHandler(users *services.UserService, defaultMax int) *UserHandler {
	return &UserHandler{users: users, defaultMax: defaultMax}
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListWithQuotas(r.Context())
	if err != nil {
		response.Error(w, http.StatusServiceUnavailable, response.CodeStorageUnavailable, "Storage unavailable")
		return
	}

	response.JSON(w, http.StatusOK, response.SuccessResponse{
		Success: true,
		Data:    map[string][]services.UserWithQuota{"users": users},
	})
}

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.CodeBadRequest, "Invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		response.Error(w, http.StatusBadRequest, response.CodeBadRequest, "Username and password are required")
		return
	}

	maxImages := h.defaultMax
	if req.MaxImages != nil && *req.MaxImages >= 0 {
		maxImages = *req.MaxImages
	}

	user, quota, err := h.users.Create(r.Context(), req.Username, req.Password, maxImages)
	if err != nil {
		if errors.Is(err, services.ErrUserExists) {
			response.Error(w, http.StatusBadRequest, response.CodeBadRequest, "User already exists")
			return
		}
		response.Error(w, http.StatusServiceUnavailable, response.CodeStorageUnavailable, "Storage unavailable")
		return
	}

	response.JSON(w, http.StatusCreated, response.SuccessResponse{
		Success: true,
		Data: struct {
			User  models.PublicUser `json:"user"`
			Quota models.Quota      `json:"quota"`
		}{User: user.Public(), Quota: quota},
		Message: "User created successfully",
	})
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	if username == "" {
		response.Error(w, http.StatusBadRequest, response.CodeBadRequest, "'username' not present in path")
		return
	}

	removed, err := h.users.Delete(r.Context(), username)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAdminImmutable):
			response.Error(w, http.StatusBadRequest, response.CodeBadRequest, "Cannot delete admin user")
		case errors.Is(err, services.ErrUserNotFound):
			response.Error(w, http.StatusNotFound, response.CodeNotFound, "User not found")
		default:
			response.Error(w, http.StatusServiceUnavailable, response.CodeStorageUnavailable, "Storage unavailable")
		}
		return
	}

	response.JSON(w, http.StatusOK, response.SuccessResponse{
		Success: true,
		Data:    dto.DeleteUserResponse{Removed: removed},
		Message: "User deleted successfully",
	})
}
