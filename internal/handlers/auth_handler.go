package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"imgshare-backend/internal/dto"
	"imgshare-backend/internal/middleware"
	"imgshare-backend/internal/services"
	"imgshare-backend/internal/store"
	"imgshare-backend/internal/token"
	"imgshare-backend/utils/response"
)

type CookieConfig struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

type AuthHandler struct {
	auth   *services.AuthService
	quotas *store.QuotaLedger
	codec  *token.Codec
	cookie CookieConfig
}

func NewAuthHandler(auth *services.AuthService, quotas *store.QuotaLedger, codec *token.Codec, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{auth: auth, quotas: quotas, codec: codec, cookie: cookie}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.CodeBadRequest, "Invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		response.Error(w, http.StatusBadRequest, response.CodeBadRequest, "Username and password are required")
		return
	}

	user, err := h.auth.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			response.Error(w, http.StatusUnauthorized, response.CodeUnauthenticated, "Invalid credentials")
			return
		}
		response.Error(w, http.StatusServiceUnavailable, response.CodeStorageUnavailable, "Storage unavailable")
		return
	}

	tok, err := h.codec.Issue(user.Username, user.Role, h.cookie.TTL)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, response.CodeBadRequest, "Failed to issue session")
		return
	}

	quota, err := h.quotas.Get(r.Context(), user.Username)
	if err != nil {
		response.Error(w, http.StatusServiceUnavailable, response.CodeStorageUnavailable, "Storage unavailable")
		return
	}

	h.setCookie(w, tok, int(h.cookie.TTL.Seconds()))
	response.JSON(w, http.StatusOK, response.SuccessResponse{
		Success: true,
		Data:    dto.MeResponse{User: user.Public(), Quota: quota},
		Message: "Logged in successfully",
	})
}

// Logout clears the cookie. Tokens cannot be revoked server-side, so this
// is all logout ever does.
func (h *AuthHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	h.setCookie(w, "", -1)
	response.JSON(w, http.StatusOK, response.SuccessResponse{
		Success: true,
		Message: "Logged out",
	})
}

func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())
	if session == nil {
		response.Error(w, http.StatusUnauthorized, response.CodeUnauthenticated, "Not authenticated")
		return
	}

	user, err := h.auth.GetUser(r.Context(), session.Username)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			// Deleted since the token was issued.
			response.Error(w, http.StatusUnauthorized, response.CodeUnauthenticated, "Not authenticated")
			return
		}
		response.Error(w, http.StatusServiceUnavailable, response.CodeStorageUnavailable, "Storage unavailable")
		return
	}

	quota, err := h.quotas.Get(r.Context(), user.Username)
	if err != nil {
		response.Error(w, http.StatusServiceUnavailable, response.CodeStorageUnavailable, "Storage unavailable")
		return
	}

	response.JSON(w, http.StatusOK, response.SuccessResponse{
		Success: true,
		Data:    dto.MeResponse{User: user.Public(), Quota: quota},
	})
}

func (h *AuthHandler) setCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}
