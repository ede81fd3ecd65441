package handlers

import (
	"net/http"

	"imgshare-backend/internal/middleware"
)

// PublicPaths is the gate allow-list: everything else requires a session
// before any handler can touch storage.
var PublicPaths = []string{"/api/auth/login", "/api/auth/logout", "/login"}

// NewRouter assembles the full HTTP surface behind the session gate.
func NewRouter(m *middleware.AuthMiddleware, auth *AuthHandler, files *FileHandler, users *UserHandler) http.Handler {
	router := http.NewServeMux()

	router.HandleFunc("POST /api/auth/login", auth.Login)
	router.HandleFunc("POST /api/auth/logout", auth.Logout)
	router.Handle("GET /api/auth/me", m.RequireAuth(http.HandlerFunc(auth.GetMe)))

	router.Handle("GET /api/files", m.RequireAuth(http.HandlerFunc(files.ListFiles)))
	router.Handle("POST /api/files", m.RequireAuth(http.HandlerFunc(files.UploadFile)))
	router.Handle("GET /api/files/{cid}", m.RequireAuth(http.HandlerFunc(files.DownloadFile)))
	router.Handle("GET /api/events", m.RequireAuth(http.HandlerFunc(files.ListEvents)))

	router.Handle("GET /api/users", m.RequireAdmin(http.HandlerFunc(users.ListUsers)))
	router.Handle("POST /api/users", m.RequireAdmin(http.HandlerFunc(users.CreateUser)))
	router.Handle("DELETE /api/users/{username}", m.RequireAdmin(http.HandlerFunc(users.DeleteUser)))

	return m.Gate(PublicPaths, router)
}
