package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"imgshare-backend/internal/blobstore/localblob"
	"imgshare-backend/internal/kvstore/memorykv"
	"imgshare-backend/internal/middleware"
	"imgshare-backend/internal/services"
	"imgshare-backend/internal/store"
	"imgshare-backend/internal/token"
)

const testMaxBytes = 1 << 20

type testApp struct {
	handler http.Handler
	auth    *services.AuthService
	quotas  *store.QuotaLedger
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	kv := memorykv.New()
	blobs := localblob.New(t.TempDir())
	codec := token.NewCodec("test-secret")
	log := zap.NewNop()

	quotas := store.NewQuotaLedger(kv, 10)
	records := store.NewRecordStore(kv)
	auth := services.NewAuthService(kv)

	uploads := services.NewUploadService(blobs, records, quotas, services.UploadConfig{
		NodeID:       "node-test",
		MaxBytes:     testMaxBytes,
		AllowedMimes: []string{"image/png", "image/jpeg", "image/tiff"},
	}, log)
	files := services.NewFileService(blobs, records)
	users := services.NewUserService(auth, blobs, records, quotas, log)

	m := middleware.NewAuthMiddleware(codec, "r1-session", log)
	authHandler := NewAuthHandler(auth, quotas, codec, CookieConfig{
		Name: "r1-session",
		TTL:  24 * time.Hour,
	})

	return &testApp{
		handler: NewRouter(m, authHandler, NewFileHandler(files, uploads), NewUserHandler(users, 10)),
		auth:    auth,
		quotas:  quotas,
	}
}

func (a *testApp) do(t *testing.T, method, path string, body io.Reader, contentType string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, path, body)
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	for _, c := range cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, r)
	return w
}

func (a *testApp) login(t *testing.T, username, password string) []*http.Cookie {
	t.Helper()
	body := fmt.Sprintf(`{"username":%q,"password":%q}`, username, password)
	w := a.do(t, http.MethodPost, "/api/auth/login", strings.NewReader(body), "application/json", nil)
	require.Equal(t, http.StatusOK, w.Code, "login failed: %s", w.Body.String())

	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

func fileForm(t *testing.T, filename, mime string, content []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", mime)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return &buf, w.FormDataContentType()
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.True(t, envelope.Success)
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

func TestLoginSetsSessionCookie(t *testing.T) {
	app := newTestApp(t)
	_, err := app.auth.CreateUser(context.Background(), "alice", "hunter2", "user", 10)
	require.NoError(t, err)

	cookies := app.login(t, "alice", "hunter2")
	session := cookies[0]
	assert.Equal(t, "r1-session", session.Name)
	assert.True(t, session.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, session.SameSite)
	assert.Equal(t, "/", session.Path)
	assert.Equal(t, 86400, session.MaxAge)

	// The cookie identity round-trips through /api/auth/me.
	w := app.do(t, http.MethodGet, "/api/auth/me", nil, "", cookies)
	require.Equal(t, http.StatusOK, w.Code)

	var me struct {
		User struct {
			Username string `json:"username"`
			Role     string `json:"role"`
		} `json:"user"`
		Quota struct {
			Max  int `json:"max"`
			Used int `json:"used"`
		} `json:"quota"`
	}
	decodeData(t, w, &me)
	assert.Equal(t, "alice", me.User.Username)
	assert.Equal(t, "user", me.User.Role)
	assert.Equal(t, 10, me.Quota.Max)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	app := newTestApp(t)
	_, err := app.auth.CreateUser(context.Background(), "alice", "hunter2", "user", 10)
	require.NoError(t, err)

	body := strings.NewReader(`{"username":"alice","password":"wrong"}`)
	w := app.do(t, http.MethodPost, "/api/auth/login", body, "application/json", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "UNAUTHENTICATED")
}

func TestUploadListDownloadFlow(t *testing.T) {
	app := newTestApp(t)
	_, err := app.auth.CreateUser(context.Background(), "alice", "pw", "user", 10)
	require.NoError(t, err)
	cookies := app.login(t, "alice", "pw")

	content := []byte("fake png content")
	form, contentType := fileForm(t, "cat.png", "image/png", content)
	w := app.do(t, http.MethodPost, "/api/files", form, contentType, cookies)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var uploaded struct {
		Record struct {
			CID  string `json:"cid"`
			Mime string `json:"mime"`
		} `json:"record"`
		Quota struct {
			Used int `json:"used"`
		} `json:"quota"`
	}
	decodeData(t, w, &uploaded)
	require.NotEmpty(t, uploaded.Record.CID)
	assert.Equal(t, 1, uploaded.Quota.Used)

	// Listing shows the file with the viewer's name.
	w = app.do(t, http.MethodGet, "/api/files", nil, "", cookies)
	require.Equal(t, http.StatusOK, w.Code)
	var listing struct {
		Files []struct {
			CID   string `json:"cid"`
			Owner string `json:"owner"`
		} `json:"files"`
		Viewer string `json:"viewer"`
	}
	decodeData(t, w, &listing)
	require.Len(t, listing.Files, 1)
	assert.Equal(t, uploaded.Record.CID, listing.Files[0].CID)
	assert.Equal(t, "alice", listing.Viewer)

	// Download returns the original bytes with the stored mime.
	w = app.do(t, http.MethodGet, "/api/files/"+uploaded.Record.CID, nil, "", cookies)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, content, w.Body.Bytes())

	// The upload shows up in the events feed.
	w = app.do(t, http.MethodGet, "/api/events", nil, "", cookies)
	require.Equal(t, http.StatusOK, w.Code)
	var feed struct {
		Events []struct {
			Type string `json:"type"`
			User string `json:"user"`
		} `json:"events"`
	}
	decodeData(t, w, &feed)
	require.Len(t, feed.Events, 1)
	assert.Equal(t, "upload", feed.Events[0].Type)
	assert.Equal(t, "alice", feed.Events[0].User)
}

func TestUploadErrorMapping(t *testing.T) {
	app := newTestApp(t)
	_, err := app.auth.CreateUser(context.Background(), "alice", "pw", "user", 1)
	require.NoError(t, err)
	require.NoError(t, app.quotas.Reset(context.Background(), "alice", 1))
	cookies := app.login(t, "alice", "pw")

	t.Run("invalid file type", func(t *testing.T) {
		form, contentType := fileForm(t, "anim.gif", "image/gif", []byte("gif"))
		w := app.do(t, http.MethodPost, "/api/files", form, contentType, cookies)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_FILE_TYPE")
	})

	t.Run("file too large", func(t *testing.T) {
		form, contentType := fileForm(t, "big.png", "image/png",
			bytes.Repeat([]byte{1}, testMaxBytes+1))
		w := app.do(t, http.MethodPost, "/api/files", form, contentType, cookies)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Contains(t, w.Body.String(), "FILE_TOO_LARGE")
	})

	t.Run("no file field", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("note", "hello"))
		require.NoError(t, mw.Close())

		w := app.do(t, http.MethodPost, "/api/files", &buf, mw.FormDataContentType(), cookies)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "NO_FILE_RECEIVED")
	})

	t.Run("not multipart at all", func(t *testing.T) {
		w := app.do(t, http.MethodPost, "/api/files", strings.NewReader("{}"), "application/json", cookies)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("quota exceeded", func(t *testing.T) {
		form, contentType := fileForm(t, "one.png", "image/png", []byte("first"))
		w := app.do(t, http.MethodPost, "/api/files", form, contentType, cookies)
		require.Equal(t, http.StatusOK, w.Code)

		form, contentType = fileForm(t, "two.png", "image/png", []byte("second"))
		w = app.do(t, http.MethodPost, "/api/files", form, contentType, cookies)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "QUOTA_EXCEEDED")
	})
}

func TestAdminUserManagement(t *testing.T) {
	app := newTestApp(t)
	require.NoError(t, app.auth.EnsureAdmin(context.Background(), "admin-pw", 10))
	adminCookies := app.login(t, "admin", "admin-pw")

	// Create a user with an explicit quota.
	body := strings.NewReader(`{"username":"bob","password":"bob-pw","maxImages":3}`)
	w := app.do(t, http.MethodPost, "/api/users", body, "application/json", adminCookies)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		User  struct{ Username string }
		Quota struct{ Max int }
	}
	decodeData(t, w, &created)
	assert.Equal(t, "bob", created.User.Username)
	assert.Equal(t, 3, created.Quota.Max)

	// bob can log in but cannot manage users.
	bobCookies := app.login(t, "bob", "bob-pw")
	w = app.do(t, http.MethodGet, "/api/users", nil, "", bobCookies)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// bob uploads a file, then the admin deletes him.
	form, contentType := fileForm(t, "bobs.png", "image/png", []byte("bobs file"))
	w = app.do(t, http.MethodPost, "/api/files", form, contentType, bobCookies)
	require.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodDelete, "/api/users/bob", nil, "", adminCookies)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var deleted struct {
		Removed []string `json:"removed"`
	}
	decodeData(t, w, &deleted)
	assert.Len(t, deleted.Removed, 1)

	// bob is gone from the listing and cannot log in again.
	w = app.do(t, http.MethodGet, "/api/users", nil, "", adminCookies)
	require.Equal(t, http.StatusOK, w.Code)
	var userList struct {
		Users []struct {
			User struct{ Username string } `json:"user"`
		} `json:"users"`
	}
	decodeData(t, w, &userList)
	require.Len(t, userList.Users, 1)
	assert.Equal(t, "admin", userList.Users[0].User.Username)

	body = strings.NewReader(`{"username":"bob","password":"bob-pw"}`)
	w = app.do(t, http.MethodPost, "/api/auth/login", body, "application/json", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// bob's still-valid cookie no longer resolves to an account.
	w = app.do(t, http.MethodGet, "/api/auth/me", nil, "", bobCookies)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Deleting the admin is refused.
	w = app.do(t, http.MethodDelete, "/api/users/admin", nil, "", adminCookies)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogoutClearsCookie(t *testing.T) {
	app := newTestApp(t)
	_, err := app.auth.CreateUser(context.Background(), "alice", "pw", "user", 10)
	require.NoError(t, err)
	app.login(t, "alice", "pw")

	w := app.do(t, http.MethodPost, "/api/auth/logout", nil, "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
}
