package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	iauth "github.com/retroludo/retrodex/internal/auth"
	"github.com/retroludo/retrodex/internal/database/testutil"
	"github.com/retroludo/retrodex/internal/middleware"
	"github.com/retroludo/retrodex/internal/models"
	"github.com/retroludo/retrodex/internal/services"
)

func newAuthFixture(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	users, err := services.NewUserService(db)
	require.NoError(t, err)
	sessions, err := services.NewSessionService(db)
	require.NoError(t, err)
	jwt, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "test-secret"})
	require.NoError(t, err)

	_, err = users.Create(context.Background(), services.CreateUserInput{
		Username: "curator",
		Email:    "curator@example.org",
		Password: "correct horse",
		Role:     models.RoleEditor,
	})
	require.NoError(t, err)

	handler, err := NewAuthHandler(users, sessions, jwt)
	require.NoError(t, err)

	r := gin.New()
	r.POST("/api/auth/login", handler.Login)
	protected := r.Group("/api/auth", middleware.Auth(jwt))
	protected.GET("/me", handler.Me)
	protected.POST("/logout", handler.Logout)
	return r
}

func postJSON(r *gin.Engine, path, payload, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLoginIssuesTokenAndSession(t *testing.T) {
	r := newAuthFixture(t)

	w := postJSON(r, "/api/auth/login", `{"username":"curator","password":"correct horse"}`, "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data struct {
			AccessToken string `json:"access_token"`
			User        struct {
				Username string `json:"username"`
				Role     string `json:"role"`
			} `json:"user"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.Data.AccessToken)
	require.Equal(t, "curator", body.Data.User.Username)
	require.Equal(t, models.RoleEditor, body.Data.User.Role)

	// The issued token works against the protected surface.
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+body.Data.AccessToken)
	me := httptest.NewRecorder()
	r.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code)
	require.Contains(t, me.Body.String(), "curator")
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	r := newAuthFixture(t)

	w := postJSON(r, "/api/auth/login", `{"username":"curator","password":"wrong"}`, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = postJSON(r, "/api/auth/login", `{"username":"ghost","password":"whatever"}`, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = postJSON(r, "/api/auth/login", `{"username":""}`, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogoutRevokesSession(t *testing.T) {
	r := newAuthFixture(t)

	w := postJSON(r, "/api/auth/login", `{"username":"curator","password":"correct horse"}`, "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	require.Equal(t, http.StatusOK, postJSON(r, "/api/auth/logout", `{}`, body.Data.AccessToken).Code)
	// Second logout finds the session already revoked.
	require.Equal(t, http.StatusUnauthorized, postJSON(r, "/api/auth/logout", `{}`, body.Data.AccessToken).Code)
}
