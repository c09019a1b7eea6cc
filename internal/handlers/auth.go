package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	iauth "github.com/retroludo/retrodex/internal/auth"
	"github.com/retroludo/retrodex/internal/middleware"
	"github.com/retroludo/retrodex/internal/services"
	appErrors "github.com/retroludo/retrodex/pkg/errors"
	"github.com/retroludo/retrodex/pkg/metrics"
	"github.com/retroludo/retrodex/pkg/response"
)

// AuthHandler manages the login/logout/me flows.
type AuthHandler struct {
	users    *services.UserService
	sessions *services.SessionService
	jwt      *iauth.JWTService
}

func NewAuthHandler(users *services.UserService, sessions *services.SessionService, jwt *iauth.JWTService) (*AuthHandler, error) {
	if users == nil || sessions == nil || jwt == nil {
		return nil, errors.New("auth handler: users, sessions and jwt are required")
	}
	return &AuthHandler{users: users, sessions: sessions, jwt: jwt}, nil
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		response.Error(c, appErrors.ErrInvalidCredentials)
		return
	}

	// The token embeds the session id, so the id is fixed before insertion.
	sessionID := uuid.NewString()
	token, err := h.jwt.GenerateAccessToken(iauth.AccessTokenInput{
		UserID:    user.ID,
		SessionID: sessionID,
		Role:      user.Role,
	})
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	if _, err := h.sessions.Create(c.Request.Context(), services.CreateSessionInput{
		ID:       sessionID,
		UserID:   user.ID,
		Token:    token,
		ClientIP: c.ClientIP(),
	}); err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()

	response.Success(c, http.StatusOK, gin.H{
		"access_token": token,
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"email":    user.Email,
			"role":     user.Role,
		},
	})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	user, err := h.users.Get(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	response.Success(c, http.StatusOK, user)
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	sessionID := c.GetString(middleware.CtxSessionIDKey)
	if sessionID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.sessions.Revoke(c.Request.Context(), sessionID); err != nil {
		if errors.Is(err, services.ErrSessionNotFound) {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"logged_out": true})
}
