package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"educamp/internal/service"
)

// CookieConfig controla los atributos de la cookie de sesion.
type CookieConfig struct {
	Secure bool
	Domain string
	MaxAge time.Duration
}

func (cfg CookieConfig) withDefaults() CookieConfig {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 24 * time.Hour
	}
	return cfg
}

func (cfg CookieConfig) maxAgeSeconds() int {
	return int(cfg.MaxAge.Seconds())
}

// set escribe la cookie de sesion; maxAge negativo la borra.
func (cfg CookieConfig) set(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, value, maxAge, "/", cfg.Domain, cfg.Secure, true)
}

// AuthHandler mantiene dependencias para endpoints de autenticacion.
type AuthHandler struct {
	logger *zap.Logger
	auth   *service.AuthService
	cookie CookieConfig
}

func NewAuthHandler(logger *zap.Logger, auth *service.AuthService, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{logger: logger, auth: auth, cookie: cookie.withDefaults()}
}

// Login maneja POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "email and password are required"})
		return
	}

	sess, err := h.auth.Login(c.Request.Context(), req.Email, req.Password, c.ClientIP())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid email or password"})
		case errors.Is(err, service.ErrAccountDisabled):
			c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "account is deactivated"})
		case errors.Is(err, service.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"success": false, "message": "too many login attempts"})
		default:
			h.logger.Error("login failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal error"})
		}
		return
	}

	h.cookie.set(c, sess.Token, h.cookie.maxAgeSeconds())
	c.Header(SessionHeaderName, sess.Token)
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Login successful",
		"user":       sess.Principal,
		"expires_at": sess.ExpiresAt,
	})
}

// Logout maneja POST /api/auth/logout. Es idempotente.
func (h *AuthHandler) Logout(c *gin.Context) {
	if token := SessionToken(c); token != "" {
		h.auth.Logout(token)
	}
	h.cookie.set(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out"})
}

// LogoutAll maneja POST /api/auth/logout-all.
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	p, ok := GetPrincipal(c)
	if !ok {
		abortUnauthenticated(c)
		return
	}
	n := h.auth.LogoutEverywhere(p.UserID)
	h.cookie.set(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out everywhere", "sessions": n})
}

// Me maneja GET /api/auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	p, ok := GetPrincipal(c)
	if !ok {
		abortUnauthenticated(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Authenticated", "user": p})
}
