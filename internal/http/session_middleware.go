package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"educamp/internal/domain"
)

const (
	SessionCookieName = "sessionId"
	SessionHeaderName = "X-Session-Id"

	principalKey    = "auth_principal"
	sessionTokenKey = "auth_session_token"
)

// SessionValidator resuelve un token de sesion; lo implementa session.Registry.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (domain.Principal, error)
}

// SessionAuthMiddleware exige una sesion valida y guarda el principal en el contexto.
// El mensaje de rechazo es siempre el mismo para no revelar que parte fallo.
// Si el token llego por cookie, la reemite con Max-Age completo para que el
// navegador acompane la expiracion deslizante del servidor.
func SessionAuthMiddleware(sessions SessionValidator, logger *zap.Logger, cookie CookieConfig) gin.HandlerFunc {
	cookie = cookie.withDefaults()
	return func(c *gin.Context) {
		if sessions == nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": "sessions not configured"})
			return
		}

		token, fromCookie := sessionTokenFrom(c)
		if token == "" {
			abortUnauthenticated(c)
			return
		}

		principal, err := sessions.Validate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, domain.ErrUnauthenticated) {
				abortUnauthenticated(c)
				return
			}
			logger.Error("session validation failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal error"})
			return
		}

		if fromCookie {
			cookie.set(c, token, cookie.maxAgeSeconds())
		}
		c.Set(principalKey, principal)
		c.Set(sessionTokenKey, token)
		c.Next()
	}
}

func abortUnauthenticated(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid or expired session"})
}

// SessionToken extrae el token en orden: cookie, Authorization Bearer, X-Session-Id.
func SessionToken(c *gin.Context) string {
	token, _ := sessionTokenFrom(c)
	return token
}

func sessionTokenFrom(c *gin.Context) (string, bool) {
	if cookie, err := c.Cookie(SessionCookieName); err == nil && strings.TrimSpace(cookie) != "" {
		return strings.TrimSpace(cookie), true
	}
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) > len("bearer ") && strings.EqualFold(header[:len("bearer ")], "bearer ") {
		if token := strings.TrimSpace(header[len("bearer "):]); token != "" {
			return token, false
		}
	}
	return strings.TrimSpace(c.GetHeader(SessionHeaderName)), false
}

// GetPrincipal obtiene el principal autenticado desde el contexto.
func GetPrincipal(c *gin.Context) (domain.Principal, bool) {
	val, ok := c.Get(principalKey)
	if !ok {
		return domain.Principal{}, false
	}
	p, ok := val.(domain.Principal)
	return p, ok
}
