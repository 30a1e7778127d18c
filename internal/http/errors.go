package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"educamp/internal/domain"
)

// respondError traduce la taxonomia de dominio a HTTP. Los errores de
// infraestructura se registran y responden con un mensaje generico.
func respondError(c *gin.Context, logger *zap.Logger, err error, op string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidState):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrUnauthenticated):
		status = http.StatusUnauthorized
	}

	if status == http.StatusInternalServerError {
		logger.Error(op+" failed", zap.Error(err))
		c.JSON(status, gin.H{"success": false, "message": "internal error"})
		return
	}
	logger.Warn(op+" rejected", zap.Int("status", status), zap.Error(err))
	c.JSON(status, gin.H{"success": false, "message": err.Error()})
}
