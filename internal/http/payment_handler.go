package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"educamp/internal/domain"
	"educamp/internal/service"
)

// PaymentHandler expone la captura y confirmacion de pagos.
type PaymentHandler struct {
	logger   *zap.Logger
	payments *service.PaymentService
	verifier *service.CallbackVerifier
	now      func() time.Time
}

func NewPaymentHandler(logger *zap.Logger, payments *service.PaymentService, verifier *service.CallbackVerifier) *PaymentHandler {
	return &PaymentHandler{logger: logger, payments: payments, verifier: verifier, now: time.Now}
}

// Capture maneja POST /api/payments/capture/:orderId.
func (h *PaymentHandler) Capture(c *gin.Context) {
	p, ok := GetPrincipal(c)
	if !ok {
		abortUnauthenticated(c)
		return
	}
	e, err := h.payments.CaptureAndEnroll(c.Request.Context(), p.UserID, c.Param("orderId"))
	if err != nil {
		respondError(c, h.logger, err, "capture payment")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Payment captured",
		"enrollment": domain.NewEnrollmentView(e, h.now()),
	})
}

// Confirm maneja POST /api/payments/confirm/:id.
func (h *PaymentHandler) Confirm(c *gin.Context) {
	p, ok := GetPrincipal(c)
	if !ok {
		abortUnauthenticated(c)
		return
	}
	e, err := h.payments.ConfirmAndEnroll(c.Request.Context(), p.UserID, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err, "confirm payment")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"message":    "Enrollment confirmed",
		"enrollment": domain.NewEnrollmentView(e, h.now()),
	})
}

// Callback maneja POST /api/payments/callback, firmado por el subsistema de pagos.
func (h *PaymentHandler) Callback(c *gin.Context) {
	var req struct {
		Token string `json:"token"`
	}
	_ = c.ShouldBindJSON(&req)
	token := strings.TrimSpace(req.Token)
	if token == "" {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if strings.HasPrefix(strings.ToLower(header), "bearer ") {
			token = strings.TrimSpace(header[len("bearer "):])
		}
	}

	event, err := h.verifier.Verify(token)
	if err != nil {
		h.logger.Warn("payment callback rejected", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid callback signature"})
		return
	}

	e, err := h.payments.HandleCapturedEvent(c.Request.Context(), event)
	if err != nil {
		respondError(c, h.logger, err, "payment callback")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "enrollment_id": e.ID})
}
