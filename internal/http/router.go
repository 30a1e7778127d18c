package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"educamp/internal/metrics"
)

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	sessions SessionValidator,
	authH *AuthHandler,
	paymentH *PaymentHandler,
	enrollmentH *EnrollmentHandler,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	requireSession := SessionAuthMiddleware(sessions, logger, authH.cookie)
	api := r.Group("/api", jsonContentTypeMiddleware())

	auth := api.Group("/auth")
	auth.POST("/login", authH.Login)
	auth.POST("/logout", authH.Logout)
	auth.GET("/me", requireSession, authH.Me)
	auth.POST("/logout-all", requireSession, authH.LogoutAll)

	payments := api.Group("/payments")
	payments.POST("/callback", paymentH.Callback)
	payments.POST("/capture/:orderId", requireSession, paymentH.Capture)
	payments.POST("/confirm/:id", requireSession, paymentH.Confirm)

	enrollments := api.Group("/enrollments", requireSession)
	enrollments.GET("/me", enrollmentH.Mine)
	enrollments.GET("/class/:classId", enrollmentH.ByClass)
	enrollments.GET("/:id", enrollmentH.Get)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
