package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"educamp/internal/domain"
	"educamp/internal/service"
)

// EnrollmentHandler expone las consultas de inscripciones.
type EnrollmentHandler struct {
	logger      *zap.Logger
	enrollments *service.EnrollmentReconciler
}

func NewEnrollmentHandler(logger *zap.Logger, enrollments *service.EnrollmentReconciler) *EnrollmentHandler {
	return &EnrollmentHandler{logger: logger, enrollments: enrollments}
}

// Mine maneja GET /api/enrollments/me.
func (h *EnrollmentHandler) Mine(c *gin.Context) {
	p, ok := GetPrincipal(c)
	if !ok {
		abortUnauthenticated(c)
		return
	}
	if p.Role != domain.RoleStudent {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "only students have enrollments"})
		return
	}
	list, err := h.enrollments.ListByStudentUser(c.Request.Context(), p.UserID)
	if err != nil {
		respondError(c, h.logger, err, "list my enrollments")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "enrollments": h.views(list)})
}

// Get maneja GET /api/enrollments/:id.
func (h *EnrollmentHandler) Get(c *gin.Context) {
	p, ok := GetPrincipal(c)
	if !ok {
		abortUnauthenticated(c)
		return
	}
	e, err := h.enrollments.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err, "get enrollment")
		return
	}
	if e.UserID != p.UserID && !p.CanManageClasses() {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "forbidden"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "enrollment": domain.NewEnrollmentView(e, h.enrollments.Now())})
}

// ByClass maneja GET /api/enrollments/class/:classId (docentes y administradores).
func (h *EnrollmentHandler) ByClass(c *gin.Context) {
	p, ok := GetPrincipal(c)
	if !ok {
		abortUnauthenticated(c)
		return
	}
	if !p.CanManageClasses() {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "forbidden"})
		return
	}
	list, err := h.enrollments.ListByClass(c.Request.Context(), c.Param("classId"))
	if err != nil {
		respondError(c, h.logger, err, "list class enrollments")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "enrollments": h.views(list)})
}

func (h *EnrollmentHandler) views(list []domain.Enrollment) []domain.EnrollmentView {
	now := h.enrollments.Now()
	out := make([]domain.EnrollmentView, 0, len(list))
	for _, e := range list {
		out = append(out, domain.NewEnrollmentView(e, now))
	}
	return out
}
