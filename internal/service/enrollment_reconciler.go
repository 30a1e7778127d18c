package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"educamp/internal/domain"
	"educamp/internal/metrics"
	"educamp/internal/repository"
)

var (
	ErrReconcileInput       = domain.NewError(domain.ErrInvalidState, "payment, class and user are required")
	ErrStudentNotFound      = domain.NewError(domain.ErrNotFound, "student profile not found")
	ErrClassNotFound        = domain.NewError(domain.ErrNotFound, "class not found")
	ErrPaymentNotFound      = domain.NewError(domain.ErrInvalidState, "payment not found")
	ErrPaymentNotCompleted  = domain.NewError(domain.ErrInvalidState, "payment not completed")
	ErrPaymentClassMismatch = domain.NewError(domain.ErrInvalidState, "payment belongs to another class")
	ErrEnrollmentConflict   = domain.NewError(domain.ErrConflict, "enrollment already exists")
	ErrEnrollmentNotFound   = domain.NewError(domain.ErrNotFound, "enrollment not found")
)

// EnrollmentPublisher anuncia inscripciones nuevas a otros subsistemas.
type EnrollmentPublisher interface {
	PublishEnrollmentCreated(ctx context.Context, enrollment domain.Enrollment) error
}

// EnrollmentNotifier avisa al alumno que su inscripcion quedo confirmada.
type EnrollmentNotifier interface {
	NotifyEnrollment(ctx context.Context, enrollment domain.Enrollment) error
}

// EnrollmentReconciler convierte un pago completado en exactamente una inscripcion,
// aunque el evento llegue repetido o en paralelo.
//
// Las llamadas concurrentes con los mismos argumentos se agrupan en una sola
// ejecucion. Entre procesos, los indices unicos de la base cierran la carrera y el
// perdedor devuelve la inscripcion del ganador.
type EnrollmentReconciler struct {
	logger      *zap.Logger
	enrollments repository.EnrollmentRepository
	students    repository.StudentRepository
	classes     repository.ClassRepository
	payments    repository.PaymentRepository
	publisher   EnrollmentPublisher
	notifier    EnrollmentNotifier
	months      int
	now         func() time.Time
	group       singleflight.Group
}

type ReconcilerOption func(*EnrollmentReconciler)

// WithSubscriptionWindow fija la vigencia en meses calendario.
func WithSubscriptionWindow(months int) ReconcilerOption {
	return func(r *EnrollmentReconciler) {
		if months > 0 {
			r.months = months
		}
	}
}

func WithReconcilerClock(now func() time.Time) ReconcilerOption {
	return func(r *EnrollmentReconciler) {
		if now != nil {
			r.now = now
		}
	}
}

func WithEnrollmentPublisher(p EnrollmentPublisher) ReconcilerOption {
	return func(r *EnrollmentReconciler) { r.publisher = p }
}

func WithEnrollmentNotifier(n EnrollmentNotifier) ReconcilerOption {
	return func(r *EnrollmentReconciler) { r.notifier = n }
}

func NewEnrollmentReconciler(
	logger *zap.Logger,
	enrollments repository.EnrollmentRepository,
	students repository.StudentRepository,
	classes repository.ClassRepository,
	payments repository.PaymentRepository,
	opts ...ReconcilerOption,
) *EnrollmentReconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &EnrollmentReconciler{
		logger:      logger,
		enrollments: enrollments,
		students:    students,
		classes:     classes,
		payments:    payments,
		months:      1,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type reconcileResult struct {
	enrollment domain.Enrollment
	outcome    string
}

// Reconcile devuelve la inscripcion asociada al pago, creandola si hace falta.
func (r *EnrollmentReconciler) Reconcile(ctx context.Context, actingUserID, classID, paymentID string) (domain.Enrollment, error) {
	actingUserID = strings.TrimSpace(actingUserID)
	classID = strings.TrimSpace(classID)
	paymentID = strings.TrimSpace(paymentID)
	if actingUserID == "" || classID == "" || paymentID == "" {
		return domain.Enrollment{}, ErrReconcileInput
	}

	key := paymentID + "|" + actingUserID + "|" + classID
	// La ejecucion compartida no depende de la cancelacion de un solo llamador.
	shared := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (interface{}, error) {
		start := time.Now()
		res, err := r.reconcile(shared, actingUserID, classID, paymentID)
		metrics.ReconcileLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.ReconcileTotal.WithLabelValues(metrics.ReconcileFailed).Inc()
			return nil, err
		}
		metrics.ReconcileTotal.WithLabelValues(res.outcome).Inc()
		return res, nil
	})

	select {
	case <-ctx.Done():
		return domain.Enrollment{}, ctx.Err()
	case out := <-ch:
		if out.Err != nil {
			return domain.Enrollment{}, out.Err
		}
		return out.Val.(reconcileResult).enrollment, nil
	}
}

func (r *EnrollmentReconciler) reconcile(ctx context.Context, actingUserID, classID, paymentID string) (reconcileResult, error) {
	existing, err := r.enrollments.GetByPaymentID(ctx, paymentID)
	switch {
	case err == nil:
		return reconcileResult{enrollment: existing, outcome: metrics.ReconcilePaymentReused}, nil
	case !errors.Is(err, domain.ErrNotFound):
		return reconcileResult{}, fmt.Errorf("lookup enrollment by payment: %w", err)
	}

	student, err := r.students.GetByUserID(ctx, actingUserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return reconcileResult{}, ErrStudentNotFound
		}
		return reconcileResult{}, fmt.Errorf("lookup student: %w", err)
	}

	class, err := r.classes.GetByID(ctx, classID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return reconcileResult{}, ErrClassNotFound
		}
		return reconcileResult{}, fmt.Errorf("lookup class: %w", err)
	}

	existing, err = r.enrollments.GetByStudentAndClass(ctx, student.ID, class.ID)
	switch {
	case err == nil:
		return reconcileResult{enrollment: existing, outcome: metrics.ReconcileClassReused}, nil
	case !errors.Is(err, domain.ErrNotFound):
		return reconcileResult{}, fmt.Errorf("lookup enrollment by class: %w", err)
	}

	payment, err := r.payments.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return reconcileResult{}, ErrPaymentNotFound
		}
		return reconcileResult{}, fmt.Errorf("lookup payment: %w", err)
	}
	if !payment.Completed {
		return reconcileResult{}, ErrPaymentNotCompleted
	}
	if payment.ClassID != class.ID {
		return reconcileResult{}, ErrPaymentClassMismatch
	}

	enrolledAt := r.now().UTC()
	pid := payment.ID
	enrollment := domain.Enrollment{
		ID:         uuid.NewString(),
		StudentID:  student.ID,
		ClassID:    class.ID,
		UserID:     actingUserID,
		PaymentID:  &pid,
		EnrolledAt: enrolledAt,
		ExpiresAt:  enrolledAt.AddDate(0, r.months, 0),
		Status:     true,
	}

	created, err := r.enrollments.CreateForPayment(ctx, enrollment)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return r.recoverRace(ctx, student.ID, class.ID, paymentID, err)
		}
		return reconcileResult{}, fmt.Errorf("create enrollment: %w", err)
	}

	r.logger.Info("enrollment created",
		zap.String("enrollment_id", created.ID),
		zap.String("payment_id", paymentID),
		zap.String("student_id", student.ID),
		zap.String("class_id", class.ID),
	)
	r.afterCreate(ctx, created)
	return reconcileResult{enrollment: created, outcome: metrics.ReconcileCreated}, nil
}

// recoverRace busca la inscripcion que gano la carrera contra los indices unicos.
func (r *EnrollmentReconciler) recoverRace(ctx context.Context, studentID, classID, paymentID string, cause error) (reconcileResult, error) {
	winner, err := r.enrollments.GetByPaymentID(ctx, paymentID)
	if err == nil {
		r.logger.Info("enrollment race lost, returning winner",
			zap.String("payment_id", paymentID),
			zap.String("enrollment_id", winner.ID),
		)
		return reconcileResult{enrollment: winner, outcome: metrics.ReconcileRaceLost}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return reconcileResult{}, fmt.Errorf("refetch enrollment by payment: %w", err)
	}

	winner, err = r.enrollments.GetByStudentAndClass(ctx, studentID, classID)
	if err == nil {
		r.logger.Info("enrollment race lost, returning winner",
			zap.String("payment_id", paymentID),
			zap.String("enrollment_id", winner.ID),
		)
		return reconcileResult{enrollment: winner, outcome: metrics.ReconcileRaceLost}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return reconcileResult{}, fmt.Errorf("refetch enrollment by class: %w", err)
	}

	r.logger.Warn("enrollment conflict without visible winner",
		zap.String("payment_id", paymentID),
		zap.Error(cause),
	)
	return reconcileResult{}, ErrEnrollmentConflict
}

func (r *EnrollmentReconciler) afterCreate(ctx context.Context, enrollment domain.Enrollment) {
	if r.publisher != nil {
		if err := r.publisher.PublishEnrollmentCreated(ctx, enrollment); err != nil {
			r.logger.Warn("publish enrollment created failed",
				zap.String("enrollment_id", enrollment.ID),
				zap.Error(err),
			)
		}
	}
	if r.notifier != nil {
		if err := r.notifier.NotifyEnrollment(ctx, enrollment); err != nil {
			r.logger.Warn("enrollment notification failed",
				zap.String("enrollment_id", enrollment.ID),
				zap.Error(err),
			)
		}
	}
}

func (r *EnrollmentReconciler) GetByID(ctx context.Context, id string) (domain.Enrollment, error) {
	e, err := r.enrollments.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Enrollment{}, ErrEnrollmentNotFound
		}
		return domain.Enrollment{}, err
	}
	return e, nil
}

// ListByStudentUser lista las inscripciones del alumno asociado al usuario.
func (r *EnrollmentReconciler) ListByStudentUser(ctx context.Context, userID string) ([]domain.Enrollment, error) {
	student, err := r.students.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	return r.enrollments.ListByStudent(ctx, student.ID)
}

func (r *EnrollmentReconciler) ListByClass(ctx context.Context, classID string) ([]domain.Enrollment, error) {
	if _, err := r.classes.GetByID(ctx, classID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, err
	}
	return r.enrollments.ListByClass(ctx, classID)
}

// Now expone el reloj usado para calcular vigencias.
func (r *EnrollmentReconciler) Now() time.Time {
	return r.now()
}
