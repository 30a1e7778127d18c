package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"educamp/internal/domain"
	"educamp/internal/payment"
	"educamp/internal/repository"
)

var (
	ErrOrderNotFound        = domain.NewError(domain.ErrNotFound, "payment order not found")
	ErrPaymentForbidden     = domain.NewError(domain.ErrForbidden, "payment belongs to another user")
	ErrCaptureMismatch      = domain.NewError(domain.ErrInvalidState, "captured amount does not match payment")
	ErrInvalidCapturedEvent = domain.NewError(domain.ErrInvalidState, "captured event is incomplete")
)

// PaymentService une la captura en el proveedor con la reconciliacion de inscripciones.
type PaymentService struct {
	logger     *zap.Logger
	provider   payment.Provider
	payments   repository.PaymentRepository
	reconciler *EnrollmentReconciler
}

func NewPaymentService(logger *zap.Logger, provider payment.Provider, payments repository.PaymentRepository, reconciler *EnrollmentReconciler) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{
		logger:     logger,
		provider:   provider,
		payments:   payments,
		reconciler: reconciler,
	}
}

// CaptureAndEnroll captura la orden (si aun no estaba completa) e inscribe al alumno.
// Reintentar con la misma orden devuelve la misma inscripcion.
func (s *PaymentService) CaptureAndEnroll(ctx context.Context, actingUserID, orderID string) (domain.Enrollment, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Enrollment{}, ErrOrderNotFound
	}

	local, err := s.payments.GetByProviderOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Enrollment{}, ErrOrderNotFound
		}
		return domain.Enrollment{}, fmt.Errorf("lookup payment by order: %w", err)
	}
	if local.UserID != "" && local.UserID != actingUserID {
		return domain.Enrollment{}, ErrPaymentForbidden
	}

	if !local.Completed {
		if s.provider == nil {
			return domain.Enrollment{}, errors.New("payment provider not configured")
		}
		capture, err := s.provider.Capture(ctx, orderID)
		if err != nil {
			if errors.Is(err, payment.ErrOrderNotFound) {
				return domain.Enrollment{}, ErrOrderNotFound
			}
			return domain.Enrollment{}, fmt.Errorf("capture order: %w", err)
		}
		if !capture.Completed {
			return domain.Enrollment{}, ErrPaymentNotCompleted
		}
		if capture.Amount != local.Amount || !strings.EqualFold(capture.Currency, local.Currency) {
			s.logger.Warn("captured amount mismatch",
				zap.String("payment_id", local.ID),
				zap.Int64("expected", local.Amount),
				zap.Int64("captured", capture.Amount),
				zap.String("currency", capture.Currency),
			)
			return domain.Enrollment{}, ErrCaptureMismatch
		}
		local, err = s.payments.MarkCompleted(ctx, local.ID, actingUserID, capture.TransactionID)
		if err != nil {
			return domain.Enrollment{}, fmt.Errorf("mark payment completed: %w", err)
		}
		s.logger.Info("payment captured",
			zap.String("payment_id", local.ID),
			zap.String("order_id", orderID),
		)
	}

	return s.reconciler.Reconcile(ctx, actingUserID, local.ClassID, local.ID)
}

// ConfirmAndEnroll inscribe a partir de un pago ya completado por el propio usuario.
func (s *PaymentService) ConfirmAndEnroll(ctx context.Context, actingUserID, paymentID string) (domain.Enrollment, error) {
	p, err := s.payments.GetByID(ctx, strings.TrimSpace(paymentID))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Enrollment{}, ErrPaymentNotFound
		}
		return domain.Enrollment{}, fmt.Errorf("lookup payment: %w", err)
	}
	if p.UserID != actingUserID {
		return domain.Enrollment{}, ErrPaymentForbidden
	}
	return s.reconciler.Reconcile(ctx, actingUserID, p.ClassID, p.ID)
}

// HandleCapturedEvent procesa el aviso del subsistema de pagos. Es seguro
// recibir el mismo aviso varias veces.
func (s *PaymentService) HandleCapturedEvent(ctx context.Context, event domain.PaymentCapturedEvent) (domain.Enrollment, error) {
	if strings.TrimSpace(event.PaymentID) == "" || strings.TrimSpace(event.ClassID) == "" || strings.TrimSpace(event.UserID) == "" {
		return domain.Enrollment{}, ErrInvalidCapturedEvent
	}
	e, err := s.reconciler.Reconcile(ctx, event.UserID, event.ClassID, event.PaymentID)
	if err != nil {
		s.logger.Warn("captured event not reconciled",
			zap.String("payment_id", event.PaymentID),
			zap.Error(err),
		)
		return domain.Enrollment{}, err
	}
	return e, nil
}
