package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"educamp/internal/domain"
	"educamp/internal/payment"
)

func newPaymentFixture() (*PaymentService, *reconcilerFixture, *payment.MockProvider) {
	f := newReconcilerFixture()
	f.payments.byID["ordered"] = domain.Payment{
		ID: "ordered", ClassID: testClassID, Amount: 2500, Currency: "USD", ProviderOrderID: "ORDER-1",
	}
	provider := &payment.MockProvider{Result: payment.Capture{TransactionID: "CAP-1", Completed: true, Amount: 2500, Currency: "usd"}}
	return NewPaymentService(zap.NewNop(), provider, f.payments, f.reconciler()), f, provider
}

func TestCaptureAndEnroll(t *testing.T) {
	svc, f, provider := newPaymentFixture()

	e, err := svc.CaptureAndEnroll(context.Background(), testUserID, "ORDER-1")
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if e.PaymentID == nil || *e.PaymentID != "ordered" {
		t.Fatalf("expected enrollment for captured payment, got %+v", e)
	}
	p, _ := f.payments.GetByID(context.Background(), "ordered")
	if !p.Completed || p.UserID != testUserID || p.ProviderTransactionID != "CAP-1" {
		t.Fatalf("expected payment marked completed, got %+v", p)
	}

	again, err := svc.CaptureAndEnroll(context.Background(), testUserID, "ORDER-1")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if again.ID != e.ID {
		t.Fatalf("retry must return the same enrollment")
	}
	if provider.Calls != 1 {
		t.Fatalf("completed payments must not be captured again, got %d calls", provider.Calls)
	}
}

func TestCaptureAndEnroll_Failures(t *testing.T) {
	t.Run("unknown order", func(t *testing.T) {
		svc, _, _ := newPaymentFixture()
		if _, err := svc.CaptureAndEnroll(context.Background(), testUserID, "NOPE"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("amount mismatch", func(t *testing.T) {
		svc, f, provider := newPaymentFixture()
		provider.Result.Amount = 100
		if _, err := svc.CaptureAndEnroll(context.Background(), testUserID, "ORDER-1"); !errors.Is(err, ErrCaptureMismatch) {
			t.Fatalf("expected mismatch, got %v", err)
		}
		if f.enrollments.count() != 0 {
			t.Fatalf("no enrollment on mismatch")
		}
	})

	t.Run("not completed at provider", func(t *testing.T) {
		svc, _, provider := newPaymentFixture()
		provider.Result.Completed = false
		if _, err := svc.CaptureAndEnroll(context.Background(), testUserID, "ORDER-1"); !errors.Is(err, domain.ErrInvalidState) {
			t.Fatalf("expected invalid state, got %v", err)
		}
	})

	t.Run("provider failure", func(t *testing.T) {
		svc, _, provider := newPaymentFixture()
		provider.Err = errors.New("timeout")
		_, err := svc.CaptureAndEnroll(context.Background(), testUserID, "ORDER-1")
		if err == nil || domain.IsDomainError(err) {
			t.Fatalf("expected infrastructure error, got %v", err)
		}
	})

	t.Run("order of another user", func(t *testing.T) {
		svc, f, _ := newPaymentFixture()
		p := f.payments.byID["ordered"]
		p.UserID = "someone-else"
		f.payments.byID["ordered"] = p
		if _, err := svc.CaptureAndEnroll(context.Background(), testUserID, "ORDER-1"); !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("expected forbidden, got %v", err)
		}
	})
}

func TestConfirmAndEnroll(t *testing.T) {
	svc, _, _ := newPaymentFixture()

	e, err := svc.ConfirmAndEnroll(context.Background(), testUserID, testPaymentID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if e.PaymentID == nil || *e.PaymentID != testPaymentID {
		t.Fatalf("unexpected enrollment %+v", e)
	}

	if _, err := svc.ConfirmAndEnroll(context.Background(), "intruder", testPaymentID); !errors.Is(err, ErrPaymentForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.ConfirmAndEnroll(context.Background(), testUserID, "missing"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state for missing payment, got %v", err)
	}
}

func TestHandleCapturedEvent_Idempotent(t *testing.T) {
	svc, f, _ := newPaymentFixture()
	event := domain.PaymentCapturedEvent{PaymentID: testPaymentID, ClassID: testClassID, UserID: testUserID}

	first, err := svc.HandleCapturedEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	second, err := svc.HandleCapturedEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if first.ID != second.ID || f.enrollments.count() != 1 {
		t.Fatalf("redelivery must not create a second enrollment")
	}

	if _, err := svc.HandleCapturedEvent(context.Background(), domain.PaymentCapturedEvent{PaymentID: "x"}); !errors.Is(err, ErrInvalidCapturedEvent) {
		t.Fatalf("expected incomplete event error, got %v", err)
	}
}
