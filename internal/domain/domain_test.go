package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestSessionValid_BoundaryIsExclusive(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s := Session{ExpiresAt: now}
	if s.Valid(now) {
		t.Fatalf("session must be invalid at expires_at")
	}
	if !s.Valid(now.Add(-time.Nanosecond)) {
		t.Fatalf("session must be valid before expires_at")
	}
}

func TestEnrollmentActive(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	e := Enrollment{Status: true, ExpiresAt: now.Add(time.Hour)}
	if !e.Active(now) {
		t.Fatalf("expected active enrollment")
	}
	if e.Active(now.Add(time.Hour)) {
		t.Fatalf("expected expired enrollment to be inactive")
	}
	e.Status = false
	if e.Active(now) {
		t.Fatalf("expected disabled enrollment to be inactive")
	}
	if NewEnrollmentView(e, now).IsActive {
		t.Fatalf("view must reflect computed state")
	}
}

func TestIsDomainError(t *testing.T) {
	wrapped := fmt.Errorf("class %w", ErrNotFound)
	if !IsDomainError(wrapped) {
		t.Fatalf("expected wrapped not found to be a domain error")
	}
	if IsDomainError(errors.New("connection refused")) {
		t.Fatalf("infrastructure errors are not domain errors")
	}
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole(" student ")
	if !ok || r != RoleStudent {
		t.Fatalf("expected STUDENT, got %q ok=%v", r, ok)
	}
	if _, ok := ParseRole("guest"); ok {
		t.Fatalf("unknown role must not parse")
	}
}

func TestNewError_MatchesKindAndIdentity(t *testing.T) {
	errClass := NewError(ErrNotFound, "class not found")
	wrapped := fmt.Errorf("reconcile: %w", errClass)
	if !errors.Is(wrapped, errClass) || !errors.Is(wrapped, ErrNotFound) {
		t.Fatalf("expected wrapped error to match both sentinel and kind")
	}
	if errors.Is(wrapped, ErrInvalidState) {
		t.Fatalf("unexpected kind match")
	}
	if errClass.Error() != "class not found" {
		t.Fatalf("unexpected message %q", errClass.Error())
	}
}
