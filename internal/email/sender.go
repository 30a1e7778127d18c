package email

import (
	"context"
	"errors"
	"time"
)

// EnrollmentConfirmation son los datos del correo que recibe el alumno al inscribirse.
type EnrollmentConfirmation struct {
	StudentName string
	ClassTitle  string
	EnrolledAt  time.Time
	ExpiresAt   time.Time
}

// Sender define la interfaz para envio de correos transaccionales.
type Sender interface {
	SendEnrollmentConfirmation(ctx context.Context, toEmail string, c EnrollmentConfirmation) error
}

var ErrSenderDisabled = errors.New("email sender disabled")

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendEnrollmentConfirmation(_ context.Context, _ string, _ EnrollmentConfirmation) error {
	if s.reason == "" {
		return ErrSenderDisabled
	}
	return errors.Join(ErrSenderDisabled, errors.New(s.reason))
}
