package service

import (
	"context"
	"fmt"

	"educamp/internal/domain"
	"educamp/internal/email"
	"educamp/internal/repository"
)

// EmailEnrollmentNotifier envia la confirmacion de inscripcion por correo.
type EmailEnrollmentNotifier struct {
	users   repository.UserRepository
	classes repository.ClassRepository
	sender  email.Sender
}

func NewEmailEnrollmentNotifier(users repository.UserRepository, classes repository.ClassRepository, sender email.Sender) *EmailEnrollmentNotifier {
	return &EmailEnrollmentNotifier{users: users, classes: classes, sender: sender}
}

func (n *EmailEnrollmentNotifier) NotifyEnrollment(ctx context.Context, e domain.Enrollment) error {
	user, err := n.users.GetByID(ctx, e.UserID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	class, err := n.classes.GetByID(ctx, e.ClassID)
	if err != nil {
		return fmt.Errorf("load class: %w", err)
	}
	return n.sender.SendEnrollmentConfirmation(ctx, user.Email, email.EnrollmentConfirmation{
		StudentName: user.DisplayName(),
		ClassTitle:  class.Title,
		EnrolledAt:  e.EnrolledAt,
		ExpiresAt:   e.ExpiresAt,
	})
}
