package domain

import "time"

type Enrollment struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"student_id"`
	ClassID    string    `json:"class_id"`
	UserID     string    `json:"user_id"`
	PaymentID  *string   `json:"payment_id,omitempty"`
	EnrolledAt time.Time `json:"enrolled_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Status     bool      `json:"status"`
}

// Active se evalua de forma perezosa: no hay job que desactive inscripciones vencidas.
func (e Enrollment) Active(now time.Time) bool {
	return e.Status && now.Before(e.ExpiresAt)
}

// EnrollmentView agrega el estado calculado para respuestas HTTP.
type EnrollmentView struct {
	Enrollment
	IsActive bool `json:"active"`
}

func NewEnrollmentView(e Enrollment, now time.Time) EnrollmentView {
	return EnrollmentView{Enrollment: e, IsActive: e.Active(now)}
}
