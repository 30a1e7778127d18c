package domain

import "time"

// Payment es el registro del subsistema de pagos. El reconciliador solo lo lee
// y, al crear una inscripcion, completa EnrollmentID/EnrolledAt.
type Payment struct {
	ID                    string     `json:"id"`
	UserID                string     `json:"user_id"`
	ClassID               string     `json:"class_id"`
	Amount                int64      `json:"amount"`
	Currency              string     `json:"currency"`
	Completed             bool       `json:"completed"`
	ProviderOrderID       string     `json:"provider_order_id,omitempty"`
	ProviderTransactionID string     `json:"provider_transaction_id,omitempty"`
	EnrollmentID          *string    `json:"enrollment_id,omitempty"`
	EnrolledAt            *time.Time `json:"enrolled_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
}

// PaymentCapturedEvent es el aviso del subsistema de pagos; puede llegar mas de una vez.
type PaymentCapturedEvent struct {
	PaymentID string `json:"payment_id"`
	ClassID   string `json:"class_id"`
	UserID    string `json:"user_id"`
}
