package domain

import "time"

type Student struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	StudentNumber string    `json:"student_number"`
	CreatedAt     time.Time `json:"created_at"`
}

// Class representa una clase ofrecida; Fee esta en unidades menores (centavos).
type Class struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Subject     string    `json:"subject,omitempty"`
	Grade       string    `json:"grade,omitempty"`
	TeacherName string    `json:"teacher_name,omitempty"`
	Fee         int64     `json:"fee"`
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
}
