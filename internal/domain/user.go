package domain

import (
	"strings"
	"time"
)

// Role etiqueta explicitamente el tipo de cuenta.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleTeacher Role = "TEACHER"
	RoleAdmin   Role = "ADMIN"
)

// ParseRole normaliza el texto persistido a un Role conocido.
func ParseRole(raw string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(raw)))
	return r, r.Valid()
}

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	default:
		return false
	}
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Principal es la identidad autenticada que guarda una sesion.
// Los atributos por rol solo se completan para el rol correspondiente.
type Principal struct {
	UserID        string `json:"id"`
	Email         string `json:"email"`
	DisplayName   string `json:"display_name,omitempty"`
	Role          Role   `json:"role"`
	Active        bool   `json:"is_active"`
	StudentID     string `json:"student_id,omitempty"`
	StudentNumber string `json:"student_number,omitempty"`
	EmployeeID    string `json:"employee_id,omitempty"`
}

// CanManageClasses indica si el rol puede ver inscripciones de una clase completa.
func (p Principal) CanManageClasses() bool {
	switch p.Role {
	case RoleTeacher, RoleAdmin:
		return true
	default:
		return false
	}
}
