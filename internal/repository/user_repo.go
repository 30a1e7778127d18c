package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"educamp/internal/domain"
)

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	LoadPrincipal(ctx context.Context, userID string) (domain.Principal, error)
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

const userColumns = `id, email, first_name, last_name, role, password_hash, is_active, created_at`

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	if !validID(id) {
		return domain.User{}, domain.ErrNotFound
	}
	return r.scanUser(ctx, query, id)
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = $1`
	return r.scanUser(ctx, query, strings.ToLower(strings.TrimSpace(email)))
}

func (r *PgUserRepository) scanUser(ctx context.Context, query string, arg any) (domain.User, error) {
	var (
		u    domain.User
		role string
	)
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&role,
		&u.PasswordHash,
		&u.IsActive,
		&u.CreatedAt,
	)
	if err != nil {
		return domain.User{}, translate(err)
	}
	u.Role = domain.Role(role)
	return u, nil
}

// LoadPrincipal arma la identidad de sesion con los atributos del rol.
// Es la fuente de verdad que consulta el registro de sesiones.
func (r *PgUserRepository) LoadPrincipal(ctx context.Context, userID string) (domain.Principal, error) {
	const query = `
		SELECT u.id, u.email, u.first_name, u.last_name, u.role, u.is_active,
		       COALESCE(s.id::text, ''), COALESCE(s.student_number, ''),
		       COALESCE(t.employee_id, '')
		FROM users u
		LEFT JOIN students s ON s.user_id = u.id
		LEFT JOIN teachers t ON t.user_id = u.id
		WHERE u.id = $1
	`
	if !validID(userID) {
		return domain.Principal{}, domain.ErrNotFound
	}
	var (
		u                                  domain.User
		role, studentID, number, employeeID string
	)
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&u.ID,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&role,
		&u.IsActive,
		&studentID,
		&number,
		&employeeID,
	)
	if err != nil {
		return domain.Principal{}, translate(err)
	}
	u.Role = domain.Role(role)
	return PrincipalFromUser(u, studentID, number, employeeID), nil
}

// PrincipalFromUser completa solo los atributos que corresponden al rol.
func PrincipalFromUser(u domain.User, studentID, studentNumber, employeeID string) domain.Principal {
	p := domain.Principal{
		UserID:      u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName(),
		Role:        u.Role,
		Active:      u.IsActive,
	}
	switch u.Role {
	case domain.RoleStudent:
		p.StudentID = studentID
		p.StudentNumber = studentNumber
	case domain.RoleTeacher:
		p.EmployeeID = employeeID
	}
	return p
}
