package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"educamp/internal/domain"
)

type StudentRepository interface {
	GetByUserID(ctx context.Context, userID string) (domain.Student, error)
}

type PgStudentRepository struct {
	pool *pgxpool.Pool
}

func NewPgStudentRepository(pool *pgxpool.Pool) *PgStudentRepository {
	return &PgStudentRepository{pool: pool}
}

func (r *PgStudentRepository) GetByUserID(ctx context.Context, userID string) (domain.Student, error) {
	const query = `
		SELECT id, user_id, student_number, created_at
		FROM students
		WHERE user_id = $1
	`
	if !validID(userID) {
		return domain.Student{}, domain.ErrNotFound
	}
	var s domain.Student
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&s.ID,
		&s.UserID,
		&s.StudentNumber,
		&s.CreatedAt,
	)
	if err != nil {
		return domain.Student{}, translate(err)
	}
	return s, nil
}
