package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"educamp/internal/domain"
)

type ClassRepository interface {
	GetByID(ctx context.Context, id string) (domain.Class, error)
}

type PgClassRepository struct {
	pool *pgxpool.Pool
}

func NewPgClassRepository(pool *pgxpool.Pool) *PgClassRepository {
	return &PgClassRepository{pool: pool}
}

func (r *PgClassRepository) GetByID(ctx context.Context, id string) (domain.Class, error) {
	const query = `
		SELECT id, title, subject, grade, teacher_name, fee, currency, created_at
		FROM classes
		WHERE id = $1
	`
	if !validID(id) {
		return domain.Class{}, domain.ErrNotFound
	}
	var c domain.Class
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.Title,
		&c.Subject,
		&c.Grade,
		&c.TeacherName,
		&c.Fee,
		&c.Currency,
		&c.CreatedAt,
	)
	if err != nil {
		return domain.Class{}, translate(err)
	}
	return c, nil
}
