package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"educamp/internal/domain"
)

// EnrollmentRepository define el contrato de persistencia para inscripciones.
// CreateForPayment devuelve domain.ErrConflict si un indice unico rechaza el alta.
type EnrollmentRepository interface {
	GetByID(ctx context.Context, id string) (domain.Enrollment, error)
	GetByPaymentID(ctx context.Context, paymentID string) (domain.Enrollment, error)
	GetByStudentAndClass(ctx context.Context, studentID, classID string) (domain.Enrollment, error)
	ListByStudent(ctx context.Context, studentID string) ([]domain.Enrollment, error)
	ListByClass(ctx context.Context, classID string) ([]domain.Enrollment, error)
	CreateForPayment(ctx context.Context, enrollment domain.Enrollment) (domain.Enrollment, error)
}

type PgEnrollmentRepository struct {
	pool *pgxpool.Pool
}

func NewPgEnrollmentRepository(pool *pgxpool.Pool) *PgEnrollmentRepository {
	return &PgEnrollmentRepository{pool: pool}
}

const enrollmentColumns = `id, student_id, class_id, user_id, payment_id, enrolled_at, expires_at, status`

func scanEnrollment(row rowScanner) (domain.Enrollment, error) {
	var e domain.Enrollment
	err := row.Scan(
		&e.ID,
		&e.StudentID,
		&e.ClassID,
		&e.UserID,
		&e.PaymentID,
		&e.EnrolledAt,
		&e.ExpiresAt,
		&e.Status,
	)
	if err != nil {
		return domain.Enrollment{}, translate(err)
	}
	return e, nil
}

func (r *PgEnrollmentRepository) GetByID(ctx context.Context, id string) (domain.Enrollment, error) {
	const query = `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	if !validID(id) {
		return domain.Enrollment{}, domain.ErrNotFound
	}
	return scanEnrollment(r.pool.QueryRow(ctx, query, id))
}

func (r *PgEnrollmentRepository) GetByPaymentID(ctx context.Context, paymentID string) (domain.Enrollment, error) {
	const query = `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE payment_id = $1`
	if !validID(paymentID) {
		return domain.Enrollment{}, domain.ErrNotFound
	}
	return scanEnrollment(r.pool.QueryRow(ctx, query, paymentID))
}

// GetByStudentAndClass prioriza la inscripcion activa y, si no hay, la mas reciente.
func (r *PgEnrollmentRepository) GetByStudentAndClass(ctx context.Context, studentID, classID string) (domain.Enrollment, error) {
	const query = `
		SELECT ` + enrollmentColumns + `
		FROM enrollments
		WHERE student_id = $1 AND class_id = $2
		ORDER BY status DESC, enrolled_at DESC
		LIMIT 1
	`
	if !validID(studentID) || !validID(classID) {
		return domain.Enrollment{}, domain.ErrNotFound
	}
	return scanEnrollment(r.pool.QueryRow(ctx, query, studentID, classID))
}

func (r *PgEnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]domain.Enrollment, error) {
	const query = `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE student_id = $1 ORDER BY enrolled_at DESC`
	return r.list(ctx, query, studentID)
}

func (r *PgEnrollmentRepository) ListByClass(ctx context.Context, classID string) ([]domain.Enrollment, error) {
	const query = `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE class_id = $1 ORDER BY enrolled_at DESC`
	return r.list(ctx, query, classID)
}

func (r *PgEnrollmentRepository) list(ctx context.Context, query string, arg string) ([]domain.Enrollment, error) {
	if !validID(arg) {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var enrollments []domain.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, rows.Err()
}

// CreateForPayment inserta la inscripcion y enlaza el pago en una sola transaccion.
// Si cualquiera de los dos pasos falla no queda ningun registro parcial.
func (r *PgEnrollmentRepository) CreateForPayment(ctx context.Context, e domain.Enrollment) (domain.Enrollment, error) {
	const insert = `
		INSERT INTO enrollments (id, student_id, class_id, user_id, payment_id, enrolled_at, expires_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	const link = `
		UPDATE payments
		SET enrollment_id = $2, enrolled_at = $3
		WHERE id = $1 AND enrollment_id IS NULL
	`
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insert,
			e.ID,
			e.StudentID,
			e.ClassID,
			e.UserID,
			e.PaymentID,
			e.EnrolledAt,
			e.ExpiresAt,
			e.Status,
		); err != nil {
			return fmt.Errorf("insert enrollment: %w", translate(err))
		}
		if e.PaymentID == nil {
			return nil
		}
		tag, err := tx.Exec(ctx, link, *e.PaymentID, e.ID, e.EnrolledAt)
		if err != nil {
			return fmt.Errorf("link payment: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("payment %s already linked: %w", *e.PaymentID, domain.ErrConflict)
		}
		return nil
	})
	if err != nil {
		return domain.Enrollment{}, err
	}
	return e, nil
}
