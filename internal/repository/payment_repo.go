package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"educamp/internal/domain"
)

// PaymentRepository expone lo que el backend necesita del subsistema de pagos.
type PaymentRepository interface {
	GetByID(ctx context.Context, id string) (domain.Payment, error)
	GetByProviderOrderID(ctx context.Context, orderID string) (domain.Payment, error)
	MarkCompleted(ctx context.Context, id, userID, transactionID string) (domain.Payment, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Payment, error)
}

type PgPaymentRepository struct {
	pool *pgxpool.Pool
}

func NewPgPaymentRepository(pool *pgxpool.Pool) *PgPaymentRepository {
	return &PgPaymentRepository{pool: pool}
}

const paymentColumns = `id, COALESCE(user_id::text, ''), class_id, amount, currency, completed,
	COALESCE(provider_order_id, ''), COALESCE(provider_transaction_id, ''),
	enrollment_id, enrolled_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (domain.Payment, error) {
	var (
		p            domain.Payment
		enrollmentID *string
		enrolledAt   *time.Time
	)
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.ClassID,
		&p.Amount,
		&p.Currency,
		&p.Completed,
		&p.ProviderOrderID,
		&p.ProviderTransactionID,
		&enrollmentID,
		&enrolledAt,
		&p.CreatedAt,
	)
	if err != nil {
		return domain.Payment{}, translate(err)
	}
	p.EnrollmentID = enrollmentID
	p.EnrolledAt = enrolledAt
	return p, nil
}

func (r *PgPaymentRepository) GetByID(ctx context.Context, id string) (domain.Payment, error) {
	const query = `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	if !validID(id) {
		return domain.Payment{}, domain.ErrNotFound
	}
	return scanPayment(r.pool.QueryRow(ctx, query, id))
}

func (r *PgPaymentRepository) GetByProviderOrderID(ctx context.Context, orderID string) (domain.Payment, error) {
	const query = `SELECT ` + paymentColumns + ` FROM payments WHERE provider_order_id = $1`
	return scanPayment(r.pool.QueryRow(ctx, query, orderID))
}

// MarkCompleted es idempotente: repetir la captura no cambia el pagador ya registrado.
func (r *PgPaymentRepository) MarkCompleted(ctx context.Context, id, userID, transactionID string) (domain.Payment, error) {
	const query = `
		UPDATE payments
		SET completed = true,
		    user_id = COALESCE(user_id, $2::uuid),
		    provider_transaction_id = COALESCE(NULLIF($3, ''), provider_transaction_id)
		WHERE id = $1
		RETURNING ` + paymentColumns
	if !validID(id) {
		return domain.Payment{}, domain.ErrNotFound
	}
	var payer any
	if validID(userID) {
		payer = userID
	}
	return scanPayment(r.pool.QueryRow(ctx, query, id, payer, transactionID))
}

func (r *PgPaymentRepository) ListByUser(ctx context.Context, userID string) ([]domain.Payment, error) {
	const query = `SELECT ` + paymentColumns + ` FROM payments WHERE user_id = $1 ORDER BY created_at DESC`
	if !validID(userID) {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
