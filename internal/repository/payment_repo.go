package repository

import (
	"context"
	"fmt"

	"github.com/jitenkr2030/tutorapp-backend/internal/models"
)

const paymentColumns = `id, booking_id, user_id, amount, currency, status, transaction_id,
		paid_at, refunded_at, refund_reason, created_at, updated_at`

type UpsertPaymentInput struct {
	BookingID     int64
	UserID        int64
	Amount        float64
	Currency      string
	TransactionID string
}

type PaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func scanPayment(row interface{ Scan(dest ...any) error }) (*models.Payment, error) {
	var payment models.Payment
	err := row.Scan(
		&payment.ID,
		&payment.BookingID,
		&payment.UserID,
		&payment.Amount,
		&payment.Currency,
		&payment.Status,
		&payment.TransactionID,
		&payment.PaidAt,
		&payment.RefundedAt,
		&payment.RefundReason,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// Upsert keeps the one-payment-per-booking invariant: a retried intent
// creation refreshes the pending row instead of inserting a second one.
func (r *PaymentRepository) Upsert(ctx context.Context, input UpsertPaymentInput) (*models.Payment, error) {
	query := fmt.Sprintf(`
		INSERT INTO payments (booking_id, user_id, amount, currency, status, transaction_id)
		VALUES ($1, $2, $3, $4, 'PENDING', $5)
		ON CONFLICT (booking_id)
		DO UPDATE SET amount = EXCLUDED.amount,
				transaction_id = EXCLUDED.transaction_id,
				updated_at = NOW()
		RETURNING %s
	`, paymentColumns)
	return scanPayment(r.db.QueryRow(
		ctx,
		query,
		input.BookingID,
		input.UserID,
		input.Amount,
		input.Currency,
		input.TransactionID,
	))
}

func (r *PaymentRepository) GetByID(ctx context.Context, paymentID int64) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE id = $1`, paymentColumns)
	return scanPayment(r.db.QueryRow(ctx, query, paymentID))
}

func (r *PaymentRepository) GetByBookingID(ctx context.Context, bookingID int64) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE booking_id = $1`, paymentColumns)
	return scanPayment(r.db.QueryRow(ctx, query, bookingID))
}

func (r *PaymentRepository) GetByTransactionID(
	ctx context.Context,
	transactionID string,
) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE transaction_id = $1`, paymentColumns)
	return scanPayment(r.db.QueryRow(ctx, query, transactionID))
}

func (r *PaymentRepository) ListByBookingIDs(
	ctx context.Context,
	bookingIDs []int64,
) (map[int64]models.Payment, error) {
	payments := make(map[int64]models.Payment, len(bookingIDs))
	if len(bookingIDs) == 0 {
		return payments, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM payments WHERE booking_id = ANY($1)`, paymentColumns)
	rows, err := r.db.Query(ctx, query, bookingIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments[payment.BookingID] = *payment
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return payments, nil
}

func (r *PaymentRepository) ListByUserID(ctx context.Context, userID int64) ([]models.Payment, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM payments
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, paymentColumns)

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]models.Payment, 0)
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *payment)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return payments, nil
}

// MarkCompleted applies PENDING -> COMPLETED and stamps paid_at.
func (r *PaymentRepository) MarkCompleted(ctx context.Context, paymentID int64) (*models.Payment, error) {
	query := fmt.Sprintf(`
		UPDATE payments
		SET status = 'COMPLETED', paid_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'PENDING'
		RETURNING %s
	`, paymentColumns)
	return scanPayment(r.db.QueryRow(ctx, query, paymentID))
}

func (r *PaymentRepository) MarkFailed(ctx context.Context, paymentID int64) (*models.Payment, error) {
	query := fmt.Sprintf(`
		UPDATE payments
		SET status = 'FAILED', updated_at = NOW()
		WHERE id = $1 AND status = 'PENDING'
		RETURNING %s
	`, paymentColumns)
	return scanPayment(r.db.QueryRow(ctx, query, paymentID))
}

// MarkRefunded applies COMPLETED (or PARTIALLY_REFUNDED) -> nextStatus with
// the refund metadata.
func (r *PaymentRepository) MarkRefunded(
	ctx context.Context,
	paymentID int64,
	nextStatus models.PaymentStatus,
	reason string,
) (*models.Payment, error) {
	query := fmt.Sprintf(`
		UPDATE payments
		SET status = $2, refunded_at = NOW(), refund_reason = $3, updated_at = NOW()
		WHERE id = $1 AND status IN ('COMPLETED', 'PARTIALLY_REFUNDED')
		RETURNING %s
	`, paymentColumns)
	return scanPayment(r.db.QueryRow(ctx, query, paymentID, nextStatus, reason))
}

// SettleAmount records the recomputed cost after an early end and marks the
// payment settled.
func (r *PaymentRepository) SettleAmount(
	ctx context.Context,
	paymentID int64,
	amount float64,
) (*models.Payment, error) {
	query := fmt.Sprintf(`
		UPDATE payments
		SET amount = $2, status = 'COMPLETED', updated_at = NOW()
		WHERE id = $1 AND status IN ('PENDING', 'COMPLETED')
		RETURNING %s
	`, paymentColumns)
	return scanPayment(r.db.QueryRow(ctx, query, paymentID, amount))
}
