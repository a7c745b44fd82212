package repository

import (
	"context"

	"github.com/jitenkr2030/tutorapp-backend/internal/models"
)

type PaymentMethodRepository struct {
	db DBTX
}

func NewPaymentMethodRepository(db DBTX) *PaymentMethodRepository {
	return &PaymentMethodRepository{db: db}
}

func (r *PaymentMethodRepository) Create(
	ctx context.Context,
	userID int64,
	providerMethodID string,
	brand *string,
	last4 *string,
) (*models.PaymentMethod, error) {
	query := `
		INSERT INTO payment_methods (user_id, provider_method_id, brand, last4)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, provider_method_id)
		DO UPDATE SET brand = EXCLUDED.brand, last4 = EXCLUDED.last4
		RETURNING id, user_id, provider_method_id, brand, last4, created_at
	`
	var method models.PaymentMethod
	err := r.db.QueryRow(ctx, query, userID, providerMethodID, brand, last4).Scan(
		&method.ID,
		&method.UserID,
		&method.ProviderMethodID,
		&method.Brand,
		&method.Last4,
		&method.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &method, nil
}

func (r *PaymentMethodRepository) GetByID(
	ctx context.Context,
	methodID int64,
	userID int64,
) (*models.PaymentMethod, error) {
	query := `
		SELECT id, user_id, provider_method_id, brand, last4, created_at
		FROM payment_methods
		WHERE id = $1 AND user_id = $2
	`
	var method models.PaymentMethod
	err := r.db.QueryRow(ctx, query, methodID, userID).Scan(
		&method.ID,
		&method.UserID,
		&method.ProviderMethodID,
		&method.Brand,
		&method.Last4,
		&method.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &method, nil
}

func (r *PaymentMethodRepository) ListByUserID(
	ctx context.Context,
	userID int64,
) ([]models.PaymentMethod, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, provider_method_id, brand, last4, created_at
		FROM payment_methods
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	methods := make([]models.PaymentMethod, 0)
	for rows.Next() {
		var method models.PaymentMethod
		if err := rows.Scan(
			&method.ID,
			&method.UserID,
			&method.ProviderMethodID,
			&method.Brand,
			&method.Last4,
			&method.CreatedAt,
		); err != nil {
			return nil, err
		}
		methods = append(methods, method)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return methods, nil
}
