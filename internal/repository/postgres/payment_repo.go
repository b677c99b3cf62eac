package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"lipia-service/internal/domain/payment"
	xerrors "lipia-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type PaymentRepository struct {
	db *pgxpool.Pool
}

func NewPaymentRepository(db *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// CreateWithTx appends one ledger row inside the reconcile transaction.
// The partial unique index on provider_transaction_id surfaces a redelivered
// success callback as ErrDuplicateCallback instead of a second completed row.
func (r *PaymentRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, p *payment.Payment) error {
	query := `
		INSERT INTO payments (
			id, user_id, plan_id, amount, currency,
			provider, provider_transaction_id, status, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`

	var metadataJSON []byte
	if p.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(p.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal payment metadata: %w", err)
		}
	}

	err := tx.QueryRow(
		ctx, query,
		p.ID, p.UserID, p.PlanID, p.Amount, p.Currency,
		p.Provider, p.ProviderTransactionID, p.Status, metadataJSON,
	).Scan(&p.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return xerrors.ErrDuplicateCallback
	}
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// ListByUser returns the user's ledger rows, newest first, for the read-only
// reporting surface.
func (r *PaymentRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]payment.Payment, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := `
		SELECT id, user_id, plan_id, amount, currency,
		       provider, provider_transaction_id, status, metadata, created_at
		FROM payments
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	payments := []payment.Payment{}
	for rows.Next() {
		var p payment.Payment
		var metadataJSON []byte
		err := rows.Scan(
			&p.ID, &p.UserID, &p.PlanID, &p.Amount, &p.Currency,
			&p.Provider, &p.ProviderTransactionID, &p.Status, &metadataJSON, &p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &p.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal payment metadata: %w", err)
			}
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
