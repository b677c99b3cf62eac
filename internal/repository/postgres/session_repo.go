package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lipia-service/internal/domain/payment"
	xerrors "lipia-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PaymentSessionRepository struct {
	db *pgxpool.Pool
}

func NewPaymentSessionRepository(db *pgxpool.Pool) *PaymentSessionRepository {
	return &PaymentSessionRepository{db: db}
}

// Create persists a new session. The row exists before the external provider
// call returns control to the caller; it is the durable join key the
// callback reconciler depends on.
func (r *PaymentSessionRepository) Create(ctx context.Context, sess *payment.Session) error {
	query := `
		INSERT INTO payment_sessions (
			correlation_id, plan_id, user_id, provider,
			requested_amount, requested_currency, status, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(
		ctx, query,
		sess.CorrelationID, sess.PlanID, sess.UserID, sess.Provider,
		sess.RequestedAmount, sess.RequestedCurrency, sess.Status, sess.ExpiresAt,
	).Scan(&sess.ID, &sess.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create payment session: %w", err)
	}
	return nil
}

// AttachCorrelationID swaps the placeholder reference for the provider-issued
// identifier once the external call has returned one.
func (r *PaymentSessionRepository) AttachCorrelationID(ctx context.Context, id int64, correlationID string) error {
	query := `UPDATE payment_sessions SET correlation_id = $1 WHERE id = $2 AND status = 'initiated'`

	result, err := r.db.Exec(ctx, query, correlationID, id)
	if err != nil {
		return fmt.Errorf("failed to attach correlation id: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

func (r *PaymentSessionRepository) FindByCorrelationID(ctx context.Context, correlationID string) (*payment.Session, error) {
	query := `
		SELECT id, correlation_id, plan_id, user_id, provider,
		       requested_amount, requested_currency, status, created_at, expires_at
		FROM payment_sessions
		WHERE correlation_id = $1
	`
	return r.scanSession(r.db.QueryRow(ctx, query, correlationID))
}

// FindByCorrelationIDForUpdate locks the session row for the duration of the
// reconcile transaction so concurrent deliveries of the same callback
// serialize instead of racing.
func (r *PaymentSessionRepository) FindByCorrelationIDForUpdate(ctx context.Context, tx pgx.Tx, correlationID string) (*payment.Session, error) {
	query := `
		SELECT id, correlation_id, plan_id, user_id, provider,
		       requested_amount, requested_currency, status, created_at, expires_at
		FROM payment_sessions
		WHERE correlation_id = $1
		FOR UPDATE
	`
	return r.scanSession(tx.QueryRow(ctx, query, correlationID))
}

// UpdateStatus transitions an initiated session to a terminal status. The
// guard on the current status makes terminal states final: a second write
// affects zero rows and reports ErrNotFound.
func (r *PaymentSessionRepository) UpdateStatus(ctx context.Context, id int64, status payment.SessionStatus) error {
	query := `UPDATE payment_sessions SET status = $1 WHERE id = $2 AND status = 'initiated'`

	result, err := r.db.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

func (r *PaymentSessionRepository) UpdateStatusWithTx(ctx context.Context, tx pgx.Tx, id int64, status payment.SessionStatus) error {
	query := `UPDATE payment_sessions SET status = $1 WHERE id = $2 AND status = 'initiated'`

	result, err := tx.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// ExpireStale marks initiated sessions past their window as expired and
// returns the affected correlation ids so watchers can be notified.
func (r *PaymentSessionRepository) ExpireStale(ctx context.Context, now time.Time) ([]string, error) {
	query := `
		UPDATE payment_sessions
		SET status = 'expired'
		WHERE status = 'initiated' AND expires_at < $1
		RETURNING correlation_id
	`

	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to expire stale sessions: %w", err)
	}
	defer rows.Close()

	var expired []string
	for rows.Next() {
		var cid string
		if err := rows.Scan(&cid); err != nil {
			return nil, fmt.Errorf("failed to scan expired session: %w", err)
		}
		expired = append(expired, cid)
	}
	return expired, rows.Err()
}

func (r *PaymentSessionRepository) scanSession(row pgx.Row) (*payment.Session, error) {
	var sess payment.Session
	err := row.Scan(
		&sess.ID, &sess.CorrelationID, &sess.PlanID, &sess.UserID, &sess.Provider,
		&sess.RequestedAmount, &sess.RequestedCurrency, &sess.Status, &sess.CreatedAt, &sess.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find payment session: %w", err)
	}
	return &sess, nil
}
