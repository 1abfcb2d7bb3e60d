package entitlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Store manages subscriptions in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a subscription store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// HasActive reports whether the user holds an unexpired subscription.
// Cancelled plans keep their entitlement until expiry. This is the gate
// for filtered matching.
func (s *Store) HasActive(ctx context.Context, userID string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM subscriptions
			WHERE user_id = $1 AND status <> 'expired' AND expires_at > NOW()
		)`

	var active bool
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&active); err != nil {
		return false, fmt.Errorf("entitlement: has active: %w", err)
	}
	return active, nil
}

// Activate records a paid subscription for the user and stamps the users
// row so profile reads do not need a join. Payment capture happens
// upstream; this only records the outcome.
func (s *Store) Activate(ctx context.Context, userID, planType, country, paymentMethod, paymentID string) (*Subscription, error) {
	plan, err := PlanByType(planType)
	if err != nil {
		return nil, err
	}
	amount, currency := plan.PriceFor(country)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("entitlement: begin: %w", err)
	}
	defer tx.Rollback()

	sub := &Subscription{
		UserID:        userID,
		PlanType:      plan.Type,
		Status:        StatusActive,
		Amount:        amount,
		Currency:      currency,
		PaymentMethod: paymentMethod,
		PaymentID:     paymentID,
	}

	const insert = `
		INSERT INTO subscriptions (user_id, plan_type, status, expires_at, amount, currency, payment_method, payment_id)
		VALUES ($1, $2, 'active', NOW() + $3::interval, $4, $5, $6, NULLIF($7, ''))
		RETURNING id, starts_at, expires_at`

	err = tx.QueryRowContext(ctx, insert,
		userID, plan.Type, plan.Duration.String(), amount, currency, paymentMethod, paymentID).
		Scan(&sub.ID, &sub.StartsAt, &sub.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("entitlement: insert subscription: %w", err)
	}

	const stamp = `
		UPDATE users
		SET subscription_type = $2, subscription_expires_at = $3, updated_at = NOW()
		WHERE id = $1`

	if _, err := tx.ExecContext(ctx, stamp, userID, plan.Type, sub.ExpiresAt); err != nil {
		return nil, fmt.Errorf("entitlement: stamp user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("entitlement: commit: %w", err)
	}
	return sub, nil
}

// Current returns the user's newest active subscription, or
// ErrNoActivePlan when none exists.
func (s *Store) Current(ctx context.Context, userID string) (*Subscription, error) {
	const query = `
		SELECT id, user_id, plan_type, status, starts_at, expires_at,
		       COALESCE(amount, 0), currency, payment_method, COALESCE(payment_id, '')
		FROM subscriptions
		WHERE user_id = $1 AND status <> 'expired' AND expires_at > NOW()
		ORDER BY expires_at DESC
		LIMIT 1`

	sub := &Subscription{}
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&sub.ID, &sub.UserID, &sub.PlanType, &sub.Status, &sub.StartsAt,
		&sub.ExpiresAt, &sub.Amount, &sub.Currency, &sub.PaymentMethod, &sub.PaymentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoActivePlan
	}
	if err != nil {
		return nil, fmt.Errorf("entitlement: current: %w", err)
	}
	return sub, nil
}

// Cancel marks the user's active subscriptions cancelled. Entitlements are
// honored until expiry; the status change only stops renewal prompts.
func (s *Store) Cancel(ctx context.Context, userID string) error {
	const query = `
		UPDATE subscriptions
		SET status = 'cancelled', updated_at = NOW()
		WHERE user_id = $1 AND status = 'active'`

	res, err := s.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("entitlement: cancel: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoActivePlan
	}
	return nil
}

// ExpireLapsed flips past-expiry rows to expired and resets the user
// stamp for anyone with no remaining entitlement. Run by the sweeper.
func (s *Store) ExpireLapsed(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("entitlement: begin: %w", err)
	}
	defer tx.Rollback()

	const expire = `
		UPDATE subscriptions
		SET status = 'expired', updated_at = NOW()
		WHERE status IN ('active', 'cancelled') AND expires_at <= NOW()`

	res, err := tx.ExecContext(ctx, expire)
	if err != nil {
		return 0, fmt.Errorf("entitlement: expire: %w", err)
	}
	n, _ := res.RowsAffected()

	const reset = `
		UPDATE users
		SET subscription_type = 'free', subscription_expires_at = NULL, updated_at = NOW()
		WHERE subscription_expires_at IS NOT NULL
		  AND subscription_expires_at <= NOW()
		  AND NOT EXISTS (
			SELECT 1 FROM subscriptions
			WHERE subscriptions.user_id = users.id
			  AND status = 'active' AND expires_at > NOW()
		  )`

	if _, err := tx.ExecContext(ctx, reset); err != nil {
		return 0, fmt.Errorf("entitlement: reset users: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("entitlement: commit: %w", err)
	}
	return n, nil
}
