package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"blackout-watch/internal/models"
)

type DB struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &DB{Pool: pool}, nil
}

func (db *DB) Close() {
	db.Pool.Close()
}

// Migrate creates the schema if it doesn't exist.
func (db *DB) Migrate(ctx context.Context) error {
	sql := `
	CREATE TABLE IF NOT EXISTS subscriptions (
		id                 BIGSERIAL PRIMARY KEY,
		user_id            BIGINT NOT NULL,
		city               TEXT NOT NULL,
		street             TEXT NOT NULL,
		house              TEXT NOT NULL,
		group_name         TEXT NOT NULL DEFAULT '',
		check_interval_min INT NOT NULL DEFAULT 60,
		last_digest        TEXT NOT NULL DEFAULT '',
		next_check_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		lead_time_min      INT NOT NULL DEFAULT 0,
		last_alerted_at    TIMESTAMPTZ,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, city, street, house)
	);

	CREATE INDEX IF NOT EXISTS idx_subscriptions_next_check ON subscriptions (next_check_at);
	CREATE INDEX IF NOT EXISTS idx_subscriptions_group      ON subscriptions (group_name);
	`
	_, err := db.Pool.Exec(ctx, sql)
	return err
}

const subscriptionCols = `id, user_id, city, street, house, group_name,
	       check_interval_min, last_digest, next_check_at,
	       lead_time_min, last_alerted_at, created_at`

func scanSubscription(row interface{ Scan(...any) error }) (*models.Subscription, error) {
	var s models.Subscription
	err := row.Scan(
		&s.ID, &s.UserID, &s.City, &s.Street, &s.House, &s.Group,
		&s.CheckIntervalMin, &s.LastDigest, &s.NextCheckAt,
		&s.LeadTimeMin, &s.LastAlertedAt, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSubscription inserts a new subscription row. A duplicate
// (user, address) pair refreshes interval and lead time instead of erroring.
func (db *DB) CreateSubscription(ctx context.Context, userID int64, addr models.AddressKey, intervalMin, leadTimeMin int) (*models.Subscription, error) {
	return scanSubscription(db.Pool.QueryRow(ctx, `
		INSERT INTO subscriptions (user_id, city, street, house, check_interval_min, lead_time_min)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, city, street, house)
		DO UPDATE SET check_interval_min = $5, lead_time_min = $6
		RETURNING `+subscriptionCols,
		userID, addr.City, addr.Street, addr.House, intervalMin, leadTimeMin))
}

// DeleteSubscription removes a subscription. Returns true if a row existed.
func (db *DB) DeleteSubscription(ctx context.Context, userID int64, addr models.AddressKey) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `
		DELETE FROM subscriptions WHERE user_id = $1 AND city = $2 AND street = $3 AND house = $4
	`, userID, addr.City, addr.Street, addr.House)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteSubscriptionByID removes one of the user's subscriptions by row id.
func (db *DB) DeleteSubscriptionByID(ctx context.Context, userID, id int64) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `
		DELETE FROM subscriptions WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateLeadTime sets the alert lead time (minutes, 0 disables) on every
// subscription of the user.
func (db *DB) UpdateLeadTime(ctx context.Context, userID int64, leadMin int) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE subscriptions SET lead_time_min = $2 WHERE user_id = $1
	`, userID, leadMin)
	return err
}

// ListByUser returns all subscriptions for one user.
func (db *DB) ListByUser(ctx context.Context, userID int64) ([]*models.Subscription, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+subscriptionCols+`
		FROM subscriptions WHERE user_id = $1 ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*models.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// ListDue returns subscriptions whose next check time has elapsed.
func (db *DB) ListDue(ctx context.Context, now time.Time) ([]*models.Subscription, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+subscriptionCols+`
		FROM subscriptions WHERE next_check_at <= $1 ORDER BY id
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*models.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// ListAlertable returns subscriptions with lead-time alerts enabled.
func (db *DB) ListAlertable(ctx context.Context) ([]*models.Subscription, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+subscriptionCols+`
		FROM subscriptions WHERE lead_time_min > 0 ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*models.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// BatchUpdatePollState writes next-check times (and new digests where the
// content changed) after a check cycle. Each row is updated independently:
// one failure is logged and does not block the rest, and a row deleted
// mid-cycle simply matches nothing.
func (db *DB) BatchUpdatePollState(ctx context.Context, updates []models.PollState) error {
	var firstErr error
	for _, u := range updates {
		var err error
		if u.DigestChanged {
			_, err = db.Pool.Exec(ctx, `
				UPDATE subscriptions SET next_check_at = $2, last_digest = $3 WHERE id = $1
			`, u.SubscriptionID, u.NextCheckAt, u.Digest)
		} else {
			_, err = db.Pool.Exec(ctx, `
				UPDATE subscriptions SET next_check_at = $2 WHERE id = $1
			`, u.SubscriptionID, u.NextCheckAt)
		}
		if err != nil {
			log.Printf("[db] poll state update for subscription %d failed: %v", u.SubscriptionID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// UpdateAddressGroup stores the provider-assigned group label learned from a fetch.
func (db *DB) UpdateAddressGroup(ctx context.Context, subscriptionID int64, group string) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE subscriptions SET group_name = $2 WHERE id = $1
	`, subscriptionID, group)
	return err
}

// UpdateLastAlerted records the transition instant a subscription was just
// warned about. This is the alert scheduler's sole idempotency guard.
func (db *DB) UpdateLastAlerted(ctx context.Context, subscriptionID int64, at time.Time) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE subscriptions SET last_alerted_at = $2 WHERE id = $1
	`, subscriptionID, at)
	return err
}

// CountSubscriptions returns total and alert-enabled subscription counts.
func (db *DB) CountSubscriptions(ctx context.Context) (total, alertable int64, err error) {
	err = db.Pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE lead_time_min > 0) FROM subscriptions
	`).Scan(&total, &alertable)
	return total, alertable, err
}
