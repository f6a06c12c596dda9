// Package repository provides persistence for agency subscriptions.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("subscription not found")

// Subscription statuses. Only active and unexpired trial subscriptions can
// receive leads; suspended, cancelled and expired ones are closed.
const (
	StatusTrial     = "trial"
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
)

// Subscription is an agency's plan with its lead capacity counters.
// PurchasedUnits is the plan's bought volume for billing display; MaxUnits is
// the routing cap and zero means unlimited capacity.
type Subscription struct {
	ID             uuid.UUID
	AgencyID       uuid.UUID
	Plan           string
	Status         string
	PurchasedUnits int
	MaxUnits       int
	CurrentUnits   int
	RenewsAt       *time.Time
	TrialEndsAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const subscriptionColumns = `id, agency_id, plan, status, purchased_units, max_units,
	current_units, renews_at, trial_ends_at, created_at, updated_at`

func scanSubscription(row pgx.Row) (Subscription, error) {
	var s Subscription
	err := row.Scan(
		&s.ID, &s.AgencyID, &s.Plan, &s.Status, &s.PurchasedUnits, &s.MaxUnits,
		&s.CurrentUnits, &s.RenewsAt, &s.TrialEndsAt, &s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}

func (r *Repository) GetByAgency(ctx context.Context, agencyID uuid.UUID) (Subscription, error) {
	s, err := scanSubscription(r.pool.QueryRow(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions WHERE agency_id = $1
		ORDER BY created_at DESC LIMIT 1`, agencyID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Subscription{}, ErrNotFound
	}
	return s, err
}

// FilterWithCapacity returns the subset of the given agencies that currently
// hold an open subscription with at least one free capacity unit. An agency
// without any subscription row is never returned.
func (r *Repository) FilterWithCapacity(ctx context.Context, agencyIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	eligible := make(map[uuid.UUID]bool)
	if len(agencyIDs) == 0 {
		return eligible, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT agency_id
		FROM subscriptions
		WHERE agency_id = ANY($1)
		  AND (status = 'active' OR (status = 'trial' AND trial_ends_at > now()))
		  AND (max_units = 0 OR current_units < max_units)`, agencyIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		eligible[id] = true
	}

	return eligible, rows.Err()
}

// ReleaseUnit returns one consumed capacity unit to the agency's subscription.
// Called when an assignment is rejected or expires. The floor guard keeps a
// double release from driving the counter negative.
func (r *Repository) ReleaseUnit(ctx context.Context, tx pgx.Tx, agencyID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE subscriptions SET current_units = current_units - 1, updated_at = now()
		WHERE agency_id = $1 AND current_units > 0`, agencyID)
	return err
}

// ResetDueRenewals zeroes the consumed units for every subscription whose
// renewal time has passed and advances the renewal by one period. Run by the
// scheduler. Returns the number of renewed subscriptions.
func (r *Repository) ResetDueRenewals(ctx context.Context) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE subscriptions
		SET current_units = 0, renews_at = renews_at + interval '1 month', updated_at = now()
		WHERE status IN ('active', 'trial') AND renews_at IS NOT NULL AND renews_at <= now()`)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
