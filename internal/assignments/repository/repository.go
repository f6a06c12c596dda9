// Package repository provides persistence for the assignment ledger and the
// per-territory rotation state.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadmarket_backend/internal/assignments/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound            = errors.New("assignment not found")
	ErrDuplicateAssignment = errors.New("lead already has an open assignment")
	ErrSequenceConflict    = errors.New("rotation sequence advanced concurrently")
	ErrCapacityExhausted   = errors.New("agency has no free capacity unit")
	ErrInvalidState        = errors.New("assignment is not in the required state")
)

// Assignment is one ledger entry tying a lead to an agency.
type Assignment struct {
	ID           uuid.UUID
	LeadID       uuid.UUID
	AgencyID     uuid.UUID
	TerritoryKey *string
	Sequence     *int64
	Type         domain.AssignmentType
	Status       domain.Status
	Priority     int
	Metadata     []byte
	RejectReason *string
	AssignedBy   *uuid.UUID
	ExpiresAt    *time.Time
	RespondedAt  *time.Time
	CompletedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CommitParams describes one round-robin assignment commit. ExpectedSeq is
// the rotation sequence observed when the candidate was chosen; the commit
// fails with ErrSequenceConflict if the stored sequence moved since.
type CommitParams struct {
	LeadID       uuid.UUID
	AgencyID     uuid.UUID
	TerritoryKey string
	ExpectedSeq  int64
	Priority     int
	AssignedBy   *uuid.UUID
	ExpiresAt    *time.Time
}

// ManualParams describes a manual assignment by an operator. Priority and
// Metadata are optional operator annotations carried on the ledger entry.
type ManualParams struct {
	LeadID     uuid.UUID
	AgencyID   uuid.UUID
	Priority   int
	Metadata   []byte
	AssignedBy *uuid.UUID
	ExpiresAt  *time.Time
}

// RotationState is the fairness cursor for one territory key.
type RotationState struct {
	TerritoryKey string
	LastAgencyID *uuid.UUID
	Seq          int64
}

type ListFilters struct {
	Status *domain.Status
	Limit  int
}

// Ledger is the persistence surface the assignment and routing services
// depend on. The pgx Repository implements it; tests use in-memory fakes.
type Ledger interface {
	CommitRoundRobin(ctx context.Context, params CommitParams) (Assignment, error)
	CreateManual(ctx context.Context, params ManualParams) (Assignment, error)
	GetRotation(ctx context.Context, territoryKey string) (RotationState, error)
	GetByID(ctx context.Context, id uuid.UUID) (Assignment, error)
	ListByLead(ctx context.Context, leadID uuid.UUID) ([]Assignment, error)
	ListByAgency(ctx context.Context, agencyID uuid.UUID, filters ListFilters) ([]Assignment, error)
	Accept(ctx context.Context, id, agencyID uuid.UUID) (Assignment, error)
	Reject(ctx context.Context, id, agencyID uuid.UUID, reason string) (Assignment, error)
	Complete(ctx context.Context, id, agencyID uuid.UUID) (Assignment, error)
	ExpireStale(ctx context.Context, now time.Time) ([]Assignment, error)
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const assignmentColumns = `id, lead_id, agency_id, territory_key, sequence, assignment_type,
	status, priority, metadata, reject_reason, assigned_by, expires_at, responded_at,
	completed_at, created_at, updated_at`

func scanAssignment(row pgx.Row) (Assignment, error) {
	var a Assignment
	err := row.Scan(
		&a.ID, &a.LeadID, &a.AgencyID, &a.TerritoryKey, &a.Sequence, &a.Type,
		&a.Status, &a.Priority, &a.Metadata, &a.RejectReason, &a.AssignedBy,
		&a.ExpiresAt, &a.RespondedAt, &a.CompletedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

// CommitRoundRobin atomically advances the rotation cursor, consumes one
// capacity unit, and inserts the pending assignment. All three happen in one
// transaction; any failure rolls the whole commit back so a retry starts from
// a clean slate.
func (r *Repository) CommitRoundRobin(ctx context.Context, params CommitParams) (Assignment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Assignment{}, err
	}
	defer tx.Rollback(ctx)

	newSeq, err := advanceRotation(ctx, tx, params.TerritoryKey, params.AgencyID, params.ExpectedSeq)
	if err != nil {
		return Assignment{}, err
	}

	if err := consumeUnit(ctx, tx, params.AgencyID); err != nil {
		return Assignment{}, err
	}

	a, err := scanAssignment(tx.QueryRow(ctx, `
		INSERT INTO lead_assignments (lead_id, agency_id, territory_key, sequence, assignment_type, status, priority, assigned_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+assignmentColumns,
		params.LeadID, params.AgencyID, params.TerritoryKey, newSeq,
		domain.TypeRoundRobin, domain.StatusPending, params.Priority,
		params.AssignedBy, params.ExpiresAt,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Assignment{}, ErrDuplicateAssignment
		}
		return Assignment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Assignment{}, err
	}
	return a, nil
}

// advanceRotation performs the compare-and-swap on the territory's sequence.
// An expected sequence of zero means the caller saw no cursor yet, so the row
// is created; losing the insert race is reported the same way as a stale
// sequence.
func advanceRotation(ctx context.Context, tx pgx.Tx, territoryKey string, agencyID uuid.UUID, expectedSeq int64) (int64, error) {
	var newSeq int64
	var err error
	if expectedSeq == 0 {
		err = tx.QueryRow(ctx, `
			INSERT INTO rotation_states (territory_key, last_agency_id, seq)
			VALUES ($1, $2, 1)
			ON CONFLICT (territory_key) DO NOTHING
			RETURNING seq`, territoryKey, agencyID).Scan(&newSeq)
	} else {
		err = tx.QueryRow(ctx, `
			UPDATE rotation_states
			SET last_agency_id = $2, seq = seq + 1, updated_at = now()
			WHERE territory_key = $1 AND seq = $3
			RETURNING seq`, territoryKey, agencyID, expectedSeq).Scan(&newSeq)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrSequenceConflict
	}
	return newSeq, err
}

// consumeUnit takes one capacity unit from the agency's open subscription.
// The WHERE clause re-checks capacity under the row lock, so a concurrent
// commit cannot push the counter past the plan limit.
func consumeUnit(ctx context.Context, tx pgx.Tx, agencyID uuid.UUID) error {
	tag, err := tx.Exec(ctx, `
		UPDATE subscriptions
		SET current_units = current_units + 1, updated_at = now()
		WHERE agency_id = $1
		  AND (status = 'active' OR (status = 'trial' AND trial_ends_at > now()))
		  AND (max_units = 0 OR current_units < max_units)`, agencyID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCapacityExhausted
	}
	return nil
}

// releaseUnit returns one capacity unit. The floor guard makes a double
// release harmless.
func releaseUnit(ctx context.Context, tx pgx.Tx, agencyID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE subscriptions SET current_units = current_units - 1, updated_at = now()
		WHERE agency_id = $1 AND current_units > 0`, agencyID)
	return err
}

// CreateManual inserts an operator-made assignment. It consumes a capacity
// unit but does not touch the rotation cursor.
func (r *Repository) CreateManual(ctx context.Context, params ManualParams) (Assignment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Assignment{}, err
	}
	defer tx.Rollback(ctx)

	if err := consumeUnit(ctx, tx, params.AgencyID); err != nil {
		return Assignment{}, err
	}

	a, err := scanAssignment(tx.QueryRow(ctx, `
		INSERT INTO lead_assignments (lead_id, agency_id, assignment_type, status, priority, metadata, assigned_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+assignmentColumns,
		params.LeadID, params.AgencyID, domain.TypeManual, domain.StatusPending,
		params.Priority, params.Metadata, params.AssignedBy, params.ExpiresAt,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Assignment{}, ErrDuplicateAssignment
		}
		return Assignment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Assignment{}, err
	}
	return a, nil
}

// GetRotation returns the rotation cursor for a territory key. A missing row
// is reported as sequence zero, which CommitRoundRobin interprets as "create".
func (r *Repository) GetRotation(ctx context.Context, territoryKey string) (RotationState, error) {
	state := RotationState{TerritoryKey: territoryKey}
	err := r.pool.QueryRow(ctx, `
		SELECT last_agency_id, seq FROM rotation_states WHERE territory_key = $1`,
		territoryKey).Scan(&state.LastAgencyID, &state.Seq)
	if errors.Is(err, pgx.ErrNoRows) {
		return state, nil
	}
	return state, err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Assignment, error) {
	a, err := scanAssignment(r.pool.QueryRow(ctx, `
		SELECT `+assignmentColumns+` FROM lead_assignments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Assignment{}, ErrNotFound
	}
	return a, err
}

func (r *Repository) ListByLead(ctx context.Context, leadID uuid.UUID) ([]Assignment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+assignmentColumns+` FROM lead_assignments
		WHERE lead_id = $1 ORDER BY created_at DESC`, leadID)
	if err != nil {
		return nil, err
	}
	return collectAssignments(rows)
}

func (r *Repository) ListByAgency(ctx context.Context, agencyID uuid.UUID, filters ListFilters) ([]Assignment, error) {
	limit := filters.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `SELECT ` + assignmentColumns + ` FROM lead_assignments WHERE agency_id = $1`
	args := []interface{}{agencyID}
	if filters.Status != nil {
		args = append(args, *filters.Status)
		query += ` AND status = $2`
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectAssignments(rows)
}

func collectAssignments(rows pgx.Rows) ([]Assignment, error) {
	defer rows.Close()
	items := make([]Assignment, 0)
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

// Accept moves a pending assignment to accepted. The agency scope keeps one
// agency from acting on another's assignment.
func (r *Repository) Accept(ctx context.Context, id, agencyID uuid.UUID) (Assignment, error) {
	a, err := scanAssignment(r.pool.QueryRow(ctx, `
		UPDATE lead_assignments
		SET status = $3, responded_at = now(), updated_at = now()
		WHERE id = $1 AND agency_id = $2 AND status = $4
		RETURNING `+assignmentColumns,
		id, agencyID, domain.StatusAccepted, domain.StatusPending,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return r.classifyMiss(ctx, id, agencyID)
	}
	return a, err
}

// Reject moves a pending assignment to rejected and releases the capacity
// unit in the same transaction.
func (r *Repository) Reject(ctx context.Context, id, agencyID uuid.UUID, reason string) (Assignment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Assignment{}, err
	}
	defer tx.Rollback(ctx)

	a, err := scanAssignment(tx.QueryRow(ctx, `
		UPDATE lead_assignments
		SET status = $3, reject_reason = $4, responded_at = now(), updated_at = now()
		WHERE id = $1 AND agency_id = $2 AND status = $5
		RETURNING `+assignmentColumns,
		id, agencyID, domain.StatusRejected, reason, domain.StatusPending,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return r.classifyMiss(ctx, id, agencyID)
	}
	if err != nil {
		return Assignment{}, err
	}

	if err := releaseUnit(ctx, tx, agencyID); err != nil {
		return Assignment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Assignment{}, err
	}
	return a, nil
}

// Complete moves an accepted assignment to completed. The consumed capacity
// unit stays counted until the subscription renews.
func (r *Repository) Complete(ctx context.Context, id, agencyID uuid.UUID) (Assignment, error) {
	a, err := scanAssignment(r.pool.QueryRow(ctx, `
		UPDATE lead_assignments
		SET status = $3, completed_at = now(), updated_at = now()
		WHERE id = $1 AND agency_id = $2 AND status = $4
		RETURNING `+assignmentColumns,
		id, agencyID, domain.StatusCompleted, domain.StatusAccepted,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return r.classifyMiss(ctx, id, agencyID)
	}
	return a, err
}

// classifyMiss distinguishes a missing assignment from one in the wrong state
// after a conditional update matched no row.
func (r *Repository) classifyMiss(ctx context.Context, id, agencyID uuid.UUID) (Assignment, error) {
	a, err := scanAssignment(r.pool.QueryRow(ctx, `
		SELECT `+assignmentColumns+` FROM lead_assignments
		WHERE id = $1 AND agency_id = $2`, id, agencyID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Assignment{}, ErrNotFound
	}
	if err != nil {
		return Assignment{}, err
	}
	return a, ErrInvalidState
}

// ExpireStale expires every pending assignment whose response window has
// closed, releasing each agency's capacity unit. Returns the expired rows so
// the caller can emit events.
func (r *Repository) ExpireStale(ctx context.Context, now time.Time) ([]Assignment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		UPDATE lead_assignments
		SET status = $2, updated_at = now()
		WHERE status = $1 AND expires_at IS NOT NULL AND expires_at <= $3
		RETURNING `+assignmentColumns,
		domain.StatusPending, domain.StatusExpired, now,
	)
	if err != nil {
		return nil, err
	}
	expired, err := collectAssignments(rows)
	if err != nil {
		return nil, err
	}

	for _, a := range expired {
		if err := releaseUnit(ctx, tx, a.AgencyID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return expired, nil
}
