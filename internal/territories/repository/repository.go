package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"leadmarket_backend/internal/territories/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound       = errors.New("territory not found")
	ErrDuplicate      = errors.New("duplicate territory")
	ErrAgencyNotFound = errors.New("agency not found")
)

// Territory is one coverage record owned by exactly one agency.
type Territory struct {
	ID             uuid.UUID
	AgencyID       uuid.UUID
	Kind           domain.Kind
	Value          string
	StateCode      *string
	County         *string
	City           *string
	Priority       int
	Active         bool
	SubscriptionID *uuid.UUID
	DeletedAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type CreateParams struct {
	AgencyID       uuid.UUID
	Kind           domain.Kind
	Value          string
	StateCode      *string
	County         *string
	City           *string
	Priority       int
	SubscriptionID *uuid.UUID
}

// UpdateParams carries optional field updates; nil fields are left unchanged.
type UpdateParams struct {
	Priority  *int
	StateCode *string
	County    *string
	City      *string
}

// ListFilters narrows List results. The default scope is active, non-deleted
// records only.
type ListFilters struct {
	Kind      *domain.Kind
	StateCode *string
	Search    *string
}

// CoverageRow is the slim projection used by the eligibility resolver.
type CoverageRow struct {
	AgencyID  uuid.UUID
	Kind      domain.Kind
	Value     string
	Priority  int
	CreatedAt time.Time
}

// Store is the persistence surface the territory service depends on.
// The pgx Repository implements it in production; tests use in-memory fakes.
type Store interface {
	Insert(ctx context.Context, params CreateParams) (Territory, error)
	Update(ctx context.Context, agencyID, territoryID uuid.UUID, params UpdateParams) (Territory, error)
	SoftDelete(ctx context.Context, agencyID, territoryID uuid.UUID) (Territory, error)
	GetAny(ctx context.Context, agencyID, territoryID uuid.UUID) (Territory, error)
	List(ctx context.Context, agencyID uuid.UUID, filters ListFilters) ([]Territory, error)
	ActiveExists(ctx context.Context, agencyID uuid.UUID, kind domain.Kind, value string) (bool, error)
	CountActive(ctx context.Context, agencyID uuid.UUID) (int, error)
	AgencyTerritoryLimit(ctx context.Context, agencyID uuid.UUID) (int, error)
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const territoryColumns = `id, agency_id, kind, value, state_code, county, city, priority,
	active, subscription_id, deleted_at, created_at, updated_at`

func scanTerritory(row pgx.Row) (Territory, error) {
	var t Territory
	err := row.Scan(
		&t.ID, &t.AgencyID, &t.Kind, &t.Value, &t.StateCode, &t.County, &t.City, &t.Priority,
		&t.Active, &t.SubscriptionID, &t.DeletedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	return t, err
}

func (r *Repository) Insert(ctx context.Context, params CreateParams) (Territory, error) {
	value := domain.NormalizeValue(params.Kind, params.Value)

	t, err := scanTerritory(r.pool.QueryRow(ctx, `
		INSERT INTO territories (agency_id, kind, value, state_code, county, city, priority, subscription_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+territoryColumns,
		params.AgencyID, params.Kind, value, params.StateCode, params.County, params.City,
		params.Priority, params.SubscriptionID,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Territory{}, ErrDuplicate
		}
		return Territory{}, err
	}
	return t, nil
}

func (r *Repository) Update(ctx context.Context, agencyID, territoryID uuid.UUID, params UpdateParams) (Territory, error) {
	setClauses := []string{"updated_at = now()"}
	args := []interface{}{territoryID, agencyID}

	addSet := func(column string, value interface{}) {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.Priority != nil {
		addSet("priority", *params.Priority)
	}
	if params.StateCode != nil {
		addSet("state_code", *params.StateCode)
	}
	if params.County != nil {
		addSet("county", *params.County)
	}
	if params.City != nil {
		addSet("city", *params.City)
	}

	query := fmt.Sprintf(`
		UPDATE territories SET %s
		WHERE id = $1 AND agency_id = $2 AND active = true AND deleted_at IS NULL
		RETURNING %s`, strings.Join(setClauses, ", "), territoryColumns)

	t, err := scanTerritory(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Territory{}, ErrNotFound
	}
	return t, err
}

func (r *Repository) SoftDelete(ctx context.Context, agencyID, territoryID uuid.UUID) (Territory, error) {
	t, err := scanTerritory(r.pool.QueryRow(ctx, `
		UPDATE territories SET active = false, deleted_at = now(), updated_at = now()
		WHERE id = $1 AND agency_id = $2 AND active = true AND deleted_at IS NULL
		RETURNING `+territoryColumns,
		territoryID, agencyID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Territory{}, ErrNotFound
	}
	return t, err
}

// GetAny returns the record regardless of its active/deleted state. Used to
// distinguish "never existed" from "already removed".
func (r *Repository) GetAny(ctx context.Context, agencyID, territoryID uuid.UUID) (Territory, error) {
	t, err := scanTerritory(r.pool.QueryRow(ctx, `
		SELECT `+territoryColumns+`
		FROM territories WHERE id = $1 AND agency_id = $2`,
		territoryID, agencyID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Territory{}, ErrNotFound
	}
	return t, err
}

func (r *Repository) List(ctx context.Context, agencyID uuid.UUID, filters ListFilters) ([]Territory, error) {
	where := []string{"agency_id = $1", "active = true", "deleted_at IS NULL"}
	args := []interface{}{agencyID}

	if filters.Kind != nil {
		args = append(args, *filters.Kind)
		where = append(where, fmt.Sprintf("kind = $%d", len(args)))
	}
	if filters.StateCode != nil {
		args = append(args, strings.ToUpper(*filters.StateCode))
		where = append(where, fmt.Sprintf("state_code = $%d", len(args)))
	}
	if filters.Search != nil {
		args = append(args, "%"+strings.ToLower(*filters.Search)+"%")
		where = append(where, fmt.Sprintf("value LIKE $%d", len(args)))
	}

	query := fmt.Sprintf(`
		SELECT %s FROM territories
		WHERE %s
		ORDER BY kind ASC, value ASC`, territoryColumns, strings.Join(where, " AND "))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Territory, 0)
	for rows.Next() {
		t, err := scanTerritory(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}

	return items, rows.Err()
}

func (r *Repository) ActiveExists(ctx context.Context, agencyID uuid.UUID, kind domain.Kind, value string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM territories
			WHERE agency_id = $1 AND kind = $2 AND value = $3 AND active = true AND deleted_at IS NULL
		)`, agencyID, kind, domain.NormalizeValue(kind, value)).Scan(&exists)
	return exists, err
}

func (r *Repository) CountActive(ctx context.Context, agencyID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM territories
		WHERE agency_id = $1 AND active = true AND deleted_at IS NULL`, agencyID).Scan(&count)
	return count, err
}

// AgencyTerritoryLimit returns the agency's configured territory cap.
// Zero means unlimited.
func (r *Repository) AgencyTerritoryLimit(ctx context.Context, agencyID uuid.UUID) (int, error) {
	var limit int
	err := r.pool.QueryRow(ctx,
		`SELECT max_territories FROM agencies WHERE id = $1`, agencyID).Scan(&limit)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrAgencyNotFound
	}
	return limit, err
}

// Location is a lead's geographic location used for coverage matching.
type Location struct {
	Zipcode string
	City    string
	County  string
	State   string
}

// FindCovering returns every active coverage row matching any tier of the
// location. Tier selection and ordering happen in the routing service.
func (r *Repository) FindCovering(ctx context.Context, loc Location) ([]CoverageRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT agency_id, kind, value, priority, created_at
		FROM territories
		WHERE active = true AND deleted_at IS NULL AND (
			(kind = 'zipcode' AND value = $1)
			OR (kind = 'city' AND value = lower($2) AND state_code = upper($4))
			OR (kind = 'county' AND value = lower($3) AND state_code = upper($4))
			OR (kind = 'state' AND value = upper($4))
		)
		ORDER BY priority ASC, created_at ASC`,
		strings.TrimSpace(loc.Zipcode), strings.TrimSpace(loc.City),
		strings.TrimSpace(loc.County), strings.TrimSpace(loc.State),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]CoverageRow, 0)
	for rows.Next() {
		var row CoverageRow
		if err := rows.Scan(&row.AgencyID, &row.Kind, &row.Value, &row.Priority, &row.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, row)
	}

	return items, rows.Err()
}
