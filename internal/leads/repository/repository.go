// Package repository provides persistence for leads and their intake keys.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("lead not found")

// Lead is one inbound consumer request waiting for, or holding, an agency
// assignment.
type Lead struct {
	ID         uuid.UUID
	FirstName  string
	LastName   string
	Email      *string
	Phone      *string
	Zipcode    string
	City       string
	County     string
	State      string
	Source     string
	Notes      *string
	RawPayload []byte
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type CreateParams struct {
	FirstName  string
	LastName   string
	Email      *string
	Phone      *string
	Zipcode    string
	City       string
	County     string
	State      string
	Source     string
	Notes      *string
	RawPayload []byte
}

type ListFilters struct {
	State  *string
	Source *string
	Limit  int
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leadColumns = `id, first_name, last_name, email, phone, zipcode, city, county, state,
	source, notes, raw_payload, created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var l Lead
	err := row.Scan(
		&l.ID, &l.FirstName, &l.LastName, &l.Email, &l.Phone, &l.Zipcode, &l.City,
		&l.County, &l.State, &l.Source, &l.Notes, &l.RawPayload, &l.CreatedAt, &l.UpdatedAt,
	)
	return l, err
}

func (r *Repository) Create(ctx context.Context, params CreateParams) (Lead, error) {
	return scanLead(r.pool.QueryRow(ctx, `
		INSERT INTO leads (first_name, last_name, email, phone, zipcode, city, county, state, source, notes, raw_payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+leadColumns,
		params.FirstName, params.LastName, params.Email, params.Phone, params.Zipcode,
		params.City, params.County, params.State, params.Source, params.Notes, params.RawPayload,
	))
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	l, err := scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return l, err
}

func (r *Repository) List(ctx context.Context, filters ListFilters) ([]Lead, error) {
	limit := filters.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	where := []string{"true"}
	args := []interface{}{}
	if filters.State != nil {
		args = append(args, strings.ToUpper(*filters.State))
		where = append(where, fmt.Sprintf("state = $%d", len(args)))
	}
	if filters.Source != nil {
		args = append(args, *filters.Source)
		where = append(where, fmt.Sprintf("source = $%d", len(args)))
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT %s FROM leads
		WHERE %s
		ORDER BY created_at DESC LIMIT $%d`, leadColumns, strings.Join(where, " AND "), len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Lead, 0)
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, l)
	}
	return items, rows.Err()
}
