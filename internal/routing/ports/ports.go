// Package ports defines the narrow interfaces the routing pipeline depends
// on. Adapters wire them to the owning bounded contexts; tests substitute
// in-memory fakes.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrSequenceConflict means the rotation cursor moved between the read
	// and the commit. The pipeline retries with a fresh read.
	ErrSequenceConflict = errors.New("rotation sequence advanced concurrently")
	// ErrCapacityExhausted means the chosen agency lost its last free unit
	// between the capacity filter and the commit.
	ErrCapacityExhausted = errors.New("agency has no free capacity unit")
	// ErrDuplicateAssignment means the lead already holds an open assignment.
	ErrDuplicateAssignment = errors.New("lead already has an open assignment")
	// ErrLeadNotFound means the lead to be routed does not exist.
	ErrLeadNotFound = errors.New("lead not found")
)

// Location is a lead's geography used for coverage matching.
type Location struct {
	Zipcode string
	City    string
	County  string
	State   string
}

// Candidate is one agency's coverage of a location at a specific granularity.
type Candidate struct {
	AgencyID  uuid.UUID
	Kind      string
	Value     string
	Priority  int
	CreatedAt time.Time
}

// CoverageSource yields every active coverage record matching any tier of
// the location.
type CoverageSource interface {
	FindCovering(ctx context.Context, loc Location) ([]Candidate, error)
}

// CapacityGate narrows candidate agencies to those with a free capacity unit.
type CapacityGate interface {
	FilterWithCapacity(ctx context.Context, agencyIDs []uuid.UUID) (map[uuid.UUID]bool, error)
}

// LeadSource resolves a lead's location for routing.
type LeadSource interface {
	Location(ctx context.Context, leadID uuid.UUID) (Location, error)
}

// RotationState is the fairness cursor for one territory key. Seq zero means
// no cursor exists yet.
type RotationState struct {
	LastAgencyID *uuid.UUID
	Seq          int64
}

// CommitParams describes one assignment commit attempt. Priority records the
// weight of the winning coverage record on the ledger entry.
type CommitParams struct {
	LeadID       uuid.UUID
	AgencyID     uuid.UUID
	TerritoryKey string
	ExpectedSeq  int64
	Priority     int
	AssignedBy   *uuid.UUID
	ExpiresAt    *time.Time
}

// Committed is the durable result of a successful commit.
type Committed struct {
	AssignmentID uuid.UUID
	Sequence     int64
	ExpiresAt    *time.Time
	CreatedAt    time.Time
}

// AssignmentLedger reads the rotation cursor and performs the atomic commit
// of rotation advance, capacity consumption and assignment insert.
type AssignmentLedger interface {
	GetRotation(ctx context.Context, territoryKey string) (RotationState, error)
	CommitRoundRobin(ctx context.Context, params CommitParams) (Committed, error)
}
