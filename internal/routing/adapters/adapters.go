// Package adapters wires the routing ports to their owning bounded contexts.
package adapters

import (
	"context"
	"errors"

	assignrepo "leadmarket_backend/internal/assignments/repository"
	leadsrepo "leadmarket_backend/internal/leads/repository"
	leadstransport "leadmarket_backend/internal/leads/transport"
	"leadmarket_backend/internal/routing/ports"
	"leadmarket_backend/internal/routing/service"
	subsvc "leadmarket_backend/internal/subscriptions/service"
	terrrepo "leadmarket_backend/internal/territories/repository"

	"github.com/google/uuid"
)

// Coverage adapts the territories repository to the CoverageSource port.
type Coverage struct {
	repo *terrrepo.Repository
}

func NewCoverage(repo *terrrepo.Repository) *Coverage {
	return &Coverage{repo: repo}
}

func (a *Coverage) FindCovering(ctx context.Context, loc ports.Location) ([]ports.Candidate, error) {
	rows, err := a.repo.FindCovering(ctx, terrrepo.Location{
		Zipcode: loc.Zipcode,
		City:    loc.City,
		County:  loc.County,
		State:   loc.State,
	})
	if err != nil {
		return nil, err
	}

	candidates := make([]ports.Candidate, len(rows))
	for i, row := range rows {
		candidates[i] = ports.Candidate{
			AgencyID:  row.AgencyID,
			Kind:      string(row.Kind),
			Value:     row.Value,
			Priority:  row.Priority,
			CreatedAt: row.CreatedAt,
		}
	}
	return candidates, nil
}

// Capacity adapts the subscriptions service to the CapacityGate port.
type Capacity struct {
	gate subsvc.Gate
}

func NewCapacity(gate subsvc.Gate) *Capacity {
	return &Capacity{gate: gate}
}

func (a *Capacity) FilterWithCapacity(ctx context.Context, agencyIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	return a.gate.FilterWithCapacity(ctx, agencyIDs)
}

// Leads adapts the leads repository to the LeadSource port.
type Leads struct {
	repo *leadsrepo.Repository
}

func NewLeads(repo *leadsrepo.Repository) *Leads {
	return &Leads{repo: repo}
}

func (a *Leads) Location(ctx context.Context, leadID uuid.UUID) (ports.Location, error) {
	lead, err := a.repo.GetByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, leadsrepo.ErrNotFound) {
			return ports.Location{}, ports.ErrLeadNotFound
		}
		return ports.Location{}, err
	}
	return ports.Location{
		Zipcode: lead.Zipcode,
		City:    lead.City,
		County:  lead.County,
		State:   lead.State,
	}, nil
}

// Ledger adapts the assignments repository to the AssignmentLedger port.
type Ledger struct {
	repo *assignrepo.Repository
}

func NewLedger(repo *assignrepo.Repository) *Ledger {
	return &Ledger{repo: repo}
}

func (a *Ledger) GetRotation(ctx context.Context, territoryKey string) (ports.RotationState, error) {
	state, err := a.repo.GetRotation(ctx, territoryKey)
	if err != nil {
		return ports.RotationState{}, err
	}
	return ports.RotationState{
		LastAgencyID: state.LastAgencyID,
		Seq:          state.Seq,
	}, nil
}

func (a *Ledger) CommitRoundRobin(ctx context.Context, params ports.CommitParams) (ports.Committed, error) {
	assignment, err := a.repo.CommitRoundRobin(ctx, assignrepo.CommitParams{
		LeadID:       params.LeadID,
		AgencyID:     params.AgencyID,
		TerritoryKey: params.TerritoryKey,
		ExpectedSeq:  params.ExpectedSeq,
		Priority:     params.Priority,
		AssignedBy:   params.AssignedBy,
		ExpiresAt:    params.ExpiresAt,
	})
	if err != nil {
		switch {
		case errors.Is(err, assignrepo.ErrSequenceConflict):
			return ports.Committed{}, ports.ErrSequenceConflict
		case errors.Is(err, assignrepo.ErrCapacityExhausted):
			return ports.Committed{}, ports.ErrCapacityExhausted
		case errors.Is(err, assignrepo.ErrDuplicateAssignment):
			return ports.Committed{}, ports.ErrDuplicateAssignment
		}
		return ports.Committed{}, err
	}

	var seq int64
	if assignment.Sequence != nil {
		seq = *assignment.Sequence
	}
	return ports.Committed{
		AssignmentID: assignment.ID,
		Sequence:     seq,
		ExpiresAt:    assignment.ExpiresAt,
		CreatedAt:    assignment.CreatedAt,
	}, nil
}

// IntakeRouter adapts the routing service for the lead intake webhook, which
// routes each stored lead synchronously and reports the outcome to the source.
type IntakeRouter struct {
	svc *service.Service
}

func NewIntakeRouter(svc *service.Service) *IntakeRouter {
	return &IntakeRouter{svc: svc}
}

func (a *IntakeRouter) AssignLeadByID(ctx context.Context, leadID uuid.UUID, assignedBy *uuid.UUID) (leadstransport.IntakeAssignment, error) {
	result, err := a.svc.AssignLeadByID(ctx, leadID, assignedBy)
	if err != nil {
		return leadstransport.IntakeAssignment{}, err
	}
	return leadstransport.IntakeAssignment{
		AssignmentID: result.AssignmentID,
		AgencyID:     result.AgencyID,
		TerritoryKey: result.TerritoryKey,
		Sequence:     result.Sequence,
		ExpiresAt:    result.ExpiresAt,
	}, nil
}
