// Package service implements the lead routing pipeline: coverage resolution,
// capacity filtering, round-robin selection, and the retried atomic commit.
package service

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"leadmarket_backend/internal/events"
	"leadmarket_backend/internal/routing/ports"
	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	reasonNoCoverage   = "no_coverage"
	reasonCoverageFull = "coverage_full"

	retryBackoffBase = 25 * time.Millisecond
)

type Service struct {
	coverage ports.CoverageSource
	capacity ports.CapacityGate
	leads    ports.LeadSource
	ledger   ports.AssignmentLedger
	bus      events.Bus
	log      *logger.Logger
	cfg      config.RoutingConfig

	// sleep is swapped out in tests to keep retries instant.
	sleep func(time.Duration)
}

func New(coverage ports.CoverageSource, capacity ports.CapacityGate, leads ports.LeadSource, ledger ports.AssignmentLedger, bus events.Bus, log *logger.Logger, cfg config.RoutingConfig) *Service {
	return &Service{
		coverage: coverage,
		capacity: capacity,
		leads:    leads,
		ledger:   ledger,
		bus:      bus,
		log:      log,
		cfg:      cfg,
		sleep:    time.Sleep,
	}
}

// Result describes a successful routing decision.
type Result struct {
	AssignmentID uuid.UUID
	LeadID       uuid.UUID
	AgencyID     uuid.UUID
	TerritoryKey string
	Tier         string
	Sequence     int64
	ExpiresAt    *time.Time
}

// AssignLeadByID loads the lead's location and routes it.
func (s *Service) AssignLeadByID(ctx context.Context, leadID uuid.UUID, actorID *uuid.UUID) (Result, error) {
	loc, err := s.leads.Location(ctx, leadID)
	if err != nil {
		if errors.Is(err, ports.ErrLeadNotFound) {
			return Result{}, apperr.NotFound("lead not found")
		}
		return Result{}, err
	}
	return s.AssignLead(ctx, leadID, loc, actorID)
}

// AssignLead routes one lead to an agency. Resolution picks the most
// specific covered tier, the capacity gate drops full agencies, and the
// round-robin cursor chooses among the rest. The commit is optimistic; a
// concurrent commit on the same territory triggers a re-read and retry with
// jittered backoff, up to the configured maximum attempts.
func (s *Service) AssignLead(ctx context.Context, leadID uuid.UUID, loc ports.Location, actorID *uuid.UUID) (Result, error) {
	rows, err := s.coverage.FindCovering(ctx, loc)
	if err != nil {
		return Result{}, err
	}

	res, ok := resolveTier(loc, rows)
	if !ok {
		return Result{}, apperr.Unprocessable("no agency covers this location").
			WithDetails(map[string]interface{}{"reason": reasonNoCoverage})
	}

	maxAttempts := s.cfg.GetAssignMaxAttempts()
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	// Agencies that turn out to be full mid-flight are dropped from the
	// pool for the remaining attempts.
	excluded := make(map[uuid.UUID]bool)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		eligible, err := s.eligibleCandidates(ctx, res, excluded)
		if err != nil {
			return Result{}, err
		}
		if len(eligible) == 0 {
			return Result{}, apperr.Unprocessable("all covering agencies are at capacity").
				WithDetails(map[string]interface{}{"reason": reasonCoverageFull, "tier": string(res.Tier)})
		}

		state, err := s.ledger.GetRotation(ctx, res.TerritoryKey)
		if err != nil {
			return Result{}, err
		}

		pick, _ := nextCandidate(eligible, state.LastAgencyID)

		expiresAt := time.Now().Add(s.cfg.GetAssignmentTimeout())
		committed, err := s.ledger.CommitRoundRobin(ctx, ports.CommitParams{
			LeadID:       leadID,
			AgencyID:     pick.AgencyID,
			TerritoryKey: res.TerritoryKey,
			ExpectedSeq:  state.Seq,
			Priority:     pick.Priority,
			AssignedBy:   actorID,
			ExpiresAt:    &expiresAt,
		})
		switch {
		case err == nil:
			s.bus.Publish(ctx, events.LeadAssigned{
				BaseEvent:      events.NewBaseEvent(),
				AssignmentID:   committed.AssignmentID,
				LeadID:         leadID,
				AgencyID:       pick.AgencyID,
				AssignmentType: "round_robin",
				TerritoryKey:   res.TerritoryKey,
				Sequence:       committed.Sequence,
				AssignedByID:   actorID,
			})
			s.log.AssignmentEvent("assigned", leadID.String(), pick.AgencyID.String(), committed.Sequence)
			return Result{
				AssignmentID: committed.AssignmentID,
				LeadID:       leadID,
				AgencyID:     pick.AgencyID,
				TerritoryKey: res.TerritoryKey,
				Tier:         string(res.Tier),
				Sequence:     committed.Sequence,
				ExpiresAt:    committed.ExpiresAt,
			}, nil

		case errors.Is(err, ports.ErrDuplicateAssignment):
			return Result{}, apperr.Conflict("lead already has an open assignment")

		case errors.Is(err, ports.ErrCapacityExhausted):
			excluded[pick.AgencyID] = true

		case errors.Is(err, ports.ErrSequenceConflict):
			s.log.RoutingConflict(res.TerritoryKey, attempt)
			if attempt < maxAttempts {
				s.sleep(backoff(attempt))
			}

		default:
			return Result{}, err
		}
	}

	return Result{}, apperr.Conflict("assignment contention, retry later").
		WithDetails(map[string]interface{}{"territoryKey": res.TerritoryKey})
}

// eligibleCandidates applies the capacity gate to the resolved tier,
// preserving resolution order.
func (s *Service) eligibleCandidates(ctx context.Context, res resolution, excluded map[uuid.UUID]bool) ([]ports.Candidate, error) {
	ids := make([]uuid.UUID, 0, len(res.Candidates))
	for _, c := range res.Candidates {
		if !excluded[c.AgencyID] {
			ids = append(ids, c.AgencyID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	open, err := s.capacity.FilterWithCapacity(ctx, ids)
	if err != nil {
		return nil, err
	}

	eligible := make([]ports.Candidate, 0, len(res.Candidates))
	for _, c := range res.Candidates {
		if !excluded[c.AgencyID] && open[c.AgencyID] {
			eligible = append(eligible, c)
		}
	}
	return eligible, nil
}

func backoff(attempt int) time.Duration {
	base := retryBackoffBase * time.Duration(attempt)
	jitter := time.Duration(rand.Int63n(int64(retryBackoffBase)))
	return base + jitter
}
