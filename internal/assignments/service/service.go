// Package service implements the assignment ledger operations: responding to
// assignments, manual assignment, and the expiry sweep.
package service

import (
	"context"
	"errors"
	"time"

	"leadmarket_backend/internal/assignments/domain"
	"leadmarket_backend/internal/assignments/repository"
	"leadmarket_backend/internal/assignments/transport"
	"leadmarket_backend/internal/audit"
	"leadmarket_backend/internal/events"
	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
)

type Service struct {
	ledger repository.Ledger
	bus    events.Bus
	audit  *audit.Recorder
	log    *logger.Logger
	cfg    config.RoutingConfig
}

func New(ledger repository.Ledger, bus events.Bus, auditor *audit.Recorder, log *logger.Logger, cfg config.RoutingConfig) *Service {
	return &Service{ledger: ledger, bus: bus, audit: auditor, log: log, cfg: cfg}
}

// Accept marks a pending assignment as accepted by the agency.
func (s *Service) Accept(ctx context.Context, id, agencyID uuid.UUID, actorID *uuid.UUID) (transport.AssignmentResponse, error) {
	a, err := s.ledger.Accept(ctx, id, agencyID)
	if err != nil {
		return transport.AssignmentResponse{}, mapLedgerError(err, a)
	}

	s.audit.Record(ctx, "assignment.accepted", actorID, map[string]interface{}{
		"assignmentId": a.ID,
		"leadId":       a.LeadID,
		"agencyId":     a.AgencyID,
	})
	s.bus.Publish(ctx, events.AssignmentAccepted{
		BaseEvent:    events.NewBaseEvent(),
		AssignmentID: a.ID,
		LeadID:       a.LeadID,
		AgencyID:     a.AgencyID,
	})
	s.log.AssignmentEvent("accepted", a.LeadID.String(), a.AgencyID.String(), sequenceOf(a))

	return toResponse(a), nil
}

// Reject marks a pending assignment as rejected. A reason is mandatory; the
// consumed capacity unit is released as part of the same transaction.
func (s *Service) Reject(ctx context.Context, id, agencyID uuid.UUID, reason string, actorID *uuid.UUID) (transport.AssignmentResponse, error) {
	if reason == "" {
		return transport.AssignmentResponse{}, apperr.Validation("rejection reason is required")
	}

	a, err := s.ledger.Reject(ctx, id, agencyID, reason)
	if err != nil {
		return transport.AssignmentResponse{}, mapLedgerError(err, a)
	}

	s.audit.Record(ctx, "assignment.rejected", actorID, map[string]interface{}{
		"assignmentId": a.ID,
		"leadId":       a.LeadID,
		"agencyId":     a.AgencyID,
		"reason":       reason,
	})
	s.bus.Publish(ctx, events.AssignmentRejected{
		BaseEvent:    events.NewBaseEvent(),
		AssignmentID: a.ID,
		LeadID:       a.LeadID,
		AgencyID:     a.AgencyID,
		Reason:       reason,
	})
	s.log.AssignmentEvent("rejected", a.LeadID.String(), a.AgencyID.String(), sequenceOf(a))

	return toResponse(a), nil
}

// Complete marks an accepted assignment as completed. The capacity unit stays
// consumed until the subscription renews.
func (s *Service) Complete(ctx context.Context, id, agencyID uuid.UUID, actorID *uuid.UUID) (transport.AssignmentResponse, error) {
	a, err := s.ledger.Complete(ctx, id, agencyID)
	if err != nil {
		return transport.AssignmentResponse{}, mapLedgerError(err, a)
	}

	s.audit.Record(ctx, "assignment.completed", actorID, map[string]interface{}{
		"assignmentId": a.ID,
		"leadId":       a.LeadID,
		"agencyId":     a.AgencyID,
	})
	s.bus.Publish(ctx, events.AssignmentCompleted{
		BaseEvent:    events.NewBaseEvent(),
		AssignmentID: a.ID,
		LeadID:       a.LeadID,
		AgencyID:     a.AgencyID,
	})

	return toResponse(a), nil
}

// AssignManual creates an operator-made assignment outside the rotation.
func (s *Service) AssignManual(ctx context.Context, req transport.ManualAssignRequest, actorID *uuid.UUID) (transport.AssignmentResponse, error) {
	expiresAt := time.Now().Add(s.cfg.GetAssignmentTimeout())
	var priority int
	if req.Priority != nil {
		priority = *req.Priority
	}
	a, err := s.ledger.CreateManual(ctx, repository.ManualParams{
		LeadID:     req.LeadID,
		AgencyID:   req.AgencyID,
		Priority:   priority,
		Metadata:   req.Metadata,
		AssignedBy: actorID,
		ExpiresAt:  &expiresAt,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateAssignment):
			return transport.AssignmentResponse{}, apperr.Conflict("lead already has an open assignment")
		case errors.Is(err, repository.ErrCapacityExhausted):
			return transport.AssignmentResponse{}, apperr.Conflict("agency has no free capacity")
		}
		return transport.AssignmentResponse{}, err
	}

	s.audit.Record(ctx, "assignment.manual", actorID, map[string]interface{}{
		"assignmentId": a.ID,
		"leadId":       a.LeadID,
		"agencyId":     a.AgencyID,
	})
	s.bus.Publish(ctx, events.LeadAssigned{
		BaseEvent:      events.NewBaseEvent(),
		AssignmentID:   a.ID,
		LeadID:         a.LeadID,
		AgencyID:       a.AgencyID,
		AssignmentType: string(a.Type),
		AssignedByID:   actorID,
	})
	s.log.AssignmentEvent("manual_assigned", a.LeadID.String(), a.AgencyID.String(), 0)

	return toResponse(a), nil
}

// Get returns one assignment by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (transport.AssignmentResponse, error) {
	a, err := s.ledger.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.AssignmentResponse{}, apperr.NotFound("assignment not found")
		}
		return transport.AssignmentResponse{}, err
	}
	return toResponse(a), nil
}

// ListByLead returns the full assignment history of a lead, newest first.
func (s *Service) ListByLead(ctx context.Context, leadID uuid.UUID) (transport.AssignmentListResponse, error) {
	items, err := s.ledger.ListByLead(ctx, leadID)
	if err != nil {
		return transport.AssignmentListResponse{}, err
	}
	return toListResponse(items), nil
}

// ListByAgency returns an agency's assignments, optionally filtered by status.
func (s *Service) ListByAgency(ctx context.Context, agencyID uuid.UUID, req transport.ListByAgencyRequest) (transport.AssignmentListResponse, error) {
	var status *domain.Status
	if req.Status != nil {
		st := domain.Status(*req.Status)
		if !domain.ValidStatus(st) {
			return transport.AssignmentListResponse{}, apperr.Validation("unknown assignment status")
		}
		status = &st
	}

	items, err := s.ledger.ListByAgency(ctx, agencyID, repository.ListFilters{
		Status: status,
		Limit:  req.Limit,
	})
	if err != nil {
		return transport.AssignmentListResponse{}, err
	}
	return toListResponse(items), nil
}

// ExpireStale sweeps pending assignments past their response window. Run by
// the scheduler. Returns the number of expired assignments.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	expired, err := s.ledger.ExpireStale(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	for _, a := range expired {
		s.audit.Record(ctx, "assignment.expired", nil, map[string]interface{}{
			"assignmentId": a.ID,
			"leadId":       a.LeadID,
			"agencyId":     a.AgencyID,
		})
		s.bus.Publish(ctx, events.AssignmentExpired{
			BaseEvent:    events.NewBaseEvent(),
			AssignmentID: a.ID,
			LeadID:       a.LeadID,
			AgencyID:     a.AgencyID,
		})
		s.log.AssignmentEvent("expired", a.LeadID.String(), a.AgencyID.String(), sequenceOf(a))
	}

	return len(expired), nil
}

// mapLedgerError converts repository sentinels into typed domain errors. On
// an invalid transition the fetched row carries the current status for the
// error details.
func mapLedgerError(err error, a repository.Assignment) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("assignment not found")
	case errors.Is(err, repository.ErrInvalidState):
		return apperr.Conflict("invalid status transition").
			WithDetails(map[string]interface{}{"currentStatus": a.Status})
	}
	return err
}

func sequenceOf(a repository.Assignment) int64 {
	if a.Sequence == nil {
		return 0
	}
	return *a.Sequence
}

func toResponse(a repository.Assignment) transport.AssignmentResponse {
	return transport.AssignmentResponse{
		ID:           a.ID,
		LeadID:       a.LeadID,
		AgencyID:     a.AgencyID,
		TerritoryKey: a.TerritoryKey,
		Sequence:     a.Sequence,
		Type:         string(a.Type),
		Status:       string(a.Status),
		Priority:     a.Priority,
		Metadata:     a.Metadata,
		RejectReason: a.RejectReason,
		AssignedBy:   a.AssignedBy,
		ExpiresAt:    a.ExpiresAt,
		RespondedAt:  a.RespondedAt,
		CompletedAt:  a.CompletedAt,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func toListResponse(items []repository.Assignment) transport.AssignmentListResponse {
	resp := transport.AssignmentListResponse{
		Items: make([]transport.AssignmentResponse, len(items)),
		Total: len(items),
	}
	for i, a := range items {
		resp.Items[i] = toResponse(a)
	}
	return resp
}
