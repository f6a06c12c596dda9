// Package service implements the territory index: each agency's set of
// coverage records with uniqueness, soft deletion, and a per-agency cap.
package service

import (
	"context"
	"errors"

	"leadmarket_backend/internal/audit"
	"leadmarket_backend/internal/territories/domain"
	"leadmarket_backend/internal/territories/repository"
	"leadmarket_backend/internal/territories/transport"
	"leadmarket_backend/platform/apperr"

	"github.com/google/uuid"
)

type Service struct {
	store repository.Store
	audit *audit.Recorder
}

func New(store repository.Store, auditor *audit.Recorder) *Service {
	return &Service{store: store, audit: auditor}
}

// Add appends a new active coverage record for the agency. It fails with a
// conflict when an active record with the same (kind, value) already exists,
// or when the agency's territory cap is reached (0 = unlimited).
func (s *Service) Add(ctx context.Context, agencyID uuid.UUID, req transport.AddTerritoryRequest, actorID *uuid.UUID) (transport.TerritoryResponse, error) {
	if !domain.ValidKind(req.Kind) {
		return transport.TerritoryResponse{}, apperr.Validation("unknown territory kind")
	}

	exists, err := s.store.ActiveExists(ctx, agencyID, req.Kind, req.Value)
	if err != nil {
		return transport.TerritoryResponse{}, err
	}
	if exists {
		return transport.TerritoryResponse{}, apperr.Conflict("duplicate territory")
	}

	limit, err := s.store.AgencyTerritoryLimit(ctx, agencyID)
	if err != nil {
		if errors.Is(err, repository.ErrAgencyNotFound) {
			return transport.TerritoryResponse{}, apperr.NotFound("agency not found")
		}
		return transport.TerritoryResponse{}, err
	}
	if limit > 0 {
		count, err := s.store.CountActive(ctx, agencyID)
		if err != nil {
			return transport.TerritoryResponse{}, err
		}
		if count >= limit {
			return transport.TerritoryResponse{}, apperr.Conflict("territory capacity exceeded").
				WithDetails(map[string]interface{}{"limit": limit})
		}
	}

	priority := domain.PriorityDefault
	if req.Priority != nil {
		priority = *req.Priority
	}
	if !domain.ValidPriority(priority) {
		return transport.TerritoryResponse{}, apperr.Validation("priority must be between 1 and 5")
	}

	territory, err := s.store.Insert(ctx, repository.CreateParams{
		AgencyID:       agencyID,
		Kind:           req.Kind,
		Value:          req.Value,
		StateCode:      req.StateCode,
		County:         req.County,
		City:           req.City,
		Priority:       priority,
		SubscriptionID: req.SubscriptionID,
	})
	if err != nil {
		// The partial unique index closes the check-then-insert race.
		if errors.Is(err, repository.ErrDuplicate) {
			return transport.TerritoryResponse{}, apperr.Conflict("duplicate territory")
		}
		return transport.TerritoryResponse{}, err
	}

	s.audit.Record(ctx, "territory.added", actorID, map[string]interface{}{
		"territoryId": territory.ID,
		"agencyId":    agencyID,
		"kind":        territory.Kind,
		"value":       territory.Value,
	})

	return toResponse(territory), nil
}

// Update merges the provided fields into an existing active record.
func (s *Service) Update(ctx context.Context, agencyID, territoryID uuid.UUID, req transport.UpdateTerritoryRequest, actorID *uuid.UUID) (transport.TerritoryResponse, error) {
	if req.Priority != nil && !domain.ValidPriority(*req.Priority) {
		return transport.TerritoryResponse{}, apperr.Validation("priority must be between 1 and 5")
	}

	territory, err := s.store.Update(ctx, agencyID, territoryID, repository.UpdateParams{
		Priority:  req.Priority,
		StateCode: req.StateCode,
		County:    req.County,
		City:      req.City,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.TerritoryResponse{}, apperr.NotFound("territory not found")
		}
		return transport.TerritoryResponse{}, err
	}

	s.audit.Record(ctx, "territory.updated", actorID, map[string]interface{}{
		"territoryId": territory.ID,
		"agencyId":    agencyID,
	})

	return toResponse(territory), nil
}

// Remove soft-deletes the record. Territories are never physically removed;
// a second removal is rejected, not silently accepted.
func (s *Service) Remove(ctx context.Context, agencyID, territoryID uuid.UUID, actorID *uuid.UUID) (transport.TerritoryResponse, error) {
	territory, err := s.store.SoftDelete(ctx, agencyID, territoryID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			if existing, getErr := s.store.GetAny(ctx, agencyID, territoryID); getErr == nil && existing.DeletedAt != nil {
				return transport.TerritoryResponse{}, apperr.NotFound("territory already removed")
			}
			return transport.TerritoryResponse{}, apperr.NotFound("territory not found")
		}
		return transport.TerritoryResponse{}, err
	}

	s.audit.Record(ctx, "territory.removed", actorID, map[string]interface{}{
		"territoryId": territory.ID,
		"agencyId":    agencyID,
		"kind":        territory.Kind,
		"value":       territory.Value,
	})

	return toResponse(territory), nil
}

// List returns active, non-deleted records matching the optional filters.
func (s *Service) List(ctx context.Context, agencyID uuid.UUID, req transport.ListTerritoriesRequest) (transport.TerritoryListResponse, error) {
	items, err := s.store.List(ctx, agencyID, repository.ListFilters{
		Kind:      req.Kind,
		StateCode: req.StateCode,
		Search:    req.Search,
	})
	if err != nil {
		return transport.TerritoryListResponse{}, err
	}

	resp := transport.TerritoryListResponse{
		Items: make([]transport.TerritoryResponse, len(items)),
		Total: len(items),
	}
	for i, t := range items {
		resp.Items[i] = toResponse(t)
	}
	return resp, nil
}

// HasCoverage reports whether the agency actively covers (kind, value).
func (s *Service) HasCoverage(ctx context.Context, agencyID uuid.UUID, kind domain.Kind, value string) (bool, error) {
	if !domain.ValidKind(kind) {
		return false, apperr.Validation("unknown territory kind")
	}
	return s.store.ActiveExists(ctx, agencyID, kind, value)
}

func toResponse(t repository.Territory) transport.TerritoryResponse {
	return transport.TerritoryResponse{
		ID:             t.ID,
		AgencyID:       t.AgencyID,
		Kind:           t.Kind,
		Value:          t.Value,
		StateCode:      t.StateCode,
		County:         t.County,
		City:           t.City,
		Priority:       t.Priority,
		Active:         t.Active,
		SubscriptionID: t.SubscriptionID,
		DeletedAt:      t.DeletedAt,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}
