// Package service implements lead intake and retrieval.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"leadmarket_backend/internal/events"
	"leadmarket_backend/internal/leads/repository"
	"leadmarket_backend/internal/leads/transport"
	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/phone"

	"github.com/google/uuid"
)

type Service struct {
	repo *repository.Repository
	bus  events.Bus
}

func New(repo *repository.Repository, bus events.Bus) *Service {
	return &Service{repo: repo, bus: bus}
}

// Intake stores an inbound lead and announces it. The source label comes
// from the authenticated intake key, never from the payload.
func (s *Service) Intake(ctx context.Context, req transport.IntakeRequest, source string) (transport.LeadResponse, error) {
	var phoneNumber *string
	if req.Phone != nil {
		normalized := phone.NormalizeE164(*req.Phone)
		phoneNumber = &normalized
	}

	// The raw payload is kept verbatim for troubleshooting mis-parsed leads.
	raw, err := json.Marshal(req)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	lead, err := s.repo.Create(ctx, repository.CreateParams{
		FirstName:  strings.TrimSpace(req.FirstName),
		LastName:   strings.TrimSpace(req.LastName),
		Email:      req.Email,
		Phone:      phoneNumber,
		Zipcode:    strings.TrimSpace(req.Zipcode),
		City:       strings.TrimSpace(req.City),
		County:     strings.TrimSpace(req.County),
		State:      strings.ToUpper(strings.TrimSpace(req.State)),
		Source:     source,
		Notes:      req.Notes,
		RawPayload: raw,
	})
	if err != nil {
		return transport.LeadResponse{}, err
	}

	s.bus.Publish(ctx, events.LeadReceived{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		Zipcode:   lead.Zipcode,
		City:      lead.City,
		State:     lead.State,
		Source:    lead.Source,
	})

	return toResponse(lead), nil
}

// Get returns one lead by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.LeadResponse{}, apperr.NotFound("lead not found")
		}
		return transport.LeadResponse{}, err
	}
	return toResponse(lead), nil
}

// List returns leads matching the optional filters, newest first.
func (s *Service) List(ctx context.Context, req transport.ListLeadsRequest) (transport.LeadListResponse, error) {
	items, err := s.repo.List(ctx, repository.ListFilters{
		State:  req.State,
		Source: req.Source,
		Limit:  req.Limit,
	})
	if err != nil {
		return transport.LeadListResponse{}, err
	}

	resp := transport.LeadListResponse{
		Items: make([]transport.LeadResponse, len(items)),
		Total: len(items),
	}
	for i, l := range items {
		resp.Items[i] = toResponse(l)
	}
	return resp, nil
}

func toResponse(l repository.Lead) transport.LeadResponse {
	return transport.LeadResponse{
		ID:        l.ID,
		FirstName: l.FirstName,
		LastName:  l.LastName,
		Email:     l.Email,
		Phone:     l.Phone,
		Zipcode:   l.Zipcode,
		City:      l.City,
		County:    l.County,
		State:     l.State,
		Source:    l.Source,
		Notes:     l.Notes,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
}
