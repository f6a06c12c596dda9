// Package service implements the capacity gate: read-side checks that decide
// whether an agency can receive another lead under its subscription.
package service

import (
	"context"
	"errors"
	"time"

	"leadmarket_backend/internal/subscriptions/repository"
	"leadmarket_backend/platform/apperr"

	"github.com/google/uuid"
)

// Gate answers capacity questions for the routing pipeline. It never mutates
// counters; unit consumption happens inside the assignment commit transaction.
type Gate interface {
	FilterWithCapacity(ctx context.Context, agencyIDs []uuid.UUID) (map[uuid.UUID]bool, error)
}

type Service struct {
	repo *repository.Repository
}

func New(repo *repository.Repository) *Service {
	return &Service{repo: repo}
}

// FilterWithCapacity narrows candidate agencies to those that may accept
// another lead right now.
func (s *Service) FilterWithCapacity(ctx context.Context, agencyIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	return s.repo.FilterWithCapacity(ctx, agencyIDs)
}

// UsageResponse summarizes an agency's current subscription consumption.
type UsageResponse struct {
	AgencyID       uuid.UUID  `json:"agencyId"`
	Plan           string     `json:"plan"`
	Status         string     `json:"status"`
	PurchasedUnits int        `json:"purchasedUnits"`
	MaxUnits       int        `json:"maxUnits"`
	CurrentUnits   int        `json:"currentUnits"`
	Remaining      *int       `json:"remaining,omitempty"`
	RenewsAt       *time.Time `json:"renewsAt,omitempty"`
	TrialEndsAt    *time.Time `json:"trialEndsAt,omitempty"`
	Open           bool       `json:"open"`
}

// Usage returns the agency's subscription state. Remaining is omitted for
// unlimited plans (max units of zero).
func (s *Service) Usage(ctx context.Context, agencyID uuid.UUID) (UsageResponse, error) {
	sub, err := s.repo.GetByAgency(ctx, agencyID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return UsageResponse{}, apperr.NotFound("no subscription for agency")
		}
		return UsageResponse{}, err
	}

	resp := UsageResponse{
		AgencyID:       sub.AgencyID,
		Plan:           sub.Plan,
		Status:         sub.Status,
		PurchasedUnits: sub.PurchasedUnits,
		MaxUnits:       sub.MaxUnits,
		CurrentUnits:   sub.CurrentUnits,
		RenewsAt:       sub.RenewsAt,
		TrialEndsAt:    sub.TrialEndsAt,
		Open:           isOpen(sub, time.Now()),
	}
	if sub.MaxUnits > 0 {
		remaining := sub.MaxUnits - sub.CurrentUnits
		if remaining < 0 {
			remaining = 0
		}
		resp.Remaining = &remaining
	}
	return resp, nil
}

func isOpen(sub repository.Subscription, now time.Time) bool {
	switch sub.Status {
	case repository.StatusActive:
	case repository.StatusTrial:
		if sub.TrialEndsAt == nil || !sub.TrialEndsAt.After(now) {
			return false
		}
	default:
		return false
	}
	return sub.MaxUnits == 0 || sub.CurrentUnits < sub.MaxUnits
}
