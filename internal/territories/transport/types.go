// Package transport defines the request/response DTOs for the territories API.
package transport

import (
	"time"

	"leadmarket_backend/internal/territories/domain"

	"github.com/google/uuid"
)

type AddTerritoryRequest struct {
	Kind           domain.Kind `json:"kind" validate:"required,oneof=zipcode city county state"`
	Value          string      `json:"value" validate:"required,min=1,max=120"`
	StateCode      *string     `json:"stateCode,omitempty" validate:"omitempty,len=2"`
	County         *string     `json:"county,omitempty" validate:"omitempty,max=120"`
	City           *string     `json:"city,omitempty" validate:"omitempty,max=120"`
	Priority       *int        `json:"priority,omitempty" validate:"omitempty,min=1,max=5"`
	SubscriptionID *uuid.UUID  `json:"subscriptionId,omitempty"`
}

type UpdateTerritoryRequest struct {
	Priority  *int    `json:"priority,omitempty" validate:"omitempty,min=1,max=5"`
	StateCode *string `json:"stateCode,omitempty" validate:"omitempty,len=2"`
	County    *string `json:"county,omitempty" validate:"omitempty,max=120"`
	City      *string `json:"city,omitempty" validate:"omitempty,max=120"`
}

type ListTerritoriesRequest struct {
	Kind      *domain.Kind `form:"kind"`
	StateCode *string      `form:"state"`
	Search    *string      `form:"search"`
}

type TerritoryResponse struct {
	ID             uuid.UUID   `json:"id"`
	AgencyID       uuid.UUID   `json:"agencyId"`
	Kind           domain.Kind `json:"kind"`
	Value          string      `json:"value"`
	StateCode      *string     `json:"stateCode,omitempty"`
	County         *string     `json:"county,omitempty"`
	City           *string     `json:"city,omitempty"`
	Priority       int         `json:"priority"`
	Active         bool        `json:"active"`
	SubscriptionID *uuid.UUID  `json:"subscriptionId,omitempty"`
	DeletedAt      *time.Time  `json:"deletedAt,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

type TerritoryListResponse struct {
	Items []TerritoryResponse `json:"items"`
	Total int                 `json:"total"`
}
