// Package transport defines the request/response DTOs for the leads API.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// IntakeRequest is the payload external sources post to the intake webhook.
type IntakeRequest struct {
	FirstName string  `json:"firstName" validate:"required,min=1,max=120"`
	LastName  string  `json:"lastName" validate:"required,min=1,max=120"`
	Email     *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Zipcode   string  `json:"zipcode" validate:"required,min=3,max=10"`
	City      string  `json:"city" validate:"required,min=1,max=120"`
	County    string  `json:"county,omitempty" validate:"omitempty,max=120"`
	State     string  `json:"state" validate:"required,len=2"`
	Notes     *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

type ListLeadsRequest struct {
	State  *string `form:"state"`
	Source *string `form:"source"`
	Limit  int     `form:"limit"`
}

type LeadResponse struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     *string   `json:"email,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	Zipcode   string    `json:"zipcode"`
	City      string    `json:"city"`
	County    string    `json:"county,omitempty"`
	State     string    `json:"state"`
	Source    string    `json:"source"`
	Notes     *string   `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IntakeAssignment reports where a freshly received lead was routed.
type IntakeAssignment struct {
	AssignmentID uuid.UUID  `json:"assignmentId"`
	AgencyID     uuid.UUID  `json:"agencyId"`
	TerritoryKey string     `json:"territoryKey,omitempty"`
	Sequence     int64      `json:"sequence"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}

// IntakeResponse is the webhook reply: the stored lead and its assignment.
type IntakeResponse struct {
	Lead       LeadResponse     `json:"lead"`
	Assignment IntakeAssignment `json:"assignment"`
}

type LeadListResponse struct {
	Items []LeadResponse `json:"items"`
	Total int            `json:"total"`
}

type CreateKeyRequest struct {
	Name   string `json:"name" validate:"required,min=1,max=120"`
	Source string `json:"source" validate:"required,min=1,max=120"`
}

// CreateKeyResponse carries the plaintext key exactly once, at creation.
type CreateKeyResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Source    string    `json:"source"`
	Key       string    `json:"key"`
	KeyPrefix string    `json:"keyPrefix"`
	CreatedAt time.Time `json:"createdAt"`
}

type KeyResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Source    string    `json:"source"`
	KeyPrefix string    `json:"keyPrefix"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}
