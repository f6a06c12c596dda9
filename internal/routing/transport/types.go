// Package transport defines the request/response DTOs for the routing API.
package transport

import (
	"time"

	"github.com/google/uuid"
)

type AssignLeadRequest struct {
	LeadID uuid.UUID `json:"leadId" validate:"required"`
}

type AssignLeadResponse struct {
	AssignmentID uuid.UUID  `json:"assignmentId"`
	LeadID       uuid.UUID  `json:"leadId"`
	AgencyID     uuid.UUID  `json:"agencyId"`
	TerritoryKey string     `json:"territoryKey"`
	Tier         string     `json:"tier"`
	Sequence     int64      `json:"sequence"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}
