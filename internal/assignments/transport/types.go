// Package transport defines the request/response DTOs for the assignments API.
package transport

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type ManualAssignRequest struct {
	LeadID   uuid.UUID       `json:"leadId" validate:"required"`
	AgencyID uuid.UUID       `json:"agencyId" validate:"required"`
	Priority *int            `json:"priority,omitempty" validate:"omitempty,min=1,max=5"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

type RejectRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

type ListByAgencyRequest struct {
	Status *string `form:"status"`
	Limit  int     `form:"limit"`
}

type AssignmentResponse struct {
	ID           uuid.UUID       `json:"id"`
	LeadID       uuid.UUID       `json:"leadId"`
	AgencyID     uuid.UUID       `json:"agencyId"`
	TerritoryKey *string         `json:"territoryKey,omitempty"`
	Sequence     *int64          `json:"sequence,omitempty"`
	Type         string          `json:"type"`
	Status       string          `json:"status"`
	Priority     int             `json:"priority,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	RejectReason *string         `json:"rejectReason,omitempty"`
	AssignedBy   *uuid.UUID      `json:"assignedBy,omitempty"`
	ExpiresAt    *time.Time      `json:"expiresAt,omitempty"`
	RespondedAt  *time.Time      `json:"respondedAt,omitempty"`
	CompletedAt  *time.Time      `json:"completedAt,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

type AssignmentListResponse struct {
	Items []AssignmentResponse `json:"items"`
	Total int                  `json:"total"`
}
