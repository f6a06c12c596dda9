// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"leadmarket_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Leads Domain Events
// =============================================================================

// LeadReceived is published when a new lead arrives through the intake webhook.
type LeadReceived struct {
	BaseEvent
	LeadID  uuid.UUID `json:"leadId"`
	Zipcode string    `json:"zipcode"`
	City    string    `json:"city"`
	State   string    `json:"state"`
	Source  string    `json:"source,omitempty"`
}

func (e LeadReceived) EventName() string { return "leads.received" }

// =============================================================================
// Assignment Domain Events
// =============================================================================

// LeadAssigned is published after an assignment commit succeeds. The
// notification dispatcher listens for this event; its handling is strictly
// best-effort and never affects the assignment itself.
type LeadAssigned struct {
	BaseEvent
	AssignmentID   uuid.UUID  `json:"assignmentId"`
	LeadID         uuid.UUID  `json:"leadId"`
	AgencyID       uuid.UUID  `json:"agencyId"`
	AssignmentType string     `json:"assignmentType"`
	TerritoryKey   string     `json:"territoryKey,omitempty"`
	Sequence       int64      `json:"sequence"`
	AssignedByID   *uuid.UUID `json:"assignedById,omitempty"`
}

func (e LeadAssigned) EventName() string { return "assignments.lead.assigned" }

// AssignmentAccepted is published when an agency accepts a pending assignment.
type AssignmentAccepted struct {
	BaseEvent
	AssignmentID uuid.UUID `json:"assignmentId"`
	LeadID       uuid.UUID `json:"leadId"`
	AgencyID     uuid.UUID `json:"agencyId"`
}

func (e AssignmentAccepted) EventName() string { return "assignments.accepted" }

// AssignmentRejected is published when an agency rejects a pending assignment.
// Rejection releases the consumed subscription unit.
type AssignmentRejected struct {
	BaseEvent
	AssignmentID uuid.UUID `json:"assignmentId"`
	LeadID       uuid.UUID `json:"leadId"`
	AgencyID     uuid.UUID `json:"agencyId"`
	Reason       string    `json:"reason"`
}

func (e AssignmentRejected) EventName() string { return "assignments.rejected" }

// AssignmentCompleted is published when an accepted assignment is completed.
type AssignmentCompleted struct {
	BaseEvent
	AssignmentID uuid.UUID `json:"assignmentId"`
	LeadID       uuid.UUID `json:"leadId"`
	AgencyID     uuid.UUID `json:"agencyId"`
}

func (e AssignmentCompleted) EventName() string { return "assignments.completed" }

// AssignmentExpired is published for each pending assignment that passed its
// acceptance deadline and was transitioned by the expiry sweep.
type AssignmentExpired struct {
	BaseEvent
	AssignmentID uuid.UUID `json:"assignmentId"`
	LeadID       uuid.UUID `json:"leadId"`
	AgencyID     uuid.UUID `json:"agencyId"`
}

func (e AssignmentExpired) EventName() string { return "assignments.expired" }
