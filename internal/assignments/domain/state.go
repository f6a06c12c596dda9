// Package domain provides the assignment lifecycle state machine.
package domain

// Status is the lifecycle state of a lead assignment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusExpired   Status = "expired"
	StatusCompleted Status = "completed"
)

// AssignmentType records how the assignment was created: rotation commit,
// operator action, rule-driven automation, or a priority override.
type AssignmentType string

const (
	TypeRoundRobin AssignmentType = "round_robin"
	TypeManual     AssignmentType = "manual"
	TypeAuto       AssignmentType = "auto"
	TypePriority   AssignmentType = "priority"
)

// ValidType reports whether t is a recognized assignment type.
func ValidType(t AssignmentType) bool {
	switch t {
	case TypeRoundRobin, TypeManual, TypeAuto, TypePriority:
		return true
	}
	return false
}

var transitions = map[Status][]Status{
	StatusPending:  {StatusAccepted, StatusRejected, StatusExpired},
	StatusAccepted: {StatusCompleted},
}

// CanTransition reports whether moving from one status to another is allowed.
// Terminal statuses admit no further transitions.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func IsTerminal(s Status) bool {
	return len(transitions[s]) == 0
}

// ValidStatus reports whether s is a recognized assignment status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusExpired, StatusCompleted:
		return true
	}
	return false
}
