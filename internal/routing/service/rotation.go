package service

import (
	"leadmarket_backend/internal/routing/ports"

	"github.com/google/uuid"
)

// nextCandidate picks the agency that should receive the next lead for a
// territory. Candidates must already be in resolution order. The pick is the
// candidate after the cursor's last recipient, wrapping around; when the
// cursor is empty or its agency left the pool, the rotation restarts at the
// first candidate.
func nextCandidate(candidates []ports.Candidate, lastAgencyID *uuid.UUID) (ports.Candidate, bool) {
	if len(candidates) == 0 {
		return ports.Candidate{}, false
	}
	if lastAgencyID == nil {
		return candidates[0], true
	}

	for i, c := range candidates {
		if c.AgencyID == *lastAgencyID {
			return candidates[(i+1)%len(candidates)], true
		}
	}
	return candidates[0], true
}
