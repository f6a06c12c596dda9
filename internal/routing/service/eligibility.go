package service

import (
	"fmt"
	"sort"
	"strings"

	"leadmarket_backend/internal/routing/ports"
	terrdomain "leadmarket_backend/internal/territories/domain"
)

// tierOrder is the coverage resolution order, most specific first. The first
// tier with any covering agency wins outright; less specific tiers are never
// consulted after that, even if every agency in the winning tier is full.
var tierOrder = []terrdomain.Kind{
	terrdomain.KindZipcode,
	terrdomain.KindCity,
	terrdomain.KindCounty,
	terrdomain.KindState,
}

// resolution is the outcome of tier selection for one lead.
type resolution struct {
	Tier         terrdomain.Kind
	TerritoryKey string
	Candidates   []ports.Candidate
}

// resolveTier groups coverage rows by kind and picks the most specific tier
// that has at least one candidate. Candidates are ordered by priority, then
// coverage age, then agency ID as a final deterministic tiebreak.
func resolveTier(loc ports.Location, rows []ports.Candidate) (resolution, bool) {
	byKind := make(map[terrdomain.Kind][]ports.Candidate)
	for _, row := range rows {
		kind := terrdomain.Kind(row.Kind)
		byKind[kind] = append(byKind[kind], row)
	}

	for _, tier := range tierOrder {
		candidates := byKind[tier]
		if len(candidates) == 0 {
			continue
		}
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].Priority != candidates[j].Priority {
				return candidates[i].Priority < candidates[j].Priority
			}
			if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
				return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
			}
			return candidates[i].AgencyID.String() < candidates[j].AgencyID.String()
		})
		return resolution{
			Tier:         tier,
			TerritoryKey: territoryKey(tier, loc),
			Candidates:   candidates,
		}, true
	}

	return resolution{}, false
}

// territoryKey builds the rotation cursor key for the winning tier. City and
// county names repeat across states, so those keys carry the state code.
func territoryKey(tier terrdomain.Kind, loc ports.Location) string {
	state := strings.ToUpper(strings.TrimSpace(loc.State))
	switch tier {
	case terrdomain.KindZipcode:
		return terrdomain.Key(tier, loc.Zipcode)
	case terrdomain.KindCity:
		return fmt.Sprintf("%s:%s", terrdomain.Key(tier, loc.City), state)
	case terrdomain.KindCounty:
		return fmt.Sprintf("%s:%s", terrdomain.Key(tier, loc.County), state)
	default:
		return terrdomain.Key(terrdomain.KindState, loc.State)
	}
}
