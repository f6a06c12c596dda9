package service

import (
	"context"
	"testing"
	"time"

	"leadmarket_backend/internal/events"
	"leadmarket_backend/internal/routing/ports"
	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
)

// fakeWorld implements every routing port over shared in-memory state, so a
// commit observably consumes capacity and advances the rotation cursor.
type fakeWorld struct {
	rows      []ports.Candidate
	units     map[uuid.UUID]int
	rotations map[string]ports.RotationState

	assignments []ports.CommitParams
	openLeads   map[uuid.UUID]bool

	// conflicts injects this many sequence conflicts before commits succeed.
	conflicts int

	// commitHook runs before each commit attempt's checks, to simulate
	// concurrent activity between the capacity filter and the commit.
	commitHook func(params ports.CommitParams)
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{
		units:     make(map[uuid.UUID]int),
		rotations: make(map[string]ports.RotationState),
		openLeads: make(map[uuid.UUID]bool),
	}
}

func (w *fakeWorld) FindCovering(_ context.Context, _ ports.Location) ([]ports.Candidate, error) {
	return w.rows, nil
}

func (w *fakeWorld) FilterWithCapacity(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	open := make(map[uuid.UUID]bool)
	for _, id := range ids {
		if w.units[id] > 0 {
			open[id] = true
		}
	}
	return open, nil
}

func (w *fakeWorld) Location(_ context.Context, _ uuid.UUID) (ports.Location, error) {
	return ports.Location{State: "IL"}, nil
}

func (w *fakeWorld) GetRotation(_ context.Context, territoryKey string) (ports.RotationState, error) {
	return w.rotations[territoryKey], nil
}

func (w *fakeWorld) CommitRoundRobin(_ context.Context, params ports.CommitParams) (ports.Committed, error) {
	if w.commitHook != nil {
		w.commitHook(params)
	}
	if w.conflicts > 0 {
		w.conflicts--
		return ports.Committed{}, ports.ErrSequenceConflict
	}

	state := w.rotations[params.TerritoryKey]
	if state.Seq != params.ExpectedSeq {
		return ports.Committed{}, ports.ErrSequenceConflict
	}
	if w.units[params.AgencyID] <= 0 {
		return ports.Committed{}, ports.ErrCapacityExhausted
	}
	if w.openLeads[params.LeadID] {
		return ports.Committed{}, ports.ErrDuplicateAssignment
	}

	agencyID := params.AgencyID
	w.rotations[params.TerritoryKey] = ports.RotationState{
		LastAgencyID: &agencyID,
		Seq:          state.Seq + 1,
	}
	w.units[params.AgencyID]--
	w.openLeads[params.LeadID] = true
	w.assignments = append(w.assignments, params)

	return ports.Committed{
		AssignmentID: uuid.New(),
		Sequence:     state.Seq + 1,
		ExpiresAt:    params.ExpiresAt,
		CreatedAt:    time.Now(),
	}, nil
}

type nopBus struct{}

func (nopBus) Publish(context.Context, events.Event) {}

func (nopBus) PublishSync(context.Context, events.Event) error { return nil }

func (nopBus) Subscribe(string, events.Handler) {}

type testConfig struct {
	maxAttempts int
}

func (c testConfig) GetAssignMaxAttempts() int {
	if c.maxAttempts == 0 {
		return 5
	}
	return c.maxAttempts
}

func (testConfig) GetAssignmentTimeout() time.Duration { return 30 * time.Minute }

func newTestService(w *fakeWorld, cfg testConfig) (*Service, *[]time.Duration) {
	svc := New(w, w, w, w, nopBus{}, logger.New("development"), cfg)
	sleeps := &[]time.Duration{}
	svc.sleep = func(d time.Duration) { *sleeps = append(*sleeps, d) }
	return svc, sleeps
}

func candidate(agencyID uuid.UUID, kind, value string, priority int, age time.Duration) ports.Candidate {
	return ports.Candidate{
		AgencyID:  agencyID,
		Kind:      kind,
		Value:     value,
		Priority:  priority,
		CreatedAt: time.Now().Add(-age),
	}
}

var testLoc = ports.Location{Zipcode: "60601", City: "Chicago", County: "Cook", State: "IL"}

func TestAssignNoCoverage(t *testing.T) {
	world := newFakeWorld()
	svc, _ := newTestService(world, testConfig{})

	_, err := svc.AssignLead(context.Background(), uuid.New(), testLoc, nil)
	if apperr.GetKind(err) != apperr.KindUnprocessable {
		t.Fatalf("no coverage: got %v, want unprocessable", err)
	}
	if details, ok := err.(*apperr.Error).Details.(map[string]interface{}); !ok || details["reason"] != "no_coverage" {
		t.Fatalf("details = %+v, want reason no_coverage", err.(*apperr.Error).Details)
	}
}

func TestAssignTierPrecedence(t *testing.T) {
	world := newFakeWorld()
	zipAgency := uuid.New()
	stateAgency := uuid.New()
	world.rows = []ports.Candidate{
		candidate(stateAgency, "state", "IL", 1, time.Hour),
		candidate(zipAgency, "zipcode", "60601", 5, 0),
	}
	world.units[zipAgency] = 10
	world.units[stateAgency] = 10
	svc, _ := newTestService(world, testConfig{})

	res, err := svc.AssignLead(context.Background(), uuid.New(), testLoc, nil)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if res.AgencyID != zipAgency {
		t.Errorf("assigned to %s, want zipcode-tier agency despite lower priority elsewhere", res.AgencyID)
	}
	if res.Tier != "zipcode" {
		t.Errorf("tier = %s, want zipcode", res.Tier)
	}
	if res.TerritoryKey != "zipcode:60601" {
		t.Errorf("territory key = %s, want zipcode:60601", res.TerritoryKey)
	}
}

func TestAssignNoFallThroughWhenTierFull(t *testing.T) {
	world := newFakeWorld()
	zipAgency := uuid.New()
	stateAgency := uuid.New()
	world.rows = []ports.Candidate{
		candidate(zipAgency, "zipcode", "60601", 1, 0),
		candidate(stateAgency, "state", "IL", 1, 0),
	}
	world.units[zipAgency] = 0
	world.units[stateAgency] = 10
	svc, _ := newTestService(world, testConfig{})

	// The zipcode tier wins resolution, so a full zipcode agency means no
	// assignment even though a state-tier agency has capacity.
	_, err := svc.AssignLead(context.Background(), uuid.New(), testLoc, nil)
	if apperr.GetKind(err) != apperr.KindUnprocessable {
		t.Fatalf("full tier: got %v, want unprocessable", err)
	}
	if details, ok := err.(*apperr.Error).Details.(map[string]interface{}); !ok || details["reason"] != "coverage_full" {
		t.Fatalf("details = %+v, want reason coverage_full", err.(*apperr.Error).Details)
	}
	if len(world.assignments) != 0 {
		t.Error("no assignment should be committed")
	}
}

func TestAssignRoundRobinFairness(t *testing.T) {
	world := newFakeWorld()
	agencyA := uuid.New()
	agencyB := uuid.New()
	world.rows = []ports.Candidate{
		candidate(agencyA, "state", "IL", 3, time.Hour),
		candidate(agencyB, "state", "IL", 3, 0),
	}
	world.units[agencyA] = 10
	world.units[agencyB] = 10
	svc, _ := newTestService(world, testConfig{})

	counts := make(map[uuid.UUID]int)
	var order []uuid.UUID
	for i := 0; i < 6; i++ {
		res, err := svc.AssignLead(context.Background(), uuid.New(), testLoc, nil)
		if err != nil {
			t.Fatalf("assign %d: %v", i, err)
		}
		counts[res.AgencyID]++
		order = append(order, res.AgencyID)
	}

	if counts[agencyA] != 3 || counts[agencyB] != 3 {
		t.Errorf("distribution = %d/%d, want 3/3", counts[agencyA], counts[agencyB])
	}
	for i := 1; i < len(order); i++ {
		if order[i] == order[i-1] {
			t.Errorf("positions %d and %d went to the same agency, rotation should alternate", i-1, i)
		}
	}
}

func TestAssignSkipsFullAgency(t *testing.T) {
	world := newFakeWorld()
	agencyA := uuid.New()
	agencyB := uuid.New()
	world.rows = []ports.Candidate{
		candidate(agencyA, "state", "IL", 3, time.Hour),
		candidate(agencyB, "state", "IL", 3, 0),
	}
	world.units[agencyA] = 1
	world.units[agencyB] = 10
	svc, _ := newTestService(world, testConfig{})

	got := make([]uuid.UUID, 0, 4)
	for i := 0; i < 4; i++ {
		res, err := svc.AssignLead(context.Background(), uuid.New(), testLoc, nil)
		if err != nil {
			t.Fatalf("assign %d: %v", i, err)
		}
		got = append(got, res.AgencyID)
	}

	want := []uuid.UUID{agencyA, agencyB, agencyB, agencyB}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("assignment %d went to wrong agency once A was out of units", i)
		}
	}
}

func TestAssignPriorityOrdersFirstPick(t *testing.T) {
	world := newFakeWorld()
	lowPriority := uuid.New()
	highPriority := uuid.New()
	world.rows = []ports.Candidate{
		candidate(lowPriority, "state", "IL", 5, time.Hour),
		candidate(highPriority, "state", "IL", 1, 0),
	}
	world.units[lowPriority] = 10
	world.units[highPriority] = 10
	svc, _ := newTestService(world, testConfig{})

	res, err := svc.AssignLead(context.Background(), uuid.New(), testLoc, nil)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if res.AgencyID != highPriority {
		t.Error("fresh rotation should start at the highest-priority candidate")
	}
	if len(world.assignments) != 1 || world.assignments[0].Priority != 1 {
		t.Error("commit should record the winning coverage record's priority")
	}
}

func TestAssignRetriesSequenceConflict(t *testing.T) {
	world := newFakeWorld()
	agency := uuid.New()
	world.rows = []ports.Candidate{candidate(agency, "state", "IL", 3, 0)}
	world.units[agency] = 10
	world.conflicts = 2
	svc, sleeps := newTestService(world, testConfig{})

	res, err := svc.AssignLead(context.Background(), uuid.New(), testLoc, nil)
	if err != nil {
		t.Fatalf("assign after conflicts: %v", err)
	}
	if res.AgencyID != agency {
		t.Error("assignment should land after retrying")
	}
	if len(*sleeps) != 2 {
		t.Errorf("backoff sleeps = %d, want 2", len(*sleeps))
	}
}

func TestAssignGivesUpAfterMaxAttempts(t *testing.T) {
	world := newFakeWorld()
	agency := uuid.New()
	world.rows = []ports.Candidate{candidate(agency, "state", "IL", 3, 0)}
	world.units[agency] = 10
	world.conflicts = 100
	svc, sleeps := newTestService(world, testConfig{maxAttempts: 3})

	_, err := svc.AssignLead(context.Background(), uuid.New(), testLoc, nil)
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("exhausted attempts: got %v, want conflict", err)
	}
	if len(*sleeps) != 2 {
		t.Errorf("backoff sleeps = %d, want 2 for 3 attempts", len(*sleeps))
	}
	if len(world.assignments) != 0 {
		t.Error("no assignment should be committed")
	}
}

func TestAssignDuplicateLead(t *testing.T) {
	world := newFakeWorld()
	agency := uuid.New()
	world.rows = []ports.Candidate{candidate(agency, "state", "IL", 3, 0)}
	world.units[agency] = 10
	svc, _ := newTestService(world, testConfig{})

	leadID := uuid.New()
	if _, err := svc.AssignLead(context.Background(), leadID, testLoc, nil); err != nil {
		t.Fatalf("first assign: %v", err)
	}

	_, err := svc.AssignLead(context.Background(), leadID, testLoc, nil)
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("second assign of same lead: got %v, want conflict", err)
	}
}

func TestAssignCapacityLostMidFlight(t *testing.T) {
	world := newFakeWorld()
	agencyA := uuid.New()
	agencyB := uuid.New()
	world.rows = []ports.Candidate{
		candidate(agencyA, "state", "IL", 1, 0),
		candidate(agencyB, "state", "IL", 3, 0),
	}
	// The gate reports A as open, but A loses its last unit just before the
	// commit's re-check, as if a concurrent commit took it.
	world.units[agencyA] = 10
	world.units[agencyB] = 10
	svc, _ := newTestService(world, testConfig{})

	first := true
	world.commitHook = func(params ports.CommitParams) {
		if first && params.AgencyID == agencyA {
			world.units[agencyA] = 0
			first = false
		}
	}

	res, err := svc.AssignLead(context.Background(), uuid.New(), testLoc, nil)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if res.AgencyID != agencyB {
		t.Error("routing should fall over to the next agency when the pick loses its last unit")
	}
}

func TestNextCandidateRestartsWhenCursorAgencyGone(t *testing.T) {
	a := candidate(uuid.New(), "state", "IL", 3, 0)
	b := candidate(uuid.New(), "state", "IL", 3, 0)
	gone := uuid.New()

	pick, ok := nextCandidate([]ports.Candidate{a, b}, &gone)
	if !ok {
		t.Fatal("expected a pick")
	}
	if pick.AgencyID != a.AgencyID {
		t.Error("rotation should restart at the first candidate when the cursor agency left the pool")
	}
}

func TestNextCandidateWrapsAround(t *testing.T) {
	a := candidate(uuid.New(), "state", "IL", 3, 0)
	b := candidate(uuid.New(), "state", "IL", 3, 0)

	last := b.AgencyID
	pick, ok := nextCandidate([]ports.Candidate{a, b}, &last)
	if !ok {
		t.Fatal("expected a pick")
	}
	if pick.AgencyID != a.AgencyID {
		t.Error("rotation should wrap to the first candidate after the last one")
	}
}

func TestResolveTierCityKeyCarriesState(t *testing.T) {
	agency := uuid.New()
	rows := []ports.Candidate{candidate(agency, "city", "springfield", 3, 0)}
	loc := ports.Location{City: "Springfield", State: "il"}

	res, ok := resolveTier(loc, rows)
	if !ok {
		t.Fatal("expected a resolution")
	}
	if res.TerritoryKey != "city:springfield:IL" {
		t.Errorf("territory key = %s, want city:springfield:IL", res.TerritoryKey)
	}
}
