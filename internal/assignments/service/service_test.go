package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"leadmarket_backend/internal/assignments/domain"
	"leadmarket_backend/internal/assignments/repository"
	"leadmarket_backend/internal/assignments/transport"
	"leadmarket_backend/internal/events"
	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
)

// fakeLedger is an in-memory repository.Ledger for service tests. Capacity
// is modeled as a simple per-agency free-unit counter.
type fakeLedger struct {
	assignments map[uuid.UUID]repository.Assignment
	rotations   map[string]repository.RotationState
	freeUnits   map[uuid.UUID]int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		assignments: make(map[uuid.UUID]repository.Assignment),
		rotations:   make(map[string]repository.RotationState),
		freeUnits:   make(map[uuid.UUID]int),
	}
}

func (f *fakeLedger) hasOpenAssignment(leadID uuid.UUID) bool {
	for _, a := range f.assignments {
		if a.LeadID == leadID && (a.Status == domain.StatusPending || a.Status == domain.StatusAccepted) {
			return true
		}
	}
	return false
}

func (f *fakeLedger) CommitRoundRobin(_ context.Context, params repository.CommitParams) (repository.Assignment, error) {
	state := f.rotations[params.TerritoryKey]
	if state.Seq != params.ExpectedSeq {
		return repository.Assignment{}, repository.ErrSequenceConflict
	}
	if f.freeUnits[params.AgencyID] <= 0 {
		return repository.Assignment{}, repository.ErrCapacityExhausted
	}
	if f.hasOpenAssignment(params.LeadID) {
		return repository.Assignment{}, repository.ErrDuplicateAssignment
	}

	agencyID := params.AgencyID
	newSeq := state.Seq + 1
	f.rotations[params.TerritoryKey] = repository.RotationState{
		TerritoryKey: params.TerritoryKey,
		LastAgencyID: &agencyID,
		Seq:          newSeq,
	}
	f.freeUnits[params.AgencyID]--

	key := params.TerritoryKey
	a := repository.Assignment{
		ID:           uuid.New(),
		LeadID:       params.LeadID,
		AgencyID:     params.AgencyID,
		TerritoryKey: &key,
		Sequence:     &newSeq,
		Type:         domain.TypeRoundRobin,
		Status:       domain.StatusPending,
		Priority:     params.Priority,
		AssignedBy:   params.AssignedBy,
		ExpiresAt:    params.ExpiresAt,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	f.assignments[a.ID] = a
	return a, nil
}

func (f *fakeLedger) CreateManual(_ context.Context, params repository.ManualParams) (repository.Assignment, error) {
	if f.freeUnits[params.AgencyID] <= 0 {
		return repository.Assignment{}, repository.ErrCapacityExhausted
	}
	if f.hasOpenAssignment(params.LeadID) {
		return repository.Assignment{}, repository.ErrDuplicateAssignment
	}
	f.freeUnits[params.AgencyID]--

	a := repository.Assignment{
		ID:         uuid.New(),
		LeadID:     params.LeadID,
		AgencyID:   params.AgencyID,
		Type:       domain.TypeManual,
		Status:     domain.StatusPending,
		Priority:   params.Priority,
		Metadata:   params.Metadata,
		AssignedBy: params.AssignedBy,
		ExpiresAt:  params.ExpiresAt,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	f.assignments[a.ID] = a
	return a, nil
}

func (f *fakeLedger) GetRotation(_ context.Context, territoryKey string) (repository.RotationState, error) {
	state, ok := f.rotations[territoryKey]
	if !ok {
		return repository.RotationState{TerritoryKey: territoryKey}, nil
	}
	return state, nil
}

func (f *fakeLedger) GetByID(_ context.Context, id uuid.UUID) (repository.Assignment, error) {
	a, ok := f.assignments[id]
	if !ok {
		return repository.Assignment{}, repository.ErrNotFound
	}
	return a, nil
}

func (f *fakeLedger) ListByLead(_ context.Context, leadID uuid.UUID) ([]repository.Assignment, error) {
	items := make([]repository.Assignment, 0)
	for _, a := range f.assignments {
		if a.LeadID == leadID {
			items = append(items, a)
		}
	}
	return items, nil
}

func (f *fakeLedger) ListByAgency(_ context.Context, agencyID uuid.UUID, filters repository.ListFilters) ([]repository.Assignment, error) {
	items := make([]repository.Assignment, 0)
	for _, a := range f.assignments {
		if a.AgencyID != agencyID {
			continue
		}
		if filters.Status != nil && a.Status != *filters.Status {
			continue
		}
		items = append(items, a)
	}
	return items, nil
}

func (f *fakeLedger) transition(id, agencyID uuid.UUID, from, to domain.Status) (repository.Assignment, error) {
	a, ok := f.assignments[id]
	if !ok || a.AgencyID != agencyID {
		return repository.Assignment{}, repository.ErrNotFound
	}
	if a.Status != from {
		return a, repository.ErrInvalidState
	}
	now := time.Now()
	a.Status = to
	a.UpdatedAt = now
	switch to {
	case domain.StatusAccepted, domain.StatusRejected:
		a.RespondedAt = &now
	case domain.StatusCompleted:
		a.CompletedAt = &now
	}
	f.assignments[id] = a
	return a, nil
}

func (f *fakeLedger) Accept(_ context.Context, id, agencyID uuid.UUID) (repository.Assignment, error) {
	return f.transition(id, agencyID, domain.StatusPending, domain.StatusAccepted)
}

func (f *fakeLedger) Reject(_ context.Context, id, agencyID uuid.UUID, reason string) (repository.Assignment, error) {
	a, err := f.transition(id, agencyID, domain.StatusPending, domain.StatusRejected)
	if err != nil {
		return a, err
	}
	a.RejectReason = &reason
	f.assignments[id] = a
	f.freeUnits[agencyID]++
	return a, nil
}

func (f *fakeLedger) Complete(_ context.Context, id, agencyID uuid.UUID) (repository.Assignment, error) {
	return f.transition(id, agencyID, domain.StatusAccepted, domain.StatusCompleted)
}

func (f *fakeLedger) ExpireStale(_ context.Context, now time.Time) ([]repository.Assignment, error) {
	expired := make([]repository.Assignment, 0)
	for id, a := range f.assignments {
		if a.Status == domain.StatusPending && a.ExpiresAt != nil && !a.ExpiresAt.After(now) {
			a.Status = domain.StatusExpired
			f.assignments[id] = a
			f.freeUnits[a.AgencyID]++
			expired = append(expired, a)
		}
	}
	return expired, nil
}

// nopBus discards published events.
type nopBus struct{}

func (nopBus) Publish(context.Context, events.Event) {}

func (nopBus) PublishSync(context.Context, events.Event) error { return nil }

func (nopBus) Subscribe(string, events.Handler) {}

type testConfig struct{}

func (testConfig) GetAssignMaxAttempts() int           { return 5 }
func (testConfig) GetAssignmentTimeout() time.Duration { return 30 * time.Minute }

func newTestService(ledger repository.Ledger) *Service {
	return New(ledger, nopBus{}, nil, logger.New("development"), testConfig{})
}

func seedPending(f *fakeLedger, agencyID uuid.UUID, expiresAt *time.Time) repository.Assignment {
	a := repository.Assignment{
		ID:        uuid.New(),
		LeadID:    uuid.New(),
		AgencyID:  agencyID,
		Type:      domain.TypeRoundRobin,
		Status:    domain.StatusPending,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	f.assignments[a.ID] = a
	return a
}

func TestAcceptPending(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestService(ledger)
	agencyID := uuid.New()
	a := seedPending(ledger, agencyID, nil)

	resp, err := svc.Accept(context.Background(), a.ID, agencyID, nil)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if resp.Status != string(domain.StatusAccepted) {
		t.Errorf("status = %s, want accepted", resp.Status)
	}
	if resp.RespondedAt == nil {
		t.Error("responded timestamp should be set")
	}
}

func TestAcceptWrongAgency(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestService(ledger)
	a := seedPending(ledger, uuid.New(), nil)

	_, err := svc.Accept(context.Background(), a.ID, uuid.New(), nil)
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("accept by wrong agency: got %v, want not found", err)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestService(ledger)
	agencyID := uuid.New()
	a := seedPending(ledger, agencyID, nil)

	_, err := svc.Reject(context.Background(), a.ID, agencyID, "", nil)
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("reject without reason: got %v, want validation error", err)
	}

	if ledger.assignments[a.ID].Status != domain.StatusPending {
		t.Error("assignment should be unchanged after failed reject")
	}
}

func TestRejectReleasesUnit(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestService(ledger)
	agencyID := uuid.New()
	ledger.freeUnits[agencyID] = 0
	a := seedPending(ledger, agencyID, nil)

	resp, err := svc.Reject(context.Background(), a.ID, agencyID, "outside service area", nil)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if resp.Status != string(domain.StatusRejected) {
		t.Errorf("status = %s, want rejected", resp.Status)
	}
	if resp.RejectReason == nil || *resp.RejectReason != "outside service area" {
		t.Errorf("reject reason not recorded: %v", resp.RejectReason)
	}
	if ledger.freeUnits[agencyID] != 1 {
		t.Errorf("free units = %d, want 1 after release", ledger.freeUnits[agencyID])
	}
}

func TestCompleteRequiresAccepted(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestService(ledger)
	agencyID := uuid.New()
	a := seedPending(ledger, agencyID, nil)

	_, err := svc.Complete(context.Background(), a.ID, agencyID, nil)
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("complete pending: got %v, want conflict", err)
	}

	if _, err := svc.Accept(context.Background(), a.ID, agencyID, nil); err != nil {
		t.Fatalf("accept: %v", err)
	}
	resp, err := svc.Complete(context.Background(), a.ID, agencyID, nil)
	if err != nil {
		t.Fatalf("complete accepted: %v", err)
	}
	if resp.Status != string(domain.StatusCompleted) {
		t.Errorf("status = %s, want completed", resp.Status)
	}
}

func TestAcceptTerminalFails(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestService(ledger)
	agencyID := uuid.New()
	a := seedPending(ledger, agencyID, nil)

	if _, err := svc.Reject(context.Background(), a.ID, agencyID, "not interested", nil); err != nil {
		t.Fatalf("reject: %v", err)
	}

	_, err := svc.Accept(context.Background(), a.ID, agencyID, nil)
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("accept rejected assignment: got %v, want conflict", err)
	}
	if ledger.assignments[a.ID].Status != domain.StatusRejected {
		t.Error("terminal assignment should stay rejected")
	}
}

func TestAssignManualDuplicate(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestService(ledger)
	agencyID := uuid.New()
	ledger.freeUnits[agencyID] = 5
	leadID := uuid.New()

	if _, err := svc.AssignManual(context.Background(), transport.ManualAssignRequest{LeadID: leadID, AgencyID: agencyID}, nil); err != nil {
		t.Fatalf("first manual assign: %v", err)
	}

	_, err := svc.AssignManual(context.Background(), transport.ManualAssignRequest{LeadID: leadID, AgencyID: agencyID}, nil)
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("duplicate manual assign: got %v, want conflict", err)
	}
}

func TestAssignManualCarriesPriorityAndMetadata(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestService(ledger)
	agencyID := uuid.New()
	ledger.freeUnits[agencyID] = 5

	priority := 2
	metadata := json.RawMessage(`{"reason":"vip caller"}`)
	resp, err := svc.AssignManual(context.Background(), transport.ManualAssignRequest{
		LeadID:   uuid.New(),
		AgencyID: agencyID,
		Priority: &priority,
		Metadata: metadata,
	}, nil)
	if err != nil {
		t.Fatalf("manual assign: %v", err)
	}

	if resp.Priority != priority {
		t.Errorf("priority = %d, want %d", resp.Priority, priority)
	}
	if string(resp.Metadata) != string(metadata) {
		t.Errorf("metadata = %s, want %s", resp.Metadata, metadata)
	}
	stored := ledger.assignments[resp.ID]
	if stored.Priority != priority || string(stored.Metadata) != string(metadata) {
		t.Error("ledger entry lost the priority or metadata annotation")
	}
}

func TestAssignManualNoCapacity(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestService(ledger)
	agencyID := uuid.New()

	_, err := svc.AssignManual(context.Background(), transport.ManualAssignRequest{LeadID: uuid.New(), AgencyID: agencyID}, nil)
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("manual assign without capacity: got %v, want conflict", err)
	}
}

func TestExpireStale(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestService(ledger)
	agencyID := uuid.New()

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)
	stale := seedPending(ledger, agencyID, &past)
	fresh := seedPending(ledger, agencyID, &future)
	open := seedPending(ledger, agencyID, nil)

	count, err := svc.ExpireStale(context.Background())
	if err != nil {
		t.Fatalf("expire stale: %v", err)
	}
	if count != 1 {
		t.Fatalf("expired count = %d, want 1", count)
	}
	if ledger.assignments[stale.ID].Status != domain.StatusExpired {
		t.Error("stale assignment should be expired")
	}
	if ledger.assignments[fresh.ID].Status != domain.StatusPending {
		t.Error("fresh assignment should stay pending")
	}
	if ledger.assignments[open.ID].Status != domain.StatusPending {
		t.Error("assignment without deadline should stay pending")
	}
	if ledger.freeUnits[agencyID] != 1 {
		t.Errorf("free units = %d, want 1 after expiry release", ledger.freeUnits[agencyID])
	}
}
