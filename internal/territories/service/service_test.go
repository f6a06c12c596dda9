package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"leadmarket_backend/internal/territories/domain"
	"leadmarket_backend/internal/territories/repository"
	"leadmarket_backend/internal/territories/transport"
	"leadmarket_backend/platform/apperr"

	"github.com/google/uuid"
)

// fakeStore is an in-memory repository.Store for service tests.
type fakeStore struct {
	territories map[uuid.UUID]repository.Territory
	limit       int
	agencyKnown bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		territories: make(map[uuid.UUID]repository.Territory),
		agencyKnown: true,
	}
}

func (f *fakeStore) Insert(_ context.Context, params repository.CreateParams) (repository.Territory, error) {
	value := domain.NormalizeValue(params.Kind, params.Value)
	for _, t := range f.territories {
		if t.AgencyID == params.AgencyID && t.Kind == params.Kind && t.Value == value && t.Active && t.DeletedAt == nil {
			return repository.Territory{}, repository.ErrDuplicate
		}
	}
	t := repository.Territory{
		ID:        uuid.New(),
		AgencyID:  params.AgencyID,
		Kind:      params.Kind,
		Value:     value,
		StateCode: params.StateCode,
		County:    params.County,
		City:      params.City,
		Priority:  params.Priority,
		Active:    true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	f.territories[t.ID] = t
	return t, nil
}

func (f *fakeStore) Update(_ context.Context, agencyID, territoryID uuid.UUID, params repository.UpdateParams) (repository.Territory, error) {
	t, ok := f.territories[territoryID]
	if !ok || t.AgencyID != agencyID || !t.Active || t.DeletedAt != nil {
		return repository.Territory{}, repository.ErrNotFound
	}
	if params.Priority != nil {
		t.Priority = *params.Priority
	}
	if params.StateCode != nil {
		t.StateCode = params.StateCode
	}
	if params.County != nil {
		t.County = params.County
	}
	if params.City != nil {
		t.City = params.City
	}
	t.UpdatedAt = time.Now()
	f.territories[territoryID] = t
	return t, nil
}

func (f *fakeStore) SoftDelete(_ context.Context, agencyID, territoryID uuid.UUID) (repository.Territory, error) {
	t, ok := f.territories[territoryID]
	if !ok || t.AgencyID != agencyID || !t.Active || t.DeletedAt != nil {
		return repository.Territory{}, repository.ErrNotFound
	}
	now := time.Now()
	t.Active = false
	t.DeletedAt = &now
	f.territories[territoryID] = t
	return t, nil
}

func (f *fakeStore) GetAny(_ context.Context, agencyID, territoryID uuid.UUID) (repository.Territory, error) {
	t, ok := f.territories[territoryID]
	if !ok || t.AgencyID != agencyID {
		return repository.Territory{}, repository.ErrNotFound
	}
	return t, nil
}

func (f *fakeStore) List(_ context.Context, agencyID uuid.UUID, _ repository.ListFilters) ([]repository.Territory, error) {
	items := make([]repository.Territory, 0)
	for _, t := range f.territories {
		if t.AgencyID == agencyID && t.Active && t.DeletedAt == nil {
			items = append(items, t)
		}
	}
	return items, nil
}

func (f *fakeStore) ActiveExists(_ context.Context, agencyID uuid.UUID, kind domain.Kind, value string) (bool, error) {
	normalized := domain.NormalizeValue(kind, value)
	for _, t := range f.territories {
		if t.AgencyID == agencyID && t.Kind == kind && t.Value == normalized && t.Active && t.DeletedAt == nil {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CountActive(_ context.Context, agencyID uuid.UUID) (int, error) {
	count := 0
	for _, t := range f.territories {
		if t.AgencyID == agencyID && t.Active && t.DeletedAt == nil {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) AgencyTerritoryLimit(_ context.Context, _ uuid.UUID) (int, error) {
	if !f.agencyKnown {
		return 0, repository.ErrAgencyNotFound
	}
	return f.limit, nil
}

func addReq(kind domain.Kind, value string) transport.AddTerritoryRequest {
	return transport.AddTerritoryRequest{Kind: kind, Value: value}
}

func TestAddRejectsDuplicate(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil)
	agencyID := uuid.New()

	if _, err := svc.Add(context.Background(), agencyID, addReq(domain.KindZipcode, "10001"), nil); err != nil {
		t.Fatalf("first add: %v", err)
	}

	_, err := svc.Add(context.Background(), agencyID, addReq(domain.KindZipcode, "10001"), nil)
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("duplicate add: got %v, want conflict", err)
	}
}

func TestAddNormalizesBeforeDuplicateCheck(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil)
	agencyID := uuid.New()

	if _, err := svc.Add(context.Background(), agencyID, addReq(domain.KindCity, "Beverly Hills"), nil); err != nil {
		t.Fatalf("first add: %v", err)
	}

	_, err := svc.Add(context.Background(), agencyID, addReq(domain.KindCity, " beverly hills "), nil)
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("case-variant add: got %v, want conflict", err)
	}
}

func TestAddAllowsSameValueDifferentKind(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil)
	agencyID := uuid.New()

	if _, err := svc.Add(context.Background(), agencyID, addReq(domain.KindCity, "springfield"), nil); err != nil {
		t.Fatalf("city add: %v", err)
	}
	if _, err := svc.Add(context.Background(), agencyID, addReq(domain.KindCounty, "springfield"), nil); err != nil {
		t.Fatalf("county add with same value: %v", err)
	}
}

func TestAddEnforcesAgencyLimit(t *testing.T) {
	store := newFakeStore()
	store.limit = 2
	svc := New(store, nil)
	agencyID := uuid.New()

	for _, zip := range []string{"10001", "10002"} {
		if _, err := svc.Add(context.Background(), agencyID, addReq(domain.KindZipcode, zip), nil); err != nil {
			t.Fatalf("add %s: %v", zip, err)
		}
	}

	_, err := svc.Add(context.Background(), agencyID, addReq(domain.KindZipcode, "10003"), nil)
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("add over limit: got %v, want conflict", err)
	}
}

func TestAddZeroLimitMeansUnlimited(t *testing.T) {
	store := newFakeStore()
	store.limit = 0
	svc := New(store, nil)
	agencyID := uuid.New()

	for _, zip := range []string{"10001", "10002", "10003", "10004"} {
		if _, err := svc.Add(context.Background(), agencyID, addReq(domain.KindZipcode, zip), nil); err != nil {
			t.Fatalf("add %s: %v", zip, err)
		}
	}
}

func TestAddUnknownKind(t *testing.T) {
	svc := New(newFakeStore(), nil)

	_, err := svc.Add(context.Background(), uuid.New(), addReq(domain.Kind("region"), "north"), nil)
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("unknown kind: got %v, want validation error", err)
	}
}

func TestRemoveSoftDeletes(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil)
	agencyID := uuid.New()

	created, err := svc.Add(context.Background(), agencyID, addReq(domain.KindZipcode, "10001"), nil)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	removed, err := svc.Remove(context.Background(), agencyID, created.ID, nil)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed.Active {
		t.Error("removed territory should be inactive")
	}
	if removed.DeletedAt == nil {
		t.Error("removed territory should carry a deletion timestamp")
	}

	// The record stays in the store for historical reference.
	if _, err := store.GetAny(context.Background(), agencyID, created.ID); err != nil {
		t.Errorf("soft-deleted record should still exist: %v", err)
	}
}

func TestRemoveTwiceFails(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil)
	agencyID := uuid.New()

	created, err := svc.Add(context.Background(), agencyID, addReq(domain.KindZipcode, "10001"), nil)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.Remove(context.Background(), agencyID, created.ID, nil); err != nil {
		t.Fatalf("first remove: %v", err)
	}

	_, err = svc.Remove(context.Background(), agencyID, created.ID, nil)
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("second remove: got %v, want not found", err)
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Message != "territory already removed" {
		t.Fatalf("second remove message: got %v, want %q", err, "territory already removed")
	}
}

func TestReAddAfterRemove(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil)
	agencyID := uuid.New()

	created, err := svc.Add(context.Background(), agencyID, addReq(domain.KindZipcode, "10001"), nil)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.Remove(context.Background(), agencyID, created.ID, nil); err != nil {
		t.Fatalf("remove: %v", err)
	}

	// A soft-deleted record must not block re-adding the same coverage.
	if _, err := svc.Add(context.Background(), agencyID, addReq(domain.KindZipcode, "10001"), nil); err != nil {
		t.Fatalf("re-add after remove: %v", err)
	}
}

func TestUpdateIgnoresDeleted(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil)
	agencyID := uuid.New()

	created, err := svc.Add(context.Background(), agencyID, addReq(domain.KindZipcode, "10001"), nil)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.Remove(context.Background(), agencyID, created.ID, nil); err != nil {
		t.Fatalf("remove: %v", err)
	}

	priority := 1
	_, err = svc.Update(context.Background(), agencyID, created.ID, transport.UpdateTerritoryRequest{Priority: &priority}, nil)
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("update deleted: got %v, want not found", err)
	}
}

func TestHasCoverage(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil)
	agencyID := uuid.New()

	if _, err := svc.Add(context.Background(), agencyID, addReq(domain.KindState, "ca"), nil); err != nil {
		t.Fatalf("add: %v", err)
	}

	covered, err := svc.HasCoverage(context.Background(), agencyID, domain.KindState, "CA")
	if err != nil {
		t.Fatalf("has coverage: %v", err)
	}
	if !covered {
		t.Error("expected coverage for state CA")
	}

	covered, err = svc.HasCoverage(context.Background(), agencyID, domain.KindState, "NY")
	if err != nil {
		t.Fatalf("has coverage: %v", err)
	}
	if covered {
		t.Error("did not expect coverage for state NY")
	}
}
