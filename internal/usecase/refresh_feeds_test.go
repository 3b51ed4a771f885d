package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/eventforge/eventforge/internal/domain"
	"github.com/eventforge/eventforge/internal/domain/mocks"
)

type fakeLoader struct {
	mu      sync.Mutex
	entries map[string][]domain.RawFeedEntry
	errs    map[string]error
	loaded  []string
}

func (f *fakeLoader) Load(ctx context.Context, group domain.Group, rangeStart, rangeEnd time.Time) ([]domain.RawFeedEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loaded = append(f.loaded, group.ID)
	if err := f.errs[group.ID]; err != nil {
		return nil, err
	}
	return f.entries[group.ID], nil
}

func newRefreshFixture() (*RefreshFeedsUseCase, *mocks.MockCanonicalStore, *mocks.MockOverrideRepository, *mocks.MockGroupRepository, *fakeLoader) {
	store := mocks.NewMockCanonicalStore()
	overrides := mocks.NewMockOverrideRepository()
	groups := mocks.NewMockGroupRepository()
	loader := &fakeLoader{entries: map[string][]domain.RawFeedEntry{}, errs: map[string]error{}}
	uc := NewRefreshFeedsUseCase(groups, overrides, store, loader, newTestLogger(), nil,
		"p1", 5*time.Second, 30*24*time.Hour, 365*24*time.Hour, time.UTC)
	uc.now = func() time.Time { return time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC) }
	return uc, store, overrides, groups, loader
}

func feedGroup(id string) domain.Group {
	return domain.Group{ID: id, Name: id, FeedURL: "https://example.com/" + id + ".ics", Active: true}
}

func TestRunWritesCanonicalSet(t *testing.T) {
	uc, store, overrides, groups, loader := newRefreshFixture()
	groups.Groups["g1"] = feedGroup("g1")
	loader.entries["g1"] = []domain.RawFeedEntry{
		{UID: "u1", Title: "KubeCon", Start: time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)},
		{UID: "u2", Title: "GopherCon", Start: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)},
	}

	// An override waiting on one of the feed events applies during the cycle.
	title := "KubeCon NA"
	key := domain.IdentityKey("2026-09-01", "09:00", "KubeCon", "")
	overrides.Overrides[key] = domain.OverrideRecord{
		IdentityKey: key,
		Patch:       domain.OverridePatch{Title: &title},
	}

	if err := uc.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(store.Events) != 2 {
		t.Fatalf("canonical events = %d, want 2", len(store.Events))
	}
	if got := store.Events[key].Title; got != "KubeCon NA" {
		t.Errorf("title = %q, want override applied during collection", got)
	}
	if got := store.Events[key].GroupID; got != "g1" {
		t.Errorf("group id = %q, want g1", got)
	}
	if len(store.Changes) != 2 {
		t.Errorf("change entries = %d, want one per write", len(store.Changes))
	}
}

func TestRunIdempotentRefetch(t *testing.T) {
	uc, store, _, groups, loader := newRefreshFixture()
	groups.Groups["g1"] = feedGroup("g1")
	loader.entries["g1"] = []domain.RawFeedEntry{
		{UID: "u1", Title: "KubeCon", Start: time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)},
	}

	if err := uc.Run(context.Background()); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	changesAfterFirst := len(store.Changes)

	if err := uc.Run(context.Background()); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if len(store.Changes) != changesAfterFirst {
		t.Errorf("change entries grew from %d to %d on an unchanged re-fetch", changesAfterFirst, len(store.Changes))
	}
}

func TestRunSkipsFailedFeed(t *testing.T) {
	uc, store, _, groups, loader := newRefreshFixture()
	groups.Groups["g1"] = feedGroup("g1")
	groups.Groups["g2"] = feedGroup("g2")
	loader.errs["g1"] = errors.New("connection refused")
	loader.entries["g2"] = []domain.RawFeedEntry{
		{UID: "u1", Title: "GopherCon", Start: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)},
	}

	if err := uc.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v, want per-feed failure swallowed", err)
	}
	if len(store.Events) != 1 {
		t.Errorf("canonical events = %d, want only the healthy feed's", len(store.Events))
	}
}

func TestRunSkipsInactiveGroups(t *testing.T) {
	uc, _, _, groups, loader := newRefreshFixture()
	paused := feedGroup("g1")
	paused.Active = false
	groups.Groups["g1"] = paused

	if err := uc.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(loader.loaded) != 0 {
		t.Errorf("paused group was fetched: %v", loader.loaded)
	}
}

func TestRunPurgesExpiredEvents(t *testing.T) {
	uc, store, _, groups, _ := newRefreshFixture()
	groups.Groups["g1"] = feedGroup("g1")

	// Ended long before the retention cutoff (2026-07-16).
	store.Events["old"] = domain.CanonicalEvent{
		IdentityKey: "old",
		Title:       "Last Year's Summit",
		StartDate:   "2026-01-10",
		EndDate:     "2026-01-10",
	}

	if err := uc.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if _, ok := store.Events["old"]; ok {
		t.Error("expired event survived the purge")
	}

	var sawDelete bool
	for _, c := range store.Changes {
		if c.CanonicalKey == "old" && c.Kind == domain.ChangeDelete {
			sawDelete = true
		}
	}
	if !sawDelete {
		t.Error("purge did not append a delete change entry")
	}
}
