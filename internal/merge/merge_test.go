package merge

import (
	"reflect"
	"testing"
	"time"

	"github.com/eventforge/eventforge/internal/domain"
)

func strPtr(s string) *string { return &s }

func baseCandidate(key string) domain.EventCandidate {
	return domain.EventCandidate{
		IdentityKey: key,
		SourceKind:  domain.SourceFeed,
		Title:       "Original Title",
		StartDate:   "2026-09-01",
		EndDate:     "2026-09-01",
		TimeMap:     domain.TimeMap{"2026-09-01": "09:00"},
		Categories:  []string{"conference"},
		GroupID:     "g1",
	}
}

func TestApplyOverridePrecedence(t *testing.T) {
	ov := &domain.OverrideRecord{
		IdentityKey: "k1",
		Patch: domain.OverridePatch{
			Title: strPtr("Corrected Title"),
			Cost:  strPtr("Free"),
		},
		UpdatedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}

	ev := Apply(baseCandidate("k1"), ov, nil)
	if ev.Title != "Corrected Title" {
		t.Errorf("Title = %q, want override value", ev.Title)
	}
	if ev.Cost != "Free" {
		t.Errorf("Cost = %q, want override value", ev.Cost)
	}
	// Fields the patch does not name keep the base values.
	if ev.StartDate != "2026-09-01" || ev.EndDate != "2026-09-01" {
		t.Errorf("dates changed without a patch: [%s, %s]", ev.StartDate, ev.EndDate)
	}
	if !reflect.DeepEqual(ev.Categories, []string{"conference"}) {
		t.Errorf("Categories = %v, want base set untouched", ev.Categories)
	}
}

func TestApplyCategoriesReplaceNeverUnion(t *testing.T) {
	ov := &domain.OverrideRecord{
		IdentityKey: "k1",
		Categories:  []string{"workshop"},
	}
	ev := Apply(baseCandidate("k1"), ov, &domain.Group{ID: "g1", Categories: []string{"community"}})
	if !reflect.DeepEqual(ev.Categories, []string{"workshop"}) {
		t.Errorf("Categories = %v, want override set only", ev.Categories)
	}
}

func TestApplyGroupCategoriesFallback(t *testing.T) {
	group := &domain.Group{ID: "g1", Categories: []string{"community"}}

	base := baseCandidate("k1")
	base.Categories = nil
	ev := Apply(base, nil, group)
	if !reflect.DeepEqual(ev.Categories, []string{"community"}) {
		t.Errorf("Categories = %v, want group fallback", ev.Categories)
	}

	// A base with its own categories never inherits the group's.
	ev = Apply(baseCandidate("k1"), nil, group)
	if !reflect.DeepEqual(ev.Categories, []string{"conference"}) {
		t.Errorf("Categories = %v, want base set", ev.Categories)
	}
}

func TestApplyHiddenAndDuplicate(t *testing.T) {
	hidden := true
	ov := &domain.OverrideRecord{
		IdentityKey: "k1",
		Hidden:      &hidden,
		DuplicateOf: strPtr("k2"),
	}
	ev := Apply(baseCandidate("k1"), ov, nil)
	if !ev.Hidden {
		t.Error("Hidden not applied from override")
	}
	if ev.DuplicateOf != "k2" {
		t.Errorf("DuplicateOf = %q, want k2", ev.DuplicateOf)
	}
}

func TestApplyNormalizesMalformedRange(t *testing.T) {
	ov := &domain.OverrideRecord{
		IdentityKey: "k1",
		Patch:       domain.OverridePatch{EndDate: strPtr("2026-08-20")},
	}
	ev := Apply(baseCandidate("k1"), ov, nil)
	if ev.EndDate != ev.StartDate {
		t.Errorf("EndDate = %s, want clamped to StartDate %s", ev.EndDate, ev.StartDate)
	}
}

func TestMergeSetOrderIndependent(t *testing.T) {
	cands := []domain.EventCandidate{baseCandidate("k1"), baseCandidate("k2")}
	cands[1].Title = "Second Event"
	ovs := []domain.OverrideRecord{
		{IdentityKey: "k1", Patch: domain.OverridePatch{Title: strPtr("Patched")}},
	}
	groups := map[string]domain.Group{"g1": {ID: "g1"}}

	forward := MergeSet(cands, ovs, groups)
	reversed := MergeSet([]domain.EventCandidate{cands[1], cands[0]}, ovs, groups)

	byKey := func(res Result) map[string]domain.CanonicalEvent {
		out := make(map[string]domain.CanonicalEvent)
		for _, ev := range res.Canonical {
			out[ev.IdentityKey] = ev
		}
		return out
	}
	if !reflect.DeepEqual(byKey(forward), byKey(reversed)) {
		t.Error("merge result differs with candidate order")
	}
	if byKey(forward)["k1"].Title != "Patched" {
		t.Errorf("override not applied in set merge")
	}
}

func TestMergeSetDuplicateCandidatesLastWins(t *testing.T) {
	first := baseCandidate("k1")
	second := baseCandidate("k1")
	second.LocationText = "New Venue"

	res := MergeSet([]domain.EventCandidate{first, second}, nil, nil)
	if len(res.Canonical) != 1 {
		t.Fatalf("Canonical count = %d, want 1", len(res.Canonical))
	}
	if res.Canonical[0].LocationText != "New Venue" {
		t.Errorf("LocationText = %q, want the later candidate's value", res.Canonical[0].LocationText)
	}
}

func TestMergeSetConflictingOverrides(t *testing.T) {
	older := domain.OverrideRecord{
		IdentityKey: "k1",
		Patch:       domain.OverridePatch{Title: strPtr("Older")},
		UpdatedAt:   time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
	newer := domain.OverrideRecord{
		IdentityKey: "k1",
		Patch:       domain.OverridePatch{Title: strPtr("Newer")},
		UpdatedAt:   time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC),
	}

	res := MergeSet([]domain.EventCandidate{baseCandidate("k1")}, []domain.OverrideRecord{older, newer}, nil)
	if len(res.Conflicts) != 1 {
		t.Fatalf("Conflicts = %d, want 1", len(res.Conflicts))
	}
	if res.Conflicts[0].Winner.UpdatedAt != newer.UpdatedAt {
		t.Error("conflict winner is not the latest override")
	}
	if res.Canonical[0].Title != "Newer" {
		t.Errorf("Title = %q, want latest override applied", res.Canonical[0].Title)
	}
}

func TestMergeSetOrphanOverrides(t *testing.T) {
	ovs := []domain.OverrideRecord{
		{IdentityKey: "no-base-b"},
		{IdentityKey: "no-base-a"},
	}
	res := MergeSet(nil, ovs, nil)
	if len(res.Canonical) != 0 {
		t.Errorf("orphan overrides produced canonical events: %v", res.Canonical)
	}
	if len(res.Orphans) != 2 || res.Orphans[0].IdentityKey != "no-base-a" {
		t.Errorf("Orphans = %v, want both, sorted by key", res.Orphans)
	}
}
