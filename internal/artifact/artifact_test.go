package artifact

import (
	"testing"
	"time"

	"github.com/eventforge/eventforge/internal/domain"
)

func multiDayEvent() domain.CanonicalEvent {
	return domain.CanonicalEvent{
		IdentityKey: "dcw",
		Title:       "Data Center World",
		StartDate:   "2026-04-14",
		EndDate:     "2026-04-17",
		TimeMap: domain.TimeMap{
			"2026-04-14": "13:00",
			"2026-04-15": "08:00",
			"2026-04-16": "08:00",
		},
	}
}

func TestBuildSpanWithUntimedFinalDay(t *testing.T) {
	set := Build([]domain.CanonicalEvent{multiDayEvent()}, time.Now())

	if len(set.Static.Days) != 4 {
		t.Fatalf("days = %d, want one per spanned date", len(set.Static.Days))
	}

	labels := map[string]string{}
	for _, day := range set.Static.Days {
		if len(day.Entries) != 1 {
			t.Fatalf("day %s has %d entries, want 1", day.Date, len(day.Entries))
		}
		labels[day.Date] = day.Entries[0].TimeLabel
	}

	want := map[string]string{
		"2026-04-14": "13:00",
		"2026-04-15": "08:00",
		"2026-04-16": "08:00",
		"2026-04-17": domain.AllDayLabel,
	}
	for date, label := range want {
		if labels[date] != label {
			t.Errorf("label for %s = %q, want %q", date, labels[date], label)
		}
	}
}

func TestBuildExcludesHidden(t *testing.T) {
	hidden := multiDayEvent()
	hidden.Hidden = true

	set := Build([]domain.CanonicalEvent{hidden}, time.Now())
	if len(set.ViewRows) != 0 || len(set.Static.Days) != 0 {
		t.Errorf("hidden event leaked into artifacts: %d rows, %d days", len(set.ViewRows), len(set.Static.Days))
	}
}

func TestBuildFoldsDuplicates(t *testing.T) {
	target := multiDayEvent()
	dup := multiDayEvent()
	dup.IdentityKey = "dcw-copy"
	dup.DuplicateOf = "dcw"

	set := Build([]domain.CanonicalEvent{target, dup}, time.Now())
	if len(set.ViewRows) != 1 || set.ViewRows[0].IdentityKey != "dcw" {
		t.Errorf("duplicate not folded: %+v", set.ViewRows)
	}
}

func TestBuildKeepsDuplicateWithMissingTarget(t *testing.T) {
	dup := multiDayEvent()
	dup.IdentityKey = "dcw-copy"
	dup.DuplicateOf = "gone"

	set := Build([]domain.CanonicalEvent{dup}, time.Now())
	if len(set.ViewRows) != 1 {
		t.Error("duplicate with a missing target should stand alone")
	}
}

func TestBuildKeepsSelfReferencingDuplicate(t *testing.T) {
	ev := multiDayEvent()
	ev.DuplicateOf = ev.IdentityKey

	set := Build([]domain.CanonicalEvent{ev}, time.Now())
	if len(set.ViewRows) != 1 {
		t.Error("self-referencing duplicate must not fold itself away")
	}
}

func TestBuildDayEntrySorting(t *testing.T) {
	events := []domain.CanonicalEvent{
		{IdentityKey: "b", Title: "Evening Talk", StartDate: "2026-05-01", EndDate: "2026-05-01",
			TimeMap: domain.TimeMap{"2026-05-01": "19:00"}},
		{IdentityKey: "a", Title: "Morning Standup", StartDate: "2026-05-01", EndDate: "2026-05-01",
			TimeMap: domain.TimeMap{"2026-05-01": "09:00"}},
		{IdentityKey: "c", Title: "Exhibition", StartDate: "2026-05-01", EndDate: "2026-05-01"},
	}

	set := Build(events, time.Now())
	if len(set.Static.Days) != 1 {
		t.Fatalf("days = %d, want 1", len(set.Static.Days))
	}

	var got []string
	for _, e := range set.Static.Days[0].Entries {
		got = append(got, e.Title)
	}
	want := []string{"Exhibition", "Morning Standup", "Evening Talk"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entry order = %v, want %v", got, want)
		}
	}
}

func TestBuildViewRowOrdering(t *testing.T) {
	events := []domain.CanonicalEvent{
		{IdentityKey: "z", Title: "Beta", StartDate: "2026-06-02", EndDate: "2026-06-02"},
		{IdentityKey: "y", Title: "Alpha", StartDate: "2026-06-01", EndDate: "2026-06-01"},
		{IdentityKey: "x", Title: "Alpha", StartDate: "2026-06-02", EndDate: "2026-06-02"},
	}

	set := Build(events, time.Now())
	var got []string
	for _, row := range set.ViewRows {
		got = append(got, row.IdentityKey)
	}
	want := []string{"y", "x", "z"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("view row order = %v, want %v", got, want)
		}
	}
}

func TestBuildGeneratedAt(t *testing.T) {
	at := time.Date(2026, 7, 1, 10, 0, 0, 0, time.FixedZone("EST", -5*3600))
	set := Build(nil, at)
	if !set.Static.GeneratedAt.Equal(at) || set.Static.GeneratedAt.Location() != time.UTC {
		t.Errorf("GeneratedAt = %v, want the same instant in UTC", set.Static.GeneratedAt)
	}
}
