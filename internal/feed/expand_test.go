package feed

import (
	"testing"
	"time"
)

func TestExpandSingleEventInRange(t *testing.T) {
	rangeStart := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	rangeEnd := time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)

	events := []ParsedEvent{
		{
			UID:     "u1",
			Summary: "KubeCon",
			Start:   time.Date(2026, 9, 10, 9, 0, 0, 0, time.UTC),
			End:     time.Date(2026, 9, 10, 17, 0, 0, 0, time.UTC),
		},
		{
			UID:     "u2",
			Summary: "Last Year",
			Start:   time.Date(2025, 9, 10, 9, 0, 0, 0, time.UTC),
			End:     time.Date(2025, 9, 10, 17, 0, 0, 0, time.UTC),
		},
	}

	out := Expand(events, rangeStart, rangeEnd, newTestLogger())
	if len(out) != 1 {
		t.Fatalf("entries = %d, want only the in-range event", len(out))
	}
	if out[0].UID != "u1" || out[0].Title != "KubeCon" {
		t.Errorf("entry = %+v", out[0])
	}
}

func TestExpandWeeklyRecurrence(t *testing.T) {
	rangeStart := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	rangeEnd := time.Date(2026, 9, 16, 0, 0, 0, 0, time.UTC)

	events := []ParsedEvent{{
		UID:      "r1",
		Summary:  "Weekly Standup",
		Start:    time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
		End:      time.Date(2026, 9, 1, 9, 30, 0, 0, time.UTC),
		RawRRule: "FREQ=WEEKLY;COUNT=5",
	}}

	out := Expand(events, rangeStart, rangeEnd, newTestLogger())
	if len(out) != 3 {
		t.Fatalf("occurrences = %d, want 3 inside the range", len(out))
	}

	wantStarts := []time.Time{
		time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 9, 8, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 9, 15, 9, 0, 0, 0, time.UTC),
	}
	for i, entry := range out {
		if !entry.Start.Equal(wantStarts[i]) {
			t.Errorf("occurrence %d start = %v, want %v", i, entry.Start, wantStarts[i])
		}
		if got := entry.End.Sub(entry.Start); got != 30*time.Minute {
			t.Errorf("occurrence %d duration = %v, want 30m", i, got)
		}
		if entry.UID != "r1" {
			t.Errorf("occurrence %d uid = %q, want shared r1", i, entry.UID)
		}
	}
}

func TestExpandAppliesExDates(t *testing.T) {
	rangeStart := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	rangeEnd := time.Date(2026, 9, 16, 0, 0, 0, 0, time.UTC)

	events := []ParsedEvent{{
		UID:      "r1",
		Summary:  "Weekly Standup",
		Start:    time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
		End:      time.Date(2026, 9, 1, 9, 30, 0, 0, time.UTC),
		RawRRule: "FREQ=WEEKLY;COUNT=5",
		ExDates:  []time.Time{time.Date(2026, 9, 8, 9, 0, 0, 0, time.UTC)},
	}}

	out := Expand(events, rangeStart, rangeEnd, newTestLogger())
	if len(out) != 2 {
		t.Fatalf("occurrences = %d, want excluded date dropped", len(out))
	}
	for _, entry := range out {
		if entry.Start.Day() == 8 {
			t.Errorf("excluded occurrence survived: %v", entry.Start)
		}
	}
}

func TestExpandAllDayRecurrence(t *testing.T) {
	rangeStart := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	rangeEnd := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)

	events := []ParsedEvent{{
		UID:      "r2",
		Summary:  "Hack Days",
		Start:    time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		End:      time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC),
		AllDay:   true,
		RawRRule: "FREQ=DAILY;COUNT=3",
	}}

	out := Expand(events, rangeStart, rangeEnd, newTestLogger())
	if len(out) != 3 {
		t.Fatalf("occurrences = %d, want 3", len(out))
	}
	for i, entry := range out {
		if !entry.AllDay {
			t.Errorf("occurrence %d lost the all-day flag", i)
		}
		if h, m, _ := entry.Start.Clock(); h != 0 || m != 0 {
			t.Errorf("occurrence %d start = %v, want midnight", i, entry.Start)
		}
		if got := entry.End.Sub(entry.Start); got != 24*time.Hour {
			t.Errorf("occurrence %d span = %v, want 24h", i, got)
		}
	}
}

func TestExpandSkipsUnparsableRRule(t *testing.T) {
	rangeStart := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	rangeEnd := time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)

	events := []ParsedEvent{{
		UID:      "bad",
		Summary:  "Broken",
		Start:    time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
		RawRRule: "FREQ=SOMETIMES",
	}}

	if out := Expand(events, rangeStart, rangeEnd, newTestLogger()); len(out) != 0 {
		t.Errorf("entries = %d, want unparsable recurrence skipped", len(out))
	}
}
