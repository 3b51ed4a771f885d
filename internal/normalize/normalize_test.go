package normalize

import (
	"errors"
	"testing"
	"time"

	"github.com/eventforge/eventforge/internal/domain"
)

var testOpts = Options{
	Reference: time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC),
	Retention: 30 * 24 * time.Hour,
	Horizon:   365 * 24 * time.Hour,
	Location:  time.UTC,
}

func feedEntry() domain.RawFeedEntry {
	return domain.RawFeedEntry{
		UID:      "uid-1",
		Title:    "Data Center World",
		Location: "Hall B",
		URL:      "https://example.com/dcw",
		Start:    time.Date(2026, 9, 1, 9, 30, 0, 0, time.UTC),
		End:      time.Date(2026, 9, 1, 17, 0, 0, 0, time.UTC),
	}
}

func TestNormalizeFeedDeterministic(t *testing.T) {
	group := &domain.Group{ID: "g1"}

	entry := feedEntry()
	first, err := Normalize(Input{Feed: &entry, Group: group}, testOpts)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	second, err := Normalize(Input{Feed: &entry, Group: group}, testOpts)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if first.IdentityKey != second.IdentityKey {
		t.Errorf("re-normalizing the same entry changed the key: %s vs %s", first.IdentityKey, second.IdentityKey)
	}

	// Noise in free-text whitespace must not move the key.
	noisy := feedEntry()
	noisy.Title = "  Data\tCenter\n World "
	renorm, err := Normalize(Input{Feed: &noisy, Group: group}, testOpts)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if renorm.IdentityKey != first.IdentityKey {
		t.Errorf("whitespace noise changed the key: %s vs %s", renorm.IdentityKey, first.IdentityKey)
	}

	// A different title is a different event.
	other := feedEntry()
	other.Title = "KubeCon"
	otherCand, err := Normalize(Input{Feed: &other, Group: group}, testOpts)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if otherCand.IdentityKey == first.IdentityKey {
		t.Error("distinct titles produced the same identity key")
	}
}

func TestNormalizeFeedSkips(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*domain.RawFeedEntry)
		reason SkipReason
	}{
		{
			name:   "missing title",
			modify: func(e *domain.RawFeedEntry) { e.Title = "  \t " },
			reason: SkipMissingTitle,
		},
		{
			name:   "missing start",
			modify: func(e *domain.RawFeedEntry) { e.Start = time.Time{} },
			reason: SkipMissingStart,
		},
		{
			name: "ended before retention cutoff",
			modify: func(e *domain.RawFeedEntry) {
				e.Start = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
				e.End = time.Date(2026, 5, 1, 17, 0, 0, 0, time.UTC)
			},
			reason: SkipOutsideWindow,
		},
		{
			name: "starts beyond horizon",
			modify: func(e *domain.RawFeedEntry) {
				e.Start = time.Date(2028, 1, 1, 9, 0, 0, 0, time.UTC)
				e.End = time.Time{}
			},
			reason: SkipOutsideWindow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := feedEntry()
			tt.modify(&entry)
			_, err := Normalize(Input{Feed: &entry}, testOpts)
			var skipErr *SkipError
			if !errors.As(err, &skipErr) {
				t.Fatalf("Normalize() error = %v, want SkipError", err)
			}
			if skipErr.Reason != tt.reason {
				t.Errorf("skip reason = %s, want %s", skipErr.Reason, tt.reason)
			}
		})
	}
}

func TestNormalizeFeedTimeMap(t *testing.T) {
	timed := feedEntry()
	cand, err := Normalize(Input{Feed: &timed}, testOpts)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if got := cand.TimeMap["2026-09-01"]; got != "09:30" {
		t.Errorf("timed entry TimeMap[start] = %q, want %q", got, "09:30")
	}

	allDay := feedEntry()
	allDay.AllDay = true
	cand, err = Normalize(Input{Feed: &allDay}, testOpts)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if len(cand.TimeMap) != 0 {
		t.Errorf("all-day entry has TimeMap %v, want empty", cand.TimeMap)
	}
}

func TestNormalizeFeedAllDayKeepsFeedDate(t *testing.T) {
	// All-day dates must survive a display zone west of the parse zone.
	opts := testOpts
	opts.Location = time.FixedZone("UTC-5", -5*3600)

	entry := feedEntry()
	entry.AllDay = true
	entry.Start = time.Date(2026, 9, 21, 0, 0, 0, 0, time.UTC)
	entry.End = time.Date(2026, 9, 22, 0, 0, 0, 0, time.UTC)

	cand, err := Normalize(Input{Feed: &entry}, opts)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if cand.StartDate != "2026-09-21" {
		t.Errorf("start date = %s, want 2026-09-21 regardless of display zone", cand.StartDate)
	}
	if cand.EndDate != "2026-09-21" {
		t.Errorf("end date = %s, want 2026-09-21", cand.EndDate)
	}

	// The same date through the manual path yields the same identity key.
	manual, err := Normalize(Input{Manual: &domain.ManualSubmission{
		Title:     entry.Title,
		StartDate: "2026-09-21",
		URL:       entry.URL,
	}}, opts)
	if err != nil {
		t.Fatalf("Normalize() manual error = %v", err)
	}
	if manual.IdentityKey != cand.IdentityKey {
		t.Errorf("feed and manual keys differ for the same all-day event: %s vs %s",
			cand.IdentityKey, manual.IdentityKey)
	}
}

func TestNormalizeFeedTimedProjectsToDisplayZone(t *testing.T) {
	opts := testOpts
	opts.Location = time.FixedZone("UTC-5", -5*3600)

	entry := feedEntry()
	entry.Start = time.Date(2026, 9, 1, 2, 0, 0, 0, time.UTC)
	entry.End = time.Date(2026, 9, 1, 3, 0, 0, 0, time.UTC)

	cand, err := Normalize(Input{Feed: &entry}, opts)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if cand.StartDate != "2026-08-31" {
		t.Errorf("start date = %s, want 2026-08-31 in the display zone", cand.StartDate)
	}
	if got := cand.TimeMap["2026-08-31"]; got != "21:00" {
		t.Errorf("TimeMap[start] = %q, want 21:00", got)
	}
}

func TestNormalizeFeedGroupTimezoneWins(t *testing.T) {
	group := &domain.Group{ID: "g1", Timezone: "America/New_York"}

	entry := feedEntry()
	entry.Start = time.Date(2026, 9, 1, 2, 0, 0, 0, time.UTC)
	entry.End = time.Date(2026, 9, 1, 3, 0, 0, 0, time.UTC)

	// testOpts projects into UTC; the group's own zone takes precedence.
	cand, err := Normalize(Input{Feed: &entry, Group: group}, testOpts)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if cand.StartDate != "2026-08-31" {
		t.Errorf("start date = %s, want 2026-08-31 in the group zone", cand.StartDate)
	}
	if got := cand.TimeMap["2026-08-31"]; got != "22:00" {
		t.Errorf("TimeMap[start] = %q, want 22:00 EDT", got)
	}
}

func TestNormalizeFeedExclusiveEnd(t *testing.T) {
	// A multi-day entry whose DTEND is midnight ends on the previous day.
	entry := feedEntry()
	entry.AllDay = true
	entry.Start = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	entry.End = time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC)

	cand, err := Normalize(Input{Feed: &entry}, testOpts)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if cand.StartDate != "2026-09-01" || cand.EndDate != "2026-09-03" {
		t.Errorf("span = [%s, %s], want [2026-09-01, 2026-09-03]", cand.StartDate, cand.EndDate)
	}
}

func TestNormalizeManual(t *testing.T) {
	sub := domain.ManualSubmission{
		Title:     "Community Meetup",
		StartDate: "2026-09-10",
		EndDate:   "2026-09-11",
		TimeMap:   domain.TimeMap{"2026-09-10": "18:00"},
	}
	cand, err := Normalize(Input{Manual: &sub}, testOpts)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if cand.SourceKind != domain.SourceManual {
		t.Errorf("source kind = %s, want manual", cand.SourceKind)
	}
	if cand.IdentityKey == "" {
		t.Error("manual candidate has empty identity key")
	}
}

func TestNormalizeManualValidation(t *testing.T) {
	tests := []struct {
		name   string
		sub    domain.ManualSubmission
		reason SkipReason
	}{
		{
			name:   "bad start date format",
			sub:    domain.ManualSubmission{Title: "X", StartDate: "09/10/2026"},
			reason: SkipBadTime,
		},
		{
			name:   "bad end date format",
			sub:    domain.ManualSubmission{Title: "X", StartDate: "2026-09-10", EndDate: "soon"},
			reason: SkipBadTime,
		},
		{
			name: "time map date outside span",
			sub: domain.ManualSubmission{
				Title: "X", StartDate: "2026-09-10",
				TimeMap: domain.TimeMap{"2026-09-12": "10:00"},
			},
			reason: SkipBadTime,
		},
		{
			name: "unparsable clock value",
			sub: domain.ManualSubmission{
				Title: "X", StartDate: "2026-09-10",
				TimeMap: domain.TimeMap{"2026-09-10": "6pm"},
			},
			reason: SkipBadTime,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(Input{Manual: &tt.sub}, testOpts)
			var skipErr *SkipError
			if !errors.As(err, &skipErr) {
				t.Fatalf("Normalize() error = %v, want SkipError", err)
			}
			if skipErr.Reason != tt.reason {
				t.Errorf("skip reason = %s, want %s", skipErr.Reason, tt.reason)
			}
		})
	}
}

func TestNormalizeManualEndBeforeStart(t *testing.T) {
	sub := domain.ManualSubmission{Title: "X", StartDate: "2026-09-10", EndDate: "2026-09-08"}
	cand, err := Normalize(Input{Manual: &sub}, testOpts)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if cand.EndDate != cand.StartDate {
		t.Errorf("end date = %s, want clamped to start %s", cand.EndDate, cand.StartDate)
	}
}

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"  leading and trailing  ", "leading and trailing"},
		{"tabs\tand\nnewlines", "tabs and newlines"},
		{"nul\x00byte", "nulbyte"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeText(tt.in); got != tt.want {
			t.Errorf("sanitizeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	long := make([]rune, 2000)
	for i := range long {
		long[i] = 'a'
	}
	if got := sanitizeText(string(long)); len([]rune(got)) != maxFieldLength {
		t.Errorf("long input clamped to %d runes, want %d", len([]rune(got)), maxFieldLength)
	}
}
