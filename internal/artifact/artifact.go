// Package artifact derives the published artifacts from a canonical event
// snapshot: the materialized view rows and the static rendering input.
// Everything here is a pure projection; the rebuild worker calls Build on a
// fresh store scan every time.
package artifact

import (
	"sort"
	"time"

	"github.com/eventforge/eventforge/internal/domain"
)

// Build projects one canonical snapshot into the full artifact set.
// Hidden events are excluded everywhere; events marked duplicate_of fold
// into their target and do not stand alone. A duplicate whose target is
// missing from the snapshot is kept as-is rather than dropped.
func Build(events []domain.CanonicalEvent, generatedAt time.Time) *domain.ArtifactSet {
	visible := filterVisible(events)

	set := &domain.ArtifactSet{
		Static: domain.StaticDocument{GeneratedAt: generatedAt.UTC()},
	}

	for _, ev := range visible {
		set.ViewRows = append(set.ViewRows, domain.ViewRow{
			IdentityKey:  ev.IdentityKey,
			SourceKind:   ev.SourceKind,
			Title:        ev.Title,
			StartDate:    ev.StartDate,
			TimeMap:      ev.TimeMap.Clone(),
			EndDate:      ev.EndDate,
			URL:          ev.URL,
			LocationText: ev.LocationText,
			Cost:         ev.Cost,
			Categories:   append([]string(nil), ev.Categories...),
			GroupID:      ev.GroupID,
		})
	}
	sort.Slice(set.ViewRows, func(i, j int) bool {
		a, b := set.ViewRows[i], set.ViewRows[j]
		if a.StartDate != b.StartDate {
			return a.StartDate < b.StartDate
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.IdentityKey < b.IdentityKey
	})

	set.Static.Days = buildDays(visible)
	return set
}

func filterVisible(events []domain.CanonicalEvent) []domain.CanonicalEvent {
	present := make(map[string]struct{}, len(events))
	for _, ev := range events {
		present[ev.IdentityKey] = struct{}{}
	}

	var out []domain.CanonicalEvent
	for _, ev := range events {
		if ev.Hidden {
			continue
		}
		if ev.DuplicateOf != "" && ev.DuplicateOf != ev.IdentityKey {
			if _, ok := present[ev.DuplicateOf]; ok {
				continue
			}
		}
		out = append(out, ev)
	}
	return out
}

// buildDays produces the date-grouped, time-sorted projection. Each date an
// event spans yields one entry; dates absent from the time map render with
// the "All Day" label and sort ahead of timed entries.
func buildDays(events []domain.CanonicalEvent) []domain.StaticDay {
	byDate := make(map[string][]domain.StaticEntry)
	for _, ev := range events {
		for _, date := range ev.Dates() {
			label := domain.AllDayLabel
			if clock, ok := ev.TimeMap[date]; ok {
				label = clock
			}
			byDate[date] = append(byDate[date], domain.StaticEntry{
				IdentityKey:  ev.IdentityKey,
				Title:        ev.Title,
				TimeLabel:    label,
				URL:          ev.URL,
				LocationText: ev.LocationText,
				Cost:         ev.Cost,
				Categories:   append([]string(nil), ev.Categories...),
			})
		}
	}

	dates := make([]string, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	days := make([]domain.StaticDay, 0, len(dates))
	for _, date := range dates {
		entries := byDate[date]
		sort.Slice(entries, func(i, j int) bool {
			a, b := entries[i], entries[j]
			if (a.TimeLabel == domain.AllDayLabel) != (b.TimeLabel == domain.AllDayLabel) {
				return a.TimeLabel == domain.AllDayLabel
			}
			if a.TimeLabel != b.TimeLabel {
				return a.TimeLabel < b.TimeLabel
			}
			return a.Title < b.Title
		})
		days = append(days, domain.StaticDay{Date: date, Entries: entries})
	}
	return days
}
