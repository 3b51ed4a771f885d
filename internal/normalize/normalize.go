// Package normalize converts raw source entries into canonical event
// candidates with deterministic identity keys. Everything here is a pure
// function of its input: re-running a feed fetch must produce byte-identical
// keys.
package normalize

import (
	"fmt"
	"time"

	"github.com/eventforge/eventforge/internal/domain"
)

// SkipReason explains why an entry was excluded downstream. Skipped entries
// stay in their source; they are never an error for the whole batch.
type SkipReason string

const (
	SkipMissingTitle  SkipReason = "missing_title"
	SkipMissingStart  SkipReason = "missing_start"
	SkipOutsideWindow SkipReason = "outside_retention_window"
	SkipBadTime       SkipReason = "unparsable_time"
)

// SkipError marks an entry as skipped rather than failed.
type SkipError struct {
	Reason SkipReason
	Detail string
}

func (e *SkipError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("entry skipped: %s", e.Reason)
	}
	return fmt.Sprintf("entry skipped: %s (%s)", e.Reason, e.Detail)
}

func skip(reason SkipReason, detail string) error {
	return &SkipError{Reason: reason, Detail: detail}
}

// Options fix the reference frame for normalization. Passing the reference
// time explicitly keeps Normalize pure.
type Options struct {
	// Reference is "now" for the retention window checks.
	Reference time.Time
	// Retention is how far into the past an event may end and still be kept.
	Retention time.Duration
	// Horizon is how far into the future an event may start and still be kept.
	Horizon time.Duration
	// Location is the deployment-region timezone used to project timed
	// instants onto calendar dates. A group with its own timezone takes
	// precedence for that group's entries.
	Location *time.Location
}

func (o Options) location() *time.Location {
	if o.Location != nil {
		return o.Location
	}
	return time.UTC
}

// Input is the tagged union of event sources. Exactly one of Feed or Manual
// must be set; Group supplies feed context and is required for feed entries.
type Input struct {
	Feed   *domain.RawFeedEntry
	Manual *domain.ManualSubmission
	Group  *domain.Group
}

// Normalize is the single dispatch point turning any source entry into an
// event candidate, or a *SkipError for malformed/out-of-window entries.
func Normalize(in Input, opts Options) (domain.EventCandidate, error) {
	switch {
	case in.Feed != nil && in.Manual == nil:
		return fromFeed(*in.Feed, in.Group, opts)
	case in.Manual != nil && in.Feed == nil:
		return fromManual(*in.Manual, in.Group, opts)
	default:
		return domain.EventCandidate{}, fmt.Errorf("normalize: input must carry exactly one source")
	}
}

func fromFeed(entry domain.RawFeedEntry, group *domain.Group, opts Options) (domain.EventCandidate, error) {
	title := sanitizeText(entry.Title)
	if title == "" {
		return domain.EventCandidate{}, skip(SkipMissingTitle, entry.UID)
	}
	if entry.Start.IsZero() {
		return domain.EventCandidate{}, skip(SkipMissingStart, entry.UID)
	}

	loc := opts.location()
	if group != nil && group.Timezone != "" {
		if groupLoc, err := time.LoadLocation(group.Timezone); err == nil {
			loc = groupLoc
		}
	}

	// An all-day DTSTART names a calendar date, not an instant; rezoning it
	// shifts the date for any deployment west of the parse zone. Only timed
	// entries project into the display zone.
	start := entry.Start
	if !entry.AllDay {
		start = start.In(loc)
	}
	startDate := start.Format(domain.DateLayout)

	endDate := startDate
	if !entry.End.IsZero() && entry.End.After(entry.Start) {
		end := entry.End
		if !entry.AllDay {
			end = end.In(loc)
		}
		// ICS DTEND is exclusive; an event ending at midnight belongs to
		// the previous calendar day.
		if end.Hour() == 0 && end.Minute() == 0 && end.Second() == 0 {
			end = end.AddDate(0, 0, -1)
		}
		if d := end.Format(domain.DateLayout); d > startDate {
			endDate = d
		}
	}

	var timeMap domain.TimeMap
	if !entry.AllDay {
		timeMap = domain.TimeMap{startDate: start.Format(domain.ClockLayout)}
	}

	if err := checkWindow(startDate, endDate, opts); err != nil {
		return domain.EventCandidate{}, err
	}

	cand := domain.EventCandidate{
		SourceKind:   domain.SourceFeed,
		Title:        title,
		StartDate:    startDate,
		TimeMap:      timeMap,
		EndDate:      endDate,
		URL:          entry.URL,
		LocationText: sanitizeText(entry.Location),
		Cost:         sanitizeText(entry.Cost),
		RawSourceID:  entry.UID,
	}
	if group != nil {
		cand.GroupID = group.ID
	}
	cand.IdentityKey = cand.ComputeIdentityKey()
	return cand, nil
}

func fromManual(sub domain.ManualSubmission, group *domain.Group, opts Options) (domain.EventCandidate, error) {
	title := sanitizeText(sub.Title)
	if title == "" {
		return domain.EventCandidate{}, skip(SkipMissingTitle, "")
	}
	if sub.StartDate == "" {
		return domain.EventCandidate{}, skip(SkipMissingStart, title)
	}
	if _, err := time.Parse(domain.DateLayout, sub.StartDate); err != nil {
		return domain.EventCandidate{}, skip(SkipBadTime, fmt.Sprintf("start_date %q", sub.StartDate))
	}

	endDate := sub.EndDate
	if endDate == "" {
		endDate = sub.StartDate
	}
	if _, err := time.Parse(domain.DateLayout, endDate); err != nil {
		return domain.EventCandidate{}, skip(SkipBadTime, fmt.Sprintf("end_date %q", endDate))
	}
	if endDate < sub.StartDate {
		endDate = sub.StartDate
	}

	var timeMap domain.TimeMap
	for date, clock := range sub.TimeMap {
		if date < sub.StartDate || date > endDate {
			return domain.EventCandidate{}, skip(SkipBadTime, fmt.Sprintf("time_map date %q outside event span", date))
		}
		if _, err := time.Parse(domain.ClockLayout, clock); err != nil {
			return domain.EventCandidate{}, skip(SkipBadTime, fmt.Sprintf("time_map value %q", clock))
		}
		if timeMap == nil {
			timeMap = make(domain.TimeMap, len(sub.TimeMap))
		}
		timeMap[date] = clock
	}

	if err := checkWindow(sub.StartDate, endDate, opts); err != nil {
		return domain.EventCandidate{}, err
	}

	cand := domain.EventCandidate{
		SourceKind:   domain.SourceManual,
		Title:        title,
		StartDate:    sub.StartDate,
		TimeMap:      timeMap,
		EndDate:      endDate,
		URL:          sub.URL,
		LocationText: sanitizeText(sub.LocationText),
		Cost:         sanitizeText(sub.Cost),
		Categories:   append([]string(nil), sub.Categories...),
	}
	if group != nil {
		cand.GroupID = group.ID
	}
	cand.IdentityKey = cand.ComputeIdentityKey()
	return cand, nil
}

func checkWindow(startDate, endDate string, opts Options) error {
	if opts.Reference.IsZero() {
		return nil
	}
	loc := opts.location()
	ref := opts.Reference.In(loc)

	if opts.Retention > 0 {
		cutoff := ref.Add(-opts.Retention).Format(domain.DateLayout)
		if endDate < cutoff {
			return skip(SkipOutsideWindow, fmt.Sprintf("ended %s, cutoff %s", endDate, cutoff))
		}
	}
	if opts.Horizon > 0 {
		limit := ref.Add(opts.Horizon).Format(domain.DateLayout)
		if startDate > limit {
			return skip(SkipOutsideWindow, fmt.Sprintf("starts %s, horizon %s", startDate, limit))
		}
	}
	return nil
}
