package domain

import (
	"sort"
	"time"
)

// DateLayout is the calendar-date format used throughout the pipeline.
// Dates are carried as strings so that identity hashing and JSON round-trips
// stay byte-stable regardless of timezone handling upstream.
const DateLayout = "2006-01-02"

// ClockLayout is the local clock-time format stored in a TimeMap.
const ClockLayout = "15:04"

// SourceKind identifies where an event record entered the pipeline.
type SourceKind string

const (
	SourceFeed     SourceKind = "feed"
	SourceOverride SourceKind = "override"
	SourceManual   SourceKind = "manual"
)

// ChangeKind classifies a canonical store mutation.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// TimeMap maps a calendar date (DateLayout) to a local clock time
// (ClockLayout). A date within the event's span that is absent from the map
// renders as an untimed ("all day") occurrence.
type TimeMap map[string]string

// Clone returns a copy of the map, or nil for an empty map.
func (m TimeMap) Clone() TimeMap {
	if len(m) == 0 {
		return nil
	}
	out := make(TimeMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// EventCandidate is the normalized, ephemeral form of one source entry.
// Candidates are recomputed on every feed refresh; only the canonical
// events derived from them persist.
type EventCandidate struct {
	IdentityKey  string     `json:"identity_key"`
	SourceKind   SourceKind `json:"source_kind"`
	Title        string     `json:"title"`
	StartDate    string     `json:"start_date"`
	TimeMap      TimeMap    `json:"time_map,omitempty"`
	EndDate      string     `json:"end_date"`
	URL          string     `json:"url,omitempty"`
	LocationText string     `json:"location_text,omitempty"`
	Cost         string     `json:"cost,omitempty"`
	Categories   []string   `json:"categories,omitempty"`
	GroupID      string     `json:"group_id,omitempty"`
	RawSourceID  string     `json:"raw_source_id,omitempty"`
}

// CanonicalEvent is the single merged record downstream consumers see for a
// given identity key: a base candidate combined with at most one override.
type CanonicalEvent struct {
	IdentityKey  string     `json:"identity_key"`
	SourceKind   SourceKind `json:"source_kind"`
	Title        string     `json:"title"`
	StartDate    string     `json:"start_date"`
	TimeMap      TimeMap    `json:"time_map,omitempty"`
	EndDate      string     `json:"end_date"`
	URL          string     `json:"url,omitempty"`
	LocationText string     `json:"location_text,omitempty"`
	Cost         string     `json:"cost,omitempty"`
	Categories   []string   `json:"categories,omitempty"`
	GroupID      string     `json:"group_id,omitempty"`
	RawSourceID  string     `json:"raw_source_id,omitempty"`
	Hidden       bool       `json:"hidden,omitempty"`
	DuplicateOf  string     `json:"duplicate_of,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ContentEquals reports whether two canonical events carry the same data,
// ignoring UpdatedAt. The store uses this to suppress change log entries
// for no-op re-imports.
func (e CanonicalEvent) ContentEquals(other CanonicalEvent) bool {
	if e.IdentityKey != other.IdentityKey ||
		e.SourceKind != other.SourceKind ||
		e.Title != other.Title ||
		e.StartDate != other.StartDate ||
		e.EndDate != other.EndDate ||
		e.URL != other.URL ||
		e.LocationText != other.LocationText ||
		e.Cost != other.Cost ||
		e.GroupID != other.GroupID ||
		e.RawSourceID != other.RawSourceID ||
		e.Hidden != other.Hidden ||
		e.DuplicateOf != other.DuplicateOf {
		return false
	}
	if len(e.TimeMap) != len(other.TimeMap) {
		return false
	}
	for k, v := range e.TimeMap {
		if other.TimeMap[k] != v {
			return false
		}
	}
	return equalStringSets(e.Categories, other.Categories)
}

// Dates returns every calendar date the event spans, in order. A malformed
// range yields just the start date.
func (e CanonicalEvent) Dates() []string {
	start, err := time.Parse(DateLayout, e.StartDate)
	if err != nil {
		return []string{e.StartDate}
	}
	end, err := time.Parse(DateLayout, e.EndDate)
	if err != nil || end.Before(start) {
		return []string{e.StartDate}
	}

	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(DateLayout))
	}
	return dates
}

// OverridePatch is the partial-field portion of an override record. Nil
// pointers mean "leave the base value alone". TimeMap, when non-nil,
// replaces the base map wholesale.
type OverridePatch struct {
	Title        *string `json:"title,omitempty"`
	StartDate    *string `json:"start_date,omitempty"`
	TimeMap      TimeMap `json:"time_map,omitempty"`
	EndDate      *string `json:"end_date,omitempty"`
	URL          *string `json:"url,omitempty"`
	LocationText *string `json:"location_text,omitempty"`
	Cost         *string `json:"cost,omitempty"`
}

// OverrideRecord is a user-submitted patch addressed by identity key. An
// override never introduces a new identity: it stays inert until a base
// event with the same key exists.
type OverrideRecord struct {
	IdentityKey string        `json:"identity_key"`
	Patch       OverridePatch `json:"patch"`
	Categories  []string      `json:"categories,omitempty"`
	Hidden      *bool         `json:"hidden,omitempty"`
	DuplicateOf *string       `json:"duplicate_of,omitempty"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Group is a feed subscription plus the fallback categorization its events
// inherit when neither the base event nor an override names any category.
type Group struct {
	ID         string    `json:"group_id"`
	Name       string    `json:"name"`
	FeedURL    string    `json:"feed_url,omitempty"`
	Categories []string  `json:"categories,omitempty"`
	Active     bool      `json:"active"`
	Timezone   string    `json:"timezone,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ChangeEntry is one append-only change log record, produced in the same
// transaction as the canonical mutation it describes. Sequence is strictly
// ordered per partition.
type ChangeEntry struct {
	Sequence     int64      `json:"sequence"`
	Partition    string     `json:"partition"`
	CanonicalKey string     `json:"canonical_key"`
	Kind         ChangeKind `json:"change_kind"`
	Timestamp    time.Time  `json:"timestamp"`
}

func equalStringSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
