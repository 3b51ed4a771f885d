package domain

import "time"

// ViewRow is one materialized view record. It maps 1:1 to CanonicalEvent
// minus the internal-only fields (hidden, duplicate_of): suppressed and
// folded events never reach the view.
type ViewRow struct {
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
}

// AllDayLabel is the time label rendered for a date the event spans but has
// no clock time for.
const AllDayLabel = "All Day"

// StaticEntry is one event occurrence on one date of the static rendering
// input.
type StaticEntry struct {
	IdentityKey  string   `json:"identity_key"`
	Title        string   `json:"title"`
	TimeLabel    string   `json:"time_label"`
	URL          string   `json:"url,omitempty"`
	LocationText string   `json:"location_text,omitempty"`
	Cost         string   `json:"cost,omitempty"`
	Categories   []string `json:"categories,omitempty"`
}

// StaticDay groups the entries for a single calendar date, time-sorted with
// untimed entries first.
type StaticDay struct {
	Date    string        `json:"date"`
	Entries []StaticEntry `json:"entries"`
}

// StaticDocument is the date-grouped projection handed to the static
// renderer.
type StaticDocument struct {
	GeneratedAt time.Time   `json:"generated_at"`
	Days        []StaticDay `json:"days"`
}

// ArtifactSet is everything one rebuild publishes: the queryable view rows
// and the static rendering input, both derived from the same canonical
// snapshot.
type ArtifactSet struct {
	ViewRows []ViewRow
	Static   StaticDocument
}
