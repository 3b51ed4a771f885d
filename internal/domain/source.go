package domain

import "time"

// RawFeedEntry is one concrete occurrence from a polled calendar feed,
// after recurrence expansion but before normalization. Start/End carry the
// feed's own timezone resolution; the normalizer projects them onto
// calendar dates.
type RawFeedEntry struct {
	UID      string
	Title    string
	Location string
	URL      string
	Cost     string
	Start    time.Time
	End      time.Time
	AllDay   bool
}

// ManualSubmission is a manually authored event record entering the
// pipeline through the submission API, bypassing the feed collector.
type ManualSubmission struct {
	Title        string   `json:"title"`
	StartDate    string   `json:"start_date"`
	TimeMap      TimeMap  `json:"time_map,omitempty"`
	EndDate      string   `json:"end_date,omitempty"`
	URL          string   `json:"url,omitempty"`
	LocationText string   `json:"location_text,omitempty"`
	Cost         string   `json:"cost,omitempty"`
	Categories   []string `json:"categories,omitempty"`
}
