// Package merge implements the field-level combination of base event
// candidates with override records. The merge is an explicit, total
// function with documented precedence, testable without any I/O.
package merge

import (
	"sort"

	"github.com/eventforge/eventforge/internal/domain"
)

// Conflict records two overrides racing for the same identity key. The
// later UpdatedAt wins; the caller logs conflicts as warnings.
type Conflict struct {
	IdentityKey string
	Winner      domain.OverrideRecord
	Loser       domain.OverrideRecord
}

// Result is the outcome of merging one candidate set with the override set
// for the same partition.
type Result struct {
	Canonical []domain.CanonicalEvent
	// Orphans are overrides with no matching base candidate. They are
	// retained inert until a base with that key appears.
	Orphans   []domain.OverrideRecord
	Conflicts []Conflict
}

// Apply combines one base candidate with at most one override and the
// group's fallback categories.
//
// Precedence: a field explicitly present on the override replaces the base
// field; override categories REPLACE the base set (never union); group
// categories apply only when neither base nor override name any.
func Apply(base domain.EventCandidate, ov *domain.OverrideRecord, group *domain.Group) domain.CanonicalEvent {
	ev := domain.CanonicalEvent{
		IdentityKey:  base.IdentityKey,
		SourceKind:   base.SourceKind,
		Title:        base.Title,
		StartDate:    base.StartDate,
		TimeMap:      base.TimeMap.Clone(),
		EndDate:      base.EndDate,
		URL:          base.URL,
		LocationText: base.LocationText,
		Cost:         base.Cost,
		Categories:   append([]string(nil), base.Categories...),
		GroupID:      base.GroupID,
		RawSourceID:  base.RawSourceID,
	}

	if ov != nil {
		p := ov.Patch
		if p.Title != nil {
			ev.Title = *p.Title
		}
		if p.StartDate != nil {
			ev.StartDate = *p.StartDate
		}
		if p.TimeMap != nil {
			ev.TimeMap = p.TimeMap.Clone()
		}
		if p.EndDate != nil {
			ev.EndDate = *p.EndDate
		}
		if p.URL != nil {
			ev.URL = *p.URL
		}
		if p.LocationText != nil {
			ev.LocationText = *p.LocationText
		}
		if p.Cost != nil {
			ev.Cost = *p.Cost
		}
		if ov.Categories != nil {
			ev.Categories = append([]string(nil), ov.Categories...)
		}
		if ov.Hidden != nil {
			ev.Hidden = *ov.Hidden
		}
		if ov.DuplicateOf != nil {
			ev.DuplicateOf = *ov.DuplicateOf
		}
		if ov.UpdatedAt.After(ev.UpdatedAt) {
			ev.UpdatedAt = ov.UpdatedAt
		}
	}

	if len(ev.Categories) == 0 && group != nil {
		ev.Categories = append([]string(nil), group.Categories...)
	}

	if ev.EndDate == "" || ev.EndDate < ev.StartDate {
		ev.EndDate = ev.StartDate
	}
	return ev
}

// MergeSet merges every candidate with its override (if any) and attaches
// group fallback categories. The operation is order-independent across
// distinct keys: candidates and overrides are indexed by identity key
// before any combination happens.
//
// Candidates hashing to the same key are the same event; the last one in
// the batch wins, mirroring last-write-wins on feed re-fetch.
func MergeSet(candidates []domain.EventCandidate, overrides []domain.OverrideRecord, groups map[string]domain.Group) Result {
	var res Result

	byKey := make(map[string]domain.EventCandidate, len(candidates))
	order := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if _, seen := byKey[c.IdentityKey]; !seen {
			order = append(order, c.IdentityKey)
		}
		byKey[c.IdentityKey] = c
	}

	ovByKey := make(map[string]domain.OverrideRecord, len(overrides))
	for _, ov := range overrides {
		existing, dup := ovByKey[ov.IdentityKey]
		if !dup {
			ovByKey[ov.IdentityKey] = ov
			continue
		}
		winner, loser := ov, existing
		if existing.UpdatedAt.After(ov.UpdatedAt) {
			winner, loser = existing, ov
		}
		ovByKey[ov.IdentityKey] = winner
		res.Conflicts = append(res.Conflicts, Conflict{
			IdentityKey: ov.IdentityKey,
			Winner:      winner,
			Loser:       loser,
		})
	}

	for _, key := range order {
		cand := byKey[key]
		var ovPtr *domain.OverrideRecord
		if ov, ok := ovByKey[key]; ok {
			ovPtr = &ov
			delete(ovByKey, key)
		}
		var groupPtr *domain.Group
		if g, ok := groups[cand.GroupID]; ok {
			groupPtr = &g
		}
		res.Canonical = append(res.Canonical, Apply(cand, ovPtr, groupPtr))
	}

	for _, ov := range ovByKey {
		res.Orphans = append(res.Orphans, ov)
	}
	sort.Slice(res.Orphans, func(i, j int) bool {
		return res.Orphans[i].IdentityKey < res.Orphans[j].IdentityKey
	})

	return res
}
