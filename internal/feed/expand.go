package feed

import (
	"log/slog"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/eventforge/eventforge/internal/domain"
)

const defaultMaxOccurrences = 5000

// Expand turns parsed events into concrete raw entries within
// [rangeStart, rangeEnd], expanding RRULEs and applying EXDATEs.
// Occurrences of one recurring event share a UID but differ by start date,
// which is enough to keep their identity keys distinct.
func Expand(events []ParsedEvent, rangeStart, rangeEnd time.Time, logger *slog.Logger) []domain.RawFeedEntry {
	var out []domain.RawFeedEntry

	for _, ev := range events {
		if ev.RawRRule == "" {
			if overlaps(ev.Start, ev.End, rangeStart, rangeEnd) {
				out = append(out, toRawEntry(ev, ev.Start, ev.End))
			}
			continue
		}

		r, err := rrule.StrToRRule(ev.RawRRule)
		if err != nil {
			logger.Warn("skipping event with unparsable RRULE", "uid", ev.UID, "rrule", ev.RawRRule, "error", err)
			continue
		}
		r.DTStart(ev.Start)

		var set rrule.Set
		set.RRule(r)
		for _, ex := range ev.ExDates {
			set.ExDate(ex.In(ev.Start.Location()))
		}

		occTimes := set.Between(rangeStart.In(ev.Start.Location()), rangeEnd.In(ev.Start.Location()), true)
		if len(occTimes) > defaultMaxOccurrences {
			logger.Warn("recurrence expansion truncated", "uid", ev.UID, "cap", defaultMaxOccurrences)
			occTimes = occTimes[:defaultMaxOccurrences]
		}

		dur := ev.End.Sub(ev.Start)
		for _, start := range occTimes {
			var end time.Time
			if ev.AllDay {
				day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
				start = day
				end = day.Add(24 * time.Hour)
			} else if dur > 0 {
				end = start.Add(dur)
			}
			out = append(out, toRawEntry(ev, start, end))
		}
	}

	return out
}

func toRawEntry(ev ParsedEvent, start, end time.Time) domain.RawFeedEntry {
	return domain.RawFeedEntry{
		UID:      ev.UID,
		Title:    ev.Summary,
		Location: ev.Location,
		URL:      ev.URL,
		Start:    start,
		End:      end,
		AllDay:   ev.AllDay,
	}
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aEnd.IsZero() {
		aEnd = aStart
	}
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
