package feed

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func icsBody(lines ...string) []byte {
	all := append([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//EN",
	}, lines...)
	all = append(all, "END:VCALENDAR")
	return []byte(strings.Join(all, "\r\n") + "\r\n")
}

func TestParseTimedEvent(t *testing.T) {
	body := icsBody(
		"BEGIN:VEVENT",
		"UID:u1",
		"SUMMARY:KubeCon",
		"LOCATION:Atlanta",
		"URL:https://example.com/kubecon",
		"DTSTART:20260901T090000Z",
		"DTEND:20260901T170000Z",
		"END:VEVENT",
	)

	events, err := Parse(body, newTestLogger())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("parsed events = %d, want 1", len(events))
	}

	ev := events[0]
	if ev.UID != "u1" || ev.Summary != "KubeCon" || ev.Location != "Atlanta" {
		t.Errorf("parsed fields = %+v", ev)
	}
	if ev.URL != "https://example.com/kubecon" {
		t.Errorf("url = %q", ev.URL)
	}
	if ev.AllDay {
		t.Error("timed event parsed as all-day")
	}
	wantStart := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	if !ev.Start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", ev.Start, wantStart)
	}
	if got := ev.End.Sub(ev.Start); got != 8*time.Hour {
		t.Errorf("duration = %v, want 8h", got)
	}
}

func TestParseAllDayEvent(t *testing.T) {
	body := icsBody(
		"BEGIN:VEVENT",
		"UID:u2",
		"SUMMARY:Community Day",
		"DTSTART;VALUE=DATE:20260903",
		"DTEND;VALUE=DATE:20260904",
		"END:VEVENT",
	)

	events, err := Parse(body, newTestLogger())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("parsed events = %d, want 1", len(events))
	}

	ev := events[0]
	if !ev.AllDay {
		t.Error("VALUE=DATE event not flagged all-day")
	}
	if y, m, d := ev.Start.Date(); y != 2026 || m != time.September || d != 3 {
		t.Errorf("start date = %04d-%02d-%02d, want 2026-09-03", y, m, d)
	}
}

func TestParseSkipsEventWithoutUID(t *testing.T) {
	body := icsBody(
		"BEGIN:VEVENT",
		"SUMMARY:Anonymous",
		"DTSTART:20260901T090000Z",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:u1",
		"SUMMARY:Keeper",
		"DTSTART:20260902T090000Z",
		"END:VEVENT",
	)

	events, err := Parse(body, newTestLogger())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(events) != 1 || events[0].UID != "u1" {
		t.Errorf("parsed events = %+v, want only the event with a UID", events)
	}
}

func TestParseRecurrenceFields(t *testing.T) {
	body := icsBody(
		"BEGIN:VEVENT",
		"UID:u3",
		"SUMMARY:Weekly Standup",
		"DTSTART:20260901T090000Z",
		"DTEND:20260901T093000Z",
		"RRULE:FREQ=WEEKLY;COUNT=5",
		"EXDATE:20260908T090000Z",
		"END:VEVENT",
	)

	events, err := Parse(body, newTestLogger())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("parsed events = %d, want 1", len(events))
	}

	ev := events[0]
	if ev.RawRRule != "FREQ=WEEKLY;COUNT=5" {
		t.Errorf("rrule = %q", ev.RawRRule)
	}
	if len(ev.ExDates) != 1 {
		t.Fatalf("exdates = %d, want 1", len(ev.ExDates))
	}
	want := time.Date(2026, 9, 8, 9, 0, 0, 0, time.UTC)
	if !ev.ExDates[0].Equal(want) {
		t.Errorf("exdate = %v, want %v", ev.ExDates[0], want)
	}
}

func TestParseEmptyBody(t *testing.T) {
	if _, err := Parse(nil, newTestLogger()); err == nil {
		t.Error("Parse() of an empty body returned nil error")
	}
}
