package ics

import (
	"strings"
	"testing"
	"time"
)

func TestRenderBasicInvite(t *testing.T) {
	start := time.Date(2026, 9, 12, 18, 0, 0, 0, time.UTC)
	out := Render([]Invite{{
		UID:      "ord-1:event-42",
		Summary:  "Blankets and Wine",
		Location: "Ngong Racecourse, Nairobi",
		Start:    start,
		End:      start.Add(6 * time.Hour),
	}})

	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"UID:ord-1:event-42",
		"DTSTART:20260912T180000Z",
		"DTEND:20260913T000000Z",
		"SUMMARY:Blankets and Wine",
		"LOCATION:Ngong Racecourse\\, Nairobi",
		"END:VCALENDAR",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderIncludesBothAlarms(t *testing.T) {
	start := time.Now().UTC().Add(48 * time.Hour)
	out := Render([]Invite{{UID: "u", Summary: "Show", Start: start, End: start.Add(time.Hour)}})

	if !strings.Contains(out, "TRIGGER:-P1D") {
		t.Fatal("missing 24h alarm")
	}
	if !strings.Contains(out, "TRIGGER:-PT1H") {
		t.Fatal("missing 1h alarm")
	}
	if got := strings.Count(out, "BEGIN:VALARM"); got != 2 {
		t.Fatalf("alarms = %d, want 2", got)
	}
}

func TestRenderMultipleEventsShareOneCalendar(t *testing.T) {
	start := time.Now().UTC()
	out := Render([]Invite{
		{UID: "a", Summary: "One", Start: start, End: start.Add(time.Hour)},
		{UID: "b", Summary: "Two", Start: start, End: start.Add(time.Hour)},
	})

	if got := strings.Count(out, "BEGIN:VEVENT"); got != 2 {
		t.Fatalf("events = %d, want 2", got)
	}
	if got := strings.Count(out, "BEGIN:VCALENDAR"); got != 1 {
		t.Fatalf("calendars = %d, want 1", got)
	}
}

func TestLongLinesAreFolded(t *testing.T) {
	long := strings.Repeat("Very Long Event Name ", 10)
	start := time.Now().UTC()
	out := Render([]Invite{{UID: "u", Summary: long, Start: start, End: start.Add(time.Hour)}})

	for _, line := range strings.Split(out, "\r\n") {
		if len(line) > 76 {
			t.Fatalf("unfolded line of %d octets: %q", len(line), line)
		}
	}
}
