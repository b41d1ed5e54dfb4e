// internal/pkg/ics/ics.go
package ics

import (
	"strings"
	"time"
)

// Invite describes one calendar event in a generated invite file.
type Invite struct {
	// UID must be stable per order and event so re-sent mail updates the
	// same calendar entry instead of duplicating it.
	UID      string
	Summary  string
	Location string
	Start    time.Time
	End      time.Time
}

const timeLayout = "20060102T150405Z"

// Render produces an iCalendar (RFC 5545) document with reminder alarms at
// 24 hours and 1 hour before each event.
func Render(invites []Invite) string {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\n")
	b.WriteString("VERSION:2.0\r\n")
	b.WriteString("PRODID:-//ticketing-backend//EN\r\n")
	b.WriteString("CALSCALE:GREGORIAN\r\n")
	b.WriteString("METHOD:PUBLISH\r\n")

	now := time.Now().UTC().Format(timeLayout)
	for _, inv := range invites {
		b.WriteString("BEGIN:VEVENT\r\n")
		writeLine(&b, "UID:"+escape(inv.UID))
		writeLine(&b, "DTSTAMP:"+now)
		writeLine(&b, "DTSTART:"+inv.Start.UTC().Format(timeLayout))
		writeLine(&b, "DTEND:"+inv.End.UTC().Format(timeLayout))
		writeLine(&b, "SUMMARY:"+escape(inv.Summary))
		if inv.Location != "" {
			writeLine(&b, "LOCATION:"+escape(inv.Location))
		}
		writeAlarm(&b, "-P1D", inv.Summary)
		writeAlarm(&b, "-PT1H", inv.Summary)
		b.WriteString("END:VEVENT\r\n")
	}

	b.WriteString("END:VCALENDAR\r\n")
	return b.String()
}

func writeAlarm(b *strings.Builder, trigger, summary string) {
	b.WriteString("BEGIN:VALARM\r\n")
	writeLine(b, "TRIGGER:"+trigger)
	b.WriteString("ACTION:DISPLAY\r\n")
	writeLine(b, "DESCRIPTION:"+escape(summary))
	b.WriteString("END:VALARM\r\n")
}

// writeLine folds content lines at 75 octets as the format requires.
func writeLine(b *strings.Builder, line string) {
	for len(line) > 75 {
		b.WriteString(line[:75])
		b.WriteString("\r\n ")
		line = line[75:]
	}
	b.WriteString(line)
	b.WriteString("\r\n")
}

func escape(s string) string {
	r := strings.NewReplacer(
		"\\", "\\\\",
		";", "\\;",
		",", "\\,",
		"\n", "\\n",
	)
	return r.Replace(s)
}
