package calendar

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const stampLayout = "20060102T150405Z"

// RenderICS renders merged blocks as an iCalendar document for subscription
// by third-party calendar clients. UIDs are derived from the sorted member
// occurrence IDs plus the user ID, so a block keeps its identity across
// refreshes as long as its membership is stable.
func RenderICS(blocks []Block, calName string, userID int64, now time.Time) string {
	var b strings.Builder
	writeLine(&b, "BEGIN:VCALENDAR")
	writeLine(&b, "VERSION:2.0")
	writeLine(&b, "PRODID:-//HUMS//Shift Calendar//EN")
	writeLine(&b, "CALSCALE:GREGORIAN")
	writeLine(&b, "X-WR-CALNAME:"+escapeText(calName))

	stamp := now.UTC().Format(stampLayout)
	for _, blk := range blocks {
		writeLine(&b, "BEGIN:VEVENT")
		writeLine(&b, "UID:"+blockUID(blk, userID))
		writeLine(&b, "DTSTAMP:"+stamp)
		writeLine(&b, "DTSTART:"+blk.Start.UTC().Format(stampLayout))
		writeLine(&b, "DTEND:"+blk.End.UTC().Format(stampLayout))
		writeLine(&b, "SUMMARY:"+escapeText(blk.Summary))
		if blk.Location != "" {
			writeLine(&b, "LOCATION:"+escapeText(blk.Location))
		}
		if blk.Description != "" {
			writeLine(&b, "DESCRIPTION:"+escapeText(blk.Description))
		}
		writeLine(&b, "LAST-MODIFIED:"+blk.LastModified.UTC().Format(stampLayout))
		writeLine(&b, "END:VEVENT")
	}
	writeLine(&b, "END:VCALENDAR")
	return b.String()
}

func blockUID(blk Block, userID int64) string {
	ids := make([]int64, len(blk.OccurrenceIDs))
	copy(ids, blk.OccurrenceIDs)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("%s-u%d@hums", strings.Join(parts, "-"), userID)
}

// escapeText escapes user-supplied text per RFC 5545.
func escapeText(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		";", `\;`,
		",", `\,`,
		"\r\n", `\n`,
		"\n", `\n`,
	)
	return r.Replace(s)
}

func writeLine(b *strings.Builder, line string) {
	b.WriteString(line)
	b.WriteString("\r\n")
}
