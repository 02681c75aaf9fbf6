package calendar

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id, typeID int64, start time.Time, length time.Duration) Entry {
	return Entry{
		OccurrenceID: id,
		ShiftTypeID:  typeID,
		Summary:      "Front Desk",
		Location:     "Lobby",
		Start:        start,
		End:          start.Add(length),
		UpdatedAt:    start,
	}
}

func TestMergeConsecutive(t *testing.T) {
	base := time.Date(2024, time.September, 2, 9, 0, 0, 0, time.UTC)

	t.Run("back-to-back entries of one type merge", func(t *testing.T) {
		entries := []Entry{
			entry(1, 5, base, time.Hour),
			entry(2, 5, base.Add(time.Hour), time.Hour),
			entry(3, 5, base.Add(2*time.Hour), time.Hour),
		}
		blocks := MergeConsecutive(entries)
		require.Len(t, blocks, 1)
		assert.Equal(t, []int64{1, 2, 3}, blocks[0].OccurrenceIDs)
		assert.Equal(t, base, blocks[0].Start)
		assert.Equal(t, base.Add(3*time.Hour), blocks[0].End)
	})

	t.Run("a gap breaks the block", func(t *testing.T) {
		entries := []Entry{
			entry(1, 5, base, time.Hour),
			entry(2, 5, base.Add(2*time.Hour), time.Hour),
		}
		blocks := MergeConsecutive(entries)
		require.Len(t, blocks, 2)
	})

	t.Run("a shift type change breaks the block", func(t *testing.T) {
		entries := []Entry{
			entry(1, 5, base, time.Hour),
			entry(2, 6, base.Add(time.Hour), time.Hour),
		}
		blocks := MergeConsecutive(entries)
		require.Len(t, blocks, 2)
	})

	t.Run("unsorted input is sorted first", func(t *testing.T) {
		entries := []Entry{
			entry(2, 5, base.Add(time.Hour), time.Hour),
			entry(1, 5, base, time.Hour),
		}
		blocks := MergeConsecutive(entries)
		require.Len(t, blocks, 1)
		assert.Equal(t, []int64{1, 2}, blocks[0].OccurrenceIDs)
	})

	t.Run("last modified is the newest member's", func(t *testing.T) {
		e1 := entry(1, 5, base, time.Hour)
		e2 := entry(2, 5, base.Add(time.Hour), time.Hour)
		e2.UpdatedAt = base.Add(48 * time.Hour)
		blocks := MergeConsecutive([]Entry{e1, e2})
		require.Len(t, blocks, 1)
		assert.Equal(t, e2.UpdatedAt, blocks[0].LastModified)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Nil(t, MergeConsecutive(nil))
	})

	t.Run("entries sharing a start merge identically in any input order", func(t *testing.T) {
		// Two schedules of different types both start at base; type 5
		// continues into a second hour.
		a := entry(1, 5, base, time.Hour)
		b := entry(2, 6, base, time.Hour)
		c := entry(3, 5, base.Add(time.Hour), time.Hour)

		first := MergeConsecutive([]Entry{a, b, c})
		second := MergeConsecutive([]Entry{b, c, a})
		require.Equal(t, first, second)
		require.Len(t, first, 2)
		assert.Equal(t, []int64{1, 3}, first[0].OccurrenceIDs)
		assert.Equal(t, []int64{2}, first[1].OccurrenceIDs)
	})
}

func TestRenderICS(t *testing.T) {
	base := time.Date(2024, time.September, 2, 9, 0, 0, 0, time.UTC)
	now := time.Date(2024, time.September, 1, 0, 0, 0, 0, time.UTC)

	t.Run("document structure", func(t *testing.T) {
		blocks := MergeConsecutive([]Entry{entry(1, 5, base, time.Hour)})
		doc := RenderICS(blocks, "HUMS Shifts", 7, now)

		assert.True(t, strings.HasPrefix(doc, "BEGIN:VCALENDAR\r\n"))
		assert.True(t, strings.HasSuffix(doc, "END:VCALENDAR\r\n"))
		assert.Contains(t, doc, "X-WR-CALNAME:HUMS Shifts\r\n")
		assert.Contains(t, doc, "DTSTART:20240902T090000Z\r\n")
		assert.Contains(t, doc, "DTEND:20240902T100000Z\r\n")
		assert.Contains(t, doc, "SUMMARY:Front Desk\r\n")
		assert.Contains(t, doc, "LOCATION:Lobby\r\n")
	})

	t.Run("uid names every member occurrence and the user", func(t *testing.T) {
		blocks := MergeConsecutive([]Entry{
			entry(3, 5, base, time.Hour),
			entry(1, 5, base.Add(time.Hour), time.Hour),
		})
		doc := RenderICS(blocks, "cal", 7, now)
		assert.Contains(t, doc, "UID:1-3-u7@hums\r\n")
	})

	t.Run("uid is stable across renders", func(t *testing.T) {
		blocks := MergeConsecutive([]Entry{entry(1, 5, base, time.Hour)})
		a := RenderICS(blocks, "cal", 7, now)
		b := RenderICS(blocks, "cal", 7, now.Add(time.Hour))
		uidLine := func(doc string) string {
			for _, line := range strings.Split(doc, "\r\n") {
				if strings.HasPrefix(line, "UID:") {
					return line
				}
			}
			return ""
		}
		assert.Equal(t, uidLine(a), uidLine(b))
		assert.NotEmpty(t, uidLine(a))
	})

	t.Run("text fields are escaped", func(t *testing.T) {
		e := entry(1, 5, base, time.Hour)
		e.Summary = "Desk; front, main"
		e.Description = "line one\nline two"
		doc := RenderICS(MergeConsecutive([]Entry{e}), "cal", 7, now)
		assert.Contains(t, doc, `SUMMARY:Desk\; front\, main`)
		assert.Contains(t, doc, `DESCRIPTION:line one\nline two`)
	})
}
