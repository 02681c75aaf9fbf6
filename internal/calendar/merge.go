// Package calendar exports a user's shift occurrences as an iCalendar feed,
// merging back-to-back occurrences of the same shift type into single
// blocks.
package calendar

import (
	"sort"
	"time"
)

// Entry is one occurrence as seen by the exporter.
type Entry struct {
	OccurrenceID int64
	ShiftTypeID  int64
	Summary      string
	Location     string
	Description  string
	Start        time.Time
	End          time.Time
	UpdatedAt    time.Time
}

// Block is a merged run of consecutive entries.
type Block struct {
	OccurrenceIDs []int64
	ShiftTypeID   int64
	Summary       string
	Location      string
	Description   string
	Start         time.Time
	End           time.Time
	LastModified  time.Time
}

// MergeConsecutive folds entries into blocks. Within a shift type, an entry
// extends the running block iff it starts exactly where the block ends; any
// gap closes the block. Types chain independently, so an overlapping entry
// of another type cannot break a run. Output is ordered by start then shift
// type, deterministic for any input order.
func MergeConsecutive(entries []Entry) []Block {
	if len(entries) == 0 {
		return nil
	}
	byType := make(map[int64][]Entry)
	for _, e := range entries {
		byType[e.ShiftTypeID] = append(byType[e.ShiftTypeID], e)
	}

	var blocks []Block
	for _, group := range byType {
		sort.SliceStable(group, func(i, j int) bool {
			if !group[i].Start.Equal(group[j].Start) {
				return group[i].Start.Before(group[j].Start)
			}
			return group[i].OccurrenceID < group[j].OccurrenceID
		})
		current := blockFrom(group[0])
		for _, e := range group[1:] {
			if e.Start.Equal(current.End) {
				current.OccurrenceIDs = append(current.OccurrenceIDs, e.OccurrenceID)
				current.End = e.End
				if e.UpdatedAt.After(current.LastModified) {
					current.LastModified = e.UpdatedAt
				}
				continue
			}
			blocks = append(blocks, current)
			current = blockFrom(e)
		}
		blocks = append(blocks, current)
	}

	sort.SliceStable(blocks, func(i, j int) bool {
		if !blocks[i].Start.Equal(blocks[j].Start) {
			return blocks[i].Start.Before(blocks[j].Start)
		}
		return blocks[i].ShiftTypeID < blocks[j].ShiftTypeID
	})
	return blocks
}

func blockFrom(e Entry) Block {
	return Block{
		OccurrenceIDs: []int64{e.OccurrenceID},
		ShiftTypeID:   e.ShiftTypeID,
		Summary:       e.Summary,
		Location:      e.Location,
		Description:   e.Description,
		Start:         e.Start,
		End:           e.End,
		LastModified:  e.UpdatedAt,
	}
}
