package scheduler

import (
	"sort"
	"time"
)

// Slot is a reserved or requested window on a single bookable resource.
type Slot struct {
	ID       string
	Resource int
	Label    string
	Start    time.Time
	End      time.Time
}

// Conflict describes an existing slot that intersects a candidate window.
type Conflict struct {
	WithSlotID string
	Label      string
	Resource   int
	Start      time.Time
	End        time.Time
}

// Overlaps reports whether the half-open windows [aStart, aEnd) and
// [bStart, bEnd) intersect. Back-to-back windows do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// SameWindow reports whether two slots cover exactly the same instants.
func SameWindow(a, b Slot) bool {
	return a.Start.Equal(b.Start) && a.End.Equal(b.End)
}

// FindOverlaps checks a set of slots pairwise and reports every pair that
// shares a resource and intersects. Each pair is reported once, attributed to
// the slot that starts later.
func FindOverlaps(slots []Slot) []Conflict {
	if len(slots) < 2 {
		return nil
	}

	ordered := make([]Slot, len(slots))
	copy(ordered, slots)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Resource != ordered[j].Resource {
			return ordered[i].Resource < ordered[j].Resource
		}
		return ordered[i].Start.Before(ordered[j].Start)
	})

	var conflicts []Conflict
	for i := range ordered {
		for j := i + 1; j < len(ordered); j++ {
			if ordered[j].Resource != ordered[i].Resource {
				break
			}
			if !ordered[j].Start.Before(ordered[i].End) {
				break
			}
			conflicts = append(conflicts, Conflict{
				WithSlotID: ordered[i].ID,
				Label:      ordered[j].Label,
				Resource:   ordered[j].Resource,
				Start:      ordered[j].Start,
				End:        ordered[j].End,
			})
		}
	}
	return conflicts
}
