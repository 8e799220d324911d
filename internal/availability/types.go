package availability

import (
	"fmt"
	"time"
)

// BusyInterval is a time range during which a calendar is unavailable.
// Start must be strictly before End.
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// FreeInterval is a time range during which a calendar is available.
type FreeInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Window is the result of one availability query: the requested range,
// the busy intervals the calendar reported, and the derived free intervals.
// Windows are recomputed per query and never persisted.
type Window struct {
	RangeStart time.Time      `json:"range_start"`
	RangeEnd   time.Time      `json:"range_end"`
	Busy       []BusyInterval `json:"busy"`
	Free       []FreeInterval `json:"free"`
}

func (b BusyInterval) String() string {
	return fmt.Sprintf("%s - %s", b.Start.Format(time.RFC3339), b.End.Format(time.RFC3339))
}

func (f FreeInterval) String() string {
	return fmt.Sprintf("%s - %s", f.Start.Format(time.RFC3339), f.End.Format(time.RFC3339))
}
