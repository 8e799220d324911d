package availability

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRange is returned when the query range is empty or inverted.
var ErrInvalidRange = errors.New("range start must be before range end")

// MalformedIntervalError reports a busy interval whose end is not after its
// start. Such intervals would corrupt the cursor walk, so they are rejected
// rather than skipped.
type MalformedIntervalError struct {
	Interval BusyInterval
}

func (e *MalformedIntervalError) Error() string {
	return fmt.Sprintf("malformed busy interval: %s", e.Interval)
}

// ComputeFree derives the free intervals complementary to busy within
// [rangeStart, rangeEnd). The busy intervals must be sorted ascending by
// start and non-overlapping, as the Calendar freebusy endpoint guarantees.
// Busy intervals entirely outside the range are clipped away before the walk.
//
// The union of busy (clipped to the range) and the returned free intervals
// covers the range exactly, with no gaps and no overlaps.
func ComputeFree(rangeStart, rangeEnd time.Time, busy []BusyInterval) ([]FreeInterval, error) {
	if !rangeStart.Before(rangeEnd) {
		return nil, fmt.Errorf("%w: %s >= %s", ErrInvalidRange,
			rangeStart.Format(time.RFC3339), rangeEnd.Format(time.RFC3339))
	}

	var free []FreeInterval
	cursor := rangeStart

	for _, b := range busy {
		if !b.Start.Before(b.End) {
			return nil, &MalformedIntervalError{Interval: b}
		}

		// Clip to the query range. The calendar collaborator is expected to
		// have done this already; clipping here keeps the walk correct when
		// it has not.
		if !b.End.After(rangeStart) || !b.Start.Before(rangeEnd) {
			continue
		}
		start, end := b.Start, b.End
		if start.Before(rangeStart) {
			start = rangeStart
		}
		if end.After(rangeEnd) {
			end = rangeEnd
		}

		if start.After(cursor) {
			free = append(free, FreeInterval{Start: cursor, End: start})
		}
		if end.After(cursor) {
			cursor = end
		}
	}

	if cursor.Before(rangeEnd) {
		free = append(free, FreeInterval{Start: cursor, End: rangeEnd})
	}

	return free, nil
}

// ComputeWindow runs ComputeFree and bundles the inputs and result into a
// Window for serialization back to the caller.
func ComputeWindow(rangeStart, rangeEnd time.Time, busy []BusyInterval) (*Window, error) {
	free, err := ComputeFree(rangeStart, rangeEnd, busy)
	if err != nil {
		return nil, err
	}
	return &Window{
		RangeStart: rangeStart,
		RangeEnd:   rangeEnd,
		Busy:       busy,
		Free:       free,
	}, nil
}
