package availability

import (
	"errors"
	"testing"
	"time"
)

func ts(t *testing.T, hhmm string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, "2025-11-15T"+hhmm+":00Z")
	if err != nil {
		t.Fatalf("bad test timestamp %q: %v", hhmm, err)
	}
	return parsed
}

func TestComputeFree(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		busy [][2]string
		want [][2]string
	}{
		{
			name: "empty busy list yields whole range",
			from: "09:00", to: "18:00",
			busy: nil,
			want: [][2]string{{"09:00", "18:00"}},
		},
		{
			name: "busy covering whole range yields nothing",
			from: "09:00", to: "18:00",
			busy: [][2]string{{"09:00", "18:00"}},
			want: nil,
		},
		{
			name: "typical working day",
			from: "09:00", to: "18:00",
			busy: [][2]string{{"10:00", "11:30"}, {"13:00", "14:00"}, {"15:30", "16:00"}},
			want: [][2]string{{"09:00", "10:00"}, {"11:30", "13:00"}, {"14:00", "15:30"}, {"16:00", "18:00"}},
		},
		{
			name: "busy starting at range start",
			from: "09:00", to: "12:00",
			busy: [][2]string{{"09:00", "10:00"}},
			want: [][2]string{{"10:00", "12:00"}},
		},
		{
			name: "busy ending at range end",
			from: "09:00", to: "12:00",
			busy: [][2]string{{"11:00", "12:00"}},
			want: [][2]string{{"09:00", "11:00"}},
		},
		{
			name: "adjacent busy intervals leave no gap between them",
			from: "09:00", to: "12:00",
			busy: [][2]string{{"09:30", "10:30"}, {"10:30", "11:00"}},
			want: [][2]string{{"09:00", "09:30"}, {"11:00", "12:00"}},
		},
		{
			name: "busy outside range is clipped away",
			from: "09:00", to: "12:00",
			busy: [][2]string{{"06:00", "07:00"}, {"13:00", "14:00"}},
			want: [][2]string{{"09:00", "12:00"}},
		},
		{
			name: "busy straddling range start is clipped",
			from: "09:00", to: "12:00",
			busy: [][2]string{{"08:00", "09:45"}},
			want: [][2]string{{"09:45", "12:00"}},
		},
		{
			name: "busy straddling range end is clipped",
			from: "09:00", to: "12:00",
			busy: [][2]string{{"11:15", "13:00"}},
			want: [][2]string{{"09:00", "11:15"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var busy []BusyInterval
			for _, b := range tt.busy {
				busy = append(busy, BusyInterval{Start: ts(t, b[0]), End: ts(t, b[1])})
			}

			free, err := ComputeFree(ts(t, tt.from), ts(t, tt.to), busy)
			if err != nil {
				t.Fatalf("ComputeFree() error = %v", err)
			}

			if len(free) != len(tt.want) {
				t.Fatalf("ComputeFree() returned %d intervals, want %d: %v", len(free), len(tt.want), free)
			}
			for i, w := range tt.want {
				if !free[i].Start.Equal(ts(t, w[0])) || !free[i].End.Equal(ts(t, w[1])) {
					t.Errorf("free[%d] = %s, want %s - %s", i, free[i], w[0], w[1])
				}
			}
			for i, f := range free {
				if !f.Start.Before(f.End) {
					t.Errorf("free[%d] = %s has start >= end", i, f)
				}
			}
		})
	}
}

func TestComputeFreeInvalidRange(t *testing.T) {
	_, err := ComputeFree(ts(t, "18:00"), ts(t, "09:00"), nil)
	if !errors.Is(err, ErrInvalidRange) {
		t.Errorf("inverted range: error = %v, want ErrInvalidRange", err)
	}

	_, err = ComputeFree(ts(t, "09:00"), ts(t, "09:00"), nil)
	if !errors.Is(err, ErrInvalidRange) {
		t.Errorf("empty range: error = %v, want ErrInvalidRange", err)
	}
}

func TestComputeFreeMalformedInterval(t *testing.T) {
	tests := []struct {
		name string
		busy [2]string
	}{
		{"zero-length busy interval", [2]string{"10:00", "10:00"}},
		{"inverted busy interval", [2]string{"11:00", "10:00"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			busy := []BusyInterval{{Start: ts(t, tt.busy[0]), End: ts(t, tt.busy[1])}}
			_, err := ComputeFree(ts(t, "09:00"), ts(t, "18:00"), busy)

			var malformed *MalformedIntervalError
			if !errors.As(err, &malformed) {
				t.Fatalf("error = %v, want MalformedIntervalError", err)
			}
		})
	}
}

func TestComputeWindowCoversRange(t *testing.T) {
	busy := []BusyInterval{
		{Start: ts(t, "10:00"), End: ts(t, "11:30")},
		{Start: ts(t, "13:00"), End: ts(t, "14:00")},
	}

	w, err := ComputeWindow(ts(t, "09:00"), ts(t, "18:00"), busy)
	if err != nil {
		t.Fatalf("ComputeWindow() error = %v", err)
	}

	// Free and busy together must tile the range without gaps or overlaps.
	type span struct{ start, end time.Time }
	var spans []span
	for _, b := range w.Busy {
		spans = append(spans, span{b.Start, b.End})
	}
	for _, f := range w.Free {
		spans = append(spans, span{f.Start, f.End})
	}
	for i := 0; i < len(spans); i++ {
		for j := i + 1; j < len(spans); j++ {
			a, b := spans[i], spans[j]
			if a.start.Before(b.end) && b.start.Before(a.end) {
				t.Errorf("spans %d and %d overlap", i, j)
			}
		}
	}

	var total time.Duration
	for _, s := range spans {
		total += s.end.Sub(s.start)
	}
	if want := w.RangeEnd.Sub(w.RangeStart); total != want {
		t.Errorf("covered %s of the range, want %s", total, want)
	}
}
