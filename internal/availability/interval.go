package availability

import "time"

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether a and b share any instant.
// Intervals that only touch (a.End == b.Start) do not overlap, so back-to-back meetings are allowed.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

func (i Interval) Overlaps(o Interval) bool {
	return Overlaps(i, o)
}

// Duration of the interval; zero or negative for empty ranges.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

func overlapsAny(span Interval, conflicts []Interval) bool {
	for _, c := range conflicts {
		if Overlaps(span, c) {
			return true
		}
	}
	return false
}
