package availability

import "time"

const (
	DefaultBuffer = 15 * time.Minute
	DefaultStep   = 30 * time.Minute
)

// Slot is a bookable start instant. The buffer is not part of the slot.
type Slot struct {
	Start time.Time `json:"start"`
}

// GenerateSlots walks window in step increments and returns every start t where
// [t, t+duration+buffer) fits inside the window and overlaps no conflict.
// Results are ascending; each instant is visited once.
func GenerateSlots(window Interval, duration, buffer time.Duration, conflicts []Interval, step time.Duration) []Slot {
	if duration <= 0 || step <= 0 || buffer < 0 {
		return nil
	}
	if !window.End.After(window.Start) {
		return nil
	}

	span := duration + buffer
	slots := []Slot{}
	for t := window.Start; !t.Add(span).After(window.End); t = t.Add(step) {
		if overlapsAny(Interval{Start: t, End: t.Add(span)}, conflicts) {
			continue
		}
		slots = append(slots, Slot{Start: t})
	}
	return slots
}
