package availability

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar day with no zone attached. It only becomes a range of
// instants once placed in a policy's timezone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, &InvalidInputError{Field: "date", Reason: fmt.Sprintf("%q is not YYYY-MM-DD", s)}
	}
	return DateOf(t), nil
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// At returns the instant hour:00:00 of the day in loc. An hour skipped by a
// forward DST jump resolves to the instant the clocks jump, whichever side of
// the gap time.Date picked.
func (d Date) At(hour int, loc *time.Location) time.Time {
	t := time.Date(d.Year, d.Month, d.Day, hour, 0, 0, 0, loc)
	if t.Hour() == hour && t.Day() == d.Day {
		return t
	}
	start, end := t.ZoneBounds()
	wall := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
	want := time.Date(d.Year, d.Month, d.Day, hour, 0, 0, 0, time.UTC)
	switch {
	case wall.Before(want) && !end.IsZero():
		return end
	case wall.After(want) && !start.IsZero():
		return start
	}
	return t
}

// Weekday is independent of location; noon avoids DST gaps at midnight.
func (d Date) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC).Weekday()
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}
