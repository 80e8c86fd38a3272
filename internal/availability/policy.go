package availability

import (
	"context"
	"fmt"
	"slices"
	"time"
)

const (
	DefaultStartHour = 9
	DefaultEndHour   = 17
)

// DefaultWeekdays is Monday through Friday.
var DefaultWeekdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

// Policy is a booking link's bookable window.
type Policy struct {
	BookingLinkID   string         `json:"booking_link_id"`
	StartHour       int            `json:"start_hour"`
	EndHour         int            `json:"end_hour"`
	AllowedWeekdays []time.Weekday `json:"days_of_week"`
	Timezone        string         `json:"timezone"`
	UpdatedAt       time.Time      `json:"updated_at,omitempty"`
}

// DefaultPolicy returns 09:00-17:00, Monday-Friday in timezone.
func DefaultPolicy(bookingLinkID, timezone string) Policy {
	return Policy{
		BookingLinkID:   bookingLinkID,
		StartHour:       DefaultStartHour,
		EndHour:         DefaultEndHour,
		AllowedWeekdays: slices.Clone(DefaultWeekdays),
		Timezone:        timezone,
	}
}

func (p Policy) Allows(day time.Weekday) bool {
	return slices.Contains(p.AllowedWeekdays, day)
}

// Validate checks the policy invariants, including that Timezone resolves.
func (p Policy) Validate() error {
	if p.StartHour < 0 || p.StartHour > 23 || p.EndHour < 0 || p.EndHour > 23 {
		return &PolicyError{BookingLinkID: p.BookingLinkID, Reason: fmt.Sprintf("hours %d-%d outside 0-23", p.StartHour, p.EndHour)}
	}
	if p.StartHour >= p.EndHour {
		return &PolicyError{BookingLinkID: p.BookingLinkID, Reason: fmt.Sprintf("start hour %d not before end hour %d", p.StartHour, p.EndHour)}
	}
	if len(p.AllowedWeekdays) == 0 {
		return &PolicyError{BookingLinkID: p.BookingLinkID, Reason: "no allowed weekdays"}
	}
	seen := make(map[time.Weekday]bool, len(p.AllowedWeekdays))
	for _, d := range p.AllowedWeekdays {
		if d < time.Sunday || d > time.Saturday {
			return &PolicyError{BookingLinkID: p.BookingLinkID, Reason: fmt.Sprintf("weekday %d outside 0-6", d)}
		}
		if seen[d] {
			return &PolicyError{BookingLinkID: p.BookingLinkID, Reason: fmt.Sprintf("weekday %d listed twice", d)}
		}
		seen[d] = true
	}
	if _, err := p.Location(); err != nil {
		return &PolicyError{BookingLinkID: p.BookingLinkID, Reason: err.Error()}
	}
	return nil
}

func (p Policy) Location() (*time.Location, error) {
	switch p.Timezone {
	case "":
		return nil, fmt.Errorf("timezone is empty")
	case "Local":
		// the server zone is not a property of the host
		return nil, fmt.Errorf("timezone must name an IANA zone, not Local")
	}
	return time.LoadLocation(p.Timezone)
}

// Window returns [date@StartHour, date@EndHour) in the policy timezone.
func (p Policy) Window(date Date) (Interval, error) {
	loc, err := p.Location()
	if err != nil {
		return Interval{}, &PolicyError{BookingLinkID: p.BookingLinkID, Reason: err.Error()}
	}
	return Interval{Start: date.At(p.StartHour, loc), End: date.At(p.EndHour, loc)}, nil
}

// Resolver loads a link's policy, falling back to the default without persisting it.
type Resolver struct {
	store           Store
	defaultTimezone string
}

func NewResolver(store Store, defaultTimezone string) *Resolver {
	if defaultTimezone == "" {
		defaultTimezone = "UTC"
	}
	return &Resolver{store: store, defaultTimezone: defaultTimezone}
}

func (r *Resolver) ResolvePolicy(ctx context.Context, bookingLinkID string) (Policy, error) {
	stored, err := r.store.GetAvailabilityPolicy(ctx, bookingLinkID)
	if err != nil {
		return Policy{}, fmt.Errorf("get availability policy: %w", err)
	}
	p := DefaultPolicy(bookingLinkID, r.defaultTimezone)
	if stored != nil {
		p = *stored
		p.BookingLinkID = bookingLinkID
		if p.Timezone == "" {
			p.Timezone = r.defaultTimezone
		}
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}
