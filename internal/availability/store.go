package availability

import (
	"context"
	"time"
)

// BookingLink is the subset of a host's booking link the engine needs.
type BookingLink struct {
	ID              string    `json:"id"`
	HostID          string    `json:"host_id"`
	Slug            string    `json:"slug"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	DurationMinutes int       `json:"duration_minutes"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
}

func (l BookingLink) Duration() time.Duration {
	return time.Duration(l.DurationMinutes) * time.Minute
}

type BlockedInterval struct {
	ID            string    `json:"id"`
	BookingLinkID string    `json:"booking_link_id"`
	Start         time.Time `json:"start_time"`
	End           time.Time `json:"end_time"`
	Title         string    `json:"title,omitempty"`
}

func (b BlockedInterval) Interval() Interval {
	return Interval{Start: b.Start, End: b.End}
}

// Store is the read side of persistence used by the engine.
// Lookups return nil, nil when the record does not exist.
type Store interface {
	GetAvailabilityPolicy(ctx context.Context, bookingLinkID string) (*Policy, error)
	// ListBlockedIntervals returns blocks with start < rangeEnd and end > rangeStart.
	ListBlockedIntervals(ctx context.Context, bookingLinkID string, rangeStart, rangeEnd time.Time) ([]BlockedInterval, error)
	GetBookingLink(ctx context.Context, bookingLinkID string) (*BookingLink, error)
}

// CalendarGateway reports busy periods from the host's external calendar.
// Failures are *AuthorizationError or *ProviderError.
type CalendarGateway interface {
	FetchBusyIntervals(ctx context.Context, hostID string, rangeStart, rangeEnd time.Time) ([]Interval, error)
}
