package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"meeting-scheduler/internal/availability"
	"meeting-scheduler/internal/calendar"
	"meeting-scheduler/internal/events"
	"meeting-scheduler/internal/notify"
)

const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

var (
	ErrLinkNotFound     = errors.New("booking link not found")
	ErrHostNotFound     = errors.New("host not found")
	ErrBookingNotFound  = errors.New("booking not found")
	ErrAlreadyCancelled = errors.New("booking already cancelled")
	// ErrHostBusy means another commit for the same host held the lock too long.
	ErrHostBusy = errors.New("host is busy with another booking")
)

// SlotNoLongerAvailableError is returned when a slot was taken or became
// unavailable between the availability read and the booking commit.
type SlotNoLongerAvailableError struct {
	BookingLinkID string
	Start         time.Time
}

func (e *SlotNoLongerAvailableError) Error() string {
	return fmt.Sprintf("slot %s on link %s is no longer available", e.Start.UTC().Format(time.RFC3339), e.BookingLinkID)
}

type Booking struct {
	ID              string    `json:"id"`
	BookingLinkID   string    `json:"booking_link_id"`
	HostID          string    `json:"host_id"`
	LinkTitle       string    `json:"link_title,omitempty"`
	GuestName       string    `json:"guest_name"`
	GuestEmail      string    `json:"guest_email"`
	GuestNotes      string    `json:"guest_notes,omitempty"`
	Start           time.Time `json:"start_time"`
	End             time.Time `json:"end_time"`
	CalendarEventID string    `json:"calendar_event_id,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

func (b Booking) Interval() availability.Interval {
	return availability.Interval{Start: b.Start, End: b.End}
}

type Host struct {
	ID    string
	Name  string
	Email string
}

type Request struct {
	Slug       string
	GuestName  string
	GuestEmail string
	GuestNotes string
	Start      time.Time
}

// Store is the booking persistence port.
// Lookups return nil, nil when the row does not exist.
type Store interface {
	GetBookingLinkBySlug(ctx context.Context, slug string) (*availability.BookingLink, error)
	GetHost(ctx context.Context, hostID string) (*Host, error)
	// WithHostLock runs fn in a transaction that holds the host's booking lock.
	WithHostLock(ctx context.Context, hostID string, fn func(ctx context.Context, tx Tx) error) error
	SetCalendarEventID(ctx context.Context, bookingID, eventID string) error
	ListBookingsForHost(ctx context.Context, hostID string) ([]Booking, error)
	GetBooking(ctx context.Context, bookingID string) (*Booking, error)
	// CancelBooking reports false when the booking is no longer confirmed.
	CancelBooking(ctx context.Context, bookingID string) (bool, error)
}

// Tx is the locked transaction. Its availability reads share the transaction's connection.
type Tx interface {
	availability.Store
	ListConfirmedBookings(ctx context.Context, hostID string, rangeStart, rangeEnd time.Time) ([]Booking, error)
	InsertBooking(ctx context.Context, b *Booking) error
}

// SlotChecker splits the slot check: PrepareSlotCheck may call the calendar
// provider and runs before the lock, VerifySlot only reads through store.
type SlotChecker interface {
	PrepareSlotCheck(ctx context.Context, bookingLinkID string, start time.Time) (availability.SlotCheck, bool, error)
	VerifySlot(ctx context.Context, store availability.Store, check availability.SlotCheck) (bool, error)
	Buffer() time.Duration
}

type CalendarEvents interface {
	CreateEvent(ctx context.Context, hostID string, ev calendar.Event) (string, error)
	DeleteEvent(ctx context.Context, hostID, eventID string) error
}

type Notifier interface {
	BookingConfirmed(ctx context.Context, c notify.Confirmation) error
}

type Publisher interface {
	PublishBookingConfirmed(ctx context.Context, ev events.BookingConfirmed) error
}
