package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"meeting-scheduler/internal/availability"
	"meeting-scheduler/internal/booking"
)

// Store is the persistence the HTTP layer touches directly.
type Store interface {
	GetBookingLink(ctx context.Context, bookingLinkID string) (*availability.BookingLink, error)
	GetBookingLinkBySlug(ctx context.Context, slug string) (*availability.BookingLink, error)
	ListBookingLinks(ctx context.Context, hostID string) ([]availability.BookingLink, error)
	CreateBookingLink(ctx context.Context, l *availability.BookingLink) error

	GetAvailabilityPolicy(ctx context.Context, bookingLinkID string) (*availability.Policy, error)
	UpsertAvailabilityPolicy(ctx context.Context, p *availability.Policy) error

	ListAllBlockedIntervals(ctx context.Context, bookingLinkID string) ([]availability.BlockedInterval, error)
	CreateBlockedInterval(ctx context.Context, b *availability.BlockedInterval) error
	DeleteBlockedInterval(ctx context.Context, bookingLinkID, id string) (bool, error)

	SaveCalendarCredential(ctx context.Context, hostID string, tok *oauth2.Token, scope string) error
}

type AvailabilityService interface {
	Compute(ctx context.Context, bookingLinkID string, date availability.Date) (availability.Result, error)
}

type BookingService interface {
	Create(ctx context.Context, req booking.Request) (*booking.Booking, error)
	ListForHost(ctx context.Context, hostID string) ([]booking.Booking, error)
	Cancel(ctx context.Context, hostID, bookingID string) (*booking.Booking, error)
}

type App struct {
	Store        Store
	Availability AvailabilityService
	Bookings     BookingService
	Auth         *Authenticator
	// OAuth is nil when Google Calendar is not configured.
	OAuth           *oauth2.Config
	DefaultTimezone string
	// ConsentRedirect receives the browser after a successful calendar connect.
	ConsentRedirect string
	Logger          *slog.Logger

	now func() time.Time
}

func (a *App) clock() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now()
}

func (a *App) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}
