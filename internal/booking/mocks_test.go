package booking_test

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/stretchr/testify/mock"

	"meeting-scheduler/internal/availability"
	"meeting-scheduler/internal/booking"
	"meeting-scheduler/internal/calendar"
	"meeting-scheduler/internal/events"
	"meeting-scheduler/internal/notify"
)

type MockStore struct {
	mock.Mock
	tx *MockTx
}

func (m *MockStore) GetBookingLinkBySlug(ctx context.Context, slug string) (*availability.BookingLink, error) {
	args := m.Called(ctx, slug)
	l, _ := args.Get(0).(*availability.BookingLink)
	return l, args.Error(1)
}

func (m *MockStore) GetHost(ctx context.Context, hostID string) (*booking.Host, error) {
	args := m.Called(ctx, hostID)
	h, _ := args.Get(0).(*booking.Host)
	return h, args.Error(1)
}

func (m *MockStore) WithHostLock(ctx context.Context, hostID string, fn func(ctx context.Context, tx booking.Tx) error) error {
	args := m.Called(ctx, hostID)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(ctx, m.tx)
}

func (m *MockStore) SetCalendarEventID(ctx context.Context, bookingID, eventID string) error {
	return m.Called(ctx, bookingID, eventID).Error(0)
}

func (m *MockStore) ListBookingsForHost(ctx context.Context, hostID string) ([]booking.Booking, error) {
	args := m.Called(ctx, hostID)
	b, _ := args.Get(0).([]booking.Booking)
	return b, args.Error(1)
}

func (m *MockStore) GetBooking(ctx context.Context, bookingID string) (*booking.Booking, error) {
	args := m.Called(ctx, bookingID)
	b, _ := args.Get(0).(*booking.Booking)
	return b, args.Error(1)
}

func (m *MockStore) CancelBooking(ctx context.Context, bookingID string) (bool, error) {
	args := m.Called(ctx, bookingID)
	return args.Bool(0), args.Error(1)
}

type MockTx struct {
	mock.Mock
}

func (m *MockTx) ListConfirmedBookings(ctx context.Context, hostID string, rangeStart, rangeEnd time.Time) ([]booking.Booking, error) {
	args := m.Called(ctx, hostID, rangeStart, rangeEnd)
	b, _ := args.Get(0).([]booking.Booking)
	return b, args.Error(1)
}

func (m *MockTx) InsertBooking(ctx context.Context, b *booking.Booking) error {
	return m.Called(ctx, b).Error(0)
}

func (m *MockTx) GetAvailabilityPolicy(ctx context.Context, bookingLinkID string) (*availability.Policy, error) {
	args := m.Called(ctx, bookingLinkID)
	p, _ := args.Get(0).(*availability.Policy)
	return p, args.Error(1)
}

func (m *MockTx) ListBlockedIntervals(ctx context.Context, bookingLinkID string, rangeStart, rangeEnd time.Time) ([]availability.BlockedInterval, error) {
	args := m.Called(ctx, bookingLinkID, rangeStart, rangeEnd)
	b, _ := args.Get(0).([]availability.BlockedInterval)
	return b, args.Error(1)
}

func (m *MockTx) GetBookingLink(ctx context.Context, bookingLinkID string) (*availability.BookingLink, error) {
	args := m.Called(ctx, bookingLinkID)
	l, _ := args.Get(0).(*availability.BookingLink)
	return l, args.Error(1)
}

type MockSlots struct {
	mock.Mock
}

func (m *MockSlots) PrepareSlotCheck(ctx context.Context, bookingLinkID string, start time.Time) (availability.SlotCheck, bool, error) {
	args := m.Called(ctx, bookingLinkID, start)
	check, _ := args.Get(0).(availability.SlotCheck)
	return check, args.Bool(1), args.Error(2)
}

func (m *MockSlots) VerifySlot(ctx context.Context, store availability.Store, check availability.SlotCheck) (bool, error) {
	args := m.Called(ctx, store, check)
	return args.Bool(0), args.Error(1)
}

func (m *MockSlots) Buffer() time.Duration { return 15 * time.Minute }

type MockCalendar struct {
	mock.Mock
}

func (m *MockCalendar) CreateEvent(ctx context.Context, hostID string, ev calendar.Event) (string, error) {
	args := m.Called(ctx, hostID, ev)
	return args.String(0), args.Error(1)
}

func (m *MockCalendar) DeleteEvent(ctx context.Context, hostID, eventID string) error {
	return m.Called(ctx, hostID, eventID).Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) BookingConfirmed(ctx context.Context, c notify.Confirmation) error {
	return m.Called(ctx, c).Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishBookingConfirmed(ctx context.Context, ev events.BookingConfirmed) error {
	return m.Called(ctx, ev).Error(0)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
