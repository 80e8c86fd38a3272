package availability_test

import (
	"context"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/mock"

	"meeting-scheduler/internal/availability"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetAvailabilityPolicy(ctx context.Context, bookingLinkID string) (*availability.Policy, error) {
	args := m.Called(ctx, bookingLinkID)
	p, _ := args.Get(0).(*availability.Policy)
	return p, args.Error(1)
}

func (m *MockStore) ListBlockedIntervals(ctx context.Context, bookingLinkID string, rangeStart, rangeEnd time.Time) ([]availability.BlockedInterval, error) {
	args := m.Called(ctx, bookingLinkID, rangeStart, rangeEnd)
	b, _ := args.Get(0).([]availability.BlockedInterval)
	return b, args.Error(1)
}

func (m *MockStore) GetBookingLink(ctx context.Context, bookingLinkID string) (*availability.BookingLink, error) {
	args := m.Called(ctx, bookingLinkID)
	l, _ := args.Get(0).(*availability.BookingLink)
	return l, args.Error(1)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) FetchBusyIntervals(ctx context.Context, hostID string, rangeStart, rangeEnd time.Time) ([]availability.Interval, error) {
	args := m.Called(ctx, hostID, rangeStart, rangeEnd)
	iv, _ := args.Get(0).([]availability.Interval)
	return iv, args.Error(1)
}

func at(hour, min int) time.Time {
	return time.Date(2026, time.January, 5, hour, min, 0, 0, time.UTC)
}

func startsOf(slots []availability.Slot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Start.Format("15:04"))
	}
	return out
}

func sameInstant(want time.Time) interface{} {
	return mock.MatchedBy(func(got time.Time) bool { return got.Equal(want) })
}
