package app

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"meeting-scheduler/internal/availability"
	"meeting-scheduler/internal/booking"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetBookingLink(ctx context.Context, id string) (*availability.BookingLink, error) {
	args := m.Called(ctx, id)
	l, _ := args.Get(0).(*availability.BookingLink)
	return l, args.Error(1)
}

func (m *MockStore) GetBookingLinkBySlug(ctx context.Context, slug string) (*availability.BookingLink, error) {
	args := m.Called(ctx, slug)
	l, _ := args.Get(0).(*availability.BookingLink)
	return l, args.Error(1)
}

func (m *MockStore) ListBookingLinks(ctx context.Context, hostID string) ([]availability.BookingLink, error) {
	args := m.Called(ctx, hostID)
	l, _ := args.Get(0).([]availability.BookingLink)
	return l, args.Error(1)
}

func (m *MockStore) CreateBookingLink(ctx context.Context, l *availability.BookingLink) error {
	return m.Called(ctx, l).Error(0)
}

func (m *MockStore) GetAvailabilityPolicy(ctx context.Context, id string) (*availability.Policy, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*availability.Policy)
	return p, args.Error(1)
}

func (m *MockStore) UpsertAvailabilityPolicy(ctx context.Context, p *availability.Policy) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockStore) ListAllBlockedIntervals(ctx context.Context, id string) ([]availability.BlockedInterval, error) {
	args := m.Called(ctx, id)
	b, _ := args.Get(0).([]availability.BlockedInterval)
	return b, args.Error(1)
}

func (m *MockStore) CreateBlockedInterval(ctx context.Context, b *availability.BlockedInterval) error {
	return m.Called(ctx, b).Error(0)
}

func (m *MockStore) DeleteBlockedInterval(ctx context.Context, linkID, id string) (bool, error) {
	args := m.Called(ctx, linkID, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) SaveCalendarCredential(ctx context.Context, hostID string, tok *oauth2.Token, scope string) error {
	return m.Called(ctx, hostID, tok, scope).Error(0)
}

type MockAvailability struct {
	mock.Mock
}

func (m *MockAvailability) Compute(ctx context.Context, id string, date availability.Date) (availability.Result, error) {
	args := m.Called(ctx, id, date)
	r, _ := args.Get(0).(availability.Result)
	return r, args.Error(1)
}

type MockBookings struct {
	mock.Mock
}

func (m *MockBookings) Create(ctx context.Context, req booking.Request) (*booking.Booking, error) {
	args := m.Called(ctx, req)
	b, _ := args.Get(0).(*booking.Booking)
	return b, args.Error(1)
}

func (m *MockBookings) ListForHost(ctx context.Context, hostID string) ([]booking.Booking, error) {
	args := m.Called(ctx, hostID)
	b, _ := args.Get(0).([]booking.Booking)
	return b, args.Error(1)
}

func (m *MockBookings) Cancel(ctx context.Context, hostID, bookingID string) (*booking.Booking, error) {
	args := m.Called(ctx, hostID, bookingID)
	b, _ := args.Get(0).(*booking.Booking)
	return b, args.Error(1)
}

const testSecret = "test-secret"

type harness struct {
	app      *App
	store    *MockStore
	avail    *MockAvailability
	bookings *MockBookings
	router   *gin.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	auth, err := NewAuthenticator(testSecret, []string{"host-static:static-token"})
	require.NoError(t, err)

	h := &harness{
		store:    new(MockStore),
		avail:    new(MockAvailability),
		bookings: new(MockBookings),
	}
	h.app = &App{
		Store:           h.store,
		Availability:    h.avail,
		Bookings:        h.bookings,
		Auth:            auth,
		DefaultTimezone: "UTC",
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	h.router = h.app.Router()
	return h
}

func hostToken(t *testing.T, hostID string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   hostID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func (h *harness) do(method, path, body, token string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}
