package booking_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"meeting-scheduler/internal/availability"
	"meeting-scheduler/internal/booking"
	"meeting-scheduler/internal/calendar"
	"meeting-scheduler/internal/events"
	"meeting-scheduler/internal/notify"
)

var slotStart = time.Date(2026, time.January, 5, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store     *MockStore
	tx        *MockTx
	slots     *MockSlots
	cal       *MockCalendar
	notifier  *MockNotifier
	publisher *MockPublisher
	svc       *booking.Service
}

func newFixture() *fixture {
	f := &fixture{
		tx:        new(MockTx),
		slots:     new(MockSlots),
		cal:       new(MockCalendar),
		notifier:  new(MockNotifier),
		publisher: new(MockPublisher),
	}
	f.store = &MockStore{tx: f.tx}
	f.svc = booking.NewService(f.store, f.slots, f.cal, f.notifier, f.publisher, quietLogger())
	return f
}

func (f *fixture) withLinkAndHost() {
	f.store.On("GetBookingLinkBySlug", mock.Anything, "intro").Return(&availability.BookingLink{
		ID:              "link-1",
		HostID:          "host-1",
		Slug:            "intro",
		Title:           "Intro call",
		DurationMinutes: 30,
		Active:          true,
	}, nil)
	f.store.On("GetHost", mock.Anything, "host-1").Return(&booking.Host{
		ID:    "host-1",
		Name:  "Grace",
		Email: "grace@example.com",
	}, nil)
	f.store.On("WithHostLock", mock.Anything, "host-1").Return(nil)
}

func slotCheck() availability.SlotCheck {
	return availability.SlotCheck{BookingLinkID: "link-1", Start: slotStart}
}

// slotFree makes the lock-free check pass and the locked re-check, which must
// read through the transaction, report free.
func (f *fixture) slotFree(free bool) {
	f.slots.On("PrepareSlotCheck", mock.Anything, "link-1", slotStart).Return(slotCheck(), true, nil)
	f.slots.On("VerifySlot", mock.Anything, f.tx, slotCheck()).Return(free, nil)
}

func request() booking.Request {
	return booking.Request{
		Slug:       "intro",
		GuestName:  "Ada",
		GuestEmail: "ada@example.com",
		GuestNotes: "roadmap",
		Start:      slotStart,
	}
}

func TestCreateConfirmsBooking(t *testing.T) {
	f := newFixture()
	f.withLinkAndHost()
	f.slotFree(true)
	f.tx.On("ListConfirmedBookings", mock.Anything, "host-1", slotStart.Add(-15*time.Minute), slotStart.Add(45*time.Minute)).
		Return([]booking.Booking{}, nil)
	f.tx.On("InsertBooking", mock.Anything, mock.MatchedBy(func(b *booking.Booking) bool {
		return b.BookingLinkID == "link-1" && b.End.Equal(slotStart.Add(30*time.Minute)) && b.Status == booking.StatusConfirmed
	})).Return(nil)
	f.cal.On("CreateEvent", mock.Anything, "host-1", mock.MatchedBy(func(ev calendar.Event) bool {
		return ev.GuestEmail == "ada@example.com" && ev.HostEmail == "grace@example.com" && ev.Summary == "Intro call with Ada"
	})).Return("evt-1", nil)
	f.store.On("SetCalendarEventID", mock.Anything, mock.AnythingOfType("string"), "evt-1").Return(nil)
	f.notifier.On("BookingConfirmed", mock.Anything, mock.MatchedBy(func(c notify.Confirmation) bool {
		return c.HostEmail == "grace@example.com" && c.Notes == "roadmap"
	})).Return(nil)
	f.publisher.On("PublishBookingConfirmed", mock.Anything, mock.MatchedBy(func(ev events.BookingConfirmed) bool {
		return ev.CalendarEventID == "evt-1" && ev.HostID == "host-1"
	})).Return(nil)

	b, err := f.svc.Create(context.Background(), request())
	require.NoError(t, err)
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, "evt-1", b.CalendarEventID)
	assert.Equal(t, "Intro call", b.LinkTitle)

	f.store.AssertExpectations(t)
	f.tx.AssertExpectations(t)
	f.cal.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func TestCreateRejectsSlotThatIsNoLongerFree(t *testing.T) {
	t.Run("taken before the lock", func(t *testing.T) {
		f := newFixture()
		f.withLinkAndHost()
		f.slots.On("PrepareSlotCheck", mock.Anything, "link-1", slotStart).Return(slotCheck(), false, nil)

		_, err := f.svc.Create(context.Background(), request())

		var taken *booking.SlotNoLongerAvailableError
		require.ErrorAs(t, err, &taken)
		assert.Equal(t, "link-1", taken.BookingLinkID)
		f.store.AssertNotCalled(t, "WithHostLock", mock.Anything, mock.Anything)
		f.tx.AssertNotCalled(t, "InsertBooking", mock.Anything, mock.Anything)
	})

	t.Run("taken while waiting for the lock", func(t *testing.T) {
		f := newFixture()
		f.withLinkAndHost()
		f.slotFree(false)

		_, err := f.svc.Create(context.Background(), request())

		var taken *booking.SlotNoLongerAvailableError
		require.ErrorAs(t, err, &taken)
		f.slots.AssertExpectations(t)
		f.tx.AssertNotCalled(t, "InsertBooking", mock.Anything, mock.Anything)
		f.cal.AssertNotCalled(t, "CreateEvent", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCreateReportsBusyHost(t *testing.T) {
	f := newFixture()
	f.store.On("GetBookingLinkBySlug", mock.Anything, "intro").
		Return(&availability.BookingLink{ID: "link-1", HostID: "host-1", DurationMinutes: 30, Active: true}, nil)
	f.store.On("GetHost", mock.Anything, "host-1").Return(&booking.Host{ID: "host-1"}, nil)
	f.slots.On("PrepareSlotCheck", mock.Anything, "link-1", slotStart).Return(slotCheck(), true, nil)
	f.store.On("WithHostLock", mock.Anything, "host-1").Return(fmt.Errorf("%w: host host-1", booking.ErrHostBusy))

	_, err := f.svc.Create(context.Background(), request())
	assert.ErrorIs(t, err, booking.ErrHostBusy)
	f.slots.AssertNotCalled(t, "VerifySlot", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateRejectsOverlapWithConcurrentBooking(t *testing.T) {
	cases := map[string]struct {
		otherStart time.Time
		rejected   bool
	}{
		"same slot":                {otherStart: slotStart, rejected: true},
		"ends inside buffer":       {otherStart: slotStart.Add(-40 * time.Minute), rejected: true},
		"buffer ends at our start": {otherStart: slotStart.Add(-45 * time.Minute), rejected: false},
		"starts inside our buffer": {otherStart: slotStart.Add(40 * time.Minute), rejected: true},
		"starts after our buffer":  {otherStart: slotStart.Add(45 * time.Minute), rejected: false},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			f.withLinkAndHost()
			f.slotFree(true)
			other := booking.Booking{ID: "other", Start: tc.otherStart, End: tc.otherStart.Add(30 * time.Minute)}
			f.tx.On("ListConfirmedBookings", mock.Anything, "host-1", mock.Anything, mock.Anything).
				Return([]booking.Booking{other}, nil)
			f.tx.On("InsertBooking", mock.Anything, mock.Anything).Return(nil).Maybe()
			f.cal.On("CreateEvent", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("not connected")).Maybe()
			f.notifier.On("BookingConfirmed", mock.Anything, mock.Anything).Return(nil).Maybe()
			f.publisher.On("PublishBookingConfirmed", mock.Anything, mock.Anything).Return(nil).Maybe()

			_, err := f.svc.Create(context.Background(), request())

			var taken *booking.SlotNoLongerAvailableError
			if tc.rejected {
				require.ErrorAs(t, err, &taken)
				f.tx.AssertNotCalled(t, "InsertBooking", mock.Anything, mock.Anything)
			} else {
				require.NoError(t, err)
				f.tx.AssertCalled(t, "InsertBooking", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestCreateSurvivesSideEffectFailures(t *testing.T) {
	f := newFixture()
	f.withLinkAndHost()
	f.slotFree(true)
	f.tx.On("ListConfirmedBookings", mock.Anything, "host-1", mock.Anything, mock.Anything).Return(nil, nil)
	f.tx.On("InsertBooking", mock.Anything, mock.Anything).Return(nil)
	f.cal.On("CreateEvent", mock.Anything, "host-1", mock.Anything).
		Return("", &availability.AuthorizationError{HostID: "host-1", Err: calendar.ErrNotConnected})
	f.notifier.On("BookingConfirmed", mock.Anything, mock.Anything).Return(errors.New("smtp down"))
	f.publisher.On("PublishBookingConfirmed", mock.Anything, mock.Anything).Return(errors.New("kafka down"))

	b, err := f.svc.Create(context.Background(), request())
	require.NoError(t, err)
	assert.Empty(t, b.CalendarEventID)
	f.store.AssertNotCalled(t, "SetCalendarEventID", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateLookupFailures(t *testing.T) {
	t.Run("unknown slug", func(t *testing.T) {
		f := newFixture()
		f.store.On("GetBookingLinkBySlug", mock.Anything, "intro").Return(nil, nil)
		_, err := f.svc.Create(context.Background(), request())
		assert.ErrorIs(t, err, booking.ErrLinkNotFound)
	})

	t.Run("inactive link", func(t *testing.T) {
		f := newFixture()
		f.store.On("GetBookingLinkBySlug", mock.Anything, "intro").
			Return(&availability.BookingLink{ID: "link-1", HostID: "host-1", DurationMinutes: 30}, nil)
		_, err := f.svc.Create(context.Background(), request())
		assert.ErrorIs(t, err, booking.ErrLinkNotFound)
	})

	t.Run("missing host", func(t *testing.T) {
		f := newFixture()
		f.store.On("GetBookingLinkBySlug", mock.Anything, "intro").
			Return(&availability.BookingLink{ID: "link-1", HostID: "host-1", DurationMinutes: 30, Active: true}, nil)
		f.store.On("GetHost", mock.Anything, "host-1").Return(nil, nil)
		_, err := f.svc.Create(context.Background(), request())
		assert.ErrorIs(t, err, booking.ErrHostNotFound)
	})

	t.Run("lock failure", func(t *testing.T) {
		f := newFixture()
		boom := errors.New("conn reset")
		f.store.On("GetBookingLinkBySlug", mock.Anything, "intro").
			Return(&availability.BookingLink{ID: "link-1", HostID: "host-1", DurationMinutes: 30, Active: true}, nil)
		f.store.On("GetHost", mock.Anything, "host-1").Return(&booking.Host{ID: "host-1"}, nil)
		f.slots.On("PrepareSlotCheck", mock.Anything, "link-1", slotStart).Return(slotCheck(), true, nil)
		f.store.On("WithHostLock", mock.Anything, "host-1").Return(boom)
		_, err := f.svc.Create(context.Background(), request())
		assert.ErrorIs(t, err, boom)
	})
}

func TestCreateValidatesRequest(t *testing.T) {
	cases := map[string]func(r *booking.Request){
		"slug":  func(r *booking.Request) { r.Slug = " " },
		"name":  func(r *booking.Request) { r.GuestName = "" },
		"email": func(r *booking.Request) { r.GuestEmail = "ada" },
		"start": func(r *booking.Request) { r.Start = time.Time{} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			req := request()
			mutate(&req)
			_, err := f.svc.Create(context.Background(), req)
			assert.ErrorIs(t, err, availability.ErrInvalidInput)
			f.store.AssertNotCalled(t, "GetBookingLinkBySlug", mock.Anything, mock.Anything)
		})
	}
}

func TestListForHost(t *testing.T) {
	f := newFixture()
	f.store.On("ListBookingsForHost", mock.Anything, "host-1").Return(nil, nil)

	out, err := f.svc.ListForHost(context.Background(), "host-1")
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)

	_, err = f.svc.ListForHost(context.Background(), "")
	assert.ErrorIs(t, err, availability.ErrInvalidInput)
}

func confirmedBooking() *booking.Booking {
	return &booking.Booking{
		ID:              "bk-1",
		BookingLinkID:   "link-1",
		HostID:          "host-1",
		Start:           slotStart,
		End:             slotStart.Add(30 * time.Minute),
		CalendarEventID: "evt-1",
		Status:          booking.StatusConfirmed,
	}
}

func TestCancelBooking(t *testing.T) {
	f := newFixture()
	f.store.On("GetBooking", mock.Anything, "bk-1").Return(confirmedBooking(), nil)
	f.store.On("CancelBooking", mock.Anything, "bk-1").Return(true, nil)
	f.cal.On("DeleteEvent", mock.Anything, "host-1", "evt-1").Return(nil)

	b, err := f.svc.Cancel(context.Background(), "host-1", "bk-1")
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, b.Status)
	f.store.AssertExpectations(t)
	f.cal.AssertExpectations(t)
}

func TestCancelBookingSurvivesCalendarFailure(t *testing.T) {
	f := newFixture()
	f.store.On("GetBooking", mock.Anything, "bk-1").Return(confirmedBooking(), nil)
	f.store.On("CancelBooking", mock.Anything, "bk-1").Return(true, nil)
	f.cal.On("DeleteEvent", mock.Anything, "host-1", "evt-1").
		Return(&availability.AuthorizationError{HostID: "host-1", Err: calendar.ErrNotConnected})

	b, err := f.svc.Cancel(context.Background(), "host-1", "bk-1")
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, b.Status)
}

func TestCancelBookingWithoutCalendarEvent(t *testing.T) {
	f := newFixture()
	bk := confirmedBooking()
	bk.CalendarEventID = ""
	f.store.On("GetBooking", mock.Anything, "bk-1").Return(bk, nil)
	f.store.On("CancelBooking", mock.Anything, "bk-1").Return(true, nil)

	_, err := f.svc.Cancel(context.Background(), "host-1", "bk-1")
	require.NoError(t, err)
	f.cal.AssertNotCalled(t, "DeleteEvent", mock.Anything, mock.Anything, mock.Anything)
}

func TestCancelBookingRejections(t *testing.T) {
	t.Run("unknown booking", func(t *testing.T) {
		f := newFixture()
		f.store.On("GetBooking", mock.Anything, "bk-1").Return(nil, nil)
		_, err := f.svc.Cancel(context.Background(), "host-1", "bk-1")
		assert.ErrorIs(t, err, booking.ErrBookingNotFound)
	})

	t.Run("another host's booking", func(t *testing.T) {
		f := newFixture()
		f.store.On("GetBooking", mock.Anything, "bk-1").Return(confirmedBooking(), nil)
		_, err := f.svc.Cancel(context.Background(), "host-2", "bk-1")
		assert.ErrorIs(t, err, booking.ErrBookingNotFound)
		f.store.AssertNotCalled(t, "CancelBooking", mock.Anything, mock.Anything)
	})

	t.Run("already cancelled", func(t *testing.T) {
		f := newFixture()
		bk := confirmedBooking()
		bk.Status = booking.StatusCancelled
		f.store.On("GetBooking", mock.Anything, "bk-1").Return(bk, nil)
		_, err := f.svc.Cancel(context.Background(), "host-1", "bk-1")
		assert.ErrorIs(t, err, booking.ErrAlreadyCancelled)
		f.store.AssertNotCalled(t, "CancelBooking", mock.Anything, mock.Anything)
	})

	t.Run("cancelled concurrently", func(t *testing.T) {
		f := newFixture()
		f.store.On("GetBooking", mock.Anything, "bk-1").Return(confirmedBooking(), nil)
		f.store.On("CancelBooking", mock.Anything, "bk-1").Return(false, nil)
		_, err := f.svc.Cancel(context.Background(), "host-1", "bk-1")
		assert.ErrorIs(t, err, booking.ErrAlreadyCancelled)
		f.cal.AssertNotCalled(t, "DeleteEvent", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing host", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.Cancel(context.Background(), "", "bk-1")
		assert.ErrorIs(t, err, availability.ErrInvalidInput)
	})
}
