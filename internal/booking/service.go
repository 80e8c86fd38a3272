package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"meeting-scheduler/internal/availability"
	"meeting-scheduler/internal/calendar"
	"meeting-scheduler/internal/events"
	"meeting-scheduler/internal/notify"
)

type Service struct {
	store     Store
	slots     SlotChecker
	calendar  CalendarEvents
	notifier  Notifier
	publisher Publisher
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewService wires the booking flow. calendar, notifier and publisher may be nil.
func NewService(store Store, slots SlotChecker, cal CalendarEvents, notifier Notifier, publisher Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		slots:     slots,
		calendar:  cal,
		notifier:  notifier,
		publisher: publisher,
		logger:    logger,
		tracer:    otel.Tracer("meeting-scheduler/booking"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create books a slot. The slot is re-validated under the host lock, so two
// guests racing for overlapping slots cannot both commit.
func (s *Service) Create(ctx context.Context, req Request) (*Booking, error) {
	ctx, span := s.tracer.Start(ctx, "booking.Create", trace.WithAttributes(
		attribute.String("booking_link.slug", req.Slug),
	))
	defer span.End()

	if err := validate(req); err != nil {
		return nil, err
	}

	link, err := s.store.GetBookingLinkBySlug(ctx, req.Slug)
	if err != nil {
		return nil, fmt.Errorf("get booking link: %w", err)
	}
	if link == nil || !link.Active {
		return nil, ErrLinkNotFound
	}
	host, err := s.store.GetHost(ctx, link.HostID)
	if err != nil {
		return nil, fmt.Errorf("get host: %w", err)
	}
	if host == nil {
		return nil, ErrHostNotFound
	}

	b := &Booking{
		ID:            uuid.NewString(),
		BookingLinkID: link.ID,
		HostID:        host.ID,
		LinkTitle:     link.Title,
		GuestName:     strings.TrimSpace(req.GuestName),
		GuestEmail:    strings.TrimSpace(req.GuestEmail),
		GuestNotes:    strings.TrimSpace(req.GuestNotes),
		Start:         req.Start.UTC(),
		End:           req.Start.UTC().Add(link.Duration()),
		Status:        StatusConfirmed,
		CreatedAt:     s.now(),
	}

	check, free, err := s.slots.PrepareSlotCheck(ctx, link.ID, b.Start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("check slot: %w", err)
	}
	if !free {
		span.SetStatus(codes.Error, "slot taken")
		return nil, &SlotNoLongerAvailableError{BookingLinkID: link.ID, Start: b.Start}
	}

	err = s.store.WithHostLock(ctx, host.ID, func(ctx context.Context, tx Tx) error {
		return s.guardAndInsert(ctx, tx, check, b)
	})
	if err != nil {
		span.RecordError(err)
		var taken *SlotNoLongerAvailableError
		if errors.As(err, &taken) {
			span.SetStatus(codes.Error, "slot taken")
			return nil, err
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("insert booking: %w", err)
	}
	span.SetAttributes(attribute.String("booking.id", b.ID))

	s.syncCalendar(ctx, link, host, b)
	s.notify(ctx, link, host, b)
	s.publish(ctx, b)

	s.logger.InfoContext(ctx, "booking confirmed",
		"booking_id", b.ID,
		"booking_link_id", b.BookingLinkID,
		"host_id", b.HostID,
		"start", b.Start,
	)
	return b, nil
}

// guardAndInsert runs under the host lock and must only read through tx.
func (s *Service) guardAndInsert(ctx context.Context, tx Tx, check availability.SlotCheck, b *Booking) error {
	ok, err := s.slots.VerifySlot(ctx, tx, check)
	if err != nil {
		return fmt.Errorf("check slot: %w", err)
	}
	if !ok {
		return &SlotNoLongerAvailableError{BookingLinkID: b.BookingLinkID, Start: b.Start}
	}

	// each confirmed booking occupies [start, end+buffer)
	buffer := s.slots.Buffer()
	span := availability.Interval{Start: b.Start, End: b.End.Add(buffer)}
	existing, err := tx.ListConfirmedBookings(ctx, b.HostID, span.Start.Add(-buffer), span.End)
	if err != nil {
		return fmt.Errorf("list host bookings: %w", err)
	}
	for _, other := range existing {
		occupied := availability.Interval{Start: other.Start, End: other.End.Add(buffer)}
		if availability.Overlaps(span, occupied) {
			return &SlotNoLongerAvailableError{BookingLinkID: b.BookingLinkID, Start: b.Start}
		}
	}
	return tx.InsertBooking(ctx, b)
}

func (s *Service) syncCalendar(ctx context.Context, link *availability.BookingLink, host *Host, b *Booking) {
	if s.calendar == nil {
		return
	}
	ev := calendar.Event{
		Summary:     fmt.Sprintf("%s with %s", link.Title, b.GuestName),
		Description: eventDescription(link, b),
		Start:       b.Start,
		End:         b.End,
		Timezone:    "UTC",
		GuestName:   b.GuestName,
		GuestEmail:  b.GuestEmail,
		HostEmail:   host.Email,
	}
	eventID, err := s.calendar.CreateEvent(ctx, host.ID, ev)
	if err != nil {
		s.logger.WarnContext(ctx, "calendar event not created", "booking_id", b.ID, "host_id", host.ID, "err", err)
		return
	}
	if err := s.store.SetCalendarEventID(ctx, b.ID, eventID); err != nil {
		s.logger.WarnContext(ctx, "store calendar event id failed", "booking_id", b.ID, "err", err)
		return
	}
	b.CalendarEventID = eventID
}

func (s *Service) notify(ctx context.Context, link *availability.BookingLink, host *Host, b *Booking) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.BookingConfirmed(ctx, notify.Confirmation{
		Title:      link.Title,
		Start:      b.Start,
		End:        b.End,
		HostName:   host.Name,
		HostEmail:  host.Email,
		GuestName:  b.GuestName,
		GuestEmail: b.GuestEmail,
		Notes:      b.GuestNotes,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "booking confirmation email failed", "booking_id", b.ID, "err", err)
	}
}

func (s *Service) publish(ctx context.Context, b *Booking) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishBookingConfirmed(ctx, events.BookingConfirmed{
		BookingID:       b.ID,
		BookingLinkID:   b.BookingLinkID,
		HostID:          b.HostID,
		GuestEmail:      b.GuestEmail,
		StartTime:       b.Start,
		EndTime:         b.End,
		CalendarEventID: b.CalendarEventID,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "booking event not published", "booking_id", b.ID, "err", err)
	}
}

// ListForHost returns the host's bookings, newest first.
func (s *Service) ListForHost(ctx context.Context, hostID string) ([]Booking, error) {
	if hostID == "" {
		return nil, &availability.InvalidInputError{Field: "host_id", Reason: "required"}
	}
	out, err := s.store.ListBookingsForHost(ctx, hostID)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	if out == nil {
		out = []Booking{}
	}
	return out, nil
}

// Cancel marks a host's confirmed booking cancelled and removes its calendar
// event. Bookings of other hosts are reported as not found.
func (s *Service) Cancel(ctx context.Context, hostID, bookingID string) (*Booking, error) {
	ctx, span := s.tracer.Start(ctx, "booking.Cancel", trace.WithAttributes(
		attribute.String("booking.id", bookingID),
	))
	defer span.End()

	if hostID == "" {
		return nil, &availability.InvalidInputError{Field: "host_id", Reason: "required"}
	}
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if b == nil || b.HostID != hostID {
		return nil, ErrBookingNotFound
	}
	if b.Status == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}

	cancelled, err := s.store.CancelBooking(ctx, b.ID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("cancel booking: %w", err)
	}
	if !cancelled {
		return nil, ErrAlreadyCancelled
	}
	b.Status = StatusCancelled

	if s.calendar != nil && b.CalendarEventID != "" {
		if err := s.calendar.DeleteEvent(ctx, hostID, b.CalendarEventID); err != nil {
			s.logger.WarnContext(ctx, "calendar event not deleted", "booking_id", b.ID, "host_id", hostID, "err", err)
		}
	}

	s.logger.InfoContext(ctx, "booking cancelled", "booking_id", b.ID, "host_id", hostID)
	return b, nil
}

func validate(req Request) error {
	switch {
	case strings.TrimSpace(req.Slug) == "":
		return &availability.InvalidInputError{Field: "slug", Reason: "required"}
	case strings.TrimSpace(req.GuestName) == "":
		return &availability.InvalidInputError{Field: "guest_name", Reason: "required"}
	case !strings.Contains(req.GuestEmail, "@"):
		return &availability.InvalidInputError{Field: "guest_email", Reason: "must be an email address"}
	case req.Start.IsZero():
		return &availability.InvalidInputError{Field: "start_time", Reason: "required"}
	}
	return nil
}

func eventDescription(link *availability.BookingLink, b *Booking) string {
	var sb strings.Builder
	if link.Description != "" {
		sb.WriteString(link.Description)
		sb.WriteString("\n\n")
	}
	fmt.Fprintf(&sb, "Booked by %s <%s>", b.GuestName, b.GuestEmail)
	if b.GuestNotes != "" {
		fmt.Fprintf(&sb, "\nNotes: %s", b.GuestNotes)
	}
	return sb.String()
}
