package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Config struct {
	Buffer          time.Duration
	Step            time.Duration
	DefaultTimezone string
}

func (c Config) withDefaults() Config {
	if c.Buffer < 0 {
		c.Buffer = DefaultBuffer
	}
	if c.Step <= 0 {
		c.Step = DefaultStep
	}
	if c.DefaultTimezone == "" {
		c.DefaultTimezone = "UTC"
	}
	return c
}

// DefaultConfig is buffer 15m, step 30m, UTC.
func DefaultConfig() Config {
	return Config{Buffer: DefaultBuffer, Step: DefaultStep, DefaultTimezone: "UTC"}
}

// Result is the full outcome of one availability computation.
type Result struct {
	Slots            []Slot
	Policy           Policy
	Window           Interval
	CalendarDegraded bool
	DegradedReason   error
	// ExternalBusy is what the calendar gateway reported for Window.
	ExternalBusy []Interval
}

// Service computes bookable slots for a booking link on a given day.
// It holds no per-request state and is safe for concurrent use.
type Service struct {
	store      Store
	aggregator *Aggregator
	cfg        Config
	logger     *slog.Logger
	tracer     trace.Tracer
}

func NewService(store Store, calendar CalendarGateway, logger *slog.Logger, cfg Config) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Service{
		store:      store,
		aggregator: NewAggregator(store, calendar, logger),
		cfg:        cfg,
		logger:     logger,
		tracer:     otel.Tracer("meeting-scheduler/availability"),
	}
}

// ComputeAvailableSlots returns the free slot starts for bookingLinkID on date.
// An empty list is a valid result.
func (s *Service) ComputeAvailableSlots(ctx context.Context, bookingLinkID string, date Date) ([]Slot, error) {
	res, err := s.Compute(ctx, bookingLinkID, date)
	if err != nil {
		return nil, err
	}
	return res.Slots, nil
}

func (s *Service) Compute(ctx context.Context, bookingLinkID string, date Date) (res Result, err error) {
	ctx, span := s.tracer.Start(ctx, "availability.Compute", trace.WithAttributes(
		attribute.String("booking_link_id", bookingLinkID),
		attribute.String("date", date.String()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(
				attribute.Int("slots", len(res.Slots)),
				attribute.Bool("calendar_degraded", res.CalendarDegraded),
			)
		}
		span.End()
	}()

	return s.compute(ctx, s.store, s.aggregator, bookingLinkID, date)
}

func (s *Service) compute(ctx context.Context, store Store, aggregator *Aggregator, bookingLinkID string, date Date) (Result, error) {
	if bookingLinkID == "" {
		return Result{}, &InvalidInputError{Field: "booking_link_id", Reason: "empty"}
	}
	if date.IsZero() {
		return Result{}, &InvalidInputError{Field: "date", Reason: "zero date"}
	}

	policy, err := NewResolver(store, s.cfg.DefaultTimezone).ResolvePolicy(ctx, bookingLinkID)
	if err != nil {
		return Result{}, err
	}
	res := Result{Slots: []Slot{}, Policy: policy}
	if !policy.Allows(date.Weekday()) {
		return res, nil
	}

	window, err := policy.Window(date)
	if err != nil {
		return Result{}, err
	}
	res.Window = window

	link, err := store.GetBookingLink(ctx, bookingLinkID)
	if err != nil {
		return Result{}, fmt.Errorf("get booking link: %w", err)
	}
	if link == nil {
		return Result{}, &InvalidInputError{Field: "booking_link_id", Reason: fmt.Sprintf("link %s not found", bookingLinkID)}
	}
	if !link.Active {
		return Result{}, &InvalidInputError{Field: "booking_link_id", Reason: fmt.Sprintf("link %s is inactive", bookingLinkID)}
	}
	if link.DurationMinutes <= 0 {
		return Result{}, &InvalidInputError{Field: "duration", Reason: fmt.Sprintf("link %s has duration %d", bookingLinkID, link.DurationMinutes)}
	}

	busy, err := aggregator.AggregateBusyIntervals(ctx, bookingLinkID, link.HostID, window.Start, window.End)
	if err != nil {
		return Result{}, err
	}
	res.CalendarDegraded = busy.CalendarDegraded
	res.DegradedReason = busy.DegradedReason
	res.ExternalBusy = busy.External

	res.Slots = GenerateSlots(window, link.Duration(), s.cfg.Buffer, busy.Conflicts, s.cfg.Step)
	return res, nil
}

// IsSlotAvailable recomputes the day containing start (in the policy timezone)
// and reports whether start is one of its free slots.
func (s *Service) IsSlotAvailable(ctx context.Context, bookingLinkID string, start time.Time) (bool, error) {
	free, _, err := s.slotFree(ctx, s.store, s.aggregator, bookingLinkID, start)
	return free, err
}

// SlotCheck is the part of a slot check that may talk to the calendar provider.
// It is captured before a booking takes its lock and replayed by VerifySlot.
type SlotCheck struct {
	BookingLinkID string
	Start         time.Time
	// Window is the day window the external busy periods were fetched for.
	Window           Interval
	ExternalBusy     []Interval
	CalendarDegraded bool
}

// PrepareSlotCheck reports whether start is free right now and captures the
// host's external busy periods for the day.
func (s *Service) PrepareSlotCheck(ctx context.Context, bookingLinkID string, start time.Time) (SlotCheck, bool, error) {
	free, res, err := s.slotFree(ctx, s.store, s.aggregator, bookingLinkID, start)
	if err != nil {
		return SlotCheck{}, false, err
	}
	return SlotCheck{
		BookingLinkID:    bookingLinkID,
		Start:            start,
		Window:           res.Window,
		ExternalBusy:     res.ExternalBusy,
		CalendarDegraded: res.CalendarDegraded,
	}, free, nil
}

// VerifySlot re-runs check against policy, link and blocked times read from
// store, reusing the captured external busy periods instead of calling the
// provider again. A policy change that moves the day window fails the check.
func (s *Service) VerifySlot(ctx context.Context, store Store, check SlotCheck) (bool, error) {
	var gateway CalendarGateway
	if !check.CalendarDegraded {
		gateway = capturedBusy{window: check.Window, busy: check.ExternalBusy}
	}
	free, res, err := s.slotFree(ctx, store, NewAggregator(store, gateway, s.logger), check.BookingLinkID, check.Start)
	if err != nil {
		return false, err
	}
	if errors.Is(res.DegradedReason, errWindowMoved) {
		return false, nil
	}
	return free, nil
}

func (s *Service) slotFree(ctx context.Context, store Store, aggregator *Aggregator, bookingLinkID string, start time.Time) (bool, Result, error) {
	policy, err := NewResolver(store, s.cfg.DefaultTimezone).ResolvePolicy(ctx, bookingLinkID)
	if err != nil {
		return false, Result{}, err
	}
	loc, err := policy.Location()
	if err != nil {
		return false, Result{}, &PolicyError{BookingLinkID: bookingLinkID, Reason: err.Error()}
	}
	res, err := s.compute(ctx, store, aggregator, bookingLinkID, DateOf(start.In(loc)))
	if err != nil {
		return false, Result{}, err
	}
	for _, slot := range res.Slots {
		if slot.Start.Equal(start) {
			return true, res, nil
		}
	}
	return false, res, nil
}

var errWindowMoved = errors.New("day window differs from the captured one")

// capturedBusy replays busy periods fetched earlier for one window.
type capturedBusy struct {
	window Interval
	busy   []Interval
}

func (c capturedBusy) FetchBusyIntervals(_ context.Context, _ string, rangeStart, rangeEnd time.Time) ([]Interval, error) {
	if !rangeStart.Equal(c.window.Start) || !rangeEnd.Equal(c.window.End) {
		return nil, errWindowMoved
	}
	return c.busy, nil
}

// Buffer is the gap appended after each meeting.
func (s *Service) Buffer() time.Duration {
	return s.cfg.Buffer
}
