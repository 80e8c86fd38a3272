package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// BusySet is the merged conflict set for one window.
type BusySet struct {
	Conflicts []Interval
	// External is the calendar share of Conflicts.
	External []Interval
	// CalendarDegraded is set when external busy periods could not be fetched
	// and Conflicts holds manual blocks only.
	CalendarDegraded bool
	DegradedReason   error
}

// Aggregator merges manual blocks with external calendar busy periods.
type Aggregator struct {
	store    Store
	calendar CalendarGateway
	logger   *slog.Logger
}

// NewAggregator accepts a nil gateway, which behaves like a host with no calendar connected.
func NewAggregator(store Store, calendar CalendarGateway, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{store: store, calendar: calendar, logger: logger}
}

func (a *Aggregator) AggregateBusyIntervals(ctx context.Context, bookingLinkID, hostID string, windowStart, windowEnd time.Time) (BusySet, error) {
	blocked, err := a.store.ListBlockedIntervals(ctx, bookingLinkID, windowStart, windowEnd)
	if err != nil {
		return BusySet{}, fmt.Errorf("list blocked intervals: %w", err)
	}

	var set BusySet
	window := Interval{Start: windowStart, End: windowEnd}
	for _, b := range blocked {
		iv := b.Interval()
		// the store filters by range already; re-check so a loose store cannot widen the set
		if Overlaps(iv, window) {
			set.Conflicts = append(set.Conflicts, iv)
		}
	}

	if a.calendar == nil {
		return set, nil
	}

	external, err := a.calendar.FetchBusyIntervals(ctx, hostID, windowStart, windowEnd)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return BusySet{}, ctxErr
		}
		set.CalendarDegraded = true
		set.DegradedReason = classify(hostID, err)
		a.logger.WarnContext(ctx, "calendar busy fetch failed; using blocked times only",
			"booking_link_id", bookingLinkID,
			"host_id", hostID,
			"reason", degradedKind(set.DegradedReason),
			"err", err,
		)
		return set, nil
	}
	set.External = external
	set.Conflicts = append(set.Conflicts, external...)
	return set, nil
}

// classify keeps typed gateway errors and files anything else as a provider failure.
func classify(hostID string, err error) error {
	var authErr *AuthorizationError
	if errors.As(err, &authErr) {
		return authErr
	}
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr
	}
	return &ProviderError{HostID: hostID, Err: err}
}

func degradedKind(err error) string {
	var authErr *AuthorizationError
	switch {
	case errors.As(err, &authErr):
		return "authorization"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "provider"
	}
}
