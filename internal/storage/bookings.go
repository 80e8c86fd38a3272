package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"meeting-scheduler/internal/availability"
	"meeting-scheduler/internal/booking"
)

const (
	// hostLockTimeout bounds the wait for another commit on the same host.
	hostLockTimeout  = 5 * time.Second
	lockNotAvailable = "55P03"
	bookingColumns   = `id, booking_link_id, user_id, guest_name, guest_email, guest_notes, start_time, end_time, calendar_event_id, status, created_at`
)

// WithHostLock serializes booking commits per host with a transaction-scoped advisory lock.
// fn must read only through tx, which already holds this request's pooled connection.
func (s *Store) WithHostLock(ctx context.Context, hostID string, fn func(ctx context.Context, tx booking.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", hostLockTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("set lock timeout: %w", err)
	}
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "booking:"+hostID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == lockNotAvailable {
			return fmt.Errorf("%w: host %s", booking.ErrHostBusy, hostID)
		}
		return fmt.Errorf("acquire host lock: %w", err)
	}
	if err := fn(ctx, bookingTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// bookingTx runs every query on the locked transaction.
type bookingTx struct {
	tx pgx.Tx
}

func (b bookingTx) GetAvailabilityPolicy(ctx context.Context, bookingLinkID string) (*availability.Policy, error) {
	return getAvailabilityPolicy(ctx, b.tx, bookingLinkID)
}

func (b bookingTx) ListBlockedIntervals(ctx context.Context, bookingLinkID string, rangeStart, rangeEnd time.Time) ([]availability.BlockedInterval, error) {
	return listBlockedIntervals(ctx, b.tx, bookingLinkID, rangeStart, rangeEnd)
}

func (b bookingTx) GetBookingLink(ctx context.Context, bookingLinkID string) (*availability.BookingLink, error) {
	return getBookingLink(ctx, b.tx, bookingLinkID)
}

func scanBooking(row pgx.Row) (*booking.Booking, error) {
	var bk booking.Booking
	err := row.Scan(&bk.ID, &bk.BookingLinkID, &bk.HostID, &bk.GuestName, &bk.GuestEmail, &bk.GuestNotes,
		&bk.Start, &bk.End, &bk.CalendarEventID, &bk.Status, &bk.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &bk, nil
}

func (b bookingTx) ListConfirmedBookings(ctx context.Context, hostID string, rangeStart, rangeEnd time.Time) ([]booking.Booking, error) {
	q := `SELECT ` + bookingColumns + `
	      FROM bookings
	      WHERE user_id=$1 AND status='confirmed' AND start_time < $3 AND end_time > $2
	      ORDER BY start_time`
	rows, err := b.tx.Query(ctx, q, hostID, rangeStart.UTC(), rangeEnd.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []booking.Booking
	for rows.Next() {
		bk, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *bk)
	}
	return out, rows.Err()
}

func (b bookingTx) InsertBooking(ctx context.Context, bk *booking.Booking) error {
	q := `INSERT INTO bookings
	        (id, booking_link_id, user_id, guest_name, guest_email, guest_notes, start_time, end_time, status, created_at, updated_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)`
	_, err := b.tx.Exec(ctx, q,
		bk.ID, bk.BookingLinkID, bk.HostID, bk.GuestName, bk.GuestEmail, bk.GuestNotes,
		bk.Start.UTC(), bk.End.UTC(), bk.Status, bk.CreatedAt)
	return err
}

func (s *Store) SetCalendarEventID(ctx context.Context, bookingID, eventID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE bookings SET calendar_event_id=$1, updated_at=$2 WHERE id=$3`,
		eventID, s.now(), bookingID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("booking %s: %w", bookingID, pgx.ErrNoRows)
	}
	return nil
}

func (s *Store) GetBooking(ctx context.Context, bookingID string) (*booking.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id=$1`
	bk, err := scanBooking(s.pool.QueryRow(ctx, q, bookingID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return bk, err
}

// CancelBooking flips a confirmed booking to cancelled. It reports false when
// the booking was not confirmed anymore.
func (s *Store) CancelBooking(ctx context.Context, bookingID string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE bookings SET status='cancelled', updated_at=$1 WHERE id=$2 AND status='confirmed'`,
		s.now(), bookingID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) ListBookingsForHost(ctx context.Context, hostID string) ([]booking.Booking, error) {
	q := `SELECT b.id, b.booking_link_id, b.user_id, l.title, b.guest_name, b.guest_email, b.guest_notes,
	             b.start_time, b.end_time, b.calendar_event_id, b.status, b.created_at
	      FROM bookings b
	      JOIN booking_links l ON l.id = b.booking_link_id
	      WHERE b.user_id=$1
	      ORDER BY b.start_time DESC`
	rows, err := s.pool.Query(ctx, q, hostID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []booking.Booking{}
	for rows.Next() {
		var bk booking.Booking
		if err := rows.Scan(&bk.ID, &bk.BookingLinkID, &bk.HostID, &bk.LinkTitle, &bk.GuestName, &bk.GuestEmail, &bk.GuestNotes,
			&bk.Start, &bk.End, &bk.CalendarEventID, &bk.Status, &bk.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, bk)
	}
	return out, rows.Err()
}

func (s *Store) GetHost(ctx context.Context, hostID string) (*booking.Host, error) {
	var h booking.Host
	var name *string
	err := s.pool.QueryRow(ctx, `SELECT id, name, email FROM users WHERE id=$1`, hostID).Scan(&h.ID, &name, &h.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if name != nil {
		h.Name = *name
	}
	return &h, nil
}
