package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"meeting-scheduler/internal/availability"
)

const blockedColumns = `id, booking_link_id, start_time, end_time, title`

func collectBlocked(rows pgx.Rows) ([]availability.BlockedInterval, error) {
	defer rows.Close()
	out := []availability.BlockedInterval{}
	for rows.Next() {
		var b availability.BlockedInterval
		if err := rows.Scan(&b.ID, &b.BookingLinkID, &b.Start, &b.End, &b.Title); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListBlockedIntervals uses the same half-open overlap test as slot filtering.
func (s *Store) ListBlockedIntervals(ctx context.Context, bookingLinkID string, rangeStart, rangeEnd time.Time) ([]availability.BlockedInterval, error) {
	return listBlockedIntervals(ctx, s.pool, bookingLinkID, rangeStart, rangeEnd)
}

func listBlockedIntervals(ctx context.Context, db querier, bookingLinkID string, rangeStart, rangeEnd time.Time) ([]availability.BlockedInterval, error) {
	q := `SELECT ` + blockedColumns + ` FROM blocked_times
	      WHERE booking_link_id=$1 AND start_time < $3 AND end_time > $2
	      ORDER BY start_time`
	rows, err := db.Query(ctx, q, bookingLinkID, rangeStart.UTC(), rangeEnd.UTC())
	if err != nil {
		return nil, err
	}
	return collectBlocked(rows)
}

func (s *Store) ListAllBlockedIntervals(ctx context.Context, bookingLinkID string) ([]availability.BlockedInterval, error) {
	q := `SELECT ` + blockedColumns + ` FROM blocked_times WHERE booking_link_id=$1 ORDER BY start_time`
	rows, err := s.pool.Query(ctx, q, bookingLinkID)
	if err != nil {
		return nil, err
	}
	return collectBlocked(rows)
}

func (s *Store) CreateBlockedInterval(ctx context.Context, b *availability.BlockedInterval) error {
	b.ID = uuid.NewString()
	q := `INSERT INTO blocked_times (id, booking_link_id, start_time, end_time, title, created_at)
	      VALUES ($1,$2,$3,$4,$5,$6)`
	_, err := s.pool.Exec(ctx, q, b.ID, b.BookingLinkID, b.Start.UTC(), b.End.UTC(), b.Title, s.now())
	return err
}

// DeleteBlockedInterval reports whether a row belonging to the link was removed.
func (s *Store) DeleteBlockedInterval(ctx context.Context, bookingLinkID, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM blocked_times WHERE id=$1 AND booking_link_id=$2`, id, bookingLinkID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
