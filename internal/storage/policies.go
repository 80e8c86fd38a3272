package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"meeting-scheduler/internal/availability"
)

func (s *Store) GetAvailabilityPolicy(ctx context.Context, bookingLinkID string) (*availability.Policy, error) {
	return getAvailabilityPolicy(ctx, s.pool, bookingLinkID)
}

func getAvailabilityPolicy(ctx context.Context, db querier, bookingLinkID string) (*availability.Policy, error) {
	q := `SELECT start_hour, end_hour, days_of_week, timezone, updated_at
	      FROM availability_settings WHERE booking_link_id=$1`

	p := availability.Policy{BookingLinkID: bookingLinkID}
	var days []int32
	err := db.QueryRow(ctx, q, bookingLinkID).Scan(&p.StartHour, &p.EndHour, &days, &p.Timezone, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.AllowedWeekdays = make([]time.Weekday, 0, len(days))
	for _, d := range days {
		p.AllowedWeekdays = append(p.AllowedWeekdays, time.Weekday(d))
	}
	return &p, nil
}

// UpsertAvailabilityPolicy keeps exactly one row per booking link.
func (s *Store) UpsertAvailabilityPolicy(ctx context.Context, p *availability.Policy) error {
	days := make([]int32, 0, len(p.AllowedWeekdays))
	for _, d := range p.AllowedWeekdays {
		days = append(days, int32(d))
	}
	now := s.now()

	q := `INSERT INTO availability_settings
	        (id, booking_link_id, start_hour, end_hour, days_of_week, timezone, created_at, updated_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
	      ON CONFLICT (booking_link_id) DO UPDATE SET
	        start_hour=EXCLUDED.start_hour,
	        end_hour=EXCLUDED.end_hour,
	        days_of_week=EXCLUDED.days_of_week,
	        timezone=EXCLUDED.timezone,
	        updated_at=EXCLUDED.updated_at
	      RETURNING updated_at`

	return s.pool.QueryRow(ctx, q,
		uuid.NewString(), p.BookingLinkID, p.StartHour, p.EndHour, days, p.Timezone, now,
	).Scan(&p.UpdatedAt)
}
