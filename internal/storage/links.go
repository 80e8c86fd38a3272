package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"meeting-scheduler/internal/availability"
)

const linkColumns = `id, user_id, slug, title, description, duration_minutes, is_active, created_at`

const uniqueViolation = "23505"

func scanLink(row pgx.Row) (*availability.BookingLink, error) {
	var l availability.BookingLink
	err := row.Scan(&l.ID, &l.HostID, &l.Slug, &l.Title, &l.Description, &l.DurationMinutes, &l.Active, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *Store) GetBookingLink(ctx context.Context, bookingLinkID string) (*availability.BookingLink, error) {
	return getBookingLink(ctx, s.pool, bookingLinkID)
}

func getBookingLink(ctx context.Context, db querier, bookingLinkID string) (*availability.BookingLink, error) {
	q := `SELECT ` + linkColumns + ` FROM booking_links WHERE id=$1`
	return scanLink(db.QueryRow(ctx, q, bookingLinkID))
}

func (s *Store) GetBookingLinkBySlug(ctx context.Context, slug string) (*availability.BookingLink, error) {
	q := `SELECT ` + linkColumns + ` FROM booking_links WHERE slug=$1`
	return scanLink(s.pool.QueryRow(ctx, q, slug))
}

func (s *Store) ListBookingLinks(ctx context.Context, hostID string) ([]availability.BookingLink, error) {
	q := `SELECT ` + linkColumns + ` FROM booking_links WHERE user_id=$1 ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, q, hostID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []availability.BookingLink{}
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// CreateBookingLink assigns the ID and a random slug, retrying on the rare slug collision.
func (s *Store) CreateBookingLink(ctx context.Context, l *availability.BookingLink) error {
	l.ID = uuid.NewString()
	l.Active = true
	l.CreatedAt = s.now()

	q := `INSERT INTO booking_links (id, user_id, slug, title, description, duration_minutes, is_active, created_at, updated_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)`

	var err error
	for attempt := 0; attempt < 3; attempt++ {
		l.Slug = newSlug()
		_, err = s.pool.Exec(ctx, q, l.ID, l.HostID, l.Slug, l.Title, l.Description, l.DurationMinutes, l.Active, l.CreatedAt)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "booking_links_slug_key" {
			continue
		}
		break
	}
	if err != nil {
		return fmt.Errorf("insert booking link: %w", err)
	}
	return nil
}

func newSlug() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}
