package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/oauth2"

	"meeting-scheduler/internal/calendar"
)

func (s *Store) GetCalendarCredential(ctx context.Context, hostID string) (*calendar.Credential, error) {
	q := `SELECT access_token, refresh_token, token_type, expiry, scope
	      FROM calendar_credentials WHERE host_id=$1`

	tok := &oauth2.Token{}
	var expiry *time.Time
	var scope string
	err := s.pool.QueryRow(ctx, q, hostID).Scan(&tok.AccessToken, &tok.RefreshToken, &tok.TokenType, &expiry, &scope)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if expiry != nil {
		tok.Expiry = *expiry
	}
	return &calendar.Credential{Token: tok, Scope: scope}, nil
}

// SaveCalendarCredential stores the result of the OAuth consent flow.
// Google omits the refresh token on re-consent, so an empty one keeps the stored value.
func (s *Store) SaveCalendarCredential(ctx context.Context, hostID string, tok *oauth2.Token, scope string) error {
	q := `INSERT INTO calendar_credentials (host_id, access_token, refresh_token, token_type, expiry, scope, updated_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7)
	      ON CONFLICT (host_id) DO UPDATE SET
	        access_token=EXCLUDED.access_token,
	        refresh_token=COALESCE(NULLIF(EXCLUDED.refresh_token, ''), calendar_credentials.refresh_token),
	        token_type=EXCLUDED.token_type,
	        expiry=EXCLUDED.expiry,
	        scope=EXCLUDED.scope,
	        updated_at=EXCLUDED.updated_at`
	_, err := s.pool.Exec(ctx, q, hostID, tok.AccessToken, tok.RefreshToken, tokenType(tok), expiryOf(tok), scope, s.now())
	return err
}

// SaveCalendarToken persists a refreshed token without touching the granted scope.
func (s *Store) SaveCalendarToken(ctx context.Context, hostID string, tok *oauth2.Token) error {
	q := `UPDATE calendar_credentials SET
	        access_token=$2,
	        refresh_token=COALESCE(NULLIF($3, ''), refresh_token),
	        token_type=$4,
	        expiry=$5,
	        updated_at=$6
	      WHERE host_id=$1`
	_, err := s.pool.Exec(ctx, q, hostID, tok.AccessToken, tok.RefreshToken, tokenType(tok), expiryOf(tok), s.now())
	return err
}

func tokenType(tok *oauth2.Token) string {
	if tok.TokenType == "" {
		return "Bearer"
	}
	return tok.TokenType
}

func expiryOf(tok *oauth2.Token) *time.Time {
	if tok.Expiry.IsZero() {
		return nil
	}
	e := tok.Expiry.UTC()
	return &e
}
