package calendar

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
)

// Credential is a host's stored Google token and the scopes granted with it.
type Credential struct {
	Token *oauth2.Token
	Scope string
}

// TokenStore persists host calendar credentials.
// GetCalendarCredential returns nil, nil when the host never connected a calendar.
type TokenStore interface {
	GetCalendarCredential(ctx context.Context, hostID string) (*Credential, error)
	SaveCalendarToken(ctx context.Context, hostID string, tok *oauth2.Token) error
}

func hasCalendarScope(scope string) bool {
	for _, s := range strings.Fields(scope) {
		if s == gcal.CalendarScope || s == gcal.CalendarEventsScope {
			return true
		}
	}
	return false
}

// persistingTokenSource writes refreshed tokens back so the next request
// does not refresh again.
type persistingTokenSource struct {
	ctx    context.Context
	base   oauth2.TokenSource
	hostID string
	store  TokenStore
	logger *slog.Logger

	mu      sync.Mutex
	current string
}

func newPersistingTokenSource(ctx context.Context, cfg *oauth2.Config, tok *oauth2.Token, hostID string, store TokenStore, logger *slog.Logger) oauth2.TokenSource {
	return &persistingTokenSource{
		ctx:     ctx,
		base:    oauth2.ReuseTokenSource(tok, cfg.TokenSource(ctx, tok)),
		hostID:  hostID,
		store:   store,
		logger:  logger,
		current: tok.AccessToken,
	}
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.current {
		s.current = tok.AccessToken
		if err := s.store.SaveCalendarToken(s.ctx, s.hostID, tok); err != nil {
			s.logger.WarnContext(s.ctx, "persist refreshed calendar token failed", "host_id", s.hostID, "err", err)
		}
	}
	return tok, nil
}
