package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"meeting-scheduler/internal/availability"
)

var (
	ErrNotConnected      = errors.New("calendar not connected")
	ErrInsufficientScope = errors.New("calendar scope not granted")
)

// Event is a confirmed booking as written to the host's calendar.
type Event struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Timezone    string
	GuestName   string
	GuestEmail  string
	HostEmail   string
}

// Gateway is the calendar sync boundary used by availability and booking.
type Gateway interface {
	availability.CalendarGateway
	CreateEvent(ctx context.Context, hostID string, ev Event) (string, error)
	DeleteEvent(ctx context.Context, hostID, eventID string) error
}

type Config struct {
	CalendarID string
	// Timeout bounds each call to Google, token refresh included.
	Timeout    time.Duration
	MaxResults int64
	// Endpoint overrides the API base URL.
	Endpoint string
}

// GoogleGateway talks to Google Calendar on behalf of hosts using their stored OAuth tokens.
type GoogleGateway struct {
	oauth  *oauth2.Config
	tokens TokenStore
	cfg    Config
	logger *slog.Logger
}

func NewGoogleGateway(oauth *oauth2.Config, tokens TokenStore, cfg Config, logger *slog.Logger) *GoogleGateway {
	if cfg.CalendarID == "" {
		cfg.CalendarID = "primary"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 2500
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GoogleGateway{oauth: oauth, tokens: tokens, cfg: cfg, logger: logger}
}

func (g *GoogleGateway) FetchBusyIntervals(ctx context.Context, hostID string, rangeStart, rangeEnd time.Time) ([]availability.Interval, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	srv, err := g.service(ctx, hostID)
	if err != nil {
		return nil, err
	}

	call := srv.Events.List(g.cfg.CalendarID).
		TimeMin(rangeStart.UTC().Format(time.RFC3339)).
		TimeMax(rangeEnd.UTC().Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(g.cfg.MaxResults)

	var busy []availability.Interval
	err = call.Pages(ctx, func(page *gcal.Events) error {
		for _, item := range page.Items {
			if iv, ok := busyInterval(item); ok {
				busy = append(busy, iv)
			}
		}
		return nil
	})
	if err != nil {
		return nil, g.classify(ctx, hostID, err)
	}
	return busy, nil
}

// CreateEvent inserts the booking into the host's calendar and invites both parties.
func (g *GoogleGateway) CreateEvent(ctx context.Context, hostID string, ev Event) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	srv, err := g.service(ctx, hostID)
	if err != nil {
		return "", err
	}

	attendees := []*gcal.EventAttendee{{Email: ev.GuestEmail, DisplayName: ev.GuestName}}
	if ev.HostEmail != "" {
		attendees = append(attendees, &gcal.EventAttendee{Email: ev.HostEmail, DisplayName: "Host"})
	}
	body := &gcal.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       &gcal.EventDateTime{DateTime: ev.Start.Format(time.RFC3339), TimeZone: ev.Timezone},
		End:         &gcal.EventDateTime{DateTime: ev.End.Format(time.RFC3339), TimeZone: ev.Timezone},
		Attendees:   attendees,
		Reminders: &gcal.EventReminders{
			UseDefault: false,
			Overrides: []*gcal.EventReminder{
				{Method: "email", Minutes: 24 * 60},
				{Method: "popup", Minutes: 15},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}

	created, err := srv.Events.Insert(g.cfg.CalendarID, body).
		SendUpdates("all").
		ConferenceDataVersion(1).
		Context(ctx).
		Do()
	if err != nil {
		return "", g.classify(ctx, hostID, err)
	}
	if created.Id == "" {
		return "", &availability.ProviderError{HostID: hostID, Err: errors.New("created event has no id")}
	}
	return created.Id, nil
}

// DeleteEvent removes a booking's event and notifies the attendees. An event
// that is already gone counts as deleted.
func (g *GoogleGateway) DeleteEvent(ctx context.Context, hostID, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	srv, err := g.service(ctx, hostID)
	if err != nil {
		return err
	}
	err = srv.Events.Delete(g.cfg.CalendarID, eventID).
		SendUpdates("all").
		Context(ctx).
		Do()
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone) {
		return nil
	}
	if err != nil {
		return g.classify(ctx, hostID, err)
	}
	return nil
}

func (g *GoogleGateway) service(ctx context.Context, hostID string) (*gcal.Service, error) {
	if g.oauth == nil {
		return nil, &availability.AuthorizationError{HostID: hostID, Err: errors.New("google oauth client not configured")}
	}
	cred, err := g.tokens.GetCalendarCredential(ctx, hostID)
	if err != nil {
		return nil, &availability.ProviderError{HostID: hostID, Err: fmt.Errorf("load credential: %w", err)}
	}
	if cred == nil || cred.Token == nil || (cred.Token.AccessToken == "" && cred.Token.RefreshToken == "") {
		return nil, &availability.AuthorizationError{HostID: hostID, Err: ErrNotConnected}
	}
	if !hasCalendarScope(cred.Scope) {
		return nil, &availability.AuthorizationError{HostID: hostID, Err: ErrInsufficientScope}
	}

	ts := newPersistingTokenSource(ctx, g.oauth, cred.Token, hostID, g.tokens, g.logger)
	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, ts))}
	if g.cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.cfg.Endpoint))
	}
	srv, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, &availability.ProviderError{HostID: hostID, Err: fmt.Errorf("create calendar service: %w", err)}
	}
	return srv, nil
}

func (g *GoogleGateway) classify(ctx context.Context, hostID string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return &availability.AuthorizationError{HostID: hostID, Err: err}
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusUnauthorized:
			return &availability.AuthorizationError{HostID: hostID, Err: err}
		case apiErr.Code == http.StatusForbidden && !rateLimited(apiErr):
			return &availability.AuthorizationError{HostID: hostID, Err: err}
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = fmt.Errorf("%w: %v", ctxErr, err)
	}
	return &availability.ProviderError{HostID: hostID, Err: err}
}

func rateLimited(apiErr *googleapi.Error) bool {
	for _, item := range apiErr.Errors {
		if item.Reason == "rateLimitExceeded" || item.Reason == "userRateLimitExceeded" {
			return true
		}
	}
	return false
}

// busyInterval converts a calendar item into a busy range. Cancelled and
// free ("transparent") events never block time.
func busyInterval(item *gcal.Event) (availability.Interval, bool) {
	if item == nil || item.Status == "cancelled" || item.Transparency == "transparent" {
		return availability.Interval{}, false
	}
	start, ok := eventTime(item.Start)
	if !ok {
		return availability.Interval{}, false
	}
	end, ok := eventTime(item.End)
	if !ok || !end.After(start) {
		return availability.Interval{}, false
	}
	return availability.Interval{Start: start, End: end}, true
}

func eventTime(dt *gcal.EventDateTime) (time.Time, bool) {
	if dt == nil {
		return time.Time{}, false
	}
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		return t, err == nil
	}
	if dt.Date != "" {
		// all-day events are read as UTC days
		t, err := time.Parse("2006-01-02", dt.Date)
		return t, err == nil
	}
	return time.Time{}, false
}
