package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Confirmation carries what both parties need to know about a confirmed booking.
type Confirmation struct {
	Title      string
	Start      time.Time
	End        time.Time
	HostName   string
	HostEmail  string
	GuestName  string
	GuestEmail string
	Notes      string
}

type Notifier struct {
	sender Sender
	logger *slog.Logger
}

// NewNotifier accepts a nil sender; confirmations are then only logged.
func NewNotifier(sender Sender, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{sender: sender, logger: logger}
}

// BookingConfirmed mails the guest and the host. Both sends are attempted.
func (n *Notifier) BookingConfirmed(ctx context.Context, c Confirmation) error {
	if n.sender == nil {
		n.logger.InfoContext(ctx, "email disabled, skipping booking confirmation", "guest_email", c.GuestEmail)
		return nil
	}

	var errs []error
	if c.GuestEmail != "" {
		subject := fmt.Sprintf("Confirmed: %s with %s", c.Title, displayName(c.HostName, "your host"))
		if err := n.sender.Send(c.GuestEmail, subject, guestBody(c)); err != nil {
			errs = append(errs, fmt.Errorf("send guest confirmation: %w", err))
		}
	}
	if c.HostEmail != "" {
		subject := fmt.Sprintf("New booking: %s with %s", c.Title, displayName(c.GuestName, c.GuestEmail))
		if err := n.sender.Send(c.HostEmail, subject, hostBody(c)); err != nil {
			errs = append(errs, fmt.Errorf("send host confirmation: %w", err))
		}
	}
	return errors.Join(errs...)
}

func guestBody(c Confirmation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", displayName(c.GuestName, "there"))
	fmt.Fprintf(&b, "Your meeting \"%s\" with %s is confirmed.\n\n", c.Title, displayName(c.HostName, "your host"))
	writeWhen(&b, c)
	if c.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", c.Notes)
	}
	b.WriteString("\nA calendar invitation will follow.\n")
	return b.String()
}

func hostBody(c Confirmation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s <%s> booked \"%s\".\n\n", displayName(c.GuestName, "A guest"), c.GuestEmail, c.Title)
	writeWhen(&b, c)
	if c.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", c.Notes)
	}
	return b.String()
}

func writeWhen(b *strings.Builder, c Confirmation) {
	fmt.Fprintf(b, "Start: %s\n", c.Start.UTC().Format(time.RFC1123))
	fmt.Fprintf(b, "End:   %s\n", c.End.UTC().Format(time.RFC1123))
}

func displayName(name, fallback string) string {
	if strings.TrimSpace(name) == "" {
		return fallback
	}
	return name
}
