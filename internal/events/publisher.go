package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const TopicBookingConfirmed = "booking.confirmed.v1"

// BookingConfirmed is the payload of TopicBookingConfirmed.
type BookingConfirmed struct {
	BookingID       string    `json:"booking_id"`
	BookingLinkID   string    `json:"booking_link_id"`
	HostID          string    `json:"host_id"`
	GuestEmail      string    `json:"guest_email"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	CalendarEventID string    `json:"calendar_event_id,omitempty"`
}

type Publisher interface {
	PublishBookingConfirmed(ctx context.Context, ev BookingConfirmed) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

// NewPublisher returns a no-op publisher when brokers is empty.
func NewPublisher(brokers, topic string, logger *slog.Logger) Publisher {
	list := SplitBrokers(brokers)
	if len(list) == 0 {
		if logger != nil {
			logger.Warn("booking event publisher disabled (no kafka brokers configured)")
		}
		return Noop{}
	}
	if topic == "" {
		topic = TopicBookingConfirmed
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(list...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		WriteTimeout:           5 * time.Second,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w, topic: topic}
}

// PublishBookingConfirmed keys by host so one host's bookings stay ordered on a partition.
func (p *KafkaPublisher) PublishBookingConfirmed(ctx context.Context, ev BookingConfirmed) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal booking event: %w", err)
	}
	headers := []kafka.Header{
		{Key: "event_id", Value: []byte(uuid.NewString())},
		{Key: "event_type", Value: []byte(TopicBookingConfirmed)},
	}
	msg := kafka.Message{
		Key:     []byte(ev.HostID),
		Value:   payload,
		Headers: injectTraceHeaders(ctx, headers),
		Time:    time.Now().UTC(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

type Noop struct{}

func (Noop) PublishBookingConfirmed(context.Context, BookingConfirmed) error { return nil }
func (Noop) Close() error                                                    { return nil }

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func ReadyCheck(brokers string) func(context.Context) error {
	return func(ctx context.Context) error {
		list := SplitBrokers(brokers)
		if len(list) == 0 {
			return errors.New("kafka brokers not configured")
		}
		dialer := kafka.Dialer{Timeout: 2 * time.Second}
		conn, err := dialer.DialContext(ctx, "tcp", list[0])
		if err != nil {
			return err
		}
		_ = conn.Close()
		return nil
	}
}

func injectTraceHeaders(ctx context.Context, headers []kafka.Header) []kafka.Header {
	carrier := &headerCarrier{headers: headers}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier.headers
}

type headerCarrier struct {
	headers []kafka.Header
}

func (c *headerCarrier) Get(key string) string {
	for _, h := range c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for _, h := range c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

func (c *headerCarrier) Set(key, value string) {
	for i := range c.headers {
		if c.headers[i].Key == key {
			c.headers[i].Value = []byte(value)
			return
		}
	}
	c.headers = append(c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

var _ propagation.TextMapCarrier = (*headerCarrier)(nil)
