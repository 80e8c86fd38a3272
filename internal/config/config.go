// Package config loads service configuration.
//
// Values come from an optional YAML file (--config or SCHEDULER_CONFIG),
// then environment variables, then the --addr flag. Later sources win.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr        string `yaml:"addr"`
	DatabaseURL string `yaml:"database_url"`
	// Migrate applies the embedded schema at startup.
	Migrate bool `yaml:"migrate"`

	Availability AvailabilityConfig `yaml:"availability"`
	Google       GoogleConfig       `yaml:"google"`
	Redis        RedisConfig        `yaml:"redis"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	SMTP         SMTPConfig         `yaml:"smtp"`
	Auth         AuthConfig         `yaml:"auth"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
}

type AvailabilityConfig struct {
	// DefaultTimezone applies to booking links without stored settings.
	DefaultTimezone string `yaml:"default_timezone"`
	BufferMinutes   int    `yaml:"buffer_minutes"`
	StepMinutes     int    `yaml:"step_minutes"`
}

func (a AvailabilityConfig) Buffer() time.Duration {
	return time.Duration(a.BufferMinutes) * time.Minute
}

func (a AvailabilityConfig) Step() time.Duration {
	return time.Duration(a.StepMinutes) * time.Minute
}

type GoogleConfig struct {
	ClientID     string        `yaml:"client_id"`
	ClientSecret string        `yaml:"client_secret"`
	RedirectURL  string        `yaml:"redirect_url"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	// ConsentRedirect is where the browser lands after a successful connect.
	ConsentRedirect string `yaml:"consent_redirect"`
}

type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	BusyCacheTTL time.Duration `yaml:"busy_cache_ttl"`
}

type KafkaConfig struct {
	Brokers      string `yaml:"brokers"`
	BookingTopic string `yaml:"booking_topic"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type AuthConfig struct {
	JWTSecret    string   `yaml:"jwt_secret"`
	StaticTokens []string `yaml:"static_tokens"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRatio  float64 `yaml:"sample_ratio"`
}

func Default() Config {
	return Config{
		Addr: ":8080",
		Availability: AvailabilityConfig{
			DefaultTimezone: "UTC",
			BufferMinutes:   15,
			StepMinutes:     30,
		},
		Google: GoogleConfig{FetchTimeout: 5 * time.Second},
		Redis:  RedisConfig{BusyCacheTTL: time.Minute},
		Kafka:  KafkaConfig{BookingTopic: "booking.confirmed.v1"},
		SMTP:   SMTPConfig{Port: "587"},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: "localhost:4317",
			SampleRatio:  1,
		},
	}
}

// Load parses args (without the program name) and builds the configuration.
func Load(args []string) (*Config, error) {
	flags := pflag.NewFlagSet("meeting-scheduler", pflag.ContinueOnError)
	configPath := flags.String("config", "", "path to a YAML config file (env SCHEDULER_CONFIG)")
	addr := flags.String("addr", "", "listen address, overrides PORT")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	cfg := Default()

	path := *configPath
	if path == "" {
		path = os.Getenv("SCHEDULER_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if os.Getenv("PORT") != "" {
		port, err := Port("PORT", "8080")
		collect(err)
		c.Addr = ":" + port
	}
	c.DatabaseURL = String("DATABASE_URL", c.DatabaseURL)
	c.Migrate = Bool("DB_MIGRATE", c.Migrate)

	c.Availability.DefaultTimezone = String("DEFAULT_TIMEZONE", c.Availability.DefaultTimezone)
	var err error
	c.Availability.BufferMinutes, err = Int("SLOT_BUFFER_MINUTES", c.Availability.BufferMinutes)
	collect(err)
	c.Availability.StepMinutes, err = Int("SLOT_STEP_MINUTES", c.Availability.StepMinutes)
	collect(err)

	c.Google.ClientID = String("GOOGLE_CLIENT_ID", c.Google.ClientID)
	c.Google.ClientSecret = String("GOOGLE_CLIENT_SECRET", c.Google.ClientSecret)
	c.Google.RedirectURL = String("GOOGLE_REDIRECT_URL", c.Google.RedirectURL)
	c.Google.ConsentRedirect = String("GOOGLE_CONSENT_REDIRECT", c.Google.ConsentRedirect)
	c.Google.FetchTimeout, err = Duration("CALENDAR_FETCH_TIMEOUT", c.Google.FetchTimeout)
	collect(err)

	c.Redis.Addr = String("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = String("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB, err = Int("REDIS_DB", c.Redis.DB)
	collect(err)
	c.Redis.BusyCacheTTL, err = Duration("BUSY_CACHE_TTL", c.Redis.BusyCacheTTL)
	collect(err)

	c.Kafka.Brokers = String("KAFKA_BROKERS", c.Kafka.Brokers)
	c.Kafka.BookingTopic = String("KAFKA_BOOKING_TOPIC", c.Kafka.BookingTopic)

	c.SMTP.Host = String("SMTP_HOST", c.SMTP.Host)
	c.SMTP.Port = String("SMTP_PORT", c.SMTP.Port)
	c.SMTP.User = String("SMTP_USER", c.SMTP.User)
	c.SMTP.Password = String("SMTP_PASSWORD", c.SMTP.Password)
	c.SMTP.From = String("SMTP_FROM", c.SMTP.From)

	c.Auth.JWTSecret = String("JWT_HMAC_SECRET", c.Auth.JWTSecret)
	c.Auth.StaticTokens = List("STATIC_TOKENS", c.Auth.StaticTokens)

	c.Telemetry.Enabled = Bool("OTEL_ENABLED", c.Telemetry.Enabled)
	c.Telemetry.OTLPEndpoint = String("OTEL_EXPORTER_OTLP_ENDPOINT", c.Telemetry.OTLPEndpoint)
	if v := strings.TrimSpace(os.Getenv("OTEL_SAMPLING_RATIO")); v != "" {
		ratio, err := strconv.ParseFloat(v, 64)
		if err != nil {
			collect(fmt.Errorf("OTEL_SAMPLING_RATIO must be a number (got %q)", v))
		} else {
			c.Telemetry.SampleRatio = ratio
		}
	}

	return errors.Join(errs...)
}

func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if _, err := time.LoadLocation(c.Availability.DefaultTimezone); err != nil {
		errs = append(errs, fmt.Errorf("default timezone %q: %w", c.Availability.DefaultTimezone, err))
	}
	if c.Availability.BufferMinutes < 0 {
		errs = append(errs, errors.New("slot buffer must not be negative"))
	}
	if c.Availability.StepMinutes <= 0 {
		errs = append(errs, errors.New("slot step must be positive"))
	}
	if c.Google.FetchTimeout <= 0 {
		errs = append(errs, errors.New("calendar fetch timeout must be positive"))
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, errors.New("otel sample ratio must be within [0, 1]"))
	}
	if c.Auth.JWTSecret == "" && len(c.Auth.StaticTokens) == 0 {
		errs = append(errs, errors.New("JWT_HMAC_SECRET or STATIC_TOKENS is required"))
	}
	return errors.Join(errs...)
}

// GoogleEnabled reports whether the OAuth client is fully configured.
func (c *Config) GoogleEnabled() bool {
	return c.Google.ClientID != "" && c.Google.ClientSecret != "" && c.Google.RedirectURL != ""
}
