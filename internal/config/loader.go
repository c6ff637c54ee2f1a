// Package config loads the bot configuration from defaults, an optional YAML
// file, an optional .env file and BOOKING_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/example/facility-booking/internal/application"
)

// EnvPrefix prefixes every environment variable; dots in keys become
// underscores, so storage.dsn is read from BOOKING_STORAGE_DSN.
const EnvPrefix = "BOOKING"

const maxSecretBytes = 64

type HTTPConfig struct {
	Port int `mapstructure:"port"`
	// WebhookToken, when set, must accompany every inbound update.
	WebhookToken string `mapstructure:"webhook_token"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type AllowListConfig struct {
	Secret string `mapstructure:"secret"`
	// Seed holds IDENTITY:NUMERIC keys added at startup.
	Seed []string `mapstructure:"seed"`
}

type FacilityConfig struct {
	Name     string `mapstructure:"name"`
	Approver string `mapstructure:"approver"`
	Tracked  bool   `mapstructure:"tracked"`
}

type BookingConfig struct {
	BlockOnPending bool          `mapstructure:"block_on_pending"`
	PendingTTL     time.Duration `mapstructure:"pending_ttl"`
}

type RegistrationConfig struct {
	PendingTTL time.Duration `mapstructure:"pending_ttl"`
}

type ConversationConfig struct {
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

type NotifyConfig struct {
	Provider     string        `mapstructure:"provider"`
	WebhookURL   string        `mapstructure:"webhook_url"`
	WebhookToken string        `mapstructure:"webhook_token"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Insecure     bool   `mapstructure:"insecure"`
}

// Config captures every operator-controlled setting.
type Config struct {
	HTTP         HTTPConfig         `mapstructure:"http"`
	Log          LogConfig          `mapstructure:"log"`
	Storage      StorageConfig      `mapstructure:"storage"`
	AllowList    AllowListConfig    `mapstructure:"allowlist"`
	Facilities   []FacilityConfig   `mapstructure:"facilities"`
	Booking      BookingConfig      `mapstructure:"booking"`
	Registration RegistrationConfig `mapstructure:"registration"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	Notify       NotifyConfig       `mapstructure:"notify"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry"`
}

// Defaults lists every key with its default. Keys must be registered here for
// environment overrides to apply.
func Defaults() map[string]any {
	return map[string]any{
		"http.port":                 8080,
		"http.webhook_token":        "",
		"log.level":                 "info",
		"storage.driver":            "sqlite",
		"storage.dsn":               "file:bookings.db",
		"allowlist.secret":          "",
		"allowlist.seed":            []string{},
		"booking.block_on_pending":  false,
		"booking.pending_ttl":       "0s",
		"registration.pending_ttl":  "0s",
		"conversation.idle_timeout": "30m",
		"notify.provider":           "log",
		"notify.webhook_url":        "",
		"notify.webhook_token":      "",
		"notify.timeout":            "5s",
		"telemetry.otlp_endpoint":   "",
		"telemetry.insecure":        false,
	}
}

// Load reads configuration. configFile is optional; a .env file in the
// working directory is applied when present.
func Load(configFile string) (Config, error) {
	return load(configFile, ".env")
}

func load(configFile, dotenvFile string) (Config, error) {
	if dotenvFile != "" {
		if err := godotenv.Load(dotenvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", dotenvFile, err)
		}
	}

	v := viper.New()
	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	c.Storage.DSN = strings.TrimSpace(c.Storage.DSN)
	c.AllowList.Secret = strings.TrimSpace(c.AllowList.Secret)
	c.Notify.Provider = strings.ToLower(strings.TrimSpace(c.Notify.Provider))

	seeds := c.AllowList.Seed[:0]
	for _, seed := range c.AllowList.Seed {
		if seed = strings.TrimSpace(seed); seed != "" {
			seeds = append(seeds, seed)
		}
	}
	c.AllowList.Seed = seeds
}

// Validate reports every missing and invalid key in one error.
func (c Config) Validate() error {
	var missing, invalid []string

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		invalid = append(invalid, "http.port")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		invalid = append(invalid, "log.level")
	}
	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		invalid = append(invalid, "storage.driver")
	}
	if c.Storage.DSN == "" {
		missing = append(missing, "storage.dsn")
	}

	switch {
	case c.AllowList.Secret == "":
		missing = append(missing, "allowlist.secret")
	case len(c.AllowList.Secret) > maxSecretBytes:
		invalid = append(invalid, "allowlist.secret")
	}
	for _, seed := range c.AllowList.Seed {
		if _, err := application.ParseAuthKeyPair(seed); err != nil {
			invalid = append(invalid, "allowlist.seed")
			break
		}
	}
	for _, facility := range c.Facilities {
		if strings.TrimSpace(facility.Name) == "" {
			invalid = append(invalid, "facilities")
			break
		}
	}

	if c.Booking.PendingTTL < 0 {
		invalid = append(invalid, "booking.pending_ttl")
	}
	if c.Registration.PendingTTL < 0 {
		invalid = append(invalid, "registration.pending_ttl")
	}
	if c.Conversation.IdleTimeout < 0 {
		invalid = append(invalid, "conversation.idle_timeout")
	}

	switch c.Notify.Provider {
	case "", "log":
	case "webhook":
		if strings.TrimSpace(c.Notify.WebhookURL) == "" {
			missing = append(missing, "notify.webhook_url")
		}
	default:
		invalid = append(invalid, "notify.provider")
	}
	if c.Notify.Timeout < 0 {
		invalid = append(invalid, "notify.timeout")
	}

	var errs []error
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", ")))
	}
	if len(invalid) > 0 {
		errs = append(errs, fmt.Errorf("invalid configuration values: %s", strings.Join(invalid, ", ")))
	}
	return errors.Join(errs...)
}

// Catalogue returns the configured facilities, or the default catalogue when
// none are configured.
func (c Config) Catalogue() application.Facilities {
	if len(c.Facilities) == 0 {
		return application.DefaultFacilities()
	}
	list := make([]application.Facility, 0, len(c.Facilities))
	for _, facility := range c.Facilities {
		approver := strings.TrimSpace(facility.Approver)
		if approver == "" {
			approver = "admin"
		}
		list = append(list, application.Facility{
			Name:         strings.TrimSpace(facility.Name),
			ApproverRole: approver,
			Tracked:      facility.Tracked,
		})
	}
	return application.NewFacilities(list)
}

// SeedKeys parses the allow-list seed. Validate has already checked every
// entry.
func (c Config) SeedKeys() ([]application.AuthKey, error) {
	keys := make([]application.AuthKey, 0, len(c.AllowList.Seed))
	for _, seed := range c.AllowList.Seed {
		key, err := application.ParseAuthKeyPair(seed)
		if err != nil {
			return nil, fmt.Errorf("config: allowlist.seed %q: %w", seed, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Janitor returns the request expiry policy.
func (c Config) Janitor() application.JanitorConfig {
	return application.JanitorConfig{
		BookingTTL:      c.Booking.PendingTTL,
		RegistrationTTL: c.Registration.PendingTTL,
	}
}
