package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/quarantine-engine/internal/logger"
)

// Config holds the settings shared by the quarantine binaries.
type Config struct {
	// ServerAddress is the gRPC address the server binds to and clients dial.
	ServerAddress string `yaml:"server_addr"`
	// EventsFile is the path to the JSON file backing the Event Store.
	EventsFile string `yaml:"events_file"`
	// RulesFile is the optional quarantine rules YAML; built-in defaults apply when empty.
	RulesFile string `yaml:"rules_file,omitempty"`
	// MetricsAddress enables the Prometheus listener when set.
	MetricsAddress string `yaml:"metrics_addr,omitempty"`
	// Timeout is the duration for client RPC calls.
	Timeout time.Duration `yaml:"timeout"`
	// Debounce is the quiet period before the status is recomputed.
	Debounce time.Duration `yaml:"debounce"`
	// RetestInterval is the period of the self-retest reminder.
	RetestInterval time.Duration `yaml:"retest_interval"`
	// LogLevel is the minimum zap level name.
	LogLevel string `yaml:"log_level"`
}

const (
	// DefaultConfigFilename is the default filename for process settings.
	DefaultConfigFilename = "quarantine-settings.yaml"

	// DefaultEventsFilename is the default filename for the Event Store JSON.
	DefaultEventsFilename = "quarantine-events.json"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultDebounce is the default recompute quiet period.
	DefaultDebounce = 50 * time.Millisecond

	// DefaultRetestInterval is the default self-retest reminder period.
	DefaultRetestInterval = 6 * time.Hour

	// DefaultLogLevel is used when no level is configured.
	DefaultLogLevel = "info"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// ErrServerAddressRequired is returned when the server address is missing.
	ErrServerAddressRequired = errors.New("server address must be provided")
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errNegativeDuration is returned for durations below zero.
	errNegativeDuration = errors.New("duration must not be negative")
	// errUnknownLogLevel is returned for level names zap does not know.
	errUnknownLogLevel = errors.New("unknown log level")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes Config to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings and fills defaults for omitted values.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.ServerAddress == "" {
		return ErrServerAddressRequired
	}

	if _, err := net.ResolveTCPAddr("tcp", settings.ServerAddress); err != nil {
		return fmt.Errorf("invalid server socket: %w", err)
	}

	if settings.MetricsAddress != "" {
		if _, _, err := net.SplitHostPort(settings.MetricsAddress); err != nil {
			return fmt.Errorf("invalid metrics address: %w", err)
		}
	}

	durations := []struct {
		name     string
		value    *time.Duration
		fallback time.Duration
	}{
		{"timeout", &settings.Timeout, DefaultTimeout},
		{"debounce", &settings.Debounce, DefaultDebounce},
		{"retest_interval", &settings.RetestInterval, DefaultRetestInterval},
	}

	for _, d := range durations {
		if *d.value < 0 {
			return fmt.Errorf("%s=%s: %w", d.name, *d.value, errNegativeDuration)
		}

		if *d.value == 0 {
			*d.value = d.fallback
		}
	}

	if settings.EventsFile == "" {
		settings.EventsFile = DefaultEventsFilename
	}

	if settings.LogLevel == "" {
		settings.LogLevel = DefaultLogLevel
	}

	if _, ok := logger.ParseLogLevel(settings.LogLevel); !ok {
		return fmt.Errorf("%w: %q", errUnknownLogLevel, settings.LogLevel)
	}

	return nil
}
