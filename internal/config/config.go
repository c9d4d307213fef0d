// ABOUTME: Player configuration loading
// ABOUTME: Defaults, optional .env file and SYNCSTREAM_* environment overrides
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Resonate-Protocol/syncstream-go/pkg/audio"
	"github.com/Resonate-Protocol/syncstream-go/pkg/audio/output"
	"github.com/Resonate-Protocol/syncstream-go/pkg/protocol"
	"github.com/Resonate-Protocol/syncstream-go/pkg/syncstream"
	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every environment variable name
const EnvPrefix = "SYNCSTREAM_"

// Config holds player settings
type Config struct {
	Host string
	Port int

	BufferCapacity int
	SampleRate     int
	Channels       int
	Output         string // Audio backend name, see output.New

	HeartbeatInterval time.Duration
	BackoffInitial    time.Duration
	BackoffFactor     float64
	BackoffMax        time.Duration

	DialTimeout time.Duration
	ReadTimeout time.Duration
	StopTimeout time.Duration

	// InhibitSleep holds a logind sleep lock while streaming
	InhibitSleep bool

	LogFile string
	Debug   bool
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Port:              protocol.DefaultPort,
		BufferCapacity:    syncstream.DefaultBufferCapacity,
		SampleRate:        audio.DefaultSampleRate,
		Channels:          audio.DefaultChannels,
		Output:            "oto",
		HeartbeatInterval: syncstream.DefaultHeartbeatInterval,
		BackoffInitial:    syncstream.DefaultBackoffInitial,
		BackoffFactor:     syncstream.DefaultBackoffFactor,
		BackoffMax:        syncstream.DefaultBackoffMax,
		DialTimeout:       syncstream.DefaultDialTimeout,
		ReadTimeout:       syncstream.DefaultReadTimeout,
		StopTimeout:       syncstream.DefaultStopTimeout,
		InhibitSleep:      true,
		LogFile:           "syncstream-player.log",
	}
}

// Load returns the defaults overridden by envFile (if it exists) and then
// by the process environment. An empty envFile skips the file.
func Load(envFile string) (Config, error) {
	cfg := Default()

	if envFile != "" {
		// Existing environment variables win over the file
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	var errs []error

	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	float := func(name string, dst *float64) {
		if v, ok := lookup(EnvPrefix + name); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = f
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + name); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	str("HOST", &c.Host)
	integer("PORT", &c.Port)
	integer("BUFFER", &c.BufferCapacity)
	integer("SAMPLE_RATE", &c.SampleRate)
	integer("CHANNELS", &c.Channels)
	str("OUTPUT", &c.Output)
	duration("HEARTBEAT", &c.HeartbeatInterval)
	duration("BACKOFF_INITIAL", &c.BackoffInitial)
	float("BACKOFF_FACTOR", &c.BackoffFactor)
	duration("BACKOFF_MAX", &c.BackoffMax)
	duration("DIAL_TIMEOUT", &c.DialTimeout)
	duration("READ_TIMEOUT", &c.ReadTimeout)
	duration("STOP_TIMEOUT", &c.StopTimeout)
	boolean("INHIBIT_SLEEP", &c.InhibitSleep)
	str("LOG_FILE", &c.LogFile)
	boolean("DEBUG", &c.Debug)

	return errors.Join(errs...)
}

// Validate reports every invalid setting
func (c Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.BufferCapacity <= 0 {
		errs = append(errs, fmt.Errorf("buffer capacity must be positive, got %d", c.BufferCapacity))
	}
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample rate must be positive, got %d", c.SampleRate))
	}
	if c.Channels != 1 && c.Channels != 2 {
		errs = append(errs, fmt.Errorf("channels must be 1 or 2, got %d", c.Channels))
	}
	if c.HeartbeatInterval <= 0 {
		errs = append(errs, fmt.Errorf("heartbeat interval must be positive, got %v", c.HeartbeatInterval))
	}
	if c.BackoffInitial <= 0 || c.BackoffMax < c.BackoffInitial {
		errs = append(errs, fmt.Errorf("backoff range %v..%v is invalid", c.BackoffInitial, c.BackoffMax))
	}
	if c.BackoffFactor < 1 {
		errs = append(errs, fmt.Errorf("backoff factor must be at least 1, got %v", c.BackoffFactor))
	}
	if c.DialTimeout <= 0 || c.ReadTimeout <= 0 || c.StopTimeout <= 0 {
		errs = append(errs, fmt.Errorf("timeouts must be positive"))
	}
	if _, err := output.New(c.Output); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ToPlayerConfig maps the settings onto a player configuration. Output
// and hooks are left for the caller.
func (c Config) ToPlayerConfig() syncstream.Config {
	return syncstream.Config{
		BufferCapacity:    c.BufferCapacity,
		Format:            audio.Format{SampleRate: c.SampleRate, Channels: c.Channels},
		HeartbeatInterval: c.HeartbeatInterval,
		Backoff: syncstream.Backoff{
			Initial: c.BackoffInitial,
			Factor:  c.BackoffFactor,
			Max:     c.BackoffMax,
		},
		DialTimeout: c.DialTimeout,
		ReadTimeout: c.ReadTimeout,
		StopTimeout: c.StopTimeout,
	}
}
