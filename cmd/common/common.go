// Package common provides configuration and factories shared by the river
// binaries.
//
// riverd reads a YAML file into Config, applies command-line overrides and
// builds its logger, store and attestation provider from it:
//
//	http_addr: ":8080"
//	log:
//	  level: info
//	  json: false
//	store:
//	  driver: sqlite        # memory, sqlite or postgres
//	  path: river.db
//	  postgres:
//	    host: localhost
//	    port: 5432
//	    user: river
//	    database: river
//	enclave:
//	  enabled: true
//	  attestation:
//	    use_tdx: false
//	    tdx_url: ""
//	protocol:
//	  variant: breakdown    # single or breakdown
//	  markers: true
//	cors:
//	  allowed_origins: ["*"]
//	timeouts:
//	  read: 15s
//	  write: 15s
//	  drain: 0s
//	  shutdown: 10s
package common

import (
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/flashbots/river/crypto"
	"github.com/flashbots/river/negotiation"
	"github.com/flashbots/river/services"
	"github.com/flashbots/river/tdx"
	"github.com/flashbots/river/tee"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the riverd configuration file.
type Config struct {
	HTTPAddr string            `yaml:"http_addr"`
	Log      LogConfig         `yaml:"log"`
	Store    StoreConfig       `yaml:"store"`
	Enclave  EnclaveConfig     `yaml:"enclave"`
	Protocol negotiation.Terms `yaml:"protocol"`
	CORS     CORSConfig        `yaml:"cors"`
	Timeouts TimeoutConfig     `yaml:"timeouts"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type StoreConfig struct {
	Driver   string                  `yaml:"driver"`
	Path     string                  `yaml:"path"`
	Postgres services.PostgresConfig `yaml:"postgres"`
}

type EnclaveConfig struct {
	Enabled     bool              `yaml:"enabled"`
	Attestation AttestationConfig `yaml:"attestation"`
}

type AttestationConfig struct {
	UseTDX bool   `yaml:"use_tdx"`
	TDXURL string `yaml:"tdx_url"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type TimeoutConfig struct {
	Read     time.Duration `yaml:"read"`
	Write    time.Duration `yaml:"write"`
	Drain    time.Duration `yaml:"drain"`
	Shutdown time.Duration `yaml:"shutdown"`
}

// DefaultConfig returns a configuration for a local, in-memory daemon with
// a dummy-attested enclave.
func DefaultConfig() *Config {
	return &Config{
		HTTPAddr: ":8080",
		Log:      LogConfig{Level: "info"},
		Store:    StoreConfig{Driver: DriverMemory, Path: "river.db"},
		Enclave:  EnclaveConfig{Enabled: true},
		Protocol: negotiation.Terms{Variant: negotiation.VariantSingle, Markers: true},
		Timeouts: TimeoutConfig{
			Read:     15 * time.Second,
			Write:    15 * time.Second,
			Shutdown: 10 * time.Second,
		},
	}
}

// LoadConfig reads path over the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML over the defaults and validates the result.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields that have a closed set of values.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("http_addr is required")
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Store.Postgres.Host == "" {
			return fmt.Errorf("store.postgres.host is required for the postgres driver")
		}
		// Overwritten rows stay readable as dead tuples until vacuum, so
		// plaintext figures would outlive finalize.
		if !c.Enclave.Enabled {
			return fmt.Errorf("the postgres driver requires enclave.enabled")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if !c.Protocol.Variant.Valid() {
		return fmt.Errorf("unknown protocol variant %d", c.Protocol.Variant)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// NewLogger builds the process logger writing to w.
func NewLogger(cfg LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.JSON {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return level, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// NewStore opens the configured store. The returned close function releases
// it.
func NewStore(cfg StoreConfig) (negotiation.Store, func() error, error) {
	switch cfg.Driver {
	case DriverMemory, "":
		return negotiation.NewMemoryStore(), func() error { return nil }, nil
	case DriverSQLite:
		s, err := services.OpenSQLiteStore(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case DriverPostgres:
		s, err := services.NewPostgresStore(&cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// NewAttestationProvider creates an attester based on configuration.
// Returns TDXProvider or RemoteDCAPProvider when UseTDX is set, otherwise
// DummyProvider for testing.
func NewAttestationProvider(cfg AttestationConfig) tee.Attester {
	if cfg.UseTDX {
		if cfg.TDXURL != "" {
			return &tdx.RemoteDCAPProvider{URL: cfg.TDXURL, Timeout: 30 * time.Second}
		}
		return &tdx.TDXProvider{}
	}
	return &tdx.DummyProvider{}
}

// NewMeasurementSource creates a measurement source from a URL. Returns nil
// if measurementsURL is empty, meaning measurements are not checked.
func NewMeasurementSource(measurementsURL string) services.MeasurementSource {
	if measurementsURL != "" {
		return services.NewRemoteMeasurementSource(measurementsURL)
	}
	return nil
}

// LoadOrGenerateSigningKey decodes a hex Ed25519 private key, or generates
// a new one if hexKey is empty. A 32 byte value is taken as a seed.
func LoadOrGenerateSigningKey(hexKey string) (crypto.PrivateKey, error) {
	hexKey = strings.TrimSpace(hexKey)
	if hexKey == "" {
		_, priv, err := crypto.GenerateKeyPair()
		return priv, err
	}
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	switch len(raw) {
	case 32:
		return crypto.NewPrivateKeyFromSeed(raw)
	case 64:
		return crypto.NewPrivateKeyFromBytes(raw), nil
	default:
		return nil, fmt.Errorf("signing key must be 32 or 64 bytes, got %d", len(raw))
	}
}
