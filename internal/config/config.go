// Package config manages fixengine daemon configuration using koanf/v2.
//
// Supports YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"fixengine/internal/fix"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete fixengine configuration.
type Config struct {
	Listen   ListenConfig    `koanf:"listen"`
	Admin    AdminConfig     `koanf:"admin"`
	Metrics  MetricsConfig   `koanf:"metrics"`
	Log      LogConfig       `koanf:"log"`
	Store    StoreConfig     `koanf:"store"`
	Defaults SessionDefaults `koanf:"defaults"`
	Sessions []SessionConfig `koanf:"sessions"`
}

// ListenConfig holds the inbound FIX TCP listener configuration.
type ListenConfig struct {
	// Addr is the address acceptor-role sessions listen for connections on
	// (e.g., ":9878").
	Addr string `koanf:"addr"`
}

// AdminConfig holds the admin HTTP API server configuration.
type AdminConfig struct {
	// Addr is the admin API listen address (e.g., ":8222").
	Addr string `koanf:"addr"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// StoreConfig selects and configures the MessageStore backend.
type StoreConfig struct {
	// Backend is "memory" or "badger".
	Backend string `koanf:"backend"`
	// Path is the on-disk directory for the badger backend.
	Path string `koanf:"path"`
}

// SessionDefaults holds default session parameters applied to every
// declarative session entry that leaves the corresponding field zero.
type SessionDefaults struct {
	// HeartBtInt is the default heartbeat interval.
	HeartBtInt time.Duration `koanf:"heart_bt_int"`

	// LogonTimeout bounds how long a session that has sent its Logon waits
	// for the peer's Logon reply.
	LogonTimeout time.Duration `koanf:"logon_timeout"`

	// LogoutTimeout bounds how long a session waits for Logout acknowledgment.
	LogoutTimeout time.Duration `koanf:"logout_timeout"`

	// ResetOnLogon is copied into fix.Settings.ResetOnLogon, which the
	// Session does not read: sequence numbers are reset on Logon only when
	// the peer's Logon carries ResetSeqNumFlag=Y.
	ResetOnLogon bool `koanf:"reset_on_logon"`

	// CheckLatency rejects messages whose SendingTime skew exceeds MaxLatency.
	CheckLatency bool `koanf:"check_latency"`

	// MaxLatency is the allowed clock skew when CheckLatency is set.
	MaxLatency time.Duration `koanf:"max_latency"`
}

// SessionConfig describes a declarative FIX session from the configuration
// file. Each entry registers a session on daemon startup and SIGHUP reload.
type SessionConfig struct {
	// BeginString is the FIX version, e.g. "FIX.4.4" or "FIXT.1.1".
	BeginString string `koanf:"begin_string"`

	// SenderCompID is this side's CompID.
	SenderCompID string `koanf:"sender_comp_id"`

	// TargetCompID is the counterparty's CompID.
	TargetCompID string `koanf:"target_comp_id"`

	// ConnectionType is "initiator" or "acceptor".
	ConnectionType string `koanf:"connection_type"`

	// TargetAddr is the host:port to dial for an initiator session. Unused
	// for acceptor sessions.
	TargetAddr string `koanf:"target_addr"`

	// HeartBtInt overrides SessionDefaults.HeartBtInt for this session.
	HeartBtInt time.Duration `koanf:"heart_bt_int"`
}

// SessionKey returns a unique identifier for the session, used to detect
// duplicate session entries during validation.
func (sc SessionConfig) SessionKey() string {
	return sc.BeginString + "|" + sc.SenderCompID + "|" + sc.TargetCompID
}

// SessionID builds the fix.SessionID this declarative entry describes.
func (sc SessionConfig) SessionID() fix.SessionID {
	return fix.NewSessionID(sc.BeginString, sc.SenderCompID, sc.TargetCompID)
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen: ListenConfig{
			Addr: ":9878",
		},
		Admin: AdminConfig{
			Addr: ":8222",
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			Backend: "memory",
			Path:    "/var/lib/fixengine/store",
		},
		Defaults: SessionDefaults{
			HeartBtInt:    30 * time.Second,
			LogonTimeout:  10 * time.Second,
			LogoutTimeout: 2 * time.Second,
			ResetOnLogon:  false,
			CheckLatency:  true,
			MaxLatency:    2 * time.Minute,
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for fixengine configuration.
// Variables are named FIXENGINE_<section>_<key>, e.g. FIXENGINE_ADMIN_ADDR.
const envPrefix = "FIXENGINE_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (FIXENGINE_ prefix), and merges on top of
// DefaultConfig(). Missing fields inherit defaults.
//
// Environment variable mapping:
//
//	FIXENGINE_ADMIN_ADDR    -> admin.addr
//	FIXENGINE_METRICS_ADDR  -> metrics.addr
//	FIXENGINE_METRICS_PATH  -> metrics.path
//	FIXENGINE_LOG_LEVEL     -> log.level
//	FIXENGINE_LOG_FORMAT    -> log.format
//
// Uses koanf/v2 with file + env providers and YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	// FIXENGINE_ADMIN_ADDR -> admin.addr (strip prefix, lowercase, _ -> .).
	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms FIXENGINE_ADMIN_ADDR -> admin.addr.
// Strips the FIXENGINE_ prefix, lowercases, and replaces _ with .
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "_", ".")
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"listen.addr":              defaults.Listen.Addr,
		"admin.addr":               defaults.Admin.Addr,
		"metrics.addr":             defaults.Metrics.Addr,
		"metrics.path":             defaults.Metrics.Path,
		"log.level":                defaults.Log.Level,
		"log.format":               defaults.Log.Format,
		"store.backend":            defaults.Store.Backend,
		"store.path":               defaults.Store.Path,
		"defaults.heart_bt_int":    defaults.Defaults.HeartBtInt.String(),
		"defaults.logon_timeout":   defaults.Defaults.LogonTimeout.String(),
		"defaults.logout_timeout":  defaults.Defaults.LogoutTimeout.String(),
		"defaults.reset_on_logon":  defaults.Defaults.ResetOnLogon,
		"defaults.check_latency":   defaults.Defaults.CheckLatency,
		"defaults.max_latency":     defaults.Defaults.MaxLatency.String(),
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrEmptyListenAddr indicates the inbound FIX listen address is empty.
	ErrEmptyListenAddr = errors.New("listen.addr must not be empty")

	// ErrEmptyAdminAddr indicates the admin API listen address is empty.
	ErrEmptyAdminAddr = errors.New("admin.addr must not be empty")

	// ErrInvalidHeartBtInt indicates the default heartbeat interval is not positive.
	ErrInvalidHeartBtInt = errors.New("defaults.heart_bt_int must be > 0")

	// ErrInvalidStoreBackend indicates an unrecognized store backend.
	ErrInvalidStoreBackend = errors.New("store.backend must be \"memory\" or \"badger\"")

	// ErrMissingBadgerPath indicates the badger backend was selected without a path.
	ErrMissingBadgerPath = errors.New("store.path is required when store.backend is \"badger\"")

	// ErrInvalidSessionBeginString indicates a session is missing its BeginString.
	ErrInvalidSessionBeginString = errors.New("session begin_string is required")

	// ErrInvalidSessionCompIDs indicates a session is missing a CompID.
	ErrInvalidSessionCompIDs = errors.New("session sender_comp_id and target_comp_id are required")

	// ErrInvalidConnectionType indicates a session's connection_type is unrecognized.
	ErrInvalidConnectionType = errors.New("session connection_type must be \"initiator\" or \"acceptor\"")

	// ErrMissingTargetAddr indicates an initiator session has no dial address.
	ErrMissingTargetAddr = errors.New("initiator session requires target_addr")

	// ErrDuplicateSessionKey indicates two sessions share the same identity.
	ErrDuplicateSessionKey = errors.New("duplicate session key")
)

// Validate checks the configuration for logical errors.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.Listen.Addr == "" {
		return ErrEmptyListenAddr
	}

	if cfg.Admin.Addr == "" {
		return ErrEmptyAdminAddr
	}

	if cfg.Defaults.HeartBtInt <= 0 {
		return ErrInvalidHeartBtInt
	}

	if cfg.Store.Backend != "memory" && cfg.Store.Backend != "badger" {
		return fmt.Errorf("%q: %w", cfg.Store.Backend, ErrInvalidStoreBackend)
	}
	if cfg.Store.Backend == "badger" && cfg.Store.Path == "" {
		return ErrMissingBadgerPath
	}

	return validateSessions(cfg.Sessions)
}

// ValidConnectionTypes lists the recognized connection_type strings.
var ValidConnectionTypes = map[string]bool{
	"initiator": true,
	"acceptor":  true,
}

// validateSessions checks each declarative session entry for correctness.
func validateSessions(sessions []SessionConfig) error {
	seen := make(map[string]struct{}, len(sessions))

	for i, sc := range sessions {
		if sc.BeginString == "" {
			return fmt.Errorf("sessions[%d]: %w", i, ErrInvalidSessionBeginString)
		}
		if sc.SenderCompID == "" || sc.TargetCompID == "" {
			return fmt.Errorf("sessions[%d]: %w", i, ErrInvalidSessionCompIDs)
		}
		if !ValidConnectionTypes[sc.ConnectionType] {
			return fmt.Errorf("sessions[%d] connection_type %q: %w", i, sc.ConnectionType, ErrInvalidConnectionType)
		}
		if sc.ConnectionType == "initiator" && sc.TargetAddr == "" {
			return fmt.Errorf("sessions[%d]: %w", i, ErrMissingTargetAddr)
		}

		key := sc.SessionKey()
		if _, dup := seen[key]; dup {
			return fmt.Errorf("sessions[%d] key %q: %w", i, key, ErrDuplicateSessionKey)
		}
		seen[key] = struct{}{}
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
