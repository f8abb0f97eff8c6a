package config_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fixengine/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()

	if cfg.Admin.Addr != ":8222" {
		t.Errorf("Admin.Addr = %q, want %q", cfg.Admin.Addr, ":8222")
	}

	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9100")
	}

	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/metrics")
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "json")
	}

	if cfg.Store.Backend != "memory" {
		t.Errorf("Store.Backend = %q, want %q", cfg.Store.Backend, "memory")
	}

	if cfg.Defaults.HeartBtInt != 30*time.Second {
		t.Errorf("Defaults.HeartBtInt = %v, want %v", cfg.Defaults.HeartBtInt, 30*time.Second)
	}

	// Defaults must pass validation.
	if err := config.Validate(cfg); err != nil {
		t.Errorf("DefaultConfig() failed validation: %v", err)
	}
}

func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	yamlContent := `
admin:
  addr: ":60000"
metrics:
  addr: ":9200"
  path: "/custom-metrics"
log:
  level: "debug"
  format: "text"
defaults:
  heart_bt_int: "15s"
  logon_timeout: "5s"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Admin.Addr != ":60000" {
		t.Errorf("Admin.Addr = %q, want %q", cfg.Admin.Addr, ":60000")
	}

	if cfg.Metrics.Addr != ":9200" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9200")
	}

	if cfg.Metrics.Path != "/custom-metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/custom-metrics")
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}

	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "text")
	}

	if cfg.Defaults.HeartBtInt != 15*time.Second {
		t.Errorf("Defaults.HeartBtInt = %v, want %v", cfg.Defaults.HeartBtInt, 15*time.Second)
	}

	if cfg.Defaults.LogonTimeout != 5*time.Second {
		t.Errorf("Defaults.LogonTimeout = %v, want %v", cfg.Defaults.LogonTimeout, 5*time.Second)
	}
}

func TestLoadMergesDefaults(t *testing.T) {
	t.Parallel()

	// Partial YAML: only override admin.addr and log.level.
	// Everything else should inherit from defaults.
	yamlContent := `
admin:
  addr: ":55555"
log:
  level: "warn"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	// Overridden values.
	if cfg.Admin.Addr != ":55555" {
		t.Errorf("Admin.Addr = %q, want %q", cfg.Admin.Addr, ":55555")
	}

	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "warn")
	}

	// Default values should be preserved.
	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want default %q", cfg.Metrics.Addr, ":9100")
	}

	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want default %q", cfg.Metrics.Path, "/metrics")
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want default %q", cfg.Log.Format, "json")
	}

	if cfg.Defaults.HeartBtInt != 30*time.Second {
		t.Errorf("Defaults.HeartBtInt = %v, want default %v", cfg.Defaults.HeartBtInt, 30*time.Second)
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr error
	}{
		{
			name: "empty admin addr",
			modify: func(cfg *config.Config) {
				cfg.Admin.Addr = ""
			},
			wantErr: config.ErrEmptyAdminAddr,
		},
		{
			name: "zero heartbeat interval",
			modify: func(cfg *config.Config) {
				cfg.Defaults.HeartBtInt = 0
			},
			wantErr: config.ErrInvalidHeartBtInt,
		},
		{
			name: "negative heartbeat interval",
			modify: func(cfg *config.Config) {
				cfg.Defaults.HeartBtInt = -1 * time.Second
			},
			wantErr: config.ErrInvalidHeartBtInt,
		},
		{
			name: "unknown store backend",
			modify: func(cfg *config.Config) {
				cfg.Store.Backend = "bogus"
			},
			wantErr: config.ErrInvalidStoreBackend,
		},
		{
			name: "badger backend without path",
			modify: func(cfg *config.Config) {
				cfg.Store.Backend = "badger"
				cfg.Store.Path = ""
			},
			wantErr: config.ErrMissingBadgerPath,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			tt.modify(cfg)

			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("Validate() returned nil, want error")
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  slog.Level
	}{
		{input: "debug", want: slog.LevelDebug},
		{input: "DEBUG", want: slog.LevelDebug},
		{input: "info", want: slog.LevelInfo},
		{input: "INFO", want: slog.LevelInfo},
		{input: "warn", want: slog.LevelWarn},
		{input: "WARN", want: slog.LevelWarn},
		{input: "error", want: slog.LevelError},
		{input: "Error", want: slog.LevelError},
		{input: "unknown", want: slog.LevelInfo},
		{input: "", want: slog.LevelInfo},
		{input: "trace", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got := config.ParseLogLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadNonexistentFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load("/nonexistent/path/config.yml")
	if err == nil {
		t.Fatal("Load() returned nil error for nonexistent file")
	}
}

// -------------------------------------------------------------------------
// Session Config Tests
// -------------------------------------------------------------------------

func TestLoadWithSessions(t *testing.T) {
	t.Parallel()

	yamlContent := `
admin:
  addr: ":8222"
sessions:
  - begin_string: "FIX.4.4"
    sender_comp_id: "BUYER"
    target_comp_id: "SELLER"
    connection_type: "acceptor"
  - begin_string: "FIX.4.4"
    sender_comp_id: "SELLER"
    target_comp_id: "BUYER"
    connection_type: "initiator"
    target_addr: "127.0.0.1:9878"
    heart_bt_int: "10s"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if len(cfg.Sessions) != 2 {
		t.Fatalf("Sessions count = %d, want 2", len(cfg.Sessions))
	}

	s1 := cfg.Sessions[0]
	if s1.SenderCompID != "BUYER" {
		t.Errorf("Sessions[0].SenderCompID = %q, want %q", s1.SenderCompID, "BUYER")
	}
	if s1.ConnectionType != "acceptor" {
		t.Errorf("Sessions[0].ConnectionType = %q, want %q", s1.ConnectionType, "acceptor")
	}

	s2 := cfg.Sessions[1]
	if s2.ConnectionType != "initiator" {
		t.Errorf("Sessions[1].ConnectionType = %q, want %q", s2.ConnectionType, "initiator")
	}
	if s2.TargetAddr != "127.0.0.1:9878" {
		t.Errorf("Sessions[1].TargetAddr = %q, want %q", s2.TargetAddr, "127.0.0.1:9878")
	}
	if s2.HeartBtInt != 10*time.Second {
		t.Errorf("Sessions[1].HeartBtInt = %v, want %v", s2.HeartBtInt, 10*time.Second)
	}

	if s1.SessionKey() == s2.SessionKey() {
		t.Error("Sessions[0] and Sessions[1] have the same key, expected different")
	}
}

func TestValidateSessionErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr error
	}{
		{
			name: "missing begin string",
			modify: func(cfg *config.Config) {
				cfg.Sessions = []config.SessionConfig{
					{SenderCompID: "A", TargetCompID: "B", ConnectionType: "acceptor"},
				}
			},
			wantErr: config.ErrInvalidSessionBeginString,
		},
		{
			name: "missing comp ids",
			modify: func(cfg *config.Config) {
				cfg.Sessions = []config.SessionConfig{
					{BeginString: "FIX.4.4", ConnectionType: "acceptor"},
				}
			},
			wantErr: config.ErrInvalidSessionCompIDs,
		},
		{
			name: "invalid connection type",
			modify: func(cfg *config.Config) {
				cfg.Sessions = []config.SessionConfig{
					{BeginString: "FIX.4.4", SenderCompID: "A", TargetCompID: "B", ConnectionType: "bogus"},
				}
			},
			wantErr: config.ErrInvalidConnectionType,
		},
		{
			name: "initiator without target addr",
			modify: func(cfg *config.Config) {
				cfg.Sessions = []config.SessionConfig{
					{BeginString: "FIX.4.4", SenderCompID: "A", TargetCompID: "B", ConnectionType: "initiator"},
				}
			},
			wantErr: config.ErrMissingTargetAddr,
		},
		{
			name: "duplicate session keys",
			modify: func(cfg *config.Config) {
				cfg.Sessions = []config.SessionConfig{
					{BeginString: "FIX.4.4", SenderCompID: "A", TargetCompID: "B", ConnectionType: "acceptor"},
					{BeginString: "FIX.4.4", SenderCompID: "A", TargetCompID: "B", ConnectionType: "acceptor"},
				}
			},
			wantErr: config.ErrDuplicateSessionKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			tt.modify(cfg)

			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("Validate() returned nil, want error")
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSessionConfigKey(t *testing.T) {
	t.Parallel()

	sc := config.SessionConfig{
		BeginString:  "FIX.4.4",
		SenderCompID: "A",
		TargetCompID: "B",
	}

	want := "FIX.4.4|A|B"
	if got := sc.SessionKey(); got != want {
		t.Errorf("SessionKey() = %q, want %q", got, want)
	}
}

func TestSessionConfigSessionID(t *testing.T) {
	t.Parallel()

	sc := config.SessionConfig{BeginString: "FIX.4.4", SenderCompID: "A", TargetCompID: "B"}
	id := sc.SessionID()
	if id.BeginString != "FIX.4.4" || id.SenderCompID != "A" || id.TargetCompID != "B" {
		t.Errorf("SessionID() = %+v, want BeginString=FIX.4.4 SenderCompID=A TargetCompID=B", id)
	}
}

// -------------------------------------------------------------------------
// Environment Variable Override Tests
// -------------------------------------------------------------------------

func TestLoadEnvOverrides(t *testing.T) {
	// Environment variable tests cannot be parallel because they modify
	// process-wide state (os.Setenv).

	yamlContent := `
admin:
  addr: ":8222"
log:
  level: "info"
`
	path := writeTemp(t, yamlContent)

	t.Setenv("FIXENGINE_ADMIN_ADDR", ":60000")
	t.Setenv("FIXENGINE_LOG_LEVEL", "debug")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Admin.Addr != ":60000" {
		t.Errorf("Admin.Addr = %q, want %q (from env)", cfg.Admin.Addr, ":60000")
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q (from env)", cfg.Log.Level, "debug")
	}
}

func TestLoadEnvOverridesMetrics(t *testing.T) {
	yamlContent := `
admin:
  addr: ":8222"
metrics:
  addr: ":9100"
  path: "/metrics"
`
	path := writeTemp(t, yamlContent)

	t.Setenv("FIXENGINE_METRICS_ADDR", ":9200")
	t.Setenv("FIXENGINE_METRICS_PATH", "/custom")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Metrics.Addr != ":9200" {
		t.Errorf("Metrics.Addr = %q, want %q (from env)", cfg.Metrics.Addr, ":9200")
	}

	if cfg.Metrics.Path != "/custom" {
		t.Errorf("Metrics.Path = %q, want %q (from env)", cfg.Metrics.Path, "/custom")
	}
}

// writeTemp creates a temporary YAML file and returns its path.
// The file is automatically cleaned up when the test finishes.
func writeTemp(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "fixengine.yml")

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	return path
}
