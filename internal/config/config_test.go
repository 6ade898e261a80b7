package config

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func newFlagSet(cfg *Config) *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Bind(fs, cfg)
	return fs
}

// --- Default / Validate ---

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if cfg.Store != StoreSQLite {
		t.Errorf("Store = %s, want sqlite", cfg.Store)
	}
	if !strings.HasSuffix(cfg.DataDir, ".fews") {
		t.Errorf("DataDir = %s", cfg.DataDir)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := map[string]func(*Config){
		"unknown store":    func(c *Config) { c.Store = "redis" },
		"port zero":        func(c *Config) { c.Port = 0 },
		"port too high":    func(c *Config) { c.Port = 70000 },
		"bad log level":    func(c *Config) { c.LogLevel = "loud" },
		"negative timeout": func(c *Config) { c.SessionTimeout = -time.Second },
		"no data dir":      func(c *Config) { c.DataDir = " " },
	}
	for name, mutate := range tests {
		cfg := Default()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestValidate_MemoryStoreNeedsNoDataDir(t *testing.T) {
	cfg := Default()
	cfg.Store = StoreMemory
	cfg.DataDir = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestAddr(t *testing.T) {
	cfg := Config{Bind: "::1", Port: 9000}
	if got := cfg.Addr(); got != "[::1]:9000" {
		t.Errorf("Addr() = %s", got)
	}
}

func TestLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{LogLevel: "warn"}
	log := cfg.Logger(&buf)
	log.Info("hidden")
	log.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("log output = %q", buf.String())
	}
}

// --- Bind ---

func TestBind_Defaults(t *testing.T) {
	var cfg Config
	fs := newFlagSet(&cfg)
	if err := fs.Parse(nil); err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 8080 || cfg.Store != StoreSQLite || cfg.SessionTimeout != time.Hour {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestBind_EnvOverridesDefault(t *testing.T) {
	t.Setenv("FEWS_PORT", "9090")
	t.Setenv("FEWS_STORE", "bolt")
	t.Setenv("FEWS_SESSION_TIMEOUT", "5m")
	t.Setenv("FEWS_TRUST_CALLER", "true")

	var cfg Config
	fs := newFlagSet(&cfg)
	if err := fs.Parse(nil); err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 9090 || cfg.Store != StoreBolt || cfg.SessionTimeout != 5*time.Minute || !cfg.TrustCaller {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestBind_FlagOverridesEnv(t *testing.T) {
	t.Setenv("FEWS_PORT", "9090")

	var cfg Config
	fs := newFlagSet(&cfg)
	if err := fs.Parse([]string{"--port", "7070", "--log_level", "debug"}); err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 7070 {
		t.Errorf("Port = %d, want 7070", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s; underscores should normalize to dashes", cfg.LogLevel)
	}
}
