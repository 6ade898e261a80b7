// Package config holds the runtime configuration shared by the fews
// commands. Every flag can also be set through a FEWS_-prefixed
// environment variable; an explicit flag wins over the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "FEWS"

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreBolt   = "bolt"
)

// StoreKinds lists the accepted --store values.
var StoreKinds = []string{StoreMemory, StoreFile, StoreSQLite, StoreBolt}

// Config is the runtime configuration.
type Config struct {
	Store          string
	DataDir        string
	Bind           string
	Port           int
	LogLevel       string
	SessionTimeout time.Duration
	TrustCaller    bool
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Store:          StoreSQLite,
		DataDir:        filepath.Join(home, ".fews"),
		Bind:           "127.0.0.1",
		Port:           8080,
		LogLevel:       "info",
		SessionTimeout: 60 * time.Minute,
	}
}

// Validate rejects configurations the commands cannot run with.
func (c *Config) Validate() error {
	if !slices.Contains(StoreKinds, c.Store) {
		return fmt.Errorf("invalid store %q (use one of: %s)", c.Store, strings.Join(StoreKinds, ", "))
	}
	if c.Store != StoreMemory && strings.TrimSpace(c.DataDir) == "" {
		return errors.New("--data-dir is required for persistent stores")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.SessionTimeout < 0 {
		return fmt.Errorf("invalid session timeout: %s", c.SessionTimeout)
	}
	return nil
}

// Addr is the listen address for the HTTP driver.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

// Logger returns a text logger writing to w at the configured level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q (use debug, info, warn, or error)", s)
	}
	return level, nil
}

// Bind registers the flags for cfg on fs and applies any FEWS_* environment
// overrides as the flags' values. Flags given on the command line are
// parsed afterwards and take precedence.
func Bind(fs *pflag.FlagSet, cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	def := Default()
	fs.StringVar(&cfg.Store, "store", def.Store, "progress store: memory, file, sqlite, or bolt (env: FEWS_STORE)")
	fs.StringVar(&cfg.DataDir, "data-dir", def.DataDir, "directory for persistent stores (env: FEWS_DATA_DIR)")
	fs.StringVarP(&cfg.Bind, "bind", "b", def.Bind, "address the web server binds to (env: FEWS_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", def.Port, "port the web server listens on (env: FEWS_PORT)")
	fs.StringVar(&cfg.LogLevel, "log-level", def.LogLevel, "debug, info, warn, or error (env: FEWS_LOG_LEVEL)")
	fs.DurationVar(&cfg.SessionTimeout, "session-timeout", def.SessionTimeout, "time before idle tic-tac-toe games are dropped, 0 to keep forever (env: FEWS_SESSION_TIMEOUT)")
	fs.BoolVar(&cfg.TrustCaller, "trust-caller", def.TrustCaller, "allow completing a step whose predecessor is not completed (env: FEWS_TRUST_CALLER)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}
