package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Mirror kinds understood by the application.
const (
	MirrorKindMemory = "memory"
	MirrorKindFile   = "file"
	MirrorKindHTTP   = "http"
)

// WorkspaceConfig names the workspace an invocation works in.
type WorkspaceConfig struct {
	// Name is used by "workspace init" when no name is passed.
	Name string `mapstructure:"name" yaml:"name"`

	// Timezone is the IANA timezone new workspaces are created with.
	Timezone string `mapstructure:"timezone" yaml:"timezone"`
}

// MirrorConfig selects and configures the external mirror.
type MirrorConfig struct {
	// Kind is one of "memory", "file" or "http".
	Kind string `mapstructure:"kind" yaml:"kind"`

	// Path is the YAML document used by the file mirror.
	Path string `mapstructure:"path" yaml:"path"`

	// BaseURL is the root of the HTTP mirror API.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// CredentialKey is the keyring entry holding the HTTP mirror token.
	CredentialKey string `mapstructure:"credential_key" yaml:"credential_key"`

	// TimeoutSec bounds a single mirror call.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// MaxAttempts caps retries of idempotent mirror calls.
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`

	// BaseBackoffMS is the first retry delay; it doubles per attempt.
	BaseBackoffMS int `mapstructure:"base_backoff_ms" yaml:"base_backoff_ms"`
}

// Timeout returns the per-call timeout.
func (c MirrorConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// BaseBackoff returns the first retry delay.
func (c MirrorConfig) BaseBackoff() time.Duration {
	return time.Duration(c.BaseBackoffMS) * time.Millisecond
}

// SyncConfig holds settings of the background sync watcher.
type SyncConfig struct {
	WatchIntervalSec int `mapstructure:"watch_interval_sec" yaml:"watch_interval_sec"`
}

// GCConfig holds settings of the archived entity garbage collector.
type GCConfig struct {
	GraceDays int `mapstructure:"grace_days" yaml:"grace_days"`
}

// ServerConfig holds settings of the HTTP surface.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	DatabasePath string          `mapstructure:"database_path" yaml:"database_path"`
	Workspace    WorkspaceConfig `mapstructure:"workspace" yaml:"workspace"`
	Mirror       MirrorConfig    `mapstructure:"mirror" yaml:"mirror"`
	Sync         SyncConfig      `mapstructure:"sync" yaml:"sync"`
	GC           GCConfig        `mapstructure:"gc" yaml:"gc"`
	Server       ServerConfig    `mapstructure:"server" yaml:"server"`
}

// configDir returns ~/.config/lifeplan, or the working directory when
// the home directory cannot be resolved.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "lifeplan")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/lifeplan/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	dir := configDir()
	return &AppConfig{
		DatabasePath: filepath.Join(dir, "lifeplan.db"),
		Workspace: WorkspaceConfig{
			Name:     "Life",
			Timezone: "UTC",
		},
		Mirror: MirrorConfig{
			Kind:          MirrorKindFile,
			Path:          filepath.Join(dir, "mirror.yaml"),
			CredentialKey: "mirror-token",
			TimeoutSec:    30,
			MaxAttempts:   3,
			BaseBackoffMS: 500,
		},
		Sync:   SyncConfig{WatchIntervalSec: 300},
		GC:     GCConfig{GraceDays: 30},
		Server: ServerConfig{Addr: "127.0.0.1:8420"},
	}
}

var envKeyReplacer = strings.NewReplacer(".", "_", "-", "_")

// setDefaults mirrors DefaultAppConfig into v so missing keys resolve.
func setDefaults(v *viper.Viper) {
	d := DefaultAppConfig()
	v.SetDefault("database_path", d.DatabasePath)
	v.SetDefault("workspace.name", d.Workspace.Name)
	v.SetDefault("workspace.timezone", d.Workspace.Timezone)
	v.SetDefault("mirror.kind", d.Mirror.Kind)
	v.SetDefault("mirror.path", d.Mirror.Path)
	v.SetDefault("mirror.base_url", d.Mirror.BaseURL)
	v.SetDefault("mirror.credential_key", d.Mirror.CredentialKey)
	v.SetDefault("mirror.timeout_sec", d.Mirror.TimeoutSec)
	v.SetDefault("mirror.max_attempts", d.Mirror.MaxAttempts)
	v.SetDefault("mirror.base_backoff_ms", d.Mirror.BaseBackoffMS)
	v.SetDefault("sync.watch_interval_sec", d.Sync.WatchIntervalSec)
	v.SetDefault("gc.grace_days", d.GC.GraceDays)
	v.SetDefault("server.addr", d.Server.Addr)
}

// LoadConfig reads configuration from the given YAML file path using
// Viper. A missing file yields the default configuration. Values can be
// overridden with LIFEPLAN_* environment variables, e.g.
// LIFEPLAN_MIRROR_KIND=memory.
func LoadConfig(path string) (*AppConfig, error) {
	return LoadConfigFrom(NewViper(), path)
}

// LoadConfigFrom is LoadConfig over a caller-provided viper, typically
// one from NewViper with command line flags bound to it.
func LoadConfigFrom(v *viper.Viper, path string) (*AppConfig, error) {
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := DefaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.Mirror.MaxAttempts <= 0 {
		cfg.Mirror.MaxAttempts = 1
	}
	return cfg, nil
}

// NewViper returns a viper instance with defaults and environment
// binding configured.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("LIFEPLAN")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()
	return v
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("database_path", cfg.DatabasePath)
	v.Set("workspace", cfg.Workspace)
	v.Set("mirror", cfg.Mirror)
	v.Set("sync", cfg.Sync)
	v.Set("gc", cfg.GC)
	v.Set("server", cfg.Server)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
