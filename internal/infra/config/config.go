// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/osa030/tome/internal/infra/logger"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig            `yaml:"server"`
	Log      logger.Config           `yaml:"log"`
	Playback PlaybackConfig          `yaml:"playback"`
	Audio    AudioConfig             `yaml:"audio"`
	Library  LibraryConfig           `yaml:"library"`
	Settings SettingsConfig          `yaml:"settings"`
	Filters  map[string]FilterConfig `yaml:"filters"`
	Hosts    []HostConfig            `yaml:"hosts" validate:"dive"`
}

// ServerConfig represents the control server configuration.
type ServerConfig struct {
	Addr  string      `yaml:"addr" default:"127.0.0.1:7421" validate:"required,hostname_port"`
	Token string      `yaml:"token"` // Required X-Host-Token value; empty disables the check
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// PlaybackConfig represents playback and host sync configuration.
type PlaybackConfig struct {
	SyncIntervalMs int `yaml:"sync_interval_ms" default:"500" validate:"gte=50,lte=10000"`
	PushTimeoutMs  int `yaml:"push_timeout_ms" default:"2000" validate:"gte=100,lte=30000"`
	EventBuffer    int `yaml:"event_buffer" default:"16" validate:"gte=1,lte=1024"`
}

// SyncInterval returns the host sync tick interval.
func (p PlaybackConfig) SyncInterval() time.Duration {
	return time.Duration(p.SyncIntervalMs) * time.Millisecond
}

// PushTimeout returns the bound on a single host invoke.
func (p PlaybackConfig) PushTimeout() time.Duration {
	return time.Duration(p.PushTimeoutMs) * time.Millisecond
}

// AudioConfig represents audio output configuration.
type AudioConfig struct {
	SampleRate      int `yaml:"sample_rate" default:"44100" validate:"gte=8000,lte=192000"`
	BufferMs        int `yaml:"buffer_ms" default:"100" validate:"gte=10,lte=1000"`
	ResampleQuality int `yaml:"resample_quality" default:"4" validate:"gte=1,lte=6"`
}

// BufferSize returns the speaker buffer length.
func (a AudioConfig) BufferSize() time.Duration {
	return time.Duration(a.BufferMs) * time.Millisecond
}

// LibraryConfig represents the local music library configuration.
type LibraryConfig struct {
	Paths      []string `yaml:"paths"`
	Extensions []string `yaml:"extensions" default:"[\"m4a\",\"aac\",\"ape\",\"aif\",\"aiff\",\"aifc\",\"flac\",\"mp3\",\"ogg\",\"wav\"]" validate:"min=1,dive,required"`
	CacheDir   string   `yaml:"cache_dir"` // Extracted embedded artwork; defaults under the user cache dir
}

// SettingsConfig represents persisted user preferences.
type SettingsConfig struct {
	Path         string `yaml:"path"`          // Defaults to <user config dir>/tome/settings.yaml
	DisableWatch bool   `yaml:"disable_watch"` // Stop reloading the file on external edits
}

// FilterConfig represents an enqueue filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// HostConfig represents a single host backend configuration.
type HostConfig struct {
	Type     string         `yaml:"type" validate:"required,oneof=log rpc notify lastfm"`
	Settings map[string]any `yaml:"settings"`
}

// Load loads configuration from a YAML file. An empty path yields the
// defaults. Environment variables take precedence over file values for
// sensitive fields.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read config file")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse config file")
		}
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	cfg.normalize()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("TOME_HOST_TOKEN"); v != "" {
		c.Server.Token = v
		c.setHostSetting("rpc", "token", v)
	}
	if v := os.Getenv("LASTFM_API_KEY"); v != "" {
		c.setHostSetting("lastfm", "api_key", v)
	}
	if v := os.Getenv("LASTFM_API_SECRET"); v != "" {
		c.setHostSetting("lastfm", "api_secret", v)
	}
	if v := os.Getenv("LASTFM_SESSION_KEY"); v != "" {
		c.setHostSetting("lastfm", "session_key", v)
	}
}

// setHostSetting sets key on every host of the given type.
func (c *Config) setHostSetting(hostType, key string, value any) {
	for i := range c.Hosts {
		if c.Hosts[i].Type != hostType {
			continue
		}
		if c.Hosts[i].Settings == nil {
			c.Hosts[i].Settings = make(map[string]any)
		}
		c.Hosts[i].Settings[key] = value
	}
}

// normalize lower-cases extensions and strips their leading dot.
func (c *Config) normalize() {
	for i, ext := range c.Library.Extensions {
		c.Library.Extensions[i] = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// SettingsPath returns the preferences file path.
func (c *Config) SettingsPath() (string, error) {
	if c.Settings.Path != "" {
		return c.Settings.Path, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve user config dir")
	}
	return filepath.Join(dir, "tome", "settings.yaml"), nil
}

// ArtworkCacheDir returns the directory extracted artwork is written to.
func (c *Config) ArtworkCacheDir() (string, error) {
	if c.Library.CacheDir != "" {
		return c.Library.CacheDir, nil
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve user cache dir")
	}
	return filepath.Join(dir, "tome", "artwork"), nil
}
