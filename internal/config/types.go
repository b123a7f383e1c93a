// Package config provides configuration loading for demotour.
//
// Configuration is loaded using Viper, supporting a YAML config file and environment
// variable overrides. Defaults come from struct tags applied by [DefaultConfig], so a
// bare invocation plays the built-in tour against a local application.
//
// Key types:
//   - [Config] is the root configuration container with all settings
//   - [Loader] handles Viper-based configuration loading
//   - [PlaybackConfig] holds the engine timing
//   - [BrowserConfig] describes the Chromium session the tour runs in
//
// Configuration priority (highest to lowest):
//  1. Environment variables (DEMOTOUR_ prefix, dots become underscores,
//     e.g. DEMOTOUR_PLAYBACK_SETTLE_DELAY=200ms)
//  2. Config file given with --config or DEMOTOUR_CONFIG_PATH
//  3. ./demotour.yaml when present
//  4. [DefaultConfig] defaults
package config

import (
	"time"

	"github.com/creasty/defaults"
)

// Config represents the root configuration structure.
type Config struct {
	Playback  PlaybackConfig  `mapstructure:"playback"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Scenarios ScenariosConfig `mapstructure:"scenarios"`
	Server    ServerConfig    `mapstructure:"server"`
	Record    RecordConfig    `mapstructure:"record"`
	Log       LogConfig       `mapstructure:"log"`
}

// PlaybackConfig holds the engine timing.
type PlaybackConfig struct {
	// SettleDelay is waited before a target is resolved, letting a freshly
	// navigated page finish mounting.
	SettleDelay time.Duration `mapstructure:"settle_delay" default:"100ms" validate:"gte=0"`

	// EmphasisDelay is how long a click target is highlighted before it is clicked.
	EmphasisDelay time.Duration `mapstructure:"emphasis_delay" default:"500ms" validate:"gte=0"`

	// KeystrokeDelay is the pause after each typed character.
	KeystrokeDelay time.Duration `mapstructure:"keystroke_delay" default:"50ms" validate:"gte=0"`

	// DefaultStepDuration applies to cinematic steps without durationMs.
	DefaultStepDuration time.Duration `mapstructure:"default_step_duration" default:"3s" validate:"gt=0"`

	// AutostartGrace is waited after page mount before a URL-driven tour starts.
	AutostartGrace time.Duration `mapstructure:"autostart_grace" default:"500ms" validate:"gte=0"`

	// DefaultScenario is played when no scenario is named.
	DefaultScenario string `mapstructure:"default_scenario" default:"rfp_overview" validate:"required"`
}

// BrowserConfig describes the Chromium session.
type BrowserConfig struct {
	// BaseURL is the root of the application under demonstration.
	BaseURL string `mapstructure:"base_url" default:"http://localhost:3000" validate:"required,url"`

	Width  int `mapstructure:"width" default:"1280" validate:"gt=0"`
	Height int `mapstructure:"height" default:"720" validate:"gt=0"`

	Headless bool `mapstructure:"headless" default:"true"`

	// ProfileDir is a Chrome/Chromium profile directory for authenticated sessions.
	ProfileDir string `mapstructure:"profile_dir"`

	// InjectMarkerStyle adds a default stylesheet for the highlight class.
	// Leave it off when the application ships its own.
	InjectMarkerStyle bool `mapstructure:"inject_marker_style" default:"false"`

	// Timeout bounds the initial page load.
	Timeout time.Duration `mapstructure:"timeout" default:"30s" validate:"gt=0"`
}

// ScenariosConfig points at additional scenario definitions.
type ScenariosConfig struct {
	// File is a YAML file whose scenarios are registered next to the built-in ones.
	File string `mapstructure:"file"`
}

// ServerConfig configures the HTTP control surface.
type ServerConfig struct {
	Addr string `mapstructure:"addr" default:"127.0.0.1:8089" validate:"required,hostname_port"`
}

// RecordConfig configures GIF recording.
type RecordConfig struct {
	FPS      int  `mapstructure:"fps" default:"10" validate:"gt=0,lte=50"`
	MaxWidth uint `mapstructure:"max_width" default:"800" validate:"gt=0"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" default:"text" validate:"oneof=text json"`
}

// DefaultConfig returns a configuration with all defaults applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		// Only reachable with a malformed default tag.
		panic("config: " + err.Error())
	}
	return cfg
}
