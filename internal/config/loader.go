package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DEMOTOUR"

// ConfigPathEnv names the environment variable holding a config file path.
const ConfigPathEnv = EnvPrefix + "_CONFIG_PATH"

// defaultFile is read from the working directory when present.
const defaultFile = "demotour.yaml"

var validate = validator.New()

// Loader handles Viper-based configuration loading.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader with defaults and environment overrides registered.
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())
	return &Loader{v: v}
}

// Load reads the file named by DEMOTOUR_CONFIG_PATH, else ./demotour.yaml when
// it exists, else defaults only. Environment overrides always apply.
func (l *Loader) Load() (*Config, error) {
	if path := os.Getenv(ConfigPathEnv); path != "" {
		return l.LoadFromFile(path)
	}
	if _, err := os.Stat(defaultFile); err == nil {
		return l.LoadFromFile(defaultFile)
	}
	return l.unmarshal()
}

// LoadFromFile reads path and applies environment overrides on top of it.
func (l *Loader) LoadFromFile(path string) (*Config, error) {
	l.v.SetConfigFile(path)
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return l.unmarshal()
}

// Viper returns the underlying viper instance, for binding command-line flags.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

func (l *Loader) unmarshal() (*Config, error) {
	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field against its validate tag.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config validation failed: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(msgs, "; "))
}

// setDefaults registers every key so AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("playback.settle_delay", d.Playback.SettleDelay)
	v.SetDefault("playback.emphasis_delay", d.Playback.EmphasisDelay)
	v.SetDefault("playback.keystroke_delay", d.Playback.KeystrokeDelay)
	v.SetDefault("playback.default_step_duration", d.Playback.DefaultStepDuration)
	v.SetDefault("playback.autostart_grace", d.Playback.AutostartGrace)
	v.SetDefault("playback.default_scenario", d.Playback.DefaultScenario)

	v.SetDefault("browser.base_url", d.Browser.BaseURL)
	v.SetDefault("browser.width", d.Browser.Width)
	v.SetDefault("browser.height", d.Browser.Height)
	v.SetDefault("browser.headless", d.Browser.Headless)
	v.SetDefault("browser.profile_dir", d.Browser.ProfileDir)
	v.SetDefault("browser.inject_marker_style", d.Browser.InjectMarkerStyle)
	v.SetDefault("browser.timeout", d.Browser.Timeout)

	v.SetDefault("scenarios.file", d.Scenarios.File)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("record.fps", d.Record.FPS)
	v.SetDefault("record.max_width", d.Record.MaxWidth)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}
