package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/v0xg/demotour/internal/browser"
	"github.com/v0xg/demotour/internal/config"
	"github.com/v0xg/demotour/internal/playback"
	"github.com/v0xg/demotour/internal/scenario"
)

const (
	exitFailure = 1
	exitConfig  = 2
)

// ExitError is an error that carries a specific process exit code.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

func exitError(code int, format string, args ...any) *ExitError {
	return &ExitError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// app is what every command needs after startup.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *scenario.Registry
}

func loadApp(stderr io.Writer) (*app, error) {
	loader := config.NewLoader()

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = loader.LoadFromFile(configPath)
	} else {
		cfg, err = loader.Load()
	}
	if err != nil {
		return nil, exitError(exitConfig, "load config: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, exitError(exitConfig, "%v", err)
	}

	logger := newLogger(stderr, cfg.Log, verbose)
	slog.SetDefault(logger)

	registry, err := loadRegistry(cfg.Scenarios)
	if err != nil {
		return nil, exitError(exitConfig, "%v", err)
	}
	if _, ok := registry.Lookup(cfg.Playback.DefaultScenario); !ok {
		logger.Warn("default scenario is not registered", "scenario", cfg.Playback.DefaultScenario)
	}

	return &app{cfg: cfg, logger: logger, registry: registry}, nil
}

func newLogger(w io.Writer, cfg config.LogConfig, verbose bool) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// loadRegistry registers the built-in tours plus those in the configured file.
func loadRegistry(cfg config.ScenariosConfig) (*scenario.Registry, error) {
	registry, err := scenario.NewRegistry(scenario.Builtin()...)
	if err != nil {
		return nil, err
	}
	if cfg.File == "" {
		return registry, nil
	}

	extra, err := scenario.LoadFile(cfg.File)
	if err != nil {
		return nil, err
	}
	for _, s := range extra {
		if err := registry.Register(s); err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.File, err)
		}
	}
	return registry, nil
}

func (a *app) engineOptions() playback.Options {
	return playback.Options{
		SettleDelay:         a.cfg.Playback.SettleDelay,
		EmphasisDelay:       a.cfg.Playback.EmphasisDelay,
		KeystrokeDelay:      a.cfg.Playback.KeystrokeDelay,
		DefaultStepDuration: a.cfg.Playback.DefaultStepDuration,
		Logger:              a.logger,
	}
}

func (a *app) launch(ctx context.Context, pageURL string) (*browser.Browser, error) {
	return browser.Launch(ctx, pageURL, browser.Options{
		BaseURL:           a.cfg.Browser.BaseURL,
		Width:             a.cfg.Browser.Width,
		Height:            a.cfg.Browser.Height,
		Headless:          a.cfg.Browser.Headless,
		ProfileDir:        a.cfg.Browser.ProfileDir,
		Timeout:           a.cfg.Browser.Timeout,
		InjectMarkerStyle: a.cfg.Browser.InjectMarkerStyle,
		Logger:            a.logger,
	})
}

// stepTitle returns the caption of the step an event refers to, if it has one.
func (a *app) stepTitle(ev playback.Event) string {
	s, ok := a.registry.Lookup(ev.ScenarioID)
	if !ok {
		return ""
	}
	step, ok := s.Step(ev.StepIndex)
	if !ok {
		return ""
	}
	return step.Title
}
