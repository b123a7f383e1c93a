// Package entry contains the ways a tour gets started: a manual affordance and the
// one-time auto-start driven by the host page's query parameters.
package entry

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/v0xg/demotour/internal/playback"
)

// Query parameters read by the auto-starter.
const (
	ParamDemo     = "demo"
	ParamScenario = "scenario"
	ParamMode     = "mode"
)

// Starter is the part of the engine entry points need.
type Starter interface {
	Start(scenarioID string, mode playback.Mode) error
	Snapshot() playback.Snapshot
}

// Manual starts tours on explicit request.
type Manual struct {
	Engine Starter

	// DefaultScenario is used when Start is called with an empty id.
	DefaultScenario string
}

// Start begins scenarioID in mode; an empty mode means cinematic.
func (m *Manual) Start(scenarioID string, mode string) error {
	if scenarioID == "" {
		scenarioID = m.DefaultScenario
	}
	parsed, err := playback.ParseMode(mode)
	if err != nil {
		return &playback.ConfigurationError{ScenarioID: scenarioID, Mode: playback.Mode(mode), Reason: err.Error()}
	}
	return m.Engine.Start(scenarioID, parsed)
}

// Request is a parsed auto-start request.
type Request struct {
	ScenarioID string
	Mode       playback.Mode
}

// ParseQuery reads the demo parameters. ok is false when the demo flag is absent
// or not "true"/"1".
func ParseQuery(q url.Values, defaultScenario string) (req Request, ok bool, err error) {
	switch q.Get(ParamDemo) {
	case "true", "1":
	default:
		return Request{}, false, nil
	}

	req.ScenarioID = q.Get(ParamScenario)
	if req.ScenarioID == "" {
		req.ScenarioID = defaultScenario
	}
	req.Mode, err = playback.ParseMode(q.Get(ParamMode))
	return req, true, err
}

// AutoStarterOptions configures an AutoStarter.
type AutoStarterOptions struct {
	// DefaultScenario is used when the scenario parameter is missing.
	DefaultScenario string

	// Grace lets the host page finish its initial render before the tour starts (default 500ms).
	Grace time.Duration

	// Logger reports refused requests. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// AutoStarter evaluates the demo query parameters once, at host-page mount.
type AutoStarter struct {
	engine Starter
	opts   AutoStarterOptions
	logger *slog.Logger
	once   sync.Once
	done   chan struct{}
	err    error
}

// NewAutoStarter creates an auto-starter for engine.
func NewAutoStarter(engine Starter, opts AutoStarterOptions) *AutoStarter {
	if opts.Grace == 0 {
		opts.Grace = 500 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AutoStarter{engine: engine, opts: opts, logger: logger, done: make(chan struct{})}
}

// Mount inspects pageURL. On the first call only, if the demo flag is set and no
// tour is active, it schedules Start after the grace delay. Cancelling ctx before
// the delay elapses abandons the start. Later calls do nothing.
// It reports whether a start was scheduled.
func (a *AutoStarter) Mount(ctx context.Context, pageURL string) bool {
	scheduled := false
	a.once.Do(func() {
		scheduled = a.mount(ctx, pageURL)
		if !scheduled {
			close(a.done)
		}
	})
	return scheduled
}

// Done is closed once the mount-time decision has played out.
func (a *AutoStarter) Done() <-chan struct{} {
	return a.done
}

// Err returns the error from the scheduled start, if any. Valid after Done is closed.
func (a *AutoStarter) Err() error {
	select {
	case <-a.done:
		return a.err
	default:
		return nil
	}
}

func (a *AutoStarter) mount(ctx context.Context, pageURL string) bool {
	if a.engine.Snapshot().Active {
		return false
	}

	u, err := url.Parse(pageURL)
	if err != nil {
		a.err = fmt.Errorf("parse page url: %w", err)
		a.logger.Warn("demo auto-start skipped", "url", pageURL, "error", err)
		return false
	}

	req, ok, err := ParseQuery(u.Query(), a.opts.DefaultScenario)
	if !ok {
		return false
	}
	if err != nil {
		a.err = &playback.ConfigurationError{ScenarioID: req.ScenarioID, Mode: playback.Mode(u.Query().Get(ParamMode)), Reason: err.Error()}
		a.logger.Error("demo auto-start refused", "url", pageURL, "error", err)
		return false
	}

	go func() {
		defer close(a.done)

		t := time.NewTimer(a.opts.Grace)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		if a.engine.Snapshot().Active {
			return
		}
		a.err = a.engine.Start(req.ScenarioID, req.Mode)
	}()
	return true
}
