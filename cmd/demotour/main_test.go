package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/demotour/internal/config"
	"github.com/v0xg/demotour/internal/playback"
	"github.com/v0xg/demotour/internal/scenario"
	"github.com/v0xg/demotour/internal/stage/stagetest"
)

func testApp(t *testing.T) *app {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Playback.AutostartGrace = time.Millisecond
	registry, err := loadRegistry(cfg.Scenarios)
	require.NoError(t, err)
	return &app{cfg: cfg, logger: slog.New(slog.NewTextHandler(io.Discard, nil)), registry: registry}
}

func testEngine(t *testing.T, a *app) *playback.Engine {
	t.Helper()
	st := stagetest.New().Add("#x", stagetest.KindBlock).Add("#y", stagetest.KindBlock)
	opts := a.engineOptions()
	opts.SettleDelay = time.Millisecond
	opts.EmphasisDelay = time.Millisecond
	e := playback.New(a.registry, st, opts)
	t.Cleanup(e.Close)
	return e
}

func TestLoadRegistry(t *testing.T) {
	registry, err := loadRegistry(config.ScenariosConfig{})
	require.NoError(t, err)

	_, ok := registry.Lookup(scenario.DefaultScenarioID)
	assert.True(t, ok)
	_, ok = registry.Lookup("tour_basic")
	assert.True(t, ok)
}

func TestLoadRegistry_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tours.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scenarios:
  - id: supplier_intro
    steps:
      - { id: s1, role: supplier, action: navigate, route: /inbox }
`), 0o644))

	registry, err := loadRegistry(config.ScenariosConfig{File: path})
	require.NoError(t, err)
	s, ok := registry.Lookup("supplier_intro")
	require.True(t, ok)
	assert.Equal(t, 1, s.Len())

	dup := filepath.Join(dir, "dup.yaml")
	require.NoError(t, os.WriteFile(dup, []byte(`
scenarios:
  - id: tour_basic
    steps:
      - { id: s1, action: navigate, route: /a }
`), 0o644))
	_, err = loadRegistry(config.ScenariosConfig{File: dup})
	assert.ErrorIs(t, err, scenario.ErrDuplicateScenario)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger := newLogger(&buf, config.LogConfig{Level: "warn", Format: "text"}, false)
	logger.Info("hidden")
	assert.Empty(t, buf.String())

	logger = newLogger(&buf, config.LogConfig{Level: "warn", Format: "json"}, true)
	logger.Debug("shown", "step", "s1")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"step":"s1"`)
}

func TestStartTour_FromURL(t *testing.T) {
	a := testApp(t)
	e := testEngine(t, a)

	err := startTour(context.Background(), a, e, "http://localhost:3000/?demo=true&scenario=tour_basic&mode=guided", "", "")
	require.NoError(t, err)

	snap := e.Snapshot()
	assert.True(t, snap.Active)
	assert.Equal(t, "tour_basic", snap.ScenarioID)
	assert.Equal(t, playback.ModeGuided, snap.Mode)
}

func TestStartTour_Manual(t *testing.T) {
	a := testApp(t)
	e := testEngine(t, a)

	require.NoError(t, startTour(context.Background(), a, e, "http://localhost:3000/", "tour_basic", "guided"))

	snap := e.Snapshot()
	assert.Equal(t, "tour_basic", snap.ScenarioID)
	assert.Equal(t, playback.ModeGuided, snap.Mode)
	assert.False(t, snap.Playing)
}

func TestStartTour_Refused(t *testing.T) {
	tests := []struct {
		name       string
		pageURL    string
		scenarioID string
		mode       string
	}{
		{name: "unknown scenario", pageURL: "http://localhost:3000/", scenarioID: "nope"},
		{name: "bad mode", pageURL: "http://localhost:3000/", scenarioID: "tour_basic", mode: "slow"},
		{name: "unknown scenario in url", pageURL: "http://localhost:3000/?demo=1&scenario=nope"},
		{name: "bad mode in url", pageURL: "http://localhost:3000/?demo=1&mode=slow"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := testApp(t)
			e := testEngine(t, a)

			err := startTour(context.Background(), a, e, tt.pageURL, tt.scenarioID, tt.mode)

			var exitErr *ExitError
			require.True(t, errors.As(err, &exitErr), "got %v", err)
			assert.Equal(t, exitConfig, exitErr.Code)
			assert.False(t, e.Snapshot().Active)
		})
	}
}

func TestApplyCommand(t *testing.T) {
	a := testApp(t)
	e := testEngine(t, a)
	require.NoError(t, e.Start("tour_basic", playback.ModeGuided))

	applyCommand(e, "")
	assert.Equal(t, 1, e.Snapshot().StepIndex)

	applyCommand(e, " P ")
	assert.Equal(t, 0, e.Snapshot().StepIndex)

	applyCommand(e, "3")
	assert.Equal(t, 2, e.Snapshot().StepIndex)

	applyCommand(e, "42")
	assert.Equal(t, 2, e.Snapshot().StepIndex, "out of range jumps are ignored")

	applyCommand(e, "q")
	assert.False(t, e.Snapshot().Active)
	e.Wait()
}

func TestGuidedControls(t *testing.T) {
	a := testApp(t)
	e := testEngine(t, a)
	require.NoError(t, e.Start("tour_basic", playback.ModeGuided))

	guidedControls(context.Background(), strings.NewReader("n\nn\n"), e)

	assert.Equal(t, 2, e.Snapshot().StepIndex)
	e.Wait()
}

func TestPrintProgress(t *testing.T) {
	var buf bytes.Buffer

	printProgress(&buf, playback.Event{Kind: playback.EventTourStarted, ScenarioID: "tour_basic", Mode: playback.ModeCinematic}, "")
	printProgress(&buf, playback.Event{Kind: playback.EventStepChanged, StepIndex: 1, StepID: "s2", Action: scenario.ActionHighlight}, "")
	printProgress(&buf, playback.Event{Kind: playback.EventStepChanged, StepIndex: 2, StepID: "s3", Action: scenario.ActionClick}, "Send the RFP")
	printProgress(&buf, playback.Event{Kind: playback.EventStepSkipped, StepID: "s3", Err: errors.New("missing")}, "")
	printProgress(&buf, playback.Event{Kind: playback.EventTourStopped, Completed: true}, "")

	assert.Equal(t, `→ Playing tour_basic (cinematic)
  [2] highlight → s2
  [3] click → Send the RFP
  ⚠ s3 skipped: missing
✓ Tour complete
`, buf.String())
}

func TestListScenarios(t *testing.T) {
	a := testApp(t)
	var buf bytes.Buffer

	require.NoError(t, listScenarios(&buf, a.registry.List(), "tour_basic", true))

	out := buf.String()
	assert.Contains(t, out, "tour_basic (default)")
	assert.Contains(t, out, "[1] s1")
	assert.Contains(t, out, "/a")
	assert.Contains(t, out, "#x")
}
