package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/v0xg/demotour/internal/playback"
	"github.com/v0xg/demotour/internal/scenario"
	"github.com/v0xg/demotour/internal/stage"
	"github.com/v0xg/demotour/internal/stage/stagetest"
)

func newTestHandler(t *testing.T) (*MetricsHandler, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	h, err := NewMetricsHandler(mp.Meter("test"))
	require.NoError(t, err)
	return h, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, scope := range rm.ScopeMetrics {
		for i := range scope.Metrics {
			if scope.Metrics[i].Name == name {
				return &scope.Metrics[i]
			}
		}
	}
	return nil
}

// counterTotal sums every data point of an int64 counter; a missing metric counts as zero.
func counterTotal(t *testing.T, rm *metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	m := findMetric(rm, name)
	if m == nil {
		return 0
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum[int64] for %s, got %T", name, m.Data)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetricsHandler_Counters(t *testing.T) {
	h, reader := newTestHandler(t)

	h.Handle(playback.Event{Kind: playback.EventTourStarted, SessionID: "s", ScenarioID: "rfp", Mode: playback.ModeCinematic})
	h.Handle(playback.Event{Kind: playback.EventStepExecuted, SessionID: "s", ScenarioID: "rfp", Action: scenario.ActionClick})
	h.Handle(playback.Event{Kind: playback.EventStepExecuted, SessionID: "s", ScenarioID: "rfp", Action: scenario.ActionHighlight})
	h.Handle(playback.Event{
		Kind: playback.EventStepSkipped, SessionID: "s", ScenarioID: "rfp",
		Err: &playback.TargetNotFoundError{StepID: "x", Selector: "#x", Err: stage.ErrNotFound},
	})
	h.Handle(playback.Event{
		Kind: playback.EventStepSkipped, SessionID: "s", ScenarioID: "rfp",
		Err: &playback.TypeMismatchError{StepID: "y", Action: scenario.ActionType, Selector: "#y", Err: stage.ErrNotTextEntry},
	})
	h.Handle(playback.Event{Kind: playback.EventTourStopped, SessionID: "s", ScenarioID: "rfp", Mode: playback.ModeCinematic, Completed: true})

	rm := collect(t, reader)
	assert.Equal(t, int64(1), counterTotal(t, rm, "demotour.tours.started"))
	assert.Equal(t, int64(2), counterTotal(t, rm, "demotour.steps.executed"))
	assert.Equal(t, int64(1), counterTotal(t, rm, "demotour.targets.missing"))
	assert.Equal(t, int64(1), counterTotal(t, rm, "demotour.type_mismatches"))
	assert.Equal(t, int64(1), counterTotal(t, rm, "demotour.tours.completed"))
}

func TestMetricsHandler_ManualStopIsNotCompletion(t *testing.T) {
	h, reader := newTestHandler(t)

	h.Handle(playback.Event{Kind: playback.EventTourStopped, SessionID: "s", ScenarioID: "rfp"})
	h.Handle(playback.Event{Kind: playback.EventTourFinished, SessionID: "g", ScenarioID: "rfp", Mode: playback.ModeGuided})

	rm := collect(t, reader)
	assert.Equal(t, int64(1), counterTotal(t, rm, "demotour.tours.completed"), "only the guided finish counts")
}

func TestMetricsHandler_StepDuration(t *testing.T) {
	h, reader := newTestHandler(t)
	t0 := time.Now()

	h.Handle(playback.Event{Kind: playback.EventStepChanged, SessionID: "s", ScenarioID: "rfp", StepID: "a", Time: t0})
	h.Handle(playback.Event{Kind: playback.EventStepChanged, SessionID: "s", ScenarioID: "rfp", StepID: "b", Time: t0.Add(2 * time.Second)})
	h.Handle(playback.Event{Kind: playback.EventTourStopped, SessionID: "s", ScenarioID: "rfp", Time: t0.Add(3 * time.Second)})

	rm := collect(t, reader)
	m := findMetric(rm, "demotour.step.duration")
	require.NotNil(t, m)
	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 2, "one series per step")

	var total float64
	for _, dp := range hist.DataPoints {
		assert.Equal(t, uint64(1), dp.Count)
		total += dp.Sum
	}
	assert.InDelta(t, 3.0, total, 0.001)
}

func TestMetricsHandler_WithEngine(t *testing.T) {
	h, reader := newTestHandler(t)

	st := stagetest.New().Add("#x", stagetest.KindBlock)
	reg, err := scenario.NewRegistry(&scenario.Scenario{ID: "mini", Steps: []scenario.Step{
		{ID: "a", Action: scenario.ActionHighlight, TargetSelector: "#x"},
		{ID: "b", Action: scenario.ActionHighlight, TargetSelector: "#missing"},
	}})
	require.NoError(t, err)

	opts := playback.DefaultOptions()
	opts.SettleDelay = time.Millisecond
	e := playback.New(reg, st, opts)
	defer e.Close()
	e.Observe(h.Handle)

	require.NoError(t, e.Start("mini", playback.ModeGuided))
	e.Wait()
	e.Next()
	e.Wait()
	e.Stop()

	rm := collect(t, reader)
	assert.Equal(t, int64(1), counterTotal(t, rm, "demotour.steps.executed"))
	assert.Equal(t, int64(1), counterTotal(t, rm, "demotour.targets.missing"))
	assert.Equal(t, int64(0), counterTotal(t, rm, "demotour.tours.completed"))
}
