// Package telemetry records playback events as OpenTelemetry metrics.
package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/v0xg/demotour/internal/playback"
)

// MetricsHandler translates playback events into OpenTelemetry metrics.
// It counts tours, executed and skipped steps, and records how long each step stayed on screen.
type MetricsHandler struct {
	toursStarted   metric.Int64Counter
	toursCompleted metric.Int64Counter
	stepsExecuted  metric.Int64Counter
	targetsMissing metric.Int64Counter
	typeMismatches metric.Int64Counter
	stepDuration   metric.Float64Histogram

	mu      sync.Mutex
	current map[string]stepVisit // by session id
}

// stepVisit is the step currently shown in a session.
type stepVisit struct {
	scenarioID string
	stepID     string
	since      time.Time
}

// NewMetricsHandler creates a MetricsHandler that uses the given meter to create
// instruments for recording playback metrics.
func NewMetricsHandler(meter metric.Meter) (*MetricsHandler, error) {
	started, err := meter.Int64Counter("demotour.tours.started",
		metric.WithDescription("Number of tours started"),
	)
	if err != nil {
		return nil, err
	}

	completed, err := meter.Int64Counter("demotour.tours.completed",
		metric.WithDescription("Number of tours played to their last step"),
	)
	if err != nil {
		return nil, err
	}

	executed, err := meter.Int64Counter("demotour.steps.executed",
		metric.WithDescription("Number of steps whose effects all ran"),
	)
	if err != nil {
		return nil, err
	}

	missing, err := meter.Int64Counter("demotour.targets.missing",
		metric.WithDescription("Number of steps skipped because the target selector matched nothing"),
	)
	if err != nil {
		return nil, err
	}

	mismatches, err := meter.Int64Counter("demotour.type_mismatches",
		metric.WithDescription("Number of steps skipped because the target lacked the needed capability"),
	)
	if err != nil {
		return nil, err
	}

	stepDur, err := meter.Float64Histogram("demotour.step.duration",
		metric.WithDescription("Time a step stayed current, in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &MetricsHandler{
		toursStarted:   started,
		toursCompleted: completed,
		stepsExecuted:  executed,
		targetsMissing: missing,
		typeMismatches: mismatches,
		stepDuration:   stepDur,
		current:        make(map[string]stepVisit),
	}, nil
}

// Handle processes a playback event and records the appropriate metrics.
// Register it with Engine.Observe.
func (h *MetricsHandler) Handle(e playback.Event) {
	switch e.Kind {
	case playback.EventTourStarted:
		h.toursStarted.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("scenario", e.ScenarioID),
			attribute.String("mode", string(e.Mode)),
		))
	case playback.EventStepChanged:
		h.handleStepChanged(e)
	case playback.EventStepExecuted:
		h.stepsExecuted.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("scenario", e.ScenarioID),
			attribute.String("action", string(e.Action)),
		))
	case playback.EventStepSkipped:
		h.handleStepSkipped(e)
	case playback.EventTourFinished:
		h.handleTourEnded(e, true)
	case playback.EventTourStopped:
		h.handleTourEnded(e, e.Completed)
	}
}

// handleStepChanged closes the previous step's visit and opens a new one.
func (h *MetricsHandler) handleStepChanged(e playback.Event) {
	h.mu.Lock()
	prev, ok := h.current[e.SessionID]
	h.current[e.SessionID] = stepVisit{scenarioID: e.ScenarioID, stepID: e.StepID, since: e.Time}
	h.mu.Unlock()

	if ok {
		h.recordVisit(prev, e.Time)
	}
}

func (h *MetricsHandler) handleStepSkipped(e playback.Event) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("scenario", e.ScenarioID),
		attribute.String("action", string(e.Action)),
	)

	var notFound *playback.TargetNotFoundError
	var mismatch *playback.TypeMismatchError
	switch {
	case errors.As(e.Err, &notFound):
		h.targetsMissing.Add(ctx, 1, attrs)
	case errors.As(e.Err, &mismatch):
		h.typeMismatches.Add(ctx, 1, attrs)
	}
}

// handleTourEnded records the last step's visit and, for completed tours, the completion.
func (h *MetricsHandler) handleTourEnded(e playback.Event, completed bool) {
	h.mu.Lock()
	prev, ok := h.current[e.SessionID]
	delete(h.current, e.SessionID)
	h.mu.Unlock()

	if ok {
		h.recordVisit(prev, e.Time)
	}
	if completed {
		h.toursCompleted.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("scenario", e.ScenarioID),
			attribute.String("mode", string(e.Mode)),
		))
	}
}

func (h *MetricsHandler) recordVisit(v stepVisit, until time.Time) {
	h.stepDuration.Record(context.Background(), until.Sub(v.since).Seconds(), metric.WithAttributes(
		attribute.String("scenario", v.scenarioID),
		attribute.String("step", v.stepID),
	))
}
