package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	otelapi "go.opentelemetry.io/otel"

	"github.com/v0xg/demotour/internal/entry"
	"github.com/v0xg/demotour/internal/gifgen"
	"github.com/v0xg/demotour/internal/playback"
	"github.com/v0xg/demotour/internal/recorder"
	"github.com/v0xg/demotour/internal/telemetry"
)

type playFlags struct {
	url      string
	mode     string
	record   string
	headless bool
}

func newPlayCmd() *cobra.Command {
	var f playFlags

	cmd := &cobra.Command{
		Use:   "play [scenario]",
		Short: "Open the app in Chromium and play a tour",
		Long: `play opens the application and plays a tour against it.

If the page URL carries demo=true the tour named by its scenario and mode
parameters starts on its own after the page has rendered. Otherwise the
scenario argument (or playback.default_scenario) is started directly.

In guided mode, press Enter (or n) for the next step, p for the previous one,
a number to jump to that step, and q to quit.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd, args, f)
		},
	}

	cmd.Flags().StringVar(&f.url, "url", "", "Page to open (default browser.base_url)")
	cmd.Flags().StringVarP(&f.mode, "mode", "m", "cinematic", "Playback mode: cinematic or guided")
	cmd.Flags().StringVarP(&f.record, "record", "o", "", "Record the tour to this GIF file")
	cmd.Flags().BoolVar(&f.headless, "headless", true, "Run Chromium without a window")

	return cmd
}

func runPlay(cmd *cobra.Command, args []string, f playFlags) error {
	a, err := loadApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("headless") {
		a.cfg.Browser.Headless = f.headless
	}
	out := cmd.OutOrStdout()

	pageURL := f.url
	if pageURL == "" {
		pageURL = a.cfg.Browser.BaseURL
	}
	var scenarioID string
	if len(args) > 0 {
		scenarioID = args[0]
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(out, "→ Opening %s... ", pageURL)
	b, err := a.launch(ctx, pageURL)
	if err != nil {
		fmt.Fprintln(out, "failed")
		return fmt.Errorf("launch browser: %w", err)
	}
	defer b.Close()
	fmt.Fprintln(out, "done")

	st := b.Stage()
	engine := playback.New(a.registry, st, a.engineOptions())
	defer engine.Close()

	metrics, err := telemetry.NewMetricsHandler(otelapi.GetMeterProvider().Meter("demotour"))
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}
	engine.Observe(metrics.Handle)

	var rec *recorder.Recorder
	if f.record != "" {
		rec = recorder.New(st, recorder.Options{FPS: a.cfg.Record.FPS, Logger: a.logger})
		engine.Observe(rec.Observe)
		if err := rec.Start(ctx); err != nil {
			return fmt.Errorf("start recording: %w", err)
		}
	}

	ended := make(chan playback.Event, 1)
	engine.Observe(func(ev playback.Event) {
		printProgress(out, ev, a.stepTitle(ev))
		if ev.Kind == playback.EventTourStopped {
			select {
			case ended <- ev:
			default:
			}
		}
	})

	if err := startTour(ctx, a, engine, pageURL, scenarioID, f.mode); err != nil {
		if rec != nil {
			rec.Stop()
		}
		return err
	}

	if engine.Snapshot().Mode == playback.ModeGuided {
		go guidedControls(ctx, os.Stdin, engine)
	}

	select {
	case <-ended:
	case <-ctx.Done():
		fmt.Fprintln(out, "■ Interrupted")
		engine.Stop()
	}
	engine.Wait()

	if rec == nil {
		return nil
	}

	recording := rec.Stop()
	fmt.Fprintf(out, "→ Generating GIF (%d frames)... ", len(recording.Frames))
	size, err := recorder.Render(recording, f.record, gifgen.Options{
		FPS:      a.cfg.Record.FPS,
		MaxWidth: a.cfg.Record.MaxWidth,
	})
	if err != nil {
		fmt.Fprintln(out, "failed")
		return fmt.Errorf("GIF generation failed: %w", err)
	}
	fmt.Fprintln(out, "done")
	fmt.Fprintf(out, "✓ Saved to %s (%.1f MB)\n", f.record, float64(size)/(1024*1024))
	return nil
}

// startTour lets the page URL auto-start a tour and falls back to a manual start.
func startTour(ctx context.Context, a *app, engine *playback.Engine, pageURL, scenarioID, mode string) error {
	auto := entry.NewAutoStarter(engine, entry.AutoStarterOptions{
		DefaultScenario: a.cfg.Playback.DefaultScenario,
		Grace:           a.cfg.Playback.AutostartGrace,
		Logger:          a.logger,
	})

	if auto.Mount(ctx, pageURL) {
		select {
		case <-auto.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := auto.Err(); err != nil {
		return startError(err)
	}
	if engine.Snapshot().Active {
		return nil
	}

	manual := &entry.Manual{Engine: engine, DefaultScenario: a.cfg.Playback.DefaultScenario}
	if err := manual.Start(scenarioID, mode); err != nil {
		return startError(err)
	}
	return nil
}

func startError(err error) error {
	var cfgErr *playback.ConfigurationError
	if errors.As(err, &cfgErr) {
		return exitError(exitConfig, "%v", err)
	}
	return err
}

func printProgress(w io.Writer, ev playback.Event, title string) {
	switch ev.Kind {
	case playback.EventTourStarted:
		fmt.Fprintf(w, "→ Playing %s (%s)\n", ev.ScenarioID, ev.Mode)
	case playback.EventStepChanged:
		if title != "" {
			fmt.Fprintf(w, "  [%d] %s → %s\n", ev.StepIndex+1, ev.Action, title)
		} else {
			fmt.Fprintf(w, "  [%d] %s → %s\n", ev.StepIndex+1, ev.Action, ev.StepID)
		}
	case playback.EventStepSkipped:
		fmt.Fprintf(w, "  ⚠ %s skipped: %v\n", ev.StepID, ev.Err)
	case playback.EventTourPaused:
		fmt.Fprintln(w, "  ‖ paused")
	case playback.EventTourResumed:
		fmt.Fprintln(w, "  ▶ resumed")
	case playback.EventTourFinished:
		fmt.Fprintln(w, "✓ End of tour, q to close")
	case playback.EventTourStopped:
		if ev.Completed {
			fmt.Fprintln(w, "✓ Tour complete")
		} else {
			fmt.Fprintln(w, "■ Tour stopped")
		}
	}
}

// guidedControls maps lines read from r onto engine operations.
func guidedControls(ctx context.Context, r io.Reader, engine *playback.Engine) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil || !engine.Snapshot().Active {
			return
		}
		applyCommand(engine, scanner.Text())
	}
}

func applyCommand(engine *playback.Engine, line string) {
	cmd := strings.ToLower(strings.TrimSpace(line))
	switch cmd {
	case "", "n", "next":
		engine.Next()
	case "p", "prev":
		engine.Prev()
	case "pause":
		engine.Pause()
	case "resume", "play":
		engine.Resume()
	case "q", "quit", "stop":
		engine.Stop()
	default:
		// Steps are numbered from 1 in progress output.
		if n, err := strconv.Atoi(cmd); err == nil {
			engine.JumpToStep(n - 1)
		}
	}
}
