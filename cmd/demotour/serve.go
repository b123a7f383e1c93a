package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	otelapi "go.opentelemetry.io/otel"

	"github.com/v0xg/demotour/internal/control"
	"github.com/v0xg/demotour/internal/entry"
	"github.com/v0xg/demotour/internal/playback"
	"github.com/v0xg/demotour/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	var (
		addr     string
		pageURL  string
		headless bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Open the app and expose tour controls over HTTP",
		Long: `serve opens the application in Chromium and keeps it open while an HTTP
control surface starts, steps through and stops tours against it.

  GET  /tour                current playback state
  GET  /scenarios           registered scenarios
  POST /tour/start          {"scenario": "...", "mode": "cinematic|guided"}
  POST /tour/{stop,next,prev,pause,resume}
  POST /tour/jump/{index}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("headless") {
				a.cfg.Browser.Headless = headless
			}
			if pageURL == "" {
				pageURL = a.cfg.Browser.BaseURL
			}
			return runServe(cmd, a, pageURL)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default server.addr)")
	cmd.Flags().StringVar(&pageURL, "url", "", "Page to open (default browser.base_url)")
	cmd.Flags().BoolVar(&headless, "headless", true, "Run Chromium without a window")

	return cmd
}

func runServe(cmd *cobra.Command, a *app, pageURL string) error {
	out := cmd.OutOrStdout()

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

	engine := playback.New(a.registry, b.Stage(), a.engineOptions())
	defer engine.Close()

	metrics, err := telemetry.NewMetricsHandler(otelapi.GetMeterProvider().Meter("demotour"))
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}
	engine.Observe(metrics.Handle)
	engine.Observe(func(ev playback.Event) {
		a.logger.Debug("playback event", "kind", ev.Kind, "scenario", ev.ScenarioID, "step", ev.StepID, "session", ev.SessionID)
	})

	// A demo URL starts its tour right away; the server can still take over.
	auto := entry.NewAutoStarter(engine, entry.AutoStarterOptions{
		DefaultScenario: a.cfg.Playback.DefaultScenario,
		Grace:           a.cfg.Playback.AutostartGrace,
		Logger:          a.logger,
	})
	auto.Mount(ctx, pageURL)

	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := control.NewServer(engine, a.registry, control.Options{
		DefaultScenario: a.cfg.Playback.DefaultScenario,
		Logger:          a.logger,
	})

	ln, err := net.Listen("tcp", a.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.Server.Addr, err)
	}

	httpServer := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	fmt.Fprintf(out, "✓ Tour controls on http://%s\n", ln.Addr())

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("control server: %w", err)
		}
	}

	fmt.Fprintln(out, "→ Shutting down...")
	engine.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown control server: %w", err)
	}
	return nil
}
