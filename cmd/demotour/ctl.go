package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/v0xg/demotour/internal/control"
	"github.com/v0xg/demotour/internal/playback"
)

func newCtlCmd() *cobra.Command {
	var (
		server  string
		mode    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ctl <state|scenarios|start|stop|next|prev|pause|resume|jump> [arg]",
		Short: "Drive a running demotour serve instance",
		Example: `  demotour ctl start rfp_overview --mode guided
  demotour ctl next
  demotour ctl jump 3`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if server == "" {
				a, err := loadApp(cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				server = "http://" + a.cfg.Server.Addr
			}
			client := control.NewClient(server, timeout)
			out := cmd.OutOrStdout()
			ctx := cmd.Context()

			var arg string
			if len(args) > 1 {
				arg = args[1]
			}

			var (
				snap playback.Snapshot
				err  error
			)
			switch args[0] {
			case "state":
				snap, err = client.State(ctx)
			case "scenarios":
				list, err := client.Scenarios(ctx)
				if err != nil {
					return exitError(exitFailure, "%v", err)
				}
				return printJSON(out, list)
			case "start":
				snap, err = client.Start(ctx, arg, mode)
			case "jump":
				i, convErr := strconv.Atoi(arg)
				if convErr != nil {
					return exitError(exitConfig, "jump needs a step index, got %q", arg)
				}
				snap, err = client.Jump(ctx, i)
			default:
				snap, err = client.Command(ctx, args[0])
			}
			if err != nil {
				return exitError(exitFailure, "%v", err)
			}
			return printJSON(out, snap)
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "Control server URL (default http://<server.addr>)")
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Playback mode for start")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Request timeout")

	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
