package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/config"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/history"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/models"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/suite"
	"github.com/spf13/cobra"
)

type runOptions struct {
	filter    string
	target    string
	transport string
	adapter   int
	noHistory bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the case matrix against the DUT",
		Long: `Run executes the selected cases one after another. Each case gets a fresh
connection to the DUT. The exit status is 1 when any case fails.

Examples:
  powertest run --target 192.168.1.20:8999
  powertest run --run '^no_wake' --transport dbus --adapter 0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := config.NewJSONStore(root.configDir)
			stored, err := store.Load()
			if err != nil {
				return err
			}
			settings, err := opts.apply(cmd, *stored)
			if err != nil {
				return err
			}

			fixture, err := suite.FixtureFor(settings)
			if err != nil {
				return err
			}

			var runnerOpts []suite.Option
			if !opts.noHistory {
				hist, err := history.Open(root.historyPath(settings))
				if err != nil {
					return err
				}
				defer hist.Close()
				runnerOpts = append(runnerOpts, suite.WithStore(hist))
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			run, err := suite.NewRunner(fixture, runnerOpts...).Run(ctx, opts.filter)
			if err != nil {
				return err
			}
			report(cmd.OutOrStdout(), run)
			if !run.Passed() {
				return errCasesFailed
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.filter, "run", "", "run only cases matching this regexp")
	f.StringVar(&opts.target, "target", "", "gRPC facade address host:port (overrides settings)")
	f.StringVar(&opts.transport, "transport", "", "transport: grpc, dbus or fake (overrides settings)")
	f.IntVar(&opts.adapter, "adapter", 0, "HCI adapter index for the dbus transport (overrides settings)")
	f.BoolVar(&opts.noHistory, "no-history", false, "do not record the run in the history database")
	return cmd
}

// apply overrides stored settings with the flags given on the command line.
func (o *runOptions) apply(cmd *cobra.Command, s config.Settings) (config.Settings, error) {
	var upd config.SettingsUpdate
	if cmd.Flags().Changed("target") {
		upd.Target = &o.target
	}
	if cmd.Flags().Changed("transport") {
		upd.Transport = &o.transport
	}
	if cmd.Flags().Changed("adapter") {
		upd.Adapter = &o.adapter
	}
	if appErr := upd.Apply(&s); appErr != nil {
		return s, fmt.Errorf("--%s: %s", appErr.Field, appErr.Message)
	}
	slog.Debug("run: settings", "transport", s.Transport, "target", s.Target, "adapter", s.Adapter)
	return s, nil
}

func report(w io.Writer, run models.Run) {
	for _, c := range run.Cases {
		d := c.Finished.Sub(c.Started).Round(time.Millisecond)
		if c.Passed {
			fmt.Fprintf(w, "PASS  %-50s %s\n", c.Name, d)
			continue
		}
		fmt.Fprintf(w, "FAIL  %-50s %s\n      %s\n", c.Name, d, c.Error)
		for _, line := range c.Console {
			fmt.Fprintf(w, "      | %s\n", line)
		}
	}
	fmt.Fprintf(w, "%d cases, %d failed (run %s)\n", len(run.Cases), run.Failed(), run.ID)
}
