package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/config"
	"github.com/spf13/cobra"
)

// errCasesFailed is returned by run when at least one case failed. The
// per-case report has already been printed.
var errCasesFailed = errors.New("one or more cases failed")

type rootOptions struct {
	configDir string
	debug     bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "powertest",
		Short: "Bluetooth suspend/resume integration harness",
		Long: `powertest drives the adapter and GATT control interfaces of a Bluetooth
stack through the suspend and resume call sequences used by the power
manager, and reports which sequences the device under test accepted.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(opts.debug)
			return opts.ensureConfigDir()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configDir, "config-dir", "", "config directory (default: ~/.config/powertest)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(
		newListCmd(),
		newRunCmd(opts),
		newServeCmd(opts),
		newFakeDUTCmd(),
	)
	return cmd
}

func setupLogging(debug bool) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

func (o *rootOptions) ensureConfigDir() error {
	if o.configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		o.configDir = filepath.Join(home, ".config", "powertest")
	}
	if err := os.MkdirAll(o.configDir, 0755); err != nil {
		return fmt.Errorf("cannot create config directory %s: %w", o.configDir, err)
	}
	return nil
}

// historyPath resolves the history database location.
func (o *rootOptions) historyPath(s config.Settings) string {
	if filepath.IsAbs(s.HistoryFile) {
		return s.HistoryFile
	}
	return filepath.Join(o.configDir, s.HistoryFile)
}
