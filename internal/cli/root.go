// Package cli implements the ttm command tree.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Heavybullets8/TT-Migration/pkg/color"
	"github.com/Heavybullets8/TT-Migration/pkg/config"
	"github.com/Heavybullets8/TT-Migration/pkg/logging"
	"github.com/Heavybullets8/TT-Migration/pkg/metrics"
	"github.com/Heavybullets8/TT-Migration/pkg/ttm"
)

// errTamperDetected makes the process exit 1 after the result was printed.
var errTamperDetected = errors.New("tamper detected")

// app holds global flags and the client built from them.
type app struct {
	jsonOutput  bool
	configPath  string
	noColor     bool
	logLevel    string
	metricsFile string
	clock       func() time.Time

	cfg     *config.Config
	metrics *metrics.Registry
	client  *ttm.Client
}

var rootCmd, rootApp = newRootCmd()

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "ttm",
		Short: "ttm - integrity markers and tamper-evident variable log",
		Long: `ttm writes cryptographically bound marker files for backup and migration
operations and keeps an append-only, hash-linked log of watched files that
flags any change between observations.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVar(&a.jsonOutput, "json", false, "output in JSON format")
	flags.StringVar(&a.configPath, "config", config.DefaultPath, "path to the config file")
	flags.BoolVar(&a.noColor, "no-color", false, "disable colored output")
	flags.StringVar(&a.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	flags.StringVar(&a.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile after the command")

	cmd.AddCommand(
		newMarkerCmd(a),
		newLogCmd(a),
		newConfigCmd(a),
		newDoctorCmd(a),
		newCompletionCmd(),
	)
	return cmd, a
}

// setup loads configuration and builds the client for commands that need it.
func (a *app) setup(cmd *cobra.Command) error {
	disableColor(a.noColor)

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	a.cfg = cfg

	logger := cfg.NewLogger()
	logger.SetOutput(cmd.ErrOrStderr())
	logging.SetGlobal(logger)

	a.metrics = metrics.NewRegistry()
	a.client, err = ttm.New(ttm.Options{Config: cfg, Logger: logger, Metrics: a.metrics, Clock: a.clock})
	return err
}

func disableColor(noColor bool) {
	color.Init(noColor)
	if noColor {
		color.Disable()
	}
}

// shutdown flushes webhooks and writes the metrics textfile.
func (a *app) shutdown() error {
	if a.client == nil {
		return nil
	}
	if err := a.client.Close(); err != nil {
		return err
	}
	a.client = nil
	if a.metricsFile != "" {
		if err := a.metrics.WriteTextfile(a.metricsFile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

// run executes cmd with args and always shuts the app down.
func run(cmd *cobra.Command, a *app, args []string) error {
	if noColorRequested(args) {
		disableColor(true)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	if serr := a.shutdown(); serr != nil && err == nil {
		err = serr
	}
	return err
}

// Execute runs the root command and exits non-zero on failure or tamper.
func Execute() {
	if err := run(rootCmd, rootApp, os.Args[1:]); err != nil {
		if !errors.Is(err, errTamperDetected) {
			fmtErr(os.Stderr, "%v", err)
		}
		os.Exit(1)
	}
}

// outputJSON prints v as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
