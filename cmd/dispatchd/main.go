// Dispatchd processes multi-registry service requests.
//
// A request names one service per registry; registries run in a fixed order
// and later services read the results of earlier ones.
//
// Usage:
//
//	# Process a request file
//	dispatchd run request.yaml
//
//	# Process JSON from stdin with catch-all enabled
//	echo '{"main": {"service": "echo", "args": {"message": "hi"}}}' | dispatchd run --catch-all -
//
//	# List the registered services
//	dispatchd services
//
// Configuration is read from ~/.config/dispatchd/config.yaml and
// DISPATCHD_* environment variables. See internal/config for details.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/dispatchd/internal/config"
	"github.com/fyrsmithlabs/dispatchd/internal/logging"
	"github.com/fyrsmithlabs/dispatchd/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// Exit codes.
const (
	exitOK            = 0
	exitFatal         = 1
	exitErrorResponse = 2
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// exitError carries a process exit code out of a cobra command. err may be
// nil when the command already reported the failure on stdout.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// execute runs the CLI and returns the process exit code.
func execute(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(stderr, "Error:", ee.err)
		}
		return ee.code
	}
	fmt.Fprintln(stderr, "Error:", err)
	return exitFatal
}

// rootOptions holds the persistent flags.
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "dispatchd",
		Short: "Multi-registry request processor",
		Long: `dispatchd runs a request through an ordered list of service registries.

Each registry runs exactly one service. Results are collected in a shared
context so later registries can read what earlier ones produced, and the
last registry's result becomes the response.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.config/dispatchd/config.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format: json or console")

	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newServicesCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// app bundles the process-wide dependencies of a command.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
}

// setup loads configuration and builds the logger and telemetry.
func (o *rootOptions) setup(ctx context.Context) (*app, error) {
	cfg, err := config.LoadWithFile(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Logging.Format = o.logFormat
	}

	logCfg, err := logging.FromAppConfig(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}
	logCfg.Output.OTEL = cfg.Telemetry.Enabled
	logger, err := logging.NewLogger(logCfg, global.GetLoggerProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg.Telemetry, version), logger.Underlying())
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logger.Debug(ctx, "dispatchd starting",
		zap.String("version", version),
		zap.Bool("telemetry", tel.IsEnabled()),
		zap.Bool("catch_all", cfg.Dispatch.CatchAll))

	return &app{cfg: cfg, logger: logger, telemetry: tel}, nil
}

// Close flushes telemetry and logs. Best-effort.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Telemetry.Shutdown.Duration()+time.Second)
	defer cancel()
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn(ctx, "telemetry shutdown failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}
