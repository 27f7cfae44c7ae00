package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/dispatchd/internal/codec"
	"github.com/fyrsmithlabs/dispatchd/internal/dispatch"
	"github.com/fyrsmithlabs/dispatchd/internal/promstats"
	"github.com/fyrsmithlabs/dispatchd/internal/services"
)

const instrumentationName = "github.com/fyrsmithlabs/dispatchd/cmd/dispatchd"

type runOptions struct {
	catchAll    bool
	pretty      bool
	metricsFile string
	format      string
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [file|-]",
		Short: "Process one request and print the response",
		Long: `Process one request through the auth and main registries and print the
JSON response on stdout.

The request format is taken from --format, or from the file extension
(.json, .yaml, .yml, .toml). Stdin defaults to JSON.

Exit status is 0 for a result, 2 for an error response and 1 when the
request could not be processed.

Examples:
  # Process a YAML request
  dispatchd run request.yaml

  # Process JSON from stdin
  cat request.json | dispatchd run -

  # Turn service failures into GenericInternalError responses
  dispatchd run --catch-all request.toml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			return runRequest(cmd, root, opts, path)
		},
	}

	cmd.Flags().BoolVar(&opts.catchAll, "catch-all", false, "return GenericInternalError instead of failing (default from dispatch.catch_all)")
	cmd.Flags().BoolVar(&opts.pretty, "pretty", false, "indent the JSON response")
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile (default from metrics.textfile_path)")
	cmd.Flags().StringVar(&opts.format, "format", "", "request format: json, yaml or toml")
	return cmd
}

func runRequest(cmd *cobra.Command, root *rootOptions, opts *runOptions, path string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := root.setup(ctx)
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}
	defer a.Close()

	catchAll := a.cfg.Dispatch.CatchAll
	if cmd.Flags().Changed("catch-all") {
		catchAll = opts.catchAll
	}
	metricsFile := a.cfg.Metrics.TextfilePath
	if opts.metricsFile != "" {
		metricsFile = opts.metricsFile
	}

	req, err := readRequest(cmd.InOrStdin(), path, opts.format, a.cfg.Dispatch.MaxRequestBytes)
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}

	catalog, err := services.NewCatalog(services.Options{
		Tokens: a.cfg.Auth.Tokens,
		Logger: a.logger,
	})
	if err != nil {
		return &exitError{code: exitFatal, err: fmt.Errorf("failed to build service catalog: %w", err)}
	}

	stats := promstats.New()
	processor, err := dispatch.NewProcessor(catalog.Stages(),
		dispatch.WithCatchAll(catchAll),
		dispatch.WithLogger(a.logger),
		dispatch.WithTracer(a.telemetry.Tracer(instrumentationName)),
		dispatch.WithRecorder(dispatch.MultiRecorder(
			dispatch.NewMetricsWithMeter(a.telemetry.Meter(instrumentationName), a.logger.Underlying()),
			stats,
		)),
	)
	if err != nil {
		return &exitError{code: exitFatal, err: fmt.Errorf("failed to build processor: %w", err)}
	}

	resp, procErr := processor.Process(ctx, req)

	if metricsFile != "" {
		if err := stats.WriteTextfile(metricsFile); err != nil {
			a.logger.Warn(ctx, "failed to write metrics", zap.String("path", metricsFile), zap.Error(err))
		}
	}

	if procErr != nil {
		a.logger.Error(ctx, "request failed", zap.Error(procErr))
		return &exitError{code: exitFatal, err: procErr}
	}

	if err := codec.EncodeResponse(cmd.OutOrStdout(), resp, opts.pretty); err != nil {
		return &exitError{code: exitFatal, err: fmt.Errorf("failed to write response: %w", err)}
	}
	if resp.Failed() {
		return &exitError{code: exitErrorResponse}
	}
	return nil
}

// readRequest decodes the request at path, or stdin when path is "-".
func readRequest(stdin io.Reader, path, formatFlag string, maxBytes int64) (dispatch.Request, error) {
	format := codec.FormatJSON
	if path != "-" {
		f, err := codec.FormatFromPath(path)
		if err != nil && formatFlag == "" {
			return nil, err
		}
		format = f
	}
	if formatFlag != "" {
		f, err := codec.ParseFormat(formatFlag)
		if err != nil {
			return nil, err
		}
		format = f
	}

	r := stdin
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open request: %w", err)
		}
		defer file.Close()
		r = file
	}

	req, err := codec.DecodeRequestLimit(r, format, maxBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to read request %s: %w", path, err)
	}
	return req, nil
}
