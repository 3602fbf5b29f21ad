// Package log implements the structured logging pipeline: events raised
// while serving requests are enriched with the active span context, rate
// limited per call site, formatted as text or JSON, and written to local
// sinks.
package log

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/spanlog/spanlog/option"

	E "github.com/sagernet/sing/common/exceptions"
)

// Options assembles a factory. Interactivity overrides the terminal probe
// used for format resolution; tests inject deterministic probes here.
type Options struct {
	Context       context.Context
	Options       option.LogOptions
	Observable    bool
	DefaultWriter io.Writer
	Interactivity Interactivity
	ErrorHandler  func(error)
}

// New builds a log factory from configuration. Invalid enum or duration
// values are rejected here, at startup, never at log time. A sink that is
// not enabled yields a NOP factory.
func New(options Options) (ObservableFactory, error) {
	logOptions := options.Options

	if !logOptions.Enabled {
		return NewNOPFactory(), nil
	}

	ctx := options.Context
	if ctx == nil {
		ctx = context.Background()
	}

	var sinks []*sink
	if len(logOptions.Outputs) > 0 {
		for i, outputOptions := range logOptions.Outputs {
			s, err := createSink(outputOptions, logOptions, options)
			if err != nil {
				return nil, E.Cause(err, "create output ", i)
			}
			sinks = append(sinks, s)
		}
	} else {
		s, err := createDefaultSink(logOptions, options)
		if err != nil {
			return nil, E.Cause(err, "create output")
		}
		sinks = append(sinks, s)
	}

	factory := newPipelineFactory(ctx, sinks, resolveResource(logOptions.Resource), options.ErrorHandler, options.Observable)

	if logOptions.Level != "" {
		level, err := ParseLevel(logOptions.Level)
		if err != nil {
			return nil, E.Cause(err, "parse log level")
		}
		factory.SetLevel(level)
	} else {
		factory.SetLevel(LevelTrace)
	}

	return factory, nil
}

// createDefaultSink builds the single sink configured by the top-level
// output field: empty for the default writer, stdout/stderr, or a file path.
func createDefaultSink(logOptions option.LogOptions, options Options) (*sink, error) {
	var (
		writer   io.Writer
		filePath string
	)
	switch logOptions.Output {
	case "":
		writer = options.DefaultWriter
		if writer == nil {
			writer = os.Stdout
		}
	case "stdout":
		writer = os.Stdout
	case "stderr":
		writer = os.Stderr
	default:
		filePath = logOptions.Output
	}
	return buildSink(writer, filePath, logOptions.Format, logOptions.TTYFormat, logOptions.Text, logOptions.JSON, logOptions.RateLimit, options)
}

// createSink builds one sink in multi-output mode, inheriting unset fields
// from the top-level options.
func createSink(outputOptions option.LogOutput, logOptions option.LogOptions, options Options) (*sink, error) {
	var (
		writer   io.Writer
		filePath string
	)
	switch outputOptions.Type {
	case "stdout":
		writer = os.Stdout
	case "stderr":
		writer = os.Stderr
	case "file":
		if outputOptions.Path == "" {
			return nil, E.New("file output requires path")
		}
		filePath = outputOptions.Path
	default:
		return nil, E.New("unknown output type: ", outputOptions.Type)
	}

	format := outputOptions.Format
	if format == "" {
		format = logOptions.Format
	}
	ttyFormat := outputOptions.TTYFormat
	if ttyFormat == "" {
		ttyFormat = logOptions.TTYFormat
	}
	textOptions := logOptions.Text
	if outputOptions.Text != nil {
		textOptions = *outputOptions.Text
	}
	jsonOptions := logOptions.JSON
	if outputOptions.JSON != nil {
		jsonOptions = *outputOptions.JSON
	}
	rateLimit := logOptions.RateLimit
	if outputOptions.RateLimit != nil {
		rateLimit = outputOptions.RateLimit
	}
	return buildSink(writer, filePath, format, ttyFormat, textOptions, jsonOptions, rateLimit, options)
}

func buildSink(writer io.Writer, filePath string, format string, ttyFormat string, textOptions option.TextFormatOptions, jsonOptions option.JSONFormatOptions, rateLimit *option.RateLimitOptions, options Options) (*sink, error) {
	probe := options.Interactivity
	if probe == nil {
		probe = WriterInteractivity(writer)
	}
	if filePath != "" {
		// Files are never interactive regardless of the probe.
		probe = nonInteractive{}
	}
	config, err := ResolveFormat(format, ttyFormat, textOptions, jsonOptions, probe)
	if err != nil {
		return nil, err
	}

	var output Output
	switch config.Format {
	case FormatJSON:
		output = NewJSONOutput(config, writer, filePath)
	default:
		if filePath != "" {
			// ANSI sequences have no place in log files.
			config.ANSI = false
		}
		output = NewTextOutput(config, writer, filePath)
	}

	limiter, err := newRateLimiterFromOptions(rateLimit)
	if err != nil {
		return nil, err
	}
	return &sink{output: output, limiter: limiter}, nil
}

func newRateLimiterFromOptions(rateLimit *option.RateLimitOptions) (*RateLimiter, error) {
	if rateLimit == nil {
		return nil, nil
	}
	interval := time.Duration(rateLimit.Interval)
	if interval <= 0 {
		return nil, E.New("rate_limit interval must be positive")
	}
	return NewRateLimiter(rateLimit.Capacity, interval), nil
}

type nonInteractive struct{}

func (nonInteractive) IsTerminal() bool {
	return false
}
