// Package observability configures process-wide structured logging.
//
// Records go to stderr (text or JSON), to a size-rotated file, or through
// the OpenTelemetry log SDK to an exporter. The result is installed as the
// slog default logger so packages log with slog.InfoContext and friends.
package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// instrumentationName identifies records emitted through the OpenTelemetry bridge.
const instrumentationName = "github.com/florianilch/chargectl"

// Exporter selects where log records are shipped.
type Exporter string

const (
	ExporterNone     Exporter = "none"
	ExporterStdout   Exporter = "stdout"
	ExporterOTLPHTTP Exporter = "otlp-http"
	ExporterOTLPGRPC Exporter = "otlp-grpc"
)

// Options describes the logging setup.
type Options struct {
	Level slog.Level
	// Format applies to local output only; exporters use their own encoding.
	Format string // text|json

	// File, if set, receives records instead of stderr and is rotated by size.
	// It cannot be combined with an exporter.
	File     string
	Exporter Exporter

	// Stderr overrides the default destination. Used by tests.
	Stderr io.Writer
}

// ShutdownFunc flushes and releases logging resources.
type ShutdownFunc func(context.Context) error

// Instrument builds the logger described by opts, installs it as the slog
// default and returns a function that flushes pending records.
func Instrument(ctx context.Context, opts Options) (ShutdownFunc, error) {
	logger, shutdown, err := NewLogger(ctx, opts)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return shutdown, nil
}

// NewLogger builds the logger described by opts without installing it.
func NewLogger(ctx context.Context, opts Options) (*slog.Logger, ShutdownFunc, error) {
	switch opts.Exporter {
	case "", ExporterNone:
		return newLocalLogger(opts)
	default:
		if opts.File != "" {
			return nil, nil, fmt.Errorf("log file %s cannot be used with the %s exporter", opts.File, opts.Exporter)
		}
		return newOTelLogger(ctx, opts)
	}
}

func newLocalLogger(opts Options) (*slog.Logger, ShutdownFunc, error) {
	var (
		out      io.Writer    = os.Stderr
		shutdown ShutdownFunc = func(context.Context) error { return nil }
	)
	if opts.Stderr != nil {
		out = opts.Stderr
	}
	if opts.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		out = rotating
		shutdown = func(context.Context) error { return rotating.Close() }
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.Level}
	var handler slog.Handler
	switch opts.Format {
	case "", "text":
		handler = slog.NewTextHandler(out, handlerOpts)
	case "json":
		handler = slog.NewJSONHandler(out, handlerOpts)
	default:
		return nil, nil, fmt.Errorf("unsupported log format: %s", opts.Format)
	}

	return slog.New(handler), shutdown, nil
}

func newOTelLogger(ctx context.Context, opts Options) (*slog.Logger, ShutdownFunc, error) {
	exporter, err := newExporter(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("creating %s log exporter: %w", opts.Exporter, err)
	}

	// Exporter failures must not turn into command failures; report them locally.
	fallback := slog.New(slog.NewTextHandler(stderr(opts), &slog.HandlerOptions{Level: slog.LevelWarn}))
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		fallback.Warn("log export failed", "error", err)
	}))

	processor := minsev.NewLogProcessor(sdklog.NewBatchProcessor(exporter), severity(opts.Level))
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(processor))
	global.SetLoggerProvider(provider)

	logger := slog.New(otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(provider)))

	return logger, provider.Shutdown, nil
}

func newExporter(ctx context.Context, opts Options) (sdklog.Exporter, error) {
	switch opts.Exporter {
	case ExporterStdout:
		return stdoutlog.New(stdoutlog.WithWriter(stderr(opts)))
	case ExporterOTLPHTTP:
		// Endpoint and headers come from OTEL_EXPORTER_OTLP_* variables.
		return otlploghttp.New(ctx)
	case ExporterOTLPGRPC:
		return otlploggrpc.New(ctx)
	default:
		return nil, fmt.Errorf("unsupported exporter: %s", opts.Exporter)
	}
}

func stderr(opts Options) io.Writer {
	if opts.Stderr != nil {
		return opts.Stderr
	}
	return os.Stderr
}

// severity maps a slog level onto the OpenTelemetry severity filter.
func severity(level slog.Level) minsev.Severity {
	switch {
	case level <= slog.LevelDebug:
		return minsev.SeverityDebug
	case level <= slog.LevelInfo:
		return minsev.SeverityInfo
	case level <= slog.LevelWarn:
		return minsev.SeverityWarn
	default:
		return minsev.SeverityError
	}
}
