package observability

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/processors/minsev"
)

func TestNewLogger_Formats(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{format: "text", want: `msg="token refreshed" name=api.token`},
		{format: "", want: `msg="token refreshed" name=api.token`},
		{format: "json", want: `"msg":"token refreshed","name":"api.token"`},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			logger, shutdown, err := NewLogger(context.Background(), Options{Format: tt.format, Stderr: &buf})
			require.NoError(t, err)
			defer func() { _ = shutdown(context.Background()) }()

			logger.Info("token refreshed", "name", "api.token")
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := NewLogger(context.Background(), Options{Level: slog.LevelWarn, Stderr: &buf})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewLogger_UnsupportedFormat(t *testing.T) {
	_, _, err := NewLogger(context.Background(), Options{Format: "xml"})
	assert.ErrorContains(t, err, "unsupported log format")
}

func TestNewLogger_UnsupportedExporter(t *testing.T) {
	_, _, err := NewLogger(context.Background(), Options{Exporter: "carrier-pigeon"})
	assert.ErrorContains(t, err, "unsupported exporter")
}

func TestNewLogger_FileWithExporter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chargectl.log")
	_, _, err := NewLogger(context.Background(), Options{File: path, Exporter: ExporterStdout})
	assert.ErrorContains(t, err, "cannot be used with the stdout exporter")

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "log file created")
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chargectl.log")
	logger, shutdown, err := NewLogger(context.Background(), Options{Format: "json", File: path})
	require.NoError(t, err)

	logger.Info("written to file")
	require.NoError(t, shutdown(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestNewLogger_StdoutExporter(t *testing.T) {
	var buf bytes.Buffer
	logger, shutdown, err := NewLogger(context.Background(), Options{Exporter: ExporterStdout, Stderr: &buf})
	require.NoError(t, err)

	logger.Info("exported record")
	require.NoError(t, shutdown(context.Background()))

	assert.Contains(t, buf.String(), "exported record")
}

func TestSeverity(t *testing.T) {
	assert.Equal(t, minsev.SeverityDebug, severity(slog.LevelDebug))
	assert.Equal(t, minsev.SeverityInfo, severity(slog.LevelInfo))
	assert.Equal(t, minsev.SeverityWarn, severity(slog.LevelWarn))
	assert.Equal(t, minsev.SeverityError, severity(slog.LevelError))
}
