// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	custom := slog.New(slog.NewTextHandler(os.Stdout, nil))

	ctx := New(context.Background(), custom)
	assert.Same(t, custom, Logger(ctx))

	ctx = New(context.Background(), nil)
	assert.Same(t, DefaultLogger, Logger(ctx), "nil logger should fall back to DefaultLogger")
}

func TestLogger(t *testing.T) {
	tests := []struct {
		name          string
		setupContext  func() context.Context
		expectDefault bool
	}{
		{
			name: "context with logger",
			setupContext: func() context.Context {
				return New(context.Background(), slog.New(slog.NewTextHandler(os.Stdout, nil)))
			},
		},
		{
			name:          "context without logger",
			setupContext:  context.Background,
			expectDefault: true,
		},
		{
			name: "context with wrong type value",
			setupContext: func() context.Context {
				return context.WithValue(context.Background(), loggerKey{}, "not a logger")
			},
			expectDefault: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := Logger(tt.setupContext())
			require.NotNil(t, logger)

			if tt.expectDefault {
				assert.Same(t, DefaultLogger, logger)
			} else {
				assert.NotSame(t, DefaultLogger, logger)
			}
		})
	}
}

func TestLoggingFunctions(t *testing.T) {
	var buf bytes.Buffer

	ctx := New(context.Background(), slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))

	tests := []struct {
		name     string
		logFunc  func(context.Context, string, ...any)
		message  string
		expected string
	}{
		{name: "info", logFunc: Info, message: "info message", expected: "INFO"},
		{name: "debug", logFunc: Debug, message: "debug message", expected: "DEBUG"},
		{name: "warn", logFunc: Warn, message: "warn message", expected: "WARN"},
		{name: "error", logFunc: Error, message: "error message", expected: "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.logFunc(ctx, tt.message, "key", "value")

			out := buf.String()
			assert.Contains(t, out, tt.expected)
			assert.Contains(t, out, tt.message)
			assert.Contains(t, out, "key=value")
		})
	}
}

func TestWithBundle(t *testing.T) {
	var buf bytes.Buffer

	ctx := New(context.Background(), slog.New(slog.NewTextHandler(&buf, nil)))
	ctx = WithBundle(ctx, "learn", 2)

	Info(ctx, "compiled")

	assert.Contains(t, buf.String(), "bundle=learn")
	assert.Contains(t, buf.String(), "bundleIndex=2")
}

func TestLogLevelFromEnv(t *testing.T) {
	envName := LogLevelEnvVar()
	assert.True(t, strings.HasSuffix(envName, "_LOG_LEVEL"))

	tests := []struct {
		envValue      string
		expectedLevel slog.Level
	}{
		{envValue: "DEBUG", expectedLevel: slog.LevelDebug},
		{envValue: "info", expectedLevel: slog.LevelInfo},
		{envValue: "WARN", expectedLevel: slog.LevelWarn},
		{envValue: "ERROR", expectedLevel: slog.LevelError},
		{envValue: "INVALID", expectedLevel: slog.LevelInfo},
		{envValue: "", expectedLevel: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run("level "+tt.envValue, func(t *testing.T) {
			t.Setenv(envName, tt.envValue)
			assert.Equal(t, tt.expectedLevel, logLevelFromEnv())
		})
	}
}

func TestNewForTUI(t *testing.T) {
	var buf bytes.Buffer

	originalLevel := LevelVar.Level()
	defer LevelVar.Set(originalLevel)

	LevelVar.Set(slog.LevelInfo)

	ctx := NewForTUI(context.Background(), &buf)
	Info(ctx, "buffered while the tui runs")

	assert.Contains(t, buf.String(), "buffered while the tui runs")
}
