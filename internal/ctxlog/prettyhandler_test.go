// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPrettyHandler(t *testing.T) {
	tests := []struct {
		name    string
		options *slog.HandlerOptions
		opts    []Option
	}{
		{name: "with nil options"},
		{
			name:    "with custom options",
			options: &slog.HandlerOptions{Level: slog.LevelDebug, AddSource: true},
		},
		{
			name:    "with functional options",
			options: &slog.HandlerOptions{},
			opts:    []Option{WithColour(), WithOutputEmptyAttrs()},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewPrettyHandler(tt.options, tt.opts...)
			require.NotNil(t, handler)
			assert.NotNil(t, handler.h)
			assert.NotNil(t, handler.b)
			assert.NotNil(t, handler.m)
			assert.NotNil(t, handler.writer)
		})
	}
}

func TestPrettyHandler_Enabled(t *testing.T) {
	tests := []struct {
		name    string
		level   slog.Level
		options *slog.HandlerOptions
		want    bool
	}{
		{"debug level with debug handler", slog.LevelDebug, &slog.HandlerOptions{Level: slog.LevelDebug}, true},
		{"debug level with info handler", slog.LevelDebug, &slog.HandlerOptions{Level: slog.LevelInfo}, false},
		{"error level with warn handler", slog.LevelError, &slog.HandlerOptions{Level: slog.LevelWarn}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewPrettyHandler(tt.options).Enabled(context.Background(), tt.level))
		})
	}
}

func TestPrettyHandler_WithAttrsSharesBuffer(t *testing.T) {
	handler := NewPrettyHandler(&slog.HandlerOptions{})

	withAttrs, ok := handler.WithAttrs([]slog.Attr{slog.String("key1", "value1")}).(*PrettyHandler)
	require.True(t, ok)
	assert.Same(t, handler.b, withAttrs.b)
	assert.Same(t, handler.m, withAttrs.m)

	withGroup, ok := handler.WithGroup("group").(*PrettyHandler)
	require.True(t, ok)
	assert.Same(t, handler.b, withGroup.b)
}

func TestPrettyHandler_Handle(t *testing.T) {
	tests := []struct {
		name           string
		level          slog.Level
		message        string
		attrs          []any
		expectInOutput []string
		notInOutput    []string
	}{
		{
			name:           "basic info message",
			level:          slog.LevelInfo,
			message:        "all builds complete",
			expectInOutput: []string{"INFO:", "all builds complete"},
		},
		{
			name:           "debug message with attributes",
			level:          slog.LevelDebug,
			message:        "worker spawned",
			attrs:          []any{"pid", 42, "mode", "development"},
			expectInOutput: []string{"DEBUG:", "worker spawned", "pid", "42", "development"},
		},
		{
			name:           "bundle attributes become a prefix",
			level:          slog.LevelInfo,
			message:        "compile done",
			attrs:          []any{BundleKey, "coach", BundleIndexKey, 1},
			expectInOutput: []string{"[coach]", "compile done"},
			notInOutput:    []string{BundleIndexKey},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			handler := NewPrettyHandler(&slog.HandlerOptions{Level: slog.LevelDebug}, WithDestinationWriter(&buf))
			logger := slog.New(handler)

			logger.Log(context.Background(), tt.level, tt.message, tt.attrs...)

			out := buf.String()
			for _, want := range tt.expectInOutput {
				assert.Contains(t, out, want)
			}

			for _, notWant := range tt.notInOutput {
				assert.NotContains(t, out, notWant)
			}
		})
	}
}

func TestPrettyHandler_ConcurrentHandle(t *testing.T) {
	var buf safeBuffer

	logger := slog.New(NewPrettyHandler(&slog.HandlerOptions{}, WithDestinationWriter(&buf)))

	var wg sync.WaitGroup

	for i := range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()
			logger.Info("message", "worker", i, "at", time.Now())
		}()
	}

	wg.Wait()

	assert.Equal(t, 10, bytes.Count(buf.Bytes(), []byte("message")))
}

type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *safeBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Bytes()
}
