// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package lint

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/matt-FFFFFF/kbuild/internal/lint"
	"github.com/prashantv/gostub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

type fakeEngine struct {
	mu    sync.Mutex
	files []string
	opts  lint.Options
}

func (e *fakeEngine) Lint(_ context.Context, file string, opts lint.Options) (lint.Code, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.files = append(e.files, filepath.Base(file))
	e.opts = opts

	switch filepath.Base(file) {
	case "fixed.js":
		return lint.CodeFixed, nil
	case "broken.js":
		return lint.CodeError, lint.ErrLintTask
	default:
		return lint.CodeNoChange, nil
	}
}

func setup(t *testing.T, files ...string) (*fakeEngine, string) {
	t.Helper()

	dir := t.TempDir()
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), nil, 0o600))
	}

	e := &fakeEngine{}
	stubs := gostub.Stub(&engineFactory, func(string) lint.Engine { return e })
	t.Cleanup(stubs.Reset)

	return e, dir
}

func run(t *testing.T, args ...string) int {
	t.Helper()

	root := &cli.Command{
		Name:           "kbuild",
		Commands:       []*cli.Command{newLintCmd()},
		Writer:         io.Discard,
		ErrWriter:      io.Discard,
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}

	err := root.Run(t.Context(), append([]string{"kbuild", "lint"}, args...))
	if err == nil {
		return 0
	}

	var ec cli.ExitCoder
	require.ErrorAs(t, err, &ec)

	return ec.ExitCode()
}

func TestLint_NoArguments(t *testing.T) {
	e, _ := setup(t)

	assert.Equal(t, 1, run(t))
	assert.Empty(t, e.files)
}

func TestLint_NoMatchesIsUnchanged(t *testing.T) {
	e, dir := setup(t)

	assert.Equal(t, 0, run(t, filepath.Join(dir, "*.js")))
	assert.Empty(t, e.files)
}

func TestLint_LinterCodeIsPassedThrough(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.js"), nil, 0o600))

	stubs := gostub.Stub(&engineFactory, func(string) lint.Engine {
		return lintFunc(func(context.Context, string, lint.Options) (lint.Code, error) {
			return lint.Code(3), lint.ErrLintTask
		})
	})
	defer stubs.Reset()

	assert.Equal(t, 3, run(t, filepath.Join(dir, "a.js")))
}

type lintFunc func(context.Context, string, lint.Options) (lint.Code, error)

func (f lintFunc) Lint(ctx context.Context, file string, opts lint.Options) (lint.Code, error) {
	return f(ctx, file, opts)
}

func TestLint_ExitCodeIsHighest(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		want  int
	}{
		{name: "clean", files: []string{"a.js", "b.js"}, want: 0},
		{name: "fixed", files: []string{"a.js", "fixed.js"}, want: 1},
		{name: "error", files: []string{"a.js", "fixed.js", "broken.js", "b.js"}, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, dir := setup(t, tt.files...)

			assert.Equal(t, tt.want, run(t, filepath.Join(dir, "*.js")))
			assert.ElementsMatch(t, tt.files, e.files)
		})
	}
}

func TestLint_OptionsAndIgnore(t *testing.T) {
	e, dir := setup(t, "a.js", "skip.js")

	code := run(t, "--write", "--encoding", "latin1", "--ignore", filepath.Join(dir, "skip.js"), filepath.Join(dir, "*.js"))
	assert.Equal(t, 0, code)
	assert.Equal(t, []string{"a.js"}, e.files)
	assert.Equal(t, lint.Options{Write: true, Encoding: "latin1"}, e.opts)
}
