// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package lint

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeEngine struct {
	codes map[string]Code
	errs  map[string]error

	mu    sync.Mutex
	calls []string
}

func (e *fakeEngine) Lint(_ context.Context, file string, _ Options) (Code, error) {
	e.mu.Lock()
	e.calls = append(e.calls, filepath.Base(file))
	e.mu.Unlock()

	base := filepath.Base(file)
	if base == "panic.js" {
		panic("linter exploded")
	}

	return e.codes[base], e.errs[base]
}

func writeFiles(t *testing.T, dir string, files ...string) {
	t.Helper()

	for _, f := range files {
		p := filepath.Join(dir, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("0"), 0o600))
	}
}

func TestCoordinator_Resolve(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.js", "b.js", "notes.txt", "src/c.js", "vendor/d.js")

	c := &Coordinator{Root: dir}

	files, err := c.Resolve([]string{"**/*.js", "a.js"}, []string{"vendor"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.js"),
		filepath.Join(dir, "b.js"),
		filepath.Join(dir, "src", "c.js"),
	}, files)
}

func TestCoordinator_ResolveNoMatches(t *testing.T) {
	c := &Coordinator{Root: t.TempDir()}

	files, err := c.Resolve([]string{"*.js"}, nil)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestCoordinator_ResolveInvalidPattern(t *testing.T) {
	c := &Coordinator{Root: t.TempDir()}

	_, err := c.Resolve([]string{"[.js"}, nil)
	require.ErrorIs(t, err, ErrPattern)
}

func TestCoordinator_RunReducesToHighestCode(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	writeFiles(t, dir, "a.js", "b.js", "c.js", "d.js")

	e := &fakeEngine{
		codes: map[string]Code{"a.js": CodeNoChange, "b.js": CodeFixed, "c.js": CodeError, "d.js": CodeNoChange},
		errs:  map[string]error{"c.js": errors.Join(ErrLintTask, errors.New("2 problems"))},
	}
	c := &Coordinator{Engine: e, Root: dir}

	_, err := c.Resolve([]string{"*.js"}, nil)
	require.NoError(t, err)

	code, tasks := c.Run(t.Context())
	assert.Equal(t, CodeError, code)
	require.Len(t, tasks, 4)

	got := make([]Code, 0, len(tasks))
	for _, task := range tasks {
		got = append(got, task.Code)
	}

	assert.Equal(t, []Code{CodeNoChange, CodeFixed, CodeError, CodeNoChange}, got)
	assert.Equal(t, filepath.Join(dir, "c.js"), tasks[2].File)
	require.ErrorIs(t, tasks[2].Err, ErrLintTask)
	assert.NoError(t, tasks[1].Err)
}

func TestCoordinator_RunFixedOnly(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.js", "b.js")

	e := &fakeEngine{codes: map[string]Code{"a.js": CodeFixed}}
	c := &Coordinator{Engine: e, Root: dir, Limit: 1}

	_, err := c.Resolve([]string{"*.js"}, nil)
	require.NoError(t, err)

	code, tasks := c.Run(t.Context())
	assert.Equal(t, CodeFixed, code)
	assert.Len(t, tasks, 2)
}

func TestCoordinator_RunKeepsLinterCodes(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.js", "b.js", "c.js")

	e := &fakeEngine{codes: map[string]Code{"a.js": CodeFixed, "b.js": Code(4), "c.js": CodeError}}
	c := &Coordinator{Engine: e, Root: dir}

	_, err := c.Resolve([]string{"*.js"}, nil)
	require.NoError(t, err)

	code, tasks := c.Run(t.Context())
	assert.Equal(t, Code(4), code)
	require.Len(t, tasks, 3)
	assert.Equal(t, Code(4), tasks[1].Code)
}

func TestCoordinator_RunPanicIsAnError(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "ok.js", "panic.js")

	c := &Coordinator{Engine: &fakeEngine{}, Root: dir}

	_, err := c.Resolve([]string{"*.js"}, nil)
	require.NoError(t, err)

	code, tasks := c.Run(t.Context())
	assert.Equal(t, CodeError, code)
	require.Len(t, tasks, 2)
	assert.Equal(t, CodeNoChange, tasks[0].Code)
	require.ErrorIs(t, tasks[1].Err, ErrLintTask)
	assert.ErrorContains(t, tasks[1].Err, "linter exploded")
}

func TestCoordinator_RunNoFiles(t *testing.T) {
	c := &Coordinator{Engine: &fakeEngine{}}

	code, tasks := c.Run(t.Context())
	assert.Equal(t, CodeNoChange, code)
	assert.Empty(t, tasks)
}

func TestCoordinator_Watch(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	writeFiles(t, dir, "a.js", "vendor/b.js")

	e := &fakeEngine{codes: map[string]Code{"a.js": CodeFixed}}
	c := &Coordinator{Engine: e, Root: dir}

	_, err := c.Resolve([]string{"**/*.js"}, []string{"vendor"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	tasks := make(chan Task, 8)
	errCh := make(chan error, 1)

	go func() {
		errCh <- c.Watch(ctx, func(task Task) { tasks <- task })
	}()

	// the watcher needs to be registered before the writes
	time.Sleep(200 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "vendor", "b.js"), []byte("1"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("1"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.js"), []byte("1"), 0o600))

	select {
	case task := <-tasks:
		assert.Equal(t, filepath.Join(dir, "a.js"), task.File)
		assert.Equal(t, CodeFixed, task.Code)
	case <-time.After(5 * time.Second):
		t.Fatal("changed file was not linted")
	}

	cancel()
	require.NoError(t, <-errCh)

	select {
	case task := <-tasks:
		t.Fatalf("unexpected lint of %s", task.File)
	default:
	}
}
