// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package lint

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/matt-FFFFFF/kbuild/internal/ctxlog"
	"github.com/matt-FFFFFF/kbuild/internal/runbatch"
	"github.com/matt-FFFFFF/kbuild/internal/watch"
)

var (
	// ErrNoFiles is returned when no files or patterns are given.
	ErrNoFiles = errors.New("no files to lint")
	// ErrPattern is returned for a malformed glob pattern.
	ErrPattern = errors.New("invalid file pattern")
)

// Task is the outcome of linting one file.
type Task struct {
	File string
	Code Code
	Err  error
}

// Coordinator lints the files matching a set of patterns.
type Coordinator struct {
	Engine  Engine
	Options Options
	Root    string // patterns are relative to Root, the working directory when empty
	Limit   int    // maximum concurrent linters, 0 means unlimited

	patterns []string
	ignore   []string
	files    []string
}

// Resolve expands patterns into the files to lint, dropping those matching an ignore pattern.
// Files are returned in pattern order without duplicates.
func (c *Coordinator) Resolve(patterns, ignore []string) ([]string, error) {
	c.patterns = patterns
	c.ignore = ignore
	c.files = nil

	w := c.watcher()
	seen := make(map[string]struct{})

	for _, p := range patterns {
		if !doublestar.ValidatePattern(filepath.ToSlash(p)) {
			return nil, errors.Join(ErrPattern, errors.New(p))
		}

		matches, err := doublestar.FilepathGlob(c.abs(p), doublestar.WithFilesOnly())
		if err != nil {
			return nil, errors.Join(ErrPattern, err)
		}

		slices.Sort(matches)

		for _, m := range matches {
			if _, ok := seen[m]; ok || !w.Matches(m) {
				continue
			}

			seen[m] = struct{}{}
			c.files = append(c.files, m)
		}
	}

	return c.files, nil
}

// Run lints every resolved file concurrently and returns the highest code with the per-file
// tasks in file order. A failing task is logged and contributes its code. With no files the
// result is CodeNoChange.
func (c *Coordinator) Run(ctx context.Context) (Code, []Task) {
	if len(c.files) == 0 {
		return CodeNoChange, nil
	}

	cmds := make([]runbatch.Runnable, 0, len(c.files))

	for _, f := range c.files {
		cmds = append(cmds, &runbatch.FunctionCommand{
			BaseCommand: &runbatch.BaseCommand{Label: f},
			Func: func(ctx context.Context, _ string, _ map[string]string) runbatch.FunctionCommandReturn {
				code, err := c.Engine.Lint(ctx, f, c.Options)
				return runbatch.FunctionCommandReturn{ExitCode: int(code), Err: err}
			},
		})
	}

	batch := &runbatch.ParallelBatch{
		BaseCommand: &runbatch.BaseCommand{Label: "lint"},
		Commands:    cmds,
		Limit:       c.Limit,
	}

	leaves := batch.Run(ctx).Leaves()
	tasks := make([]Task, 0, len(leaves))

	for i, r := range leaves {
		// panics and cancellation carry no lint code
		if r.ExitCode < 0 {
			r.ExitCode = int(CodeError)
		}

		t := Task{File: c.files[i], Code: Code(r.ExitCode), Err: r.Error}

		if t.Err != nil && !errors.Is(t.Err, ErrLintTask) {
			t.Err = errors.Join(ErrLintTask, t.Err)
		}

		if t.Err != nil {
			ctxlog.Error(ctx, "lint failed", "file", t.File, "code", t.Code, "error", t.Err)
		} else {
			ctxlog.Debug(ctx, "linted", "file", t.File, "code", t.Code)
		}

		tasks = append(tasks, t)
	}

	code := Code(leaves.MaxExitCode(int(CodeNoChange)))

	return code, tasks
}

// OnTask receives the outcome of each file linted while watching.
type OnTask func(Task)

// Watch lints each changed file matching the resolved patterns on its own until ctx is done.
// Results are not aggregated.
func (c *Coordinator) Watch(ctx context.Context, fn OnTask) error {
	w := c.watcher()

	var wg sync.WaitGroup
	defer wg.Wait()

	ctxlog.Info(ctx, "watching for changes", "patterns", c.patterns)

	return w.Run(ctx, func(ctx context.Context, paths []string) {
		for _, p := range paths {
			wg.Add(1)

			go func() {
				defer wg.Done()

				code, err := c.Engine.Lint(ctx, p, c.Options)
				if err != nil {
					ctxlog.Error(ctx, "lint failed", "file", p, "code", code, "error", err)
				} else {
					ctxlog.Info(ctx, "linted", "file", p, "code", code)
				}

				if fn != nil {
					fn(Task{File: p, Code: code, Err: err})
				}
			}()
		}
	})
}

func (c *Coordinator) watcher() *watch.Watcher {
	return &watch.Watcher{
		Root:     c.root(),
		Patterns: c.patterns,
		Ignore:   c.ignore,
	}
}

func (c *Coordinator) root() string {
	if c.Root != "" {
		return c.Root
	}

	wd, _ := filepath.Abs(".")

	return wd
}

func (c *Coordinator) abs(pattern string) string {
	if filepath.IsAbs(pattern) {
		return pattern
	}

	return filepath.Join(c.root(), pattern)
}
