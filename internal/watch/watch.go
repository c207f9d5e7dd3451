// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package watch reports batches of changed files matching a set of glob patterns.
// Patterns use doublestar syntax and are relative to Root unless absolute.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/matt-FFFFFF/kbuild/internal/ctxlog"
)

// DefaultDebounce is how long the watcher waits for further events before reporting a batch.
const DefaultDebounce = 100 * time.Millisecond

// ErrWatch is returned when the file watcher cannot be created.
var ErrWatch = errors.New("could not watch files")

// skipDirs are never descended into.
var skipDirs = []string{".git", "node_modules"}

// Watcher watches the directories under the patterns' base paths.
type Watcher struct {
	Root     string
	Patterns []string
	Ignore   []string
	Debounce time.Duration
}

// OnChange receives the sorted, de-duplicated absolute paths of files changed in one batch.
type OnChange func(ctx context.Context, paths []string)

// Run watches until ctx is done, calling fn from a single goroutine for each batch.
// Events arriving while fn runs are reported in the next batch.
func (w *Watcher) Run(ctx context.Context, fn OnChange) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Join(ErrWatch, err)
	}
	defer fw.Close() //nolint:errcheck

	for _, base := range w.Bases() {
		w.addRecursive(ctx, fw, base)
	}

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}

	pending := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					w.addRecursive(ctx, fw, event.Name)
					continue
				}
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			if !w.Matches(event.Name) {
				continue
			}

			pending[event.Name] = struct{}{}

			timer.Reset(debounce)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}

			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}

			sort.Strings(paths)
			clear(pending)

			ctxlog.Debug(ctx, "files changed", "count", len(paths))
			fn(ctx, paths)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}

			ctxlog.Warn(ctx, "file watcher error", "error", err)
		}
	}
}

// Matches reports whether file matches a pattern and no ignore pattern.
func (w *Watcher) Matches(file string) bool {
	file = filepath.ToSlash(file)

	if w.ignored(file) {
		return false
	}

	for _, p := range w.Patterns {
		if ok, _ := doublestar.Match(w.abs(p), file); ok {
			return true
		}
	}

	return false
}

// Bases returns the static directory prefixes of the patterns, without duplicates or nesting.
func (w *Watcher) Bases() []string {
	var bases []string

	for _, p := range w.Patterns {
		base, _ := doublestar.SplitPattern(w.abs(p))
		bases = append(bases, filepath.FromSlash(base))
	}

	slices.Sort(bases)
	bases = slices.Compact(bases)

	out := bases[:0]

	for _, b := range bases {
		nested := slices.ContainsFunc(out, func(parent string) bool {
			rel, err := filepath.Rel(parent, b)
			return err == nil && rel != ".." && !filepath.IsAbs(rel) && !startsWithDotDot(rel)
		})
		if !nested {
			out = append(out, b)
		}
	}

	return out
}

func (w *Watcher) abs(pattern string) string {
	pattern = filepath.ToSlash(pattern)
	if path.IsAbs(pattern) || filepath.IsAbs(filepath.FromSlash(pattern)) {
		return pattern
	}

	return path.Join(filepath.ToSlash(w.Root), pattern)
}

func (w *Watcher) ignored(file string) bool {
	for _, p := range w.Ignore {
		abs := w.abs(p)
		if ok, _ := doublestar.Match(abs, file); ok {
			return true
		}

		// a directory pattern ignores everything beneath it
		if ok, _ := doublestar.Match(abs+"/**", file); ok {
			return true
		}
	}

	return false
}

func (w *Watcher) addRecursive(ctx context.Context, fw *fsnotify.Watcher, root string) {
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // unreadable entries are skipped
		}

		if !d.IsDir() {
			return nil
		}

		if p != root && (slices.Contains(skipDirs, d.Name()) || w.ignored(filepath.ToSlash(p))) {
			return filepath.SkipDir
		}

		if err := fw.Add(p); err != nil {
			ctxlog.Warn(ctx, "could not watch directory", "dir", p, "error", err)
		}

		return nil
	})
	if err != nil {
		ctxlog.Warn(ctx, "could not walk directory", "dir", root, "error", err)
	}
}

func startsWithDotDot(rel string) bool {
	return len(rel) >= 3 && rel[:2] == ".." && os.IsPathSeparator(rel[2]) //nolint:mnd
}
