// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package builder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"strconv"
	"time"

	"github.com/matt-FFFFFF/kbuild/internal/bundle"
	"github.com/matt-FFFFFF/kbuild/internal/commandinpath"
	"github.com/matt-FFFFFF/kbuild/internal/ctxlog"
	"github.com/matt-FFFFFF/kbuild/internal/mode"
	"github.com/matt-FFFFFF/kbuild/internal/runbatch"
	"github.com/matt-FFFFFF/kbuild/internal/stats"
	"github.com/matt-FFFFFF/kbuild/internal/watch"
)

var (
	// ErrCompile is returned when the bundler fails.
	ErrCompile = errors.New("compile failed")
	// ErrBundler is returned when the bundler command cannot be found.
	ErrBundler = errors.New("bundler not found")
)

// Hooks are called around each compile. The first compile of a session only calls CompileDone.
type Hooks struct {
	CompileStarted func()
	CompileDone    func()
}

func (h Hooks) started() {
	if h.CompileStarted != nil {
		h.CompileStarted()
	}
}

func (h Hooks) done() {
	if h.CompileDone != nil {
		h.CompileDone()
	}
}

// Request describes one bundle build.
type Request struct {
	Bundle  bundle.Descriptor
	Options bundle.BuildOptions
	Mode    mode.Mode
}

// Env returns the environment passed to the bundler. Manifest variables are overridden
// by the kbuild variables.
func (r Request) Env() map[string]string {
	env := maps.Clone(r.Bundle.Config.Env)
	if env == nil {
		env = make(map[string]string)
	}

	maps.Copy(env, r.Options.Env())
	env["KBUILD_MODE"] = r.Mode.String()
	env["KBUILD_BUNDLE_INDEX"] = strconv.Itoa(r.Bundle.Index)
	env["KBUILD_BUNDLE_NAME"] = r.Bundle.Name

	return env
}

// Builder builds bundles.
type Builder interface {
	// Build returns once the first compile has finished. The returned session keeps
	// running in watch and stats modes until it is stopped or ctx is done.
	Build(ctx context.Context, req Request, hooks Hooks) (*Session, error)
}

// Session is a running build.
type Session struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// StartSession runs fn on a new goroutine. The session ends when fn returns;
// Stop cancels the context passed to fn.
func StartSession(ctx context.Context, fn func(ctx context.Context) error) *Session {
	sctx, cancel := context.WithCancel(ctx)
	s := &Session{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(s.done)
		defer cancel()

		s.err = fn(sctx)
	}()

	return s
}

// Stop ends the session.
func (s *Session) Stop() {
	s.cancel()
}

// Done is closed when the session has ended.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session has ended and returns its error.
func (s *Session) Wait() error {
	<-s.done
	return s.err
}

var _ Builder = (*CommandBuilder)(nil)

// CommandBuilder runs the command from each bundle's manifest.
type CommandBuilder struct {
	Stdout   io.Writer     // live bundler output, optional
	Stderr   io.Writer     // live bundler errors, optional
	Debounce time.Duration // quiet period before a rebuild, defaults to watch.DefaultDebounce
}

// Build implements Builder.
func (b *CommandBuilder) Build(ctx context.Context, req Request, hooks Hooks) (*Session, error) {
	ctx = ctxlog.WithBundle(ctx, req.Bundle.Name, req.Bundle.Index)
	dispatch := req.Mode.Dispatch()

	if err := b.compile(ctx, req); err != nil {
		// A failed first compile in watch mode is reported and the watch carries on.
		if !dispatch.Watch || errors.Is(err, ErrBundler) {
			return nil, err
		}

		ctxlog.Error(ctx, "compile failed", "error", err)
	}

	hooks.done()

	switch {
	case dispatch.Watch:
		w := &watch.Watcher{
			Root:     req.Bundle.Config.Dir,
			Patterns: req.Bundle.Config.Watch,
			Ignore:   req.Bundle.Config.Ignore,
			Debounce: b.Debounce,
		}

		if len(w.Patterns) == 0 {
			ctxlog.Warn(ctx, "no watch patterns configured, rebuilds disabled")
			return StartSession(ctx, waitDone), nil
		}

		return StartSession(ctx, func(ctx context.Context) error {
			return w.Run(ctx, func(ctx context.Context, paths []string) {
				ctxlog.Info(ctx, "rebuilding", "changed", len(paths))
				hooks.started()

				if err := b.compile(ctx, req); err != nil {
					ctxlog.Error(ctx, "compile failed", "error", err)
				}

				hooks.done()
			})
		}), nil

	case dispatch.ServesReports:
		srv, err := stats.NewReport(ctx, bundle.FsFactory(), req.Bundle, req.Options)
		if errors.Is(err, stats.ErrNoReport) {
			ctxlog.Warn(ctx, "no stats report configured, nothing to serve")
			return StartSession(ctx, waitDone), nil
		}

		if err != nil {
			return nil, err //nolint:wrapcheck
		}

		sctx, cancel := context.WithCancel(ctx)
		if err := srv.Start(sctx); err != nil {
			cancel()
			return nil, err //nolint:wrapcheck
		}

		return StartSession(sctx, func(ctx context.Context) error {
			defer cancel()
			return waitDone(ctx)
		}), nil

	default:
		return StartSession(ctx, func(context.Context) error { return nil }), nil
	}
}

func waitDone(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (b *CommandBuilder) compile(ctx context.Context, req Request) error {
	cfg := req.Bundle.Config

	cmd, err := commandinpath.New(req.Bundle.Name, cfg.Command, cfg.Dir, cfg.Args)
	if err != nil {
		return errors.Join(ErrBundler, err)
	}

	cmd.Env = req.Env()
	cmd.Stdout = b.Stdout
	cmd.Stderr = b.Stderr

	start := time.Now()

	ctxlog.Debug(ctx, "compiling", "command", cmd.Path, "args", cmd.Args)

	res := cmd.Run(ctx)
	if res.HasError() {
		r := res[0]
		err := fmt.Errorf("%w: %s exited %d", ErrCompile, req.Bundle.Name, r.ExitCode)

		return errors.Join(err, r.Error, stderrError(r))
	}

	ctxlog.Info(ctx, "compiled", "duration", time.Since(start).Round(time.Millisecond))

	return nil
}

// stderrError returns the tail of the bundler's error output as an error, or nil.
func stderrError(r *runbatch.Result) error {
	const tail = 2048

	if len(r.StdErr) == 0 {
		return nil
	}

	b := r.StdErr
	if len(b) > tail {
		b = b[len(b)-tail:]
	}

	return errors.New(string(b)) //nolint:err113
}
