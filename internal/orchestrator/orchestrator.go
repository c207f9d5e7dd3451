// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package orchestrator

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/matt-FFFFFF/kbuild/internal/bundle"
	"github.com/matt-FFFFFF/kbuild/internal/ctxlog"
	"github.com/matt-FFFFFF/kbuild/internal/mode"
	"github.com/matt-FFFFFF/kbuild/internal/progress"
	"github.com/matt-FFFFFF/kbuild/internal/signalbroker"
	"github.com/matt-FFFFFF/kbuild/internal/worker"
)

// ErrCancelled is returned when the run is cancelled before every worker has exited.
var ErrCancelled = errors.New("build cancelled")

// DefaultTeardownGrace is how long a teardown waits for the signalled workers before killing them.
const DefaultTeardownGrace = 5 * time.Second

// CompletionFunc is called from the event loop every time all outstanding compiles have finished.
// It must not block.
type CompletionFunc func(ctx context.Context, bundles []bundle.Descriptor, opts bundle.BuildOptions)

// Orchestrator runs one worker per bundle.
type Orchestrator struct {
	bundles    []bundle.Descriptor
	opts       bundle.BuildOptions
	launcher   worker.Launcher
	mode       mode.Mode
	persistent bool
	completion CompletionFunc
	signals    <-chan os.Signal
	reporter   progress.Reporter
	grace      time.Duration
	timeNowFn  func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCompletion sets the completion action.
func WithCompletion(fn CompletionFunc) Option {
	return func(o *Orchestrator) {
		o.completion = fn
	}
}

// WithPersistent sets whether the exit of one worker tears down the rest.
func WithPersistent(persistent bool) Option {
	return func(o *Orchestrator) {
		o.persistent = persistent
	}
}

// WithSignals sets the channel of OS signals to forward to the workers.
func WithSignals(ch <-chan os.Signal) Option {
	return func(o *Orchestrator) {
		o.signals = ch
	}
}

// WithReporter sets the progress reporter.
func WithReporter(r progress.Reporter) Option {
	return func(o *Orchestrator) {
		o.reporter = r
	}
}

// WithTeardownGrace sets how long a teardown waits for the signalled workers to exit.
// Workers still running after that are killed and Run returns without them.
func WithTeardownGrace(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.grace = d
	}
}

// WithMode sets the build mode passed to the workers.
func WithMode(m mode.Mode) Option {
	return func(o *Orchestrator) {
		o.mode = m
	}
}

// New returns an Orchestrator for bundles. The default is a non-persistent production build
// with no completion action.
func New(bundles []bundle.Descriptor, opts bundle.BuildOptions, launcher worker.Launcher, options ...Option) *Orchestrator {
	o := &Orchestrator{
		bundles:   bundles,
		opts:      opts,
		launcher:  launcher,
		mode:      mode.Production,
		reporter:  progress.NewNullReporter(),
		grace:     DefaultTeardownGrace,
		timeNowFn: time.Now,
	}

	for _, opt := range options {
		opt(o)
	}

	return o
}

// run is the state of one call to Run, owned by the event loop.
type run struct {
	*Orchestrator
	state      *State
	registry   *Registry
	names      map[int]string
	lastSignal os.Signal
	exited     int
	launched   int // -1 until the launch goroutine has finished
	trigger    int // exit code of the worker that tore down a persistent run
	spawnErr   error
}

// Run launches the workers and follows them until they have all exited.
//
// Persistent runs return the exit code of the first worker to exit, once the rest have been
// signalled and have exited or the teardown grace has run out. Other runs return the highest worker exit code. A spawn failure
// stops the launch, terminates the workers already running and is returned.
func (o *Orchestrator) Run(ctx context.Context) (int, error) {
	if len(o.bundles) == 0 {
		return 1, bundle.ErrNoBundles
	}

	r := &run{
		Orchestrator: o,
		state:        NewState(len(o.bundles), o.mode, o.persistent),
		registry:     NewRegistry(o.persistent),
		names:        make(map[int]string, len(o.bundles)),
		launched:     -1,
	}

	for _, b := range o.bundles {
		r.names[b.Index] = b.Name
	}

	ctxlog.Debug(ctx, "starting workers", "count", len(o.bundles), "mode", o.mode, "persistent", o.persistent)

	// Cancelled on return so launchers and monitors stop delivering events.
	ectx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan worker.Event, 4*len(o.bundles)) //nolint:mnd
	stop := make(chan struct{})
	launched := make(chan int, 1)

	go o.launch(ectx, events, stop, launched)

	signals := o.signals
	stopped := false
	stopLaunch := func() {
		if !stopped {
			stopped = true
			close(stop)
		}
	}
	defer stopLaunch()

	var grace <-chan time.Time

	for {
		if r.launched >= 0 && r.exited >= r.launched {
			return r.result()
		}

		select {
		case <-ctx.Done():
			ctxlog.Warn(ctx, "build cancelled, killing workers")
			stopLaunch()
			r.registry.Broadcast(ctx, os.Kill)

			return 1, errors.Join(ErrCancelled, ctx.Err())

		case n := <-launched:
			r.launched = n

		case sig, ok := <-signals:
			if !ok {
				signals = nil
				continue
			}

			r.lastSignal = sig
			ctxlog.Info(ctx, "forwarding signal to workers", "signal", sig)
			r.registry.Broadcast(ctx, sig)

		case <-grace:
			ctxlog.Warn(ctx, "workers did not stop in time, killing them", "grace", o.grace)
			r.registry.Broadcast(ctx, os.Kill)

			return r.result()

		case e := <-events:
			if r.handle(ctx, e) {
				stopLaunch()

				if grace == nil {
					t := time.NewTimer(o.grace)
					defer t.Stop()

					grace = t.C
				}
			}
		}
	}
}

// launch starts the workers in bundle order, then reports how many started.
func (o *Orchestrator) launch(ctx context.Context, events chan<- worker.Event, stop <-chan struct{}, launched chan<- int) {
	n := 0
	defer func() { launched <- n }()

	for _, b := range o.bundles {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		spec := worker.Spec{Bundle: b, Options: o.opts, Mode: o.mode}

		if _, err := o.launcher.Launch(ctx, spec, events); err != nil {
			select {
			case events <- worker.Event{Kind: worker.EventSpawnFailed, Index: b.Index, Err: err}:
			case <-ctx.Done():
			}

			return
		}

		n++
	}
}

// handle applies one worker event and reports whether launching should stop.
func (r *run) handle(ctx context.Context, e worker.Event) bool {
	name := r.names[e.Index]
	wctx := ctxlog.WithBundle(ctx, name, e.Index)
	ev := progress.Event{Bundle: name, Index: e.Index, Timestamp: r.timeNowFn()}

	switch e.Kind {
	case worker.EventSpawned:
		r.registry.Add(e.Handle)
		ctxlog.Debug(wctx, "worker started", "pid", e.Handle.PID())

		ev.Type = progress.EventSpawned
		ev.Data.Pid = e.Handle.PID()
		ev.Data.Pending = r.state.Pending
		r.reporter.Report(ev)

		// a worker that started after the teardown began is stopped straight away
		if r.registry.TornDown() || r.spawnErr != nil {
			if err := e.Handle.Signal(r.teardownSignal()); err != nil {
				ctxlog.Warn(wctx, "could not signal worker", "error", err)
			}
		}

		return false

	case worker.EventSpawnFailed:
		r.registry.Remove(e.Index)
		ctxlog.Error(wctx, "worker failed to start", "error", e.Err)

		ev.Type = progress.EventSpawnFailed
		ev.Data.Error = e.Err
		r.reporter.Report(ev)

		if r.spawnErr == nil {
			r.spawnErr = e.Err
		}

		r.registry.Broadcast(ctx, signalbroker.DefaultTermination)

		return true

	case worker.EventCompileStarted:
		r.registry.SetState(e.Index, StateCompiling)
		r.state.CompileStarted()
		ctxlog.Debug(wctx, "compile started", "pending", r.state.Pending)

		ev.Type = progress.EventCompileStarted
		ev.Data.Pending = r.state.Pending
		r.reporter.Report(ev)

		return false

	case worker.EventCompileDone:
		r.registry.SetState(e.Index, StateSpawned)
		complete := r.state.CompileDone()
		ctxlog.Debug(wctx, "compile done", "pending", r.state.Pending)

		if r.state.Pending < 0 {
			ctxlog.Warn(wctx, "more compiles finished than started", "pending", r.state.Pending)
		}

		ev.Type = progress.EventCompileDone
		ev.Data.Pending = r.state.Pending
		r.reporter.Report(ev)

		if complete {
			r.complete(ctx)
		}

		return false

	case worker.EventExited:
		r.exited++

		ev.Type = progress.EventExited
		ev.Data.ExitCode = e.ExitCode
		ev.Data.Error = e.Err
		ev.Data.Pending = r.state.Pending
		r.reporter.Report(ev)

		ctxlog.Debug(wctx, "worker exited", "exitCode", e.ExitCode, "signal", e.Signal)

		if r.registry.Exited(wctx, e.Index, e.ExitCode, e.Signal, r.fallbackSignal()) {
			r.trigger = e.ExitCode
			return true
		}

		return false
	}

	return false
}

func (r *run) complete(ctx context.Context) {
	ctxlog.Info(ctx, "all bundles compiled", "bundles", r.state.Total)

	r.reporter.Report(progress.Event{
		Index:     -1,
		Type:      progress.EventAllCompiled,
		Timestamp: r.timeNowFn(),
	})

	if r.completion != nil {
		r.completion(ctx, r.bundles, r.opts)
	}
}

// fallbackSignal is sent to the other workers when the exiting worker was not signalled.
func (r *run) fallbackSignal() os.Signal {
	if r.lastSignal != nil {
		return r.lastSignal
	}

	return signalbroker.DefaultTermination
}

func (r *run) teardownSignal() os.Signal {
	if r.spawnErr != nil {
		return signalbroker.DefaultTermination
	}

	return r.fallbackSignal()
}

func (r *run) result() (int, error) {
	if r.spawnErr != nil {
		return 1, r.spawnErr
	}

	if r.persistent && r.registry.TornDown() {
		return r.trigger, nil
	}

	return r.registry.MaxExitCode(), nil
}
