// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package orchestrator

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/matt-FFFFFF/kbuild/internal/bundle"
	"github.com/matt-FFFFFF/kbuild/internal/progress"
	"github.com/matt-FFFFFF/kbuild/internal/worker"
)

const waitTimeout = 5 * time.Second

// fakeWorker is a scripted worker. Tests emit its events by hand.
type fakeWorker struct {
	index        int
	ctx          context.Context
	events       chan<- worker.Event
	exitOnSignal bool

	mu        sync.Mutex
	signals   []os.Signal
	exited    bool
	signalled chan os.Signal
}

func (w *fakeWorker) Index() int { return w.index }

func (w *fakeWorker) PID() int { return 1000 + w.index }

func (w *fakeWorker) Signal(sig os.Signal) error {
	w.mu.Lock()
	w.signals = append(w.signals, sig)
	exit := w.exitOnSignal && !w.exited
	if exit {
		w.exited = true
	}
	w.mu.Unlock()

	w.signalled <- sig

	if exit {
		go w.emit(worker.Event{Kind: worker.EventExited, ExitCode: worker.SignalExitCode(sig), Signal: sig})
	}

	return nil
}

func (w *fakeWorker) received() []os.Signal {
	w.mu.Lock()
	defer w.mu.Unlock()

	return append([]os.Signal(nil), w.signals...)
}

func (w *fakeWorker) emit(e worker.Event) {
	e.Index = w.index

	select {
	case w.events <- e:
	case <-w.ctx.Done():
	}
}

func (w *fakeWorker) started() { w.emit(worker.Event{Kind: worker.EventCompileStarted}) }

func (w *fakeWorker) done() { w.emit(worker.Event{Kind: worker.EventCompileDone}) }

func (w *fakeWorker) exit(code int, sig os.Signal) {
	w.mu.Lock()
	w.exited = true
	w.mu.Unlock()

	w.emit(worker.Event{Kind: worker.EventExited, ExitCode: code, Signal: sig})
}

// fakeLauncher hands out fakeWorkers and fails the indexes listed in fail.
type fakeLauncher struct {
	exitOnSignal bool
	fail         map[int]error
	spawned      chan *fakeWorker

	mu       sync.Mutex
	launches []int
}

func newFakeLauncher(exitOnSignal bool) *fakeLauncher {
	return &fakeLauncher{
		exitOnSignal: exitOnSignal,
		fail:         map[int]error{},
		spawned:      make(chan *fakeWorker, 16),
	}
}

func (l *fakeLauncher) Launch(ctx context.Context, spec worker.Spec, events chan<- worker.Event) (worker.Handle, error) {
	l.mu.Lock()
	l.launches = append(l.launches, spec.Bundle.Index)
	l.mu.Unlock()

	if err, ok := l.fail[spec.Bundle.Index]; ok {
		return nil, err
	}

	w := &fakeWorker{
		index:        spec.Bundle.Index,
		ctx:          ctx,
		events:       events,
		exitOnSignal: l.exitOnSignal,
		signalled:    make(chan os.Signal, 16),
	}

	w.emit(worker.Event{Kind: worker.EventSpawned, Handle: w})
	l.spawned <- w

	return w, nil
}

func (l *fakeLauncher) launched() []int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]int(nil), l.launches...)
}

// await returns the next n spawned workers.
func (l *fakeLauncher) await(t *testing.T, n int) []*fakeWorker {
	t.Helper()

	out := make([]*fakeWorker, 0, n)

	for range n {
		select {
		case w := <-l.spawned:
			out = append(out, w)
		case <-time.After(waitTimeout):
			t.Fatalf("only %d of %d workers spawned", len(out), n)
		}
	}

	return out
}

func bundles(n int) []bundle.Descriptor {
	out := make([]bundle.Descriptor, 0, n)
	for i := range n {
		out = append(out, bundle.Descriptor{Name: string(rune('a' + i)), Index: i})
	}

	return out
}

type runResult struct {
	code int
	err  error
}

func start(ctx context.Context, o *Orchestrator) <-chan runResult {
	ch := make(chan runResult, 1)

	go func() {
		code, err := o.Run(ctx)
		ch <- runResult{code: code, err: err}
	}()

	return ch
}

func awaitResult(t *testing.T, ch <-chan runResult) runResult {
	t.Helper()

	select {
	case r := <-ch:
		return r
	case <-time.After(waitTimeout):
		t.Fatal("Run did not return")
		return runResult{}
	}
}

func awaitSignal(t *testing.T, w *fakeWorker) os.Signal {
	t.Helper()

	select {
	case sig := <-w.signalled:
		return sig
	case <-time.After(waitTimeout):
		t.Fatalf("worker %d was not signalled", w.index)
		return nil
	}
}

// completions counts completion calls.
type completions struct {
	ch chan []bundle.Descriptor
}

func newCompletions() *completions {
	return &completions{ch: make(chan []bundle.Descriptor, 16)}
}

func (c *completions) fn(_ context.Context, b []bundle.Descriptor, _ bundle.BuildOptions) {
	c.ch <- b
}

func (c *completions) await(t *testing.T) []bundle.Descriptor {
	t.Helper()

	select {
	case b := <-c.ch:
		return b
	case <-time.After(waitTimeout):
		t.Fatal("completion did not fire")
		return nil
	}
}

// none asserts that completion does not fire within a short grace period.
func (c *completions) none(t *testing.T) {
	t.Helper()

	select {
	case <-c.ch:
		t.Fatal("completion fired unexpectedly")
	case <-time.After(100 * time.Millisecond):
	}
}

// recorder is a progress.Reporter keeping every event.
type recorder struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recorder) Report(e progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, e)
}

func (r *recorder) Close() {}

func (r *recorder) types() []progress.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]progress.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}

	return out
}
