// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package worker

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/matt-FFFFFF/kbuild/internal/builder"
	"github.com/matt-FFFFFF/kbuild/internal/ctxlog"
)

var _ Launcher = (*InProcessLauncher)(nil)

// InProcessLauncher runs each worker's build inside the current process.
// Launch blocks until the worker's first compile has finished.
type InProcessLauncher struct {
	Builder builder.Builder
}

// Launch implements Launcher.
func (l *InProcessLauncher) Launch(ctx context.Context, spec Spec, events chan<- Event) (Handle, error) {
	wctx, cancel := context.WithCancel(ctx)
	h := &taskHandle{index: spec.Bundle.Index, cancel: cancel}

	send(ctx, events, Event{Kind: EventSpawned, Index: h.index, Handle: h})

	hooks := builder.Hooks{
		CompileStarted: func() {
			send(ctx, events, Event{Kind: EventCompileStarted, Index: h.index})
		},
		CompileDone: func() {
			send(ctx, events, Event{Kind: EventCompileDone, Index: h.index})
		},
	}

	session, err := l.Builder.Build(wctx, spec.request(), hooks)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %s: %w", ErrBuild, spec.Bundle.Name, err)
	}

	go func() {
		err := session.Wait()
		cancel()

		e := Event{Kind: EventExited, Index: h.index, Err: err}

		if sig := h.stoppedBy(); sig != nil {
			e.Signal = sig
			e.ExitCode = SignalExitCode(sig)
		} else if err != nil {
			e.ExitCode = 1
		}

		ctxlog.Debug(ctx, "in-process worker finished", "bundle", spec.Bundle.Name, "exitCode", e.ExitCode)
		send(ctx, events, e)
	}()

	return h, nil
}

type taskHandle struct {
	index  int
	cancel context.CancelFunc
	mu     sync.Mutex
	sig    os.Signal
}

func (h *taskHandle) Index() int { return h.index }

func (h *taskHandle) PID() int { return 0 }

// Signal stops the worker's session. The first signal is the one reported on exit.
func (h *taskHandle) Signal(sig os.Signal) error {
	h.mu.Lock()
	if h.sig == nil {
		h.sig = sig
	}
	h.mu.Unlock()

	h.cancel()

	return nil
}

func (h *taskHandle) stoppedBy() os.Signal {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.sig
}
