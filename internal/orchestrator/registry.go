// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package orchestrator

import (
	"context"
	"os"
	"slices"

	"github.com/matt-FFFFFF/kbuild/internal/ctxlog"
	"github.com/matt-FFFFFF/kbuild/internal/worker"
)

// WorkerState is the lifecycle state of a registered worker.
type WorkerState int

const (
	StateSpawned WorkerState = iota
	StateCompiling
	StateExited
)

// String returns the name of the state.
func (s WorkerState) String() string {
	switch s {
	case StateSpawned:
		return "spawned"
	case StateCompiling:
		return "compiling"
	case StateExited:
		return "exited"
	default:
		return "unknown"
	}
}

type entry struct {
	handle   worker.Handle
	state    WorkerState
	exitCode int
}

// Registry tracks the workers of a run. When persistent, the exit of any worker
// tears down the rest.
type Registry struct {
	persistent bool
	workers    map[int]*entry
	tornDown   bool
}

// NewRegistry returns an empty Registry.
func NewRegistry(persistent bool) *Registry {
	return &Registry{
		persistent: persistent,
		workers:    make(map[int]*entry),
	}
}

// Add registers a spawned worker.
func (r *Registry) Add(h worker.Handle) {
	r.workers[h.Index()] = &entry{handle: h, state: StateSpawned}
}

// Remove forgets a worker that failed to start.
func (r *Registry) Remove(index int) {
	delete(r.workers, index)
}

// SetState updates the state of a live worker.
func (r *Registry) SetState(index int, s WorkerState) {
	if e, ok := r.workers[index]; ok && e.state != StateExited {
		e.state = s
	}
}

// State returns the state of a worker and whether it is registered.
func (r *Registry) State(index int) (WorkerState, bool) {
	e, ok := r.workers[index]
	if !ok {
		return 0, false
	}

	return e.state, true
}

// TornDown reports whether an exit has already triggered the teardown.
func (r *Registry) TornDown() bool {
	return r.tornDown
}

// Live returns the handles of workers that have not exited, in index order.
func (r *Registry) Live() []worker.Handle {
	indexes := make([]int, 0, len(r.workers))

	for i, e := range r.workers {
		if e.state != StateExited {
			indexes = append(indexes, i)
		}
	}

	slices.Sort(indexes)

	out := make([]worker.Handle, 0, len(indexes))
	for _, i := range indexes {
		out = append(out, r.workers[i].handle)
	}

	return out
}

// Broadcast sends sig to every live worker.
func (r *Registry) Broadcast(ctx context.Context, sig os.Signal) {
	for _, h := range r.Live() {
		if err := h.Signal(sig); err != nil {
			ctxlog.Warn(ctx, "could not signal worker", "index", h.Index(), "pid", h.PID(), "signal", sig, "error", err)
		}
	}
}

// Exited records a worker exit. When persistent, the first exit signals every other live
// worker with sig, or fallback when the worker was not ended by a signal, and Exited
// returns true.
func (r *Registry) Exited(ctx context.Context, index, code int, sig, fallback os.Signal) bool {
	e, ok := r.workers[index]
	if !ok || e.state == StateExited {
		return false
	}

	e.state = StateExited
	e.exitCode = code

	if !r.persistent || r.tornDown {
		return false
	}

	r.tornDown = true

	if sig == nil {
		sig = fallback
	}

	ctxlog.Info(ctx, "worker exited, stopping the others", "index", index, "exitCode", code, "signal", sig)
	r.Broadcast(ctx, sig)

	return true
}

// MaxExitCode returns the highest exit code of the exited workers.
func (r *Registry) MaxExitCode() int {
	code := 0

	for _, e := range r.workers {
		if e.state == StateExited {
			code = max(code, e.exitCode)
		}
	}

	return code
}
