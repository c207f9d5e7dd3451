// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package worker

import (
	"context"
	"errors"
	"os"
	"syscall"

	"github.com/matt-FFFFFF/kbuild/internal/builder"
	"github.com/matt-FFFFFF/kbuild/internal/bundle"
	"github.com/matt-FFFFFF/kbuild/internal/mode"
)

var (
	// ErrSpawn is returned when a worker cannot be started.
	ErrSpawn = errors.New("could not spawn worker")
	// ErrBuild is returned when an in-process worker's first build fails.
	ErrBuild = errors.New("bundle build failed")
)

// EventKind identifies a worker lifecycle event.
type EventKind int

const (
	EventSpawned EventKind = iota
	EventSpawnFailed
	EventCompileStarted
	EventCompileDone
	EventExited
)

// String returns the name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventSpawned:
		return "spawned"
	case EventSpawnFailed:
		return "spawn-failed"
	case EventCompileStarted:
		return "compile-started"
	case EventCompileDone:
		return "compile-done"
	case EventExited:
		return "exited"
	default:
		return "unknown"
	}
}

// Event is a lifecycle event of the worker with the given Index.
type Event struct {
	Kind     EventKind
	Index    int
	Handle   Handle    // EventSpawned
	Err      error     // EventSpawnFailed, EventExited
	ExitCode int       // EventExited
	Signal   os.Signal // EventExited, the signal that ended the worker if any
}

// Spec is what a worker builds.
type Spec struct {
	Bundle  bundle.Descriptor
	Options bundle.BuildOptions
	Mode    mode.Mode
}

func (s Spec) request() builder.Request {
	return builder.Request{Bundle: s.Bundle, Options: s.Options, Mode: s.Mode}
}

// Handle is the orchestrator's reference to a running worker.
type Handle interface {
	Index() int
	PID() int // zero for in-process workers
	Signal(os.Signal) error
}

// Launcher starts workers.
type Launcher interface {
	// Launch starts the worker for spec. It sends EventSpawned on events before any other
	// event of the worker. A returned error means the worker is not running.
	Launch(ctx context.Context, spec Spec, events chan<- Event) (Handle, error)
}

// send delivers e unless ctx is done first.
func send(ctx context.Context, events chan<- Event, e Event) {
	select {
	case events <- e:
	case <-ctx.Done():
	}
}

// SignalExitCode is the conventional exit code of a process ended by sig.
func SignalExitCode(sig os.Signal) int {
	if s, ok := sig.(syscall.Signal); ok {
		return 128 + int(s) //nolint:mnd
	}

	return 1
}

// maxSignal bounds the exit codes read back as 128+signo.
const maxSignal = 64

// exitSignal returns the signal a worker reported through its exit code. A worker stopped by
// a signal exits normally with SignalExitCode, and its build failures exit with 1.
func exitSignal(code int) os.Signal {
	if code <= 128 || code > 128+maxSignal {
		return nil
	}

	return syscall.Signal(code - 128) //nolint:mnd
}

// exitStatus returns the exit code of a finished process, and the signal that ended it if any.
func exitStatus(state *os.ProcessState) (int, os.Signal) {
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return SignalExitCode(ws.Signal()), ws.Signal()
	}

	code := state.ExitCode()

	return code, exitSignal(code)
}
