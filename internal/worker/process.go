// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/matt-FFFFFF/kbuild/internal/bundle"
	"github.com/matt-FFFFFF/kbuild/internal/ctxlog"
	"github.com/matt-FFFFFF/kbuild/internal/ipc"
	"github.com/matt-FFFFFF/kbuild/internal/mode"
)

// Environment variables carrying the Spec to a worker process.
const (
	EnvBundle  = "KBUILD_WORKER_BUNDLE"
	EnvOptions = "KBUILD_WORKER_OPTIONS"
	EnvMode    = "KBUILD_WORKER_MODE"
)

// WorkerCommand is the hidden kbuild subcommand a worker process runs.
const WorkerCommand = "worker"

// ErrNoSpec is returned when a worker process was started without its Spec.
var ErrNoSpec = errors.New("worker started without a bundle")

// executable is the binary re-executed for each worker, stubbed in tests.
var executable = os.Executable

var _ Launcher = (*ProcessLauncher)(nil)

// ProcessLauncher runs each worker as a child process of the kbuild binary.
type ProcessLauncher struct {
	Path   string   // binary to run, defaults to the running executable
	Args   []string // arguments after the binary name, defaults to the worker subcommand
	Env    []string // extra environment, appended to the current environment
	Stdout *os.File // defaults to os.Stdout
	Stderr *os.File // defaults to os.Stderr
}

// Launch implements Launcher.
func (l *ProcessLauncher) Launch(ctx context.Context, spec Spec, events chan<- Event) (Handle, error) {
	logger := ctxlog.Logger(ctx).With("bundle", spec.Bundle.Name)

	path := l.Path
	if path == "" {
		exe, err := executable()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrSpawn, spec.Bundle.Name, err)
		}

		path = exe
	}

	args := l.Args
	if args == nil {
		args = []string{WorkerCommand}
	}

	env, err := spec.environ()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSpawn, spec.Bundle.Name, err)
	}

	stdout, stderr := l.Stdout, l.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}

	if stderr == nil {
		stderr = os.Stderr
	}

	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSpawn, spec.Bundle.Name, err)
	}

	proc, err := os.StartProcess(path, append([]string{filepath.Base(path)}, args...), &os.ProcAttr{
		Env:   append(append(os.Environ(), l.Env...), env...),
		Files: []*os.File{os.Stdin, stdout, stderr, w},
	})

	// the child holds its own copy of the write end, EOF arrives once it exits
	_ = w.Close()

	if err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrSpawn, spec.Bundle.Name, err)
	}

	logger.Debug("worker spawned", "pid", proc.Pid)

	h := &processHandle{index: spec.Bundle.Index, proc: proc}
	send(ctx, events, Event{Kind: EventSpawned, Index: h.index, Handle: h})

	go h.monitor(ctx, r, events)

	return h, nil
}

type processHandle struct {
	index int
	proc  *os.Process
}

func (h *processHandle) Index() int { return h.index }

func (h *processHandle) PID() int { return h.proc.Pid }

func (h *processHandle) Signal(sig os.Signal) error {
	if err := h.proc.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err //nolint:wrapcheck
	}

	return nil
}

// monitor relays ipc messages until the channel closes, then reaps the process.
// Every compile event of the worker is therefore sent before its EventExited.
func (h *processHandle) monitor(ctx context.Context, r *os.File, events chan<- Event) {
	logger := ctxlog.Logger(ctx).With("pid", h.proc.Pid)
	dec := ipc.NewDecoder(r)

	for {
		m, err := dec.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Warn("ipc channel failed, ignoring further messages", "error", err)
				_, _ = io.Copy(io.Discard, r)
			}

			break
		}

		switch m.Kind {
		case ipc.KindCompileStarted:
			send(ctx, events, Event{Kind: EventCompileStarted, Index: h.index})
		case ipc.KindCompileDone:
			send(ctx, events, Event{Kind: EventCompileDone, Index: h.index})
		}
	}

	_ = r.Close()

	state, err := h.proc.Wait()
	if err != nil {
		send(ctx, events, Event{Kind: EventExited, Index: h.index, ExitCode: 1, Err: err})
		return
	}

	code, sig := exitStatus(state)
	logger.Debug("worker exited", "exitCode", code, "signal", sig)

	send(ctx, events, Event{Kind: EventExited, Index: h.index, ExitCode: code, Signal: sig})
}

func (s Spec) environ() ([]string, error) {
	b, err := s.Bundle.Encode()
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	o, err := s.Options.Encode()
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return []string{
		EnvBundle + "=" + b,
		EnvOptions + "=" + o,
		EnvMode + "=" + s.Mode.String(),
		ipc.FDEnvVar + "=" + strconv.Itoa(ipc.ChildFD),
	}, nil
}

// SpecFromEnv reads the Spec passed to a worker process.
func SpecFromEnv() (Spec, error) {
	raw := os.Getenv(EnvBundle)
	if raw == "" {
		return Spec{}, ErrNoSpec
	}

	d, err := bundle.DecodeDescriptor(raw)
	if err != nil {
		return Spec{}, err //nolint:wrapcheck
	}

	opts, err := bundle.DecodeOptions(os.Getenv(EnvOptions))
	if err != nil {
		return Spec{}, err //nolint:wrapcheck
	}

	m, err := mode.Parse(os.Getenv(EnvMode))
	if err != nil {
		return Spec{}, err //nolint:wrapcheck
	}

	return Spec{Bundle: d, Options: opts, Mode: m}, nil
}
