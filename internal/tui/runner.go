// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/matt-FFFFFF/kbuild/internal/ctxlog"
	"github.com/matt-FFFFFF/kbuild/internal/progress"
)

// RunFunc runs a build, reporting progress to reporter, and returns its exit code.
type RunFunc func(ctx context.Context, reporter progress.Reporter) (int, error)

const forwardBuffer = 1024

// forwarder delivers messages to the program in order without blocking the sender.
type forwarder struct {
	mu      sync.RWMutex
	closed  bool
	ch      chan tea.Msg
	done    chan struct{}
	program *tea.Program
}

func newForwarder(program *tea.Program) *forwarder {
	f := &forwarder{
		ch:      make(chan tea.Msg, forwardBuffer),
		done:    make(chan struct{}),
		program: program,
	}

	go func() {
		defer close(f.done)

		for msg := range f.ch {
			f.program.Send(msg)
		}
	}()

	return f
}

func (f *forwarder) send(msg tea.Msg) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return
	}

	select {
	case f.ch <- msg:
	default:
	}
}

func (f *forwarder) close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}

	f.closed = true
	close(f.ch)
	f.mu.Unlock()

	<-f.done
}

var _ progress.Reporter = (*Reporter)(nil)

// Reporter implements progress.Reporter and forwards events to the TUI.
type Reporter struct {
	fwd *forwarder
}

// Report implements progress.Reporter.Report.
func (tr *Reporter) Report(event progress.Event) {
	tr.fwd.send(ProgressEventMsg{Event: event})
}

// Close implements progress.Reporter.Close. Events are no longer forwarded.
func (tr *Reporter) Close() {}

// logWriter turns log output into LogLineMsg messages, one per line.
type logWriter struct {
	mu      sync.Mutex
	fwd     *forwarder
	partial []byte
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.partial = append(w.partial, p...)

	for {
		i := bytes.IndexByte(w.partial, '\n')
		if i < 0 {
			break
		}

		w.fwd.send(LogLineMsg{Line: string(w.partial[:i])})
		w.partial = w.partial[i+1:]
	}

	return len(p), nil
}

// Runner manages the TUI application and wires it to a build.
type Runner struct {
	model    *Model
	program  *tea.Program
	fwd      *forwarder
	reporter *Reporter
	logs     io.Writer
}

// NewRunner creates a new TUI runner with a row for each bundle name.
func NewRunner(title string, names []string, opts ...tea.ProgramOption) *Runner {
	model := NewModel(title, names)
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	program := tea.NewProgram(model, opts...)
	fwd := newForwarder(program)

	return &Runner{
		model:    model,
		program:  program,
		fwd:      fwd,
		reporter: &Reporter{fwd: fwd},
		logs:     &logWriter{fwd: fwd},
	}
}

// Reporter returns the progress reporter feeding this runner.
func (r *Runner) Reporter() progress.Reporter {
	return r.reporter
}

// LogWriter returns a writer whose lines are shown in the view's log tail.
func (r *Runner) LogWriter() io.Writer {
	return r.logs
}

// Run starts the TUI and the build. Quitting the TUI cancels the build.
// Log output from the build context is routed into the view.
func (r *Runner) Run(ctx context.Context, run RunFunc) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.model.OnQuit(cancel)

	ctx = ctxlog.NewForTUI(ctx, r.logs)

	type outcome struct {
		code int
		err  error
	}

	resultCh := make(chan outcome, 1)

	go func() {
		code, err := run(ctx, r.reporter)
		resultCh <- outcome{code: code, err: err}
	}()

	tuiDone := make(chan error, 1)

	go func() {
		_, err := r.program.Run()
		tuiDone <- err
	}()

	var (
		res    outcome
		tuiErr error
	)

	select {
	case res = <-resultCh:
		r.fwd.send(FinishedMsg{ExitCode: res.code, Err: res.err})

		// Stay on screen until the user quits, or the parent context is cancelled.
		select {
		case tuiErr = <-tuiDone:
		case <-ctx.Done():
			r.program.Quit()
			tuiErr = <-tuiDone
		}

	case tuiErr = <-tuiDone:
		cancel()

		res = <-resultCh
	}

	r.fwd.close()

	if tuiErr != nil && !errors.Is(tuiErr, tea.ErrProgramKilled) {
		return res.code, errors.Join(res.err, tuiErr)
	}

	return res.code, res.err
}
