// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/matt-FFFFFF/kbuild/internal/ctxlog"
	"github.com/matt-FFFFFF/kbuild/internal/signalbroker"
)

const (
	maxBufferSize = 8 * 1024 * 1024 // 8MB
)

var _ Runnable = (*OSCommand)(nil)

var (
	// ErrBufferOverflow is returned when the captured output exceeds the max size.
	ErrBufferOverflow = fmt.Errorf("output exceeds max size of %d bytes", maxBufferSize)
	// ErrCouldNotStartProcess is returned when the process could not be started.
	ErrCouldNotStartProcess = errors.New("could not start process")
	// ErrTimeoutExceeded is returned when the command is killed because its context is done.
	ErrTimeoutExceeded = errors.New("timeout exceeded")
	// ErrFailedToCreatePipe is returned when the operating system pipe could not be created.
	ErrFailedToCreatePipe = errors.New("failed to create pipe")
	// ErrSignalReceived is returned when a operating system signal is received by the child process.
	ErrSignalReceived = errors.New("signal received")
	// ErrDuplicateSignalReceived is returned when a duplicate signal is received, forcing process termination.
	ErrDuplicateSignalReceived = errors.New("duplicate signal received, process forcefully terminated")
)

// OSCommand represents a single operating system process to run.
type OSCommand struct {
	*BaseCommand
	Args             []string       // Arguments to the command, do not include the executable name itself.
	Path             string         // The command to run (e.g. executable full path).
	SuccessExitCodes []int          // Exit codes that indicate success, defaults to 0.
	Stdout           io.Writer      // Optional live copy of stdout, in addition to Result.StdOut.
	Stderr           io.Writer      // Optional live copy of stderr, in addition to Result.StdErr.
	sigCh            chan os.Signal // Channel to receive signals, allows mocking in test.
}

// Run implements the Runnable interface for OSCommand.
func (c *OSCommand) Run(ctx context.Context) Results {
	if c.BaseCommand == nil {
		c.BaseCommand = &BaseCommand{}
	}

	logger := ctxlog.Logger(ctx).
		With("runnableType", "OSCommand").
		With("label", c.GetLabel())

	logger.Debug("command info", "path", c.Path, "cwd", c.Cwd, "args", c.Args)

	if c.SuccessExitCodes == nil {
		c.SuccessExitCodes = []int{0}
	}

	if c.sigCh == nil {
		c.sigCh = signalbroker.New(ctx)
		defer signalbroker.Stop(c.sigCh)
	}

	res := &Result{
		Label: c.GetLabel(),
	}

	env := os.Environ()
	for k, v := range c.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	rOut, wOut, err := os.Pipe()
	if err != nil {
		return c.failed(res, errors.Join(ErrFailedToCreatePipe, err))
	}

	rErr, wErr, err := os.Pipe()
	if err != nil {
		_ = rOut.Close()
		_ = wOut.Close()

		return c.failed(res, errors.Join(ErrFailedToCreatePipe, err))
	}

	args := slices.Concat([]string{filepath.Base(c.Path)}, c.Args)

	ps, err := os.StartProcess(c.Path, args, &os.ProcAttr{
		Dir:   c.Cwd,
		Env:   env,
		Files: []*os.File{os.Stdin, wOut, wErr},
	})

	// The child holds its own copies of the write ends.
	_ = wOut.Close()
	_ = wErr.Close()

	if err != nil {
		_ = rOut.Close()
		_ = rErr.Close()

		return c.failed(res, errors.Join(ErrCouldNotStartProcess, err))
	}

	logger.Debug("process started", "pid", ps.Pid)

	stdout := newCapture(c.Stdout)
	stderr := newCapture(c.Stderr)

	var copyWg sync.WaitGroup

	copyWg.Add(2) //nolint:mnd
	go stdout.drain(&copyWg, rOut)
	go stderr.drain(&copyWg, rErr)

	done := make(chan struct{})
	// wasKilled records why the process was killed, if it was.
	wasKilled := make(chan error, 1)

	// watchdog for process signals and context cancellation
	go func() {
		signalCount := make(map[os.Signal]struct{})

		for {
			select {
			case s := <-c.sigCh:
				if _, ok := signalCount[s]; ok {
					logger.Info("received duplicate signal, killing process", "signal", s.String())
					killPs(ctx, ps)

					select {
					case wasKilled <- ErrDuplicateSignalReceived:
					default:
					}

					return
				}

				signalCount[s] = struct{}{}

				logger.Info("received signal", "signal", s.String())

				if err := ps.Signal(s); err != nil {
					logger.Info("failed to send signal", "signal", s.String(), "error", err)
				}

				select {
				case wasKilled <- ErrSignalReceived:
				default:
				}

			case <-ctx.Done():
				logger.Info("context done, killing process")
				killPs(ctx, ps)

				// a context kill overrides an earlier forwarded signal
				select {
				case <-wasKilled:
				default:
				}

				wasKilled <- errors.Join(ErrTimeoutExceeded, ErrSignalReceived)

				return

			case <-done:
				return
			}
		}
	}()

	state, psErr := ps.Wait()
	close(done)
	copyWg.Wait()

	res.ExitCode = state.ExitCode()
	res.Error = psErr
	res.StdOut, err = stdout.bytes()
	res.Error = errors.Join(res.Error, err)
	res.StdErr, err = stderr.bytes()
	res.Error = errors.Join(res.Error, err)

	logger.Debug("process finished", "exitCode", res.ExitCode)

	select {
	case e := <-wasKilled:
		res.Error = errors.Join(res.Error, e)
		res.ExitCode = -1
	default:
	}

	switch {
	case slices.Contains(c.SuccessExitCodes, res.ExitCode) && res.Error == nil:
		res.Status = ResultStatusSuccess
	default:
		// A non-zero exit code does not generate an error, so this needs to be an OR.
		if res.ExitCode == 0 {
			res.ExitCode = -1
		}

		res.Status = ResultStatusError
	}

	return Results{res}
}

func (c *OSCommand) failed(res *Result, err error) Results {
	res.Error = err
	res.ExitCode = -1
	res.Status = ResultStatusError

	return Results{res}
}

// capture collects up to maxBufferSize bytes of a stream while copying it to an optional writer.
type capture struct {
	mu       sync.Mutex
	buf      []byte
	live     io.Writer
	overflow bool
	err      error
}

func newCapture(live io.Writer) *capture {
	return &capture{live: live}
}

func (c *capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.live != nil {
		if _, err := c.live.Write(p); err != nil {
			c.live = nil
		}
	}

	room := maxBufferSize - len(c.buf)
	if len(p) > room {
		c.overflow = true
		c.buf = append(c.buf, p[:room]...)

		return len(p), nil
	}

	c.buf = append(c.buf, p...)

	return len(p), nil
}

func (c *capture) drain(wg *sync.WaitGroup, r io.ReadCloser) {
	defer wg.Done()
	defer r.Close() //nolint:errcheck

	if _, err := io.Copy(c, r); err != nil {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
	}
}

func (c *capture) bytes() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.overflow {
		return c.buf, ErrBufferOverflow
	}

	return c.buf, c.err
}

// killPs kills the process.
func killPs(ctx context.Context, ps *os.Process) {
	if err := ps.Kill(); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			ctxlog.Logger(ctx).Debug("process already done", "pid", ps.Pid)
			return
		}

		ctxlog.Logger(ctx).Error("process kill error", "pid", ps.Pid, "error", err)

		return
	}

	ctxlog.Logger(ctx).Info("process killed", "pid", ps.Pid)
}
