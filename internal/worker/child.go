// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package worker

import (
	"context"
	"errors"
	"os"

	"github.com/matt-FFFFFF/kbuild/internal/builder"
	"github.com/matt-FFFFFF/kbuild/internal/ctxlog"
	"github.com/matt-FFFFFF/kbuild/internal/ipc"
)

// Child runs the worker side of a ProcessLauncher: it builds the Spec from the environment
// and reports compiles over the inherited ipc channel.
type Child struct {
	Builder builder.Builder
	Signals <-chan os.Signal // a signal stops the build
	Channel *os.File         // defaults to ipc.OpenWorkerChannel
}

// Run builds until the session ends or a signal arrives, and returns the exit code.
func (c *Child) Run(ctx context.Context) (int, error) {
	spec, err := SpecFromEnv()
	if err != nil {
		return 1, err
	}

	ctx = ctxlog.WithBundle(ctx, spec.Bundle.Name, spec.Bundle.Index)

	ch := c.Channel
	if ch == nil {
		if ch, err = ipc.OpenWorkerChannel(); err != nil {
			return 1, err //nolint:wrapcheck
		}
	}
	defer ch.Close() //nolint:errcheck

	enc := ipc.NewEncoder(ch)
	report := func(k ipc.Kind) func() {
		return func() {
			if err := enc.Send(ipc.Message{Kind: k}); err != nil {
				ctxlog.Warn(ctx, "could not report to orchestrator", "message", k.String(), "error", err)
			}
		}
	}

	session, err := c.Builder.Build(ctx, spec.request(), builder.Hooks{
		CompileStarted: report(ipc.KindCompileStarted),
		CompileDone:    report(ipc.KindCompileDone),
	})
	if err != nil {
		return 1, err //nolint:wrapcheck
	}

	signals := c.Signals

	var sig os.Signal

	for sig == nil {
		select {
		case <-session.Done():
			return sessionResult(session)
		case s, ok := <-signals:
			if !ok {
				signals = nil
				continue
			}

			sig = s
		}
	}

	ctxlog.Debug(ctx, "worker stopping", "signal", sig)
	session.Stop()

	if err := session.Wait(); err != nil {
		ctxlog.Warn(ctx, "worker stopped with error", "error", err)
	}

	return SignalExitCode(sig), nil
}

func sessionResult(session *builder.Session) (int, error) {
	if err := session.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return 1, err
	}

	return 0, nil
}
