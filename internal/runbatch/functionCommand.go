// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/matt-FFFFFF/kbuild/internal/ctxlog"
)

var _ Runnable = (*FunctionCommand)(nil)

// ErrFunctionCmdPanic is the error returned when a function command panics.
// It is constructed with the value that caused the panic.
type ErrFunctionCmdPanic struct {
	v any
}

// Error implements the error interface for ErrFunctionCmdPanic.
func (e *ErrFunctionCmdPanic) Error() string {
	prefix := "function command panic:"

	switch x := e.v.(type) {
	case string:
		return fmt.Sprintf("%s %s", prefix, x)
	case error:
		return fmt.Sprintf("%s %s", prefix, x.Error())
	default:
		return fmt.Sprintf("%s %v", prefix, x)
	}
}

// NewErrFunctionCmdPanic creates a new ErrFunctionCmdPanic with the given value.
func NewErrFunctionCmdPanic(v any) error {
	return &ErrFunctionCmdPanic{v: v}
}

// FunctionCommand is a command that runs a function. It implements the Runnable interface.
type FunctionCommand struct {
	*BaseCommand
	Func FunctionCommandFunc // The function to run
}

// FunctionCommandFunc is the type of the function that can be run by FunctionCommand.
// It receives the working directory and environment of the command.
type FunctionCommandFunc func(ctx context.Context, workingDirectory string, env map[string]string) FunctionCommandReturn

// FunctionCommandReturn is the return type of the function run by FunctionCommand.
type FunctionCommandReturn struct {
	ExitCode int   // Exit code to report, -1 is used when Err is set and this is zero
	Err      error // Any error that occurred during execution
}

// Run implements the Runnable interface for FunctionCommand.
func (f *FunctionCommand) Run(ctx context.Context) Results {
	if f.BaseCommand == nil {
		f.BaseCommand = &BaseCommand{}
	}

	logger := ctxlog.Logger(ctx).
		With("runnableType", "FunctionCommand").
		With("label", f.GetLabel())

	if f.Func == nil {
		logger.Debug("no function to run, returning success")
		return Results{{Label: f.GetLabel(), Status: ResultStatusSuccess}}
	}

	// Buffered so the goroutine never blocks if Run has already returned.
	frCh := make(chan FunctionCommandReturn, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("function command panicked", "panic", r)

				frCh <- FunctionCommandReturn{Err: NewErrFunctionCmdPanic(r)}
			}
		}()

		frCh <- f.Func(ctx, f.Cwd, f.Env)
	}()

	select {
	case fr := <-frCh:
		logger.Debug("function command completed", "exitCode", fr.ExitCode, "error", fr.Err)

		res := &Result{
			Label:    f.GetLabel(),
			ExitCode: fr.ExitCode,
			Error:    fr.Err,
			Status:   ResultStatusSuccess,
		}

		if fr.Err != nil {
			if res.ExitCode == 0 {
				res.ExitCode = -1
			}

			res.Status = ResultStatusError
		}

		return Results{res}

	case <-ctx.Done():
		logger.Debug("function command context cancelled", "error", ctx.Err())

		return Results{{
			Label:    f.GetLabel(),
			ExitCode: -1,
			Error:    errors.Join(ErrTimeoutExceeded, ctx.Err()),
			Status:   ResultStatusError,
		}}
	}
}
