// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package worker implements the hidden command a worker process runs.
package worker

import (
	"context"
	"os"

	"github.com/matt-FFFFFF/kbuild/cmd/kbuild/cmdstate"
	"github.com/matt-FFFFFF/kbuild/internal/builder"
	"github.com/matt-FFFFFF/kbuild/internal/ctxlog"
	"github.com/matt-FFFFFF/kbuild/internal/worker"
	"github.com/urfave/cli/v3"
)

const cliExitStr = ""

// WorkerCmd builds one bundle. It is started by the build command, never by users.
var WorkerCmd = &cli.Command{
	Name:   worker.WorkerCommand,
	Hidden: true,
	Usage:  "Build a single bundle for the build command",
	Action: actionFunc,
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	child := &worker.Child{
		Builder: &builder.CommandBuilder{Stdout: os.Stdout, Stderr: os.Stderr},
		Signals: cmdstate.Signals(ctx),
	}

	code, err := child.Run(ctx)
	if err != nil {
		ctxlog.Logger(ctx).Error("worker failed", "error", err)
	}

	if code != 0 {
		return cli.Exit(cliExitStr, code)
	}

	return nil
}
