// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main contains the kbuild command-line interface (CLI).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/matt-FFFFFF/kbuild"
	"github.com/matt-FFFFFF/kbuild/cmd/kbuild/build"
	"github.com/matt-FFFFFF/kbuild/cmd/kbuild/cmdstate"
	"github.com/matt-FFFFFF/kbuild/cmd/kbuild/lint"
	"github.com/matt-FFFFFF/kbuild/cmd/kbuild/testcmd"
	"github.com/matt-FFFFFF/kbuild/cmd/kbuild/worker"
	"github.com/matt-FFFFFF/kbuild/internal/ctxlog"
	"github.com/matt-FFFFFF/kbuild/internal/signalbroker"
	"github.com/urfave/cli/v3"
)

// rootCmd is the root command for the CLI.
var rootCmd = &cli.Command{
	Commands: []*cli.Command{
		build.BuildCmd,
		lint.LintCmd,
		testcmd.TestCmd,
		worker.WorkerCmd,
	},
	Writer:    os.Stdout,
	ErrWriter: os.Stderr,
	Name:      "kbuild",
	Description: `kbuild builds the frontend bundles of a set of plugins.
Each plugin describes its bundle in a kbuild.yaml manifest. kbuild runs one worker
per bundle, follows their compiles and tears them down together.
It also lints source files and runs the plugin test suite.`,
	Usage:     "kbuild build dev --plugins myplugin",
	Copyright: "Copyright (c) matt-FFFFFF 2025. All rights reserved.",
	Authors: []any{
		"Matt White (matt-FFFFFF)",
	},
	EnableShellCompletion: true,
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = ctxlog.New(ctx, ctxlog.DefaultLogger)
	defer cancel()

	sigCh := signalbroker.New(ctx)
	sigs := signalbroker.Tee(ctx, sigCh, 2) //nolint:mnd

	// a repeated signal cancels everything, the first is forwarded to the workers
	go signalbroker.Watch(ctx, sigs[0], cancel)

	ctx = cmdstate.WithSignals(ctx, sigs[1])

	rootCmd.Version = fmt.Sprintf("%s (commit: %s)", kbuild.Version, kbuild.Commit)

	err := rootCmd.Run(ctx, os.Args) // exit codes are handled by the cli framework

	if ctx.Err() != nil {
		ctxlog.Logger(ctx).Error("command terminated due to cancellation", "error", ctx.Err())
		os.Exit(1)
	}

	if err != nil {
		ctxlog.Logger(ctx).Error("command execution failed", "error", err)
		os.Exit(1)
	}
}
