// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package lint implements the lint command.
package lint

import (
	"context"
	"fmt"
	"os"

	"github.com/matt-FFFFFF/kbuild/internal/ctxlog"
	"github.com/matt-FFFFFF/kbuild/internal/lint"
	"github.com/urfave/cli/v3"
)

const (
	writeFlag    = "write"
	encodingFlag = "encoding"
	monitorFlag  = "monitor"
	ignoreFlag   = "ignore"
	linterFlag   = "linter"
	cliExitStr   = ""

	// LinterEnvVar sets the linter command, like --linter.
	LinterEnvVar = "KBUILD_LINTER"
)

// engineFactory returns the lint engine. Replaced in tests.
var engineFactory = func(linter string) lint.Engine {
	return &lint.CommandEngine{Command: linter, Stdout: os.Stdout, Stderr: os.Stderr}
}

// LintCmd is the command that lints source files.
var LintCmd = newLintCmd()

func newLintCmd() *cli.Command {
	return &cli.Command{
		Name:      "lint",
		Usage:     "Lint source files",
		ArgsUsage: "FILES...",
		Description: `Lint the files matching the given paths or glob patterns.
Every file is linted concurrently and the command exits with the highest result:
0 when nothing changed or nothing matched, 1 when files were fixed or have warnings,
2 or the linter's own higher code on errors. With no FILES the command exits 1.

With --monitor the patterns are watched and each saved file is linted on its own
until the command is interrupted.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        writeFlag,
				Aliases:     []string{"w"},
				Usage:       "Write fixes to the files",
				DefaultText: "false",
				OnlyOnce:    true,
			},
			&cli.StringFlag{
				Name:     encodingFlag,
				Aliases:  []string{"e"},
				Usage:    "Source file encoding",
				OnlyOnce: true,
			},
			&cli.BoolFlag{
				Name:        monitorFlag,
				Aliases:     []string{"m"},
				Usage:       "Watch the files and lint them as they change",
				DefaultText: "false",
				OnlyOnce:    true,
			},
			&cli.StringSliceFlag{
				Name:    ignoreFlag,
				Aliases: []string{"i"},
				Usage:   "Glob patterns of files and directories to skip",
			},
			&cli.StringFlag{
				Name:     linterFlag,
				Usage:    "Linter command, run once per file",
				Value:    lint.DefaultLinter,
				Sources:  cli.EnvVars(LinterEnvVar),
				OnlyOnce: true,
			},
		},
		Action: actionFunc,
	}
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	logger := ctxlog.Logger(ctx).With("command", cmd.Name)

	patterns := cmd.Args().Slice()
	if len(patterns) == 0 {
		logger.Error(lint.ErrNoFiles.Error() + ", please specify the files to lint")
		return cli.Exit(cliExitStr, 1)
	}

	c := &lint.Coordinator{
		Engine: engineFactory(cmd.String(linterFlag)),
		Options: lint.Options{
			Write:    cmd.Bool(writeFlag),
			Encoding: cmd.String(encodingFlag),
		},
	}

	files, err := c.Resolve(patterns, cmd.StringSlice(ignoreFlag))
	if err != nil {
		logger.Error(err.Error())
		return cli.Exit(cliExitStr, 1)
	}

	if cmd.Bool(monitorFlag) {
		if err := c.Watch(ctx, nil); err != nil {
			logger.Error(err.Error())
			return cli.Exit(cliExitStr, 1)
		}

		return nil
	}

	if len(files) == 0 {
		logger.Warn("no files match the patterns", "patterns", patterns)
	}

	code, tasks := c.Run(ctx)

	logger.Info(fmt.Sprintf("linted %d file(s)", len(tasks)), "result", code)

	if code != lint.CodeNoChange {
		return cli.Exit(cliExitStr, int(code))
	}

	return nil
}
