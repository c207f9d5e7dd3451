// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package testcmd implements the test command.
package testcmd

import (
	"context"
	"os"
	"strings"

	"github.com/matt-FFFFFF/kbuild/internal/ctxlog"
	"github.com/matt-FFFFFF/kbuild/internal/testrunner"
	"github.com/urfave/cli/v3"
)

const (
	runnerFlag = "--runner"
	cliExitStr = ""

	// RunnerEnvVar sets the test runner command, like --runner.
	RunnerEnvVar = "KBUILD_TEST_RUNNER"
	// PluginRootEnvVar locates the default runner configuration.
	PluginRootEnvVar = "KBUILD_PLUGIN_ROOT"
)

// TestCmd is the command that runs the plugin tests.
var TestCmd = newTestCmd()

func newTestCmd() *cli.Command {
	return &cli.Command{
		Name:      "test",
		Usage:     "Run the plugin tests",
		ArgsUsage: "[--config path] [--runner cmd] [runner arguments...]",
		Description: `Run the test runner, jest by default, passing every argument through.
--config is resolved against the working directory. Without it the ` + testrunner.DefaultConfig + `
next to the plugin root is used. NODE_ENV is set to test unless already set.
The command exits with the runner's exit code.`,
		SkipFlagParsing: true,
		Action:          actionFunc,
	}
}

// splitRunner removes --runner and its value from args.
func splitRunner(args []string) (string, []string) {
	runner := os.Getenv(RunnerEnvVar)
	rest := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		switch a := args[i]; {
		case a == runnerFlag && i+1 < len(args):
			runner = args[i+1]
			i++
		case strings.HasPrefix(a, runnerFlag+"="):
			runner = strings.TrimPrefix(a, runnerFlag+"=")
		default:
			rest = append(rest, a)
		}
	}

	return runner, rest
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	logger := ctxlog.Logger(ctx).With("command", cmd.Name)

	runner, args := splitRunner(cmd.Args().Slice())

	r := &testrunner.Runner{
		Command:       runner,
		DefaultConfig: testrunner.DefaultConfigPath(os.Getenv(PluginRootEnvVar)),
		Stdout:        os.Stdout,
		Stderr:        os.Stderr,
	}

	code, err := r.Run(ctx, args)
	if err != nil {
		logger.Error(err.Error())
		return cli.Exit(cliExitStr, max(code, 1))
	}

	if code != 0 {
		return cli.Exit(cliExitStr, code)
	}

	return nil
}
