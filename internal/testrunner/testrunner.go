// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package testrunner delegates the test command to an external test runner.
package testrunner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/matt-FFFFFF/kbuild/internal/bundle"
	"github.com/matt-FFFFFF/kbuild/internal/commandinpath"
	"github.com/matt-FFFFFF/kbuild/internal/ctxlog"
)

const (
	// DefaultRunner is the test runner command used when none is configured.
	DefaultRunner = "jest"
	// DefaultConfig is the runner configuration file used when --config is not given.
	DefaultConfig = "jest.conf.js"
	configFlag    = "--config"
)

// ErrRunner is returned when the test runner cannot be started.
var ErrRunner = errors.New("could not run tests")

// DefaultConfigPath returns DefaultConfig in the directory containing pluginRoot.
func DefaultConfigPath(pluginRoot string) string {
	if pluginRoot == "" {
		pluginRoot = bundle.DefaultPluginRoot
	}

	abs, err := filepath.Abs(pluginRoot)
	if err != nil {
		abs = pluginRoot
	}

	return filepath.Join(filepath.Dir(abs), DefaultConfig)
}

// RewriteArgs removes any --config argument from args and appends --config with the value
// resolved against cwd, or defaultConfig when there was none. Other arguments keep their order.
func RewriteArgs(args []string, cwd, defaultConfig string) []string {
	out := make([]string, 0, len(args)+2) //nolint:mnd
	config := ""

	for i := 0; i < len(args); i++ {
		a := args[i]

		switch {
		case a == configFlag:
			if i+1 < len(args) {
				config = args[i+1]
				i++
			}
		case strings.HasPrefix(a, configFlag+"="):
			config = strings.TrimPrefix(a, configFlag+"=")
		default:
			out = append(out, a)
		}
	}

	switch {
	case config == "":
		config = defaultConfig
	case !filepath.IsAbs(config):
		config = filepath.Join(cwd, config)
	}

	return append(out, configFlag, config)
}

// Runner runs the test runner in Cwd.
type Runner struct {
	Command       string // defaults to DefaultRunner
	Cwd           string
	DefaultConfig string
	Stdout        io.Writer
	Stderr        io.Writer
}

// Run rewrites args and runs the test runner, returning its exit code. NODE_ENV is set
// to test unless it is already set.
func (r *Runner) Run(ctx context.Context, args []string) (int, error) {
	command := r.Command
	if command == "" {
		command = DefaultRunner
	}

	cwd := r.Cwd
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return 1, errors.Join(ErrRunner, err)
		}

		cwd = wd
	}

	cmd, err := commandinpath.New("test", command, cwd, RewriteArgs(args, cwd, r.DefaultConfig))
	if err != nil {
		return 1, errors.Join(ErrRunner, err)
	}

	if _, ok := os.LookupEnv("NODE_ENV"); !ok {
		cmd.Env = map[string]string{"NODE_ENV": "test"}
	}

	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	ctxlog.Debug(ctx, "running tests", "runner", cmd.Path, "args", cmd.Args)

	res := cmd.Run(ctx)[0]
	if res.ExitCode < 0 {
		return 1, errors.Join(fmt.Errorf("%w: %s", ErrRunner, command), res.Error)
	}

	return res.ExitCode, nil
}
