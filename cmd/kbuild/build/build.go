// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package build implements the build command.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"

	"github.com/matt-FFFFFF/kbuild/cmd/kbuild/cmdstate"
	"github.com/matt-FFFFFF/kbuild/internal/builder"
	"github.com/matt-FFFFFF/kbuild/internal/bundle"
	"github.com/matt-FFFFFF/kbuild/internal/ctxlog"
	"github.com/matt-FFFFFF/kbuild/internal/mode"
	"github.com/matt-FFFFFF/kbuild/internal/orchestrator"
	"github.com/matt-FFFFFF/kbuild/internal/progress"
	"github.com/matt-FFFFFF/kbuild/internal/stats"
	"github.com/matt-FFFFFF/kbuild/internal/tui"
	"github.com/matt-FFFFFF/kbuild/internal/worker"
	"github.com/urfave/cli/v3"
)

const (
	modeArg         = "mode"
	fileFlag        = "file"
	pluginsFlag     = "plugins"
	pluginPathsFlag = "pluginPaths"
	pluginRootFlag  = "pluginRoot"
	singleFlag      = "single"
	hotFlag         = "hot"
	portFlag        = "port"
	tuiFlag         = "tui"
	cliExitStr      = ""

	// SingleEnvVar selects the in-process launcher, like --single.
	SingleEnvVar = "KBUILD_BUILD_SINGLE"
	// PluginRootEnvVar sets the directory plugins given by name are looked up in.
	PluginRootEnvVar = "KBUILD_PLUGIN_ROOT"
)

// launcherFactory returns the worker launcher for a build. Replaced in tests.
var launcherFactory = newLauncher

// BuildCmd is the command that builds the bundles of the selected plugins.
var BuildCmd = newBuildCmd()

func newBuildCmd() *cli.Command {
	return &cli.Command{
		Name:  "build",
		Usage: "Build plugin bundles",
		Description: `Build the bundles of the selected plugins in one of the modes:
` + mode.Usage + `.

Plugins are selected with --plugins, --pluginPaths or a plugin list file given with --file.
Plugin list URLs use Hashicorp's go-getter syntax, see https://github.com/hashicorp/go-getter.

Each bundle is built by its own worker process. Use --single to build every bundle inside
the kbuild process instead.`,
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:      modeArg,
				UsageText: "MODE",
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:      fileFlag,
				Aliases:   []string{"f"},
				Usage:     "Read the plugins to build from a YAML list, local or go-getter URL",
				TakesFile: true,
				OnlyOnce:  true,
			},
			&cli.StringSliceFlag{
				Name:  pluginsFlag,
				Usage: "Names of plugins to build, looked up under the plugin root",
			},
			&cli.StringSliceFlag{
				Name:  pluginPathsFlag,
				Usage: "Directories of plugins to build",
			},
			&cli.StringFlag{
				Name:     pluginRootFlag,
				Usage:    "Directory plugins given by name are looked up in",
				Value:    bundle.DefaultPluginRoot,
				Sources:  cli.EnvVars(PluginRootEnvVar),
				OnlyOnce: true,
			},
			&cli.BoolFlag{
				Name:        singleFlag,
				Aliases:     []string{"s"},
				Usage:       "Build every bundle inside the kbuild process",
				Sources:     cli.EnvVars(SingleEnvVar),
				DefaultText: "false",
				OnlyOnce:    true,
			},
			&cli.BoolFlag{
				Name:        hotFlag,
				Usage:       "Enable hot module reloading, development mode only",
				DefaultText: "false",
				OnlyOnce:    true,
			},
			&cli.IntFlag{
				Name:     portFlag,
				Usage:    "Base port for the development or stats servers",
				OnlyOnce: true,
			},
			&cli.BoolFlag{
				Name:        tuiFlag,
				Aliases:     []string{"t", "interactive"},
				Usage:       "Show the bundle status in an interactive Terminal User Interface (TUI)",
				DefaultText: "false",
				OnlyOnce:    true,
			},
		},
		Action: actionFunc,
	}
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	logger := ctxlog.Logger(ctx).With("command", cmd.Name)

	m, err := mode.Parse(cmd.StringArg(modeArg))
	if err != nil {
		logger.Error(err.Error())
		_ = cli.ShowSubcommandHelp(cmd)

		return cli.Exit(cliExitStr, 1)
	}

	opts := bundle.BuildOptions{
		Hot:  cmd.Bool(hotFlag),
		Port: cmd.Int(portFlag),
	}

	if err := mode.Validate(m, opts); err != nil {
		logger.Error(err.Error())
		return cli.Exit(cliExitStr, 1)
	}

	bundles, err := bundle.Load(ctx, bundle.SourceOptions{
		File:        cmd.String(fileFlag),
		Plugins:     cmd.StringSlice(pluginsFlag),
		PluginPaths: cmd.StringSlice(pluginPathsFlag),
		PluginRoot:  cmd.String(pluginRootFlag),
	})
	if err != nil {
		logger.Error(err.Error())
		return cli.Exit(cliExitStr, 1)
	}

	d := m.Dispatch()

	if !d.SpawnsWorkers {
		if err := builder.Clean(ctx, bundles); err != nil {
			logger.Error(err.Error())
			return cli.Exit(cliExitStr, 1)
		}

		logger.Info("cleaned bundle outputs", "bundles", len(bundles))

		return nil
	}

	options := []orchestrator.Option{
		orchestrator.WithMode(m),
		orchestrator.WithPersistent(d.Persistent),
		orchestrator.WithSignals(cmdstate.Signals(ctx)),
	}

	if d.ServesReports {
		options = append(options, orchestrator.WithCompletion(serveStats()))
	}

	var (
		code   int
		runErr error
	)

	switch cmd.Bool(tuiFlag) {
	case true:
		names := make([]string, 0, len(bundles))
		for _, b := range bundles {
			names = append(names, b.Name)
		}

		runner := tui.NewRunner("kbuild "+m.String(), names)

		launcher, closeOut, err := launcherFactory(cmd.Bool(singleFlag), runner.LogWriter())
		if err != nil {
			logger.Error(err.Error())
			return cli.Exit(cliExitStr, 1)
		}
		defer closeOut()

		code, runErr = runner.Run(ctx, func(ctx context.Context, reporter progress.Reporter) (int, error) {
			o := orchestrator.New(bundles, opts, launcher, append(options, orchestrator.WithReporter(reporter))...)
			return o.Run(ctx)
		})
	default:
		launcher, closeOut, err := launcherFactory(cmd.Bool(singleFlag), nil)
		if err != nil {
			logger.Error(err.Error())
			return cli.Exit(cliExitStr, 1)
		}
		defer closeOut()

		code, runErr = orchestrator.New(bundles, opts, launcher, options...).Run(ctx)
	}

	if runErr != nil {
		logger.Error("build failed", "error", runErr)
		return cli.Exit(cliExitStr, max(code, 1))
	}

	if code != 0 {
		logger.Error(fmt.Sprintf("build finished with exit code %d", code))
		return cli.Exit(cliExitStr, code)
	}

	logger.Info("build finished", "bundles", len(bundles), "mode", m)

	return nil
}

// serveStats starts the stats listener on the first completion only.
func serveStats() orchestrator.CompletionFunc {
	var once sync.Once

	return func(ctx context.Context, bundles []bundle.Descriptor, opts bundle.BuildOptions) {
		once.Do(func() {
			if err := stats.Serve(ctx, bundles, opts); err != nil {
				ctxlog.Error(ctx, "could not start the stats server", "error", err)
				return
			}

			ctxlog.Info(ctx, "stats available", "url", stats.URL(opts.BasePort(bundle.DefaultStatsPort)))
		})
	}
}

// newLauncher returns the in-process launcher when single is set or the platform cannot pass
// the worker channel to a child, otherwise the process launcher. Output goes to out when set.
func newLauncher(single bool, out io.Writer) (worker.Launcher, func(), error) {
	if single || runtime.GOOS == "windows" {
		cb := &builder.CommandBuilder{Stdout: os.Stdout, Stderr: os.Stderr}
		if out != nil {
			cb.Stdout, cb.Stderr = out, out
		}

		return &worker.InProcessLauncher{Builder: cb}, func() {}, nil
	}

	if out == nil {
		return &worker.ProcessLauncher{}, func() {}, nil
	}

	r, w, err := os.Pipe()
	if err != nil {
		return nil, nil, errors.Join(worker.ErrSpawn, err)
	}

	done := make(chan struct{})

	go func() {
		defer close(done)
		_, _ = io.Copy(out, r)
	}()

	closeOut := func() {
		_ = w.Close()
		<-done
		_ = r.Close()
	}

	return &worker.ProcessLauncher{Stdout: w, Stderr: w}, closeOut, nil
}
