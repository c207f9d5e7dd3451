// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package lint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/matt-FFFFFF/kbuild/internal/commandinpath"
)

// Code is the outcome of linting one file. Codes are ordered by severity.
type Code int

const (
	// CodeNoChange means the file was clean.
	CodeNoChange Code = iota
	// CodeFixed means the linter fixed the file or reported warnings.
	CodeFixed
	// CodeError means the file has errors or could not be linted.
	CodeError
)

// String returns the name of the code.
func (c Code) String() string {
	switch c {
	case CodeNoChange:
		return "unchanged"
	case CodeFixed:
		return "fixed"
	case CodeError:
		return "error"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// CodeFromExit maps a linter exit code to a Code. Codes above CodeError belong to the linter
// and are kept as they are.
func CodeFromExit(exit int) Code {
	if exit < 0 {
		return CodeError
	}

	return Code(exit)
}

// ErrLintTask is returned when a file could not be linted cleanly.
var ErrLintTask = errors.New("lint task failed")

// Options are passed to the linter for every file.
type Options struct {
	Write    bool   // apply fixes in place
	Encoding string // source encoding, empty for the linter default
}

// Engine lints a single file.
type Engine interface {
	Lint(ctx context.Context, file string, opts Options) (Code, error)
}

// DefaultLinter is the linter command used when none is configured.
const DefaultLinter = "eslint"

var _ Engine = (*CommandEngine)(nil)

// CommandEngine runs an external linter once per file.
type CommandEngine struct {
	Command string   // defaults to DefaultLinter
	Args    []string // passed before the kbuild flags and the file
	Cwd     string
	Stdout  io.Writer
	Stderr  io.Writer
}

// Lint implements Engine. Exit code 0 is CodeNoChange, 1 is CodeFixed and higher codes are
// returned unchanged with an error. A linter that cannot be started is CodeError.
func (e *CommandEngine) Lint(ctx context.Context, file string, opts Options) (Code, error) {
	command := e.Command
	if command == "" {
		command = DefaultLinter
	}

	args := append([]string(nil), e.Args...)
	if opts.Write {
		args = append(args, "--fix")
	}

	if opts.Encoding != "" {
		args = append(args, "--encoding", opts.Encoding)
	}

	args = append(args, file)

	cmd, err := commandinpath.New(filepath.Base(file), command, e.Cwd, args)
	if err != nil {
		return CodeError, fmt.Errorf("%w: %s: %w", ErrLintTask, file, err)
	}

	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr
	cmd.SuccessExitCodes = []int{0, 1}

	res := cmd.Run(ctx)[0]

	if res.ExitCode < 0 {
		return CodeError, errors.Join(fmt.Errorf("%w: %s", ErrLintTask, file), res.Error)
	}

	code := CodeFromExit(res.ExitCode)
	if code >= CodeError {
		msg := strings.TrimSpace(string(res.StdErr))
		if msg == "" {
			msg = fmt.Sprintf("exit code %d", res.ExitCode)
		}

		return code, fmt.Errorf("%w: %s: %s", ErrLintTask, file, msg)
	}

	return code, nil
}
