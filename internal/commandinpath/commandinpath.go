// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package commandinpath resolves the external tools kbuild delegates to (bundlers, linters,
// test runners) against PATH.
package commandinpath

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/matt-FFFFFF/kbuild/internal/runbatch"
)

// ErrNotFound is returned when the command cannot be found.
var ErrNotFound = errors.New("command not found in PATH")

// Resolve returns the full path of command. Commands containing a path separator are
// resolved relative to cwd instead of PATH.
func Resolve(command, cwd string) (string, error) {
	if command == "" {
		return "", fmt.Errorf("%w: empty command", ErrNotFound)
	}

	if strings.ContainsRune(command, '/') || strings.ContainsRune(command, filepath.Separator) {
		if !filepath.IsAbs(command) {
			command = filepath.Join(cwd, command)
		}

		if !isExecutable(command) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, command)
		}

		return command, nil
	}

	for _, p := range filepath.SplitList(os.Getenv("PATH")) {
		candidate := filepath.Join(p, command)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrNotFound, command)
}

// New returns an OSCommand running command in cwd, or ErrNotFound if it cannot be resolved.
func New(label, command, cwd string, args []string) (*runbatch.OSCommand, error) {
	path, err := Resolve(command, cwd)
	if err != nil {
		return nil, err
	}

	return &runbatch.OSCommand{
		BaseCommand: &runbatch.BaseCommand{
			Label: label,
			Cwd:   cwd,
		},
		Path: path,
		Args: args,
	}, nil
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}

	// check if the command is executable if not Windows
	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		return false
	}

	return true
}
