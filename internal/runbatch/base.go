// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"maps"
)

// BaseCommand holds the fields shared by every Runnable.
// It should be embedded in other command types to provide common functionality.
type BaseCommand struct {
	Label string            // Optional label for the command
	Cwd   string            // The working directory for the command
	Env   map[string]string // Environment variables to be passed to the command
}

// GetLabel returns the label of the command.
func (c *BaseCommand) GetLabel() string {
	if c.Label == "" {
		return "Command"
	}

	return c.Label
}

// InheritEnv sets additional environment variables for the command.
// Variables already set on the command win.
func (c *BaseCommand) InheritEnv(env map[string]string) {
	if len(c.Env) == 0 {
		c.Env = maps.Clone(env)
		return
	}

	for k, v := range env {
		if _, ok := c.Env[k]; !ok {
			c.Env[k] = v
		}
	}
}
