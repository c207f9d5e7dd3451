// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package orchestrator

import (
	"github.com/matt-FFFFFF/kbuild/internal/mode"
)

// State counts outstanding compiles across all workers.
type State struct {
	Total      int
	Pending    int
	Mode       mode.Mode
	Persistent bool
}

// NewState returns a State for total workers, with every first compile pending.
func NewState(total int, m mode.Mode, persistent bool) *State {
	return &State{
		Total:      total,
		Pending:    total,
		Mode:       m,
		Persistent: persistent,
	}
}

// CompileStarted records a rebuild.
func (s *State) CompileStarted() {
	s.Pending++
}

// CompileDone records a finished compile and reports whether it was the last outstanding one.
// Pending is not clamped: a done without a matching start takes it below zero and completion
// then needs a matching number of starts.
func (s *State) CompileDone() bool {
	s.Pending--
	return s.Pending == 0
}
