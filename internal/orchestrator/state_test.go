// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package orchestrator

import (
	"testing"

	"github.com/matt-FFFFFF/kbuild/internal/mode"
	"github.com/stretchr/testify/assert"
)

func TestState(t *testing.T) {
	s := NewState(2, mode.Development, true)
	assert.Equal(t, 2, s.Pending)

	assert.False(t, s.CompileDone())
	assert.True(t, s.CompileDone())

	s.CompileStarted()
	assert.Equal(t, 1, s.Pending)
	assert.True(t, s.CompileDone())

	assert.False(t, s.CompileDone())
	assert.Equal(t, -1, s.Pending)
}
