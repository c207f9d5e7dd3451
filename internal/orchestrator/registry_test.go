// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package orchestrator

import (
	"os"
	"sync"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHandle struct {
	index int
	mu    sync.Mutex
	sigs  []os.Signal
}

func (h *stubHandle) Index() int { return h.index }

func (h *stubHandle) PID() int { return h.index + 1 }

func (h *stubHandle) Signal(sig os.Signal) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sigs = append(h.sigs, sig)

	return nil
}

func (h *stubHandle) signals() []os.Signal {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.sigs
}

func handles(n int) []*stubHandle {
	out := make([]*stubHandle, 0, n)
	for i := range n {
		out = append(out, &stubHandle{index: i})
	}

	return out
}

func TestRegistry_Live(t *testing.T) {
	r := NewRegistry(false)
	hs := handles(3)

	for i := len(hs) - 1; i >= 0; i-- {
		r.Add(hs[i])
	}

	r.SetState(1, StateCompiling)
	st, ok := r.State(1)
	require.True(t, ok)
	assert.Equal(t, StateCompiling, st)

	assert.False(t, r.Exited(t.Context(), 1, 3, nil, syscall.SIGTERM))

	live := r.Live()
	require.Len(t, live, 2)
	assert.Equal(t, 0, live[0].Index())
	assert.Equal(t, 2, live[1].Index())

	// state of an exited worker is final
	r.SetState(1, StateSpawned)
	st, _ = r.State(1)
	assert.Equal(t, StateExited, st)

	r.Remove(2)
	_, ok = r.State(2)
	assert.False(t, ok)

	assert.Equal(t, 3, r.MaxExitCode())
}

func TestRegistry_PersistentTeardown(t *testing.T) {
	r := NewRegistry(true)
	hs := handles(3)

	for _, h := range hs {
		r.Add(h)
	}

	assert.True(t, r.Exited(t.Context(), 1, 0, nil, syscall.SIGQUIT))
	assert.True(t, r.TornDown())

	assert.Empty(t, hs[1].signals())
	assert.Equal(t, []os.Signal{syscall.SIGQUIT}, hs[0].signals())
	assert.Equal(t, []os.Signal{syscall.SIGQUIT}, hs[2].signals())

	// later exits do not fan out again
	assert.False(t, r.Exited(t.Context(), 0, 131, syscall.SIGQUIT, syscall.SIGTERM))
	assert.Len(t, hs[2].signals(), 1)

	// duplicate exit is ignored
	assert.False(t, r.Exited(t.Context(), 1, 9, nil, syscall.SIGTERM))
	assert.Equal(t, 131, r.MaxExitCode())
}

func TestRegistry_ExitSignalWins(t *testing.T) {
	r := NewRegistry(true)
	hs := handles(2)

	for _, h := range hs {
		r.Add(h)
	}

	assert.True(t, r.Exited(t.Context(), 0, 130, syscall.SIGINT, syscall.SIGTERM))
	assert.Equal(t, []os.Signal{syscall.SIGINT}, hs[1].signals())
}

func TestWorkerState_String(t *testing.T) {
	assert.Equal(t, "spawned", StateSpawned.String())
	assert.Equal(t, "compiling", StateCompiling.String())
	assert.Equal(t, "exited", StateExited.String())
	assert.Equal(t, "unknown", WorkerState(42).String())
}
