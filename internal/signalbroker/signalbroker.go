// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package signalbroker provides a way to listen for OS signals and handle them gracefully.
// By default it listens for os.Interrupt, syscall.SIGINT, syscall.SIGTERM, and syscall.SIGQUIT signals.
//
// It also contains a watchdog function that can be used to watch for signals
// and cancel a context when two signals of the same type are received.
package signalbroker

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/matt-FFFFFF/kbuild/internal/ctxlog"
)

// DefaultTermination is sent to workers when no other signal is known.
var DefaultTermination os.Signal = syscall.SIGTERM

var termSignals = []os.Signal{
	syscall.SIGINT,
	syscall.SIGTERM,
	syscall.SIGQUIT,
	os.Interrupt,
}

// New creates a new signal broker that listens for OS signals that should terminate the process.
func New(ctx context.Context, sigs ...os.Signal) chan os.Signal {
	ch := make(chan os.Signal, 1)

	if len(sigs) == 0 {
		sigs = termSignals
	}

	ctxlog.Debug(ctx, "signalbroker", "detail", "creating signal broker", "signals", sigs)
	signal.Notify(ch, sigs...)

	return ch
}

// Stop stops delivery of signals to the channel created by New.
func Stop(ch chan os.Signal) {
	signal.Stop(ch)
}

// Tee duplicates every signal received on in to each of the returned channels.
// The returned channels are closed once in is closed or ctx is done.
// Sends never block: a receiver that is not keeping up misses the signal.
func Tee(ctx context.Context, in <-chan os.Signal, n int) []chan os.Signal {
	outs := make([]chan os.Signal, n)
	for i := range outs {
		outs[i] = make(chan os.Signal, 1)
	}

	go func() {
		defer func() {
			for _, out := range outs {
				close(out)
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-in:
				if !ok {
					return
				}

				for _, out := range outs {
					select {
					case out <- sig:
					default:
					}
				}
			}
		}
	}()

	return outs
}
