// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"context"
	"sync"

	"github.com/matt-FFFFFF/kbuild/internal/ctxlog"
)

var _ Runnable = (*ParallelBatch)(nil)

// ParallelBatch represents a collection of commands, which can be run in parallel.
// Child results keep the order of Commands.
type ParallelBatch struct {
	*BaseCommand
	Commands []Runnable // The commands or nested batches to run
	Limit    int        // Maximum number of commands running at once, 0 means unlimited
}

// Run implements the Runnable interface for ParallelBatch.
func (b *ParallelBatch) Run(ctx context.Context) Results {
	if b.BaseCommand == nil {
		b.BaseCommand = &BaseCommand{}
	}

	logger := ctxlog.Logger(ctx).
		With("label", b.GetLabel()).
		With("runnableType", "ParallelBatch")

	for _, cmd := range b.Commands {
		cmd.InheritEnv(b.Env)
	}

	logger.Debug("starting parallel batch", "commands", len(b.Commands), "limit", b.Limit)

	perCmd := make([]Results, len(b.Commands))
	wg := &sync.WaitGroup{}

	var sem chan struct{}
	if b.Limit > 0 {
		sem = make(chan struct{}, b.Limit)
	}

	for i, cmd := range b.Commands {
		wg.Add(1)

		go func(i int, c Runnable) {
			defer wg.Done()

			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					perCmd[i] = Results{{
						Label:    c.GetLabel(),
						ExitCode: -1,
						Error:    ctx.Err(),
						Status:   ResultStatusError,
					}}

					return
				}
			}

			perCmd[i] = c.Run(ctx)
		}(i, cmd)
	}

	wg.Wait()

	children := make(Results, 0, len(b.Commands))
	for _, r := range perCmd {
		children = append(children, r...)
	}

	res := Results{&Result{
		Label:    b.GetLabel(),
		Children: children,
		Status:   ResultStatusSuccess,
	}}
	if children.HasError() {
		res[0].ExitCode = -1
		res[0].Error = ErrResultChildrenHasError
		res[0].Status = ResultStatusError
	}

	logger.Debug("parallel batch finished", "status", res[0].Status)

	return res
}
