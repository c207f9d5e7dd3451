// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"context"
)

// Runnable is a bundler invocation, a lint task or a batch of them.
type Runnable interface {
	// Run blocks until the work finishes or ctx is done.
	// Spawned processes receive the context's cancellation as a signal.
	Run(context.Context) Results
	// InheritEnv adds variables that are not already set.
	InheritEnv(map[string]string)
	// GetLabel names the work in logs and results.
	GetLabel() string
}
