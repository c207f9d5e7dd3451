// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package runbatch runs the external tools kbuild delegates to and collects their exit codes.
// A Runnable is an OS process (OSCommand), a Go function (FunctionCommand) or a ParallelBatch
// fanning out over other runnables. Results carry exit codes so callers can reduce them,
// e.g. to the worst code of a batch.
package runbatch
