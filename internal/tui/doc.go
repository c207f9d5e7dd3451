// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package tui provides a live terminal view of a kbuild run. It shows one row per
// bundle with its worker state, how many compiles it has finished, and a tail of
// the log output, fed by progress events from the orchestrator.
package tui
