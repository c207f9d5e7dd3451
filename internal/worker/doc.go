// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package worker launches one bundle build per worker and reports its lifecycle as Events.
//
// ProcessLauncher re-executes the kbuild binary as a child process that talks back over an
// ipc channel. InProcessLauncher calls the builder directly. Both emit the same events:
// EventSpawned first, then any number of compile events, then exactly one EventExited.
package worker
