// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package orchestrator runs one worker per bundle and follows their compiles.
//
// A single event loop owns the State and the Registry. The first compile of every worker
// is not announced, so State.Pending starts at the number of bundles and every worker's
// first compile-done counts it down. A rebuild announces itself with compile-started.
// When Pending reaches zero the completion action runs, once per pass.
package orchestrator
