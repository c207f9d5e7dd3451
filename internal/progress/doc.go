// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package progress carries bundle lifecycle events from the orchestrator to
// anything watching a build, such as the terminal UI.
package progress
