// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package builder is the build entry point shared by both worker adapters.
// It runs a bundle's external bundler once, or keeps rebuilding it on file changes,
// and reports each compile through Hooks.
package builder
