// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package lint runs a linter over a set of files and reduces the per-file results to a
// single exit code. In monitor mode it lints each changed file as it is saved instead.
package lint
