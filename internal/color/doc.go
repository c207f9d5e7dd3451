// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package color decides whether kbuild writes ANSI colour and wraps strings in colour codes.
// NO_COLOR disables colour, FORCE_COLOR enables it, otherwise colour follows whether stdout is a
// terminal (golang.org/x/term). Worker output prefixes get a stable colour per bundle index.
package color
