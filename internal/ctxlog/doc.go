// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package ctxlog carries a slog logger in a context.Context.
//
// The default is a pretty console handler. Records tagged with a bundle (see WithBundle) are
// prefixed with the bundle name in a colour chosen by its ordinal index, so interleaved output
// from several workers stays readable.
package ctxlog
