// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package builder

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/matt-FFFFFF/kbuild/internal/bundle"
	"github.com/matt-FFFFFF/kbuild/internal/ctxlog"
)

// ErrClean is returned when an output directory cannot be removed.
var ErrClean = errors.New("clean failed")

// Clean removes the output directory of every bundle. Bundles without an output are skipped.
// Every bundle is attempted and the errors are joined.
func Clean(ctx context.Context, bundles []bundle.Descriptor) error {
	fs := bundle.FsFactory()

	var errs []error

	for _, b := range bundles {
		out := b.Config.Output
		if out == "" {
			ctxlog.Debug(ctx, "no output directory, skipping", "bundle", b.Name)
			continue
		}

		if !filepath.IsAbs(out) {
			out = filepath.Join(b.Config.Dir, out)
		}

		// never remove the bundle itself or anything above it
		if rel, err := filepath.Rel(b.Config.Dir, out); err != nil || rel == "." || rel == ".." || filepath.IsAbs(rel) || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator) {
			errs = append(errs, fmt.Errorf("%w: %s: output %q is not inside the bundle directory", ErrClean, b.Name, b.Config.Output))
			continue
		}

		if err := fs.RemoveAll(out); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrClean, b.Name, err))
			continue
		}

		ctxlog.Info(ctx, "cleaned", "bundle", b.Name, "dir", out)
	}

	return errors.Join(errs...)
}
