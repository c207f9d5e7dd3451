// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package bundle

import "github.com/spf13/afero"

// FsFactory returns the filesystem kbuild reads bundles from and cleans.
// Tests replace it with an in-memory filesystem.
var FsFactory = func() afero.Fs {
	return afero.NewOsFs()
}
