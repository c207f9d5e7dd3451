// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package commandinpath

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), mode))
}

func TestResolve(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable bit checks do not apply on windows")
	}

	tempDir := t.TempDir()
	writeFile(t, filepath.Join(tempDir, "webpack"), 0o755)
	writeFile(t, filepath.Join(tempDir, "notexec"), 0o644)
	require.NoError(t, os.Mkdir(filepath.Join(tempDir, "adir"), 0o755))

	t.Setenv("PATH", tempDir)

	tests := []struct {
		name     string
		command  string
		cwd      string
		wantPath string
		wantErr  bool
	}{
		{name: "found in PATH", command: "webpack", wantPath: filepath.Join(tempDir, "webpack")},
		{name: "not executable", command: "notexec", wantErr: true},
		{name: "directory", command: "adir", wantErr: true},
		{name: "missing", command: "rollup", wantErr: true},
		{name: "empty", command: "", wantErr: true},
		{name: "relative to cwd", command: "./webpack", cwd: tempDir, wantPath: filepath.Join(tempDir, "webpack")},
		{name: "absolute", command: filepath.Join(tempDir, "webpack"), wantPath: filepath.Join(tempDir, "webpack")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.command, tt.cwd)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrNotFound)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, got)
		})
	}
}

func TestNew(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable bit checks do not apply on windows")
	}

	tempDir := t.TempDir()
	writeFile(t, filepath.Join(tempDir, "eslint"), 0o755)
	t.Setenv("PATH", tempDir)

	cmd, err := New("lint a.js", "eslint", "/work", []string{"a.js"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tempDir, "eslint"), cmd.Path)
	assert.Equal(t, "/work", cmd.Cwd)
	assert.Equal(t, "lint a.js", cmd.GetLabel())
	assert.Equal(t, []string{"a.js"}, cmd.Args)

	_, err = New("missing", "nope", "", nil)
	require.ErrorIs(t, err, ErrNotFound)
}
