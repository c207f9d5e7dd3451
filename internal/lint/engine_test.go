// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package lint

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exits with the number stored in the last argument's file
const linterScript = `for f; do :; done; echo "checked $f" >&2; exit "$(cat "$f")"`

func shellEngine(t *testing.T) *CommandEngine {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	return &CommandEngine{
		Command: "/bin/sh",
		Args:    []string{"-c", linterScript, "lint"},
	}
}

func TestCodeFromExit(t *testing.T) {
	assert.Equal(t, CodeNoChange, CodeFromExit(0))
	assert.Equal(t, CodeFixed, CodeFromExit(1))
	assert.Equal(t, CodeError, CodeFromExit(2))
	assert.Equal(t, Code(127), CodeFromExit(127))
	assert.Equal(t, CodeError, CodeFromExit(-1))
}

func TestCode_String(t *testing.T) {
	assert.Equal(t, "unchanged", CodeNoChange.String())
	assert.Equal(t, "fixed", CodeFixed.String())
	assert.Equal(t, "error", CodeError.String())
	assert.Equal(t, "code(7)", Code(7).String())
}

func TestCommandEngine_Lint(t *testing.T) {
	e := shellEngine(t)
	dir := t.TempDir()

	tests := []struct {
		content string
		want    Code
		wantErr bool
	}{
		{content: "0", want: CodeNoChange},
		{content: "1", want: CodeFixed},
		{content: "2", want: CodeError, wantErr: true},
		{content: "5", want: Code(5), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			f := filepath.Join(dir, tt.content+".js")
			require.NoError(t, os.WriteFile(f, []byte(tt.content), 0o600))

			code, err := e.Lint(t.Context(), f, Options{Write: true, Encoding: "utf8"})
			assert.Equal(t, tt.want, code)

			if tt.wantErr {
				require.ErrorIs(t, err, ErrLintTask)
				assert.ErrorContains(t, err, "checked "+f)

				return
			}

			require.NoError(t, err)
		})
	}
}

func TestCommandEngine_LinterMissing(t *testing.T) {
	e := &CommandEngine{Command: "kbuild-no-such-linter"}

	code, err := e.Lint(t.Context(), "a.js", Options{})
	assert.Equal(t, CodeError, code)
	require.ErrorIs(t, err, ErrLintTask)
}
