// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package ipc

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncoder_WireFormat(t *testing.T) {
	var buf bytes.Buffer

	enc := NewEncoder(&buf)
	require.NoError(t, enc.Send(Message{Kind: KindCompileStarted}))
	require.NoError(t, enc.Send(Message{Kind: KindCompileDone}))

	assert.Equal(t, "{\"type\":\"compile-started\"}\n{\"type\":\"compile-done\"}\n", buf.String())

	err := enc.Send(Message{Kind: KindUnknown})
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestDecoder_IgnoresUnknownMessages(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"compile-done"}`,
		`{"type":"progress","percent":50}`,
		`not json at all`,
		`"done"`,
		``,
		`{"type":"compile-started","extra":true}`,
		`{"type":"compile-done"}`,
	}, "\n")

	dec := NewDecoder(strings.NewReader(input))

	var got []Kind

	for {
		m, err := dec.Next()
		if err == io.EOF {
			break
		}

		require.NoError(t, err)

		got = append(got, m.Kind)
	}

	assert.Equal(t, []Kind{KindCompileDone, KindCompileStarted, KindCompileDone}, got)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "compile-started", KindCompileStarted.String())
	assert.Equal(t, "compile-done", KindCompileDone.String())
	assert.Equal(t, "unknown", Kind(42).String())
}

func TestOpenWorkerChannel(t *testing.T) {
	t.Setenv(FDEnvVar, "")

	_, err := OpenWorkerChannel()
	require.ErrorIs(t, err, ErrNoChannel)

	t.Setenv(FDEnvVar, "three")

	_, err = OpenWorkerChannel()
	require.ErrorIs(t, err, ErrNoChannel)
}
