// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package ipc is the control channel between the orchestrator and its worker processes.
//
// Workers write one JSON object per line to the file descriptor named by FDEnvVar.
// The vocabulary is closed: compile-started and compile-done. Anything else, including
// malformed lines, is skipped by the Decoder so newer workers can add message kinds.
package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
)

// Kind is the tag of a control message.
type Kind int

const (
	// KindUnknown is never sent; decoded messages with an unrecognised tag map to it.
	KindUnknown Kind = iota
	// KindCompileStarted is sent when a rebuild begins.
	KindCompileStarted
	// KindCompileDone is sent when any compile finishes, including the first.
	KindCompileDone
)

const (
	tagCompileStarted = "compile-started"
	tagCompileDone    = "compile-done"

	// FDEnvVar names the environment variable holding the worker's IPC file descriptor.
	FDEnvVar = "KBUILD_IPC_FD"
	// ChildFD is the descriptor number the IPC pipe gets in the worker process.
	ChildFD = 3

	maxLineSize = 64 * 1024
)

var (
	// ErrUnknownKind is returned when encoding a message without a known tag.
	ErrUnknownKind = errors.New("unknown message kind")
	// ErrNoChannel is returned when the worker was started without an IPC descriptor.
	ErrNoChannel = errors.New("no ipc channel available")
)

// String returns the wire tag of the kind.
func (k Kind) String() string {
	switch k {
	case KindCompileStarted:
		return tagCompileStarted
	case KindCompileDone:
		return tagCompileDone
	default:
		return "unknown"
	}
}

// Message is a single control message.
type Message struct {
	Kind Kind
}

type wireMessage struct {
	Type string `json:"type"`
}

// MarshalJSON implements json.Marshaler.
func (m Message) MarshalJSON() ([]byte, error) {
	if m.Kind != KindCompileStarted && m.Kind != KindCompileDone {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, m.Kind)
	}

	return json.Marshal(wireMessage{Type: m.Kind.String()})
}

// UnmarshalJSON implements json.Unmarshaler. Unknown tags decode to KindUnknown.
func (m *Message) UnmarshalJSON(b []byte) error {
	var w wireMessage
	if err := json.Unmarshal(b, &w); err != nil {
		return err //nolint:wrapcheck
	}

	switch w.Type {
	case tagCompileStarted:
		m.Kind = KindCompileStarted
	case tagCompileDone:
		m.Kind = KindCompileDone
	default:
		m.Kind = KindUnknown
	}

	return nil
}

// Encoder writes messages to a worker's control channel. It is safe for concurrent use.
type Encoder struct {
	mu sync.Mutex
	w  io.Writer
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Send writes one message followed by a newline.
func (e *Encoder) Send(m Message) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err //nolint:wrapcheck
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	_, err = e.w.Write(append(b, '\n'))

	return err //nolint:wrapcheck
}

// Decoder reads messages from the orchestrator side of a control channel.
type Decoder struct {
	s *bufio.Scanner
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineSize)

	return &Decoder{s: s}
}

// Next returns the next recognised message. It skips unknown and malformed lines and
// returns io.EOF once the channel is closed.
func (d *Decoder) Next() (Message, error) {
	for d.s.Scan() {
		var m Message
		if err := json.Unmarshal(d.s.Bytes(), &m); err != nil {
			continue
		}

		if m.Kind == KindUnknown {
			continue
		}

		return m, nil
	}

	if err := d.s.Err(); err != nil {
		return Message{}, err //nolint:wrapcheck
	}

	return Message{}, io.EOF
}

// OpenWorkerChannel opens the IPC descriptor inherited by a worker process.
func OpenWorkerChannel() (*os.File, error) {
	v := os.Getenv(FDEnvVar)
	if v == "" {
		return nil, ErrNoChannel
	}

	fd, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s=%q", ErrNoChannel, FDEnvVar, v)
	}

	f := os.NewFile(uintptr(fd), "kbuild-ipc")
	if f == nil {
		return nil, fmt.Errorf("%w: invalid descriptor %d", ErrNoChannel, fd)
	}

	return f, nil
}
