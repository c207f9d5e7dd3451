// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package bundle

import (
	"encoding/json"
	"errors"
	"strconv"
)

var (
	// ErrDecode is returned when a descriptor or options payload cannot be decoded.
	ErrDecode = errors.New("failed to decode bundle payload")
	// ErrEncode is returned when a descriptor or options payload cannot be encoded.
	ErrEncode = errors.New("failed to encode bundle payload")
)

// Descriptor identifies one bundle and carries its build configuration.
// Descriptors are produced once by Load and treated as read-only afterwards.
type Descriptor struct {
	Name   string `json:"name"`
	Index  int    `json:"index"`
	Config Config `json:"config"`
}

// Config is the build configuration of a bundle, read from its manifest.
// kbuild does not interpret it beyond launching Command in Dir.
type Config struct {
	Dir     string            `json:"dir"`
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Output  string            `json:"output,omitempty"`
	Watch   []string          `json:"watch,omitempty"`
	Ignore  []string          `json:"ignore,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Stats   string            `json:"stats,omitempty"`
}

// BuildOptions are shared read-only by every worker in a run.
type BuildOptions struct {
	Hot  bool `json:"hot"`
	Port int  `json:"port,omitempty"` // zero means unset
}

// DefaultStatsPort is the stats listener base port when no port is given.
const DefaultStatsPort = 8888

// PortSet reports whether a port was supplied.
func (o BuildOptions) PortSet() bool {
	return o.Port != 0
}

// BasePort returns the supplied port, or fallback when unset.
func (o BuildOptions) BasePort(fallback int) int {
	if o.PortSet() {
		return o.Port
	}

	return fallback
}

// ReportPort is the port a bundle's stats report is served on: one above the base port per ordinal.
func (o BuildOptions) ReportPort(index int) int {
	return o.BasePort(DefaultStatsPort) + index + 1
}

// Env returns the options as environment variables for the external bundler.
func (o BuildOptions) Env() map[string]string {
	env := map[string]string{
		"KBUILD_HOT": strconv.FormatBool(o.Hot),
	}

	if o.PortSet() {
		env["KBUILD_PORT"] = strconv.Itoa(o.Port)
	}

	return env
}

// Encode serialises the descriptor for hand-off to a worker process.
func (d Descriptor) Encode() (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", errors.Join(ErrEncode, err)
	}

	return string(b), nil
}

// DecodeDescriptor is the inverse of Descriptor.Encode.
func DecodeDescriptor(s string) (Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return Descriptor{}, errors.Join(ErrDecode, err)
	}

	return d, nil
}

// Encode serialises the options for hand-off to a worker process.
func (o BuildOptions) Encode() (string, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return "", errors.Join(ErrEncode, err)
	}

	return string(b), nil
}

// DecodeOptions is the inverse of BuildOptions.Encode.
func DecodeOptions(s string) (BuildOptions, error) {
	var o BuildOptions
	if err := json.Unmarshal([]byte(s), &o); err != nil {
		return BuildOptions{}, errors.Join(ErrDecode, err)
	}

	return o, nil
}
