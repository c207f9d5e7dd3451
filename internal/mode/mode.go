// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package mode resolves the user supplied build mode token and validates
// which build options may be combined with it.
package mode

import (
	"errors"
	"fmt"
	"strings"

	"github.com/matt-FFFFFF/kbuild/internal/bundle"
)

// Mode is one of the canonical build modes.
type Mode string

// The canonical build modes.
const (
	Development    Mode = "development"
	Production     Mode = "production"
	I18nExtraction Mode = "i18n-extraction"
	Clean          Mode = "clean"
	Stats          Mode = "stats"
)

var (
	// ErrMissingMode is returned when no mode token was given.
	ErrMissingMode = errors.New("build mode must be specified")
	// ErrInvalidMode is returned when the mode token is not recognised.
	ErrInvalidMode = errors.New("build mode invalid value")
	// ErrConfig is returned when a build option is not valid for the selected mode.
	ErrConfig = errors.New("invalid build configuration")
)

var aliases = map[string]Mode{
	"d":                    Development,
	"dev":                  Development,
	"development":          Development,
	"p":                    Production,
	"prod":                 Production,
	"production":           Production,
	"i":                    I18nExtraction,
	"i18n":                 I18nExtraction,
	"internationalization": I18nExtraction,
	"i18n-extraction":      I18nExtraction,
	"c":                    Clean,
	"clean":                Clean,
	"s":                    Stats,
	"stats":                Stats,
}

// Usage describes the accepted mode tokens.
const Usage = "d/dev/development, p/prod/production, i/i18n/internationalization, c/clean, s/stats"

// Parse maps a case-insensitive mode token or alias to its canonical Mode.
func Parse(token string) (Mode, error) {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return "", ErrMissingMode
	}

	m, ok := aliases[token]
	if !ok {
		return "", fmt.Errorf("%w: %q, options are: %s", ErrInvalidMode, token, Usage)
	}

	return m, nil
}

// Validate checks the build options against the mode.
// Hot reloading is only valid in development, a port only in development or stats.
func Validate(m Mode, opts bundle.BuildOptions) error {
	if opts.Hot && m != Development {
		return fmt.Errorf("%w: hot module reloading can only be used in development mode", ErrConfig)
	}

	if opts.PortSet() && m != Development && m != Stats {
		return fmt.Errorf("%w: port setting is only used in development or stats mode", ErrConfig)
	}

	return nil
}

// String implements fmt.Stringer.
func (m Mode) String() string {
	return string(m)
}

// Dispatch describes how a mode runs its workers.
type Dispatch struct {
	SpawnsWorkers bool // false for clean, which runs a single cleanup action
	Persistent    bool // a worker exit tears down its siblings and the orchestrator
	Watch         bool // workers keep rebuilding after the first compile
	ServesReports bool // workers serve a stats report and a listener starts on completion
}

// Dispatch returns the dispatch table entry for the mode.
func (m Mode) Dispatch() Dispatch {
	switch m {
	case Clean:
		return Dispatch{}
	case Stats:
		return Dispatch{SpawnsWorkers: true, Persistent: true, ServesReports: true}
	case Development:
		return Dispatch{SpawnsWorkers: true, Persistent: true, Watch: true}
	default:
		return Dispatch{SpawnsWorkers: true}
	}
}
