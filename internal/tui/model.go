// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/matt-FFFFFF/kbuild/internal/progress"
)

const maxLogLines = 200

// BundleStatus represents the current state of a bundle worker.
type BundleStatus int

const (
	StatusPending BundleStatus = iota
	StatusCompiling
	StatusReady
	StatusFailed
	StatusExited
)

// String returns a string representation of the bundle status.
func (s BundleStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusCompiling:
		return "compiling"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	case StatusExited:
		return "exited"
	default:
		return "unknown"
	}
}

// BundleRow is the display state of a single bundle.
type BundleRow struct {
	Name      string
	Index     int
	Status    BundleStatus
	Pid       int
	Compiles  int // Number of compile-done events seen
	ExitCode  int
	ErrorMsg  string
	StartedAt time.Time // Start of the current compile
	LastBuild time.Duration
}

// Model represents the TUI application state. It is only touched from bubbletea's Update loop.
type Model struct {
	title     string
	rows      []*BundleRow
	byIndex   map[int]*BundleRow
	pending   int
	allReady  bool
	finished  bool
	exitCode  int
	runErr    error
	logs      []string
	width     int
	height    int
	quitting  bool
	onQuit    func()
	spinner   spinner.Model
	styles    *Styles
	timeNowFn func() time.Time
}

// Styles contains all the styling for the TUI.
type Styles struct {
	Title     lipgloss.Style
	Pending   lipgloss.Style
	Compiling lipgloss.Style
	Ready     lipgloss.Style
	Failed    lipgloss.Style
	Muted     lipgloss.Style
	Log       lipgloss.Style
	Help      lipgloss.Style
	Border    lipgloss.Style
}

// NewStyles creates the default styling for the TUI.
func NewStyles() *Styles {
	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			MarginBottom(1),
		Pending: lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")),
		Compiling: lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Bold(true),
		Ready: lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")),
		Failed: lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")),
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("7")).
			Italic(true),
		Log: lipgloss.NewStyle().
			Foreground(lipgloss.Color("7")),
		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")).
			MarginTop(1),
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1),
	}
}

// NewModel creates a model with one pending row per bundle name, in index order.
func NewModel(title string, names []string) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := &Model{
		title:     title,
		byIndex:   make(map[int]*BundleRow, len(names)),
		pending:   len(names),
		spinner:   sp,
		styles:    NewStyles(),
		timeNowFn: time.Now,
	}

	for i, name := range names {
		row := &BundleRow{Name: name, Index: i}
		m.rows = append(m.rows, row)
		m.byIndex[i] = row
	}

	return m
}

// OnQuit registers a function called when the user quits the view.
func (m *Model) OnQuit(fn func()) {
	m.onQuit = fn
}

// Rows returns the bundle rows in index order.
func (m *Model) Rows() []*BundleRow {
	return m.rows
}

func (m *Model) row(e progress.Event) *BundleRow {
	if r, ok := m.byIndex[e.Index]; ok {
		return r
	}

	r := &BundleRow{Name: e.Bundle, Index: e.Index}
	m.rows = append(m.rows, r)
	m.byIndex[e.Index] = r

	return r
}

// applyEvent folds a progress event into the model.
func (m *Model) applyEvent(e progress.Event) {
	if e.Type == progress.EventAllCompiled {
		m.allReady = true
		m.pending = e.Data.Pending

		return
	}

	if e.Index < 0 {
		return
	}

	r := m.row(e)
	now := m.timeNowFn()

	switch e.Type {
	case progress.EventSpawned:
		r.Pid = e.Data.Pid
		r.Status = StatusCompiling
		r.StartedAt = now
	case progress.EventSpawnFailed:
		r.Status = StatusFailed
		if e.Data.Error != nil {
			r.ErrorMsg = e.Data.Error.Error()
		}
	case progress.EventCompileStarted:
		m.allReady = false
		r.Status = StatusCompiling
		r.StartedAt = now
	case progress.EventCompileDone:
		r.Compiles++
		r.Status = StatusReady

		if !r.StartedAt.IsZero() {
			r.LastBuild = now.Sub(r.StartedAt)
		}
	case progress.EventExited:
		r.ExitCode = e.Data.ExitCode
		r.Status = StatusExited

		if e.Data.ExitCode != 0 {
			r.Status = StatusFailed
		}

		if e.Data.Error != nil {
			r.ErrorMsg = e.Data.Error.Error()
		}
	}

	m.pending = e.Data.Pending
}

func (m *Model) appendLog(line string) {
	m.logs = append(m.logs, line)
	if len(m.logs) > maxLogLines {
		m.logs = m.logs[len(m.logs)-maxLogLines:]
	}
}
