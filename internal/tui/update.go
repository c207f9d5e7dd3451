// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/matt-FFFFFF/kbuild/internal/progress"
)

const (
	durationRounding = 100 * time.Millisecond
	reservedLines    = 8 // title, table border, status and help lines
	minLogLines      = 3
)

// ProgressEventMsg wraps a progress event for the tea framework.
type ProgressEventMsg struct {
	Event progress.Event
}

// LogLineMsg carries one line of log output.
type LogLineMsg struct {
	Line string
}

// FinishedMsg indicates that the build has returned.
type FinishedMsg struct {
	ExitCode int
	Err      error
}

// Init implements bubbletea.Model.Init.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements bubbletea.Model.Update.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			if m.onQuit != nil {
				m.onQuit()
			}

			return m, tea.Quit
		}

		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		return m, nil

	case ProgressEventMsg:
		m.applyEvent(msg.Event)
		return m, nil

	case LogLineMsg:
		m.appendLog(msg.Line)
		return m, nil

	case FinishedMsg:
		m.finished = true
		m.exitCode = msg.ExitCode
		m.runErr = msg.Err

		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	}

	return m, nil
}

// View implements bubbletea.Model.View.
func (m *Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var view strings.Builder

	view.WriteString(m.styles.Title.Render(m.title))
	view.WriteString("\n")

	var table strings.Builder
	for _, r := range m.rows {
		m.renderRow(&table, r)
	}

	view.WriteString(m.styles.Border.Render(strings.TrimRight(table.String(), "\n")))
	view.WriteString("\n")
	view.WriteString(m.renderStatus())
	view.WriteString("\n")

	if logs := m.visibleLogs(); len(logs) > 0 {
		view.WriteString("\n")

		for _, l := range logs {
			view.WriteString(m.styles.Log.Render(l))
			view.WriteString("\n")
		}
	}

	help := "'q' to stop the build and quit"
	if m.finished {
		help = "'q' to quit"
	}

	view.WriteString(m.styles.Help.Render(help))

	return view.String()
}

func (m *Model) renderRow(b *strings.Builder, r *BundleRow) {
	var icon, name string

	switch r.Status {
	case StatusPending:
		icon = "·"
		name = m.styles.Pending.Render(r.Name)
	case StatusCompiling:
		icon = m.spinner.View()
		name = m.styles.Compiling.Render(r.Name)
	case StatusReady:
		icon = "✔"
		name = m.styles.Ready.Render(r.Name)
	case StatusFailed:
		icon = "✘"
		name = m.styles.Failed.Render(r.Name)
	default:
		icon = "■"
		name = m.styles.Pending.Render(r.Name)
	}

	detail := r.Status.String()

	switch r.Status {
	case StatusReady:
		detail = fmt.Sprintf("built %d×", r.Compiles)
		if r.LastBuild > 0 {
			detail += fmt.Sprintf(" in %v", r.LastBuild.Round(durationRounding))
		}
	case StatusCompiling:
		if !r.StartedAt.IsZero() {
			detail = fmt.Sprintf("compiling (%v)", m.timeNowFn().Sub(r.StartedAt).Round(durationRounding))
		}
	case StatusExited, StatusFailed:
		detail = fmt.Sprintf("exited %d", r.ExitCode)
		if r.ErrorMsg != "" {
			detail = r.ErrorMsg
		}
	}

	left := lipgloss.NewStyle().Width(nameColumnWidth(m.rows)).Render(fmt.Sprintf("%s %s", icon, name))
	b.WriteString(left)
	b.WriteString("  ")
	b.WriteString(m.styles.Muted.Render(detail))
	b.WriteString("\n")
}

func (m *Model) renderStatus() string {
	switch {
	case m.finished && (m.exitCode != 0 || m.runErr != nil):
		msg := fmt.Sprintf("Build finished with exit code %d", m.exitCode)
		if m.runErr != nil {
			msg += ": " + m.runErr.Error()
		}

		return m.styles.Failed.Render(msg)
	case m.finished:
		return m.styles.Ready.Render("Build finished")
	case m.allReady:
		return m.styles.Ready.Render("All bundles compiled")
	default:
		return m.styles.Compiling.Render(fmt.Sprintf("%d compile(s) outstanding", m.pending))
	}
}

func (m *Model) visibleLogs() []string {
	n := minLogLines
	if m.height > 0 {
		n = max(minLogLines, m.height-reservedLines-len(m.rows))
	}

	if len(m.logs) <= n {
		return m.logs
	}

	return m.logs[len(m.logs)-n:]
}

func nameColumnWidth(rows []*BundleRow) int {
	w := 0
	for _, r := range rows {
		w = max(w, len(r.Name))
	}

	return w + 4 //nolint:mnd // icon, space and padding
}
