// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"time"
)

// Event represents a change in the state of one bundle worker, or of the whole build.
type Event struct {
	Bundle    string    // Bundle name, empty for build-wide events
	Index     int       // Bundle index, -1 for build-wide events
	Type      EventType // Event type indicating what happened
	Message   string    // Human-readable status message
	Timestamp time.Time // When the event occurred
	Data      EventData // Type-specific data
}

// EventType represents the type of progress event.
type EventType int

const (
	// EventSpawned indicates a worker has been launched.
	EventSpawned EventType = iota
	// EventSpawnFailed indicates a worker could not be launched.
	EventSpawnFailed
	// EventCompileStarted indicates a worker began a rebuild.
	EventCompileStarted
	// EventCompileDone indicates a worker finished a compile.
	EventCompileDone
	// EventAllCompiled indicates every outstanding compile has finished.
	EventAllCompiled
	// EventExited indicates a worker exited.
	EventExited
)

// String implements the Stringer interface for EventType.
func (et EventType) String() string {
	switch et {
	case EventSpawned:
		return "spawned"
	case EventSpawnFailed:
		return "spawn-failed"
	case EventCompileStarted:
		return "compile-started"
	case EventCompileDone:
		return "compile-done"
	case EventAllCompiled:
		return "all-compiled"
	case EventExited:
		return "exited"
	default:
		return "unknown"
	}
}

// EventData contains type-specific information for progress events.
type EventData struct {
	Pid      int   // For EventSpawned, zero for in-process workers
	ExitCode int   // For EventExited
	Error    error // For EventSpawnFailed and EventExited
	Pending  int   // Outstanding compiles after this event
}

// Reporter is the interface for sending progress events.
type Reporter interface {
	// Report sends a progress event. Implementations must not block the caller.
	Report(event Event)
	// Close signals that no more events will be sent and cleans up resources.
	Close()
}

// NullReporter is a no-op implementation of Reporter.
type NullReporter struct{}

// Report does nothing.
func (nr *NullReporter) Report(Event) {}

// Close does nothing.
func (nr *NullReporter) Close() {}

// NewNullReporter creates a new NullReporter.
func NewNullReporter() Reporter {
	return &NullReporter{}
}
