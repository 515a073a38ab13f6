// Package session reconstructs the state of Copilot CLI sessions from their
// on-disk storage and the host process table. It owns the metadata priority
// cascade, the topic heuristic, the activity classifier, and the data source
// facade that ties them together.
package session

import (
	"os"
	"path/filepath"
	"time"

	"github.com/schlubbi/copilot-sessions/internal/procscan"
)

// Per-session files under <root>/<session-id>/.
const (
	// WorkspaceFileName is the freeform workspace descriptor.
	WorkspaceFileName = "workspace.yaml"

	// SnapshotFileName is the structured snapshot index.
	SnapshotFileName = "snapshots.json"

	// EventLogFileName is the append-only event log. The agent keeps it open
	// for the session's lifetime, which makes it the marker file for
	// pid→session correlation.
	EventLogFileName = "events.jsonl"
)

// Event types the agent writes to the event log.
const (
	EventSessionStart  = "session.start"
	EventUserMessage   = "user.message"
	EventTurnStart     = "assistant turn start"
	EventTurnEnd       = "assistant turn end"
	EventToolExecution = "tool.execution"
)

// Status is the three-state activity classification.
type Status string

const (
	// StatusWorking means the session's process is actively computing.
	StatusWorking Status = "working"

	// StatusWaiting means the session is idle, awaiting user input.
	StatusWaiting Status = "waiting"

	// StatusDone means no live process is correlated to the session.
	StatusDone Status = "done"
)

// sortPriority orders statuses for display: working first, done last.
func (s Status) sortPriority() int {
	switch s {
	case StatusWorking:
		return 0
	case StatusWaiting:
		return 1
	default:
		return 2
	}
}

// Session is one reconstructed session record. Records are materialized
// fresh on every discovery pass and never cached; consumers correlate by ID,
// never by slice position.
type Session struct {
	ID      string `json:"id"`
	ShortID string `json:"short_id"` // first 12 chars, display only, not unique

	Topic        string `json:"topic,omitempty"`
	FirstMessage string `json:"first_message,omitempty"`
	Branch       string `json:"branch,omitempty"`
	Turns        int    `json:"turns"`

	// LastActivity is nil when no source reported a timestamp.
	LastActivity *time.Time `json:"last_activity,omitempty"`

	Status Status `json:"status"`

	// Pid is 0 when no live process is correlated to the session. Status
	// done implies Pid of 0 and an unknown terminal.
	Pid      int                   `json:"pid,omitempty"`
	TTY      string                `json:"tty,omitempty"`
	Terminal procscan.TerminalKind `json:"terminal"`

	// StartedAt is when the session's process started, derived from the
	// process listing's elapsed time. Nil for dead sessions.
	StartedAt *time.Time `json:"started_at,omitempty"`

	Repository string `json:"repository,omitempty"`
	WorkDir    string `json:"work_dir,omitempty"`
}

// shortIDLen is how much of a session identifier is shown in listings.
const shortIDLen = 12

// ShortID truncates a session identifier for display.
func ShortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}

// DefaultRoot returns the Copilot CLI session storage root.
func DefaultRoot() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".copilot", "history-session-state")
}
