package session

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schlubbi/copilot-sessions/internal/logging"
)

var metaLog = logging.ForComponent(logging.CompMeta)

// Metadata is the merged per-session record read from disk. Zero values mean
// "unknown"; a zero LastActivity means no source reported a timestamp.
type Metadata struct {
	Topic        string
	FirstMessage string
	Branch       string
	Turns        int
	LastActivity time.Time
	Repository   string
	WorkDir      string
}

// Reader loads session metadata from the storage root.
type Reader struct {
	Root string
}

// metadataSource is one entry of the priority cascade. Sources run in order;
// each only fills fields the earlier ones left empty (turn count is monotone
// instead: later sources may only raise it). load reports whether the
// backing file existed, so a source can be a fallback for another.
type metadataSource struct {
	name        string
	fallbackFor string
	load        func(dir string, m *Metadata) bool
}

// metadataSources is the fixed priority order: workspace descriptor first,
// snapshot index second, event log only when no snapshot index exists.
// Keeping the cascade as data makes the who-wins contract auditable in one
// place instead of being spread over conditionals.
var metadataSources = []metadataSource{
	{name: "workspace", load: loadWorkspaceDescriptor},
	{name: "snapshots", load: loadSnapshotIndex},
	{name: "events", fallbackFor: "snapshots", load: loadEventLogFallback},
}

// Read merges the session's on-disk sources into one record. A missing or
// malformed source contributes nothing; it never fails the read.
func (r *Reader) Read(id string) Metadata {
	dir := filepath.Join(r.Root, id)

	var meta Metadata
	applied := make(map[string]bool, len(metadataSources))
	for _, src := range metadataSources {
		if src.fallbackFor != "" && applied[src.fallbackFor] {
			continue
		}
		if src.load(dir, &meta) {
			applied[src.name] = true
		}
	}
	return meta
}

// EventLogPath returns the path of a session's event log.
func (r *Reader) EventLogPath(id string) string {
	return filepath.Join(r.Root, id, EventLogFileName)
}

// loadWorkspaceDescriptor reads the line-oriented `key: value` workspace
// file. The summary becomes the topic only when it is non-empty and not the
// literal empty-quote marker the agent writes before a summary exists.
func loadWorkspaceDescriptor(dir string, m *Metadata) bool {
	f, err := os.Open(filepath.Join(dir, WorkspaceFileName))
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "summary":
			value = strings.Trim(value, `"`)
			if value != "" && m.Topic == "" {
				m.Topic = value
			}
		case "repository":
			if m.Repository == "" {
				m.Repository = value
			}
		case "branch":
			if m.Branch == "" {
				m.Branch = value
			}
		case "cwd":
			if m.WorkDir == "" {
				m.WorkDir = value
			}
		case "updated_at":
			if t, err := time.Parse(time.RFC3339, value); err == nil && m.LastActivity.IsZero() {
				m.LastActivity = t
			}
		}
	}
	return true
}

// snapshotIndex mirrors the snapshot file's JSON shape.
type snapshotIndex struct {
	Version   int        `json:"version"`
	Snapshots []snapshot `json:"snapshots"`
}

type snapshot struct {
	UserMessage string `json:"userMessage"`
	Timestamp   string `json:"timestamp"`
	Branch      string `json:"branch"`
}

// loadSnapshotIndex reads the structured snapshot index. The first
// snapshot's user message seeds the topic when the descriptor didn't; the
// last snapshot fills branch and timestamp gaps; turn count is the snapshot
// count.
func loadSnapshotIndex(dir string, m *Metadata) bool {
	path := filepath.Join(dir, SnapshotFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}

	var index snapshotIndex
	if err := json.Unmarshal(data, &index); err != nil {
		metaLog.Debug("snapshot_index_malformed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return false
	}
	if len(index.Snapshots) == 0 {
		return true
	}

	first := index.Snapshots[0]
	if m.FirstMessage == "" {
		m.FirstMessage = first.UserMessage
	}
	if m.Topic == "" {
		m.Topic = ExtractTopic(first.UserMessage)
	}

	if len(index.Snapshots) > m.Turns {
		m.Turns = len(index.Snapshots)
	}

	last := index.Snapshots[len(index.Snapshots)-1]
	if m.Branch == "" {
		m.Branch = last.Branch
	}
	if m.LastActivity.IsZero() {
		if t, err := time.Parse(time.RFC3339, last.Timestamp); err == nil {
			m.LastActivity = t
		}
	}
	return true
}

// loadEventLogFallback derives what it can from the raw event log: the user
// message count bounds the turn count from below, and the first user message
// seeds the topic when nothing else did.
func loadEventLogFallback(dir string, m *Metadata) bool {
	summary, ok := scanEventLog(filepath.Join(dir, EventLogFileName))
	if !ok {
		return false
	}

	if summary.userMessages > m.Turns {
		m.Turns = summary.userMessages
	}
	if m.FirstMessage == "" {
		m.FirstMessage = summary.firstMessage
	}
	if m.Topic == "" && summary.firstMessage != "" {
		m.Topic = ExtractTopic(summary.firstMessage)
	}
	return true
}
