package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSessionFile(t *testing.T, root, id, name, content string) {
	t.Helper()
	dir := filepath.Join(root, id)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestReadWorkspaceDescriptor(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeSessionFile(t, root, "sess-1", WorkspaceFileName,
		"summary: \"Fix login redirect\"\n"+
			"repository: github.com/acme/webapp\n"+
			"branch: fix/login-redirect\n"+
			"cwd: /home/dev/webapp\n"+
			"updated_at: 2026-08-29T10:30:00Z\n")

	r := &Reader{Root: root}
	meta := r.Read("sess-1")

	assert.Equal(t, "Fix login redirect", meta.Topic)
	assert.Equal(t, "github.com/acme/webapp", meta.Repository)
	assert.Equal(t, "fix/login-redirect", meta.Branch)
	assert.Equal(t, "/home/dev/webapp", meta.WorkDir)
	assert.Equal(t, time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC), meta.LastActivity)
}

func TestReadEmptyQuoteSummaryIsNotATopic(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeSessionFile(t, root, "sess-1", WorkspaceFileName,
		"summary: \"\"\nbranch: main\n")

	meta := (&Reader{Root: root}).Read("sess-1")

	assert.Empty(t, meta.Topic)
	assert.Equal(t, "main", meta.Branch)
}

func TestReadSnapshotIndex(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeSessionFile(t, root, "sess-1", SnapshotFileName, `{
		"version": 1,
		"snapshots": [
			{"userMessage": "I want to fix the build", "timestamp": "2026-08-29T09:00:00Z", "branch": "main"},
			{"userMessage": "now run the tests", "timestamp": "2026-08-29T09:05:00Z", "branch": "fix/build"}
		]
	}`)

	meta := (&Reader{Root: root}).Read("sess-1")

	assert.Equal(t, "Fix the build", meta.Topic)
	assert.Equal(t, "I want to fix the build", meta.FirstMessage)
	assert.Equal(t, 2, meta.Turns)
	// Branch and timestamp come from the newest snapshot.
	assert.Equal(t, "fix/build", meta.Branch)
	assert.Equal(t, time.Date(2026, 8, 29, 9, 5, 0, 0, time.UTC), meta.LastActivity)
}

func TestReadWorkspaceWinsOverSnapshots(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeSessionFile(t, root, "sess-1", WorkspaceFileName,
		"summary: \"Curated summary\"\nbranch: curated\n")
	writeSessionFile(t, root, "sess-1", SnapshotFileName, `{
		"version": 1,
		"snapshots": [
			{"userMessage": "something else entirely", "timestamp": "2026-08-29T09:00:00Z", "branch": "derived"}
		]
	}`)

	meta := (&Reader{Root: root}).Read("sess-1")

	assert.Equal(t, "Curated summary", meta.Topic)
	assert.Equal(t, "curated", meta.Branch)
	// Snapshots still fill what the descriptor left open.
	assert.Equal(t, "something else entirely", meta.FirstMessage)
	assert.Equal(t, 1, meta.Turns)
}

func TestReadEventLogFallbackOnlyWithoutSnapshots(t *testing.T) {
	t.Parallel()

	events := `{"type":"session.start","timestamp":"2026-08-29T09:00:00Z"}
{"type":"user.message","timestamp":"2026-08-29T09:00:05Z","text":"please add pagination"}
{"type":"assistant turn end","timestamp":"2026-08-29T09:01:00Z"}
{"type":"user.message","timestamp":"2026-08-29T09:02:00Z","text":"and sort by date"}
`

	t.Run("no snapshot index", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		writeSessionFile(t, root, "sess-1", EventLogFileName, events)

		meta := (&Reader{Root: root}).Read("sess-1")
		assert.Equal(t, "Add pagination", meta.Topic)
		assert.Equal(t, "please add pagination", meta.FirstMessage)
		assert.Equal(t, 2, meta.Turns)
	})

	t.Run("snapshot index present", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		writeSessionFile(t, root, "sess-1", SnapshotFileName, `{"version":1,"snapshots":[
			{"userMessage":"snapshot message", "timestamp":"2026-08-29T09:00:00Z", "branch":"main"}
		]}`)
		writeSessionFile(t, root, "sess-1", EventLogFileName, events)

		meta := (&Reader{Root: root}).Read("sess-1")
		// The event log is a fallback for the snapshot index, not a peer:
		// once the index loaded, the raw log contributes nothing.
		assert.Equal(t, "Snapshot message", meta.Topic)
		assert.Equal(t, 1, meta.Turns)
	})
}

func TestReadMalformedSnapshotIndexFallsThrough(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeSessionFile(t, root, "sess-1", SnapshotFileName, `{"version": 1, "snapshots": [`)
	writeSessionFile(t, root, "sess-1", EventLogFileName,
		`{"type":"user.message","timestamp":"2026-08-29T09:00:00Z","text":"fix the parser"}`+"\n")

	meta := (&Reader{Root: root}).Read("sess-1")

	// A file that fails to parse counts as absent, so the event log runs.
	assert.Equal(t, "Fix the parser", meta.Topic)
	assert.Equal(t, 1, meta.Turns)
}

func TestReadMissingSessionDir(t *testing.T) {
	t.Parallel()

	meta := (&Reader{Root: t.TempDir()}).Read("no-such-session")
	assert.Equal(t, Metadata{}, meta)
}

func TestReadWorkspaceIgnoresMalformedLines(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeSessionFile(t, root, "sess-1", WorkspaceFileName,
		"this line has no separator\nbranch: main\n\nunknown_key: ignored\n")

	meta := (&Reader{Root: root}).Read("sess-1")
	assert.Equal(t, "main", meta.Branch)
	assert.Empty(t, meta.Topic)
}
