package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEventLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), EventLogFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestTailEventType(t *testing.T) {
	t.Parallel()

	t.Run("last event wins", func(t *testing.T) {
		t.Parallel()
		path := writeEventLog(t,
			`{"type":"user.message","timestamp":"2026-08-29T09:00:00Z","text":"hi"}`+"\n"+
				`{"type":"assistant turn end","timestamp":"2026-08-29T09:01:00Z"}`+"\n")

		typ, ok := tailEventType(path)
		require.True(t, ok)
		assert.Equal(t, EventTurnEnd, typ)
	})

	t.Run("trailing garbage skipped", func(t *testing.T) {
		t.Parallel()
		path := writeEventLog(t,
			`{"type":"tool.execution","timestamp":"2026-08-29T09:00:00Z"}`+"\n"+
				`{"type":"assistant turn`+"\n")

		typ, ok := tailEventType(path)
		require.True(t, ok)
		assert.Equal(t, EventToolExecution, typ)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, ok := tailEventType(filepath.Join(t.TempDir(), "absent.jsonl"))
		assert.False(t, ok)
	})

	t.Run("empty file", func(t *testing.T) {
		t.Parallel()
		_, ok := tailEventType(writeEventLog(t, ""))
		assert.False(t, ok)
	})

	t.Run("only garbage", func(t *testing.T) {
		t.Parallel()
		_, ok := tailEventType(writeEventLog(t, "not json\nalso not json\n"))
		assert.False(t, ok)
	})
}

func TestTailEventTypeLargeFile(t *testing.T) {
	t.Parallel()

	// Pad the log well past the tail window so the read seeks mid-file and
	// the first fragment it sees is a partial line.
	var b strings.Builder
	filler := `{"type":"tool.execution","timestamp":"2026-08-29T09:00:00Z","text":"` +
		strings.Repeat("x", 200) + `"}` + "\n"
	for b.Len() < 4*tailReadBytes {
		b.WriteString(filler)
	}
	b.WriteString(`{"type":"assistant turn end","timestamp":"2026-08-29T10:00:00Z"}` + "\n")

	typ, ok := tailEventType(writeEventLog(t, b.String()))
	require.True(t, ok)
	assert.Equal(t, EventTurnEnd, typ)
}

func TestScanEventLog(t *testing.T) {
	t.Parallel()

	path := writeEventLog(t,
		`{"type":"session.start","timestamp":"2026-08-29T09:00:00Z"}`+"\n"+
			`{"type":"user.message","timestamp":"2026-08-29T09:00:05Z","text":"first ask"}`+"\n"+
			"corrupt line\n"+
			`{"type":"user.message","timestamp":"2026-08-29T09:05:00Z","text":"second ask"}`+"\n")

	summary, ok := scanEventLog(path)
	require.True(t, ok)
	assert.Equal(t, 2, summary.userMessages)
	assert.Equal(t, "first ask", summary.firstMessage)
}

func TestScanEventLogSkipsOversizedLine(t *testing.T) {
	t.Parallel()

	// One line well past the cap sits between two valid events; only that
	// line is lost.
	var b strings.Builder
	b.WriteString(`{"type":"user.message","timestamp":"2026-08-29T09:00:00Z","text":"first ask"}` + "\n")
	b.WriteString(strings.Repeat("x", maxEventLineSize+16) + "\n")
	b.WriteString(`{"type":"user.message","timestamp":"2026-08-29T09:10:00Z","text":"after the blob"}` + "\n")

	summary, ok := scanEventLog(writeEventLog(t, b.String()))
	require.True(t, ok)
	assert.Equal(t, 2, summary.userMessages)
	assert.Equal(t, "first ask", summary.firstMessage)
}

func TestScanEventLogMissing(t *testing.T) {
	t.Parallel()

	_, ok := scanEventLog(filepath.Join(t.TempDir(), "absent.jsonl"))
	assert.False(t, ok)
}
