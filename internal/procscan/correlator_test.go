package procscan

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePsOutput(t *testing.T) {
	t.Parallel()

	out := []byte(`  412 ttys001    01:23:45 /usr/local/bin/copilot
  413 ??         10:05 copilot
  414 ttys002    03:12 /usr/local/bin/copilot-language-server
  999 ttys003    00:30 copilot
 1200 ttys004    2-01:00:00 copilot
garbage line
`)

	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	records := parsePsOutput(out, "copilot", 999, now)

	require.Len(t, records, 3)

	assert.Equal(t, "ttys001", records[412].TTY)
	assert.Equal(t, now.Add(-(time.Hour + 23*time.Minute + 45*time.Second)), records[412].StartedAt)

	// No controlling TTY is reported as the empty string.
	assert.Equal(t, "", records[413].TTY)
	assert.Equal(t, now.Add(-(10*time.Minute + 5*time.Second)), records[413].StartedAt)

	// dd-hh:mm:ss form.
	assert.Equal(t, now.Add(-(49 * time.Hour)), records[1200].StartedAt)

	// The helper binary and the monitor's own pid never match.
	_, hasHelper := records[414]
	_, hasSelf := records[999]
	assert.False(t, hasHelper)
	assert.False(t, hasSelf)
}

func TestParsePsOutputCommWithSpaces(t *testing.T) {
	t.Parallel()

	out := []byte("  500 ttys001    00:10 /Applications/Some App/copilot\n")
	records := parsePsOutput(out, "copilot", 1, time.Now())
	require.Len(t, records, 1)
	assert.Equal(t, 500, records[500].Pid)
}

func TestParseEtime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in       string
		expected time.Duration
		ok       bool
	}{
		{in: "00:05", expected: 5 * time.Second, ok: true},
		{in: "10:05", expected: 10*time.Minute + 5*time.Second, ok: true},
		{in: "01:23:45", expected: time.Hour + 23*time.Minute + 45*time.Second, ok: true},
		{in: "2-01:00:00", expected: 49 * time.Hour, ok: true},
		{in: "30-00:00:01", expected: 720*time.Hour + time.Second, ok: true},
		{in: "45", ok: false},
		{in: "", ok: false},
		{in: "aa:bb", ok: false},
		{in: "x-01:00:00", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, ok := parseEtime(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, got)
			}
		})
	}
}

func TestParseLsofOutput(t *testing.T) {
	t.Parallel()

	root := "/home/dev/.copilot/history-session-state"
	out := []byte(`p412
n/home/dev/.copilot/config.json
n/home/dev/.copilot/history-session-state/sess-aaa/events.jsonl
p413
n/dev/null
n/home/dev/.copilot/history-session-state/sess-bbb/workspace.yaml
p414
n/home/dev/.copilot/history-session-state/sess-ccc/events.jsonl
n/home/dev/.copilot/history-session-state/sess-ddd/events.jsonl
`)

	sessions := parseLsofOutput(out, root, "events.jsonl")

	assert.Equal(t, "sess-aaa", sessions[412])

	// An open workspace file is not a liveness marker.
	_, has413 := sessions[413]
	assert.False(t, has413)

	// First marker listed wins when a pid holds several.
	assert.Equal(t, "sess-ccc", sessions[414])
}

func TestParseLsofOutputIgnoresMalformedStanzas(t *testing.T) {
	t.Parallel()

	root := "/root/sessions"
	out := []byte(`pnotanumber
n/root/sessions/sess-x/events.jsonl
p500
n/root/sessionsevil/sess-y/events.jsonl
n/root/sessions/events.jsonl
`)

	sessions := parseLsofOutput(out, root, "events.jsonl")
	// No valid pid stanza, a sibling-directory path, and a marker directly
	// under the root all contribute nothing.
	assert.Empty(t, sessions)
}

func TestCorrelatorToolFailure(t *testing.T) {
	t.Parallel()

	c := NewCorrelator("copilot", "/root/sessions", "events.jsonl")
	c.runCommand = func(name string, args ...string) ([]byte, error) {
		return nil, errors.New("executable file not found in $PATH")
	}

	assert.Empty(t, c.RunningAgentProcesses())
	assert.Empty(t, c.PidSessions())
}

func TestCorrelatorEndToEnd(t *testing.T) {
	t.Parallel()

	c := NewCorrelator("copilot", "/home/dev/.copilot/history-session-state", "events.jsonl")
	c.runCommand = func(name string, args ...string) ([]byte, error) {
		switch name {
		case "ps":
			return []byte("54412 ttys001    01:00 copilot\n"), nil
		case "lsof":
			require.Contains(t, args, "copilot")
			return []byte("p54412\nn/home/dev/.copilot/history-session-state/sess-aaa/events.jsonl\n"), nil
		}
		return nil, errors.New("unexpected tool " + name)
	}

	procs := c.RunningAgentProcesses()
	require.Contains(t, procs, 54412)
	assert.Equal(t, "ttys001", procs[54412].TTY)

	sessions := c.PidSessions()
	assert.Equal(t, map[int]string{54412: "sess-aaa"}, sessions)
}
