package procscan

import (
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ProcessRecord describes one running agent process found in the ps listing.
// It lives for a single discovery pass.
type ProcessRecord struct {
	Pid       int
	TTY       string
	StartedAt time.Time
}

// Correlator bridges the host process state to session identifiers through
// the OS enumeration tools. ps and lsof stay external on purpose: they are
// battle-tested utilities, not logic worth reimplementing. A missing tool
// yields empty results, never a failed pass.
type Correlator struct {
	// AgentName is the executable name of the monitored CLI (e.g. "copilot").
	AgentName string

	// SessionRoot is the session storage directory whose open files identify
	// sessions.
	SessionRoot string

	// MarkerName is the per-session file the agent keeps open (the event
	// log).
	MarkerName string

	// runCommand is swapped out in tests.
	runCommand func(name string, args ...string) ([]byte, error)
}

// NewCorrelator returns a Correlator for the given agent and storage layout.
func NewCorrelator(agentName, sessionRoot, markerName string) *Correlator {
	return &Correlator{
		AgentName:   agentName,
		SessionRoot: sessionRoot,
		MarkerName:  markerName,
		runCommand:  runTool,
	}
}

func runTool(name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, err
	}
	// lsof exits non-zero when some files can't be stat'd; partial output is
	// still usable.
	out, err := exec.Command(name, args...).Output()
	if len(out) > 0 {
		return out, nil
	}
	return out, err
}

// RunningAgentProcesses lists live agent processes keyed by pid, with their
// controlling TTY and start time. The monitor's own pid is excluded so the
// listing mechanism never matches itself.
func (c *Correlator) RunningAgentProcesses() map[int]ProcessRecord {
	out, err := c.runCommand("ps", "-axo", "pid=,tty=,etime=,comm=")
	if err != nil {
		procLog.Debug("ps_unavailable", slog.String("error", err.Error()))
		return map[int]ProcessRecord{}
	}
	return parsePsOutput(out, c.AgentName, os.Getpid(), time.Now())
}

// parsePsOutput extracts agent processes from `ps -axo pid=,tty=,etime=,comm=`
// output. selfPid rows are dropped.
func parsePsOutput(out []byte, agentName string, selfPid int, now time.Time) map[int]ProcessRecord {
	records := make(map[int]ProcessRecord)
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}

		pid, err := strconv.Atoi(fields[0])
		if err != nil || pid == selfPid {
			continue
		}

		// comm may contain spaces; everything after etime belongs to it.
		comm := strings.Join(fields[3:], " ")
		if filepath.Base(comm) != agentName {
			continue
		}

		tty := fields[1]
		if tty == "?" || tty == "??" || tty == "-" {
			tty = ""
		}

		rec := ProcessRecord{Pid: pid, TTY: tty}
		if elapsed, ok := parseEtime(fields[2]); ok {
			rec.StartedAt = now.Add(-elapsed)
		}
		records[pid] = rec
	}
	return records
}

// parseEtime parses ps's [[dd-]hh:]mm:ss elapsed-time format.
func parseEtime(s string) (time.Duration, bool) {
	var days int64
	if idx := strings.IndexByte(s, '-'); idx >= 0 {
		d, err := strconv.ParseInt(s[:idx], 10, 64)
		if err != nil {
			return 0, false
		}
		days = d
		s = s[idx+1:]
	}

	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}

	var total int64
	for _, part := range parts {
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return 0, false
		}
		total = total*60 + n
	}
	total += days * 24 * 3600
	return time.Duration(total) * time.Second, true
}

// PidSessions maps agent pids to session identifiers by matching their open
// file handles against the session storage layout. When a pid holds markers
// for more than one session the first one listed wins.
func (c *Correlator) PidSessions() map[int]string {
	out, err := c.runCommand("lsof", "-nP", "-Fpn", "-c", c.AgentName)
	if err != nil {
		procLog.Debug("lsof_unavailable", slog.String("error", err.Error()))
		return map[int]string{}
	}
	return parseLsofOutput(out, c.SessionRoot, c.MarkerName)
}

// parseLsofOutput extracts pid→session-id pairs from `lsof -Fpn` field
// output: a `p<pid>` line opens a process stanza, `n<path>` lines list its
// open files. A file matches when it sits at <root>/<session-id>/.../<marker>.
func parseLsofOutput(out []byte, sessionRoot, markerName string) map[int]string {
	sessions := make(map[int]string)
	rootPrefix := strings.TrimSuffix(sessionRoot, "/") + "/"

	currentPid := 0
	for _, line := range strings.Split(string(out), "\n") {
		if line == "" {
			continue
		}
		switch line[0] {
		case 'p':
			pid, err := strconv.Atoi(line[1:])
			if err != nil {
				currentPid = 0
				continue
			}
			currentPid = pid
		case 'n':
			if currentPid == 0 {
				continue
			}
			if _, seen := sessions[currentPid]; seen {
				continue
			}
			path := line[1:]
			if !strings.HasPrefix(path, rootPrefix) {
				continue
			}
			rel := strings.TrimPrefix(path, rootPrefix)
			parts := strings.Split(rel, "/")
			if len(parts) < 2 || parts[0] == "" {
				continue
			}
			if parts[len(parts)-1] != markerName {
				continue
			}
			sessions[currentPid] = parts[0]
		}
	}
	return sessions
}
