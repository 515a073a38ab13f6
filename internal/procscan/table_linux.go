//go:build linux

package procscan

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// linuxTable reads the process table from /proc. Every query tolerates the
// target exiting mid-read; a vanished pid reports ok=false, never an error.
type linuxTable struct{}

func newHostTable() procTable { return linuxTable{} }

// clockTicksPerSec is USER_HZ, fixed at 100 on every supported architecture.
const clockTicksPerSec = 100

func (linuxTable) listPids() ([]int, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, err
	}
	pids := make([]int, 0, 8192)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

func (t linuxTable) parentPid(pid int) (int, bool) {
	fields, ok := t.statFields(pid)
	if !ok || len(fields) < 2 {
		return 0, false
	}
	ppid, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, false
	}
	return ppid, true
}

func (linuxTable) name(pid int) (string, bool) {
	data, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/comm")
	if err != nil {
		return "", false
	}
	name := strings.TrimSpace(string(data))
	if name == "" {
		return "", false
	}
	return name, true
}

func (t linuxTable) executablePath(pid int) (string, bool) {
	path, err := os.Readlink("/proc/" + strconv.Itoa(pid) + "/exe")
	if err != nil {
		// Readlink needs ptrace-level access for other users' processes;
		// fall back to the world-readable comm name.
		return "", false
	}
	// A deleted binary shows up as "/path (deleted)".
	path = strings.TrimSuffix(path, " (deleted)")
	return path, true
}

func (t linuxTable) cpuTime(pid int) (time.Duration, bool) {
	fields, ok := t.statFields(pid)
	if !ok || len(fields) < 13 {
		return 0, false
	}
	utime, err1 := strconv.ParseUint(fields[11], 10, 64)
	stime, err2 := strconv.ParseUint(fields[12], 10, 64)
	if err1 != nil || err2 != nil {
		return 0, false
	}
	ticks := utime + stime
	return time.Duration(ticks) * (time.Second / clockTicksPerSec), true
}

// statFields returns the fields of /proc/<pid>/stat after the comm field.
// comm is parenthesized and may itself contain spaces and parentheses, so the
// split starts after the last ')'. Indexing is relative to the state field:
// fields[0]=state, fields[1]=ppid, fields[11]=utime, fields[12]=stime.
func (linuxTable) statFields(pid int) ([]string, bool) {
	data, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return nil, false
	}
	raw := string(data)
	idx := strings.LastIndexByte(raw, ')')
	if idx < 0 || idx+2 > len(raw) {
		return nil, false
	}
	return strings.Fields(raw[idx+1:]), true
}
