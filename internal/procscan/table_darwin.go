//go:build darwin

package procscan

import (
	"bytes"
	"time"

	"golang.org/x/sys/unix"
)

// darwinTable reads the process table through sysctl. The kern.proc queries
// are system-wide, so ancestry resolves for processes the caller doesn't own
// (sessions launched from another terminal or login).
type darwinTable struct{}

func newHostTable() procTable { return darwinTable{} }

func (darwinTable) listPids() ([]int, error) {
	// SysctlKinfoProcSlice sizes its buffer from a probe and re-queries on
	// ENOMEM, so a process table that grows between the two calls is handled.
	procs, err := unix.SysctlKinfoProcSlice("kern.proc.all")
	if err != nil {
		return nil, err
	}
	pids := make([]int, 0, len(procs))
	for i := range procs {
		pids = append(pids, int(procs[i].Proc.P_pid))
	}
	return pids, nil
}

func (darwinTable) parentPid(pid int) (int, bool) {
	kp, err := unix.SysctlKinfoProc("kern.proc.pid", pid)
	if err != nil {
		return 0, false
	}
	return int(kp.Eproc.Ppid), true
}

func (darwinTable) name(pid int) (string, bool) {
	kp, err := unix.SysctlKinfoProc("kern.proc.pid", pid)
	if err != nil {
		return "", false
	}
	name := commString(kp.Proc.P_comm[:])
	if name == "" {
		return "", false
	}
	return name, true
}

func (t darwinTable) executablePath(pid int) (string, bool) {
	// kern.procargs2 starts with an int32 argc followed by the NUL-terminated
	// executable path. Reading it does not require ownership of the target.
	raw, err := unix.SysctlRaw("kern.procargs2", pid)
	if err != nil || len(raw) <= 4 {
		// Fall back to the 16-char comm name; enough for fragment matching
		// against non-bundle terminals.
		if name, ok := t.name(pid); ok {
			return name, true
		}
		return "", false
	}
	rest := raw[4:]
	end := bytes.IndexByte(rest, 0)
	if end <= 0 {
		return "", false
	}
	return string(rest[:end]), true
}

func (darwinTable) cpuTime(pid int) (time.Duration, bool) {
	// Live CPU time needs proc_pidtaskinfo from libproc, which is cgo-only.
	// Reporting "no information" routes IsWorking through the child-process
	// check alone on this platform.
	return 0, false
}

// commString converts a fixed-size P_comm buffer to a Go string.
func commString(comm []byte) string {
	end := bytes.IndexByte(comm, 0)
	if end < 0 {
		end = len(comm)
	}
	return string(comm[:end])
}
