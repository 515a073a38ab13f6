// Package procscan provides process-table introspection for session
// discovery: native pid enumeration, ancestry walks, CPU sampling, and the
// external ps/lsof bridge that ties agent processes to session identifiers.
package procscan

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/schlubbi/copilot-sessions/internal/logging"
)

var procLog = logging.ForComponent(logging.CompProc)

// procTable is the platform seam for raw process-table queries. The real
// implementation lives in table_linux.go / table_darwin.go; tests supply a
// fake.
type procTable interface {
	// listPids returns every live pid on the host.
	listPids() ([]int, error)

	// parentPid returns the parent of pid. ok is false when the pid no
	// longer exists or is inaccessible.
	parentPid(pid int) (int, bool)

	// name returns the executable base name for pid.
	name(pid int) (string, bool)

	// executablePath returns the absolute executable path for pid.
	executablePath(pid int) (string, bool)

	// cpuTime returns the cumulative user+system CPU time for pid.
	cpuTime(pid int) (time.Duration, bool)
}

// Inspector answers process-table questions natively, without shelling out.
// It holds no state between calls; every query reflects the process table at
// call time.
type Inspector struct {
	table   procTable
	helpers map[string]bool

	// extraTerminals are user-configured terminal fragments, checked before
	// the built-in table.
	extraTerminals []terminalFragment

	busyThreshold float64
	sampleWindow  time.Duration

	// sleep is swapped out in tests so CPU sampling doesn't stall the suite.
	sleep func(time.Duration)
}

// Options configures an Inspector.
type Options struct {
	// BackgroundHelpers are child executable names that never indicate tool
	// activity (the agent's own long-lived helpers).
	BackgroundHelpers []string

	// TerminalOverrides maps extra executable-path fragments to terminal
	// names, consulted before the built-in detection table.
	TerminalOverrides map[string]string

	// BusyThreshold is the CPU percent above which an idle-looking process
	// counts as working. Default 2.0.
	BusyThreshold float64

	// SampleWindow is how long CPU sampling blocks. Default 50ms.
	SampleWindow time.Duration
}

// NewInspector returns an Inspector backed by the host process table.
func NewInspector(opts Options) *Inspector {
	return newInspectorWithTable(newHostTable(), opts)
}

func newInspectorWithTable(table procTable, opts Options) *Inspector {
	if opts.BusyThreshold <= 0 {
		opts.BusyThreshold = 2.0
	}
	if opts.SampleWindow <= 0 {
		opts.SampleWindow = 50 * time.Millisecond
	}
	helpers := make(map[string]bool, len(opts.BackgroundHelpers))
	for _, h := range opts.BackgroundHelpers {
		helpers[h] = true
	}

	extra := make([]terminalFragment, 0, len(opts.TerminalOverrides))
	for fragment, kind := range opts.TerminalOverrides {
		extra = append(extra, terminalFragment{
			fragment: strings.ToLower(fragment),
			kind:     TerminalKind(kind),
		})
	}
	// Map order is random; fix the check order so overlapping fragments
	// resolve the same way on every run.
	sort.Slice(extra, func(a, b int) bool { return extra[a].fragment < extra[b].fragment })

	return &Inspector{
		table:          table,
		helpers:        helpers,
		extraTerminals: extra,
		busyThreshold:  opts.BusyThreshold,
		sampleWindow:   opts.SampleWindow,
		sleep:          time.Sleep,
	}
}

// ListPids returns every live pid on the host, ascending.
func (i *Inspector) ListPids() ([]int, error) {
	pids, err := i.table.listPids()
	if err != nil {
		return nil, err
	}
	sort.Ints(pids)
	return pids, nil
}

// BuildParentChildMap returns a parent→children adjacency map. With an empty
// scope the whole process table is mapped. With a non-empty scope the result
// is restricted to the scoped pids plus their transitive descendants, found
// by breadth-first expansion over the full parent relation; unrelated
// processes are never probed beyond the initial enumeration.
func (i *Inspector) BuildParentChildMap(scope map[int]bool) map[int][]int {
	pids, err := i.table.listPids()
	if err != nil {
		procLog.Debug("pid_enumeration_failed", slog.String("error", err.Error()))
		return map[int][]int{}
	}

	full := make(map[int][]int)
	for _, pid := range pids {
		parent, ok := i.table.parentPid(pid)
		if !ok {
			continue
		}
		full[parent] = append(full[parent], pid)
	}
	for _, children := range full {
		sort.Ints(children)
	}

	if len(scope) == 0 {
		return full
	}

	// BFS from the scoped pids; every child of a visited pid is a descendant.
	visited := make(map[int]bool, len(scope))
	queue := make([]int, 0, len(scope))
	for pid := range scope {
		visited[pid] = true
		queue = append(queue, pid)
	}
	for len(queue) > 0 {
		pid := queue[0]
		queue = queue[1:]
		for _, child := range full[pid] {
			if !visited[child] {
				visited[child] = true
				queue = append(queue, child)
			}
		}
	}

	scoped := make(map[int][]int, len(visited))
	for pid := range visited {
		if children, ok := full[pid]; ok {
			scoped[pid] = children
		}
	}
	return scoped
}

// ProcessName returns the executable base name for pid. ok is false for a
// dead or inaccessible pid; a racing exit is expected, not an error.
func (i *Inspector) ProcessName(pid int) (string, bool) {
	return i.table.name(pid)
}

// ProcessPath returns the absolute executable path for pid.
func (i *Inspector) ProcessPath(pid int) (string, bool) {
	return i.table.executablePath(pid)
}

// CPUPercent returns the share of one core pid consumed over window,
// measured as the delta between two cumulative CPU-time snapshots divided by
// the wall-clock window. Blocks the caller for the whole window. Returns 0.0
// when the pid is invalid at either snapshot.
func (i *Inspector) CPUPercent(pid int, window time.Duration) float64 {
	if window <= 0 {
		window = i.sampleWindow
	}

	before, ok := i.table.cpuTime(pid)
	if !ok {
		return 0.0
	}
	i.sleep(window)
	after, ok := i.table.cpuTime(pid)
	if !ok {
		return 0.0
	}

	delta := after - before
	if delta <= 0 {
		return 0.0
	}
	return float64(delta.Nanoseconds()) / float64(window.Nanoseconds()) * 100.0
}

// IsWorking decides whether pid is actively doing work. A direct child whose
// executable name is outside the background-helper set means a tool is
// running. Otherwise the CPU sampler breaks the tie. A session idling just
// above the threshold (transient I/O) will misclassify; there is no cheaper
// universal signal.
func (i *Inspector) IsWorking(pid int, parentChildMap map[int][]int) bool {
	for _, child := range parentChildMap[pid] {
		name, ok := i.table.name(child)
		if !ok {
			continue
		}
		if !i.helpers[name] {
			procLog.Debug("active_child",
				slog.Int("pid", pid),
				slog.Int("child", child),
				slog.String("name", name))
			return true
		}
	}
	return i.CPUPercent(pid, i.sampleWindow) > i.busyThreshold
}
