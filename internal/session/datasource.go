package session

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/schlubbi/copilot-sessions/internal/config"
	"github.com/schlubbi/copilot-sessions/internal/logging"
	"github.com/schlubbi/copilot-sessions/internal/procscan"
)

var engineLog = logging.ForComponent(logging.CompEngine)

// loadConcurrency bounds the per-session loader goroutines. Sessions on the
// CPU-fallback path each block for the sampling window; overlapping them
// keeps a pass from serializing those windows.
const loadConcurrency = 8

// processCorrelator is the host-correlation seam. procscan.Correlator is
// the production implementation.
type processCorrelator interface {
	RunningAgentProcesses() map[int]procscan.ProcessRecord
	PidSessions() map[int]string
}

// processInspector is the process-tree seam. procscan.Inspector is the
// production implementation.
type processInspector interface {
	BuildParentChildMap(scope map[int]bool) map[int][]int
	DetectTerminal(pid int) procscan.TerminalKind
	IsWorking(pid int, parentChildMap map[int][]int) bool
}

// DataSource is the engine facade: one LoadSessions call correlates the
// process table, the open-file listing, and the per-session disk state into
// an ordered list of session records. It holds no state between calls.
type DataSource struct {
	root       string
	inspector  processInspector
	correlator processCorrelator
	reader     *Reader
	classifier *Classifier
}

// NewDataSource wires a DataSource from user configuration.
func NewDataSource(cfg *config.UserConfig) *DataSource {
	root := cfg.SessionRoot
	if root == "" {
		root = DefaultRoot()
	}

	inspector := procscan.NewInspector(procscan.Options{
		BackgroundHelpers: cfg.Agent.BackgroundHelpers,
		TerminalOverrides: cfg.Terminal.PathFragments,
		BusyThreshold:     cfg.Status.CPUBusyThreshold,
		SampleWindow:      cfg.CPUSampleWindow(),
	})

	return &DataSource{
		root:       root,
		inspector:  inspector,
		correlator: procscan.NewCorrelator(cfg.Agent.ProcessName, root, EventLogFileName),
		reader:     &Reader{Root: root},
		classifier: NewClassifier(inspector),
	}
}

// Root returns the session storage root the data source reads from.
func (d *DataSource) Root() string {
	return d.root
}

// LoadSessions runs one discovery pass and returns the session records,
// sorted working < waiting < done and newest-activity-first within a status.
// The call is synchronous and can block for several hundred milliseconds
// (CPU sampling windows, file tails); run it off any interactive loop.
// Failures degrade per source: a malformed file costs that file, a missing
// tool costs its correlation, and only an unreadable storage root yields an
// empty list.
func (d *DataSource) LoadSessions(ctx context.Context) []Session {
	procs := d.correlator.RunningAgentProcesses()
	pidSessions := d.correlator.PidSessions()

	// Invert pid→session; at most one pid is retained per session.
	sessionPids := make(map[string]int, len(pidSessions))
	for pid, id := range pidSessions {
		if existing, ok := sessionPids[id]; ok && existing <= pid {
			continue
		}
		sessionPids[id] = pid
	}

	// Scope the child map to agent processes so the pass never probes
	// unrelated process trees.
	scope := make(map[int]bool, len(procs)+len(pidSessions))
	for pid := range procs {
		scope[pid] = true
	}
	for pid := range pidSessions {
		scope[pid] = true
	}
	var parentChildMap map[int][]int
	if len(scope) > 0 {
		parentChildMap = d.inspector.BuildParentChildMap(scope)
	}

	entries, err := os.ReadDir(d.root)
	if err != nil {
		engineLog.Warn("session_root_unreadable",
			slog.String("root", d.root),
			slog.String("error", err.Error()))
		return []Session{}
	}

	var (
		mu       sync.Mutex
		sessions []Session
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id := entry.Name()

		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			record, ok := d.loadOne(id, sessionPids, procs, parentChildMap)
			if !ok {
				return nil
			}

			mu.Lock()
			sessions = append(sessions, record)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sortSessions(sessions)

	engineLog.Debug("discovery_pass_complete",
		slog.Int("sessions", len(sessions)),
		slog.Int("live", len(sessionPids)))
	return sessions
}

// loadOne builds a single session record. ok is false when the session is
// noise: no derivable topic and no live process.
func (d *DataSource) loadOne(id string, sessionPids map[string]int, procs map[int]procscan.ProcessRecord, parentChildMap map[int][]int) (Session, bool) {
	meta := d.reader.Read(id)
	pid := sessionPids[id]

	if meta.Topic == "" && pid == 0 {
		return Session{}, false
	}

	record := Session{
		ID:           id,
		ShortID:      ShortID(id),
		Topic:        meta.Topic,
		FirstMessage: meta.FirstMessage,
		Branch:       meta.Branch,
		Turns:        meta.Turns,
		Repository:   meta.Repository,
		WorkDir:      meta.WorkDir,
		Terminal:     procscan.TerminalUnknown,
		Status:       d.classifier.Classify(d.reader.EventLogPath(id), pid, parentChildMap),
	}
	if !meta.LastActivity.IsZero() {
		t := meta.LastActivity
		record.LastActivity = &t
	}

	if pid != 0 {
		record.Pid = pid
		proc := procs[pid]
		record.TTY = proc.TTY
		if !proc.StartedAt.IsZero() {
			started := proc.StartedAt
			record.StartedAt = &started
		}
		record.Terminal = d.inspector.DetectTerminal(pid)
	}
	return record, true
}

// sortSessions orders records by status priority, then most recent activity
// first (missing timestamps sort as oldest), then ID for determinism.
func sortSessions(sessions []Session) {
	sort.Slice(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if pa, pb := a.Status.sortPriority(), b.Status.sortPriority(); pa != pb {
			return pa < pb
		}
		switch {
		case a.LastActivity == nil && b.LastActivity == nil:
			return a.ID < b.ID
		case a.LastActivity == nil:
			return false
		case b.LastActivity == nil:
			return true
		case !a.LastActivity.Equal(*b.LastActivity):
			return a.LastActivity.After(*b.LastActivity)
		default:
			return a.ID < b.ID
		}
	})
}
