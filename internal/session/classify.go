package session

import (
	"log/slog"

	"github.com/schlubbi/copilot-sessions/internal/logging"
)

var classifyLog = logging.ForComponent(logging.CompClassify)

// WorkChecker reports whether a process is actively doing work.
// procscan.Inspector is the production implementation.
type WorkChecker interface {
	IsWorking(pid int, parentChildMap map[int][]int) bool
}

// Classifier assigns a session's activity status. Classification is
// per-poll and stateless: every pass recomputes from the current event-log
// tail and process table, so there is no history to drift.
type Classifier struct {
	checker WorkChecker
}

// NewClassifier returns a Classifier backed by the given work checker.
func NewClassifier(checker WorkChecker) *Classifier {
	return &Classifier{checker: checker}
}

// Classify decides working/waiting/done for one session. pid is 0 when no
// live process is correlated, which is terminal: the session is done. For a
// live session the event log's trailing entry speaks first: an
// assistant-turn-end means the agent handed control back to the user.
// Only when the tail yields nothing does the process heuristic break
// the tie.
func (c *Classifier) Classify(eventLogPath string, pid int, parentChildMap map[int][]int) Status {
	if pid == 0 {
		return StatusDone
	}

	if typ, ok := tailEventType(eventLogPath); ok {
		if typ == EventTurnEnd {
			return StatusWaiting
		}
		return StatusWorking
	}

	classifyLog.Debug("event_tail_empty_using_process_heuristic", slog.Int("pid", pid))
	if c.checker.IsWorking(pid, parentChildMap) {
		return StatusWorking
	}
	return StatusWaiting
}
