package session

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/schlubbi/copilot-sessions/internal/logging"
)

var watcherLog = logging.ForComponent(logging.CompWatcher)

// refreshRate caps how often the watcher signals a refresh. The agent
// appends to the event log on every turn; without the limiter a busy
// session would trigger a discovery pass per write.
var refreshRate = rate.Every(2 * time.Second)

// Watcher signals when anything under the session storage root changes, so
// the watch view can refresh ahead of its poll timer. Signals are advisory:
// coalesced, rate-limited, and dropped when the consumer is behind.
type Watcher struct {
	fsw       *fsnotify.Watcher
	events    chan struct{}
	limiter   *rate.Limiter
	closeOnce sync.Once
}

// NewWatcher watches root and its existing session directories. New session
// directories are picked up as they appear.
func NewWatcher(root string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(root); err != nil {
		fsw.Close()
		return nil, err
	}

	// Session files live one level down; fsnotify is not recursive.
	if entries, err := os.ReadDir(root); err == nil {
		for _, entry := range entries {
			if entry.IsDir() {
				_ = fsw.Add(filepath.Join(root, entry.Name()))
			}
		}
	}

	w := &Watcher{
		fsw:     fsw,
		events:  make(chan struct{}, 1),
		limiter: rate.NewLimiter(refreshRate, 1),
	}
	go w.run()
	return w, nil
}

// Events delivers coalesced change signals.
func (w *Watcher) Events() <-chan struct{} {
	return w.events
}

// Close stops the watcher.
func (w *Watcher) Close() {
	w.closeOnce.Do(func() {
		w.fsw.Close()
	})
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				close(w.events)
				return
			}
			if ev.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = w.fsw.Add(ev.Name)
				}
			}
			if !w.limiter.Allow() {
				continue
			}
			select {
			case w.events <- struct{}{}:
			default:
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				close(w.events)
				return
			}
			watcherLog.Debug("watch_error", slog.String("error", err.Error()))
		}
	}
}
