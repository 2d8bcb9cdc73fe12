package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/lifeplan/internal/mirror"
	"github.com/nhle/lifeplan/internal/model"
	"github.com/nhle/lifeplan/internal/progress"
)

// State is the state of the background sync.
type State int

const (
	Idle State = iota
	Running
	Failed
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Failed:
		return "failed"
	}
	return "idle"
}

// Status is a snapshot of the watcher.
type Status struct {
	State    State            `json:"-"`
	LastSync time.Time        `json:"last_sync"`
	Error    error            `json:"-"`
	Stats    map[string]Stats `json:"stats,omitempty"`
}

// ResultMsg is sent after every run. It doubles as a tea.Msg.
type ResultMsg struct {
	Stats     map[string]Stats
	Err       error
	AuthError bool
}

// defaultInterval applies when the configured interval is not positive.
const defaultInterval = 5 * time.Minute

// runTimeout bounds a single background run.
const runTimeout = 10 * time.Minute

// WorkspaceFunc resolves the workspace a run syncs.
type WorkspaceFunc func(ctx context.Context) (model.Workspace, error)

// Watcher syncs every collection periodically and on demand.
type Watcher struct {
	reconciler *Reconciler
	workspace  WorkspaceFunc
	opts       Options
	interval   time.Duration
	progress   *progress.Reporter

	resultCh  chan ResultMsg
	triggerCh chan struct{}
	stopCh    chan struct{}
	done      chan struct{}

	mu      gosync.Mutex
	running bool
	stopped bool
	status  Status
}

// NewWatcher returns a stopped watcher.
func NewWatcher(r *Reconciler, ws WorkspaceFunc, opts Options, interval time.Duration, rep *progress.Reporter) *Watcher {
	if interval <= 0 {
		interval = defaultInterval
	}
	if rep == nil {
		rep = progress.Noop()
	}
	return &Watcher{
		reconciler: r,
		workspace:  ws,
		opts:       opts,
		interval:   interval,
		progress:   rep,
		resultCh:   make(chan ResultMsg, 16),
		triggerCh:  make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start runs an initial sync and then one per interval until Stop or
// until ctx ends. A watcher runs once: Start on a running or stopped
// watcher is a no-op.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running || w.stopped {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	go w.loop(ctx)
}

// Stop halts the loop and waits for the current run to finish.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.stopped = true
	close(w.stopCh)
	w.mu.Unlock()
	<-w.done
}

// Trigger asks for an immediate run. It never blocks; a pending trigger
// absorbs later ones.
func (w *Watcher) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// Status returns the current status.
func (w *Watcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Results delivers a ResultMsg per run. Slow readers miss results.
func (w *Watcher) Results() <-chan ResultMsg {
	return w.resultCh
}

// WaitForResult returns a tea.Cmd that blocks until the next run ends.
// Call it again after each ResultMsg to keep listening.
func (w *Watcher) WaitForResult() tea.Cmd {
	return func() tea.Msg {
		res, ok := <-w.resultCh
		if !ok {
			return nil
		}
		return res
	}
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.runOnce(ctx)
		case <-w.triggerCh:
			w.runOnce(ctx)
		}
	}
}

func (w *Watcher) runOnce(ctx context.Context) {
	w.setState(Running, nil, nil)

	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	ws, err := w.workspace(ctx)
	if err != nil {
		w.finish(nil, err)
		return
	}
	stats, err := w.reconciler.SyncAll(ctx, ws, nil, w.opts, w.progress)
	w.finish(stats, err)
}

func (w *Watcher) finish(stats map[string]Stats, err error) {
	if err != nil {
		w.reconciler.logger.Printf("background sync failed: %v", err)
		w.setState(Failed, err, stats)
	} else {
		w.setState(Idle, nil, stats)
	}
	select {
	case w.resultCh <- ResultMsg{Stats: stats, Err: err, AuthError: mirror.IsAuthError(err)}:
	default:
	}
}

func (w *Watcher) setState(state State, err error, stats map[string]Stats) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status.State = state
	w.status.Error = err
	if state == Running {
		return
	}
	w.status.Stats = stats
	if err == nil {
		w.status.LastSync = w.reconciler.now()
	}
}
