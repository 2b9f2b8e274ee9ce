// Package metrics provides a lightweight in-process metrics manager. It
// batches counter increments through a buffered channel so callers on the
// request path never block on lock contention. Unlike the teacher's
// metrics.Manager, values are never persisted to SQLite or exposed over
// HTTP: spec §1 scopes an observability surface out of the core, so this
// package exists only to give internal/app somewhere to record counts, and
// tests a way to assert on them. internal/gc keeps its own counters
// (gc.Metrics) and does not report here.
package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Names for counters used by the application.
const (
	CounterObjectsUploaded   = "objects_uploaded_total"
	CounterObjectsDownloaded = "objects_downloaded_total"
	CounterObjectsDeleted    = "objects_deleted_total"
	CounterBlobsCollected    = "gc_blobs_collected_total"
	CounterStuckWritingSwept = "gc_stuck_writing_swept_total"
)

// Config controls logging for the Manager's background loop.
type Config struct {
	Logger *slog.Logger
}

// Manager aggregates counter increments in memory.
type Manager struct {
	cfg     Config
	events  chan event
	stop    chan struct{}
	done    chan struct{}
	started bool

	mu       sync.Mutex
	counters map[string]int64
}

type event struct {
	name string
	v    int64
}

// New creates a Manager. Call Start to begin the background apply loop.
func New(cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		cfg:      cfg,
		events:   make(chan event, 1024),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		counters: make(map[string]int64),
	}
}

// Start launches the background apply loop.
func (m *Manager) Start(ctx context.Context) {
	if m.started {
		return
	}
	m.started = true
	go m.loop(ctx)
}

// Stop signals the apply loop to exit and waits for it to drain.
func (m *Manager) Stop() {
	if !m.started {
		return
	}
	close(m.stop)
	<-m.done
}

// Inc increments a counter by delta (>=1). Non-blocking: if the internal
// buffer is full the increment is dropped rather than stalling the caller.
func (m *Manager) Inc(name string, delta int64) {
	if delta <= 0 {
		return
	}
	select {
	case m.events <- event{name: name, v: delta}:
	default:
	}
}

// Snapshot returns a copy of the current counter values.
func (m *Manager) Snapshot() map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.counters))
	for k, v := range m.counters {
		out[k] = v
	}
	return out
}

func (m *Manager) loop(ctx context.Context) {
	log := m.cfg.Logger.With("domain", "metrics")
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			log.Info("metrics stop", "reason", "context_cancel")
			m.drain()
			return
		case <-m.stop:
			log.Info("metrics stop", "reason", "stop_signal")
			m.drain()
			return
		case ev := <-m.events:
			m.apply(ev)
		case <-time.After(time.Minute):
			// Idle tick keeps the select alive for tests that never emit an
			// event but still want the loop observably running.
		}
	}
}

// drain applies any events already queued before the loop exits, so a
// caller that Incs then immediately Stops does not lose the increment.
func (m *Manager) drain() {
	for {
		select {
		case ev := <-m.events:
			m.apply(ev)
		default:
			return
		}
	}
}

func (m *Manager) apply(ev event) {
	m.mu.Lock()
	m.counters[ev.name] += ev.v
	m.mu.Unlock()
}
