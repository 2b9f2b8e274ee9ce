// Package gc implements the background garbage collector and stuck-upload
// sweeper described in spec §4.9: a single long-running cooperative task
// with a configurable tick interval and batch size. It operates independent
// of the request path in internal/app, the way internal/janitor does in the
// teacher's secret-sharing service.
package gc

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/haukened/objvault/internal/domain"
)

// Files is the narrow blob-store view the collector needs.
type Files interface {
	Delete(root string, hash domain.ContentHash) error
}

// Blobs is the narrow BlobRepository view the collector needs.
type Blobs interface {
	FindOrphaned(ctx context.Context, batchSize int) ([]*domain.Blob, error)
	Find(ctx context.Context, hash domain.ContentHash) (*domain.Blob, error)
	Delete(ctx context.Context, hash domain.ContentHash) error
}

// Objects is the narrow ObjectRepository view the collector needs.
type Objects interface {
	FinalizeDeleted(ctx context.Context, hash domain.ContentHash, now time.Time) error
	SweepStuckWriting(ctx context.Context, olderThan time.Time) (int, error)
}

// Metrics accumulates in-memory counters for operational insight, mirroring
// the teacher's janitor.Metrics shape.
type Metrics struct {
	mu        sync.Mutex
	Cycles    uint64
	Collected uint64
	Resisted  uint64 // orphans whose ref count was found nonzero on re-check (resurrected)
	Swept     uint64 // stuck-WRITING rows removed
}

// MetricsView is a read-only snapshot safe to copy.
type MetricsView struct {
	Cycles    uint64
	Collected uint64
	Resisted  uint64
	Swept     uint64
}

func (m *Metrics) addCollected(n int) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	m.Collected += uint64(n)
	m.mu.Unlock()
}

func (m *Metrics) addResisted(n int) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	m.Resisted += uint64(n)
	m.mu.Unlock()
}

func (m *Metrics) addSwept(n int) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	m.Swept += uint64(n)
	m.mu.Unlock()
}

func (m *Metrics) recordCycle() {
	m.mu.Lock()
	m.Cycles++
	m.mu.Unlock()
}

// Config holds tunables for the Collector.
type Config struct {
	Interval time.Duration // tick interval
	BatchSize int          // max orphans processed per tick
	// StuckWritingAge is the age past which a WRITING object row is swept.
	StuckWritingAge time.Duration
	HotRoot         string
	ColdRoot        string
	Logger          *slog.Logger // optional, defaults to slog.Default()
}

// root resolves a storage class to its configured filesystem root.
func (c Config) root(class domain.StorageClass) string {
	return class.Root(c.HotRoot, c.ColdRoot)
}

// Collector runs the periodic orphan sweep and stuck-WRITING sweep.
type Collector struct {
	objects Objects
	blobs   Blobs
	files   Files
	clock   domain.Clock
	cfg     Config
	metrics *Metrics

	ticker *time.Ticker
	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

// New constructs but does not start a Collector.
func New(objects Objects, blobs Blobs, files Files, clock domain.Clock, cfg Config) *Collector {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.StuckWritingAge <= 0 {
		cfg.StuckWritingAge = time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Collector{
		objects: objects,
		blobs:   blobs,
		files:   files,
		clock:   clock,
		cfg:     cfg,
		metrics: &Metrics{},
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start launches the collector loop in a new goroutine.
func (c *Collector) Start(ctx context.Context) {
	if c.ticker != nil {
		return
	}
	c.ticker = time.NewTicker(c.cfg.Interval)
	go c.loop(ctx)
}

// Stop signals the loop to exit and waits for completion.
func (c *Collector) Stop() {
	c.once.Do(func() { close(c.stopCh) })
	<-c.doneCh
}

// MetricsSnapshot returns a copy of current metrics.
func (c *Collector) MetricsSnapshot() MetricsView {
	c.metrics.mu.Lock()
	defer c.metrics.mu.Unlock()
	return MetricsView{
		Cycles:    c.metrics.Cycles,
		Collected: c.metrics.Collected,
		Resisted:  c.metrics.Resisted,
		Swept:     c.metrics.Swept,
	}
}

func (c *Collector) loop(ctx context.Context) {
	log := c.cfg.Logger.With("domain", "gc")
	defer func() {
		c.ticker.Stop()
		close(c.doneCh)
	}()
	for {
		select {
		case <-ctx.Done():
			log.Info("gc stop", "reason", "context_cancel")
			return
		case <-c.stopCh:
			log.Info("gc stop", "reason", "stop_signal")
			return
		case <-c.ticker.C:
			c.Tick(ctx)
		}
	}
}

// Tick runs one full orphan-collection and stuck-WRITING sweep cycle. It is
// exported so callers such as tests can run a cycle synchronously outside
// the ticker loop.
func (c *Collector) Tick(ctx context.Context) {
	log := c.cfg.Logger.With("domain", "gc", "action", "tick")
	defer c.metrics.recordCycle()

	orphans, err := c.blobs.FindOrphaned(ctx, c.cfg.BatchSize)
	if err != nil {
		log.Error("find_orphaned", "error", err)
	} else {
		collected, resisted := c.collectOrphans(ctx, log, orphans)
		c.metrics.addCollected(collected)
		c.metrics.addResisted(resisted)
	}

	swept, err := c.objects.SweepStuckWriting(ctx, c.clock.Now().Add(-c.cfg.StuckWritingAge))
	if err != nil {
		log.Error("sweep_stuck_writing", "error", err)
	} else {
		c.metrics.addSwept(swept)
	}
}

// collectOrphans implements spec §4.9 step 2, in the resurrection-safe
// ordering required by Option (b): the file is unlinked first; the
// transactional ref-count re-check happens afterward. Restoration of a
// concurrently-resurrected file is not this package's job: app.Service.Upload
// always calls BlobStore.Write before BlobRepository.GetOrCreateAndIncrement,
// and Write recreates the file whenever it is absent at the hashed path. So a
// resurrection racing this tick either completes before the re-check (the row
// already shows RefCount > 0, and the file is back on disk) or after it (the
// next GC tick finds the row orphaned again and tries once more); either way
// no COMMITTED object is ever left pointing at a missing file.
func (c *Collector) collectOrphans(ctx context.Context, log *slog.Logger, orphans []*domain.Blob) (collected, resisted int) {
	for _, b := range orphans {
		root := c.cfg.root(b.StorageClass)
		if err := c.files.Delete(root, b.ContentHash); err != nil {
			log.Error("delete_blob_file", "hash", b.ContentHash, "error", err)
			continue
		}

		fresh, err := c.blobs.Find(ctx, b.ContentHash)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Already removed by a concurrent tick; nothing left to do.
				continue
			}
			log.Error("recheck_blob", "hash", b.ContentHash, "error", err)
			continue
		}
		if fresh.RefCount > 0 {
			// Resurrected by a concurrent Upload between FindOrphaned and
			// here. Abort this blob's deletion; the resurrecting Upload's own
			// BlobStore.Write call (which always runs before it increments
			// the ref count) already restored the file we just unlinked.
			resisted++
			continue
		}

		if err := c.blobs.Delete(ctx, b.ContentHash); err != nil {
			log.Error("delete_blob_row", "hash", b.ContentHash, "error", err)
			continue
		}
		if err := c.objects.FinalizeDeleted(ctx, b.ContentHash, c.clock.Now()); err != nil {
			log.Error("finalize_deleted", "hash", b.ContentHash, "error", err)
			continue
		}
		collected++
	}
	return collected, resisted
}
