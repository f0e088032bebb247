// Package persist writes scheduler snapshots to a Store in the background.
//
// Writes coalesce: while a save is in flight, a newer snapshot replaces
// the pending one, so the store always converges on the latest state
// without paying one write per review. Save failures are logged and
// latched for health reporting; they never propagate to the caller.
package persist

import (
	"context"
	"sync"
	"time"

	"github.com/tsuji/bunkei/internal/logger"
	"github.com/tsuji/bunkei/internal/storage"
)

const saveTimeout = 10 * time.Second

type Persister struct {
	store storage.Store
	key   string

	pending chan []byte
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	log     *logger.Logger

	mu       sync.Mutex
	lastErr  error
	lastSave time.Time
}

func New(store storage.Store, key string) *Persister {
	return &Persister{
		store:   store,
		key:     key,
		pending: make(chan []byte, 1),
		log:     logger.Default().WithPrefix("persist"),
	}
}

func (p *Persister) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wg.Add(1)
	go p.run(ctx)
	p.log.Info("snapshot persister started: key=%s", p.key)
}

// Stop shuts the write loop down and flushes any snapshot still pending,
// so the newest state reaches the store before the process exits.
func (p *Persister) Stop() {
	p.log.Info("stopping snapshot persister")
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	select {
	case blob := <-p.pending:
		p.save(blob)
	default:
	}
	p.log.Info("snapshot persister stopped")
}

// Enqueue schedules a snapshot write without blocking. A snapshot that is
// still waiting to be written is replaced by the newer one.
func (p *Persister) Enqueue(blob []byte) {
	if blob == nil {
		return
	}
	for {
		select {
		case p.pending <- blob:
			return
		default:
		}
		select {
		case <-p.pending: // drop the stale snapshot
		default:
		}
	}
}

// LastError returns the latched outcome of the most recent save attempt.
// nil means the last save succeeded or nothing has been attempted yet.
func (p *Persister) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// LastSave returns when a snapshot last reached the store.
func (p *Persister) LastSave() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSave
}

func (p *Persister) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case blob := <-p.pending:
			p.save(blob)
		}
	}
}

// save runs on its own timeout rather than the loop context, so an
// in-flight write finishes even during shutdown.
func (p *Persister) save(blob []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	start := time.Now()
	err := p.store.Save(ctx, p.key, blob)

	p.mu.Lock()
	p.lastErr = err
	if err == nil {
		p.lastSave = time.Now()
	}
	p.mu.Unlock()

	if err != nil {
		p.log.Error("snapshot save failed: %v", err)
		return
	}
	p.log.Debug("snapshot saved: %d bytes in %v", len(blob), time.Since(start))
}
