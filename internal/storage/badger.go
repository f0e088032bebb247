package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tsuji/bunkei/internal/logger"
)

// BadgerConfig holds the knobs for the embedded Badger backend.
type BadgerConfig struct {
	// Dir is the data directory. Required unless InMemory is set.
	Dir string
	// InMemory keeps everything in RAM, for tests.
	InMemory bool
	// SyncWrites makes every write durable before returning.
	SyncWrites bool
	// GCInterval is how often the value log garbage collector runs.
	// Zero disables GC.
	GCInterval time.Duration
	// GCDiscardRatio is the garbage fraction that triggers a rewrite.
	GCDiscardRatio float64
}

// DefaultBadgerConfig returns the production settings for a data directory.
func DefaultBadgerConfig(dir string) BadgerConfig {
	return BadgerConfig{
		Dir:            dir,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// badgerLogger adapts our logger to badger's Logger interface. Badger's
// info output is operational noise, so it lands at debug.
type badgerLogger struct {
	log *logger.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{})   { l.log.Error(format, args...) }
func (l badgerLogger) Warningf(format string, args ...interface{}) { l.log.Warn(format, args...) }
func (l badgerLogger) Infof(format string, args ...interface{})    { l.log.Debug(format, args...) }
func (l badgerLogger) Debugf(format string, args ...interface{})   { l.log.Debug(format, args...) }

// Badger is the default snapshot backend: an embedded LSM store that
// survives restarts without a database server.
type Badger struct {
	db   *badger.DB
	log  *logger.Logger
	stop chan struct{}
	done chan struct{}
}

var _ Store = (*Badger)(nil)

func NewBadger(cfg BadgerConfig) (*Badger, error) {
	log := logger.Default().WithPrefix("badger")

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Dir == "" {
			return nil, errors.New("badger: data directory is required")
		}
		if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("create data directory %s: %w", cfg.Dir, err)
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{log: log})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", cfg.Dir, err)
	}
	log.Info("badger store ready: dir=%s in_memory=%v", cfg.Dir, cfg.InMemory)

	b := &Badger{
		db:   db,
		log:  log,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		go b.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	} else {
		close(b.done)
	}
	return b, nil
}

func (b *Badger) Load(_ context.Context, key string) ([]byte, error) {
	var blob []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		blob, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %q: %w", key, err)
	}
	return blob, nil
}

func (b *Badger) Save(_ context.Context, key string, blob []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), blob)
	})
	if err != nil {
		return fmt.Errorf("save snapshot %q: %w", key, err)
	}
	return nil
}

func (b *Badger) Close() error {
	close(b.stop)
	<-b.done
	return b.db.Close()
}

func (b *Badger) runGC(interval time.Duration, ratio float64) {
	defer close(b.done)
	if ratio <= 0 || ratio > 1 {
		ratio = 0.5
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			// ErrNoRewrite just means there was nothing worth collecting.
			if err := b.db.RunValueLogGC(ratio); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				b.log.Warn("value log GC: %v", err)
			}
		}
	}
}
