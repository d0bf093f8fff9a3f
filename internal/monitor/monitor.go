// Package monitor watches the ledger file for rows written by something other
// than the store itself, such as a person editing the file by hand.
package monitor

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/logger"
)

// DefaultDebounce collapses bursts of file events into one scan.
const DefaultDebounce = 200 * time.Millisecond

// Source is the part of the store the monitor needs.
type Source interface {
	Path() string
	ReadAll(ctx context.Context) ([]*domain.Transaction, error)
	Absorb(txs []*domain.Transaction) []*domain.Transaction
}

// Callback receives records that appeared in the file and were never seen
// by the store before.
type Callback func(ctx context.Context, txs []*domain.Transaction)

// Monitor watches one store file.
type Monitor struct {
	src      Source
	debounce time.Duration
}

// New creates a monitor for src. A non-positive debounce uses DefaultDebounce.
func New(src Source, debounce time.Duration) *Monitor {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Monitor{src: src, debounce: debounce}
}

// Start watches the directory holding the store file, since an atomic rename
// replaces the file itself. The returned stop func is idempotent; a scan that
// is already running finishes but its results are dropped.
func (m *Monitor) Start(ctx context.Context, onNew Callback) (func(), error) {
	if onNew == nil {
		onNew = func(context.Context, []*domain.Transaction) {}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("Start: create watcher: %w", err)
	}

	path := m.src.Path()
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("Start: watch %s: %w", filepath.Dir(path), err)
	}

	log := logger.FromContext(ctx).With().Str("component", "monitor").Str("path", path).Logger()
	ctx = logger.WithContext(ctx, log)

	r := &run{
		monitor:    m,
		watcher:    watcher,
		name:       filepath.Base(path),
		onNew:      onNew,
		log:        log,
		shutdownCh: make(chan struct{}),
	}
	go r.loop(ctx)
	log.Info().Dur("debounce", m.debounce).Msg("Change monitor started")

	var once sync.Once
	return func() {
		once.Do(func() {
			r.stopped.Store(true)
			close(r.shutdownCh)
			if err := watcher.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close watcher")
			}
			log.Info().Msg("Change monitor stopped")
		})
	}, nil
}

// run is the state of one Start call.
type run struct {
	monitor    *Monitor
	watcher    *fsnotify.Watcher
	name       string
	onNew      Callback
	log        zerolog.Logger
	shutdownCh chan struct{}
	stopped    atomic.Bool
}

func (r *run) loop(ctx context.Context) {
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-r.shutdownCh:
			return
		case <-ctx.Done():
			return
		case ev, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != r.name || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(r.monitor.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(r.monitor.debounce)
			}
			fire = timer.C
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.log.Warn().Err(err).Msg("Watcher error")
		case <-fire:
			fire = nil
			r.monitor.scan(ctx, &r.stopped, r.onNew)
		}
	}
}

// scan re-reads the whole file and reports IDs the store has never seen.
// Failures are logged and never stop the monitor.
func (m *Monitor) scan(ctx context.Context, stopped *atomic.Bool, onNew Callback) {
	log := logger.FromContext(ctx)

	txs, err := m.src.ReadAll(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Change scan failed")
		return
	}
	if stopped.Load() {
		return
	}

	fresh := m.src.Absorb(txs)
	if len(fresh) == 0 {
		return
	}
	log.Info().Int("records", len(fresh)).Msg("Found records written outside the store")

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Change monitor callback panicked")
		}
	}()
	onNew(ctx, fresh)
}
