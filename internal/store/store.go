// Package store owns the append-only ledger file, its analytics companion
// file and the in-memory duplicate index seeded from them.
package store

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-assistant/internal/dedup"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/logger"
)

// ErrAlreadyRecorded is returned when appending a transaction whose ID is
// already in the store.
var ErrAlreadyRecorded = errors.New("transaction already recorded")

const maxLineSize = 1024 * 1024

// Options configures a Store.
type Options struct {
	Path          string
	AnalyticsPath string
	Location      *time.Location
}

// Store is the single owner of one ledger file. It holds the duplicate index
// and the set of known IDs; all mutation happens under one mutex.
type Store struct {
	mu            sync.Mutex
	path          string
	analyticsPath string
	loc           *time.Location
	index         *dedup.Index
	known         map[string]struct{}
	log           zerolog.Logger
}

// Open ensures both file headers and replays the ledger into the index.
// Header failures are returned; a failed replay is logged and the store
// starts with no history.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("Open: store path is required")
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	log := logger.FromContext(ctx).With().Str("component", "store").Str("path", opts.Path).Logger()

	repaired, err := EnsureHeader(opts.Path, Header)
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}
	if repaired {
		log.Warn().Msg("Store header did not match, rewrote header line")
	}

	if opts.AnalyticsPath != "" {
		repaired, err := EnsureHeader(opts.AnalyticsPath, AnalyticsHeader)
		if err != nil {
			return nil, fmt.Errorf("Open: %w", err)
		}
		if repaired {
			log.Warn().Str("analytics_path", opts.AnalyticsPath).Msg("Analytics header did not match, rewrote header line")
		}
	}

	s := &Store{
		path:          opts.Path,
		analyticsPath: opts.AnalyticsPath,
		loc:           loc,
		index:         dedup.NewIndex(loc),
		known:         make(map[string]struct{}),
		log:           log,
	}

	txs, err := s.ReadAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to seed duplicate index, starting with no history")
		return s, nil
	}
	for _, tx := range txs {
		s.index.Put(tx)
		s.known[tx.ID] = struct{}{}
	}
	log.Info().Int("records", len(s.known)).Int("keys", s.index.Len()).Msg("Store seeded")

	return s, nil
}

// Path is the ledger file path.
func (s *Store) Path() string { return s.path }

// AnalyticsPath is the analytics file path, empty when disabled.
func (s *Store) AnalyticsPath() string { return s.analyticsPath }

// Location is the zone used for dates and keys.
func (s *Store) Location() *time.Location { return s.loc }

// Len reports how many distinct IDs the store knows.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.known)
}

// Known reports whether id is already in the store.
func (s *Store) Known(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.known[id]
	return ok
}

// Lookup returns the record tx collides with, if any.
func (s *Store) Lookup(tx *domain.Transaction) (*domain.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Lookup(tx)
}

// Append writes tx to the ledger and indexes it.
func (s *Store) Append(ctx context.Context, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.append(ctx, tx)
}

// Locked is the view of the store handed to WithLock callbacks. Its methods
// assume the store mutex is held.
type Locked struct {
	s *Store
}

// Lookup is Store.Lookup without locking.
func (l Locked) Lookup(tx *domain.Transaction) (*domain.Transaction, bool) {
	return l.s.index.Lookup(tx)
}

// Append is Store.Append without locking.
func (l Locked) Append(ctx context.Context, tx *domain.Transaction) error {
	return l.s.append(ctx, tx)
}

// WithLock runs fn inside the store's critical section so that a lookup and
// the append that depends on it cannot interleave with another writer.
func (s *Store) WithLock(fn func(Locked) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(Locked{s: s})
}

func (s *Store) append(ctx context.Context, tx *domain.Transaction) error {
	if _, ok := s.known[tx.ID]; ok {
		return fmt.Errorf("Append: %s: %w", tx.ID, ErrAlreadyRecorded)
	}

	if err := AppendRow(s.path, rowOf(tx, s.loc)); err != nil {
		return fmt.Errorf("Append: %w", err)
	}
	s.index.Put(tx)
	s.known[tx.ID] = struct{}{}

	if s.analyticsPath != "" {
		if err := AppendRow(s.analyticsPath, analyticsRowOf(tx, s.loc)); err != nil {
			log := logger.FromContext(ctx)
			log.Warn().Err(err).
				Str("transaction_id", tx.ID).
				Str("path", s.analyticsPath).
				Msg("Failed to write analytics row")
		}
	}
	return nil
}

// Absorb indexes records that reached the file without going through Append
// and returns the ones that were not known yet.
func (s *Store) Absorb(txs []*domain.Transaction) []*domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fresh []*domain.Transaction
	for _, tx := range txs {
		if _, ok := s.known[tx.ID]; ok {
			continue
		}
		s.known[tx.ID] = struct{}{}
		s.index.Put(tx)
		fresh = append(fresh, tx)
	}
	return fresh
}

// ReadAll decodes every data row of the ledger in file order. Malformed rows
// are logged and skipped. Rows are always single lines, so the file is split
// on newlines and each line is decoded on its own.
func (s *Store) ReadAll(ctx context.Context) ([]*domain.Transaction, error) {
	return ReadFile(ctx, s.path, s.loc)
}

// ReadFile decodes a ledger file at path.
func ReadFile(ctx context.Context, path string, loc *time.Location) ([]*domain.Transaction, error) {
	log := logger.FromContext(ctx)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ReadFile: open %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("ReadFile: read header %s: %w", path, err)
		}
		return nil, nil
	}
	header, err := decodeLine(strings.TrimSuffix(scanner.Text(), "\r"))
	if err != nil {
		return nil, fmt.Errorf("ReadFile: parse header %s: %w", path, err)
	}
	colIndex := make(map[string]int, len(header))
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	if _, ok := colIndex["transaction_id"]; !ok {
		return nil, fmt.Errorf("ReadFile: %s: header has no transaction_id column", path)
	}

	var txs []*domain.Transaction
	lineNo := 1
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		record, err := decodeLine(line)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Int("line", lineNo).Msg("Skipping malformed row")
			continue
		}
		tx, err := fromRecord(record, colIndex, loc)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Int("line", lineNo).Msg("Skipping malformed row")
			continue
		}
		txs = append(txs, tx)
	}
	if err := scanner.Err(); err != nil {
		return txs, fmt.Errorf("ReadFile: scan %s: %w", path, err)
	}

	return txs, nil
}
