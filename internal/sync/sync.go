// Package sync backs up agreements to external destinations on a schedule.
package sync

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/agreements/internal/store"
)

// DefaultInterval is how often the scheduler exports when not configured.
const DefaultInterval = 3 * time.Minute

// Destination is the interface for a sync target.
type Destination interface {
	// Write sends the JSONL payload to the destination.
	Write(ctx context.Context, data []byte) error
}

// Scheduler runs periodic syncs to one or more destinations. An export whose
// agreements are unchanged since the last successful sync is not uploaded.
type Scheduler struct {
	store        store.Store
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger

	mu       sync.Mutex
	lastHash [sha256.Size]byte
	synced   bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler that exports from the store to the given
// destinations at the specified interval.
func NewScheduler(s store.Store, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:        s,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
	}
}

// Start begins periodic sync. It runs an initial sync immediately, then
// on each tick.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for the current sync (if any) to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	s.logSync(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.logSync(ctx)
		}
	}
}

func (s *Scheduler) logSync(ctx context.Context) {
	if _, err := s.SyncOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("sync failed", "err", err)
	}
}

// SyncOnce exports the store and writes it to every destination. It reports
// whether anything was uploaded.
func (s *Scheduler) SyncOnce(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	n, err := ExportJSONL(ctx, s.store, &buf)
	if err != nil {
		return false, fmt.Errorf("export: %w", err)
	}
	data := buf.Bytes()

	// The header carries a timestamp, so only the records are compared.
	hash := sha256.Sum256(data[bytes.IndexByte(data, '\n')+1:])
	if s.synced && hash == s.lastHash {
		s.logger.Debug("sync skipped, no changes", "agreements", n)
		return false, nil
	}

	var failed int
	for i, dest := range s.destinations {
		if err := dest.Write(ctx, data); err != nil {
			failed++
			s.logger.Error("sync destination write failed", "destination", destName(i, dest), "err", err)
		}
	}
	if failed > 0 {
		return false, fmt.Errorf("%d of %d destinations failed", failed, len(s.destinations))
	}

	s.lastHash = hash
	s.synced = true
	s.logger.Info("sync completed", "destinations", len(s.destinations), "agreements", n, "bytes", len(data))
	return true, nil
}

func destName(i int, d Destination) string {
	if s, ok := d.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%d", i)
}
