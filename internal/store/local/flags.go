package local

import (
	"context"
	"sync"
	"time"

	"github.com/alfredjeanlab/agreements/internal/store"
)

// Flags is an in-memory store.FlagStore. Flags do not survive a restart.
type Flags struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

var _ store.FlagStore = (*Flags)(nil)

// NewFlags returns an empty flag store.
func NewFlags() *Flags {
	return &Flags{
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (f *Flags) IsUnlocked(_ context.Context, sessionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	exp, ok := f.expires[sessionID]
	return ok && f.now().Before(exp), nil
}

func (f *Flags) SetUnlocked(_ context.Context, sessionID string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expires[sessionID] = f.now().Add(ttl)
	return nil
}

func (f *Flags) ClearUnlocked(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.expires, sessionID)
	return nil
}

func (f *Flags) PurgeExpired(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	var n int64
	for id, exp := range f.expires {
		if !now.Before(exp) {
			delete(f.expires, id)
			n++
		}
	}
	return n, nil
}
