// Package session tracks live reading sessions.
//
// The Registry owns one progress gate, frame throttle and submission
// coordinator per session. Sessions are opened by the HTTP server and
// resumed by ID after a reload, in which case the gate is restored from the
// persisted unlock flag. A background reaper evicts idle sessions and
// purges expired flags.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/agreements/internal/events"
	"github.com/alfredjeanlab/agreements/internal/gate"
	"github.com/alfredjeanlab/agreements/internal/idgen"
	"github.com/alfredjeanlab/agreements/internal/model"
	"github.com/alfredjeanlab/agreements/internal/store"
	"github.com/alfredjeanlab/agreements/internal/submit"
)

// ErrNotFound is returned by Get for an unknown or evicted session.
var ErrNotFound = errors.New("session not found")

// Session is one member's pass through the rules page.
type Session struct {
	ID          string
	Gate        *gate.Gate
	Throttle    *gate.Throttle
	Coordinator *submit.Coordinator

	mu       sync.Mutex
	opened   time.Time
	lastSeen time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idle(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// Entry is a registry listing row.
type Entry struct {
	SessionID string    `json:"session_id"`
	Opened    time.Time `json:"opened"`
	LastSeen  time.Time `json:"last_seen"`
	Unlocked  bool      `json:"unlocked"`
	Signed    bool      `json:"signed"`
	Completed int       `json:"completed"`
}

// Config configures a Registry.
type Config struct {
	Sections      []model.Section
	Backend       store.Store
	Flags         store.FlagStore
	Publisher     events.Publisher
	SessionTTL    time.Duration // also the unlock flag TTL; default 12h
	FrameInterval time.Duration
	MaxAttempts   int
	Logger        *slog.Logger
}

// Registry maintains the in-memory set of open sessions.
type Registry struct {
	cfg Config
	now func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session

	reaperStop chan struct{}
	reaperDone chan struct{}
}

// New creates an empty registry.
func New(cfg Config) *Registry {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = gate.DefaultFlagTTL
	}
	cfg.Publisher = events.OrNoop(cfg.Publisher)
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Registry{
		cfg:      cfg,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Sections returns the configured rule sections.
func (r *Registry) Sections() []model.Section { return r.cfg.Sections }

// Open returns the session with the given ID, creating it if needed. An
// empty id starts a fresh session. A session not held in memory is rebuilt
// and its gate restored from the unlock flag, so a reload after unlocking
// skips the scroll requirement.
func (r *Registry) Open(ctx context.Context, id string) (*Session, error) {
	resumed := id != ""
	if resumed {
		r.mu.RLock()
		s, ok := r.sessions[id]
		r.mu.RUnlock()
		if ok {
			s.touch(r.now())
			return s, nil
		}
	} else {
		var err error
		if id, err = idgen.SessionID(); err != nil {
			return nil, err
		}
	}

	s := r.build(id)
	if _, err := s.Gate.Restore(ctx); err != nil {
		// The flag only saves a re-scroll; carry on locked.
		r.cfg.Logger.Warn("session: failed to restore unlock flag", "session_id", id, "err", err)
	}
	if resumed {
		r.restoreSigned(ctx, s)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[id]; ok {
		existing.touch(r.now())
		return existing, nil
	}
	r.sessions[id] = s
	return s, nil
}

// restoreSigned seeds a rebuilt session with the agreement it already
// signed, if any, so resubmitting replays the stored record.
func (r *Registry) restoreSigned(ctx context.Context, s *Session) {
	if r.cfg.Backend == nil {
		return
	}
	a, err := r.cfg.Backend.GetAgreementBySession(ctx, s.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		r.cfg.Logger.Warn("session: failed to look up signed agreement", "session_id", s.ID, "err", err)
	default:
		s.Coordinator.Resume(a)
	}
}

// Reset drops a session from memory and clears its unlock flag, so the
// next open under the same ID starts locked. Unknown IDs only clear the
// flag. A signed session still replays its agreement when reopened.
func (r *Registry) Reset(ctx context.Context, id string) error {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()

	if r.cfg.Flags == nil {
		return nil
	}
	if err := r.cfg.Flags.ClearUnlocked(ctx, id); err != nil {
		return fmt.Errorf("clear unlock flag: %w", err)
	}
	r.cfg.Logger.Info("session: reset", "session_id", id)
	return nil
}

// Get returns an open session.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	s.touch(r.now())
	return s, nil
}

// List returns every open session, most recently active first.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry, 0, len(r.sessions))
	for id, s := range r.sessions {
		st := s.Gate.State()
		s.mu.Lock()
		entries = append(entries, Entry{
			SessionID: id,
			Opened:    s.opened,
			LastSeen:  s.lastSeen,
			Unlocked:  st.Unlocked,
			Signed:    st.Signed,
			Completed: len(st.Completed),
		})
		s.mu.Unlock()
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastSeen.After(entries[j].LastSeen)
	})
	return entries
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) build(id string) *Session {
	total := len(r.cfg.Sections)
	g := gate.New(gate.Options{
		SessionID: id,
		Sections:  r.cfg.Sections,
		Flags:     r.cfg.Flags,
		FlagTTL:   r.cfg.SessionTTL,
		Logger:    r.cfg.Logger,
		OnSectionCompleted: func(sessionID string, sec model.Section) {
			r.publish(events.TopicSectionCompleted, events.SectionCompleted{
				SessionID: sessionID,
				SectionID: sec.ID,
				Ordinal:   sec.Ordinal,
				Total:     total,
				At:        r.now().UTC(),
			})
		},
		OnUnlocked: func(sessionID string) {
			r.cfg.Logger.Info("session: gate unlocked", "session_id", sessionID)
			r.publish(events.TopicGateUnlocked, events.GateUnlocked{
				SessionID: sessionID,
				At:        r.now().UTC(),
			})
		},
	})
	now := r.now()
	return &Session{
		ID:       id,
		Gate:     g,
		Throttle: gate.NewThrottle(g, r.cfg.FrameInterval),
		Coordinator: submit.New(r.cfg.Backend, g, submit.Options{
			MaxAttempts: r.cfg.MaxAttempts,
			Publisher:   r.cfg.Publisher,
			Logger:      r.cfg.Logger,
		}),
		opened:   now,
		lastSeen: now,
	}
}

func (r *Registry) publish(topic string, event any) {
	if err := r.cfg.Publisher.Publish(context.Background(), topic, event); err != nil {
		r.cfg.Logger.Warn("session: failed to publish event", "topic", topic, "err", err)
	}
}

// StartReaper launches a background goroutine that evicts sessions idle for
// longer than the session TTL. Call Stop() to shut it down.
func (r *Registry) StartReaper(sweepInterval time.Duration) {
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	r.reaperStop = make(chan struct{})
	r.reaperDone = make(chan struct{})

	go r.reapLoop(sweepInterval)
	r.cfg.Logger.Info("session: reaper started",
		"session_ttl", r.cfg.SessionTTL,
		"sweep_interval", sweepInterval)
}

// Stop shuts down the reaper goroutine.
func (r *Registry) Stop() {
	if r.reaperStop != nil {
		close(r.reaperStop)
		<-r.reaperDone
		r.reaperStop = nil
		r.reaperDone = nil
	}
}

func (r *Registry) reapLoop(interval time.Duration) {
	defer close(r.reaperDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.reaperStop:
			return
		case <-ticker.C:
			r.sweep(context.Background())
		}
	}
}

// sweep evicts idle sessions and purges expired unlock flags.
func (r *Registry) sweep(ctx context.Context) int {
	now := r.now()

	r.mu.Lock()
	var evicted []string
	for id, s := range r.sessions {
		if s.idle(now) > r.cfg.SessionTTL {
			delete(r.sessions, id)
			evicted = append(evicted, id)
		}
	}
	r.mu.Unlock()

	for _, id := range evicted {
		r.cfg.Logger.Debug("session: evicted idle session", "session_id", id)
	}

	if r.cfg.Flags != nil {
		n, err := r.cfg.Flags.PurgeExpired(ctx)
		if err != nil {
			r.cfg.Logger.Warn("session: failed to purge expired flags", "err", err)
		} else if n > 0 {
			r.cfg.Logger.Info("session: purged expired flags", "count", n)
		}
	}
	return len(evicted)
}
