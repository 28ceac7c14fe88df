// Package gate implements the scroll-gated progress gate for a reading
// session.
//
// A Gate tracks which of N ordered rule sections the member has scrolled
// past. Once every section has been read the gate unlocks, exactly once,
// and the unlock is persisted as a session flag so a reload can restore it
// without scrolling again. The gate never re-locks within a session.
package gate

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/agreements/internal/model"
	"github.com/alfredjeanlab/agreements/internal/store"
)

// ReadThreshold is the fraction of the viewport height a section's bottom
// edge must rise above for the section to count as read.
const ReadThreshold = 0.7

// DefaultFlagTTL is how long a persisted unlock flag stays valid.
const DefaultFlagTTL = 12 * time.Hour

// Bounds is a section's vertical extent relative to the top of the viewport.
type Bounds struct {
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// IsRead reports whether a section with the given bounds has been read:
// its bottom edge is above 70% of the viewport height. The comparison is
// strict, so a bottom exactly on the line is not yet read.
func IsRead(b Bounds, viewportHeight float64) bool {
	return b.Bottom < viewportHeight*ReadThreshold
}

// Options configures a Gate.
type Options struct {
	SessionID string
	Sections  []model.Section

	// Flags persists the unlock flag. Nil disables persistence.
	Flags   store.FlagStore
	FlagTTL time.Duration

	// OnSectionCompleted is called once per newly completed section, outside the lock.
	OnSectionCompleted func(sessionID string, sec model.Section)
	// OnUnlocked is called once when the gate unlocks, outside the lock.
	OnUnlocked func(sessionID string)

	Logger *slog.Logger
}

// Gate is the progress gate of one reading session. It is safe for
// concurrent use.
type Gate struct {
	sessionID string
	sections  []model.Section
	byID      map[string]model.Section
	flags     store.FlagStore
	flagTTL   time.Duration
	logger    *slog.Logger

	onSectionCompleted func(string, model.Section)
	onUnlocked         func(string)

	mu        sync.Mutex
	completed map[int]bool
	unlocked  bool
	signed    bool
}

// New creates a locked gate with no sections read.
func New(opts Options) *Gate {
	g := &Gate{
		sessionID:          opts.SessionID,
		sections:           opts.Sections,
		byID:               make(map[string]model.Section, len(opts.Sections)),
		flags:              opts.Flags,
		flagTTL:            opts.FlagTTL,
		logger:             opts.Logger,
		onSectionCompleted: opts.OnSectionCompleted,
		onUnlocked:         opts.OnUnlocked,
		completed:          make(map[int]bool, len(opts.Sections)),
	}
	if g.flagTTL <= 0 {
		g.flagTTL = DefaultFlagTTL
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	for _, s := range opts.Sections {
		g.byID[s.ID] = s
	}
	return g
}

// SessionID returns the session the gate belongs to.
func (g *Gate) SessionID() string { return g.sessionID }

// Sections returns the configured sections in ordinal order.
func (g *Gate) Sections() []model.Section { return g.sections }

// Observe records the read state of one section. When isRead is true and
// the section was not yet completed it is added to the completed set and its
// ordinal is returned with ok == true. Repeated observations and unknown
// section IDs are no-ops.
func (g *Gate) Observe(sectionID string, isRead bool) (ordinal int, ok bool) {
	if !isRead {
		return 0, false
	}
	sec, known := g.byID[sectionID]
	if !known {
		g.logger.Debug("gate: ignoring unknown section", "session_id", g.sessionID, "section_id", sectionID)
		return 0, false
	}

	g.mu.Lock()
	if g.completed[sec.Ordinal] {
		g.mu.Unlock()
		return 0, false
	}
	g.completed[sec.Ordinal] = true
	g.mu.Unlock()

	if g.onSectionCompleted != nil {
		g.onSectionCompleted(g.sessionID, sec)
	}
	return sec.Ordinal, true
}

// TryUnlock unlocks the gate if every section has been read. The transition
// happens at most once; later calls report the current state. On the
// transition the unlock flag is persisted. A persistence error is returned
// but the gate stays unlocked in memory.
func (g *Gate) TryUnlock(ctx context.Context) (bool, error) {
	g.mu.Lock()
	if g.unlocked {
		g.mu.Unlock()
		return true, nil
	}
	if len(g.completed) < len(g.sections) {
		g.mu.Unlock()
		return false, nil
	}
	g.unlocked = true
	g.mu.Unlock()

	var err error
	if g.flags != nil {
		err = g.flags.SetUnlocked(ctx, g.sessionID, g.flagTTL)
		if err != nil {
			g.logger.Warn("gate: failed to persist unlock flag", "session_id", g.sessionID, "err", err)
		}
	}
	if g.onUnlocked != nil {
		g.onUnlocked(g.sessionID)
	}
	return true, err
}

// Restore checks the session flag and, if set, marks every section read and
// the gate unlocked without any scroll evaluation. Restoring emits no
// completion or unlock callbacks.
func (g *Gate) Restore(ctx context.Context) (model.ProgressState, error) {
	if g.flags == nil {
		return g.State(), nil
	}
	set, err := g.flags.IsUnlocked(ctx, g.sessionID)
	if err != nil {
		return g.State(), err
	}
	if set {
		g.mu.Lock()
		for _, s := range g.sections {
			g.completed[s.Ordinal] = true
		}
		g.unlocked = true
		g.mu.Unlock()
	}
	return g.State(), nil
}

// MarkFinalStep marks the signature step completed after a successful
// submission. It does not change the unlocked state.
func (g *Gate) MarkFinalStep() {
	g.mu.Lock()
	g.signed = true
	g.mu.Unlock()
}

// IsUnlocked reports whether the gate has unlocked.
func (g *Gate) IsUnlocked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.unlocked
}

// State returns a snapshot of the gate.
func (g *Gate) State() model.ProgressState {
	g.mu.Lock()
	defer g.mu.Unlock()

	completed := make([]int, 0, len(g.completed))
	for o := range g.completed {
		completed = append(completed, o)
	}
	sort.Ints(completed)

	return model.ProgressState{
		SessionID: g.sessionID,
		Total:     len(g.sections),
		Completed: completed,
		Unlocked:  g.unlocked,
		Signed:    g.signed,
		Active:    g.activeLocked(),
	}
}

// activeLocked returns the stepper's current step: the lowest unread
// ordinal, the signature step once unlocked, or 0 after signing.
func (g *Gate) activeLocked() int {
	if g.signed {
		return 0
	}
	if g.unlocked {
		return len(g.sections) + 1
	}
	for _, s := range g.sections {
		if !g.completed[s.Ordinal] {
			return s.Ordinal
		}
	}
	return len(g.sections) + 1
}
