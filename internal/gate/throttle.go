package gate

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultFrameInterval is one display frame at 60 Hz.
const DefaultFrameInterval = time.Second / 60

// SectionBounds is the measured geometry of one section.
type SectionBounds struct {
	ID string `json:"id"`
	Bounds
}

// Frame is one scroll notification: the viewport height and the current
// bounds of every visible section.
type Frame struct {
	ViewportHeight float64         `json:"viewport_height"`
	Sections       []SectionBounds `json:"sections"`
}

// Evaluation is the outcome of evaluating one frame against the gate.
type Evaluation struct {
	CompletedNow []int // ordinals completed by this evaluation
	Unlocked     bool
	UnlockedNow  bool
	Err          error // flag persistence error, if any
}

// Pending is a scheduled evaluation. All notifications coalesced into the
// same frame share one Pending.
type Pending struct {
	done   chan struct{}
	result Evaluation
}

// Done is closed once the evaluation has run.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Result returns the evaluation. Only valid after Done is closed.
func (p *Pending) Result() Evaluation { return p.result }

// Throttle coalesces bursts of scroll notifications into at most one gate
// evaluation per frame interval. Only the latest frame of a burst is
// evaluated.
type Throttle struct {
	gate    *Gate
	limiter *rate.Limiter

	// afterFunc schedules f after d. Replaced in tests.
	afterFunc func(d time.Duration, f func())

	mu      sync.Mutex
	latest  Frame
	pending *Pending
}

// NewThrottle returns a Throttle evaluating frames against g. A
// non-positive interval selects DefaultFrameInterval.
func NewThrottle(g *Gate, interval time.Duration) *Throttle {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &Throttle{
		gate:    g,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// Notify records a frame. The first notification after an evaluation
// schedules the next one, no sooner than the limiter allows; later
// notifications only replace the frame it will see.
func (t *Throttle) Notify(f Frame) *Pending {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.latest = f
	if t.pending != nil {
		return t.pending
	}
	p := &Pending{done: make(chan struct{})}
	t.pending = p
	t.afterFunc(t.limiter.Reserve().Delay(), t.flush)
	return p
}

// Evaluate notifies a frame and waits for the evaluation it lands in.
func (t *Throttle) Evaluate(ctx context.Context, f Frame) (Evaluation, error) {
	p := t.Notify(f)
	select {
	case <-p.Done():
		return p.Result(), nil
	case <-ctx.Done():
		return Evaluation{}, ctx.Err()
	}
}

func (t *Throttle) flush() {
	t.mu.Lock()
	p := t.pending
	f := t.latest
	t.pending = nil
	t.mu.Unlock()

	if p == nil {
		return
	}
	p.result = t.evaluate(f)
	close(p.done)
}

func (t *Throttle) evaluate(f Frame) Evaluation {
	var ev Evaluation
	wasUnlocked := t.gate.IsUnlocked()
	for _, s := range f.Sections {
		if ordinal, ok := t.gate.Observe(s.ID, IsRead(s.Bounds, f.ViewportHeight)); ok {
			ev.CompletedNow = append(ev.CompletedNow, ordinal)
		}
	}
	ev.Unlocked, ev.Err = t.gate.TryUnlock(context.Background())
	ev.UnlockedNow = ev.Unlocked && !wasUnlocked
	return ev
}
