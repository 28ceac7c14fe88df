package gate

import (
	"context"
	"testing"
	"time"
)

// manualClock captures scheduled callbacks so tests decide when frames fire.
type manualClock struct {
	delays []time.Duration
	funcs  []func()
}

func (m *manualClock) afterFunc(d time.Duration, f func()) {
	m.delays = append(m.delays, d)
	m.funcs = append(m.funcs, f)
}

func (m *manualClock) fire(t *testing.T, i int) {
	t.Helper()
	if i >= len(m.funcs) {
		t.Fatalf("no scheduled evaluation #%d (have %d)", i, len(m.funcs))
	}
	m.funcs[i]()
}

func frameAt(vh float64, bottoms ...float64) Frame {
	f := Frame{ViewportHeight: vh}
	for i, b := range bottoms {
		f.Sections = append(f.Sections, SectionBounds{
			ID:     "s" + string(rune('1'+i)),
			Bounds: Bounds{Top: b - 300, Bottom: b},
		})
	}
	return f
}

func TestThrottle_CoalescesFrames(t *testing.T) {
	g := New(Options{SessionID: "ses", Sections: makeSections(3)})
	clock := &manualClock{}
	th := NewThrottle(g, time.Hour)
	th.afterFunc = clock.afterFunc

	p1 := th.Notify(frameAt(1000, 900, 1500, 2000))
	p2 := th.Notify(frameAt(1000, 600, 1100, 1600))
	p3 := th.Notify(frameAt(1000, 200, 650, 1200))

	if len(clock.funcs) != 1 {
		t.Fatalf("scheduled %d evaluations, want 1", len(clock.funcs))
	}
	if p1 != p2 || p2 != p3 {
		t.Fatal("notifications in one frame should share a pending evaluation")
	}

	clock.fire(t, 0)
	<-p3.Done()
	ev := p3.Result()
	if len(ev.CompletedNow) != 2 || ev.CompletedNow[0] != 1 || ev.CompletedNow[1] != 2 {
		t.Fatalf("completed now = %v, want [1 2] from the latest frame", ev.CompletedNow)
	}
	if ev.Unlocked {
		t.Fatal("gate should still be locked")
	}

	// The next frame waits for the limiter.
	p4 := th.Notify(frameAt(1000, -400, 50, 500))
	if len(clock.funcs) != 2 {
		t.Fatalf("scheduled %d evaluations, want 2", len(clock.funcs))
	}
	if clock.delays[1] <= 0 {
		t.Errorf("second evaluation delay = %v, want > 0", clock.delays[1])
	}
	clock.fire(t, 1)
	<-p4.Done()
	ev = p4.Result()
	if len(ev.CompletedNow) != 1 || ev.CompletedNow[0] != 3 {
		t.Fatalf("completed now = %v, want [3]", ev.CompletedNow)
	}
	if !ev.Unlocked || !ev.UnlockedNow {
		t.Fatalf("expected unlock on this evaluation: %+v", ev)
	}
}

func TestThrottle_Evaluate(t *testing.T) {
	g := New(Options{SessionID: "ses", Sections: makeSections(2)})
	th := NewThrottle(g, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ev, err := th.Evaluate(ctx, frameAt(800, 100, 200))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !ev.Unlocked || len(ev.CompletedNow) != 2 {
		t.Fatalf("unexpected evaluation: %+v", ev)
	}
}

func TestThrottle_EvaluateCanceled(t *testing.T) {
	g := New(Options{SessionID: "ses", Sections: makeSections(2)})
	th := NewThrottle(g, time.Millisecond)
	th.afterFunc = func(time.Duration, func()) {} // never fires

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := th.Evaluate(ctx, frameAt(800, 100)); err == nil {
		t.Fatal("expected context error")
	}
}
