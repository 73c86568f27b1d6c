package active

import (
	"sync"
	"time"
)

// StopCondition is the shared cancellation flag the spec's concurrency
// model threads through every execute() loop (spec §5 "Cancellation"): a
// flag that, once raised, wakes every interruptible sleep immediately
// instead of letting it wait out its full duration.
type StopCondition struct {
	mu      sync.Mutex
	stopped bool
	ch      chan struct{} // closed exactly once, when Raise fires
}

// NewStopCondition returns a condition that has not been raised.
func NewStopCondition() *StopCondition {
	return &StopCondition{ch: make(chan struct{})}
}

// Raise sets the flag and wakes every current and future WaitFor call.
// Idempotent.
func (sc *StopCondition) Raise() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if !sc.stopped {
		sc.stopped = true
		close(sc.ch)
	}
}

// Reset clears the flag so the condition can be reused for a new run.
func (sc *StopCondition) Reset() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.stopped = false
	sc.ch = make(chan struct{})
}

// Raised reports whether Raise has been called since the last Reset.
func (sc *StopCondition) Raised() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.stopped
}

// WaitFor blocks for at most d, returning true if it woke because the
// duration elapsed and false if it woke early because the flag was
// raised. The engine's execute loops check Raised between steps instead,
// and simusleep sleeps through MemoryAccess.Sleep; neither calls WaitFor.
func (sc *StopCondition) WaitFor(d time.Duration) bool {
	sc.mu.Lock()
	ch := sc.ch
	sc.mu.Unlock()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ch:
		return false
	}
}

// GUISync couples an executor servant to an observer servant so that,
// after each instruction, the executor can post an update and wait for
// the observer's acknowledgement before continuing — preventing a fast
// executor from dropping UI updates under backpressure (spec §5
// "GUI-synchronization").
type GUISync struct {
	mu    sync.Mutex
	cond  *sync.Cond
	ready bool
}

// NewGUISync returns a sync point with the observer initially not ready.
func NewGUISync() *GUISync {
	g := &GUISync{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// WaitReady blocks the executor until the observer calls GUIReady.
func (g *GUISync) WaitReady() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for !g.ready {
		g.cond.Wait()
	}
	g.ready = false
}

// GUIReady signals that the observer has consumed the last update and the
// executor may proceed.
func (g *GUISync) GUIReady() {
	g.mu.Lock()
	g.ready = true
	g.mu.Unlock()
	g.cond.Signal()
}
