package active

import (
	"fmt"
	"sync/atomic"
)

// Proxy posts calls against a Servant of type T into its owning
// Scheduler, so every call actually runs on that servant's single worker
// goroutine regardless of which goroutine calls the proxy. Grounded on
// original_source's core/proxy.hpp POST/POST_FUTURE/POST_CALLBACK macros,
// expressed with Go closures instead of template-generated member
// functions.
type Proxy[T any] struct {
	target    *T
	scheduler *Scheduler
}

// NewProxy binds a proxy to a servant value and the scheduler that owns
// it.
func NewProxy[T any](target *T, scheduler *Scheduler) *Proxy[T] {
	return &Proxy[T]{target: target, scheduler: scheduler}
}

// Post is the fire-and-forget call: fn runs on the servant's scheduler
// goroutine, and Post returns immediately without waiting for it.
func (p *Proxy[T]) Post(fn func(*T)) {
	p.scheduler.Push(func() { fn(p.target) })
}

// PostFuture posts fn and blocks the caller until it has run on the
// servant's goroutine, returning its result. This is the synchronous
// cross-servant call the spec's suspension-point rule (b) allows tasks to
// block on.
func PostFuture[T any, R any](p *Proxy[T], fn func(*T) (R, error)) (R, error) {
	type reply struct {
		val R
		err error
	}
	ch := make(chan reply, 1)
	p.scheduler.Push(func() {
		v, err := fn(p.target)
		ch <- reply{val: v, err: err}
	})
	r := <-ch
	return r.val, r.err
}

// Liveness is a servant-destruction flag a Proxy's creator can share with
// a callback. Checking it before delivering a callback is this module's
// expression of the teacher's weak_ptr-based "drop the callback if the
// target servant has been destroyed" rule (spec §5 "Shared-resource
// policy") without requiring Go's generational weak-pointer API.
type Liveness struct {
	alive atomic.Bool
}

// NewLiveness returns a token initially marked alive.
func NewLiveness() *Liveness {
	l := &Liveness{}
	l.alive.Store(true)
	return l
}

// Kill marks the token dead; callbacks guarded by it are dropped from
// then on.
func (l *Liveness) Kill() { l.alive.Store(false) }

// SafeCallback posts fn to target's scheduler only if guard is still
// alive at delivery time, so a callback racing a servant's teardown is
// silently dropped instead of touching freed state.
func SafeCallback[T any](target *Scheduler, guard *Liveness, fn func(*T), arg *T) {
	target.Push(func() {
		if !guard.alive.Load() {
			return
		}
		fn(arg)
	})
}

// ErrServantGone is returned by callers that need to surface a dropped
// callback as an error rather than silently ignore it.
var ErrServantGone = fmt.Errorf("active: target servant no longer alive")
