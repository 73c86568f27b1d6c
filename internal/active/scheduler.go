// Package active implements the concurrency layer the spec calls the
// active-object model (spec §3.1, §5, §9): every servant binds to exactly
// one scheduler for its lifetime, and cross-servant calls are always
// posted work rather than direct calls across goroutines. Grounded on
// original_source's core/scheduler.hpp task-queue-plus-worker-thread
// design, rebuilt with Go channels and goroutines instead of a
// mutex-guarded std::queue and condition variable.
package active

// Scheduler owns one worker goroutine that drains a FIFO queue of tasks,
// one at a time, in posting order. Binding every servant's calls through
// its own scheduler gives that servant single-threaded access to its own
// state without an explicit mutex.
type Scheduler struct {
	tasks chan func()
	done  chan struct{}
}

// NewScheduler starts the worker goroutine and returns the running
// scheduler. queueDepth bounds the number of pending tasks before Push
// blocks; the teacher's C++ queue is unbounded, but an unbounded Go
// channel would need a separate goroutine to grow it, so callers size
// queueDepth to their expected backlog.
func NewScheduler(queueDepth int) *Scheduler {
	s := &Scheduler{
		tasks: make(chan func(), queueDepth),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Scheduler) run() {
	defer close(s.done)
	for task := range s.tasks {
		task()
	}
}

// Push enqueues a task for the worker goroutine. Tasks posted by one
// caller run in the order they were pushed; ordering across callers is
// not guaranteed.
func (s *Scheduler) Push(task func()) {
	s.tasks <- task
}

// Close drains and stops the scheduler: tasks already queued still run,
// but no further Push is permitted once Close returns.
func (s *Scheduler) Close() {
	close(s.tasks)
	<-s.done
}

// Servant is an embeddable marker for types owned by exactly one
// Scheduler for their lifetime (spec §5 "every servant binds to exactly
// one scheduler").
type Servant struct{}
