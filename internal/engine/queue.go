package engine

import (
	"context"
	"sync"
)

// Outcome is what Run delivers for a submitted action.
type Outcome struct {
	Result Result
	Err    error
}

type submission struct {
	action Action
	reply  chan Outcome
}

// actionQueue is a thread-safe FIFO queue of submitted actions.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type actionQueue struct {
	mu     sync.Mutex
	items  []submission
	closed bool
	signal chan struct{} // buffered, size 1
}

func newActionQueue() *actionQueue {
	return &actionQueue{
		items:  make([]submission, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a submission to the back of the queue.
// Returns false if the queue is closed.
func (q *actionQueue) Enqueue(s submission) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, s)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front submission without blocking.
func (q *actionQueue) TryDequeue() (submission, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return submission{}, false
	}
	s := q.items[0]
	q.items[0] = submission{}
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return s, true
}

// Wait returns a channel that signals when submissions may be available.
// It is closed when the queue is closed.
func (q *actionQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *actionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close signals that no more submissions will be enqueued.
func (q *actionQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// Submit queues a for the Run loop and returns a channel that receives its
// outcome. Returns false if the engine has been stopped.
// Thread-safe: may be called from any goroutine.
func (e *Engine) Submit(a Action) (<-chan Outcome, bool) {
	reply := make(chan Outcome, 1)
	if !e.queue.Enqueue(submission{action: a, reply: reply}) {
		return nil, false
	}
	return reply, true
}

// Run executes submitted actions in FIFO order until ctx is cancelled or
// Stop is called. Must be called from exactly one goroutine.
//
// A failed action does not stop the loop; its outcome carries the error.
// Submissions still queued when the loop stops are drained first on Stop
// and dropped on cancellation.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting")

	for {
		if s, ok := e.queue.TryDequeue(); ok {
			res, err := e.Execute(ctx, s.action)
			if err != nil {
				e.logger.Error("action failed",
					"kind", s.action.Kind,
					"error", err,
				)
			}
			s.reply <- Outcome{Result: res, Err: err}
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// A closed signal channel fires immediately; stop once drained.
			if e.queue.isClosed() && e.queue.Len() == 0 {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue; Run returns once it has drained.
func (e *Engine) Stop() {
	e.queue.Close()
}

// QueueLen returns the number of submissions waiting for Run.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

func (q *actionQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
