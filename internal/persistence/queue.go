package persistence

import "sync"

// serialQueue runs submitted tasks one at a time, in submission order, on a
// single goroutine. Submission never blocks on a running task.
type serialQueue struct {
	mu      sync.Mutex
	pending []func()
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

func newSerialQueue() *serialQueue {
	q := &serialQueue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *serialQueue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.pending) == 0 {
			if q.closed {
				q.mu.Unlock()
				return
			}
			q.mu.Unlock()
			<-q.wake
			q.mu.Lock()
		}
		task := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		task()
	}
}

// async enqueues task. It reports false if the queue is closed.
func (q *serialQueue) async(task func()) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.pending = append(q.pending, task)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// sync enqueues task and waits for it to finish. On a closed queue the task
// runs on the caller's goroutine once the worker has drained.
func (q *serialQueue) sync(task func()) {
	finished := make(chan struct{})
	if !q.async(func() {
		defer close(finished)
		task()
	}) {
		<-q.done
		task()
		return
	}
	<-finished
}

// close stops accepting tasks, lets queued ones finish and waits for the
// worker to exit.
func (q *serialQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	<-q.done
}
