package worker

import "sync"

// queue is an unbounded FIFO shared by every worker of a pool.
//
// The mutex only covers claiming the next job. Receive returns before the
// job runs, so execution never happens under the lock.
type queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []Job
	head   int
	closed bool
}

// 头部空槽超过该值且占一半以上时整理切片
const compactThreshold = 1024

func newQueue() *queue {
	q := &queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Send appends a job. It never blocks on capacity.
func (q *queue) Send(job Job) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrDisconnected
	}
	q.items = append(q.items, job)
	q.mu.Unlock()

	q.cond.Signal()
	return nil
}

// Receive blocks until a job is available or the queue is closed and drained.
func (q *queue) Receive() (Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.head == len(q.items) && !q.closed {
		q.cond.Wait()
	}

	if q.head == len(q.items) {
		return nil, ErrDisconnected
	}

	job := q.items[q.head]
	q.items[q.head] = nil
	q.head++

	switch {
	case q.head == len(q.items):
		q.items = q.items[:0]
		q.head = 0
	case q.head >= compactThreshold && q.head*2 >= len(q.items):
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return job, nil
}

// Close retires the producer side. Queued jobs stay receivable.
func (q *queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Len returns the number of jobs waiting to be claimed.
func (q *queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}
