package queue

import (
	"errors"
	"sync"
	"time"
)

var ErrClosed = errors.New("queue closed")

// Entry is one command waiting to be forwarded
type Entry struct {
	// DB is the target database name, e.g. "db3"
	DB string
	// Command is the encoded command
	Command string
}

// Queue is a bounded multi-producer FIFO queue.
// Producers block while the queue is full, the single consumer blocks (with a bound) while it is empty.
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond // signalled on push and close, wakes the consumer
	notFull  *sync.Cond // signalled on pop and close, wakes blocked producers

	// ring buffer, grows on demand up to capacity
	items []Entry
	head  int
	size  int

	capacity int
	closed   bool
}

// New creates a queue that holds at most capacity entries
func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}

	initial := capacity
	if initial > 1024 {
		initial = 1024
	}

	q := &Queue{
		items:    make([]Entry, initial),
		capacity: capacity,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends an entry. If the queue is full the call blocks until the
// consumer removed an entry. Entries are never dropped, the only error is
// ErrClosed if the queue is (or gets) closed before the entry was accepted.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *Queue) Enqueue(db, command string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.size >= q.capacity && !q.closed {
		q.notFull.Wait()
	}
	if q.closed {
		return ErrClosed
	}

	q.push(Entry{DB: db, Command: command})
	q.notEmpty.Signal()
	return nil
}

// Dequeue removes the oldest entry. It waits at most timeout for an entry to
// arrive; ok is false if the wait timed out or the queue is closed and empty.
// A timeout <= 0 waits until an entry arrives or the queue is closed.
//
// Entries already queued are still returned after Close.
func (q *Queue) Dequeue(timeout time.Duration) (e Entry, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == 0 && !q.closed {
		var expired bool
		if timeout > 0 {
			// sync.Cond has no timed wait, a timer broadcast wakes us instead
			timer := time.AfterFunc(timeout, func() {
				q.mu.Lock()
				expired = true
				q.notEmpty.Broadcast()
				q.mu.Unlock()
			})
			defer timer.Stop()
		}

		for q.size == 0 && !q.closed && !expired {
			q.notEmpty.Wait()
		}
	}

	if q.size == 0 {
		return Entry{}, false
	}

	e = q.pop()
	q.notFull.Signal()
	return e, true
}

// Close marks the queue as closed. Blocked producers return ErrClosed, a
// blocked consumer returns once the queue is empty. Close is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// IsClosed returns true if the queue is closed
func (q *Queue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of queued entries
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Cap returns the capacity of the queue
func (q *Queue) Cap() int {
	return q.capacity
}

// Drain removes and returns all queued entries without blocking
func (q *Queue) Drain() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Entry, 0, q.size)
	for q.size > 0 {
		out = append(out, q.pop())
	}
	q.notFull.Broadcast()
	return out
}

// --------------------------------------------------------------------------
// Ring buffer helpers (caller holds mu)
// --------------------------------------------------------------------------

func (q *Queue) push(e Entry) {
	if q.size == len(q.items) {
		q.grow()
	}
	q.items[(q.head+q.size)%len(q.items)] = e
	q.size++
}

func (q *Queue) pop() Entry {
	e := q.items[q.head]
	q.items[q.head] = Entry{} // help go gc
	q.head = (q.head + 1) % len(q.items)
	q.size--
	return e
}

func (q *Queue) grow() {
	newLen := len(q.items) * 2
	if newLen > q.capacity {
		newLen = q.capacity
	}
	items := make([]Entry, newLen)
	for i := 0; i < q.size; i++ {
		items[i] = q.items[(q.head+i)%len(q.items)]
	}
	q.items = items
	q.head = 0
}
