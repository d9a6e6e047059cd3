package pump

import "sync"

// workItem is one pending admission. The queue owns it until the
// coordinator dequeues it; after dispatch only its handle survives.
type workItem struct {
	size    int64
	payload any
	handle  *Handle
}

// itemQueue is an unbounded FIFO of pending work items, safe for
// arbitrary producer threads against the single coordinator consumer.
type itemQueue struct {
	mu    sync.Mutex
	items []*workItem
}

func (q *itemQueue) push(it *workItem) {
	q.mu.Lock()
	q.items = append(q.items, it)
	q.mu.Unlock()
}

// pop returns the oldest item, or nil when the queue is empty.
func (q *itemQueue) pop() *workItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	it := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return it
}

func (q *itemQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// handleQueue is the FIFO of completion handles backing Fetch. Handles are
// enqueued at submission time, so popping preserves submission order no
// matter how the underlying sends complete.
type handleQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	handles []*Handle
}

func newHandleQueue() *handleQueue {
	q := &handleQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *handleQueue) push(h *Handle) {
	q.mu.Lock()
	q.handles = append(q.handles, h)
	q.mu.Unlock()
	q.cond.Signal()
}

// pop blocks until a handle is available and returns the oldest one.
func (q *handleQueue) pop() *Handle {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.handles) == 0 {
		q.cond.Wait()
	}
	h := q.handles[0]
	q.handles[0] = nil
	q.handles = q.handles[1:]
	return h
}

func (q *handleQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.handles)
}
