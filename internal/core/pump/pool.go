package pump

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// task is the internal worker-pool completion a handle is bound to. It
// carries the admission timestamp and size used for receive-side window
// accounting.
type task struct {
	size     int64
	admitted time.Time
	handle   *Handle
}

// workerPool runs sends on a bounded number of concurrent workers. Intake
// is unbounded: dispatch never blocks the coordinator, excess tasks wait
// on the semaphore inside their own goroutine.
type workerPool struct {
	sem      chan struct{}
	wg       sync.WaitGroup
	inFlight atomic.Int64

	mu   sync.Mutex
	done []*task
}

func newWorkerPool(workers int) *workerPool {
	if workers < 1 {
		workers = 1
	}
	return &workerPool{sem: make(chan struct{}, workers)}
}

// dispatch hands a work item to the pool and binds its handle to the new
// task. The send's error, panic, or cancellation is forwarded verbatim to
// the handle; nothing is retried.
func (w *workerPool) dispatch(ctx context.Context, send SendFunc, t *task, payload any, onDone func(*task, error)) {
	w.wg.Add(1)
	w.inFlight.Add(1)
	go func() {
		defer w.wg.Done()
		defer w.inFlight.Add(-1)

		w.sem <- struct{}{}
		defer func() { <-w.sem }()

		value, err := runSend(ctx, send, payload)
		t.handle.fulfill(value, err)

		w.mu.Lock()
		w.done = append(w.done, t)
		w.mu.Unlock()

		if onDone != nil {
			onDone(t, err)
		}
	}()
}

// runSend invokes the external operation, converting a panic into an
// error so one bad payload cannot take down the coordinator's process.
func runSend(ctx context.Context, send SendFunc, payload any) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pump: send panicked: %v", r)
		}
	}()
	return send(ctx, payload)
}

// collect returns every task completed since the previous call without
// blocking. Only the coordinator calls it.
func (w *workerPool) collect() []*task {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.done) == 0 {
		return nil
	}
	done := w.done
	w.done = nil
	return done
}

// drain blocks until every outstanding task has completed.
func (w *workerPool) drain() {
	w.wg.Wait()
}
