package pump

import (
	"context"
	"errors"
	"sync"
)

// Handle is the externally visible completion handle for a submitted work
// item. It resolves at most once, with a value, an error, or a
// cancellation, no matter how the internal worker task finishes.
//
// The internal task never escapes to callers; it forwards its outcome
// through fulfill, which is the single bind point between the two.
type Handle struct {
	once  sync.Once
	done  chan struct{}
	value any
	err   error
}

func newHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

// fulfill binds the internal task outcome to the handle. Later calls are
// no-ops, which preserves single-resolution under completion/cancellation
// races.
func (h *Handle) fulfill(value any, err error) {
	h.once.Do(func() {
		h.value = value
		h.err = err
		close(h.done)
	})
}

// Done is closed once the handle has resolved.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Result blocks until the handle resolves and returns its outcome.
// Cancellation surfaces as context.Canceled.
func (h *Handle) Result() (any, error) {
	<-h.done
	return h.value, h.err
}

// Resolved reports whether the handle has resolved without blocking.
func (h *Handle) Resolved() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Canceled reports whether the handle resolved as a cancellation rather
// than a success or failure.
func (h *Handle) Canceled() bool {
	if !h.Resolved() {
		return false
	}
	return errors.Is(h.err, context.Canceled)
}
