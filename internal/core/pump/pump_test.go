package pump

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flowpump/flowpump/internal/core"
)

// recordingSender records the order and time of each invocation.
type recordingSender struct {
	mu       sync.Mutex
	payloads []any
	times    []time.Time
	delay    time.Duration
	first    chan struct{}
	once     sync.Once
}

func (s *recordingSender) send(ctx context.Context, payload any) (any, error) {
	s.mu.Lock()
	s.payloads = append(s.payloads, payload)
	s.times = append(s.times, time.Now())
	s.mu.Unlock()
	s.once.Do(func() {
		if s.first != nil {
			close(s.first)
		}
	})
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return payload, nil
}

func (s *recordingSender) recorded() ([]any, []time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payloads := make([]any, len(s.payloads))
	copy(payloads, s.payloads)
	times := make([]time.Time, len(s.times))
	copy(times, s.times)
	return payloads, times
}

func collect(t *testing.T, p *Pump, count int) []core.Result {
	t.Helper()
	seq, err := p.Fetch(count)
	require.NoError(t, err)
	results := make([]core.Result, 0, count)
	for r := range seq {
		results = append(results, r)
	}
	return results
}

func TestFetchPreservesSubmissionOrder(t *testing.T) {
	send := func(ctx context.Context, payload any) (any, error) {
		// Skewed latency so completion order differs from submission order.
		n := payload.(int)
		time.Sleep(time.Duration((12-n)%5) * 10 * time.Millisecond)
		return n, nil
	}
	p := New(send, Config{Limit: Fixed(1 << 30), Period: 50 * time.Millisecond})
	require.NoError(t, p.Start())
	defer p.Stop()

	const n = 12
	for i := 0; i < n; i++ {
		_, err := p.Submit(100, i)
		require.NoError(t, err)
	}

	results := collect(t, p, n)
	require.Len(t, results, n)
	for i, r := range results {
		require.NoError(t, r.Err)
		require.Equal(t, i, r.Value)
	}
}

func TestUrgentJumpsDeferredBacklog(t *testing.T) {
	sender := &recordingSender{first: make(chan struct{})}
	p := New(sender.send, Config{Limit: Fixed(1), Period: 150 * time.Millisecond})
	require.NoError(t, p.Start())
	defer p.Stop()

	for i := 0; i < 6; i++ {
		_, err := p.Submit(1, fmt.Sprintf("deferred-%d", i))
		require.NoError(t, err)
	}

	select {
	case <-sender.first:
	case <-time.After(2 * time.Second):
		t.Fatal("first deferred admission never happened")
	}

	value, err := p.Urgent(1, "urgent")
	require.NoError(t, err)
	require.Equal(t, "urgent", value)

	payloads, _ := sender.recorded()
	urgentIdx := -1
	for i, payload := range payloads {
		if payload == "urgent" {
			urgentIdx = i
			break
		}
	}
	require.GreaterOrEqual(t, urgentIdx, 1, "urgent should not preempt an already-admitted item")
	// At most one in-flight admission's worth of delay ahead of the urgent
	// item, despite six queued deferred items.
	require.LessOrEqual(t, urgentIdx, 2)
}

func TestSendWindowPacing(t *testing.T) {
	const period = 120 * time.Millisecond
	sender := &recordingSender{}
	p := New(sender.send, Config{Limit: Fixed(100), Period: period})
	require.NoError(t, p.Start())

	const n = 4
	for i := 0; i < n; i++ {
		_, err := p.Submit(100, i)
		require.NoError(t, err)
	}
	collect(t, p, n)
	p.Stop()

	_, times := sender.recorded()
	require.Len(t, times, n)
	for i := 1; i < n; i++ {
		gap := times[i].Sub(times[i-1])
		require.GreaterOrEqual(t, gap, period*2/3,
			"each admission should wait for the next send window")
	}
}

func TestAdaptiveLimitConvergesAndNeverDecreases(t *testing.T) {
	send := func(ctx context.Context, payload any) (any, error) {
		return payload, nil
	}
	p := New(send, Config{Limit: Adaptive(), Period: 40 * time.Millisecond})
	require.NoError(t, p.Start())

	require.Zero(t, p.Stats().EffectiveLimit)

	var seen []int64
	submitted := 0
	for round := 0; round < 10; round++ {
		for i := 0; i < 20; i++ {
			_, err := p.Submit(10, submitted)
			require.NoError(t, err)
			submitted++
		}
		time.Sleep(40 * time.Millisecond)
		if limit := p.Stats().EffectiveLimit; limit > 0 {
			seen = append(seen, limit)
		}
	}
	p.Stop()

	require.NotEmpty(t, seen, "adaptive limit should be discovered")
	for i := 1; i < len(seen); i++ {
		require.GreaterOrEqual(t, seen[i], seen[i-1], "capacity is never voluntarily shrunk")
	}

	stats := p.Stats()
	require.Equal(t, stats.BestObserved, stats.EffectiveLimit)
	require.NotEmpty(t, p.Windows())
}

func TestStopDrainsAllHandles(t *testing.T) {
	sender := &recordingSender{delay: 30 * time.Millisecond}
	p := New(sender.send, Config{Limit: Fixed(1 << 30), Period: 50 * time.Millisecond})
	require.NoError(t, p.Start())

	handles := make([]*Handle, 0, 10)
	for i := 0; i < 10; i++ {
		h, err := p.Submit(10, i)
		require.NoError(t, err)
		handles = append(handles, h)
	}

	p.Stop()

	for i, h := range handles {
		require.True(t, h.Resolved(), "handle %d left pending after drain", i)
		value, err := h.Result()
		require.NoError(t, err)
		require.Equal(t, i, value)
	}

	_, err := p.Submit(10, "late")
	require.ErrorIs(t, err, ErrNotRunning)
	_, err = p.Urgent(10, "late")
	require.ErrorIs(t, err, ErrNotRunning)

	stats := p.Stats()
	require.EqualValues(t, 10, stats.CompletedItems)
	require.Zero(t, stats.InFlight)
}

func TestFetchAfterStopConsumesBacklog(t *testing.T) {
	send := func(ctx context.Context, payload any) (any, error) {
		return payload, nil
	}
	p := New(send, Config{Limit: Fixed(1 << 30), Period: 50 * time.Millisecond})
	require.NoError(t, p.Start())

	_, err := p.Submit(1, "a")
	require.NoError(t, err)
	_, err = p.Submit(1, "b")
	require.NoError(t, err)
	p.Stop()

	// Enough results are queued, so fetching them is still valid.
	results := collect(t, p, 2)
	require.Equal(t, "a", results[0].Value)
	require.Equal(t, "b", results[1].Value)

	// Asking for more than the backlog while stopped is a usage error.
	_, err = p.Fetch(1)
	require.ErrorIs(t, err, ErrNotRunning)
}

func TestSendFailureSurfacesAtExactPosition(t *testing.T) {
	errBoom := errors.New("boom")
	send := func(ctx context.Context, payload any) (any, error) {
		if payload == "b" {
			return nil, errBoom
		}
		return payload, nil
	}
	p := New(send, Config{Limit: Fixed(1 << 30), Period: 50 * time.Millisecond})
	require.NoError(t, p.Start())
	defer p.Stop()

	for _, payload := range []string{"a", "b", "c"} {
		_, err := p.Submit(100, payload)
		require.NoError(t, err)
	}

	results := collect(t, p, 3)
	require.NoError(t, results[0].Err)
	require.Equal(t, "a", results[0].Value)
	require.ErrorIs(t, results[1].Err, errBoom)
	require.NoError(t, results[2].Err)
	require.Equal(t, "c", results[2].Value)

	require.EqualValues(t, 1, p.Stats().FailedItems)
}

func TestSendPanicBecomesError(t *testing.T) {
	send := func(ctx context.Context, payload any) (any, error) {
		panic("unserializable payload")
	}
	p := New(send, Config{Limit: Fixed(1 << 30), Period: 50 * time.Millisecond})
	require.NoError(t, p.Start())
	defer p.Stop()

	h, err := p.Submit(1, "x")
	require.NoError(t, err)
	_, err = h.Result()
	require.ErrorContains(t, err, "send panicked")
}

func TestStartValidation(t *testing.T) {
	p := New(nil, Config{})
	require.Error(t, p.Start())

	p = New(func(ctx context.Context, payload any) (any, error) { return nil, nil }, Config{})
	require.NoError(t, p.Start())
	require.Error(t, p.Start(), "second start must be rejected")
	require.NoError(t, p.Close())
}
