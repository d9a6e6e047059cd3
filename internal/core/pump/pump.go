// Package pump pipelines many independent blocking sends against a
// rate-limited backend. A single coordinator goroutine admits work from a
// deferred queue and a priority queue into a bounded worker pool, paces
// admissions against rolling send-side windows, and measures completed
// volume against receive-side windows to discover capacity when no limit
// is configured.
package pump

import (
	"context"
	"errors"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/flowpump/flowpump/internal/core"
)

// SendFunc is the external operation invoked once per work item. It is an
// opaque collaborator: the pump forwards its result or error verbatim and
// never retries.
type SendFunc func(ctx context.Context, payload any) (any, error)

// Defaults applied by New when the corresponding Config field is zero.
const (
	DefaultSizePerPeriod int64 = 1024000
	DefaultPeriod              = time.Second
	DefaultWorkers             = 128

	defaultPollInterval = 125 * time.Millisecond
	maxSamples          = 64
)

// ErrNotRunning reports a usage error: an operation that requires a
// running coordinator was called while the pump was stopped.
var ErrNotRunning = errors.New("pump: not running")

// Config carries construction parameters for a Pump. All fields are
// optional; zero values select the defaults above.
type Config struct {
	// Limit is the admitted volume per period. The zero value is
	// Fixed(DefaultSizePerPeriod); pass Adaptive() to measure capacity.
	Limit Limit
	// Period is the window length.
	Period time.Duration
	// Workers bounds concurrent in-flight sends.
	Workers int
	// PollInterval bounds the idle wait so stop requests are noticed
	// promptly even when no urgent work arrives.
	PollInterval time.Duration
	// Logger, when set, receives capacity warnings and lifecycle events.
	Logger *logging.Logger
	// Clock and Sleep override time sources for tests.
	Clock func() time.Time
	Sleep func(time.Duration)
}

// Pump coordinates admission, pacing, and completion accounting. Producers
// and consumers run on arbitrary goroutines; all window state is owned
// exclusively by the coordinator goroutine, so it needs no locking.
type Pump struct {
	send   SendFunc
	limit  Limit
	period time.Duration
	poll   time.Duration
	logger *logging.Logger

	clock func() time.Time
	sleep func(time.Duration)

	ctx     context.Context
	started atomic.Bool
	running atomic.Bool
	done    chan struct{}
	wake    chan struct{}

	fg   itemQueue
	bg   itemQueue
	out  *handleQueue
	pool *workerPool

	admittedItems  atomic.Int64
	admittedSize   atomic.Int64
	completedItems atomic.Int64
	completedSize  atomic.Int64
	failedItems    atomic.Int64
	urgentItems    atomic.Int64
	effectiveLimit atomic.Int64
	bestObserved   atomic.Int64

	samplesMu sync.Mutex
	samples   []core.WindowSample
}

// New creates a pump around the given send operation.
func New(send SendFunc, cfg Config) *Pump {
	p := &Pump{
		send:   send,
		limit:  cfg.Limit,
		period: cfg.Period,
		poll:   cfg.PollInterval,
		logger: cfg.Logger,
		clock:  cfg.Clock,
		sleep:  cfg.Sleep,
		ctx:    context.Background(),
		done:   make(chan struct{}),
		wake:   make(chan struct{}, 1),
		out:    newHandleQueue(),
	}
	if p.limit.kind == limitDefault {
		p.limit = Fixed(DefaultSizePerPeriod)
	}
	if p.period <= 0 {
		p.period = DefaultPeriod
	}
	if p.poll <= 0 {
		p.poll = defaultPollInterval
	}
	if p.clock == nil {
		p.clock = time.Now
	}
	if p.sleep == nil {
		p.sleep = time.Sleep
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	p.pool = newWorkerPool(workers)
	if size, ok := p.limit.Value(); ok {
		p.effectiveLimit.Store(size)
	}
	return p
}

// Start launches the coordinator goroutine and marks the pump running.
func (p *Pump) Start() error {
	if p == nil || p.send == nil {
		return errors.New("pump: send operation is required")
	}
	if !p.started.CompareAndSwap(false, true) {
		return errors.New("pump: already started")
	}
	p.running.Store(true)
	if p.logger != nil {
		p.logger.Debug("Pump started",
			zap.String("limit", p.limit.String()),
			zap.Duration("period", p.period))
	}
	go p.run()
	return nil
}

// Stop marks the pump not running and waits for the coordinator to flush
// the queued backlog and drain in-flight sends. In-flight work is never
// cancelled, so no handle is left pending.
func (p *Pump) Stop() {
	if p == nil || !p.started.Load() {
		return
	}
	p.running.Store(false)
	p.signalWake()
	<-p.done
}

// Close implements io.Closer so a pump can be a scoped resource.
func (p *Pump) Close() error {
	p.Stop()
	return nil
}

// Submit enqueues a deferred work item and returns its completion handle.
// Results are later retrievable via Fetch in submission order.
func (p *Pump) Submit(size int64, payload any) (*Handle, error) {
	if p == nil || !p.running.Load() {
		return nil, ErrNotRunning
	}
	h := newHandle()
	p.bg.push(&workItem{size: size, payload: payload, handle: h})
	p.out.push(h)
	return h, nil
}

// Urgent enqueues a priority work item, wakes the coordinator, and blocks
// until that item's own result is available. It bypasses the deferred
// backlog and does not participate in Fetch ordering.
func (p *Pump) Urgent(size int64, payload any) (any, error) {
	if p == nil || !p.running.Load() {
		return nil, ErrNotRunning
	}
	h := newHandle()
	p.fg.push(&workItem{size: size, payload: payload, handle: h})
	p.urgentItems.Add(1)
	p.signalWake()
	return h.Result()
}

// Fetch returns a lazy, finite, one-shot sequence of count results in
// strict submission order, blocking on each as needed. It is a usage
// error unless the pump is running or count results are already queued.
func (p *Pump) Fetch(count int) (iter.Seq[core.Result], error) {
	if p == nil {
		return nil, ErrNotRunning
	}
	if !p.running.Load() && p.out.len() < count {
		return nil, ErrNotRunning
	}
	seq := func(yield func(core.Result) bool) {
		for i := 0; i < count; i++ {
			value, err := p.out.pop().Result()
			if !yield(core.Result{Value: value, Err: err}) {
				return
			}
		}
	}
	return seq, nil
}

// Stats returns an atomic snapshot of the pump's counters.
func (p *Pump) Stats() core.Stats {
	if p == nil {
		return core.Stats{}
	}
	return core.Stats{
		Running:        p.running.Load(),
		Adaptive:       p.limit.IsAdaptive(),
		Period:         p.period,
		QueuedDeferred: p.bg.len(),
		QueuedUrgent:   p.fg.len(),
		PendingResults: p.out.len(),
		InFlight:       p.pool.inFlight.Load(),
		AdmittedItems:  p.admittedItems.Load(),
		AdmittedSize:   p.admittedSize.Load(),
		CompletedItems: p.completedItems.Load(),
		CompletedSize:  p.completedSize.Load(),
		FailedItems:    p.failedItems.Load(),
		UrgentItems:    p.urgentItems.Load(),
		EffectiveLimit: p.effectiveLimit.Load(),
		BestObserved:   p.bestObserved.Load(),
	}
}

// Windows returns the most recent finalized receive-side window samples,
// oldest first.
func (p *Pump) Windows() []core.WindowSample {
	if p == nil {
		return nil
	}
	p.samplesMu.Lock()
	defer p.samplesMu.Unlock()
	out := make([]core.WindowSample, len(p.samples))
	copy(out, p.samples)
	return out
}

// run is the coordinator loop. It is the only goroutine that reads the
// admission queues or mutates window state.
func (p *Pump) run() {
	defer close(p.done)

	configured, hasLimit := p.limit.Value()
	limit := configured
	var best int64

	now := p.clock()
	sendNext := now.Add(p.period)
	var recvStart, recvNext time.Time
	recvOpen := false
	var returned int64
	var sent int64
	var lastWarn time.Time

	for {
		p.clearWake()

		it := p.fg.pop()
		if it == nil {
			it = p.bg.pop()
		}
		if it == nil {
			if !p.running.Load() {
				break
			}
			p.waitWake()
			continue
		}

		// Send-side pacing: admission-time accounting, not completion time.
		now = p.clock()
		if hasLimit && sent >= limit {
			p.sleep(sendNext.Sub(now))
			now = sendNext
		}
		if !now.Before(sendNext) {
			sent = 0
			sendNext = sendNext.Add(p.period)
			if now.After(sendNext) {
				// More than a full idle period elapsed; no catch-up of
				// empty windows.
				sendNext = now.Add(p.period)
			}
		}
		sent += it.size

		t := &task{size: it.size, admitted: now, handle: it.handle}
		p.pool.dispatch(p.ctx, p.send, t, it.payload, p.recordCompletion)
		p.admittedItems.Add(1)
		p.admittedSize.Add(it.size)

		done := p.pool.collect()
		if len(done) == 0 {
			continue
		}

		// Receive-side accounting: attribute each completion to the window
		// containing its admission timestamp, finalizing closed windows one
		// at a time.
		if !recvOpen {
			recvStart = done[0].admitted
			for _, d := range done[1:] {
				if d.admitted.Before(recvStart) {
					recvStart = d.admitted
				}
			}
			recvNext = recvStart.Add(p.period)
			recvOpen = true
		}
		for {
			var next []*task
			for _, d := range done {
				if d.admitted.Before(recvNext) {
					returned += d.size
				} else {
					next = append(next, d)
				}
			}
			if len(next) == 0 {
				break
			}

			// The current window is closed; its total is a throughput sample.
			p.recordSample(core.WindowSample{Start: recvStart, End: recvNext, Size: returned})
			if returned > best {
				best = returned
				p.bestObserved.Store(best)
				switch {
				case p.limit.IsAdaptive():
					// Whatever is actually delivered is the capacity.
					limit = best
					hasLimit = true
					p.effectiveLimit.Store(limit)
					if p.logger != nil {
						p.logger.Debug("Raised adaptive size limit",
							zap.Int64("size_per_period", limit),
							zap.Duration("period", p.period))
					}
				case best < configured:
					if p.logger != nil && now.Sub(lastWarn) >= p.period {
						lastWarn = now
						p.logger.Warn("Measured throughput underperforms configured size_per_period; urgent calls will see backpressure if this persists",
							zap.Int64("measured", best),
							zap.Int64("configured", configured),
							zap.Duration("period", p.period))
					}
				}
			}

			recvStart = recvNext
			recvNext = recvNext.Add(p.period)
			done = next
			returned = 0
		}
	}

	// Draining: no new admissions, wait out every in-flight send.
	p.pool.drain()
	if p.logger != nil {
		p.logger.Debug("Pump drained",
			zap.Int64("completed_items", p.completedItems.Load()))
	}
}

func (p *Pump) recordCompletion(t *task, err error) {
	p.completedItems.Add(1)
	p.completedSize.Add(t.size)
	if err != nil {
		p.failedItems.Add(1)
	}
}

func (p *Pump) recordSample(s core.WindowSample) {
	p.samplesMu.Lock()
	defer p.samplesMu.Unlock()
	p.samples = append(p.samples, s)
	if len(p.samples) > maxSamples {
		p.samples = p.samples[len(p.samples)-maxSamples:]
	}
}

func (p *Pump) signalWake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Pump) clearWake() {
	select {
	case <-p.wake:
	default:
	}
}

func (p *Pump) waitWake() {
	select {
	case <-p.wake:
	case <-time.After(p.poll):
	}
}
