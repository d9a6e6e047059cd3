package relay

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// Simulator is a stand-in upstream that echoes payloads after a fixed
// latency, optionally failing every Nth call.
type Simulator struct {
	Latency   time.Duration
	FailEvery int

	calls atomic.Int64
}

// Send implements pump.SendFunc.
func (s *Simulator) Send(ctx context.Context, payload any) (any, error) {
	n := s.calls.Add(1)

	if s.Latency > 0 {
		timer := time.NewTimer(s.Latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if s.FailEvery > 0 && n%int64(s.FailEvery) == 0 {
		return nil, fmt.Errorf("simulated upstream failure on call %d", n)
	}

	return payload, nil
}

// Calls reports how many sends the simulator has served.
func (s *Simulator) Calls() int64 {
	return s.calls.Load()
}
