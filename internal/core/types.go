package core

import "time"

// Result is the outcome of a single pumped send, in submission order.
type Result struct {
	Value any   `json:"value,omitempty"`
	Err   error `json:"-"`
}

// Stats is a point-in-time snapshot of a pump's counters.
//
// Counters are maintained atomically so snapshots never touch the
// coordinator-owned window state.
type Stats struct {
	Running        bool          `json:"running"`
	Adaptive       bool          `json:"adaptive"`
	Period         time.Duration `json:"period"`
	QueuedDeferred int           `json:"queued_deferred"`
	QueuedUrgent   int           `json:"queued_urgent"`
	PendingResults int           `json:"pending_results"`
	InFlight       int64         `json:"in_flight"`
	AdmittedItems  int64         `json:"admitted_items"`
	AdmittedSize   int64         `json:"admitted_size"`
	CompletedItems int64         `json:"completed_items"`
	CompletedSize  int64         `json:"completed_size"`
	FailedItems    int64         `json:"failed_items"`
	UrgentItems    int64         `json:"urgent_items"`
	EffectiveLimit int64         `json:"effective_limit"`
	BestObserved   int64         `json:"best_observed"`
}

// WindowSample is one finalized receive-side window: the volume of work
// that completed out of admissions made during [Start, End).
type WindowSample struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Size  int64     `json:"size"`
}

// RunReport summarizes a workload run for rendering.
type RunReport struct {
	Jobs      int            `json:"jobs"`
	Urgent    int            `json:"urgent"`
	Failed    int            `json:"failed"`
	TotalSize int64          `json:"total_size"`
	Elapsed   time.Duration  `json:"elapsed"`
	Stats     Stats          `json:"stats"`
	Windows   []WindowSample `json:"windows,omitempty"`
}
