package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/flowpump/flowpump/internal/core/pump"
	apperrors "github.com/flowpump/flowpump/internal/errors"
	"github.com/flowpump/flowpump/internal/metrics"
)

// activePump is injected by the serve command before the router starts.
var activePump atomic.Pointer[pump.Pump]

// SetPump installs the pump instance the HTTP API operates on.
func SetPump(p *pump.Pump) {
	activePump.Store(p)
}

func getPump() *pump.Pump {
	return activePump.Load()
}

// itemRequest is the request body for both deferred and urgent sends.
type itemRequest struct {
	// Size is the item's weight against the per-period budget. When
	// omitted it defaults to the payload's encoded length.
	Size    int64           `json:"size"`
	Payload json.RawMessage `json:"payload"`
}

func (req *itemRequest) effectiveSize() int64 {
	if req.Size > 0 {
		return req.Size
	}
	if n := int64(len(req.Payload)); n > 0 {
		return n
	}
	return 1
}

func decodeItemRequest(r *http.Request) (*itemRequest, error) {
	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}
	if req.Size < 0 {
		return nil, apperrors.NewValidationError("size must not be negative")
	}
	return &req, nil
}

// SubmitHandler enqueues a deferred work item. The item's result is
// retrievable later via GET /v1/results, in submission order.
func SubmitHandler(w http.ResponseWriter, r *http.Request) {
	p := getPump()
	if p == nil {
		respondWithError(w, r, apperrors.NewServiceUnavailableError("pump is not configured"))
		return
	}

	req, err := decodeItemRequest(r)
	if err != nil {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "invalid work item"))
		return
	}

	size := req.effectiveSize()
	if _, err := p.Submit(size, req.Payload); err != nil {
		respondWithError(w, r, apperrors.NewServiceUnavailableError("pump is not running"))
		return
	}

	metrics.RecordAdmission(size, false)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"queued": true,
		"size":   size,
	})
}

// SendHandler performs an urgent send: the item jumps the deferred
// backlog and the response carries its result directly.
func SendHandler(w http.ResponseWriter, r *http.Request) {
	p := getPump()
	if p == nil {
		respondWithError(w, r, apperrors.NewServiceUnavailableError("pump is not configured"))
		return
	}

	req, err := decodeItemRequest(r)
	if err != nil {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "invalid work item"))
		return
	}

	size := req.effectiveSize()
	metrics.RecordAdmission(size, true)

	value, err := p.Urgent(size, req.Payload)
	if err != nil {
		if err == pump.ErrNotRunning {
			respondWithError(w, r, apperrors.NewServiceUnavailableError("pump is not running"))
			return
		}
		respondWithError(w, r, apperrors.WrapUpstream(r.Context(), err, "urgent send failed"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"result": value,
		"size":   size,
	})
}

// fetchedResult is one entry in the results response.
type fetchedResult struct {
	Value any    `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

// ResultsHandler consumes up to count deferred results in submission
// order, blocking until each is available.
func ResultsHandler(w http.ResponseWriter, r *http.Request) {
	p := getPump()
	if p == nil {
		respondWithError(w, r, apperrors.NewServiceUnavailableError("pump is not configured"))
		return
	}

	count := 1
	if raw := r.URL.Query().Get("count"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondWithError(w, r, apperrors.NewValidationError("count must be a positive integer"))
			return
		}
		count = parsed
	}

	seq, err := p.Fetch(count)
	if err != nil {
		respondWithError(w, r, apperrors.NewServiceUnavailableError("pump is not running and has too few buffered results"))
		return
	}

	results := make([]fetchedResult, 0, count)
	for res := range seq {
		entry := fetchedResult{Value: res.Value}
		if res.Err != nil {
			entry.Error = res.Err.Error()
		}
		results = append(results, entry)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"results": results,
	})
}

// StatsHandler reports the pump's counters; ?windows=true appends the
// recent finalized throughput windows.
func StatsHandler(w http.ResponseWriter, r *http.Request) {
	p := getPump()
	if p == nil {
		respondWithError(w, r, apperrors.NewServiceUnavailableError("pump is not configured"))
		return
	}

	stats := p.Stats()
	metrics.SetPumpGauges(
		int64(stats.QueuedDeferred+stats.QueuedUrgent),
		stats.InFlight,
		int64(stats.PendingResults),
		stats.EffectiveLimit,
	)

	body := map[string]any{"stats": stats}
	if r.URL.Query().Get("windows") == "true" {
		body["windows"] = p.Windows()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(body)
}
