// Package relay provides send operations for the pump: an HTTP relay that
// forwards payloads to a rate-limited upstream, and a simulator for
// offline runs and tests.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Relay forwards work-item payloads to an upstream endpoint. The upstream
// response body is the send result; non-2xx statuses are errors.
type Relay struct {
	URL         string
	Method      string
	ContentType string
	Client      *http.Client
}

// Send implements pump.SendFunc.
func (r *Relay) Send(ctx context.Context, payload any) (any, error) {
	if r == nil || strings.TrimSpace(r.URL) == "" {
		return nil, errors.New("relay upstream URL is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	body, err := encodePayload(payload)
	if err != nil {
		return nil, err
	}

	method := r.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, r.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	contentType := r.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	req.Header.Set("Content-Type", contentType)

	client := r.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("upstream %s returned status %d", r.URL, resp.StatusCode)
	}

	return string(data), nil
}

func encodePayload(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return json.Marshal(v)
	}
}
