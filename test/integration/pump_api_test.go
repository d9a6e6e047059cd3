package integration

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowpump/flowpump/internal/core/pump"
	"github.com/flowpump/flowpump/internal/observability"
	"github.com/flowpump/flowpump/internal/relay"
	"github.com/flowpump/flowpump/internal/server/handlers"
)

func TestPumpAPI_SubmitSendResultsStats(t *testing.T) {
	observability.InitCLILogger("test", false)
	observability.InitServerLogger("test", "info")

	handlers.InitHealthManager("test")

	sim := &relay.Simulator{Latency: 5 * time.Millisecond}
	p := pump.New(sim.Send, pump.Config{
		Limit:  pump.Fixed(1 << 20),
		Period: 100 * time.Millisecond,
	})
	require.NoError(t, p.Start())
	t.Cleanup(p.Stop)

	handlers.SetPump(p)
	t.Cleanup(func() { handlers.SetPump(nil) })

	ts, client := newTestServer(t, nil)
	serverURL := ts.URL

	// Deferred submissions retain order through /v1/results.
	for _, body := range []string{
		`{"size":10,"payload":"first"}`,
		`{"size":10,"payload":"second"}`,
	} {
		resp, err := client.Post(serverURL+"/v1/items", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
		require.NoError(t, resp.Body.Close())
	}

	// An urgent send returns its own result inline.
	resp, err := client.Post(serverURL+"/v1/send", "application/json", strings.NewReader(`{"payload":"urgent"}`))
	require.NoError(t, err)
	var sendResp struct {
		Result json.RawMessage `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sendResp))
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `"urgent"`, string(sendResp.Result))

	resp, err = client.Get(serverURL + "/v1/results?count=2")
	require.NoError(t, err)
	var resultsResp struct {
		Results []struct {
			Value json.RawMessage `json:"value"`
			Error string          `json:"error"`
		} `json:"results"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&resultsResp))
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, resultsResp.Results, 2)
	assert.Equal(t, `"first"`, string(resultsResp.Results[0].Value))
	assert.Equal(t, `"second"`, string(resultsResp.Results[1].Value))

	resp, err = client.Get(serverURL + "/v1/stats")
	require.NoError(t, err)
	var statsResp struct {
		Stats struct {
			Running        bool  `json:"running"`
			CompletedItems int64 `json:"completed_items"`
			UrgentItems    int64 `json:"urgent_items"`
		} `json:"stats"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&statsResp))
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, statsResp.Stats.Running)
	assert.EqualValues(t, 3, statsResp.Stats.CompletedItems)
	assert.EqualValues(t, 1, statsResp.Stats.UrgentItems)
}
