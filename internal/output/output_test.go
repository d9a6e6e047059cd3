package output

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flowpump/flowpump/internal/core"
)

func sampleReport() *core.RunReport {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &core.RunReport{
		Jobs:      12,
		Urgent:    2,
		Failed:    1,
		TotalSize: 4096,
		Elapsed:   1500 * time.Millisecond,
		Stats: core.Stats{
			Adaptive:       true,
			EffectiveLimit: 2048,
			CompletedItems: 12,
		},
		Windows: []core.WindowSample{
			{Start: start, End: start.Add(time.Second), Size: 2048},
			{Start: start.Add(time.Second), End: start.Add(2 * time.Second), Size: 2048},
		},
	}
}

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	_, err = ParseFormat("csv")
	require.Error(t, err)
}

func TestJSONFormatter(t *testing.T) {
	rendered, err := FormatReport(FormatJSON, sampleReport())
	require.NoError(t, err)
	require.Contains(t, rendered, `"jobs": 12`)
	require.Contains(t, rendered, `"total_size": 4096`)
	require.Contains(t, rendered, `"effective_limit": 2048`)
}

func TestTableFormatter(t *testing.T) {
	rendered, err := FormatReport(FormatTable, sampleReport())
	require.NoError(t, err)
	require.Contains(t, rendered, "WINDOW")
	require.Contains(t, rendered, "2048")
	require.Contains(t, rendered, "12 jobs (2 urgent)")
	require.Contains(t, rendered, "1 failed")
}

func TestMarkdownFormatter(t *testing.T) {
	rendered, err := FormatReport(FormatMarkdown, sampleReport())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(rendered, "## Pump run"))
	require.Contains(t, rendered, "| 1 |")
	require.Contains(t, rendered, "adaptive limit 2048")
	require.Contains(t, rendered, "2048/s")
}

func TestFormattersHandleNilReport(t *testing.T) {
	for _, format := range []Format{FormatTable, FormatJSON, FormatMarkdown} {
		rendered, err := FormatReport(format, nil)
		require.NoError(t, err)
		require.Empty(t, rendered)
	}
}
