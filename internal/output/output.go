// Package output renders workload run reports for the CLI.
package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/flowpump/flowpump/internal/core"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formatter renders a run report.
type Formatter interface {
	FormatReport(report *core.RunReport) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown):
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

// FormatReport renders a run report using the requested format.
func FormatReport(format Format, report *core.RunReport) (string, error) {
	return NewFormatter(format).FormatReport(report)
}

func summaryLine(report *core.RunReport) string {
	summary := fmt.Sprintf("%d jobs (%d urgent) in %s", report.Jobs, report.Urgent, report.Elapsed.Round(time.Millisecond))
	if report.Failed > 0 {
		summary += fmt.Sprintf(", %d failed", report.Failed)
	}
	return summary
}

func windowRate(sample core.WindowSample) string {
	width := sample.End.Sub(sample.Start)
	if width <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f/s", float64(sample.Size)/width.Seconds())
}
