package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/flowpump/flowpump/internal/core"
)

// MarkdownFormatter renders a run report as a markdown table.
type MarkdownFormatter struct{}

// FormatReport renders the report as Markdown.
func (f *MarkdownFormatter) FormatReport(report *core.RunReport) (string, error) {
	if report == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("## Pump run\n\n")
	sb.WriteString("| Window | Start | Size | Rate |\n")
	sb.WriteString("|--------|-------|------|------|\n")

	for i, sample := range report.Windows {
		sb.WriteString(fmt.Sprintf("| %d | %s | %d | %s |\n",
			i+1,
			sample.Start.Format(time.RFC3339),
			sample.Size,
			windowRate(sample),
		))
	}

	sb.WriteString(fmt.Sprintf("\n**Summary**: %s, %d total size", summaryLine(report), report.TotalSize))
	if report.Stats.Adaptive {
		sb.WriteString(fmt.Sprintf(", adaptive limit %d", report.Stats.EffectiveLimit))
	} else {
		sb.WriteString(fmt.Sprintf(", limit %d", report.Stats.EffectiveLimit))
	}
	sb.WriteString("\n")

	return sb.String(), nil
}
