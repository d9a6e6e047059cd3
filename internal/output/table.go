package output

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/flowpump/flowpump/internal/core"
)

// TableFormatter renders a run report as an ASCII table.
type TableFormatter struct{}

// FormatReport renders the report's windows plus a summary footer.
func (f *TableFormatter) FormatReport(report *core.RunReport) (string, error) {
	if report == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Window", "Start", "Size", "Rate"})

	for i, sample := range report.Windows {
		t.AppendRow(table.Row{
			i + 1,
			sample.Start.Format(time.RFC3339),
			sample.Size,
			windowRate(sample),
		})
	}

	t.AppendFooter(table.Row{
		"",
		summaryLine(report),
		report.TotalSize,
		fmt.Sprintf("limit %d", report.Stats.EffectiveLimit),
	})

	return t.Render(), nil
}
