package output

import (
	"encoding/json"

	"github.com/flowpump/flowpump/internal/core"
)

// JSONFormatter renders a run report as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatReport renders the report as JSON.
func (f *JSONFormatter) FormatReport(report *core.RunReport) (string, error) {
	if report == nil {
		return "", nil
	}

	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(report, "", "  ")
	} else {
		data, err = json.Marshal(report)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
