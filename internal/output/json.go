package output

import (
	"encoding/json"

	"github.com/shelfgate/shelfgate/internal/core"
)

// JSONFormatter renders reports as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatBudget renders the budget report as JSON.
func (f *JSONFormatter) FormatBudget(report *BudgetReport) (string, error) {
	if report == nil {
		return "", nil
	}
	return f.marshal(report)
}

// FormatMetrics renders the metrics snapshot as JSON.
func (f *JSONFormatter) FormatMetrics(snapshot *core.MetricsSnapshot) (string, error) {
	if snapshot == nil {
		return "", nil
	}
	return f.marshal(snapshot)
}

func (f *JSONFormatter) marshal(value any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(value, "", "  ")
	} else {
		data, err = json.Marshal(value)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
