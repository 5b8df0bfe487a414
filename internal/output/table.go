package output

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/shelfgate/shelfgate/internal/core"
)

// TableFormatter renders reports as an ASCII table.
type TableFormatter struct{}

// FormatBudget renders the budget report as a table.
func (f *TableFormatter) FormatBudget(report *BudgetReport) (string, error) {
	if report == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Available", "Capacity", "Refill Rate", "Checked At"})
	t.AppendRow(table.Row{
		fmt.Sprintf("%.1f", report.AvailablePoints),
		fmt.Sprintf("%.0f", report.Capacity),
		fmt.Sprintf("%.0f/s", report.RefillRate),
		report.CheckedAt.UTC().Format(time.RFC3339),
	})

	if report.Capacity > 0 {
		used := report.Capacity - report.AvailablePoints
		if used < 0 {
			used = 0
		}
		t.AppendFooter(table.Row{
			fmt.Sprintf("%.1f used", used),
			"", "", "",
		})
	}

	return t.Render(), nil
}

// FormatMetrics renders the metrics snapshot as a table.
func (f *TableFormatter) FormatMetrics(snapshot *core.MetricsSnapshot) (string, error) {
	if snapshot == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Window", "Calls", "Avg (ms)", "Max (ms)", "Min (ms)"})
	t.AppendRow(table.Row{
		"endpoint",
		snapshot.Endpoint.TotalCalls,
		snapshot.Endpoint.AverageMs,
		snapshot.Endpoint.MaxMs,
		snapshot.Endpoint.MinMs,
	})
	t.AppendRow(table.Row{
		"upstream",
		snapshot.Upstream.TotalCalls,
		snapshot.Upstream.AverageMs,
		"",
		"",
	})

	return t.Render(), nil
}
