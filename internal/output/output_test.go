package output

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shelfgate/shelfgate/internal/core"
)

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

func TestJSONFormatterBudget(t *testing.T) {
	report := &BudgetReport{
		AvailablePoints: 950,
		Capacity:        1000,
		RefillRate:      50,
		CheckedAt:       time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}

	rendered, err := NewFormatter(FormatJSON).FormatBudget(report)
	require.NoError(t, err)

	var decoded BudgetReport
	require.NoError(t, json.Unmarshal([]byte(rendered), &decoded))
	require.Equal(t, 950.0, decoded.AvailablePoints)
	require.Equal(t, 1000.0, decoded.Capacity)
}

func TestTableFormatterBudget(t *testing.T) {
	report := &BudgetReport{
		AvailablePoints: 950,
		Capacity:        1000,
		RefillRate:      50,
		CheckedAt:       time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}

	rendered, err := NewFormatter(FormatTable).FormatBudget(report)
	require.NoError(t, err)
	require.Contains(t, rendered, "950.0")
	require.Contains(t, rendered, "50/s")
	require.Contains(t, rendered, "50.0 used")
}

func TestTableFormatterMetrics(t *testing.T) {
	snapshot := &core.MetricsSnapshot{
		Endpoint: core.EndpointStats{AverageMs: 120, MaxMs: 300, MinMs: 40, TotalCalls: 9},
		Upstream: core.UpstreamStats{AverageMs: 80, TotalCalls: 4},
	}

	rendered, err := NewFormatter(FormatTable).FormatMetrics(snapshot)
	require.NoError(t, err)
	require.Contains(t, rendered, "endpoint")
	require.Contains(t, rendered, "upstream")
	require.True(t, strings.Contains(rendered, "120"))
}

func TestFormattersTolerateNil(t *testing.T) {
	for _, format := range []Format{FormatTable, FormatJSON} {
		formatter := NewFormatter(format)

		rendered, err := formatter.FormatBudget(nil)
		require.NoError(t, err)
		require.Empty(t, rendered)

		rendered, err = formatter.FormatMetrics(nil)
		require.NoError(t, err)
		require.Empty(t, rendered)
	}
}
