// Package output renders admin command results for terminals and
// scripts.
package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/shelfgate/shelfgate/internal/core"
)

// Format represents an output format.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// BudgetReport is the admin view of the shared query budget.
type BudgetReport struct {
	AvailablePoints float64   `json:"available_points"`
	Capacity        float64   `json:"capacity"`
	RefillRate      float64   `json:"refill_rate"`
	CheckedAt       time.Time `json:"checked_at"`
}

// Formatter renders admin reports.
type Formatter interface {
	FormatBudget(report *BudgetReport) (string, error)
	FormatMetrics(snapshot *core.MetricsSnapshot) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	default:
		return &TableFormatter{}
	}
}
