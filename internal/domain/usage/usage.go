// Package usage describes embedding token consumption reports.
package usage

import (
	"fmt"

	"github.com/kailas-cloud/atscore/internal/domain"
)

// Period is the aggregation granularity.
type Period string

// Aggregation periods.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
	PeriodTotal Period = "total"
)

// ParsePeriod validates a period name. An empty string selects PeriodMonth.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case "":
		return PeriodMonth, nil
	case PeriodDay, PeriodMonth, PeriodTotal:
		return p, nil
	default:
		return "", fmt.Errorf("period %q (want day, month or total): %w", s, domain.ErrValidation)
	}
}

// Budget is a snapshot of the token budget for one period.
type Budget struct {
	TokensLimit     int64 // 0 means unlimited
	TokensRemaining int64 // -1 means unlimited
	Exhausted       bool
	ResetsAt        int64 // unix millis, 0 when the period never resets
}

// NewBudget derives the exhausted flag from limit and remaining.
func NewBudget(limit, remaining, resetsAt int64) Budget {
	return Budget{
		TokensLimit:     limit,
		TokensRemaining: remaining,
		Exhausted:       limit > 0 && remaining == 0,
		ResetsAt:        resetsAt,
	}
}

// Report is an embedding usage report for a time period.
type Report struct {
	Period      Period
	PeriodStart int64 // unix millis
	PeriodEnd   int64 // unix millis
	Provider    string
	Tokens      int64
	Budget      Budget
}
