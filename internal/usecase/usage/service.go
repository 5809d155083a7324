// Package usage reports embedding token consumption against the configured budget.
package usage

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/atscore/internal/domain/usage"
)

// Service builds usage reports.
type Service struct {
	br  BudgetReader
	now func() time.Time
}

// New creates a Service. br can be nil (no budget tracking configured).
func New(br BudgetReader) *Service {
	return &Service{br: br, now: time.Now}
}

// GetReport builds a usage report for the given period.
func (s *Service) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	now := s.now().UTC()
	r := domusage.Report{Period: period}

	var limit, used, remaining int64 = 0, 0, -1

	switch period {
	case domusage.PeriodDay:
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		r.PeriodStart = dayStart.UnixMilli()
		r.PeriodEnd = dayStart.AddDate(0, 0, 1).UnixMilli()
		if s.br != nil {
			limit, used, remaining = s.br.DailyLimit(), s.br.DailyUsed(), s.br.RemainingDaily()
		}
	case domusage.PeriodMonth:
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		r.PeriodStart = monthStart.UnixMilli()
		r.PeriodEnd = monthStart.AddDate(0, 1, 0).UnixMilli()
		if s.br != nil {
			limit, used, remaining = s.br.MonthlyLimit(), s.br.MonthlyUsed(), s.br.RemainingMonthly()
		}
	default:
		// total has no boundaries and no limit of its own
		if s.br != nil {
			used = s.br.TotalUsed()
		}
	}

	if s.br != nil {
		r.Provider = s.br.Provider()
	}
	r.Tokens = used
	r.Budget = domusage.NewBudget(limit, remaining, r.PeriodEnd)
	return r
}
