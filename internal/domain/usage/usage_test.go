package usage

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/atscore/internal/domain"
)

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in      string
		want    Period
		wantErr bool
	}{
		{"", PeriodMonth, false},
		{"day", PeriodDay, false},
		{"month", PeriodMonth, false},
		{"total", PeriodTotal, false},
		{"week", "", true},
		{"DAY", "", true},
	}

	for _, tc := range tests {
		got, err := ParsePeriod(tc.in)
		if tc.wantErr {
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("ParsePeriod(%q): expected ErrValidation, got %v", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParsePeriod(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
}

func TestNewBudget(t *testing.T) {
	tests := []struct {
		name      string
		limit     int64
		remaining int64
		exhausted bool
	}{
		{"unlimited", 0, -1, false},
		{"spare", 1000, 400, false},
		{"spent", 1000, 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBudget(tc.limit, tc.remaining, 42)
			if b.Exhausted != tc.exhausted {
				t.Errorf("Exhausted = %v, want %v", b.Exhausted, tc.exhausted)
			}
			if b.ResetsAt != 42 {
				t.Errorf("ResetsAt = %d", b.ResetsAt)
			}
		})
	}
}
