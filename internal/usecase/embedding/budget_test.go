package embedding

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/atscore/internal/domain"
)

func TestBudgetTracker_Check(t *testing.T) {
	tests := []struct {
		name    string
		daily   int64
		monthly int64
		action  BudgetAction
		record  int64
		wantErr bool
	}{
		{"daily reject", 100, 0, BudgetActionReject, 100, true},
		{"daily warn", 100, 0, BudgetActionWarn, 200, false},
		{"monthly reject", 0, 500, BudgetActionReject, 500, true},
		{"unlimited", 0, 0, BudgetActionReject, 999999999, false},
		{"below limit", 1000, 10000, BudgetActionReject, 500, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			bt := NewBudgetTracker("test", tc.daily, tc.monthly, tc.action, zap.NewNop())
			bt.Record(tc.record)

			err := bt.Check(context.Background())
			if tc.wantErr && !errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
				t.Fatalf("expected ErrEmbeddingQuotaExceeded, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("expected nil, got %v", err)
			}
		})
	}
}

func TestBudgetTracker_Remaining(t *testing.T) {
	bt := NewBudgetTracker("test", 1000, 10000, BudgetActionWarn, zap.NewNop())
	bt.Record(300)

	if got := bt.RemainingDaily(); got != 700 {
		t.Errorf("RemainingDaily = %d, want 700", got)
	}
	if got := bt.RemainingMonthly(); got != 9700 {
		t.Errorf("RemainingMonthly = %d, want 9700", got)
	}

	bt.Record(5000)
	if got := bt.RemainingDaily(); got != 0 {
		t.Errorf("RemainingDaily must not go negative, got %d", got)
	}
	if got := bt.TotalUsed(); got != 5300 {
		t.Errorf("TotalUsed = %d, want 5300", got)
	}
}

func TestBudgetTracker_RemainingUnlimited(t *testing.T) {
	bt := NewBudgetTracker("test", 0, 0, BudgetActionWarn, zap.NewNop())

	if bt.RemainingDaily() != -1 || bt.RemainingMonthly() != -1 {
		t.Errorf("expected -1 for unlimited, got %d/%d", bt.RemainingDaily(), bt.RemainingMonthly())
	}
}

func TestBudgetTracker_DayRollover(t *testing.T) {
	now := time.Date(2026, time.October, 31, 23, 59, 0, 0, time.UTC)
	bt := NewBudgetTracker("test", 100, 1000, BudgetActionReject, zap.NewNop())
	bt.now = func() time.Time { return now }
	bt.lastDayReset = truncateToDay(now)
	bt.lastMonthReset = truncateToMonth(now)

	bt.Record(100)
	if err := bt.Check(context.Background()); err == nil {
		t.Fatal("expected daily limit hit")
	}

	now = now.Add(2 * time.Minute) // November 1st
	if err := bt.Check(context.Background()); err != nil {
		t.Fatalf("expected reset after midnight, got %v", err)
	}
	if bt.MonthlyUsed() != 0 {
		t.Errorf("expected monthly reset on new month, got %d", bt.MonthlyUsed())
	}
	if bt.TotalUsed() != 100 {
		t.Errorf("total must survive rollover, got %d", bt.TotalUsed())
	}
}

type mockBudgetStore struct {
	mu     sync.Mutex
	data   map[string]int64
	getErr error
	setErr error
}

func newMockBudgetStore() *mockBudgetStore {
	return &mockBudgetStore{data: make(map[string]int64)}
}

func (m *mockBudgetStore) IncrBy(_ context.Context, key string, val int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] += val
	return nil
}

func (m *mockBudgetStore) Get(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return 0, m.getErr
	}
	return m.data[key], nil
}

func (m *mockBudgetStore) get(key string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key]
}

func TestBudgetTracker_WithStore_LoadsValues(t *testing.T) {
	store := newMockBudgetStore()
	bt := NewBudgetTracker("prov", 1000, 10000, BudgetActionReject, zap.NewNop())
	store.data[bt.dailyKey(bt.lastDayReset)] = 300
	store.data[bt.monthlyKey(bt.lastMonthReset)] = 5000
	store.data[bt.totalKey()] = 90000

	bt.WithStore(context.Background(), store)

	if bt.DailyUsed() != 300 || bt.MonthlyUsed() != 5000 || bt.TotalUsed() != 90000 {
		t.Errorf("unexpected counters %d/%d/%d", bt.DailyUsed(), bt.MonthlyUsed(), bt.TotalUsed())
	}
}

func TestBudgetTracker_Record_PersistsAllKeys(t *testing.T) {
	store := newMockBudgetStore()
	bt := NewBudgetTracker("prov", 10000, 100000, BudgetActionWarn, zap.NewNop())
	bt.WithStore(context.Background(), store)

	bt.Record(100)
	bt.Record(200)

	for _, key := range []string{bt.dailyKey(bt.lastDayReset), bt.monthlyKey(bt.lastMonthReset), bt.totalKey()} {
		if got := store.get(key); got != 300 {
			t.Errorf("store[%s] = %d, want 300", key, got)
		}
	}
}

func TestBudgetTracker_StoreErrors(t *testing.T) {
	store := newMockBudgetStore()
	store.getErr = errors.New("connection refused")

	bt := NewBudgetTracker("prov", 1000, 10000, BudgetActionReject, zap.NewNop())
	bt.WithStore(context.Background(), store)
	if bt.DailyUsed() != 0 {
		t.Errorf("expected 0 on load error, got %d", bt.DailyUsed())
	}

	store.mu.Lock()
	store.setErr = errors.New("write timeout")
	store.mu.Unlock()

	bt.Record(50)
	if bt.DailyUsed() != 50 {
		t.Errorf("in-memory counter must advance on store error, got %d", bt.DailyUsed())
	}
}

func TestBudgetTracker_Keys(t *testing.T) {
	bt := NewBudgetTracker("openai", 0, 0, BudgetActionWarn, zap.NewNop())
	day := time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC)

	if got := bt.dailyKey(day); got != "atscore:budget:openai:daily:2026-10-19" {
		t.Errorf("dailyKey = %q", got)
	}
	if got := bt.monthlyKey(day); got != "atscore:budget:openai:monthly:2026-10" {
		t.Errorf("monthlyKey = %q", got)
	}
	if got := bt.totalKey(); !strings.HasSuffix(got, ":total") {
		t.Errorf("totalKey = %q", got)
	}
	if bt.Provider() != "openai" {
		t.Errorf("Provider = %q", bt.Provider())
	}
}
