package budget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/atscore/internal/db"
)

type fakeKV struct {
	values  map[string][]byte
	counts  map[string]int64
	ttls    map[string]time.Duration
	getErr  error
	incrErr error
}

func newFakeKV() *fakeKV {
	return &fakeKV{
		values: map[string][]byte{},
		counts: map[string]int64{},
		ttls:   map[string]time.Duration{},
	}
}

func (f *fakeKV) Get(_ context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	v, ok := f.values[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (f *fakeKV) IncrBy(_ context.Context, key string, val int64) error {
	if f.incrErr != nil {
		return f.incrErr
	}
	f.counts[key] += val
	return nil
}

func (f *fakeKV) Expire(_ context.Context, key string, ttl time.Duration, nx bool) error {
	if _, ok := f.ttls[key]; ok && nx {
		return nil
	}
	f.ttls[key] = ttl
	return nil
}

func TestStore_IncrBySetsTTLByPeriod(t *testing.T) {
	kv := newFakeKV()
	s := New(kv, time.Hour, 2*time.Hour)
	ctx := context.Background()

	daily := "atscore:budget:openai:daily:2026-10-19"
	monthly := "atscore:budget:openai:monthly:2026-10"

	for _, key := range []string{daily, monthly, daily} {
		if err := s.IncrBy(ctx, key, 10); err != nil {
			t.Fatalf("IncrBy(%s): %v", key, err)
		}
	}

	if kv.counts[daily] != 20 {
		t.Errorf("daily count = %d, want 20", kv.counts[daily])
	}
	if kv.ttls[daily] != time.Hour {
		t.Errorf("daily ttl = %v, want 1h", kv.ttls[daily])
	}
	if kv.ttls[monthly] != 2*time.Hour {
		t.Errorf("monthly ttl = %v, want 2h", kv.ttls[monthly])
	}
}

func TestStore_TotalNeverExpires(t *testing.T) {
	kv := newFakeKV()
	s := New(kv, 0, 0)
	key := "atscore:budget:openai:total"

	if err := s.IncrBy(context.Background(), key, 7); err != nil {
		t.Fatalf("IncrBy: %v", err)
	}
	if _, ok := kv.ttls[key]; ok {
		t.Error("total counter must not get a TTL")
	}
	if kv.counts[key] != 7 {
		t.Errorf("count = %d, want 7", kv.counts[key])
	}
}

func TestStore_Get(t *testing.T) {
	kv := newFakeKV()
	kv.values["k"] = []byte("1234")
	s := New(kv, 0, 0)

	got, err := s.Get(context.Background(), "k")
	if err != nil || got != 1234 {
		t.Fatalf("Get = %d, %v", got, err)
	}

	got, err = s.Get(context.Background(), "missing")
	if err != nil || got != 0 {
		t.Fatalf("missing key: Get = %d, %v", got, err)
	}

	kv.values["bad"] = []byte("abc")
	if _, err := s.Get(context.Background(), "bad"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestStore_Errors(t *testing.T) {
	kv := newFakeKV()
	kv.getErr = errors.New("conn reset")
	kv.incrErr = errors.New("conn reset")
	s := New(kv, 0, 0)

	if _, err := s.Get(context.Background(), "k"); err == nil {
		t.Error("expected Get error")
	}
	if err := s.IncrBy(context.Background(), "k", 1); err == nil {
		t.Error("expected IncrBy error")
	}
}

func TestNew_Defaults(t *testing.T) {
	s := New(newFakeKV(), 0, -1)
	if s.dailyTTL != DefaultDailyTTL || s.monthTTL != DefaultMonthlyTTL {
		t.Errorf("unexpected defaults %v %v", s.dailyTTL, s.monthTTL)
	}
}
