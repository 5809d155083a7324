// Package health aggregates dependency checks for the /health endpoint.
package health

import (
	"context"
	"sync"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded means scoring works but an optional component (the cache) is failing.
	Degraded Status = "degraded"
	// Unhealthy means the embedding provider is unreachable and scoring cannot succeed.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

const defaultCheckTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	cache     CachePinger
	embedding EmbeddingChecker
	timeout   time.Duration
}

// New creates a Service. Either dependency can be nil and is then not reported.
func New(cache CachePinger, embedding EmbeddingChecker) *Service {
	return &Service{cache: cache, embedding: embedding, timeout: defaultCheckTimeout}
}

// Check runs the component checks concurrently, each under its own timeout.
func (s *Service) Check(ctx context.Context) Report {
	type probe struct {
		name string
		fn   func(context.Context) error
	}
	var probes []probe
	if s.cache != nil {
		probes = append(probes, probe{"cache", s.cache.Ping})
	}
	if s.embedding != nil {
		probes = append(probes, probe{"embedding", s.embedding.HealthCheck})
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]CheckResult, len(probes))
	)
	for _, p := range probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			res := CheckOK
			if err := p.fn(cctx); err != nil {
				res = CheckError
			}
			mu.Lock()
			checks[p.name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()

	status := Healthy
	switch {
	case checks["embedding"] == CheckError:
		status = Unhealthy
	case checks["cache"] == CheckError:
		status = Degraded
	}
	return Report{Status: status, Checks: checks}
}
