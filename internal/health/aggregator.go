package health

import (
	"context"
	"sync"
	"time"
)

// Aggregator fans one health request out to every registered checker.
type Aggregator struct {
	checkers []Checker
	mu       sync.RWMutex
}

func NewAggregator(checkers ...Checker) *Aggregator {
	return &Aggregator{
		checkers: checkers,
	}
}

// AddChecker registers another checker. Components that come up late
// (history store, redis) add themselves here.
func (a *Aggregator) AddChecker(checker Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.checkers = append(a.checkers, checker)
}

// CheckAll runs every checker concurrently and collects the results
// by checker name.
func (a *Aggregator) CheckAll(ctx context.Context) map[string]CheckResult {
	a.mu.RLock()
	defer a.mu.RUnlock()

	results := make(map[string]CheckResult)
	resultsMu := sync.Mutex{}
	wg := sync.WaitGroup{}

	for _, checker := range a.checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()

			result := c.Check(ctx)

			resultsMu.Lock()
			results[c.Name()] = result
			resultsMu.Unlock()
		}(checker)
	}

	wg.Wait()
	return results
}

// OverallStatus folds the individual results into one status: any
// unhealthy component makes the whole unhealthy, any degraded one
// makes it degraded.
func (a *Aggregator) OverallStatus(ctx context.Context) Status {
	results := a.CheckAll(ctx)

	unhealthyCount := 0
	degradedCount := 0

	for _, result := range results {
		switch result.Status {
		case StatusUnhealthy:
			unhealthyCount++
		case StatusDegraded:
			degradedCount++
		}
	}

	if unhealthyCount > 0 {
		return StatusUnhealthy
	}

	if degradedCount > 0 {
		return StatusDegraded
	}

	return StatusHealthy
}

// Ready backs the readiness probe. Degraded still counts as ready;
// only unhealthy takes the service out of rotation.
func (a *Aggregator) Ready(ctx context.Context) bool {
	status := a.OverallStatus(ctx)
	return status != StatusUnhealthy
}

// Alive backs the liveness probe. A process that answers is alive.
func (a *Aggregator) Alive() bool {
	return true
}

// HealthReport is the body of the detailed health endpoint.
type HealthReport struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}
