package health

import (
	"context"
	"testing"
	"time"
)

type mockChecker struct {
	name   string
	status Status
}

func (m *mockChecker) Name() string {
	return m.name
}

func (m *mockChecker) Check(ctx context.Context) CheckResult {
	return CheckResult{
		Status:  m.status,
		Message: "mock",
		Latency: time.Millisecond,
	}
}

func TestAggregator(t *testing.T) {
	t.Run("all healthy", func(t *testing.T) {
		agg := NewAggregator(
			&mockChecker{"bridge", StatusHealthy},
			&mockChecker{"database", StatusHealthy},
		)

		status := agg.OverallStatus(context.Background())
		if status != StatusHealthy {
			t.Errorf("expected StatusHealthy, got: %v", status)
		}

		if !agg.Ready(context.Background()) {
			t.Error("all healthy should be ready")
		}
	})

	t.Run("one degraded", func(t *testing.T) {
		agg := NewAggregator(
			&mockChecker{"bridge", StatusDegraded},
			&mockChecker{"database", StatusHealthy},
		)

		status := agg.OverallStatus(context.Background())
		if status != StatusDegraded {
			t.Errorf("expected StatusDegraded, got: %v", status)
		}

		// degraded still serves
		if !agg.Ready(context.Background()) {
			t.Error("degraded should still be ready")
		}
	})

	t.Run("one unhealthy", func(t *testing.T) {
		agg := NewAggregator(
			&mockChecker{"bridge", StatusUnhealthy},
			&mockChecker{"database", StatusHealthy},
		)

		status := agg.OverallStatus(context.Background())
		if status != StatusUnhealthy {
			t.Errorf("expected StatusUnhealthy, got: %v", status)
		}

		if agg.Ready(context.Background()) {
			t.Error("unhealthy should not be ready")
		}
	})

	t.Run("CheckAll runs every checker", func(t *testing.T) {
		agg := NewAggregator(
			&mockChecker{"check1", StatusHealthy},
			&mockChecker{"check2", StatusHealthy},
			&mockChecker{"check3", StatusHealthy},
		)

		results := agg.CheckAll(context.Background())
		if len(results) != 3 {
			t.Errorf("expected 3 results, got: %d", len(results))
		}

		for name, result := range results {
			if result.Status != StatusHealthy {
				t.Errorf("%s: expected StatusHealthy, got: %v", name, result.Status)
			}
		}
	})

	t.Run("AddChecker after construction", func(t *testing.T) {
		agg := NewAggregator(
			&mockChecker{"initial", StatusHealthy},
		)

		agg.AddChecker(&mockChecker{"added", StatusHealthy})

		results := agg.CheckAll(context.Background())
		if len(results) != 2 {
			t.Errorf("expected 2 results, got: %d", len(results))
		}
	})

	t.Run("Alive always true", func(t *testing.T) {
		agg := NewAggregator()

		if !agg.Alive() {
			t.Error("Alive should always return true")
		}
	})
}
