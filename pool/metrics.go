package pool

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

// Counter is a monotonically increasing value, adapted from the gateway's
// hand-rolled Prometheus counter (see DESIGN.md) rather than pulling in a
// full client library for a handful of gauges.
type Counter struct{ value int64 }

func (c *Counter) Inc()         { atomic.AddInt64(&c.value, 1) }
func (c *Counter) Add(n int64)  { atomic.AddInt64(&c.value, n) }
func (c *Counter) Value() int64 { return atomic.LoadInt64(&c.value) }

// Stats is a point-in-time snapshot of pool-wide and per-target counters,
// suitable for JSON serialization or Prometheus exposition.
type Stats struct {
	TotalIdleCount    int64         `json:"total_idle_count"`
	DialSuccessCount  int64         `json:"dial_success_count"`
	DialFailureCount  int64         `json:"dial_failure_count"`
	DeadDiscardCount  int64         `json:"dead_discard_count"`
	DirtyDiscardCount int64         `json:"dirty_discard_count"`
	Targets           []TargetStats `json:"targets"`
}

// TargetStats is the per-target slice of Stats.
type TargetStats struct {
	URL          string `json:"url"`
	RequestCount int64  `json:"request_count"`
}

// Snapshot returns the current counters. The pool mutex is held only to
// copy the target slice; the counters themselves are read without it —
// they are atomics, advisory for observability per spec §5, not
// load-bearing for list correctness.
func (p *Pool) Snapshot() Stats {
	p.mu.Lock()
	targets := make([]*Target, len(p.targets))
	copy(targets, p.targets)
	p.mu.Unlock()

	st := Stats{
		TotalIdleCount:    p.totalIdleCount.Load(),
		DialSuccessCount:  p.dialSuccessCount.Value(),
		DialFailureCount:  p.dialFailureCount.Value(),
		DeadDiscardCount:  p.deadDiscardCount.Value(),
		DirtyDiscardCount: p.dirtyDiscardCount.Value(),
		Targets:           make([]TargetStats, len(targets)),
	}
	for i, t := range targets {
		st.Targets[i] = TargetStats{
			URL:          t.URL.String(),
			RequestCount: t.requestCount.Load(),
		}
	}
	return st
}

// PrometheusText renders Stats in Prometheus text exposition format,
// following the gateway's metrics.Handler layout (TYPE line per metric,
// one sample line per label set).
func (s Stats) PrometheusText() string {
	var sb strings.Builder

	sb.WriteString("# TYPE pool_total_idle_count gauge\n")
	fmt.Fprintf(&sb, "pool_total_idle_count %d\n\n", s.TotalIdleCount)

	sb.WriteString("# TYPE pool_dial_success_count counter\n")
	fmt.Fprintf(&sb, "pool_dial_success_count %d\n\n", s.DialSuccessCount)

	sb.WriteString("# TYPE pool_dial_failure_count counter\n")
	fmt.Fprintf(&sb, "pool_dial_failure_count %d\n\n", s.DialFailureCount)

	sb.WriteString("# TYPE pool_dead_discard_count counter\n")
	fmt.Fprintf(&sb, "pool_dead_discard_count %d\n\n", s.DeadDiscardCount)

	sb.WriteString("# TYPE pool_dirty_discard_count counter\n")
	fmt.Fprintf(&sb, "pool_dirty_discard_count %d\n\n", s.DirtyDiscardCount)

	sorted := make([]TargetStats, len(s.Targets))
	copy(sorted, s.Targets)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].URL < sorted[j].URL })

	sb.WriteString("# TYPE pool_target_request_count gauge\n")
	for _, t := range sorted {
		fmt.Fprintf(&sb, "pool_target_request_count{target=%q} %d\n", t.URL, t.RequestCount)
	}

	return sb.String()
}
