package pool

import (
	"math"
	"time"
)

// Balancer is the pluggable target-selection policy. A fixed pool with one
// target replaces it with a no-op; Selector is called only by a fixed pool
// with more than one target, with the pool's mutex held, and must be
// non-blocking.
type Balancer interface {
	// Init receives the target vector at construction and returns an
	// opaque state value threaded through subsequent Selector calls.
	Init(targets []*Target) any
	// Selector must return an index i such that tried[i] == false. extra
	// is the per-acquire lb_extra value passed through from Acquire.
	Selector(targets []*Target, state any, tried []bool, extra any) int
	// RecordAttempt feeds one connect attempt's outcome for targets[index]
	// back into state, so Selector's next call reflects it. Called for
	// every fresh dial, never for an idle-list reuse. latencyMs is
	// meaningless when failed is true.
	RecordAttempt(state any, index int, latencyMs float64, failed bool)
	// Dispose releases any resources Init allocated.
	Dispose(state any)
}

// trivialBalancer is used internally when a pool has exactly one target;
// the specification leaves the selector unengaged in that case (the loop
// just picks index 0), so its Selector is never called; tryConnect still
// calls its RecordAttempt, which does nothing. It exists so Pool always has
// a non-nil Balancer field to simplify call sites.
type trivialBalancer struct{}

func (trivialBalancer) Init([]*Target) any                       { return nil }
func (trivialBalancer) Selector([]*Target, any, []bool, any) int { return 0 }
func (trivialBalancer) RecordAttempt(any, int, float64, bool)    {}
func (trivialBalancer) Dispose(any)                              {}

// SLATarget carries the per-target SLA thresholds an SLABalancer scores
// against, attached via Target.BalancerState.
type SLATarget struct {
	MaxP95LatencyMs float64
	MaxErrorRate    float64
	MinAvailability float64
	Weight          float64
}

// DefaultSLATarget returns a permissive baseline SLA.
func DefaultSLATarget() SLATarget {
	return SLATarget{
		MaxP95LatencyMs: 5000,
		MaxErrorRate:    0.05,
		MinAvailability: 0.99,
		Weight:          1.0,
	}
}

// targetHealth tracks real-time connect-latency and failure-rate metrics
// for one target, scored by SLABalancer. The EWMA-latency / sliding-window
// error-rate / decaying-penalty design is adapted directly from the
// gateway's provider health scorer (see DESIGN.md) and retargeted from
// "LLM provider" to "pool target": it scores connect-attempt outcomes
// rather than full request latency.
type targetHealth struct {
	ewmaLatencyMs float64
	ewmaAlpha     float64

	totalAttempts int64
	totalFailures int64
	windowStart   time.Time
	windowSize    time.Duration

	penalty     float64
	penaltyTime time.Time
}

func newTargetHealth(now time.Time) *targetHealth {
	return &targetHealth{
		ewmaAlpha:   0.3,
		windowStart: now,
		windowSize:  5 * time.Minute,
	}
}

func (h *targetHealth) recordLatency(now time.Time, ms float64) {
	if h.ewmaLatencyMs == 0 {
		h.ewmaLatencyMs = ms
	} else {
		h.ewmaLatencyMs = h.ewmaAlpha*ms + (1-h.ewmaAlpha)*h.ewmaLatencyMs
	}
	h.totalAttempts++
}

func (h *targetHealth) recordFailure() {
	h.totalFailures++
	h.totalAttempts++
}

func (h *targetHealth) addPenalty(amount float64, now time.Time) {
	h.penalty = math.Min(1.0, h.penalty+amount)
	h.penaltyTime = now
}

type healthSnapshot struct {
	ewmaLatencyMs float64
	failureRate   float64
	penalty       float64
	totalAttempts int64
}

func (h *targetHealth) snapshot(now time.Time) healthSnapshot {
	if now.Sub(h.windowStart) > h.windowSize {
		h.totalAttempts = 0
		h.totalFailures = 0
		h.windowStart = now
	}

	penalty := h.penalty
	if penalty > 0 && !h.penaltyTime.IsZero() {
		elapsed := now.Sub(h.penaltyTime).Minutes()
		penalty *= math.Exp(-elapsed / 5.0)
		if penalty < 0.01 {
			penalty = 0
		}
	}

	failureRate := 0.0
	if h.totalAttempts > 0 {
		failureRate = float64(h.totalFailures) / float64(h.totalAttempts)
	}

	return healthSnapshot{
		ewmaLatencyMs: h.ewmaLatencyMs,
		failureRate:   failureRate,
		penalty:       penalty,
		totalAttempts: h.totalAttempts,
	}
}

// SLABalancer is the default Balancer: among untried targets it picks the
// one with the best composite score of connect-latency EWMA, recent
// connect-failure rate, and a static per-target weight.
type SLABalancer struct {
	clock Clock
}

// NewSLABalancer constructs an SLABalancer. clock defaults to the real
// wall clock if nil.
func NewSLABalancer(clock Clock) *SLABalancer {
	if clock == nil {
		clock = realClock{}
	}
	return &SLABalancer{clock: clock}
}

type slaState struct {
	health []*targetHealth
}

func (b *SLABalancer) Init(targets []*Target) any {
	now := time.UnixMilli(b.clock.NowMillis())
	st := &slaState{health: make([]*targetHealth, len(targets))}
	for i := range targets {
		st.health[i] = newTargetHealth(now)
	}
	return st
}

func (b *SLABalancer) Dispose(any) {}

// Selector scores every untried target and returns the best. extra is
// ignored by this implementation but is still part of the interface so
// other balancers can use it (e.g. an affinity hint).
func (b *SLABalancer) Selector(targets []*Target, state any, tried []bool, extra any) int {
	st, _ := state.(*slaState)
	now := time.UnixMilli(b.clock.NowMillis())

	best := -1
	bestScore := -1.0
	for i, t := range targets {
		if tried[i] {
			continue
		}
		if st == nil || i >= len(st.health) {
			return i
		}
		slaTarget, _ := t.BalancerState.(SLATarget)
		if slaTarget == (SLATarget{}) {
			slaTarget = DefaultSLATarget()
		}
		score := b.computeScore(st.health[i].snapshot(now), slaTarget)
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	if best == -1 {
		// Every target already tried; the caller guarantees this is
		// never reached (remaining_tries bounds attempts), but return
		// the first untried index defensively rather than panic.
		for i := range tried {
			if !tried[i] {
				return i
			}
		}
	}
	return best
}

func (b *SLABalancer) computeScore(snap healthSnapshot, target SLATarget) float64 {
	latencyScore := 1.0
	if snap.ewmaLatencyMs > 0 && target.MaxP95LatencyMs > 0 {
		ratio := snap.ewmaLatencyMs / target.MaxP95LatencyMs
		if ratio > 1.0 {
			latencyScore = math.Exp(-(ratio - 1.0) * 2.0)
		}
	}

	failureScore := 1.0
	if snap.totalAttempts > 10 {
		if target.MaxErrorRate > 0 {
			ratio := snap.failureRate / target.MaxErrorRate
			if ratio > 1.0 {
				failureScore = math.Exp(-(ratio - 1.0) * 3.0)
			}
		} else if snap.failureRate > 0 {
			failureScore = 1.0 - snap.failureRate
		}
	}

	freshnessScore := 1.0
	if snap.totalAttempts == 0 {
		freshnessScore = 0.5
	}

	composite := latencyScore*0.6 + failureScore*0.3 + freshnessScore*0.1

	weight := target.Weight
	if weight <= 0 {
		weight = 1.0
	}

	return composite * weight * (1.0 - snap.penalty)
}

// RecordAttempt implements Balancer.RecordAttempt, feeding Pool.tryConnect's
// dial outcomes back into scoring state — mirroring RecordSuccess/
// RecordFailure on the source scorer. state must be the value Init
// returned for this pool.
func (b *SLABalancer) RecordAttempt(state any, index int, latencyMs float64, failed bool) {
	st, ok := state.(*slaState)
	if !ok || index < 0 || index >= len(st.health) {
		return
	}
	now := time.UnixMilli(b.clock.NowMillis())
	if failed {
		st.health[index].recordFailure()
		st.health[index].addPenalty(0.2, now)
		return
	}
	st.health[index].recordLatency(now, latencyMs)
}
