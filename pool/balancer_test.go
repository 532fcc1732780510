package pool

import (
	"testing"
	"time"
)

func TestSLABalancerSkipsTriedTargets(t *testing.T) {
	clock := &stubClock{}
	b := NewSLABalancer(clock)
	targets := []*Target{{}, {}, {}}
	state := b.Init(targets)

	tried := []bool{true, false, true}
	got := b.Selector(targets, state, tried, nil)
	if got != 1 {
		t.Fatalf("Selector = %d, want 1 (the only untried target)", got)
	}
}

func TestSLABalancerPrefersLowerLatency(t *testing.T) {
	clock := &stubClock{}
	b := NewSLABalancer(clock)
	targets := []*Target{{}, {}}
	state := b.Init(targets).(*slaState)

	// target 0 is fast and healthy, target 1 is far past its SLA latency.
	now := time.UnixMilli(clock.NowMillis())
	for i := 0; i < 20; i++ {
		state.health[0].recordLatency(now, 10)
		state.health[1].recordLatency(now, 50000)
	}

	tried := []bool{false, false}
	got := b.Selector(targets, state, tried, nil)
	if got != 0 {
		t.Fatalf("Selector = %d, want 0 (the low-latency target)", got)
	}
}

func TestSLABalancerPenalizesFailures(t *testing.T) {
	clock := &stubClock{}
	b := NewSLABalancer(clock)
	targets := []*Target{{}, {}}
	state := b.Init(targets).(*slaState)

	now := time.UnixMilli(clock.NowMillis())
	for i := 0; i < 20; i++ {
		state.health[0].recordLatency(now, 20)
		state.health[1].recordLatency(now, 20)
	}
	for i := 0; i < 15; i++ {
		state.health[1].recordFailure()
	}
	b.RecordAttempt(state, 1, 0, true)

	tried := []bool{false, false}
	got := b.Selector(targets, state, tried, nil)
	if got != 0 {
		t.Fatalf("Selector = %d, want 0 (the target without recent failures)", got)
	}
}

func TestTrivialBalancerAlwaysPicksZero(t *testing.T) {
	var b trivialBalancer
	if got := b.Selector(nil, nil, []bool{false}, nil); got != 0 {
		t.Fatalf("Selector = %d, want 0", got)
	}
}
