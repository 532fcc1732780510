package pool

import (
	"container/list"
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

const defaultIdleTimeoutMs = 2000

// Options configures a Pool at construction. Zero values pick the
// specification's documented defaults; Resolver/Dialer/Clock default to
// real net-package-backed implementations so production callers never
// need to set them.
type Options struct {
	// Capacity is the advisory upper bound on total connections. It is
	// stored but neither reported nor enforced on Acquire — see the
	// "capacity" open question in DESIGN.md, which preserves the
	// source's stored-but-not-enforced behavior rather than inventing
	// admission control.
	Capacity int

	// IdleTimeoutMs is the keep-alive window; entries older than this are
	// trimmed by the expirer. Defaults to 2000.
	IdleTimeoutMs int64

	// Balancer scores and picks targets. NewSpecific keeps it only when
	// given more than one target; NewGlobal always keeps it (Init,
	// RecordAttempt and Dispose are called) but never calls Selector.
	// Defaults to NewSLABalancer(Clock) if nil.
	Balancer Balancer

	Resolver Resolver
	Dialer   Dialer
	Clock    Clock
	Prober   LivenessProber
	Logger   zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.IdleTimeoutMs == 0 {
		o.IdleTimeoutMs = defaultIdleTimeoutMs
	}
	if o.Balancer == nil {
		o.Balancer = NewSLABalancer(o.Clock)
	}
	if o.Resolver == nil {
		o.Resolver = netResolver{}
	}
	if o.Dialer == nil {
		o.Dialer = &netDialer{}
	}
	if o.Clock == nil {
		o.Clock = realClock{}
	}
	if o.Prober == nil {
		o.Prober = realProber{}
	}
	return o
}

// Pool is the connection-pool façade: construct via NewSpecific or
// NewGlobal, drive acquire/return/dispose through the methods below.
//
// mu protects targets membership, allIdle, each target's idleList, and the
// list-link fields of PoolEntry. totalIdleCount and each Target's
// requestCount are atomics, read and written without mu — they are
// advisory counters for observability (I2/I3), not load-bearing for list
// correctness (I1).
type Pool struct {
	mu       sync.Mutex
	targets  []*Target
	isGlobal bool
	capacity int

	idleTimeoutMs  int64
	allIdle        *list.List // of *PoolEntry, head = LRU, tail = MRU
	totalIdleCount atomic.Int64

	// Per-outcome connect counters, exposed via Snapshot/PrometheusText.
	dialSuccessCount  Counter
	dialFailureCount  Counter
	deadDiscardCount  Counter
	dirtyDiscardCount Counter

	balancer      Balancer
	balancerState any
	haveBalancer  bool // true iff >1 target at construction, or global

	resolver Resolver
	dialer   Dialer
	clock    Clock
	prober   LivenessProber
	logger   zerolog.Logger

	expirer  *expirer
	disposed bool
}

// NewSpecific builds a pool with a fixed target set. targetURLs must be
// non-empty (I5). balancerStates, if non-nil, supplies one BalancerState
// value per target by index.
func NewSpecific(targetURLs []string, balancerStates []any, opts Options) (*Pool, error) {
	if len(targetURLs) == 0 {
		return nil, fmt.Errorf("pool: at least one target is required")
	}
	opts = opts.withDefaults()

	p := newPool(opts)
	p.isGlobal = false

	for i, raw := range targetURLs {
		var state any
		if i < len(balancerStates) {
			state = balancerStates[i]
		}
		t, err := newTarget(raw, state)
		if err != nil {
			return nil, fmt.Errorf("pool: target %q: %w", raw, err)
		}
		p.targets = append(p.targets, t)
	}

	if len(p.targets) > 1 {
		p.haveBalancer = true
		p.balancerState = p.balancer.Init(p.targets)
	} else {
		// With <=1 target the selector is never engaged (spec §4.5); use
		// the no-op implementation instead of holding an unused scoring
		// balancer alive.
		p.balancer = trivialBalancer{}
	}

	return p, nil
}

// NewGlobal builds a pool whose target set starts empty and grows lazily,
// keyed by URL, on first acquire against a previously unseen host.
func NewGlobal(opts Options) *Pool {
	opts = opts.withDefaults()
	p := newPool(opts)
	p.isGlobal = true
	p.haveBalancer = true
	p.balancerState = p.balancer.Init(p.targets)
	return p
}

func newPool(opts Options) *Pool {
	return &Pool{
		capacity:      opts.Capacity,
		idleTimeoutMs: opts.IdleTimeoutMs,
		allIdle:       list.New(),
		balancer:      opts.Balancer,
		resolver:      opts.Resolver,
		dialer:        opts.Dialer,
		clock:         opts.Clock,
		prober:        opts.Prober,
		logger:        opts.Logger.With().Str("component", "pool").Logger(),
	}
}

// RegisterLoop starts the background expirer. Calling it while already
// registered is a no-op, per spec §4.3.
func (p *Pool) RegisterLoop(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.expirer != nil {
		return
	}
	p.expirer = startExpirer(ctx, p)
}

// UnregisterLoop stops the background expirer, if running.
func (p *Pool) UnregisterLoop() {
	p.mu.Lock()
	e := p.expirer
	p.expirer = nil
	p.mu.Unlock()
	if e != nil {
		e.stop()
	}
}

// CanKeepAlive reports whether returning a socket to this pool is
// worthwhile: true iff IdleTimeoutMs > 0.
func (p *Pool) CanKeepAlive() bool {
	return p.idleTimeoutMs > 0
}

// TotalIdleCount returns the current reservation-inclusive idle counter
// (I2): it exceeds the literal length of the idle lists by the number of
// in-flight connect attempts that have reserved a slot plus the number of
// sockets currently checked out.
func (p *Pool) TotalIdleCount() int64 { return p.totalIdleCount.Load() }

// lookupOrAddTarget implements the global-pool matching rule from §4.2:
// scheme equality, port equality after defaulting, and host equality.
// Callers must hold p.mu.
func (p *Pool) lookupOrAddTarget(u *url.URL) (int, error) {
	for i, t := range p.targets {
		if t.matches(u) {
			return i, nil
		}
	}
	t, err := newTarget(u.String(), nil)
	if err != nil {
		return -1, err
	}
	p.targets = append(p.targets, t)
	return len(p.targets) - 1, nil
}

// Dispose tears the pool down: destroys every idle entry, disposes the
// balancer, and stops the expirer.
func (p *Pool) Dispose() {
	p.UnregisterLoop()

	p.mu.Lock()
	p.disposed = true
	p.drainAllIdle()
	bstate := p.balancerState
	p.mu.Unlock()

	if p.haveBalancer {
		p.balancer.Dispose(bstate)
	}
}
