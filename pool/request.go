package pool

import (
	"context"
	"errors"
	"net"
	"net/url"
	"sync"
)

// processWarnings rate-limits the dead/dirty-socket diagnostic to one
// occurrence per reason for the lifetime of the process, per spec §9's
// "global state" note — this is deliberately a package-level var, not a
// per-Pool field.
var processWarnings sync.Map

func (p *Pool) warnOnce(reason string) {
	if _, loaded := processWarnings.LoadOrStore(reason, struct{}{}); !loaded {
		p.logger.Warn().Str("reason", reason).Msg("discarding idle socket")
	}
}

// dnsError wraps a resolver failure so the attempt loop can distinguish it
// from a connect failure: DNS failures on a Named target are never retried
// against other targets (spec §4.4 Phase C), while connect failures are.
type dnsError struct{ err error }

func (e *dnsError) Error() string { return e.err.Error() }
func (e *dnsError) Unwrap() error { return e.err }

func isDNSError(err error) bool {
	var de *dnsError
	return errors.As(err, &de)
}

// trackedConn is the socket handed to an Acquire caller. Closing it without
// going through Pool.Return fires the on_close accounting spec §4.4/§7
// describe: total_idle_count, and (if counted) the owning target's
// request_count, are each decremented exactly once (I3). Pool.Return
// detaches the hook instead, so the same accounting never double-fires.
type trackedConn struct {
	net.Conn
	pool        *Pool
	targetIndex int
	counted     bool

	mu     sync.Mutex
	closed bool
}

func (tc *trackedConn) Close() error {
	tc.mu.Lock()
	already := tc.closed
	tc.closed = true
	tc.mu.Unlock()

	if !already {
		tc.pool.onCheckedOutClose(tc.targetIndex, tc.counted)
	}
	return tc.Conn.Close()
}

// detach clears the on_close hook and hands back the undecorated
// connection, for Return to re-house as a PoolEntry. Returns ok=false if
// the connection was already closed through the normal path.
func (tc *trackedConn) detach() (net.Conn, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.closed {
		return nil, false
	}
	tc.closed = true
	return tc.Conn, true
}

func (p *Pool) onCheckedOutClose(targetIndex int, counted bool) {
	p.totalIdleCount.Add(-1)
	if counted {
		p.targets[targetIndex].requestCount.Add(-1)
	}
}

// Handle is returned by Acquire; it is only useful for Cancel.
type Handle struct {
	req *connectRequest
}

// Cancel aborts an in-flight acquire. Per contract, onDone is not invoked
// for a canceled request — it is the caller's responsibility not to cancel
// after onDone has already fired.
func (h *Handle) Cancel() {
	h.req.cancel()
}

// connectRequest is the live state for one outstanding Acquire call —
// remaining try budget, which targets have been tried, the user callback.
// It is driven by a single goroutine running attemptLoop, which collapses
// the specification's recursive try_connect → on_connect → try_connect
// callback chain into a bounded loop (see SPEC_FULL.md §4.4 and
// DESIGN.md): Go's goroutines make the blocking DNS/dial calls safe to
// perform sequentially instead of via callback reentry.
type connectRequest struct {
	pool   *Pool
	ctx    context.Context
	cancel context.CancelFunc
	onDone func(conn net.Conn, err error, targetURL string)

	selectedTarget int
	triedSet       []bool
	remainingTries int
	lbExtra        any
}

// Acquire begins obtaining a connection to rawURL. onDone is invoked
// exactly once, from a background goroutine, unless the returned Handle is
// canceled first. ctx bounds the DNS/connect attempt(s); canceling it has
// the same effect as calling Handle.Cancel.
func (p *Pool) Acquire(ctx context.Context, rawURL string, lbExtra any, onDone func(conn net.Conn, err error, targetURL string)) (*Handle, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return nil, ErrDisposed
	}
	// Run the expirer opportunistically, per Phase A.
	p.expireFromHead(p.clock.NowMillis())

	// Target resolution (Phase A). For a fixed-target pool with more than
	// one target, the URL is not matched against the target set — the
	// pool already knows its upstreams; the balancer, not the caller's
	// URL, picks one per attempt. Only a global pool keys targets by URL.
	var targetIndex int
	switch {
	case p.isGlobal:
		idx, err := p.lookupOrAddTarget(u)
		if err != nil {
			p.mu.Unlock()
			return nil, err
		}
		targetIndex = idx
	case len(p.targets) == 1:
		targetIndex = 0
	case len(p.targets) == 0:
		p.mu.Unlock()
		return nil, ErrNoTarget
	default:
		targetIndex = -1 // sentinel: unselected, balancer picks per attempt
	}
	p.mu.Unlock()

	reqCtx, cancel := context.WithCancel(ctx)
	req := &connectRequest{
		pool:           p,
		ctx:            reqCtx,
		cancel:         cancel,
		onDone:         onDone,
		selectedTarget: targetIndex,
		lbExtra:        lbExtra,
	}
	if targetIndex == -1 {
		req.triedSet = make([]bool, len(p.targets))
		req.remainingTries = len(p.targets)
	} else {
		req.remainingTries = 1
	}

	go req.attemptLoop()

	return &Handle{req: req}, nil
}

func (r *connectRequest) attemptLoop() {
	defer r.cancel()
	for {
		r.remainingTries--

		conn, targetURL, err := r.pool.tryConnect(r)

		if r.ctx.Err() != nil {
			// Canceled: per contract onDone must not fire. Any reservation
			// or socket opened by tryConnect has already been unwound by
			// tryConnect's own error paths, or must be closed here.
			if conn != nil {
				_ = conn.Close()
			}
			return
		}

		if err == nil {
			r.onDone(conn, nil, targetURL)
			return
		}

		if isDNSError(err) {
			r.onDone(nil, err, "")
			return
		}

		if r.remainingTries > 0 {
			continue
		}
		r.onDone(nil, ErrConnectFailed, "")
		return
	}
}

// tryConnect implements spec §4.4 Phase B plus the inlined C/D/E phases
// (DNS callback, start_connect, on_connect): in this goroutine-per-acquire
// translation those are sequential blocking calls rather than separate
// re-entries, per the design note above.
func (p *Pool) tryConnect(r *connectRequest) (net.Conn, string, error) {
	p.mu.Lock()

	if r.triedSet != nil {
		idx := p.balancer.Selector(p.targets, p.balancerState, r.triedSet, r.lbExtra)
		r.triedSet[idx] = true
		r.selectedTarget = idx
	}
	targetIndex := r.selectedTarget
	target := p.targets[targetIndex]

	for {
		entry := p.popMRU(targetIndex)
		if entry == nil {
			break
		}
		p.mu.Unlock()

		switch p.prober.Probe(entry.conn) {
		case livenessAlive:
			return &trackedConn{Conn: entry.conn, pool: p, targetIndex: targetIndex, counted: false},
				target.URL.String(), nil
		case livenessDead:
			p.warnOnce("idle socket closed by peer")
			p.deadDiscardCount.Inc()
		case livenessDirty:
			p.warnOnce("unexpected data on idle socket")
			p.dirtyDiscardCount.Inc()
		}
		_ = entry.conn.Close()
		p.totalIdleCount.Add(-1)

		p.mu.Lock()
	}
	p.mu.Unlock()

	p.totalIdleCount.Add(1) // reserve: "being created"
	target.requestCount.Add(1)

	start := p.clock.NowMillis()
	conn, err := p.dial(r.ctx, target)
	latencyMs := float64(p.clock.NowMillis() - start)
	if err != nil {
		p.totalIdleCount.Add(-1)
		target.requestCount.Add(-1)
		p.dialFailureCount.Inc()
		p.balancer.RecordAttempt(p.balancerState, targetIndex, 0, true)
		return nil, "", err
	}

	p.dialSuccessCount.Inc()
	p.balancer.RecordAttempt(p.balancerState, targetIndex, latencyMs, false)

	return &trackedConn{Conn: conn, pool: p, targetIndex: targetIndex, counted: true},
		target.URL.String(), nil
}

func (p *Pool) dial(ctx context.Context, target *Target) (net.Conn, error) {
	if target.Kind == KindNamed {
		ips, err := p.resolver.Resolve(ctx, target.Host)
		if err != nil {
			return nil, &dnsError{err}
		}
		addr := net.JoinHostPort(selectAddr(ips).String(), target.Port)
		conn, err := p.dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, ErrDialInit
		}
		return conn, nil
	}

	conn, err := p.dialer.DialContext(ctx, target.network(), target.dialAddr())
	if err != nil {
		return nil, ErrDialInit
	}
	return conn, nil
}

// Return hands an unused-but-open connection back to the pool. It must
// have been obtained from this pool's Acquire. Returns ErrExportFailed if
// conn was not one of this pool's connections, or was already closed.
func (p *Pool) Return(conn net.Conn) error {
	tc, ok := conn.(*trackedConn)
	if !ok || tc.pool != p {
		return ErrExportFailed
	}
	inner, ok := tc.detach()
	if !ok {
		return ErrExportFailed
	}
	if tc.counted {
		p.targets[tc.targetIndex].requestCount.Add(-1)
	}

	if _, ok := rawConn(inner); !ok {
		_ = inner.Close()
		p.totalIdleCount.Add(-1)
		return ErrExportFailed
	}

	entry := &PoolEntry{
		conn:        inner,
		targetIndex: tc.targetIndex,
		addedAt:     p.clock.NowMillis(),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disposed {
		_ = inner.Close()
		p.totalIdleCount.Add(-1)
		return nil
	}
	p.expireFromHead(entry.addedAt)
	p.pushIdle(entry)
	return nil
}
