package pool

import (
	"context"
	"net"
	"time"
)

// Resolver is the asynchronous DNS collaborator for Named targets. It
// mirrors the specification's getaddr/select_one contract: Resolve returns
// every candidate address, and the pool selects one itself so tests can
// pin the selection policy.
type Resolver interface {
	Resolve(ctx context.Context, host string) ([]net.IP, error)
}

// netResolver is the default Resolver, backed by net.DefaultResolver.
type netResolver struct{}

func (netResolver) Resolve(ctx context.Context, host string) ([]net.IP, error) {
	return net.DefaultResolver.LookupIP(ctx, "ip", host)
}

// selectAddr implements the "select one address" policy the specification
// delegates to the resolver collaborator: prefer the first candidate, which
// for net.DefaultResolver already reflects the system's address-family
// preference order.
func selectAddr(ips []net.IP) net.IP {
	return ips[0]
}

// Dialer is the non-blocking connect collaborator.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// netDialer is the default Dialer, backed by net.Dialer.
type netDialer struct {
	d net.Dialer
}

func (n *netDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return n.d.DialContext(ctx, network, address)
}

// Clock is the monotonic now() collaborator, injectable so the expirer and
// MRU/LRU ordering tests are deterministic.
type Clock interface {
	NowMillis() int64
}

type realClock struct{}

func (realClock) NowMillis() int64 { return time.Now().UnixMilli() }

// LivenessProber is the non-blocking 1-byte-peek collaborator described in
// spec §9: it classifies an idle socket as alive, dead, or dirty without
// consuming any byte it sees. Exposed as an interface (rather than calling
// probeLiveness directly) so tests can pin a result without needing a real
// socket pair.
type LivenessProber interface {
	Probe(net.Conn) livenessResult
}

// realProber delegates to the platform-specific raw-fd peek (liveness.go
// on Unix, a deadline-read fallback elsewhere).
type realProber struct{}

func (realProber) Probe(c net.Conn) livenessResult { return probeLiveness(c) }
