package pool

import (
	"container/list"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
)

// TargetKind distinguishes a fully resolved address from one that still
// needs per-connect name resolution.
type TargetKind int

const (
	// KindSockaddr means the target's address is already known — either a
	// parsed IPv4/IPv6 literal or a Unix-domain socket path.
	KindSockaddr TargetKind = iota
	// KindNamed means the host is a DNS name; resolution happens on every
	// connect attempt via the Resolver collaborator.
	KindNamed
)

// AddrFamily refines KindSockaddr.
type AddrFamily int

const (
	FamilyUnspecified AddrFamily = iota
	FamilyInet4
	FamilyInet6
	FamilyUnix
)

// Target is an immutable-after-construction description of one upstream
// endpoint, plus the mutable idle list and in-flight counter the pool
// maintains for it. Construction normalizes the URL exactly once so no
// hot-path code repeats host/port parsing.
type Target struct {
	URL  *url.URL
	Kind TargetKind

	// Family and IP are populated when Kind == KindSockaddr and the
	// target is an Inet address.
	Family AddrFamily
	IP     net.IP

	// UnixPath is populated when Kind == KindSockaddr and Family ==
	// FamilyUnix.
	UnixPath string

	// Host and Port are populated when Kind == KindNamed: Host is the
	// lower-cased hostname, Port the pre-rendered decimal port string, so
	// dial never has to re-render it per attempt.
	Host string
	Port string

	// BalancerState is the opaque per-target datum a Balancer receives
	// via Init and Selector; callers attach it at construction time.
	BalancerState any

	idleList     *list.List // of *PoolEntry, tail = most recently returned
	requestCount atomic.Int64
}

// newTarget parses rawURL and classifies it per the construction rules:
// Unix-socket convention, then numeric-literal detection, then Named
// fallback. Host and authority are lower-cased unless the target is a
// Unix-domain socket (I4).
func newTarget(rawURL string, balancerState any) (*Target, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	t := &Target{
		BalancerState: balancerState,
		idleList:      list.New(),
	}

	if unixPath, ok := unixSocketPath(u); ok {
		t.Kind = KindSockaddr
		t.Family = FamilyUnix
		t.UnixPath = unixPath
		t.URL = u
		return t, nil
	}

	host := u.Hostname()
	lowerHost := strings.ToLower(host)
	u.Host = normalizeAuthority(u, lowerHost)

	if ip := net.ParseIP(host); ip != nil {
		t.Kind = KindSockaddr
		t.IP = ip
		if ip.To4() != nil {
			t.Family = FamilyInet4
		} else {
			t.Family = FamilyInet6
		}
		t.URL = u
		return t, nil
	}

	t.Kind = KindNamed
	t.Host = lowerHost
	t.Port = portOf(u)
	t.URL = u
	return t, nil
}

// unixSocketPath recognizes the "unix:///path/to.sock" convention. This is
// the one URL-shape decision the specification delegates to an external
// collaborator; a single scheme check is enough for this pool's callers.
func unixSocketPath(u *url.URL) (string, bool) {
	if u.Scheme != "unix" {
		return "", false
	}
	if u.Path != "" {
		return u.Path, true
	}
	return u.Opaque, u.Opaque != ""
}

// portOf returns the URL's explicit port, defaulting by scheme the way
// net/url deliberately does not.
func portOf(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	switch u.Scheme {
	case "https", "wss":
		return "443"
	default:
		return "80"
	}
}

func normalizeAuthority(u *url.URL, lowerHost string) string {
	if p := u.Port(); p != "" {
		return net.JoinHostPort(lowerHost, p)
	}
	return lowerHost
}

// matches implements the global-pool lookup key: scheme equality, port
// equality (after defaulting), and host equality — all case-insensitive
// except for Unix targets, which are compared by literal path.
func (t *Target) matches(u *url.URL) bool {
	if unixPath, ok := unixSocketPath(u); ok {
		return t.Kind == KindSockaddr && t.Family == FamilyUnix && t.UnixPath == unixPath
	}
	if t.Kind == KindSockaddr && t.Family == FamilyUnix {
		return false
	}
	if !strings.EqualFold(t.URL.Scheme, u.Scheme) {
		return false
	}
	if portOf(t.URL) != portOf(u) {
		return false
	}
	return strings.EqualFold(t.hostname(), u.Hostname())
}

func (t *Target) hostname() string {
	if t.Kind == KindNamed {
		return t.Host
	}
	return t.URL.Hostname()
}

// RequestCount returns the current in-flight counter for this target:
// sockets checked out or mid-connect against it. See DESIGN.md for the
// documented asymmetry around idle-list reuse.
func (t *Target) RequestCount() int64 { return t.requestCount.Load() }

func (t *Target) dialAddr() string {
	switch t.Family {
	case FamilyUnix:
		return t.UnixPath
	default:
		return net.JoinHostPort(t.IP.String(), portOf(t.URL))
	}
}

func (t *Target) network() string {
	if t.Family == FamilyUnix {
		return "unix"
	}
	return "tcp"
}
