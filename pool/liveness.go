//go:build unix

package pool

import (
	"net"

	"golang.org/x/sys/unix"
)

// livenessResult classifies an idle socket probed with a non-blocking
// 1-byte peek, per the specification's liveness-probe contract: this is
// deliberately below net.Conn — it must not consume the byte it sees, and
// higher-level Read cannot express "would block" vs "EOF" vs "unexpected
// data" without side effects.
type livenessResult int

const (
	livenessAlive livenessResult = iota
	livenessDead
	livenessDirty
)

// probeLiveness performs the peek described in spec §4.4: MSG_PEEK with
// MSG_DONTWAIT, never blocking and never draining the socket's buffer.
func probeLiveness(c net.Conn) livenessResult {
	rc, ok := rawConn(c)
	if !ok {
		// No raw fd available — conservatively treat as alive so the
		// caller hands it out rather than discarding a possibly-good
		// connection it cannot introspect.
		return livenessAlive
	}

	var buf [1]byte
	var n int
	var recvErr error
	err := rc.Read(func(fd uintptr) bool {
		n, _, recvErr = unix.Recvfrom(int(fd), buf[:], unix.MSG_PEEK|unix.MSG_DONTWAIT)
		return true
	})
	if err != nil {
		return livenessDead
	}

	switch {
	case recvErr == unix.EAGAIN || recvErr == unix.EWOULDBLOCK:
		return livenessAlive
	case recvErr != nil:
		return livenessDead
	case n == 0:
		return livenessDead
	default:
		return livenessDirty
	}
}
