//go:build !unix

package pool

import (
	"net"
	"time"
)

// livenessResult mirrors the unix build's type; see liveness.go.
type livenessResult int

const (
	livenessAlive livenessResult = iota
	livenessDead
	livenessDirty
)

// probeLiveness on non-Unix platforms has no MSG_PEEK equivalent exposed by
// the standard library, so it falls back to a very short deadline read.
// This is strictly weaker than the raw-fd peek (a byte waiting on the
// socket is consumed by the read rather than peeked) but keeps the pool buildable
// on platforms golang.org/x/sys/unix does not cover.
func probeLiveness(c net.Conn) livenessResult {
	_ = c.SetReadDeadline(time.Now().Add(time.Millisecond))
	defer c.SetReadDeadline(time.Time{})

	var buf [1]byte
	n, err := c.Read(buf[:])
	switch {
	case n > 0:
		return livenessDirty
	case err == nil:
		return livenessDirty
	case isTimeout(err):
		return livenessAlive
	default:
		return livenessDead
	}
}

func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	te, ok := err.(timeout)
	return ok && te.Timeout()
}
