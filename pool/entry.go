package pool

import (
	"container/list"
	"net"
	"syscall"
)

// PoolEntry is one idle, previously-established socket plus the bookkeeping
// the pool needs to reclaim or expire it. Membership in the pool-wide list
// and the owning target's list is tracked by caching both *list.Element
// pointers, so unlinking from either list is O(1) and never requires
// scanning — the Go equivalent of the intrusive linked-list fields the
// specification describes (see DESIGN.md).
type PoolEntry struct {
	conn        net.Conn
	targetIndex int
	addedAt     int64 // ms, per the injected Clock

	allElem    *list.Element // element in Pool.allIdle
	targetElem *list.Element // element in Target.idleList
}

// rawConn exposes the underlying file descriptor needed for the liveness
// probe. Only *net.TCPConn and *net.UnixConn (and anything satisfying
// syscall.Conn) support this; other net.Conn implementations are rejected
// at Return time.
func rawConn(c net.Conn) (syscall.RawConn, bool) {
	sc, ok := c.(syscall.Conn)
	if !ok {
		return nil, false
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return nil, false
	}
	return rc, true
}
