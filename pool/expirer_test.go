package pool

import (
	"testing"

	"github.com/rs/zerolog"
)

func newTestPool(t *testing.T, idleTimeoutMs int64, clock *stubClock) *Pool {
	t.Helper()
	p, err := NewSpecific([]string{"http://127.0.0.1:8080"}, nil, Options{
		IdleTimeoutMs: idleTimeoutMs,
		Clock:         clock,
		Logger:        zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewSpecific: %v", err)
	}
	return p
}

// expireFromHead trims only entries at or past the idle timeout, stopping
// at the first still-fresh entry (I6: the list is ordered oldest-first).
func TestExpireFromHeadStopsAtFreshEntry(t *testing.T) {
	clock := &stubClock{}
	p := newTestPool(t, 1000, clock)

	connOld, _ := newTestConn()
	connFresh, _ := newTestConn()

	p.mu.Lock()
	p.pushIdle(&PoolEntry{conn: connOld, targetIndex: 0, addedAt: 0})
	p.pushIdle(&PoolEntry{conn: connFresh, targetIndex: 0, addedAt: 900})
	p.mu.Unlock()
	p.totalIdleCount.Add(2)

	p.mu.Lock()
	trimmed := p.expireFromHead(1500)
	remaining := p.allIdle.Len()
	p.mu.Unlock()

	if trimmed != 1 {
		t.Fatalf("trimmed = %d, want 1", trimmed)
	}
	if remaining != 1 {
		t.Fatalf("remaining idle entries = %d, want 1", remaining)
	}
	if !connOld.isClosed() {
		t.Fatalf("expired entry's connection was not closed")
	}
	if connFresh.isClosed() {
		t.Fatalf("fresh entry's connection was closed")
	}
	if got := p.TotalIdleCount(); got != 1 {
		t.Fatalf("total idle count = %d, want 1", got)
	}
}

// tick's try-lock discipline: a contended mutex means the tick is skipped
// outright, with no catch-up once the lock frees up.
func TestExpirerTickSkipsWhenContended(t *testing.T) {
	clock := &stubClock{}
	p := newTestPool(t, 1000, clock)

	connOld, _ := newTestConn()
	p.mu.Lock()
	p.pushIdle(&PoolEntry{conn: connOld, targetIndex: 0, addedAt: 0})
	p.mu.Unlock()
	p.totalIdleCount.Add(1)

	clock.set(5000)

	e := &expirer{pool: p}

	p.mu.Lock()
	e.tick() // mutex held by this goroutine: TryLock fails, tick is a no-op
	p.mu.Unlock()

	if connOld.isClosed() {
		t.Fatalf("tick trimmed an entry despite a contended mutex")
	}
	if got := p.TotalIdleCount(); got != 1 {
		t.Fatalf("total idle count = %d, want 1 (tick should have been skipped)", got)
	}

	e.tick() // mutex now free: the same entry is trimmed on the next tick
	if !connOld.isClosed() {
		t.Fatalf("entry was not trimmed once the mutex was free")
	}
	if got := p.TotalIdleCount(); got != 0 {
		t.Fatalf("total idle count = %d, want 0", got)
	}
}
