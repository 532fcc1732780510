package pool

// pushIdle links entry into both the pool-wide list (tail) and the
// target's idle list (tail), satisfying I1: membership in the two lists is
// always paired. Callers must hold p.mu.
func (p *Pool) pushIdle(entry *PoolEntry) {
	entry.allElem = p.allIdle.PushBack(entry)
	entry.targetElem = p.targets[entry.targetIndex].idleList.PushBack(entry)
}

// unlinkIdle removes entry from both lists. Callers must hold p.mu.
func (p *Pool) unlinkIdle(entry *PoolEntry) {
	p.allIdle.Remove(entry.allElem)
	p.targets[entry.targetIndex].idleList.Remove(entry.targetElem)
	entry.allElem = nil
	entry.targetElem = nil
}

// popMRU removes and returns the most-recently-returned entry for the
// given target (the tail of its idle list), or nil if empty. Callers must
// hold p.mu.
func (p *Pool) popMRU(targetIndex int) *PoolEntry {
	idle := p.targets[targetIndex].idleList
	elem := idle.Back()
	if elem == nil {
		return nil
	}
	entry := elem.Value.(*PoolEntry)
	p.unlinkIdle(entry)
	return entry
}

// expireFromHead walks p.allIdle from the head — the LRU end — destroying
// every entry at or past the idle timeout, per I6 (returns append at the
// tail, so once a live entry is found the rest are newer). Callers must
// hold p.mu.
func (p *Pool) expireFromHead(now int64) int {
	trimmed := 0
	for {
		elem := p.allIdle.Front()
		if elem == nil {
			break
		}
		entry := elem.Value.(*PoolEntry)
		if now-entry.addedAt < p.idleTimeoutMs {
			break
		}
		p.unlinkIdle(entry)
		p.destroyEntry(entry)
		trimmed++
	}
	return trimmed
}

// destroyEntry closes the underlying connection and decrements
// total_idle_count. Callers must hold p.mu and must already have unlinked
// entry from both lists.
func (p *Pool) destroyEntry(entry *PoolEntry) {
	_ = entry.conn.Close()
	p.totalIdleCount.Add(-1)
}

// drainAllIdle destroys every idle entry across every target. Used by
// Dispose. Callers must hold p.mu.
func (p *Pool) drainAllIdle() {
	for {
		elem := p.allIdle.Front()
		if elem == nil {
			return
		}
		entry := elem.Value.(*PoolEntry)
		p.unlinkIdle(entry)
		p.destroyEntry(entry)
	}
}
