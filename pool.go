package broadphase

// Records are allocated in chunks of this many when a pool runs dry.
const poolChunk = 32

// PoolStats describes the state of a record pool.
type PoolStats struct {
	InUse     int // records handed out and not yet returned
	Free      int // records waiting in the free list
	Allocated int // records ever allocated
	Peak      int // highest InUse seen
}

// slab hands out records of type T from a free list. Records never move, so
// pointers to them stay valid while they are in use and after they are
// returned. A returned record is the first one to be handed out again.
type slab[T any] struct {
	free  []*T
	stats PoolStats
}

func (p *slab[T]) get() *T {
	if len(p.free) == 0 {
		// Pool is exhausted make more
		chunk := make([]T, poolChunk)
		for i := len(chunk) - 1; i >= 0; i-- {
			p.free = append(p.free, &chunk[i])
		}
		p.stats.Allocated += poolChunk
	}

	last := len(p.free) - 1
	item := p.free[last]
	p.free[last] = nil
	p.free = p.free[:last]

	p.stats.InUse++
	if p.stats.InUse > p.stats.Peak {
		p.stats.Peak = p.stats.InUse
	}
	return item
}

// put returns a record to the pool. The caller resets whatever state must
// not survive reuse.
func (p *slab[T]) put(item *T) {
	p.free = append(p.free, item)
	p.stats.InUse--
}

func (p *slab[T]) Stats() PoolStats {
	stats := p.stats
	stats.Free = len(p.free)
	return stats
}
