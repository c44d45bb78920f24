package memory

// Pool is a fixed-capacity arena of T slots with a free list. Get and Put
// are O(1) and never allocate after construction; Get returns nil when the
// arena is exhausted so callers can surface backpressure instead of
// growing the heap.
type Pool[T any] struct {
	slots []T
	free  []*T
}

func NewPool[T any](capacity int) *Pool[T] {
	if capacity <= 0 {
		panic("memory.Pool: capacity must be positive")
	}
	p := &Pool[T]{
		slots: make([]T, capacity),
		free:  make([]*T, 0, capacity),
	}
	for i := capacity - 1; i >= 0; i-- {
		p.free = append(p.free, &p.slots[i])
	}
	return p
}

// Get returns a zeroed slot, or nil if the pool is exhausted.
func (p *Pool[T]) Get() *T {
	n := len(p.free)
	if n == 0 {
		return nil
	}
	v := p.free[n-1]
	p.free = p.free[:n-1]
	return v
}

// Put zeroes the slot and returns it to the free list. The slot must have
// come from this pool and must no longer be referenced anywhere.
func (p *Pool[T]) Put(v *T) {
	var zero T
	*v = zero
	p.free = append(p.free, v)
}

// PutAny allows Pool[T] to satisfy ReclaimablePool.
// This is an explicit, safe adapter between typed and erased worlds.
func (p *Pool[T]) PutAny(v any) {
	obj, ok := v.(*T)
	if !ok {
		panic("memory.Pool: PutAny received wrong type")
	}
	p.Put(obj)
}

func (p *Pool[T]) Free() int { return len(p.free) }
func (p *Pool[T]) Cap() int  { return len(p.slots) }
