package orderbook

// PriceLevel is the FIFO queue of resting orders at one price. Orders are
// linked intrusively; the level tracks the aggregate remaining quantity so
// depth queries never walk the queue.
type PriceLevel struct {
	Price int64

	head, tail *Order
	totalQty   int64
	count      int
}

// Append adds an order to the tail of the queue.
func (l *PriceLevel) Append(o *Order) {
	if l.head == nil {
		l.head = o
		l.tail = o
	} else {
		l.tail.next = o
		o.prev = l.tail
		l.tail = o
	}
	o.level = l
	l.totalQty += o.Remaining
	l.count++
}

// Front returns the earliest-accepted order without removing it, or nil.
func (l *PriceLevel) Front() *Order { return l.head }

// PopFront unlinks and returns the front order.
func (l *PriceLevel) PopFront() *Order {
	o := l.head
	if o == nil {
		return nil
	}
	l.unlink(o)
	return o
}

// Remove excises an order from anywhere in the queue, preserving the
// relative order of the rest. Used by out-of-order cancellation.
func (l *PriceLevel) Remove(o *Order) {
	l.unlink(o)
}

// Reduce shrinks the aggregate after a fill or in-place quantity decrease
// of a contained order. The order's own Remaining must already be updated.
func (l *PriceLevel) Reduce(delta int64) {
	l.totalQty -= delta
}

func (l *PriceLevel) unlink(o *Order) {
	if o.prev != nil {
		o.prev.next = o.next
	} else {
		l.head = o.next
	}
	if o.next != nil {
		o.next.prev = o.prev
	} else {
		l.tail = o.prev
	}
	o.next = nil
	o.prev = nil
	o.level = nil
	l.totalQty -= o.Remaining
	l.count--
}

func (l *PriceLevel) TotalQty() int64 { return l.totalQty }
func (l *PriceLevel) Len() int        { return l.count }
func (l *PriceLevel) Empty() bool     { return l.head == nil }

// Each visits the queue front to back until fn returns false.
func (l *PriceLevel) Each(fn func(*Order) bool) {
	for o := l.head; o != nil; o = o.next {
		if !fn(o) {
			return
		}
	}
}
