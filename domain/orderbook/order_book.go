package orderbook

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownOrder is returned by cancel/modify paths when the id is
	// not resting: never accepted, already filled, or already cancelled.
	ErrUnknownOrder = errors.New("unknown order")

	// ErrDuplicateOrder is returned when an id already rests in the book.
	ErrDuplicateOrder = errors.New("duplicate order id")
)

// LevelInfo is one (price, aggregate quantity) depth entry.
type LevelInfo struct {
	Price int64 `json:"price"`
	Qty   int64 `json:"qty"`
}

// OrderBook owns both sides plus the id index over all resting orders.
// It is not safe for concurrent use; a single writer must own it.
type OrderBook struct {
	bids  *BookSide
	asks  *BookSide
	index map[uint64]*Order
}

func New() *OrderBook {
	return &OrderBook{
		bids:  NewBookSide(Bid),
		asks:  NewBookSide(Ask),
		index: make(map[uint64]*Order),
	}
}

// SideOf returns the requested side.
func (b *OrderBook) SideOf(s Side) *BookSide {
	if s == Bid {
		return b.bids
	}
	return b.asks
}

// Lookup returns the resting order with the given id, or nil.
func (b *OrderBook) Lookup(id uint64) *Order {
	return b.index[id]
}

// Resting is the number of resting orders across both sides.
func (b *OrderBook) Resting() int { return len(b.index) }

// InsertResting places an order at the tail of its side's price level and
// registers it in the id index.
func (b *OrderBook) InsertResting(o *Order) error {
	if _, ok := b.index[o.ID]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateOrder, o.ID)
	}
	lvl := b.SideOf(o.Side).Level(o.Price)
	lvl.Append(o)
	b.index[o.ID] = o
	return nil
}

// Cancel removes the order from its level and the index, dropping the
// level if it empties. The order is marked Cancelled and returned so the
// caller can retire it.
func (b *OrderBook) Cancel(id uint64) (*Order, error) {
	o, err := b.Remove(id)
	if err != nil {
		return nil, err
	}
	o.Status = Cancelled
	return o, nil
}

// Remove unlinks a resting order without changing its status. Used by
// modify to reposition an order before resubmission.
func (b *OrderBook) Remove(id uint64) (*Order, error) {
	o, ok := b.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownOrder, id)
	}
	lvl := o.level
	lvl.Remove(o)
	if lvl.Empty() {
		b.SideOf(o.Side).RemoveLevel(lvl.Price)
	}
	delete(b.index, id)
	return o, nil
}

// Unindex drops an order from the id index only. The matching loop calls
// this after PopFront has already unlinked the order from its level.
func (b *OrderBook) Unindex(id uint64) {
	delete(b.index, id)
}

// Reduce shrinks a resting order's remaining quantity to newRemaining,
// keeping its FIFO slot. newRemaining must be positive and strictly less
// than the current remaining; anything else is a repricing and must go
// through cancel-and-reinsert instead.
func (b *OrderBook) Reduce(id uint64, newRemaining int64) (*Order, error) {
	o, ok := b.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownOrder, id)
	}
	delta := o.Remaining - newRemaining
	o.Remaining = newRemaining
	o.Qty -= delta // executed quantity stays Qty-Remaining
	o.level.Reduce(delta)
	return o, nil
}

// BestBid returns the top bid level as (price, aggregate qty).
func (b *OrderBook) BestBid() (LevelInfo, bool) {
	return bestOf(b.bids)
}

// BestAsk returns the top ask level as (price, aggregate qty).
func (b *OrderBook) BestAsk() (LevelInfo, bool) {
	return bestOf(b.asks)
}

func bestOf(s *BookSide) (LevelInfo, bool) {
	lvl := s.Best()
	if lvl == nil {
		return LevelInfo{}, false
	}
	return LevelInfo{Price: lvl.Price, Qty: lvl.TotalQty()}, true
}

// Depth returns the first n levels of the given side in priority order.
// n is clamped to the number of levels actually present, so a huge n
// cannot drive the allocation.
func (b *OrderBook) Depth(side Side, n int) []LevelInfo {
	if m := b.SideOf(side).Len(); n > m {
		n = m
	}
	if n <= 0 {
		return nil
	}
	out := make([]LevelInfo, 0, n)
	b.SideOf(side).Depth(n, func(price, qty int64) bool {
		out = append(out, LevelInfo{Price: price, Qty: qty})
		return true
	})
	return out
}

// CheckInvariants verifies steady-state consistency: the book is not
// crossed, per-level aggregates match their queues, empty levels do not
// linger, and the id index covers exactly the resting orders. A non-nil
// result indicates a defect in the core, not a caller error.
func (b *OrderBook) CheckInvariants() error {
	if bb, ok := b.BestBid(); ok {
		if ba, ok := b.BestAsk(); ok && bb.Price >= ba.Price {
			return fmt.Errorf("crossed book: best bid %d >= best ask %d", bb.Price, ba.Price)
		}
	}
	indexed := 0
	for _, side := range []*BookSide{b.bids, b.asks} {
		var walkErr error
		side.Walk(func(lvl *PriceLevel) bool {
			if lvl.Empty() {
				walkErr = fmt.Errorf("empty %s level at %d", side.Side(), lvl.Price)
				return false
			}
			var sum int64
			lvl.Each(func(o *Order) bool {
				sum += o.Remaining
				if b.index[o.ID] != o {
					walkErr = fmt.Errorf("order %d resting at %d but not indexed", o.ID, lvl.Price)
					return false
				}
				indexed++
				return true
			})
			if walkErr != nil {
				return false
			}
			if sum != lvl.TotalQty() {
				walkErr = fmt.Errorf("level %d aggregate %d != sum %d", lvl.Price, lvl.TotalQty(), sum)
				return false
			}
			return true
		})
		if walkErr != nil {
			return walkErr
		}
	}
	if indexed != len(b.index) {
		return fmt.Errorf("index holds %d orders, book holds %d", len(b.index), indexed)
	}
	return nil
}
