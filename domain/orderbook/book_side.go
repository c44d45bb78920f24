package orderbook

// BookSide is one price-sorted half of the book. Bids rank descending,
// asks ascending, so Best is always the most favorable level. The extreme
// level is cached and only recomputed when the extreme itself is inserted
// or removed.
type BookSide struct {
	side Side
	tree *rbTree
	best *PriceLevel
}

func NewBookSide(side Side) *BookSide {
	return &BookSide{side: side, tree: newRBTree()}
}

func (s *BookSide) Side() Side { return s.side }

// Len is the number of distinct price levels.
func (s *BookSide) Len() int { return s.tree.Size() }

func (s *BookSide) Empty() bool { return s.tree.Size() == 0 }

// Best returns the most favorable level, or nil if the side is empty. O(1).
func (s *BookSide) Best() *PriceLevel { return s.best }

// Level returns the level at price, creating it if absent.
func (s *BookSide) Level(price int64) *PriceLevel {
	lvl := s.tree.Upsert(price)
	if s.best == nil || s.better(price, s.best.Price) {
		s.best = lvl
	}
	return lvl
}

// Find returns the level at price or nil, without creating it.
func (s *BookSide) Find(price int64) *PriceLevel {
	return s.tree.Find(price)
}

// RemoveLevel deletes the level at price. Levels must only be removed
// once empty; a dangling empty level would corrupt depth queries.
func (s *BookSide) RemoveLevel(price int64) {
	if !s.tree.Delete(price) {
		return
	}
	if s.best != nil && s.best.Price == price {
		s.best = s.extreme()
	}
}

// Depth visits up to n (price, aggregate quantity) pairs in priority
// order. The walk restarts from the top on every call.
func (s *BookSide) Depth(n int, fn func(price, qty int64) bool) {
	if n <= 0 {
		return
	}
	seen := 0
	s.Walk(func(lvl *PriceLevel) bool {
		if !fn(lvl.Price, lvl.TotalQty()) {
			return false
		}
		seen++
		return seen < n
	})
}

// Walk visits every level in priority order until fn returns false.
func (s *BookSide) Walk(fn func(*PriceLevel) bool) {
	if s.side == Bid {
		s.tree.Descend(fn)
	} else {
		s.tree.Ascend(fn)
	}
}

func (s *BookSide) better(a, b int64) bool {
	if s.side == Bid {
		return a > b
	}
	return a < b
}

func (s *BookSide) extreme() *PriceLevel {
	if s.side == Bid {
		return s.tree.Max()
	}
	return s.tree.Min()
}
