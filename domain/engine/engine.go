package engine

import (
	"errors"
	"fmt"

	"tycho/domain/orderbook"
	"tycho/infra/memory"
	"tycho/infra/sequence"
)

var (
	// ErrInvalidOrder rejects a request before any book mutation:
	// non-positive quantity, non-positive limit price, a price on a
	// market order, or an id that already rests.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrCapacityExceeded surfaces order-pool exhaustion as backpressure.
	// The triggering request is rejected, not queued.
	ErrCapacityExceeded = errors.New("order pool exhausted")

	// ErrUnknownOrder mirrors orderbook.ErrUnknownOrder for callers that
	// only import this package.
	ErrUnknownOrder = orderbook.ErrUnknownOrder
)

// Engine drives the matching loop over one OrderBook. It is not safe for
// concurrent use: exactly one goroutine may call the mutating methods.
// Orders come from a fixed pool and go back through the retire ring, so
// the matching path allocates nothing but the returned trade slice.
//
// The engine does not prevent self-trading; callers that need it must
// filter upstream.
type Engine struct {
	book *orderbook.OrderBook
	pool *memory.Pool[orderbook.Order]
	ring *memory.RetireRing
	seq  *sequence.Sequencer
	sink EventSink
}

func New(
	book *orderbook.OrderBook,
	pool *memory.Pool[orderbook.Order],
	ring *memory.RetireRing,
	seq *sequence.Sequencer,
	sink EventSink,
) *Engine {
	if sink == nil {
		sink = NopSink{}
	}
	return &Engine{book: book, pool: pool, ring: ring, seq: seq, sink: sink}
}

// Book exposes the underlying book for read-only queries.
func (e *Engine) Book() *orderbook.OrderBook { return e.book }

// SubmitOrder validates, admits, and matches a new order. Validation
// failures reject synchronously and never mutate book state.
func (e *Engine) SubmitOrder(req Submit) (Result, error) {
	if err := validate(req); err != nil {
		e.sink.OnRejected(Rejected{OrderID: req.OrderID, Reason: err.Error()})
		return Result{}, err
	}
	if e.book.Lookup(req.OrderID) != nil {
		err := fmt.Errorf("%w: id %d already resting", ErrInvalidOrder, req.OrderID)
		e.sink.OnRejected(Rejected{OrderID: req.OrderID, Reason: err.Error()})
		return Result{}, err
	}

	o := e.pool.Get()
	if o == nil {
		e.sink.OnRejected(Rejected{OrderID: req.OrderID, Reason: ErrCapacityExceeded.Error()})
		return Result{}, ErrCapacityExceeded
	}

	seq := e.seq.Next()
	*o = orderbook.Order{
		ID:        req.OrderID,
		Seq:       seq,
		Price:     req.Price,
		Qty:       req.Qty,
		Remaining: req.Qty,
		Side:      req.Side,
		Kind:      req.Kind,
		Status:    orderbook.Pending,
	}
	e.sink.OnAccepted(Accepted{OrderID: o.ID, Seq: seq})

	return e.run(o), nil
}

// CancelOrder removes a resting order. Repeated cancels of the same id
// keep reporting ErrUnknownOrder after the first.
func (e *Engine) CancelOrder(id uint64) error {
	o, err := e.book.Cancel(id)
	if err != nil {
		return err
	}
	side, price := o.Side, o.Price
	e.retire(o)
	e.sink.OnBookUpdate(BookUpdate{Side: side, Price: price, Qty: e.levelQty(side, price)})
	return nil
}

// ModifyOrder applies the standard exchange convention: a quantity-only
// decrease keeps the order's FIFO slot; any price change or quantity
// increase forfeits priority and re-enters matching as a fresh
// submission, so an aggressively repriced order may cross immediately.
func (e *Engine) ModifyOrder(req Modify) (Result, error) {
	o := e.book.Lookup(req.OrderID)
	if o == nil {
		return Result{}, fmt.Errorf("%w: %d", ErrUnknownOrder, req.OrderID)
	}
	if req.NewQty <= 0 {
		return Result{}, fmt.Errorf("%w: quantity must be positive", ErrInvalidOrder)
	}
	if req.NewPrice != nil && *req.NewPrice <= 0 {
		return Result{}, fmt.Errorf("%w: price must be positive", ErrInvalidOrder)
	}

	priceChanged := req.NewPrice != nil && *req.NewPrice != o.Price
	if !priceChanged && req.NewQty <= o.Remaining {
		if req.NewQty < o.Remaining {
			if _, err := e.book.Reduce(o.ID, req.NewQty); err != nil {
				return Result{}, err
			}
			e.sink.OnBookUpdate(BookUpdate{Side: o.Side, Price: o.Price, Qty: e.levelQty(o.Side, o.Price)})
		}
		outcome := OutcomeResting
		if o.Filled() > 0 {
			outcome = OutcomePartialResting
		}
		return Result{OrderID: o.ID, Seq: o.Seq, Outcome: outcome, Remaining: o.Remaining}, nil
	}

	// Cancel-and-reinsert with a fresh sequence number.
	o, err := e.book.Remove(req.OrderID)
	if err != nil {
		return Result{}, err
	}
	side, oldPrice := o.Side, o.Price
	e.sink.OnBookUpdate(BookUpdate{Side: side, Price: oldPrice, Qty: e.levelQty(side, oldPrice)})

	if priceChanged {
		o.Price = *req.NewPrice
	}
	delta := req.NewQty - o.Remaining
	o.Remaining = req.NewQty
	o.Qty += delta
	o.Seq = e.seq.Next()
	if o.Filled() > 0 {
		o.Status = orderbook.PartiallyFilled
	} else {
		o.Status = orderbook.Pending
	}

	return e.run(o), nil
}

// run drives an admitted order through matching and settles the residue.
func (e *Engine) run(o *orderbook.Order) Result {
	trades := e.match(o)
	res := Result{OrderID: o.ID, Seq: o.Seq, Remaining: o.Remaining, Trades: trades}

	switch {
	case o.Remaining == 0:
		o.Status = orderbook.Filled
		res.Outcome = OutcomeFilled
		e.retire(o)
	case o.Kind == orderbook.Market:
		// Market residue never rests: discard.
		o.Status = orderbook.Cancelled
		res.Outcome = OutcomeDone
		e.retire(o)
	default:
		if err := e.book.InsertResting(o); err != nil {
			panic(fmt.Sprintf("engine: reinsert of admitted order failed: %v", err))
		}
		if len(trades) > 0 {
			o.Status = orderbook.PartiallyFilled
			res.Outcome = OutcomePartialResting
		} else {
			res.Outcome = OutcomeResting
		}
		e.sink.OnBookUpdate(BookUpdate{Side: o.Side, Price: o.Price, Qty: e.levelQty(o.Side, o.Price)})
	}

	e.assertUncrossed()
	return res
}

// match consumes the opposite side while the order crosses. Execution is
// at the resting price; within a level, earlier-accepted orders fill
// strictly first.
func (e *Engine) match(o *orderbook.Order) []Trade {
	var trades []Trade
	opp := e.book.SideOf(o.Side.Opposite())

	for o.Remaining > 0 {
		best := opp.Best()
		if best == nil {
			break
		}
		if o.Kind != orderbook.Market && !crosses(o.Side, o.Price, best.Price) {
			break
		}

		resting := best.Front()
		qty := o.Remaining
		if resting.Remaining < qty {
			qty = resting.Remaining
		}
		price := best.Price

		o.Remaining -= qty
		resting.Remaining -= qty
		best.Reduce(qty)

		tr := Trade{
			ID:         e.seq.Next(),
			RestingID:  resting.ID,
			IncomingID: o.ID,
			Price:      price,
			Qty:        qty,
			Seq:        o.Seq,
		}
		trades = append(trades, tr)
		e.sink.OnTrade(tr)

		if resting.Remaining == 0 {
			best.PopFront()
			resting.Status = orderbook.Filled
			e.book.Unindex(resting.ID)
			e.retire(resting)
			if best.Empty() {
				opp.RemoveLevel(price)
			}
		} else {
			resting.Status = orderbook.PartiallyFilled
		}
		e.sink.OnBookUpdate(BookUpdate{Side: opp.Side(), Price: price, Qty: best.TotalQty()})
	}

	return trades
}

func (e *Engine) retire(o *orderbook.Order) {
	o.SetRetireEpoch(memory.GlobalEpoch.Load())
	if !e.ring.Enqueue(o) {
		panic("engine: retire ring full")
	}
}

func (e *Engine) levelQty(side orderbook.Side, price int64) int64 {
	if lvl := e.book.SideOf(side).Find(price); lvl != nil {
		return lvl.TotalQty()
	}
	return 0
}

// assertUncrossed halts on a crossed book at steady state. A crossing
// that survives the matching loop is a defect in the core; continuing
// would risk silently wrong trades.
func (e *Engine) assertUncrossed() {
	bb, okBid := e.book.BestBid()
	ba, okAsk := e.book.BestAsk()
	if okBid && okAsk && bb.Price >= ba.Price {
		panic(fmt.Sprintf("engine: crossed book at steady state: bid %d >= ask %d", bb.Price, ba.Price))
	}
}

func crosses(side orderbook.Side, limit, oppBest int64) bool {
	if side == orderbook.Bid {
		return limit >= oppBest
	}
	return limit <= oppBest
}

func validate(req Submit) error {
	if req.Qty <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidOrder)
	}
	switch req.Kind {
	case orderbook.Limit:
		if req.Price <= 0 {
			return fmt.Errorf("%w: limit price must be positive", ErrInvalidOrder)
		}
	case orderbook.Market:
		if req.Price != 0 {
			return fmt.Errorf("%w: market order must not carry a price", ErrInvalidOrder)
		}
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidOrder, req.Kind)
	}
	return nil
}
