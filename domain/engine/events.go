package engine

import "tycho/domain/orderbook"

// Submit asks the engine to match a new order. OrderID is caller-assigned
// and must be unique; Price is required iff Kind is Limit.
type Submit struct {
	OrderID uint64
	Side    orderbook.Side
	Kind    orderbook.Kind
	Price   int64
	Qty     int64
}

// Cancel removes a resting order.
type Cancel struct {
	OrderID uint64
}

// Modify changes a resting order's quantity and, optionally, its price.
// A nil NewPrice means "keep the current price".
type Modify struct {
	OrderID  uint64
	NewPrice *int64
	NewQty   int64
}

// Accepted is emitted once per admitted submission.
type Accepted struct {
	OrderID uint64 `json:"order_id"`
	Seq     uint64 `json:"seq"`
}

// Rejected is emitted for requests that never touch the book.
type Rejected struct {
	OrderID uint64 `json:"order_id"`
	Reason  string `json:"reason"`
}

// Trade records one fill. Price is always the resting order's price:
// price improvement accrues to the resting side. Seq is the incoming
// order's acceptance sequence number.
type Trade struct {
	ID         uint64 `json:"trade_id"`
	RestingID  uint64 `json:"resting_order_id"`
	IncomingID uint64 `json:"incoming_order_id"`
	Price      int64  `json:"price"`
	Qty        int64  `json:"qty"`
	Seq        uint64 `json:"seq"`
}

// BookUpdate is emitted whenever a price level's aggregate changes.
// Qty zero means the level was destroyed.
type BookUpdate struct {
	Side  orderbook.Side `json:"side"`
	Price int64          `json:"price"`
	Qty   int64          `json:"qty"`
}

// EventSink receives engine notifications in emission order. Sinks run on
// the matching thread and must not block.
type EventSink interface {
	OnAccepted(Accepted)
	OnRejected(Rejected)
	OnTrade(Trade)
	OnBookUpdate(BookUpdate)
}

// NopSink discards every event. Used during WAL replay, where events were
// already published in the original run.
type NopSink struct{}

func (NopSink) OnAccepted(Accepted)     {}
func (NopSink) OnRejected(Rejected)     {}
func (NopSink) OnTrade(Trade)           {}
func (NopSink) OnBookUpdate(BookUpdate) {}

// Outcome is the final state of a submission or modification.
type Outcome uint8

const (
	// OutcomeFilled: fully executed, nothing rests.
	OutcomeFilled Outcome = iota
	// OutcomeResting: no fills, the whole order rests.
	OutcomeResting
	// OutcomePartialResting: some fills, the remainder rests.
	OutcomePartialResting
	// OutcomeDone: market-order residue discarded, nothing rests.
	OutcomeDone
)

func (oc Outcome) String() string {
	switch oc {
	case OutcomeFilled:
		return "filled"
	case OutcomeResting:
		return "resting"
	case OutcomePartialResting:
		return "partial_resting"
	default:
		return "done"
	}
}

// Result reports what happened to a submission or modification, with the
// generated trades in execution order.
type Result struct {
	OrderID   uint64
	Seq       uint64
	Outcome   Outcome
	Remaining int64
	Trades    []Trade
}
