package orderbook

// Side of the book an order belongs to.
type Side uint8

const (
	Bid Side = iota
	Ask
)

func (s Side) Opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

func (s Side) String() string {
	if s == Bid {
		return "bid"
	}
	return "ask"
}

// Kind is the closed set of supported order kinds.
type Kind uint8

const (
	Limit Kind = iota
	Market
)

func (k Kind) String() string {
	if k == Market {
		return "market"
	}
	return "limit"
}

// Status tracks the order lifecycle. Pending and PartiallyFilled orders
// rest in the book; Filled and Cancelled are terminal.
type Status uint8

const (
	Pending Status = iota
	PartiallyFilled
	Filled
	Cancelled
)

func (st Status) String() string {
	switch st {
	case Pending:
		return "pending"
	case PartiallyFilled:
		return "partially_filled"
	case Filled:
		return "filled"
	default:
		return "cancelled"
	}
}

// Order is a pooled book entry. It doubles as an intrusive FIFO node:
// next/prev link it into its price level, level points back at the level
// it currently rests in. Price is in integer ticks, quantities in integer
// units. Seq is the acceptance sequence number and the true time-priority
// key; it is assigned by the engine, never by the caller.
type Order struct {
	ID        uint64
	Seq       uint64
	Price     int64
	Qty       int64 // original quantity
	Remaining int64
	Side      Side
	Kind      Kind
	Status    Status

	retireEpoch uint64
	next, prev  *Order
	level       *PriceLevel
}

// Next returns the order behind this one in its level's FIFO queue.
func (o *Order) Next() *Order { return o.next }

// Filled is the executed quantity so far.
func (o *Order) Filled() int64 { return o.Qty - o.Remaining }

// Resting reports whether the order currently occupies a level.
func (o *Order) Resting() bool { return o.level != nil }

// Reset zeroes the order for pool reuse.
func (o *Order) Reset() { *o = Order{} }

func (o *Order) RetireEpoch() uint64     { return o.retireEpoch }
func (o *Order) SetRetireEpoch(v uint64) { o.retireEpoch = v }
