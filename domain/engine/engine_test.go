package engine

import (
	"errors"
	"reflect"
	"testing"

	"tycho/domain/orderbook"
	"tycho/infra/memory"
	"tycho/infra/sequence"
)

// recordingSink captures the event stream in emission order.
type recordingSink struct {
	accepted []Accepted
	rejected []Rejected
	trades   []Trade
	updates  []BookUpdate
	order    []string
}

func (s *recordingSink) OnAccepted(ev Accepted) {
	s.accepted = append(s.accepted, ev)
	s.order = append(s.order, "accepted")
}

func (s *recordingSink) OnRejected(ev Rejected) {
	s.rejected = append(s.rejected, ev)
	s.order = append(s.order, "rejected")
}

func (s *recordingSink) OnTrade(ev Trade) {
	s.trades = append(s.trades, ev)
	s.order = append(s.order, "trade")
}

func (s *recordingSink) OnBookUpdate(ev BookUpdate) {
	s.updates = append(s.updates, ev)
	s.order = append(s.order, "book_update")
}

func newTestEngine(t *testing.T, capacity int) (*Engine, *orderbook.OrderBook, *recordingSink) {
	t.Helper()
	book := orderbook.New()
	pool := memory.NewPool[orderbook.Order](capacity)
	ring := memory.NewRetireRing(1 << 10)
	sink := &recordingSink{}
	eng := New(book, pool, ring, sequence.New(0), sink)
	return eng, book, sink
}

func limitBuy(id uint64, price, qty int64) Submit {
	return Submit{OrderID: id, Side: orderbook.Bid, Kind: orderbook.Limit, Price: price, Qty: qty}
}

func limitSell(id uint64, price, qty int64) Submit {
	return Submit{OrderID: id, Side: orderbook.Ask, Kind: orderbook.Limit, Price: price, Qty: qty}
}

func marketBuy(id uint64, qty int64) Submit {
	return Submit{OrderID: id, Side: orderbook.Bid, Kind: orderbook.Market, Qty: qty}
}

func TestSubmitRestsOnEmptyBook(t *testing.T) {
	eng, book, sink := newTestEngine(t, 16)

	res, err := eng.SubmitOrder(limitBuy(1, 10, 100))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Outcome != OutcomeResting || len(res.Trades) != 0 {
		t.Fatalf("got outcome %v with %d trades, want resting/0", res.Outcome, len(res.Trades))
	}

	bid, ok := book.BestBid()
	if !ok || bid.Price != 10 || bid.Qty != 100 {
		t.Fatalf("best bid = %+v, want 10/100", bid)
	}
	if _, ok := book.BestAsk(); ok {
		t.Fatal("ask side must stay empty")
	}
	if len(sink.accepted) != 1 || sink.accepted[0].OrderID != 1 {
		t.Fatal("exactly one Accepted event expected")
	}
}

func TestFullFillEmptiesBook(t *testing.T) {
	eng, book, sink := newTestEngine(t, 16)

	if _, err := eng.SubmitOrder(limitBuy(1, 10, 100)); err != nil {
		t.Fatal(err)
	}
	res, err := eng.SubmitOrder(limitSell(2, 10, 100))
	if err != nil {
		t.Fatal(err)
	}

	if res.Outcome != OutcomeFilled || res.Remaining != 0 {
		t.Fatalf("got %v remaining=%d, want filled/0", res.Outcome, res.Remaining)
	}
	if len(sink.trades) != 1 {
		t.Fatalf("got %d trades, want 1", len(sink.trades))
	}
	tr := sink.trades[0]
	if tr.RestingID != 1 || tr.IncomingID != 2 || tr.Price != 10 || tr.Qty != 100 {
		t.Fatalf("trade = %+v", tr)
	}
	if book.Resting() != 0 {
		t.Fatal("book must be empty after a full cross")
	}
}

func TestExecutionAtRestingPrice(t *testing.T) {
	eng, book, sink := newTestEngine(t, 16)

	if _, err := eng.SubmitOrder(limitBuy(1, 10, 50)); err != nil {
		t.Fatal(err)
	}
	res, err := eng.SubmitOrder(limitSell(2, 9, 30))
	if err != nil {
		t.Fatal(err)
	}

	if res.Outcome != OutcomeFilled {
		t.Fatalf("incoming should fill completely, got %v", res.Outcome)
	}
	if len(sink.trades) != 1 || sink.trades[0].Price != 10 || sink.trades[0].Qty != 30 {
		t.Fatalf("trade must execute at the resting price 10, got %+v", sink.trades)
	}

	o := book.Lookup(1)
	if o == nil || o.Remaining != 20 {
		t.Fatal("resting order must keep remaining 20")
	}
	if bid, _ := book.BestBid(); bid.Price != 10 || bid.Qty != 20 {
		t.Fatalf("best bid = %+v, want 10/20", bid)
	}
}

func TestTimePriorityWithinLevel(t *testing.T) {
	eng, book, sink := newTestEngine(t, 16)

	if _, err := eng.SubmitOrder(limitBuy(1, 10, 50)); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.SubmitOrder(limitBuy(2, 10, 50)); err != nil {
		t.Fatal(err)
	}
	res, err := eng.SubmitOrder(limitSell(3, 10, 80))
	if err != nil {
		t.Fatal(err)
	}

	if res.Outcome != OutcomeFilled {
		t.Fatalf("incoming sell should fill, got %v", res.Outcome)
	}
	if len(sink.trades) != 2 {
		t.Fatalf("got %d trades, want 2", len(sink.trades))
	}
	if sink.trades[0].RestingID != 1 || sink.trades[0].Qty != 50 {
		t.Fatalf("first fill must exhaust id 1: %+v", sink.trades[0])
	}
	if sink.trades[1].RestingID != 2 || sink.trades[1].Qty != 30 {
		t.Fatalf("second fill must hit id 2 for 30: %+v", sink.trades[1])
	}

	if book.Lookup(1) != nil {
		t.Fatal("fully filled order must leave the book")
	}
	if o := book.Lookup(2); o == nil || o.Remaining != 20 {
		t.Fatal("id 2 must rest with remaining 20")
	}
}

func TestMarketResidueNeverRests(t *testing.T) {
	eng, book, _ := newTestEngine(t, 16)

	res, err := eng.SubmitOrder(marketBuy(4, 1000))
	if err != nil {
		t.Fatalf("market against empty book: %v", err)
	}
	if res.Outcome != OutcomeDone || res.Remaining != 1000 || len(res.Trades) != 0 {
		t.Fatalf("got %+v, want done with full remainder discarded", res)
	}
	if book.Resting() != 0 {
		t.Fatal("market residue must not rest")
	}
}

func TestMarketSweepsLevels(t *testing.T) {
	eng, book, sink := newTestEngine(t, 16)

	if _, err := eng.SubmitOrder(limitSell(1, 10, 30)); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.SubmitOrder(limitSell(2, 11, 30)); err != nil {
		t.Fatal(err)
	}

	res, err := eng.SubmitOrder(marketBuy(3, 50))
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeFilled {
		t.Fatalf("got %v, want filled", res.Outcome)
	}
	if len(sink.trades) != 2 || sink.trades[0].Price != 10 || sink.trades[1].Price != 11 {
		t.Fatalf("market must sweep levels in price order: %+v", sink.trades)
	}
	if o := book.Lookup(2); o == nil || o.Remaining != 10 {
		t.Fatal("second level must keep remaining 10")
	}
}

func TestCancelRestingOrder(t *testing.T) {
	eng, book, _ := newTestEngine(t, 16)

	if _, err := eng.SubmitOrder(limitBuy(1, 10, 5)); err != nil {
		t.Fatal(err)
	}
	if err := eng.CancelOrder(1); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if book.Resting() != 0 {
		t.Fatal("cancelled order must leave the book")
	}
	if err := eng.CancelOrder(1); !errors.Is(err, ErrUnknownOrder) {
		t.Fatalf("repeat cancel: got %v, want ErrUnknownOrder", err)
	}
}

func TestCancelRestoresDepthOnPopulatedBook(t *testing.T) {
	eng, book, _ := newTestEngine(t, 32)

	// A populated, non-trivial book on both sides.
	for _, s := range []Submit{
		limitBuy(1, 98, 5), limitBuy(2, 99, 3), limitBuy(3, 99, 7), limitBuy(4, 100, 2),
		limitSell(5, 101, 4), limitSell(6, 102, 6), limitSell(7, 104, 1),
	} {
		if _, err := eng.SubmitOrder(s); err != nil {
			t.Fatal(err)
		}
	}

	bidsBefore := book.Depth(orderbook.Bid, 16)
	asksBefore := book.Depth(orderbook.Ask, 16)
	bestBidBefore, _ := book.BestBid()
	bestAskBefore, _ := book.BestAsk()

	// A non-crossing submit followed by its cancel must leave no trace,
	// at a fresh price and inside an existing level alike.
	for _, s := range []Submit{limitBuy(8, 97, 9), limitBuy(9, 99, 2), limitSell(10, 103, 5)} {
		if _, err := eng.SubmitOrder(s); err != nil {
			t.Fatal(err)
		}
		if err := eng.CancelOrder(s.OrderID); err != nil {
			t.Fatalf("cancel %d: %v", s.OrderID, err)
		}

		if got := book.Depth(orderbook.Bid, 16); !reflect.DeepEqual(got, bidsBefore) {
			t.Fatalf("bid depth after cancel %d: got %v, want %v", s.OrderID, got, bidsBefore)
		}
		if got := book.Depth(orderbook.Ask, 16); !reflect.DeepEqual(got, asksBefore) {
			t.Fatalf("ask depth after cancel %d: got %v, want %v", s.OrderID, got, asksBefore)
		}
		if bb, _ := book.BestBid(); bb != bestBidBefore {
			t.Fatalf("best bid after cancel %d: got %v, want %v", s.OrderID, bb, bestBidBefore)
		}
		if ba, _ := book.BestAsk(); ba != bestAskBefore {
			t.Fatalf("best ask after cancel %d: got %v, want %v", s.OrderID, ba, bestAskBefore)
		}
		if err := book.CheckInvariants(); err != nil {
			t.Fatal(err)
		}
	}
}

func TestModifyQtyDecreaseKeepsPriority(t *testing.T) {
	eng, book, _ := newTestEngine(t, 16)

	if _, err := eng.SubmitOrder(limitBuy(1, 10, 50)); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.SubmitOrder(limitBuy(2, 10, 50)); err != nil {
		t.Fatal(err)
	}

	res, err := eng.ModifyOrder(Modify{OrderID: 1, NewQty: 20})
	if err != nil {
		t.Fatalf("modify: %v", err)
	}
	if res.Outcome != OutcomeResting || res.Remaining != 20 {
		t.Fatalf("got %+v, want resting with remaining 20", res)
	}

	// id 1 must still fill before id 2.
	sellRes, err := eng.SubmitOrder(limitSell(3, 10, 20))
	if err != nil {
		t.Fatal(err)
	}
	if len(sellRes.Trades) != 1 || sellRes.Trades[0].RestingID != 1 {
		t.Fatalf("qty decrease must keep the FIFO slot: %+v", sellRes.Trades)
	}
	if book.Lookup(1) != nil {
		t.Fatal("id 1 must be gone after its reduced quantity fills")
	}
}

func TestModifyPriceChangeForfeitsPriority(t *testing.T) {
	eng, _, _ := newTestEngine(t, 16)

	if _, err := eng.SubmitOrder(limitBuy(1, 10, 50)); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.SubmitOrder(limitBuy(2, 10, 50)); err != nil {
		t.Fatal(err)
	}

	newPrice := int64(10)
	if _, err := eng.ModifyOrder(Modify{OrderID: 1, NewPrice: &newPrice, NewQty: 60}); err != nil {
		t.Fatalf("modify: %v", err)
	}

	res, err := eng.SubmitOrder(limitSell(3, 10, 50))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Trades) != 1 || res.Trades[0].RestingID != 2 {
		t.Fatalf("qty increase must move id 1 behind id 2: %+v", res.Trades)
	}
}

func TestModifyRepriceCrossesImmediately(t *testing.T) {
	eng, book, sink := newTestEngine(t, 16)

	if _, err := eng.SubmitOrder(limitSell(1, 12, 40)); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.SubmitOrder(limitBuy(2, 10, 40)); err != nil {
		t.Fatal(err)
	}

	newPrice := int64(12)
	res, err := eng.ModifyOrder(Modify{OrderID: 2, NewPrice: &newPrice, NewQty: 40})
	if err != nil {
		t.Fatalf("modify: %v", err)
	}
	if res.Outcome != OutcomeFilled {
		t.Fatalf("repriced buy must cross and fill, got %v", res.Outcome)
	}
	if len(sink.trades) != 1 || sink.trades[0].Price != 12 {
		t.Fatalf("trade must execute at resting ask 12: %+v", sink.trades)
	}
	if book.Resting() != 0 {
		t.Fatal("both orders must leave the book")
	}
}

func TestModifyUnknownOrder(t *testing.T) {
	eng, _, _ := newTestEngine(t, 16)
	if _, err := eng.ModifyOrder(Modify{OrderID: 404, NewQty: 1}); !errors.Is(err, ErrUnknownOrder) {
		t.Fatalf("got %v, want ErrUnknownOrder", err)
	}
}

func TestValidationRejects(t *testing.T) {
	eng, _, sink := newTestEngine(t, 16)

	cases := []Submit{
		{OrderID: 1, Side: orderbook.Bid, Kind: orderbook.Limit, Price: 10, Qty: 0},
		{OrderID: 2, Side: orderbook.Bid, Kind: orderbook.Limit, Price: 0, Qty: 5},
		{OrderID: 3, Side: orderbook.Bid, Kind: orderbook.Limit, Price: -1, Qty: 5},
		{OrderID: 4, Side: orderbook.Bid, Kind: orderbook.Market, Price: 7, Qty: 5},
	}
	for _, c := range cases {
		if _, err := eng.SubmitOrder(c); !errors.Is(err, ErrInvalidOrder) {
			t.Errorf("submit %+v: got %v, want ErrInvalidOrder", c, err)
		}
	}
	if len(sink.rejected) != len(cases) {
		t.Fatalf("got %d Rejected events, want %d", len(sink.rejected), len(cases))
	}
}

func TestDuplicateIDRejected(t *testing.T) {
	eng, _, _ := newTestEngine(t, 16)

	if _, err := eng.SubmitOrder(limitBuy(1, 10, 5)); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.SubmitOrder(limitBuy(1, 11, 5)); !errors.Is(err, ErrInvalidOrder) {
		t.Fatal("duplicate id of a resting order must reject")
	}
}

func TestCapacityExceeded(t *testing.T) {
	eng, book, sink := newTestEngine(t, 2)

	if _, err := eng.SubmitOrder(limitBuy(1, 10, 5)); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.SubmitOrder(limitBuy(2, 9, 5)); err != nil {
		t.Fatal(err)
	}

	_, err := eng.SubmitOrder(limitBuy(3, 8, 5))
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("got %v, want ErrCapacityExceeded", err)
	}
	if book.Resting() != 2 {
		t.Fatal("rejected submission must not disturb resting orders")
	}
	if len(sink.rejected) != 1 {
		t.Fatal("pool exhaustion must emit a Rejected event")
	}
}

func TestQuantityConservation(t *testing.T) {
	eng, book, sink := newTestEngine(t, 64)

	if _, err := eng.SubmitOrder(limitBuy(1, 10, 100)); err != nil {
		t.Fatal(err)
	}
	res, err := eng.SubmitOrder(limitSell(2, 10, 60))
	if err != nil {
		t.Fatal(err)
	}

	var traded int64
	for _, tr := range sink.trades {
		traded += tr.Qty
	}
	if traded+res.Remaining != 60 {
		t.Fatalf("incoming: traded %d + remaining %d != 60", traded, res.Remaining)
	}
	o := book.Lookup(1)
	if o == nil || o.Filled()+o.Remaining != o.Qty {
		t.Fatal("resting order must conserve quantity")
	}
}

func TestBookNeverCrossedAfterOps(t *testing.T) {
	eng, book, _ := newTestEngine(t, 256)

	ops := []Submit{
		limitBuy(1, 10, 10), limitSell(2, 12, 10),
		limitBuy(3, 11, 5), limitSell(4, 11, 8),
		limitBuy(5, 12, 20), limitSell(6, 9, 7),
		marketBuy(7, 3),
	}
	for _, op := range ops {
		if _, err := eng.SubmitOrder(op); err != nil {
			t.Fatalf("submit %d: %v", op.OrderID, err)
		}
		bid, okBid := book.BestBid()
		ask, okAsk := book.BestAsk()
		if okBid && okAsk && bid.Price >= ask.Price {
			t.Fatalf("crossed after id %d: bid %d >= ask %d", op.OrderID, bid.Price, ask.Price)
		}
		if err := book.CheckInvariants(); err != nil {
			t.Fatalf("after id %d: %v", op.OrderID, err)
		}
	}
}

func TestEventOrdering(t *testing.T) {
	eng, _, sink := newTestEngine(t, 16)

	if _, err := eng.SubmitOrder(limitBuy(1, 10, 50)); err != nil {
		t.Fatal(err)
	}
	sink.order = nil

	if _, err := eng.SubmitOrder(limitSell(2, 10, 20)); err != nil {
		t.Fatal(err)
	}

	// Accepted precedes the trade; the book update for the touched
	// level follows the trade.
	want := []string{"accepted", "trade", "book_update"}
	if len(sink.order) != len(want) {
		t.Fatalf("event order %v", sink.order)
	}
	for i := range want {
		if sink.order[i] != want[i] {
			t.Fatalf("event order %v, want %v", sink.order, want)
		}
	}
}

func TestTradeSequenceMonotonic(t *testing.T) {
	eng, _, sink := newTestEngine(t, 64)

	for i := uint64(1); i <= 5; i++ {
		if _, err := eng.SubmitOrder(limitSell(i, 10, 1)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := eng.SubmitOrder(limitBuy(10, 10, 5)); err != nil {
		t.Fatal(err)
	}

	var last uint64
	for _, tr := range sink.trades {
		if tr.ID <= last {
			t.Fatalf("trade ids must be strictly increasing: %d after %d", tr.ID, last)
		}
		last = tr.ID
	}
}
