package service

import (
	"encoding/json"
	"fmt"
	"sync"

	"tycho/domain/engine"
	"tycho/domain/orderbook"
	"tycho/infra/memory"
	"tycho/infra/sequence"
	"tycho/infra/wal/entry"
	"tycho/infra/wal/exit"
	"tycho/pkg/logger"
	"tycho/snapshot"
)

// OrderService is the only write entry point into the system. Every
// mutating request is journaled, then executed by the engine under the
// single-writer mutex; engine events land in the outbox for the
// broadcaster to deliver. Queries run lock-free under a reader epoch.
type OrderService struct {
	mu sync.Mutex

	engine *engine.Engine
	book   *orderbook.OrderBook
	pool   *memory.Pool[orderbook.Order]
	ring   *memory.RetireRing
	seq    *sequence.Sequencer
	reader *snapshot.Reader

	entryWAL *entry.WAL
	outbox   *exit.Outbox
	log      *logger.Logger

	replaying bool
}

func New(
	book *orderbook.OrderBook,
	pool *memory.Pool[orderbook.Order],
	ring *memory.RetireRing,
	seq *sequence.Sequencer,
	reader *snapshot.Reader,
	entryWAL *entry.WAL,
	outbox *exit.Outbox,
	log *logger.Logger,
) *OrderService {
	s := &OrderService{
		book:     book,
		pool:     pool,
		ring:     ring,
		seq:      seq,
		reader:   reader,
		entryWAL: entryWAL,
		outbox:   outbox,
		log:      log,
	}
	s.engine = engine.New(book, pool, ring, seq, s)
	return s
}

// Submit executes a new-order request and journals it on success. Only
// applied requests reach the journal: a rejection (validation, capacity)
// leaves no record, so replay re-applies exactly the operations that
// mutated the book and cannot diverge on transient conditions like pool
// occupancy.
func (s *OrderService) Submit(req engine.Submit) (engine.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.engine.SubmitOrder(req)
	if err != nil {
		return engine.Result{}, err
	}
	if err := s.journal(entry.RecordSubmit, encodeSubmit(req)); err != nil {
		return engine.Result{}, err
	}
	s.log.Debug("order submitted",
		logger.NewField("order_id", res.OrderID),
		logger.NewField("seq", res.Seq),
		logger.NewField("outcome", res.Outcome.String()),
		logger.NewField("trades", len(res.Trades)),
	)
	return res, nil
}

// Cancel executes a cancellation and journals it on success.
func (s *OrderService) Cancel(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.engine.CancelOrder(id); err != nil {
		return err
	}
	if err := s.journal(entry.RecordCancel, encodeCancel(id)); err != nil {
		return err
	}
	s.log.Debug("order cancelled", logger.NewField("order_id", id))
	return nil
}

// Modify executes a modification and journals it on success.
func (s *OrderService) Modify(req engine.Modify) (engine.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.engine.ModifyOrder(req)
	if err != nil {
		return engine.Result{}, err
	}
	if err := s.journal(entry.RecordModify, encodeModify(req)); err != nil {
		return engine.Result{}, err
	}
	return res, nil
}

// TopOfBook returns the best level of each side.
//
// Queries run lock-free against the single writer: the epoch guard only
// keeps retired nodes alive while the read is in flight, it does not
// serialize against mutations. A query overlapping a write may observe
// the book mid-update (for example one leg of a match applied and the
// other not yet). Callers needing a write-consistent view must obtain
// it from the event stream instead.
func (s *OrderService) TopOfBook() (bid, ask orderbook.LevelInfo, haveBid, haveAsk bool) {
	s.reader.Begin()
	defer s.reader.End()

	bid, haveBid = s.book.BestBid()
	ask, haveAsk = s.book.BestAsk()
	return bid, ask, haveBid, haveAsk
}

// Depth returns up to n levels per side in priority order. The same
// lock-free read window as TopOfBook applies.
func (s *OrderService) Depth(n int) (bids, asks []orderbook.LevelInfo) {
	s.reader.Begin()
	defer s.reader.End()

	return s.book.Depth(orderbook.Bid, n), s.book.Depth(orderbook.Ask, n)
}

// AdvanceEpoch performs safe reclamation. Called periodically by a
// background job.
func (s *OrderService) AdvanceEpoch() {
	n := memory.AdvanceEpochAndReclaim(s.ring, s.pool, s.reader.Epoch())
	if n > 0 {
		s.log.Debug("reclaimed retired orders", logger.NewField("count", n))
	}
}

func (s *OrderService) journal(t entry.RecordType, payload []byte) error {
	if s.entryWAL == nil {
		return nil // journaling disabled (tests)
	}
	if err := s.entryWAL.Append(entry.NewRecord(t, payload)); err != nil {
		return fmt.Errorf("journal append: %w", err)
	}
	return nil
}

//
// engine.EventSink — events go to the outbox as self-describing JSON.
// During replay the original run already published them, so they are
// dropped.
//

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func (s *OrderService) OnAccepted(ev engine.Accepted) {
	s.emit(exit.KindAccepted, "accepted", ev)
}

func (s *OrderService) OnRejected(ev engine.Rejected) {
	s.emit(exit.KindRejected, "rejected", ev)
}

func (s *OrderService) OnTrade(ev engine.Trade) {
	s.emit(exit.KindTrade, "trade", ev)
}

func (s *OrderService) OnBookUpdate(ev engine.BookUpdate) {
	s.emit(exit.KindBookUpdate, "book_update", ev)
}

func (s *OrderService) emit(kind exit.EventKind, typ string, data any) {
	if s.replaying || s.outbox == nil {
		return
	}
	payload, err := json.Marshal(envelope{Type: typ, Data: data})
	if err != nil {
		s.log.Error(err, logger.NewField("event", typ))
		return
	}
	if _, err := s.outbox.Append(kind, payload); err != nil {
		s.log.Error(err, logger.NewField("event", typ))
	}
}
