package snapshot

import (
	"encoding/gob"
	"errors"
	"os"
	"path/filepath"

	"tycho/domain/orderbook"
	"tycho/infra/memory"
)

// ErrPoolTooSmall means the configured pool cannot hold the snapshot.
var ErrPoolTooSmall = errors.New("snapshot larger than order pool")

// Load rebuilds the book from the snapshot in dir, drawing orders from
// the pool. A missing snapshot is not an error: recovery then starts
// from an empty book and replays the whole journal.
func Load(
	dir string,
	book *orderbook.OrderBook,
	pool *memory.Pool[orderbook.Order],
) (*Snapshot, error) {
	f, err := os.Open(filepath.Join(dir, fileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var s Snapshot
	if err := gob.NewDecoder(f).Decode(&s); err != nil {
		return nil, err
	}

	for _, e := range s.Orders {
		o := pool.Get()
		if o == nil {
			return nil, ErrPoolTooSmall
		}
		*o = orderbook.Order{
			ID:        e.ID,
			Seq:       e.Seq,
			Price:     e.Price,
			Qty:       e.Qty,
			Remaining: e.Remaining,
			Side:      orderbook.Side(e.Side),
			Kind:      orderbook.Kind(e.Kind),
			Status:    orderbook.Status(e.Status),
		}
		if err := book.InsertResting(o); err != nil {
			return nil, err
		}
	}

	return &s, nil
}
