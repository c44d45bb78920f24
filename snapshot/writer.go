package snapshot

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"time"

	"tycho/domain/orderbook"
)

const fileName = "snapshot.bin"

type Writer struct {
	Dir string
}

// Write captures all resting orders. The temp-file rename keeps a crash
// mid-write from clobbering the previous snapshot.
func (w *Writer) Write(engineSeq, journalSeq uint64, book *orderbook.OrderBook) error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return err
	}

	s := Snapshot{
		EngineSeq:  engineSeq,
		JournalSeq: journalSeq,
		Created:    time.Now(),
		Orders:     make([]OrderEntry, 0, book.Resting()),
	}

	collect := func(lvl *orderbook.PriceLevel) bool {
		lvl.Each(func(o *orderbook.Order) bool {
			s.Orders = append(s.Orders, OrderEntry{
				ID:        o.ID,
				Seq:       o.Seq,
				Side:      uint8(o.Side),
				Kind:      uint8(o.Kind),
				Price:     o.Price,
				Qty:       o.Qty,
				Remaining: o.Remaining,
				Status:    uint8(o.Status),
			})
			return true
		})
		return true
	}
	book.SideOf(orderbook.Bid).Walk(collect)
	book.SideOf(orderbook.Ask).Walk(collect)

	tmp := filepath.Join(w.Dir, fileName+".tmp")
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(f).Encode(&s); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(w.Dir, fileName))
}
