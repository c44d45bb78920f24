package snapshot

import "time"

// Snapshot captures every resting order plus the sequencer and journal
// positions at capture time. Orders are stored in priority order per
// level so a rebuild reproduces FIFO positions exactly.
type Snapshot struct {
	EngineSeq  uint64
	JournalSeq uint64
	Created    time.Time
	Orders     []OrderEntry
}

type OrderEntry struct {
	ID        uint64
	Seq       uint64
	Side      uint8
	Kind      uint8
	Price     int64
	Qty       int64
	Remaining int64
	Status    uint8
}
