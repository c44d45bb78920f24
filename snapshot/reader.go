package snapshot

import "tycho/infra/memory"

// Reader marks the boundaries of a consistent read over live book state.
// It is a thin adapter over memory.ReaderEpoch: queries call Begin/End,
// and the reclaimer refuses to reuse retired orders while any reader is
// inside a section.
type Reader struct {
	epoch *memory.ReaderEpoch
}

func NewReader() *Reader {
	return &Reader{epoch: memory.NewReaderEpoch()}
}

// Begin marks the start of a consistent read.
func (r *Reader) Begin() {
	r.epoch.Enter()
}

// End marks the end of a read.
func (r *Reader) End() {
	r.epoch.Exit()
}

// Epoch exposes the underlying epoch for reclaimers.
func (r *Reader) Epoch() *memory.ReaderEpoch {
	return r.epoch
}
