package sequence

import "sync/atomic"

// Sequencer generates strictly monotonic sequence numbers. It is
// deterministic and replay-safe: rebuilt state resumes from the last
// issued value.
type Sequencer struct {
	next atomic.Uint64
}

// New creates a sequencer. start is the last already-issued value; a
// fresh system passes 0.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.next.Store(start)
	return s
}

// Next returns the next sequence number.
func (s *Sequencer) Next() uint64 {
	return s.next.Add(1)
}

// Current returns the last issued sequence number.
func (s *Sequencer) Current() uint64 {
	return s.next.Load()
}

// Reset sets the sequencer. Only used after snapshot load.
func (s *Sequencer) Reset(v uint64) {
	s.next.Store(v)
}
