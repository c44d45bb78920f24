// Package exit persists engine events until a broker acknowledges them.
// Records move NEW → SENT → ACKED; the broadcaster drains pending records
// and acked ones are garbage collected after snapshots. Pebble gives the
// outbox durability independent of the broker's availability.
package exit

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
)

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	default:
		return "UNKNOWN"
	}
}

// EventKind tags the payload so consumers can route without decoding.
type EventKind uint8

const (
	KindAccepted EventKind = iota
	KindRejected
	KindTrade
	KindBookUpdate
)

func (k EventKind) String() string {
	switch k {
	case KindAccepted:
		return "accepted"
	case KindRejected:
		return "rejected"
	case KindTrade:
		return "trade"
	default:
		return "book_update"
	}
}

// Record is one outbox entry.
type Record struct {
	Seq         uint64
	State       State
	Kind        EventKind
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

const recHeaderLen = 1 + 1 + 4 + 8 // [state][kind][retries][lastAttempt]

// binary encoding: [state:1][kind:1][retries:4][lastAttempt:8][payload]
func encodeRecord(r Record) []byte {
	buf := make([]byte, recHeaderLen+len(r.Payload))
	buf[0] = byte(r.State)
	buf[1] = byte(r.Kind)
	binary.BigEndian.PutUint32(buf[2:6], r.Retries)
	binary.BigEndian.PutUint64(buf[6:14], uint64(r.LastAttempt))
	copy(buf[recHeaderLen:], r.Payload)
	return buf
}

func decodeRecord(b []byte) (Record, error) {
	if len(b) < recHeaderLen {
		return Record{}, errors.New("outbox record too short")
	}
	payload := make([]byte, len(b)-recHeaderLen)
	copy(payload, b[recHeaderLen:])
	return Record{
		State:       State(b[0]),
		Kind:        EventKind(b[1]),
		Retries:     binary.BigEndian.Uint32(b[2:6]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[6:14])),
		Payload:     payload,
	}, nil
}

// Outbox is the durable event store between the engine and the broker.
// Append runs on the matching writer; Scan/Mark run on the broadcaster.
// Pebble serializes the two internally.
type Outbox struct {
	db      *pebble.DB
	nextSeq uint64
}

func Open(dir string) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{
		DisableWAL: false, // we WANT durability
	})
	if err != nil {
		return nil, err
	}

	o := &Outbox{db: db}
	if err := o.loadNextSeq(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return o, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// Append inserts a new entry in state NEW and returns its sequence.
func (o *Outbox) Append(kind EventKind, payload []byte) (uint64, error) {
	o.nextSeq++
	rec := Record{
		State:   StateNew,
		Kind:    kind,
		Payload: payload,
	}
	if err := o.db.Set(keyFor(o.nextSeq), encodeRecord(rec), pebble.Sync); err != nil {
		o.nextSeq--
		return 0, err
	}
	return o.nextSeq, nil
}

// Get returns the record at seq.
func (o *Outbox) Get(seq uint64) (Record, error) {
	val, closer, err := o.db.Get(keyFor(seq))
	if err != nil {
		return Record{}, err
	}
	defer closer.Close()

	rec, err := decodeRecord(val)
	if err != nil {
		return Record{}, err
	}
	rec.Seq = seq
	return rec, nil
}

// MarkSent transitions a record to SENT and bumps its retry count.
func (o *Outbox) MarkSent(seq uint64) error {
	return o.transition(seq, StateSent, true)
}

// MarkAcked transitions a record to ACKED.
func (o *Outbox) MarkAcked(seq uint64) error {
	return o.transition(seq, StateAcked, false)
}

func (o *Outbox) transition(seq uint64, state State, bumpRetry bool) error {
	rec, err := o.Get(seq)
	if err != nil {
		return err
	}
	rec.State = state
	rec.LastAttempt = time.Now().UnixNano()
	if bumpRetry {
		rec.Retries++
	}
	return o.db.Set(keyFor(seq), encodeRecord(rec), pebble.Sync)
}

// ScanPending visits every non-ACKED record in sequence order.
func (o *Outbox) ScanPending(fn func(*Record) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		rec, err := decodeRecord(iter.Value())
		if err != nil {
			return err
		}
		if rec.State == StateAcked {
			continue
		}

		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		rec.Seq = seq

		if err := fn(&rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// TruncateAcked deletes every ACKED record. Called from the snapshot job.
func (o *Outbox) TruncateAcked() error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	batch := o.db.NewBatch()
	for iter.First(); iter.Valid(); iter.Next() {
		rec, err := decodeRecord(iter.Value())
		if err != nil {
			continue
		}
		if rec.State != StateAcked {
			continue
		}
		key := make([]byte, len(iter.Key()))
		copy(key, iter.Key())
		_ = batch.Delete(key, nil)
	}
	if err := iter.Error(); err != nil {
		_ = batch.Close()
		return err
	}
	return o.db.Apply(batch, pebble.Sync)
}

func (o *Outbox) loadNextSeq() error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	if iter.Last() && iter.Valid() {
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		o.nextSeq = seq
	}
	return iter.Error()
}

const keyPrefix = "event/"

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", keyPrefix, seq))
}

func parseKey(b []byte) (uint64, error) {
	var seq uint64
	_, err := fmt.Sscanf(string(b[len(keyPrefix):]), "%d", &seq)
	return seq, err
}
