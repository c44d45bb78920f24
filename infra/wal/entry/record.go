package entry

import "time"

// RecordType defines journal intent.
type RecordType uint8

const (
	RecordSubmit RecordType = iota
	RecordCancel
	RecordModify
)

// Record is an immutable journal entry. Seq is the journal position
// assigned by the WAL at append time, not the order's acceptance
// sequence number.
type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

func NewRecord(t RecordType, data []byte) *Record {
	return &Record{
		Type: t,
		Time: time.Now().UnixNano(),
		Data: data,
	}
}
