package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// Reader consumes raw messages from one topic. Decoding stays with the
// caller; this wrapper only owns connection lifecycle.
type Reader struct {
	reader *kafka.Reader
}

func NewReader(brokers []string, topic, groupID string) *Reader {
	return &Reader{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     brokers,
			Topic:       topic,
			GroupID:     groupID,
			MinBytes:    1,
			MaxBytes:    10e6,
			StartOffset: kafka.LastOffset,
		}),
	}
}

// Fetch blocks until a message arrives or ctx is cancelled.
func (r *Reader) Fetch(ctx context.Context) (kafka.Message, error) {
	return r.reader.ReadMessage(ctx)
}

func (r *Reader) Close() error {
	return r.reader.Close()
}
