// Package broadcaster drains the event outbox to Kafka. Delivery is
// at-least-once: a record is marked SENT before publish and ACKED only
// after the broker accepts it, so a crash between the two replays the
// event on the next pass.
package broadcaster

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/IBM/sarama"

	"tycho/infra/wal/exit"
	"tycho/pkg/logger"
)

type Broadcaster struct {
	outbox   *exit.Outbox
	producer sarama.SyncProducer
	topic    string
	interval time.Duration
	log      *logger.Logger
}

func New(
	outbox *exit.Outbox,
	brokers []string,
	topic string,
	interval time.Duration,
	log *logger.Logger,
) (*Broadcaster, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	return &Broadcaster{
		outbox:   outbox,
		producer: producer,
		topic:    topic,
		interval: interval,
		log:      log,
	}, nil
}

func (b *Broadcaster) Start(ctx context.Context) {
	b.log.Info("broadcaster started", logger.NewField("topic", b.topic))

	go func() {
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.drainOnce()
			}
		}
	}()
}

// drainOnce publishes every pending outbox record in sequence order.
// Broker errors stop the pass; the record stays SENT and is retried on
// the next tick.
func (b *Broadcaster) drainOnce() {
	err := b.outbox.ScanPending(func(rec *exit.Record) error {
		if err := b.outbox.MarkSent(rec.Seq); err != nil {
			return err
		}

		msg := &sarama.ProducerMessage{
			Topic: b.topic,
			Key:   sarama.StringEncoder(strconv.FormatUint(rec.Seq, 10)),
			Value: sarama.ByteEncoder(rec.Payload),
		}
		if _, _, err := b.producer.SendMessage(msg); err != nil {
			b.log.Warn("publish failed, will retry",
				logger.NewField("seq", rec.Seq),
				logger.NewField("kind", rec.Kind.String()),
				logger.NewField("error", err.Error()),
			)
			return errStopPass
		}

		return b.outbox.MarkAcked(rec.Seq)
	})
	if err != nil && err != errStopPass {
		b.log.Error(err)
	}
}

var errStopPass = errors.New("broadcast pass aborted")

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
