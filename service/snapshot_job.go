package service

import (
	"context"
	"time"

	"tycho/pkg/logger"
	"tycho/snapshot"
)

// StartSnapshotJob periodically persists the resting book and trims the
// journal behind it. The writer holds the service mutex while walking
// the book so the snapshot is a consistent cut.
func (s *OrderService) StartSnapshotJob(ctx context.Context, dir string, interval time.Duration) {
	w := &snapshot.Writer{Dir: dir}
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.takeSnapshot(w); err != nil {
					s.log.Error(err)
				}
			}
		}
	}()
}

func (s *OrderService) takeSnapshot(w *snapshot.Writer) error {
	s.mu.Lock()
	engineSeq := s.seq.Current()
	var journalSeq uint64
	if s.entryWAL != nil {
		journalSeq = s.entryWAL.LastSeq()
	}
	err := w.Write(engineSeq, journalSeq, s.book)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if s.entryWAL != nil {
		if err := s.entryWAL.Sync(); err != nil {
			return err
		}
		if err := s.entryWAL.TruncateBefore(journalSeq); err != nil {
			return err
		}
	}
	if s.outbox != nil {
		if err := s.outbox.TruncateAcked(); err != nil {
			return err
		}
	}

	s.log.Info("snapshot written",
		logger.NewField("engine_seq", engineSeq),
		logger.NewField("journal_seq", journalSeq),
	)
	return nil
}
