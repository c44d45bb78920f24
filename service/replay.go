package service

import (
	"fmt"

	"tycho/infra/memory"
	"tycho/infra/wal/entry"
	"tycho/pkg/logger"
	"tycho/snapshot"
)

// Recover rebuilds in-memory state: load the latest snapshot if one
// exists, then re-execute journal records past the snapshot's position
// through the engine. Events are suppressed during replay (the original
// run already published them). Must complete before any traffic is
// accepted.
func (s *OrderService) Recover(snapshotDir, walDir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.replaying = true
	defer func() { s.replaying = false }()

	var coveredSeq uint64
	snap, err := snapshot.Load(snapshotDir, s.book, s.pool)
	if err != nil {
		return fmt.Errorf("snapshot load: %w", err)
	}
	if snap != nil {
		coveredSeq = snap.JournalSeq
		s.seq.Reset(snap.EngineSeq)
		s.log.Info("snapshot loaded",
			logger.NewField("orders", len(snap.Orders)),
			logger.NewField("engine_seq", snap.EngineSeq),
			logger.NewField("journal_seq", snap.JournalSeq),
		)
	}

	replayed := 0
	lastSeq, err := entry.Replay(walDir, func(rec *entry.Record) error {
		if rec.Seq <= coveredSeq {
			return nil // already captured by the snapshot
		}
		replayed++
		if err := s.apply(rec); err != nil {
			return err
		}
		// No readers are active yet, so retirements from replayed fills
		// and cancels reclaim immediately. Without this a long journal
		// overruns the retire ring.
		memory.AdvanceEpochAndReclaim(s.ring, s.pool, s.reader.Epoch())
		return nil
	})
	if err != nil {
		return fmt.Errorf("journal replay: %w", err)
	}

	s.log.Info("recovery complete",
		logger.NewField("replayed", replayed),
		logger.NewField("journal_seq", lastSeq),
		logger.NewField("resting", s.book.Resting()),
	)
	return nil
}

// apply re-executes one journal record. The journal only holds requests
// that were applied in the original run, so any error here means the
// journal and the snapshot disagree and recovery must stop.
func (s *OrderService) apply(rec *entry.Record) error {
	switch rec.Type {
	case entry.RecordSubmit:
		req, err := parseSubmit(rec.Data)
		if err != nil {
			return err
		}
		if _, err := s.engine.SubmitOrder(req); err != nil {
			return fmt.Errorf("replay submit %d: %w", req.OrderID, err)
		}
	case entry.RecordCancel:
		id, err := parseCancel(rec.Data)
		if err != nil {
			return err
		}
		if err := s.engine.CancelOrder(id); err != nil {
			return fmt.Errorf("replay cancel %d: %w", id, err)
		}
	case entry.RecordModify:
		req, err := parseModify(rec.Data)
		if err != nil {
			return err
		}
		if _, err := s.engine.ModifyOrder(req); err != nil {
			return fmt.Errorf("replay modify %d: %w", req.OrderID, err)
		}
	default:
		return fmt.Errorf("unknown journal record type %d", rec.Type)
	}
	return nil
}
