package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	httpapi "tycho/api/http"
	"tycho/domain/orderbook"
	"tycho/infra/memory"
	"tycho/infra/sequence"
	entrywal "tycho/infra/wal/entry"
	exitwal "tycho/infra/wal/exit"
	"tycho/jobs/broadcaster"
	"tycho/jobs/ingest"
	"tycho/pkg/config"
	"tycho/pkg/logger"
	"tycho/service"
	"tycho/snapshot"
)

func main() {
	cfg := &config.Config{}
	config.MustLoad(cfg)

	lg, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---------------- Durability ----------------

	entryWAL, err := entrywal.Open(entrywal.Config{
		Dir:         cfg.WAL.EntryDir,
		SegmentSize: cfg.WAL.SegmentSize,
	})
	if err != nil {
		lg.Error(err)
		log.Fatal("entry WAL init failed")
	}
	defer entryWAL.Close()

	outbox, err := exitwal.Open(cfg.WAL.OutboxDir)
	if err != nil {
		lg.Error(err)
		log.Fatal("outbox init failed")
	}
	defer outbox.Close()

	// ---------------- Core ----------------

	seqGen := sequence.New(0)
	pool := memory.NewPool[orderbook.Order](cfg.PoolCapacity)
	ring := memory.NewRetireRing(cfg.RetireRingSize)
	reader := snapshot.NewReader()
	book := orderbook.New()

	svc := service.New(book, pool, ring, seqGen, reader, entryWAL, outbox, lg)

	if err := svc.Recover(cfg.SnapshotDir, cfg.WAL.EntryDir); err != nil {
		lg.Error(err)
		log.Fatal("recovery failed")
	}

	// ---------------- Background jobs ----------------

	go func() {
		ticker := time.NewTicker(cfg.EpochInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				svc.AdvanceEpoch()
			}
		}
	}()

	svc.StartSnapshotJob(ctx, cfg.SnapshotDir, cfg.SnapshotInterval)

	if cfg.Kafka.Enabled() {
		bc, err := broadcaster.New(
			outbox,
			cfg.Kafka.Brokers,
			cfg.Kafka.EventsTopic,
			cfg.Kafka.DrainInterval,
			lg,
		)
		if err != nil {
			lg.Error(err)
			log.Fatal("broadcaster init failed")
		}
		defer bc.Close()
		bc.Start(ctx)

		consumer := ingest.New(
			cfg.Kafka.Brokers,
			cfg.Kafka.OrdersTopic,
			cfg.Kafka.GroupID,
			svc,
			lg,
		)
		defer consumer.Close()
		consumer.Start(ctx)
	}

	// ---------------- HTTP ----------------

	srv := httpapi.NewServer(svc, lg)
	if err := srv.Start(ctx, cfg.HTTPAddr); err != nil {
		lg.Error(err)
		log.Fatal("http server exited")
	}

	lg.Info("shutdown complete")
}
