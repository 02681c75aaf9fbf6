package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hums/internal/attendance"
	"hums/internal/config"
	"hums/internal/queue"
	"hums/internal/session"
	"hums/internal/shifttime"
	"hums/internal/store"
	"hums/internal/tap"
)

// Worker consumes tap events off the queue and applies their session and
// attendance effects, and periodically sweeps expired shifts to absent.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "hums:taps")
	}

	grace := shifttime.Grace{LateAfter: cfg.LateGrace, EarlyBefore: cfg.EarlyGrace}
	att := attendance.NewService(grace, nil)
	sessions := session.NewService(att)
	repo := tap.NewRepository(db.Client)
	taps := tap.NewService(repo, sessions, time.Minute)

	go runSweep(ctx, db.Client, att, cfg.SweepInterval)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		if msg.Type != "tap" {
			continue
		}

		id := string(msg.Body)
		evt, err := repo.GetEvent(ctx, id)
		if err != nil {
			log.Printf("fetch event %s failed: %v", id, err)
			continue
		}
		if evt.Status != tap.StatusPending {
			continue
		}

		err = store.WithTx(ctx, db.Client, func(tx *sql.Tx) error {
			return taps.Apply(ctx, tx, evt)
		})
		if err != nil {
			log.Printf("apply event %s failed: %v", id, err)
			_ = repo.UpdateEventStatus(ctx, id, tap.StatusFailed)
			continue
		}

		_ = repo.UpdateEventStatus(ctx, id, tap.StatusProcessed)
		log.Printf("event %s processed (user %d, %s)", id, evt.UserID, evt.Direction)
	}

	log.Println("worker stopped")
}

// runSweep marks untapped shifts absent once their window has fully passed.
func runSweep(ctx context.Context, db *sql.DB, att *attendance.Service, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var marked int
			err := store.WithTx(ctx, db, func(tx *sql.Tx) error {
				var err error
				marked, err = att.MarkAbsent(ctx, tx, time.Now().UTC())
				return err
			})
			if err != nil {
				log.Printf("absence sweep failed: %v", err)
				continue
			}
			if marked > 0 {
				log.Printf("absence sweep marked %d record(s)", marked)
			}
		}
	}
}
