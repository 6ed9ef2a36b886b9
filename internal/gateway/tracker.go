package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Tracker registers the service's wallets for payment-callback delivery,
// seeded with each wallet's persisted tracking cursor. The gateway keeps
// tracking state in memory, so registration is re-issued periodically in
// case it restarted.
type Tracker struct {
	db     *sql.DB
	client *Client
	sched  gocron.Scheduler
}

func NewTracker(db *sql.DB, client *Client) *Tracker {
	return &Tracker{db: db, client: client}
}

// RegisterAll registers tracking for every known wallet.
func (t *Tracker) RegisterAll(ctx context.Context) error {
	rows, err := t.db.QueryContext(ctx, `
		SELECT address, COALESCE(tracking_state, '') FROM wallets`)
	if err != nil {
		return fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var address, state string
		if err := rows.Scan(&address, &state); err != nil {
			return err
		}
		if err := t.client.RegisterTracking(ctx, address, state); err != nil {
			return fmt.Errorf("register tracking for %s: %w", address, err)
		}
	}
	return rows.Err()
}

// StartRefresh re-registers tracking on a fixed interval.
func (t *Tracker) StartRefresh(interval time.Duration) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Printf("[GATEWAY] Tracking refresh disabled: %v", err)
		return
	}
	t.sched = sched
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := t.RegisterAll(ctx); err != nil {
				log.Printf("[GATEWAY] Tracking refresh failed: %v", err)
			}
		}),
	)
}

// Stop shuts the refresh scheduler down.
func (t *Tracker) Stop() {
	if t.sched != nil {
		_ = t.sched.Shutdown()
	}
}

// SaveTrackingState persists the cursor delivered with a payment callback
// so scanning resumes there after a restart.
func SaveTrackingState(ctx context.Context, db *sql.DB, address, state string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE wallets SET tracking_state = $1 WHERE address = $2`,
		state, address)
	if err != nil {
		return fmt.Errorf("save tracking state: %w", err)
	}
	return nil
}
