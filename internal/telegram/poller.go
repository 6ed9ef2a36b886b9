package telegram

import (
	"context"
	"log"
	"time"

	"github.com/tontips/backend/internal/worker"
)

// Poller drives the long-poll ingestion loop. Each update is dispatched to
// the worker pool as its own unit of work. Cancelling the context stops
// pulling new updates; updates already submitted run to completion.
type Poller struct {
	client  *Client
	bot     *Bot
	pool    *worker.Pool
	timeout time.Duration
}

func NewPoller(client *Client, bot *Bot, pool *worker.Pool, timeout time.Duration) *Poller {
	return &Poller{
		client:  client,
		bot:     bot,
		pool:    pool,
		timeout: timeout,
	}
}

// Run blocks until ctx is cancelled. Transport errors are retried with a
// flat backoff; errors from individual updates never abort the loop.
func (p *Poller) Run(ctx context.Context) {
	log.Println("[BOT] Update loop started")
	var offset int64

	for {
		if ctx.Err() != nil {
			log.Println("[BOT] Update loop stopped")
			return
		}

		updates, err := p.client.GetUpdates(ctx, offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("[BOT] Update loop stopped")
				return
			}
			log.Printf("[BOT] getUpdates failed: %v", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			}
			continue
		}

		for _, update := range updates {
			u := update
			submitted := p.pool.Submit(func(taskCtx context.Context) {
				p.bot.HandleUpdate(taskCtx, u)
			})
			if !submitted {
				// Not acknowledged; the next getUpdates call starts at
				// this update again.
				log.Printf("[BOT] Update %d deferred, pool saturated", u.UpdateID)
				select {
				case <-time.After(time.Second):
				case <-ctx.Done():
				}
				break
			}
			offset = u.UpdateID + 1
		}
	}
}
