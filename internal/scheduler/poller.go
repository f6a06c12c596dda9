package scheduler

import (
	"context"
	"time"

	"leadmarket_backend/platform/logger"

	"github.com/hibiken/asynq"
)

const (
	expireInterval = time.Minute
	outboxInterval = 30 * time.Second
	renewInterval  = time.Hour

	outboxBatchSize = 50
)

// Poller periodically enqueues the recurring background tasks. Running the
// sweeps through asynq rather than inline keeps one worker deployment in
// charge of them even when multiple API instances run.
type Poller struct {
	client *Client
	log    *logger.Logger
}

func NewPoller(client *Client, log *logger.Logger) *Poller {
	return &Poller{client: client, log: log}
}

// Run blocks until the context is canceled.
func (p *Poller) Run(ctx context.Context) {
	if p == nil || p.client == nil {
		return
	}

	expireTicker := time.NewTicker(expireInterval)
	outboxTicker := time.NewTicker(outboxInterval)
	renewTicker := time.NewTicker(renewInterval)
	defer expireTicker.Stop()
	defer outboxTicker.Stop()
	defer renewTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-expireTicker.C:
			p.enqueue(ctx, NewAssignmentsExpireTask())
		case <-outboxTicker.C:
			task, err := NewOutboxDrainTask(OutboxDrainPayload{BatchSize: outboxBatchSize})
			if err != nil {
				p.log.Error("build outbox drain task", "error", err)
				continue
			}
			p.enqueue(ctx, task)
		case <-renewTicker.C:
			p.enqueue(ctx, NewSubscriptionsRenewTask())
		}
	}
}

func (p *Poller) enqueue(ctx context.Context, task *asynq.Task) {
	_, err := p.client.client.EnqueueContext(ctx, task, asynq.Queue(p.client.queue))
	if err != nil {
		p.log.Warn("enqueue scheduled task failed", "task", task.Type(), "error", err)
	}
}
