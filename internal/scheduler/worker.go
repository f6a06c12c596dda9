package scheduler

import (
	"context"
	"fmt"

	assignsvc "leadmarket_backend/internal/assignments/service"
	"leadmarket_backend/internal/notification"
	subsrepo "leadmarket_backend/internal/subscriptions/repository"
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/logger"

	"github.com/hibiken/asynq"
)

type Worker struct {
	server        *asynq.Server
	mux           *asynq.ServeMux
	assignments   *assignsvc.Service
	subscriptions *subsrepo.Repository
	dispatcher    *notification.Dispatcher
	log           *logger.Logger
}

func NewWorker(
	cfg config.SchedulerConfig,
	assignments *assignsvc.Service,
	subscriptions *subsrepo.Repository,
	dispatcher *notification.Dispatcher,
	log *logger.Logger,
) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:        server,
		mux:           mux,
		assignments:   assignments,
		subscriptions: subscriptions,
		dispatcher:    dispatcher,
		log:           log,
	}

	mux.HandleFunc(TaskAssignmentsExpire, w.handleAssignmentsExpire)
	mux.HandleFunc(TaskNotificationOutboxDrain, w.handleOutboxDrain)
	mux.HandleFunc(TaskSubscriptionsRenew, w.handleSubscriptionsRenew)

	return w, nil
}

func (w *Worker) handleAssignmentsExpire(ctx context.Context, _ *asynq.Task) error {
	count, err := w.assignments.ExpireStale(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		w.log.Info("expired stale assignments", "count", count)
	}
	return nil
}

func (w *Worker) handleOutboxDrain(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseOutboxDrainPayload(task)
	if err != nil {
		return err
	}

	delivered, err := w.dispatcher.Deliver(ctx, payload.BatchSize)
	if err != nil {
		return err
	}
	if delivered > 0 {
		w.log.Info("delivered notifications", "count", delivered)
	}
	return nil
}

func (w *Worker) handleSubscriptionsRenew(ctx context.Context, _ *asynq.Task) error {
	renewed, err := w.subscriptions.ResetDueRenewals(ctx)
	if err != nil {
		return err
	}
	if renewed > 0 {
		w.log.Info("renewed subscriptions", "count", renewed)
	}
	return nil
}

// Run blocks until the context is canceled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
