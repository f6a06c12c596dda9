// Package scheduler provides the asynq task definitions, the periodic
// enqueuer, and the worker that executes background jobs.
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// TaskAssignmentsExpire sweeps pending assignments past their response window.
const TaskAssignmentsExpire = "assignments.expire_stale"

// TaskNotificationOutboxDrain delivers due notification outbox records.
const TaskNotificationOutboxDrain = "notification.outbox.drain"

// TaskSubscriptionsRenew resets consumed units for subscriptions whose
// renewal time has passed.
const TaskSubscriptionsRenew = "subscriptions.renew"

type OutboxDrainPayload struct {
	BatchSize int `json:"batchSize"`
}

func NewAssignmentsExpireTask() *asynq.Task {
	return asynq.NewTask(TaskAssignmentsExpire, nil)
}

func NewSubscriptionsRenewTask() *asynq.Task {
	return asynq.NewTask(TaskSubscriptionsRenew, nil)
}

func NewOutboxDrainTask(payload OutboxDrainPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationOutboxDrain, data), nil
}

func ParseOutboxDrainPayload(task *asynq.Task) (OutboxDrainPayload, error) {
	var payload OutboxDrainPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return OutboxDrainPayload{}, err
	}
	return payload, nil
}
