// Package notification turns assignment events into durable outbox records
// and delivers them through the configured channels. Delivery is best-effort
// and never affects the assignment that triggered it.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"leadmarket_backend/internal/events"
	"leadmarket_backend/internal/notification/email"
	"leadmarket_backend/internal/notification/outbox"
	"leadmarket_backend/internal/notification/push"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	channelPush  = "push"
	channelEmail = "email"

	// maxDeliveryAttempts bounds retries per outbox record before it is
	// parked as failed.
	maxDeliveryAttempts = 3

	retryDelay = 2 * time.Minute
)

type assignmentPayload struct {
	AssignmentID uuid.UUID `json:"assignmentId"`
	LeadID       uuid.UUID `json:"leadId"`
	AgencyID     uuid.UUID `json:"agencyId"`
	TerritoryKey string    `json:"territoryKey,omitempty"`
}

// Dispatcher owns the outbox write path and the delivery loop.
type Dispatcher struct {
	pool   *pgxpool.Pool
	outbox *outbox.Repository
	push   *push.Client
	email  email.Sender
	log    *logger.Logger
}

func NewDispatcher(pool *pgxpool.Pool, outboxRepo *outbox.Repository, pushClient *push.Client, emailSender email.Sender, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		pool:   pool,
		outbox: outboxRepo,
		push:   pushClient,
		email:  emailSender,
		log:    log,
	}
}

// Subscribe registers the dispatcher on the event bus. Each relevant event
// becomes one outbox record per enabled channel.
func (d *Dispatcher) Subscribe(bus events.Bus) {
	bus.Subscribe(events.LeadAssigned{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.LeadAssigned)
		if !ok {
			return nil
		}
		d.enqueue(ctx, e.EventName(), assignmentPayload{
			AssignmentID: e.AssignmentID,
			LeadID:       e.LeadID,
			AgencyID:     e.AgencyID,
			TerritoryKey: e.TerritoryKey,
		})
		return nil
	}))

	bus.Subscribe(events.AssignmentExpired{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.AssignmentExpired)
		if !ok {
			return nil
		}
		d.enqueue(ctx, e.EventName(), assignmentPayload{
			AssignmentID: e.AssignmentID,
			LeadID:       e.LeadID,
			AgencyID:     e.AgencyID,
		})
		return nil
	}))
}

func (d *Dispatcher) enqueue(ctx context.Context, kind string, payload assignmentPayload) {
	channels := make([]string, 0, 2)
	if d.push != nil {
		channels = append(channels, channelPush)
	}
	if _, noop := d.email.(email.NoopSender); !noop {
		channels = append(channels, channelEmail)
	}

	for _, channel := range channels {
		if _, err := d.outbox.Insert(ctx, outbox.InsertParams{
			AgencyID: payload.AgencyID,
			Kind:     kind,
			Channel:  channel,
			Payload:  payload,
		}); err != nil {
			d.log.Warn("outbox insert failed", "error", err, "kind", kind, "channel", channel)
		}
	}
}

// Deliver claims a batch of due records and attempts each one. Permanent
// parking happens after maxDeliveryAttempts.
func (d *Dispatcher) Deliver(ctx context.Context, limit int) (int, error) {
	records, err := d.outbox.ClaimPending(ctx, limit)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, rec := range records {
		if err := d.deliverOne(ctx, rec); err != nil {
			msg := err.Error()
			if rec.Attempts >= maxDeliveryAttempts {
				if markErr := d.outbox.MarkFailed(ctx, rec.ID, msg); markErr != nil {
					d.log.Warn("outbox mark failed", "error", markErr, "recordId", rec.ID)
				}
			} else {
				if markErr := d.outbox.MarkPending(ctx, rec.ID, time.Now().Add(retryDelay), &msg); markErr != nil {
					d.log.Warn("outbox requeue failed", "error", markErr, "recordId", rec.ID)
				}
			}
			d.log.Warn("notification delivery failed", "error", err, "recordId", rec.ID, "channel", rec.Channel, "attempt", rec.Attempts)
			continue
		}
		if err := d.outbox.MarkSucceeded(ctx, rec.ID); err != nil {
			d.log.Warn("outbox mark succeeded failed", "error", err, "recordId", rec.ID)
		}
		delivered++
	}

	return delivered, nil
}

func (d *Dispatcher) deliverOne(ctx context.Context, rec outbox.Record) error {
	switch rec.Channel {
	case channelPush:
		return d.push.Send(ctx, rec.AgencyID, rec.Kind, rec.Payload)
	case channelEmail:
		return d.deliverEmail(ctx, rec)
	default:
		return fmt.Errorf("unknown channel %q", rec.Channel)
	}
}

func (d *Dispatcher) deliverEmail(ctx context.Context, rec outbox.Record) error {
	name, contactEmail, err := d.agencyContact(ctx, rec.AgencyID)
	if err != nil {
		return err
	}
	if contactEmail == "" {
		// No address on file; nothing to deliver.
		return nil
	}

	var payload assignmentPayload
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		return fmt.Errorf("decode outbox payload: %w", err)
	}

	summary := fmt.Sprintf("Lead %s is waiting for your response.", payload.LeadID)
	return d.email.SendAssignmentAlert(ctx, contactEmail, name, summary, rec.Kind)
}

func (d *Dispatcher) agencyContact(ctx context.Context, agencyID uuid.UUID) (name, contactEmail string, err error) {
	err = d.pool.QueryRow(ctx,
		`SELECT name, COALESCE(contact_email, '') FROM agencies WHERE id = $1`,
		agencyID).Scan(&name, &contactEmail)
	return name, contactEmail, err
}
