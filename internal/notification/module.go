package notification

import (
	"leadmarket_backend/internal/events"
	"leadmarket_backend/internal/notification/email"
	"leadmarket_backend/internal/notification/outbox"
	"leadmarket_backend/internal/notification/push"
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module wires the notification dispatcher. It registers no HTTP routes;
// the scheduler drives delivery.
type Module struct {
	dispatcher *Dispatcher
}

// NewModule creates the notification module and subscribes it to assignment
// events.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, pushCfg config.PushConfig, emailCfg config.EmailConfig, log *logger.Logger) *Module {
	dispatcher := NewDispatcher(
		pool,
		outbox.New(pool),
		push.NewClient(pushCfg, log),
		email.NewSender(emailCfg),
		log,
	)
	dispatcher.Subscribe(eventBus)

	return &Module{dispatcher: dispatcher}
}

// Dispatcher exposes the delivery loop for the scheduler and the API's
// background poller.
func (m *Module) Dispatcher() *Dispatcher {
	return m.dispatcher
}
