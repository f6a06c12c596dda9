// Package routing provides the lead routing bounded context module. It owns
// no tables of its own; it orchestrates territories, subscriptions and the
// assignment ledger through narrow ports.
package routing

import (
	assignrepo "leadmarket_backend/internal/assignments/repository"
	"leadmarket_backend/internal/events"
	apphttp "leadmarket_backend/internal/http"
	leadsrepo "leadmarket_backend/internal/leads/repository"
	"leadmarket_backend/internal/routing/adapters"
	"leadmarket_backend/internal/routing/handler"
	"leadmarket_backend/internal/routing/service"
	subsvc "leadmarket_backend/internal/subscriptions/service"
	terrrepo "leadmarket_backend/internal/territories/repository"
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/logger"
	"leadmarket_backend/platform/validator"
)

// Module is the routing bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates the routing module. The intake webhook routes leads
// synchronously through the service (wired via the leads module); the admin
// assign endpoint covers leads that failed routing at intake.
func NewModule(
	territories *terrrepo.Repository,
	subscriptions *subsvc.Service,
	leads *leadsrepo.Repository,
	assignments *assignrepo.Repository,
	eventBus events.Bus,
	val *validator.Validator,
	cfg config.RoutingConfig,
	log *logger.Logger,
) *Module {
	svc := service.New(
		adapters.NewCoverage(territories),
		adapters.NewCapacity(subscriptions),
		adapters.NewLeads(leads),
		adapters.NewLedger(assignments),
		eventBus,
		log,
		cfg,
	)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "routing"
}

// RegisterRoutes mounts routing routes on the admin group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Admin)
}

// Service exposes the routing service.
func (m *Module) Service() *service.Service {
	return m.service
}
