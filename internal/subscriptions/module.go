// Package subscriptions provides the subscription capacity bounded context module.
package subscriptions

import (
	apphttp "leadmarket_backend/internal/http"
	"leadmarket_backend/internal/subscriptions/handler"
	"leadmarket_backend/internal/subscriptions/repository"
	"leadmarket_backend/internal/subscriptions/service"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the subscriptions bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule creates and initializes the subscriptions module.
func NewModule(pool *pgxpool.Pool) *Module {
	repo := repository.New(pool)
	svc := service.New(repo)

	return &Module{
		handler: handler.New(svc),
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "subscriptions"
}

// RegisterRoutes mounts subscription routes on the authenticated group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/agencies/:agencyId/subscription")
	m.handler.RegisterRoutes(group)
}

// Service exposes the capacity gate for the routing module.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository exposes subscription persistence for the scheduler's renewal job.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}
