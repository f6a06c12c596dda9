// Package assignments provides the assignment ledger bounded context module.
package assignments

import (
	"leadmarket_backend/internal/assignments/handler"
	"leadmarket_backend/internal/assignments/repository"
	"leadmarket_backend/internal/assignments/service"
	"leadmarket_backend/internal/audit"
	"leadmarket_backend/internal/events"
	apphttp "leadmarket_backend/internal/http"
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/logger"
	"leadmarket_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the assignments bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule creates and initializes the assignments module.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, auditor *audit.Recorder, val *validator.Validator, cfg config.RoutingConfig, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, eventBus, auditor, log, cfg)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "assignments"
}

// RegisterRoutes mounts assignment routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/assignments"))
	m.handler.RegisterAgencyRoutes(ctx.Protected.Group("/agencies/:agencyId/assignments"))
	m.handler.RegisterAdminRoutes(ctx.Admin)
}

// Service exposes the assignment service for the scheduler's expiry job.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository exposes the ledger for the routing module's commit path.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}
