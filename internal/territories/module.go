// Package territories provides the territory coverage bounded context module.
package territories

import (
	"leadmarket_backend/internal/audit"
	apphttp "leadmarket_backend/internal/http"
	"leadmarket_backend/internal/territories/handler"
	"leadmarket_backend/internal/territories/repository"
	"leadmarket_backend/internal/territories/service"
	"leadmarket_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the territories bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule creates and initializes the territories module.
func NewModule(pool *pgxpool.Pool, auditor *audit.Recorder, val *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, auditor)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "territories"
}

// RegisterRoutes mounts territory routes on the authenticated group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/agencies/:agencyId/territories")
	m.handler.RegisterRoutes(group)
}

// Service exposes the territory service for other modules.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository exposes the repository for coverage lookups by the routing module.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}
