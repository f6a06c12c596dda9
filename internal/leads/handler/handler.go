// Package handler provides HTTP handlers for lead intake and retrieval.
package handler

import (
	"context"
	"net/http"

	"leadmarket_backend/internal/leads/repository"
	"leadmarket_backend/internal/leads/service"
	"leadmarket_backend/internal/leads/transport"
	"leadmarket_backend/platform/httpkit"
	"leadmarket_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// contextSourceKey carries the intake key's source label set by the
// webhook auth middleware.
const contextSourceKey = "intakeSource"

// AssignmentRouter routes a stored lead to an agency. The routing module
// supplies the implementation through SetRouter; a nil router leaves inbound
// leads unassigned.
type AssignmentRouter interface {
	AssignLeadByID(ctx context.Context, leadID uuid.UUID, assignedBy *uuid.UUID) (transport.IntakeAssignment, error)
}

type Handler struct {
	svc    *service.Service
	repo   *repository.Repository
	val    *validator.Validator
	router AssignmentRouter
}

func New(svc *service.Service, repo *repository.Repository, val *validator.Validator) *Handler {
	return &Handler{svc: svc, repo: repo, val: val}
}

// SetRouter injects the routing dependency (breaks the module cycle; wired
// by the composition root).
func (h *Handler) SetRouter(router AssignmentRouter) {
	h.router = router
}

// APIKeyAuthMiddleware validates the X-Webhook-API-Key header against the
// stored key hashes and records the key's source label for the handler.
func APIKeyAuthMiddleware(repo *repository.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("X-Webhook-API-Key")
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing API key"})
			return
		}

		key, err := repo.GetKeyByHash(c.Request.Context(), repository.HashKey(apiKey))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			return
		}

		c.Set(contextSourceKey, key.Source)
		c.Next()
	}
}

// RegisterWebhookRoutes mounts the unauthenticated intake endpoint behind
// the API key middleware.
func (h *Handler) RegisterWebhookRoutes(rg *gin.RouterGroup) {
	rg.POST("/leads", APIKeyAuthMiddleware(h.repo), h.Intake)
}

// RegisterRoutes mounts authenticated lead retrieval.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
}

// RegisterAdminRoutes mounts intake key management.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhook-keys", h.CreateKey)
	rg.GET("/webhook-keys", h.ListKeys)
	rg.DELETE("/webhook-keys/:keyId", h.RevokeKey)
}

func (h *Handler) Intake(c *gin.Context) {
	var req transport.IntakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.svc.Intake(c.Request.Context(), req, c.GetString(contextSourceKey))
	if httpkit.HandleError(c, err) {
		return
	}

	if h.router == nil {
		httpkit.JSON(c, http.StatusCreated, lead)
		return
	}

	// The lead is already persisted; a routing failure surfaces as-is and
	// leaves the lead for the admin assign endpoint.
	assignment, err := h.router.AssignLeadByID(c.Request.Context(), lead.ID, nil)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, transport.IntakeResponse{
		Lead:       lead,
		Assignment: assignment,
	})
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	resp, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) List(c *gin.Context) {
	var req transport.ListLeadsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	resp, err := h.svc.List(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) CreateKey(c *gin.Context) {
	var req transport.CreateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	plaintext, hash, prefix, err := repository.GenerateKey()
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "failed to generate key", nil)
		return
	}

	key, err := h.repo.CreateKey(c.Request.Context(), req.Name, hash, prefix, req.Source)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, transport.CreateKeyResponse{
		ID:        key.ID,
		Name:      key.Name,
		Source:    key.Source,
		Key:       plaintext,
		KeyPrefix: key.KeyPrefix,
		CreatedAt: key.CreatedAt,
	})
}

func (h *Handler) ListKeys(c *gin.Context) {
	keys, err := h.repo.ListKeys(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]transport.KeyResponse, len(keys))
	for i, key := range keys {
		items[i] = transport.KeyResponse{
			ID:        key.ID,
			Name:      key.Name,
			Source:    key.Source,
			KeyPrefix: key.KeyPrefix,
			IsActive:  key.IsActive,
			CreatedAt: key.CreatedAt,
		}
	}
	httpkit.OK(c, items)
}

func (h *Handler) RevokeKey(c *gin.Context) {
	keyID, err := uuid.Parse(c.Param("keyId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if err := h.repo.RevokeKey(c.Request.Context(), keyID); err != nil {
		httpkit.Error(c, http.StatusNotFound, "key not found", nil)
		return
	}
	c.Status(http.StatusNoContent)
}
