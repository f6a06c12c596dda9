// Package handler provides HTTP handlers for the assignment ledger.
package handler

import (
	"net/http"

	"leadmarket_backend/internal/assignments/service"
	"leadmarket_backend/internal/assignments/transport"
	"leadmarket_backend/platform/httpkit"
	"leadmarket_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes mounts assignment routes under an authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id", h.Get)
	rg.POST("/:id/accept", h.Accept)
	rg.POST("/:id/reject", h.Reject)
	rg.POST("/:id/complete", h.Complete)
}

// RegisterAgencyRoutes mounts the per-agency assignment listing.
func (h *Handler) RegisterAgencyRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.ListByAgency)
}

// RegisterAdminRoutes mounts operator-only routes.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/assignments/manual", h.AssignManual)
	rg.GET("/leads/:leadId/assignments", h.ListByLead)
	rg.POST("/assignments/expire", h.Expire)
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

// respond parses the shared id/agencyId pair for accept, reject and complete.
func respondParams(c *gin.Context) (id, agencyID uuid.UUID, ok bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return uuid.Nil, uuid.Nil, false
	}
	agencyID, err = uuid.Parse(c.Query("agencyId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "agencyId query parameter is required", nil)
		return uuid.Nil, uuid.Nil, false
	}
	return id, agencyID, true
}

func (h *Handler) Accept(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, agencyID, ok := respondParams(c)
	if !ok {
		return
	}

	actorID := identity.UserID()
	resp, err := h.svc.Accept(c.Request.Context(), id, agencyID, &actorID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) Reject(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, agencyID, ok := respondParams(c)
	if !ok {
		return
	}

	var req transport.RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	actorID := identity.UserID()
	resp, err := h.svc.Reject(c.Request.Context(), id, agencyID, req.Reason, &actorID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) Complete(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, agencyID, ok := respondParams(c)
	if !ok {
		return
	}

	actorID := identity.UserID()
	resp, err := h.svc.Complete(c.Request.Context(), id, agencyID, &actorID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) ListByAgency(c *gin.Context) {
	agencyID, err := uuid.Parse(c.Param("agencyId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.ListByAgencyRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	resp, err := h.svc.ListByAgency(c.Request.Context(), agencyID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) ListByLead(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("leadId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	resp, err := h.svc.ListByLead(c.Request.Context(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) AssignManual(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req transport.ManualAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	actorID := identity.UserID()
	resp, err := h.svc.AssignManual(c.Request.Context(), req, &actorID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, resp)
}

// Expire runs the stale-assignment sweep on demand. The scheduler runs the
// same sweep periodically; this endpoint exists for operators.
func (h *Handler) Expire(c *gin.Context) {
	count, err := h.svc.ExpireStale(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"expired": count})
}
