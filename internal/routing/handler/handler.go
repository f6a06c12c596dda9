// Package handler provides HTTP handlers for lead routing.
package handler

import (
	"net/http"

	"leadmarket_backend/internal/routing/service"
	"leadmarket_backend/internal/routing/transport"
	"leadmarket_backend/platform/httpkit"
	"leadmarket_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes mounts routing routes under the admin group. Routing is an
// operator action; agencies never trigger it themselves.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/routing/assign", h.Assign)
}

func (h *Handler) Assign(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req transport.AssignLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	actorID := identity.UserID()
	res, err := h.svc.AssignLeadByID(c.Request.Context(), req.LeadID, &actorID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, transport.AssignLeadResponse{
		AssignmentID: res.AssignmentID,
		LeadID:       res.LeadID,
		AgencyID:     res.AgencyID,
		TerritoryKey: res.TerritoryKey,
		Tier:         res.Tier,
		Sequence:     res.Sequence,
		ExpiresAt:    res.ExpiresAt,
	})
}
