// Package handler provides HTTP handlers for subscription usage queries.
package handler

import (
	"net/http"

	"leadmarket_backend/internal/subscriptions/service"
	"leadmarket_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	svc *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/usage", h.Usage)
}

func (h *Handler) Usage(c *gin.Context) {
	agencyID, err := uuid.Parse(c.Param("agencyId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}

	resp, err := h.svc.Usage(c.Request.Context(), agencyID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, resp)
}
