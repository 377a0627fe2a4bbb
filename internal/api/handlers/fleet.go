package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/erpdesk/printflow/internal/fleet"
)

// FleetHandler proxies read-only registry queries to the print service so
// the dashboard can show agent and printer health.
type FleetHandler struct {
	client *fleet.Client
}

func NewFleetHandler(client *fleet.Client) *FleetHandler {
	return &FleetHandler{client: client}
}

func (h *FleetHandler) ListAgents(c *gin.Context) {
	agents, err := h.client.ListAgents(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "print_service_error",
			Message: "Failed to retrieve agents",
		})
		return
	}
	c.JSON(http.StatusOK, agents)
}

func (h *FleetHandler) ListPrinters(c *gin.Context) {
	printers, err := h.client.ListPrinters(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "print_service_error",
			Message: "Failed to retrieve printers",
		})
		return
	}
	c.JSON(http.StatusOK, printers)
}
