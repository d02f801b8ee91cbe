package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type simulationResponse struct {
	Available bool `json:"available"`
	Enabled   bool `json:"enabled"`
}

// GetSimulation handles GET /api/simulation.
func (h *Handler) GetSimulation(c *gin.Context) {
	if h.sim == nil {
		c.JSON(http.StatusOK, simulationResponse{})
		return
	}
	c.JSON(http.StatusOK, simulationResponse{Available: true, Enabled: h.sim.Enabled()})
}

type putSimulationRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// PutSimulation handles PUT /api/simulation.
func (h *Handler) PutSimulation(c *gin.Context) {
	if h.sim == nil {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "simulation is only available in local mode"})
		return
	}
	var req putSimulationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	if err := h.sim.SetEnabled(c.Request.Context(), *req.Enabled); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, simulationResponse{Available: true, Enabled: h.sim.Enabled()})
}
