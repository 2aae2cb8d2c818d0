package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/letya999/duty-bot/db"
	"github.com/letya999/duty-bot/services"
)

type StatsHandler struct {
	Stats *services.StatsService
}

func NewStatsHandler(stats *services.StatsService) *StatsHandler {
	return &StatsHandler{Stats: stats}
}

// Recalculate rebuilds a month's counters on demand.
func (h *StatsHandler) Recalculate(c *gin.Context) {
	workspaceID := c.Param("id")

	var req db.RecalculateStatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stats, err := h.Stats.Recalculate(workspaceID, req.Year, req.Month)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// GetStats returns the stored counters for a period.
func (h *StatsHandler) GetStats(c *gin.Context) {
	workspaceID := c.Param("id")

	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid year"})
		return
	}
	month, err := strconv.Atoi(c.Query("month"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid month"})
		return
	}

	stats, err := h.Stats.GetStats(workspaceID, year, month)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
