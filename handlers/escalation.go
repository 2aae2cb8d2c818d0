package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/letya999/duty-bot/db"
	"github.com/letya999/duty-bot/services"
)

type EscalationHandler struct {
	Escalations *services.EscalationService
}

func NewEscalationHandler(escalations *services.EscalationService) *EscalationHandler {
	return &EscalationHandler{Escalations: escalations}
}

// CreateEscalation starts (or reuses) the team's active incident.
func (h *EscalationHandler) CreateEscalation(c *gin.Context) {
	teamID := c.Param("id")

	var req db.CreateEscalationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.Escalations.CreateEscalationEvent(teamID, req.OriginChannel)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if resp.Reused {
		status = http.StatusOK
	}
	c.JSON(status, resp)
}

// Acknowledge terminates the escalation; a second acknowledge is rejected.
func (h *EscalationHandler) Acknowledge(c *gin.Context) {
	ev, err := h.Escalations.AcknowledgeEscalation(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

// EscalateLevel2 promotes the event by explicit command.
func (h *EscalationHandler) EscalateLevel2(c *gin.Context) {
	eventID := c.Param("id")
	promoted, err := h.Escalations.EscalateToLevel2(eventID)
	if err != nil {
		respondError(c, err)
		return
	}
	ev, err := h.Escalations.GetEvent(eventID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"promoted": promoted, "event": ev})
}

// GetActive returns the team's unacknowledged event, if any.
func (h *EscalationHandler) GetActive(c *gin.Context) {
	ev, err := h.Escalations.GetActiveEscalation(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if ev == nil {
		c.JSON(http.StatusOK, gin.H{"active": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": ev})
}

// SetCTO registers the workspace-wide level-2 contact.
func (h *EscalationHandler) SetCTO(c *gin.Context) {
	workspaceID := c.Param("id")

	var req db.SetCTORequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contact, err := h.Escalations.SetGlobalCTO(workspaceID, req.PersonID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, contact)
}

// GetCTO resolves the workspace's level-2 contact.
func (h *EscalationHandler) GetCTO(c *gin.Context) {
	contact, err := h.Escalations.GetGlobalCTO(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if contact == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no CTO configured for this workspace"})
		return
	}
	c.JSON(http.StatusOK, contact)
}
