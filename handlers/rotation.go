package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/letya999/duty-bot/db"
	"github.com/letya999/duty-bot/services"
)

type RotationHandler struct {
	Rotation *services.RotationService
}

func NewRotationHandler(rotation *services.RotationService) *RotationHandler {
	return &RotationHandler{Rotation: rotation}
}

// EnableRotation creates or re-enables the team's rotation with a new member
// order. An existing cursor is preserved.
func (h *RotationHandler) EnableRotation(c *gin.Context) {
	teamID := c.Param("id")

	var req db.EnableRotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg, err := h.Rotation.EnableRotation(teamID, req.MemberOrder)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, cfg)
}

// DisableRotation turns rotation off, keeping config and cursor.
func (h *RotationHandler) DisableRotation(c *gin.Context) {
	if err := h.Rotation.DisableRotation(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": false})
}

// GetNextPerson previews who rotation would pick next.
func (h *RotationHandler) GetNextPerson(c *gin.Context) {
	person, err := h.Rotation.GetNextPerson(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"person_id": person})
}

// AssignRotation assigns the next person for a date and advances the cursor.
func (h *RotationHandler) AssignRotation(c *gin.Context) {
	teamID := c.Param("id")

	var req db.AssignRotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	date, ok := parseDate(c, req.Date)
	if !ok {
		return
	}

	resp, err := h.Rotation.AssignRotation(teamID, date)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
