package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/letya999/duty-bot/db"
	"github.com/letya999/duty-bot/services"
)

type TeamHandler struct {
	Teams *services.TeamService
	Audit *services.AuditService
}

func NewTeamHandler(teams *services.TeamService, audit *services.AuditService) *TeamHandler {
	return &TeamHandler{Teams: teams, Audit: audit}
}

func (h *TeamHandler) CreateTeam(c *gin.Context) {
	workspaceID := c.Param("id")

	var req db.CreateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	team, err := h.Teams.CreateTeam(workspaceID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, team)
}

func (h *TeamHandler) GetTeam(c *gin.Context) {
	team, err := h.Teams.GetTeam(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, team)
}

func (h *TeamHandler) ListTeams(c *gin.Context) {
	teams, err := h.Teams.ListTeams(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"teams": teams})
}

func (h *TeamHandler) UpdateTeam(c *gin.Context) {
	var req db.UpdateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	team, err := h.Teams.UpdateTeam(c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, team)
}

func (h *TeamHandler) SetTeamLead(c *gin.Context) {
	var req db.SetTeamLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	team, err := h.Teams.SetTeamLead(c.Param("id"), req.PersonID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, team)
}

// SetAssignmentMode switches record shape for future writes; existing rows
// keep theirs.
func (h *TeamHandler) SetAssignmentMode(c *gin.Context) {
	var req db.SetAssignmentModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	team, err := h.Teams.SetAssignmentMode(c.Param("id"), req.AssignmentMode)
	if err != nil {
		respondError(c, err)
		return
	}

	h.Audit.Record(team.WorkspaceID, actor(c), "team.mode_change", team.ID, map[string]interface{}{
		"assignment_mode": team.AssignmentMode,
	})
	c.JSON(http.StatusOK, team)
}

func (h *TeamHandler) DeleteTeam(c *gin.Context) {
	teamID := c.Param("id")

	team, err := h.Teams.GetTeam(teamID)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.Teams.DeleteTeam(teamID); err != nil {
		respondError(c, err)
		return
	}

	h.Audit.Record(team.WorkspaceID, actor(c), "team.delete", teamID, nil)
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
