package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/letya999/duty-bot/db"
	"github.com/letya999/duty-bot/services"
)

type AssignmentHandler struct {
	Assignments *services.AssignmentService
}

func NewAssignmentHandler(assignments *services.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{Assignments: assignments}
}

func parseDate(c *gin.Context, value string) (time.Time, bool) {
	d, err := time.Parse(db.DateLayout, value)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD: " + value})
		return time.Time{}, false
	}
	return d, true
}

// SetAssignment writes one duty record for the team.
func (h *AssignmentHandler) SetAssignment(c *gin.Context) {
	teamID := c.Param("id")

	var req db.SetAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	date, ok := parseDate(c, req.Date)
	if !ok {
		return
	}

	assignment, err := h.Assignments.SetAssignment(teamID, date, req.PersonID, "", req.Force)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, assignment)
}

// ClearAssignment deletes the whole day for the team.
func (h *AssignmentHandler) ClearAssignment(c *gin.Context) {
	teamID := c.Param("id")
	date, ok := parseDate(c, c.Param("date"))
	if !ok {
		return
	}

	deleted, err := h.Assignments.ClearAssignment(teamID, date)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// GetAssignments returns the duty records for one date.
func (h *AssignmentHandler) GetAssignments(c *gin.Context) {
	teamID := c.Param("id")
	date, ok := parseDate(c, c.Param("date"))
	if !ok {
		return
	}

	assignments, err := h.Assignments.GetAssignments(teamID, date)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"assignments": assignments})
}

// ListRange returns assignments for an inclusive date range.
func (h *AssignmentHandler) ListRange(c *gin.Context) {
	teamID := c.Param("id")
	start, ok := parseDate(c, c.Query("start"))
	if !ok {
		return
	}
	end, ok := parseDate(c, c.Query("end"))
	if !ok {
		return
	}

	assignments, err := h.Assignments.ListRange(teamID, start, end)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"assignments": assignments})
}

// SetRange assigns one person to every day in a range. Not atomic across
// days; the response reports partial progress alongside any error.
func (h *AssignmentHandler) SetRange(c *gin.Context) {
	teamID := c.Param("id")

	var req db.SetRangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, ok := parseDate(c, req.StartDate)
	if !ok {
		return
	}
	end, ok := parseDate(c, req.EndDate)
	if !ok {
		return
	}

	result, err := h.Assignments.SetRange(teamID, start, end, req.PersonID, req.Force)
	if err != nil {
		if len(result.Conflicts) > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "result": result})
			return
		}
		if services.IsUserError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "result": result})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
