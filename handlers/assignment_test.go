package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letya999/duty-bot/db"
	"github.com/letya999/duty-bot/services"
)

func newAssignmentRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pg, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { pg.Close() })

	svc := services.NewAssignmentService(pg, services.NewConflictService(pg), services.NewAuditService(pg), time.UTC)
	h := NewAssignmentHandler(svc)

	r := gin.New()
	r.PUT("/teams/:id/assignments", h.SetAssignment)
	r.DELETE("/teams/:id/assignments/:date", h.ClearAssignment)
	return r, mock
}

func teamRow(id, mode string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "workspace_id", "name", "display_name", "assignment_mode",
		"lead_person_id", "created_at", "updated_at",
	}).AddRow(id, "ws-1", "eng", "Engineering", mode, nil, time.Now(), time.Now())
}

func TestSetAssignmentEndpoint(t *testing.T) {
	r, mock := newAssignmentRouter(t)
	date := time.Date(2030, 3, 4, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT id, workspace_id").WillReturnRows(teamRow("team-1", db.ModeSingle))
	mock.ExpectQuery("SELECT a.team_id, t.name").
		WillReturnRows(sqlmock.NewRows([]string{"team_id"}))
	mock.ExpectQuery("UPDATE assignments").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "team_id", "date", "person_id", "mode", "created_at", "updated_at",
		}).AddRow("a-1", "team-1", date, "alice", db.ModeSingle, time.Now(), time.Now()))

	body := `{"date":"2030-03-04","person_id":"alice"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/teams/team-1/assignments", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var out db.Assignment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "alice", out.PersonID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetAssignmentEndpointConflict(t *testing.T) {
	r, mock := newAssignmentRouter(t)
	date := time.Date(2030, 3, 4, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT id, workspace_id").WillReturnRows(teamRow("team-2", db.ModeSingle))
	mock.ExpectQuery("SELECT a.team_id, t.name").
		WillReturnRows(sqlmock.NewRows([]string{"team_id", "name", "display_name", "person_id", "date", "mode"}).
			AddRow("team-1", "platform", "Platform", "alice", date, db.ModeSingle))

	body := `{"date":"2030-03-04","person_id":"alice"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/teams/team-2/assignments", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusConflict, w.Code)

	var out struct {
		Error    string          `json:"error"`
		Conflict db.ConflictInfo `json:"conflict"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "team-1", out.Conflict.TeamID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetAssignmentEndpointBadDate(t *testing.T) {
	r, _ := newAssignmentRouter(t)

	body := `{"date":"04-03-2030","person_id":"alice"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/teams/team-1/assignments", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
