package services

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEscalationService(t *testing.T) (*EscalationService, sqlmock.Sqlmock) {
	t.Helper()
	pg, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { pg.Close() })

	return NewEscalationService(pg, NewAuditService(pg)), mock
}

func eventRow(id, teamID string, initiated time.Time, acked, level2 interface{}) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "team_id", "origin_channel", "initiated_at", "acknowledged_at",
		"escalated_to_level2_at", "created_at",
	}).AddRow(id, teamID, "#ops", initiated, acked, level2, initiated)
}

func TestCreateEscalationEventReusesActive(t *testing.T) {
	svc, mock := newEscalationService(t)
	initiated := time.Now().Add(-2 * time.Minute)

	mock.ExpectQuery("SELECT id, team_id, origin_channel").
		WillReturnRows(eventRow("ev-1", "team-1", initiated, nil, nil))

	resp, err := svc.CreateEscalationEvent("team-1", "#ops")
	require.NoError(t, err)
	assert.True(t, resp.Reused)
	assert.Equal(t, "ev-1", resp.Event.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateEscalationEventStartsFresh(t *testing.T) {
	svc, mock := newEscalationService(t)

	mock.ExpectQuery("SELECT id, team_id, origin_channel").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec("INSERT INTO escalation_events").WillReturnResult(sqlmock.NewResult(0, 1))

	resp, err := svc.CreateEscalationEvent("team-1", "#ops")
	require.NoError(t, err)
	assert.False(t, resp.Reused)
	assert.NotEmpty(t, resp.Event.ID)
	assert.Equal(t, "team-1", resp.Event.TeamID)
	assert.Nil(t, resp.Event.AcknowledgedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcknowledgeEscalation(t *testing.T) {
	svc, mock := newEscalationService(t)
	initiated := time.Now().Add(-5 * time.Minute)
	acked := time.Now()

	mock.ExpectExec("UPDATE escalation_events").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT id, team_id, origin_channel").
		WillReturnRows(eventRow("ev-1", "team-1", initiated, acked, nil))

	ev, err := svc.AcknowledgeEscalation("ev-1")
	require.NoError(t, err)
	require.NotNil(t, ev.AcknowledgedAt)
	assert.False(t, ev.Active())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcknowledgeEscalationTwiceIsUserError(t *testing.T) {
	svc, mock := newEscalationService(t)
	initiated := time.Now().Add(-5 * time.Minute)
	acked := time.Now().Add(-time.Minute)

	// The guarded UPDATE touches nothing the second time; the stored
	// timestamp survives.
	mock.ExpectExec("UPDATE escalation_events").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT id, team_id, origin_channel").
		WillReturnRows(eventRow("ev-1", "team-1", initiated, acked, nil))

	ev, err := svc.AcknowledgeEscalation("ev-1")
	require.Error(t, err)
	assert.True(t, IsUserError(err))
	assert.Contains(t, err.Error(), "already acknowledged")
	require.NotNil(t, ev.AcknowledgedAt)
	assert.WithinDuration(t, acked, *ev.AcknowledgedAt, time.Second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEscalateToLevel2OnlyOnce(t *testing.T) {
	svc, mock := newEscalationService(t)

	mock.ExpectExec("UPDATE escalation_events").WillReturnResult(sqlmock.NewResult(0, 1))
	promoted, err := svc.EscalateToLevel2("ev-1")
	require.NoError(t, err)
	assert.True(t, promoted)

	mock.ExpectExec("UPDATE escalation_events").WillReturnResult(sqlmock.NewResult(0, 0))
	promoted, err = svc.EscalateToLevel2("ev-1")
	require.NoError(t, err)
	assert.False(t, promoted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetGlobalCTO(t *testing.T) {
	svc, mock := newEscalationService(t)

	mock.ExpectQuery("SELECT e.id, e.workspace_id").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "workspace_id", "team_id", "person_id", "created_at", "name",
		}).AddRow("c-1", "ws-1", nil, "cto-1", time.Now(), "Grace"))

	contact, err := svc.GetGlobalCTO("ws-1")
	require.NoError(t, err)
	require.NotNil(t, contact)
	assert.Equal(t, "cto-1", contact.PersonID)
	assert.Equal(t, "Grace", contact.PersonName)
	assert.Nil(t, contact.TeamID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetGlobalCTONotConfigured(t *testing.T) {
	svc, mock := newEscalationService(t)

	mock.ExpectQuery("SELECT e.id, e.workspace_id").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	contact, err := svc.GetGlobalCTO("ws-1")
	require.NoError(t, err)
	assert.Nil(t, contact)
	assert.NoError(t, mock.ExpectationsWereMet())
}
