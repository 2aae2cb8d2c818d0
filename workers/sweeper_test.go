package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letya999/duty-bot/services"
)

type recordedNotify struct {
	WorkspaceID string
	Channel     string
	Message     string
}

type fakeNotifier struct {
	calls []recordedNotify
	err   error
}

func (f *fakeNotifier) Notify(ctx context.Context, workspaceID, channel, message string) error {
	f.calls = append(f.calls, recordedNotify{WorkspaceID: workspaceID, Channel: channel, Message: message})
	return f.err
}

func newSweeper(t *testing.T) (*EscalationSweeper, sqlmock.Sqlmock, *fakeNotifier) {
	t.Helper()
	pg, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { pg.Close() })

	audit := services.NewAuditService(pg)
	escalations := services.NewEscalationService(pg, audit)
	notifier := &fakeNotifier{}
	sweeper := NewEscalationSweeper(pg, escalations, notifier, audit,
		10*time.Minute, time.Minute, 5*time.Second)
	return sweeper, mock, notifier
}

func overdueRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "team_id", "name", "workspace_id", "origin_channel", "initiated_at",
	})
}

func ctoRows(personID, name string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "workspace_id", "team_id", "person_id", "created_at", "name",
	}).AddRow("c-1", "ws-1", nil, personID, time.Now(), name)
}

func TestTickPromotesAndNotifiesOnce(t *testing.T) {
	sweeper, mock, notifier := newSweeper(t)
	initiated := time.Now().Add(-30 * time.Minute)

	mock.ExpectQuery("SELECT e.id, e.team_id").
		WillReturnRows(overdueRows().AddRow("ev-1", "team-1", "eng", "ws-1", "#ops", initiated))
	mock.ExpectExec("UPDATE escalation_events").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_log").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT e.id, e.workspace_id").WillReturnRows(ctoRows("cto-1", "Grace"))

	sweeper.Tick()

	require.Len(t, notifier.calls, 1)
	assert.Equal(t, "ws-1", notifier.calls[0].WorkspaceID)
	assert.Equal(t, "#ops", notifier.calls[0].Channel)
	assert.Contains(t, notifier.calls[0].Message, "eng")
	assert.Contains(t, notifier.calls[0].Message, "Grace")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTickDoesNotRenotifyLostRace(t *testing.T) {
	sweeper, mock, notifier := newSweeper(t)
	initiated := time.Now().Add(-30 * time.Minute)

	// The guarded UPDATE finds the timestamp already set: someone else
	// promoted between the scan and the write. No audit, no notification.
	mock.ExpectQuery("SELECT e.id, e.team_id").
		WillReturnRows(overdueRows().AddRow("ev-1", "team-1", "eng", "ws-1", "#ops", initiated))
	mock.ExpectExec("UPDATE escalation_events").WillReturnResult(sqlmock.NewResult(0, 0))

	sweeper.Tick()

	assert.Empty(t, notifier.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTickSkipsWhenNoCTOConfigured(t *testing.T) {
	sweeper, mock, notifier := newSweeper(t)
	initiated := time.Now().Add(-30 * time.Minute)

	mock.ExpectQuery("SELECT e.id, e.team_id").
		WillReturnRows(overdueRows().AddRow("ev-1", "team-1", "eng", "ws-1", "#ops", initiated))
	mock.ExpectExec("UPDATE escalation_events").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_log").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT e.id, e.workspace_id").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	sweeper.Tick()

	assert.Empty(t, notifier.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTickIsolatesPerTeamFailures(t *testing.T) {
	sweeper, mock, notifier := newSweeper(t)
	initiated := time.Now().Add(-30 * time.Minute)

	mock.ExpectQuery("SELECT e.id, e.team_id").
		WillReturnRows(overdueRows().
			AddRow("ev-1", "team-1", "eng", "ws-1", "#ops", initiated).
			AddRow("ev-2", "team-2", "data", "ws-1", "#data", initiated))

	// First team's promotion blows up; the second still goes through.
	mock.ExpectExec("UPDATE escalation_events").WillReturnError(errors.New("connection reset"))

	mock.ExpectExec("UPDATE escalation_events").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_log").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT e.id, e.workspace_id").WillReturnRows(ctoRows("cto-1", "Grace"))

	sweeper.Tick()

	require.Len(t, notifier.calls, 1)
	assert.Equal(t, "#data", notifier.calls[0].Channel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTickSkipsWhilePreviousStillRunning(t *testing.T) {
	sweeper, mock, notifier := newSweeper(t)

	sweeper.running.Store(true)
	sweeper.Tick()

	assert.Empty(t, notifier.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotifyFailureDoesNotFailPromotion(t *testing.T) {
	sweeper, mock, notifier := newSweeper(t)
	notifier.err = errors.New("slack is down")
	initiated := time.Now().Add(-30 * time.Minute)

	mock.ExpectQuery("SELECT e.id, e.team_id").
		WillReturnRows(overdueRows().AddRow("ev-1", "team-1", "eng", "ws-1", "#ops", initiated))
	mock.ExpectExec("UPDATE escalation_events").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_log").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT e.id, e.workspace_id").WillReturnRows(ctoRows("cto-1", "Grace"))

	sweeper.Tick()

	// Delivery failed but the promotion is durable; the event will not be
	// picked up again by the next scan.
	require.Len(t, notifier.calls, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
