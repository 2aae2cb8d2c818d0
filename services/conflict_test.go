package services

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letya999/duty-bot/db"
)

func newConflictService(t *testing.T) (*ConflictService, sqlmock.Sqlmock) {
	t.Helper()
	pg, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { pg.Close() })

	return NewConflictService(pg), mock
}

func TestFindConflictFree(t *testing.T) {
	svc, mock := newConflictService(t)
	date := time.Date(2030, 3, 4, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT a.team_id, t.name").
		WithArgs("alice", "2030-03-04", "").
		WillReturnRows(sqlmock.NewRows([]string{"team_id"}))

	info, err := svc.FindConflict("alice", date, "")
	require.NoError(t, err)
	assert.Nil(t, info)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindConflictBusy(t *testing.T) {
	svc, mock := newConflictService(t)
	date := time.Date(2030, 3, 4, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT a.team_id, t.name").
		WithArgs("alice", "2030-03-04", "ws-1").
		WillReturnRows(conflictRow("team-1", "platform", "alice", date, db.ModeSingle))

	info, err := svc.FindConflict("alice", date, "ws-1")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "team-1", info.TeamID)
	assert.Equal(t, "platform", info.TeamName)
	assert.Equal(t, db.ModeSingle, info.Mode)
	assert.NoError(t, mock.ExpectationsWereMet())
}
