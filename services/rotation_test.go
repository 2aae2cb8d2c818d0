package services

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letya999/duty-bot/db"
	"github.com/letya999/duty-bot/internal/lock"
)

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func TestNextPerson(t *testing.T) {
	assigned := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		cfg  *db.RotationConfig
		want string
	}{
		{
			name: "no config",
			cfg:  nil,
			want: "",
		},
		{
			name: "disabled",
			cfg:  &db.RotationConfig{Enabled: false, MemberOrder: []string{"alice"}},
			want: "",
		},
		{
			name: "empty member list",
			cfg:  &db.RotationConfig{Enabled: true, MemberOrder: []string{}},
			want: "",
		},
		{
			name: "seeded but never assigned picks the seed",
			cfg: &db.RotationConfig{
				Enabled:              true,
				MemberOrder:          []string{"alice", "bob", "carol"},
				LastAssignedPersonID: strPtr("alice"),
			},
			want: "alice",
		},
		{
			name: "advances one position",
			cfg: &db.RotationConfig{
				Enabled:              true,
				MemberOrder:          []string{"alice", "bob", "carol"},
				LastAssignedPersonID: strPtr("bob"),
				LastAssignedDate:     timePtr(assigned),
			},
			want: "carol",
		},
		{
			name: "wraps around",
			cfg: &db.RotationConfig{
				Enabled:              true,
				MemberOrder:          []string{"alice", "bob", "carol"},
				LastAssignedPersonID: strPtr("carol"),
				LastAssignedDate:     timePtr(assigned),
			},
			want: "alice",
		},
		{
			name: "removed member resets to first",
			cfg: &db.RotationConfig{
				Enabled:              true,
				MemberOrder:          []string{"alice", "bob", "carol"},
				LastAssignedPersonID: strPtr("dave"),
				LastAssignedDate:     timePtr(assigned),
			},
			want: "alice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextPerson(tt.cfg))
		})
	}
}

func newRotationService(t *testing.T) (*RotationService, sqlmock.Sqlmock) {
	t.Helper()
	pg, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { pg.Close() })

	audit := NewAuditService(pg)
	conflicts := NewConflictService(pg)
	assignments := NewAssignmentService(pg, conflicts, audit, time.UTC)
	return NewRotationService(pg, assignments, audit, lock.New(nil)), mock
}

func teamRow(id, mode string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "workspace_id", "name", "display_name", "assignment_mode",
		"lead_person_id", "created_at", "updated_at",
	}).AddRow(id, "ws-1", "eng", "Engineering", mode, nil, time.Now(), time.Now())
}

func rotationConfigRow(teamID string, enabled bool, memberOrder string, last interface{}, lastDate interface{}) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"team_id", "enabled", "member_order", "last_assigned_person_id", "last_assigned_date",
		"created_at", "updated_at",
	}).AddRow(teamID, enabled, memberOrder, last, lastDate, time.Now(), time.Now())
}

func TestEnableRotationCreatesConfig(t *testing.T) {
	svc, mock := newRotationService(t)

	mock.ExpectQuery("SELECT id, workspace_id").WillReturnRows(teamRow("team-1", db.ModeSingle))
	mock.ExpectQuery("SELECT team_id, enabled").WillReturnRows(sqlmock.NewRows([]string{"team_id"}))
	mock.ExpectExec("INSERT INTO rotation_configs").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT team_id, enabled").
		WillReturnRows(rotationConfigRow("team-1", true, `["alice","bob"]`, "alice", nil))

	cfg, err := svc.EnableRotation("team-1", []string{"alice", "bob", "alice"})
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, []string{"alice", "bob"}, cfg.MemberOrder)
	require.NotNil(t, cfg.LastAssignedPersonID)
	assert.Equal(t, "alice", *cfg.LastAssignedPersonID)
	assert.Nil(t, cfg.LastAssignedDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnableRotationPreservesCursor(t *testing.T) {
	svc, mock := newRotationService(t)
	assigned := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT id, workspace_id").WillReturnRows(teamRow("team-1", db.ModeSingle))
	mock.ExpectQuery("SELECT team_id, enabled").
		WillReturnRows(rotationConfigRow("team-1", false, `["alice","bob"]`, "bob", assigned))
	// Re-enable rewrites the member order only; the cursor columns stay.
	mock.ExpectExec("UPDATE rotation_configs").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT team_id, enabled").
		WillReturnRows(rotationConfigRow("team-1", true, `["alice","bob","carol"]`, "bob", assigned))

	cfg, err := svc.EnableRotation("team-1", []string{"alice", "bob", "carol"})
	require.NoError(t, err)
	require.NotNil(t, cfg.LastAssignedPersonID)
	assert.Equal(t, "bob", *cfg.LastAssignedPersonID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignRotationDisabled(t *testing.T) {
	svc, mock := newRotationService(t)

	mock.ExpectQuery("SELECT id, workspace_id").WillReturnRows(teamRow("team-1", db.ModeSingle))
	mock.ExpectQuery("SELECT team_id, enabled").
		WillReturnRows(rotationConfigRow("team-1", false, `["alice"]`, "alice", nil))

	_, err := svc.AssignRotation("team-1", time.Date(2030, 3, 4, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.True(t, IsUserError(err))
	assert.Contains(t, err.Error(), "disabled")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignRotationAdvancesCursor(t *testing.T) {
	svc, mock := newRotationService(t)
	date := time.Date(2030, 3, 5, 0, 0, 0, 0, time.UTC)
	assigned := time.Date(2030, 3, 4, 0, 0, 0, 0, time.UTC)

	// Team lookup, config snapshot: cursor sits on alice with history, so bob
	// is next.
	mock.ExpectQuery("SELECT id, workspace_id").WillReturnRows(teamRow("team-1", db.ModeSingle))
	mock.ExpectQuery("SELECT team_id, enabled").
		WillReturnRows(rotationConfigRow("team-1", true, `["alice","bob","carol"]`, "alice", assigned))

	// ClearAssignment: team lookup + whole-day delete.
	mock.ExpectQuery("SELECT id, workspace_id").WillReturnRows(teamRow("team-1", db.ModeSingle))
	mock.ExpectExec("DELETE FROM assignments").WillReturnResult(sqlmock.NewResult(0, 1))

	// SetAssignment (forced): team lookup, conflict scan, in-place update
	// misses, insert lands.
	mock.ExpectQuery("SELECT id, workspace_id").WillReturnRows(teamRow("team-1", db.ModeSingle))
	mock.ExpectQuery("SELECT a.team_id, t.name").
		WillReturnRows(sqlmock.NewRows([]string{"team_id"}))
	mock.ExpectQuery("UPDATE assignments").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec("INSERT INTO assignments").WillReturnResult(sqlmock.NewResult(0, 1))

	// Cursor compare-and-swap, then the audit entry.
	mock.ExpectExec("UPDATE rotation_configs").
		WithArgs("team-1", "bob", date.Format(db.DateLayout), "alice").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_log").WillReturnResult(sqlmock.NewResult(0, 1))

	resp, err := svc.AssignRotation("team-1", date)
	require.NoError(t, err)
	assert.Equal(t, "bob", resp.PersonID)
	require.NotNil(t, resp.Assignment)
	assert.Equal(t, "bob", resp.Assignment.PersonID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
