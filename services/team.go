package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/letya999/duty-bot/db"
)

// TeamService is the thin CRUD surface around teams. It has no scheduling
// logic; the engine services query team rows themselves where they need them.
type TeamService struct {
	PG *sql.DB
}

func NewTeamService(pg *sql.DB) *TeamService {
	return &TeamService{PG: pg}
}

// CreateTeam registers a team in a workspace. Team names are unique per
// workspace; the default assignment mode is single.
func (s *TeamService) CreateTeam(workspaceID string, req db.CreateTeamRequest) (db.Team, error) {
	team := db.Team{
		ID:             uuid.New().String(),
		WorkspaceID:    workspaceID,
		Name:           req.Name,
		DisplayName:    req.DisplayName,
		AssignmentMode: req.AssignmentMode,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if team.DisplayName == "" {
		team.DisplayName = team.Name
	}
	if team.AssignmentMode == "" {
		team.AssignmentMode = db.ModeSingle
	}
	if team.AssignmentMode != db.ModeSingle && team.AssignmentMode != db.ModeMulti {
		return team, NewUserError("assignment mode must be %q or %q", db.ModeSingle, db.ModeMulti)
	}

	_, err := s.PG.Exec(`
		INSERT INTO teams (id, workspace_id, name, display_name, assignment_mode, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, team.ID, team.WorkspaceID, team.Name, team.DisplayName, team.AssignmentMode,
		team.CreatedAt, team.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return team, NewUserError("team %s already exists in this workspace", team.Name)
		}
		return team, fmt.Errorf("failed to create team: %w", err)
	}

	return team, nil
}

// GetTeam loads one team with its lead's name attached.
func (s *TeamService) GetTeam(teamID string) (db.Team, error) {
	var team db.Team
	var lead sql.NullString
	var leadName sql.NullString

	err := s.PG.QueryRow(`
		SELECT t.id, t.workspace_id, t.name, t.display_name, t.assignment_mode,
		       t.lead_person_id, t.created_at, t.updated_at, p.name
		FROM teams t
		LEFT JOIN people p ON p.id = t.lead_person_id
		WHERE t.id = $1
	`, teamID).Scan(
		&team.ID, &team.WorkspaceID, &team.Name, &team.DisplayName, &team.AssignmentMode,
		&lead, &team.CreatedAt, &team.UpdatedAt, &leadName,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return team, NewUserError("team not found: %s", teamID)
		}
		return team, fmt.Errorf("failed to get team: %w", err)
	}
	if lead.Valid {
		team.LeadPersonID = &lead.String
	}
	if leadName.Valid {
		team.LeadName = leadName.String
	}

	return team, nil
}

// ListTeams returns every team in a workspace.
func (s *TeamService) ListTeams(workspaceID string) ([]db.Team, error) {
	rows, err := s.PG.Query(`
		SELECT t.id, t.workspace_id, t.name, t.display_name, t.assignment_mode,
		       t.lead_person_id, t.created_at, t.updated_at
		FROM teams t
		WHERE t.workspace_id = $1
		ORDER BY t.name
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	var teams []db.Team
	for rows.Next() {
		var team db.Team
		var lead sql.NullString
		err := rows.Scan(&team.ID, &team.WorkspaceID, &team.Name, &team.DisplayName,
			&team.AssignmentMode, &lead, &team.CreatedAt, &team.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		if lead.Valid {
			team.LeadPersonID = &lead.String
		}
		teams = append(teams, team)
	}
	return teams, rows.Err()
}

// UpdateTeam changes the display name.
func (s *TeamService) UpdateTeam(teamID string, req db.UpdateTeamRequest) (db.Team, error) {
	if req.DisplayName != nil {
		_, err := s.PG.Exec(`
			UPDATE teams SET display_name = $2, updated_at = NOW() WHERE id = $1
		`, teamID, *req.DisplayName)
		if err != nil {
			return db.Team{}, fmt.Errorf("failed to update team: %w", err)
		}
	}
	return s.GetTeam(teamID)
}

// SetTeamLead stores the level-1 escalation contact directly on the team.
func (s *TeamService) SetTeamLead(teamID, personID string) (db.Team, error) {
	result, err := s.PG.Exec(`
		UPDATE teams SET lead_person_id = $2, updated_at = NOW() WHERE id = $1
	`, teamID, personID)
	if err != nil {
		return db.Team{}, fmt.Errorf("failed to set team lead: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return db.Team{}, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return db.Team{}, NewUserError("team not found: %s", teamID)
	}
	return s.GetTeam(teamID)
}

// SetAssignmentMode switches a team between single and multi. Existing
// assignment rows are NOT migrated; history written under the old mode keeps
// its shape.
func (s *TeamService) SetAssignmentMode(teamID, mode string) (db.Team, error) {
	if mode != db.ModeSingle && mode != db.ModeMulti {
		return db.Team{}, NewUserError("assignment mode must be %q or %q", db.ModeSingle, db.ModeMulti)
	}

	result, err := s.PG.Exec(`
		UPDATE teams SET assignment_mode = $2, updated_at = NOW() WHERE id = $1
	`, teamID, mode)
	if err != nil {
		return db.Team{}, fmt.Errorf("failed to set assignment mode: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return db.Team{}, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return db.Team{}, NewUserError("team not found: %s", teamID)
	}
	return s.GetTeam(teamID)
}

// DeleteTeam removes the team and cascades to its assignments, rotation
// config and escalation events (enforced by the schema's foreign keys).
func (s *TeamService) DeleteTeam(teamID string) error {
	result, err := s.PG.Exec(`DELETE FROM teams WHERE id = $1`, teamID)
	if err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return NewUserError("team not found: %s", teamID)
	}
	return nil
}
