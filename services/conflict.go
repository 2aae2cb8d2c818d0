package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/letya999/duty-bot/db"
)

// ConflictService answers "does this person already hold an assignment
// anywhere on this date". It returns the first match found; when a person
// somehow appears in several teams' schedules on the same day the reported
// team is whichever row the scan hits first, ordering not guaranteed.
type ConflictService struct {
	PG *sql.DB
}

func NewConflictService(pg *sql.DB) *ConflictService {
	return &ConflictService{PG: pg}
}

// FindConflict looks up an existing assignment for (person, date). A non-empty
// workspaceID scopes the scan to that workspace; an empty one checks globally.
// Returns nil when the person is free on that date.
func (s *ConflictService) FindConflict(personID string, date time.Time, workspaceID string) (*db.ConflictInfo, error) {
	query := `
		SELECT a.team_id, t.name, t.display_name, a.person_id, a.date, a.mode
		FROM assignments a
		JOIN teams t ON t.id = a.team_id
		WHERE a.person_id = $1 AND a.date = $2
		  AND ($3 = '' OR t.workspace_id = $3)
		LIMIT 1
	`

	var info db.ConflictInfo
	err := s.PG.QueryRow(query, personID, date.Format(db.DateLayout), workspaceID).Scan(
		&info.TeamID, &info.TeamName, &info.DisplayName, &info.PersonID, &info.Date, &info.Mode,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to check assignment conflict: %w", err)
	}

	return &info, nil
}
