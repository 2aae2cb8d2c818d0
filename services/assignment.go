package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/letya999/duty-bot/db"
)

// AssignmentService owns the per-(team, date) duty records. Application-level
// checks are a fast path only; the partial unique index on single-mode rows
// and the (team, date, person) constraint are the correctness guarantee, and
// constraint hits are converted to ConflictError at the write boundary.
type AssignmentService struct {
	PG        *sql.DB
	Conflicts *ConflictService
	Audit     *AuditService
	Location  *time.Location

	calendar      CalendarSync
	calendarGrace time.Duration
}

func NewAssignmentService(pg *sql.DB, conflicts *ConflictService, audit *AuditService, loc *time.Location) *AssignmentService {
	if loc == nil {
		loc = time.UTC
	}
	return &AssignmentService{
		PG:            pg,
		Conflicts:     conflicts,
		Audit:         audit,
		Location:      loc,
		calendarGrace: 10 * time.Second,
	}
}

// SetCalendarSync wires the optional one-way calendar export. Sync failures
// never roll back assignment writes.
func (s *AssignmentService) SetCalendarSync(sync CalendarSync) {
	s.calendar = sync
}

// today returns the current calendar date in the configured timezone.
func (s *AssignmentService) today() time.Time {
	now := time.Now().In(s.Location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// GetTeam loads a team row. A missing team is fatal to the caller.
func (s *AssignmentService) GetTeam(teamID string) (db.Team, error) {
	var team db.Team
	var lead sql.NullString

	err := s.PG.QueryRow(`
		SELECT id, workspace_id, name, display_name, assignment_mode, lead_person_id, created_at, updated_at
		FROM teams
		WHERE id = $1
	`, teamID).Scan(
		&team.ID, &team.WorkspaceID, &team.Name, &team.DisplayName,
		&team.AssignmentMode, &lead, &team.CreatedAt, &team.UpdatedAt,
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

	return team, nil
}

// SetAssignment writes one duty record for (team, date, person). An empty
// mode defaults to the team's configured mode; a mismatching mode is rejected
// unless force. Dates strictly before today (configured timezone) are
// rejected unless force. In single mode the existing row for the date is
// overwritten in place; in multi mode re-adding the same person is a no-op.
func (s *AssignmentService) SetAssignment(teamID string, date time.Time, personID, mode string, force bool) (db.Assignment, error) {
	var out db.Assignment

	team, err := s.GetTeam(teamID)
	if err != nil {
		return out, err
	}

	if mode == "" {
		mode = team.AssignmentMode
	}
	if mode != team.AssignmentMode && !force {
		return out, NewUserError("team %s is configured for %s assignments, got %s; pass force to override",
			team.Name, team.AssignmentMode, mode)
	}

	if date.Before(s.today()) && !force {
		return out, NewUserError("date %s is in the past; pass force to assign anyway", date.Format(db.DateLayout))
	}

	// Conflicts in other teams of the same workspace block the write unless
	// forced. An existing row in this same team is the replace/no-op path
	// below, not a conflict.
	conflict, err := s.Conflicts.FindConflict(personID, date, team.WorkspaceID)
	if err != nil {
		return out, err
	}
	if conflict != nil && conflict.TeamID != teamID {
		if !force {
			return out, NewConflictError(*conflict)
		}
		s.Audit.Record(team.WorkspaceID, personID, "assignment.force_override", teamID, map[string]interface{}{
			"date":             date.Format(db.DateLayout),
			"conflicting_team": conflict.TeamID,
		})
	}

	switch mode {
	case db.ModeSingle:
		out, err = s.writeSingle(team, date, personID)
	case db.ModeMulti:
		out, err = s.writeMulti(team, date, personID)
	default:
		return out, NewUserError("unknown assignment mode: %s", mode)
	}
	if err != nil {
		return out, err
	}

	s.syncCalendar(out)
	return out, nil
}

// writeSingle overwrites the unique row for (team, date) in place, creating
// it when absent. The partial unique index backs up the check-then-write.
func (s *AssignmentService) writeSingle(team db.Team, date time.Time, personID string) (db.Assignment, error) {
	var out db.Assignment
	dateStr := date.Format(db.DateLayout)

	err := s.PG.QueryRow(`
		UPDATE assignments
		SET person_id = $1, updated_at = NOW()
		WHERE team_id = $2 AND date = $3 AND mode = $4
		RETURNING id, team_id, date, person_id, mode, created_at, updated_at
	`, personID, team.ID, dateStr, db.ModeSingle).Scan(
		&out.ID, &out.TeamID, &out.Date, &out.PersonID, &out.Mode, &out.CreatedAt, &out.UpdatedAt,
	)
	if err == nil {
		return out, nil
	}
	if err != sql.ErrNoRows {
		return out, fmt.Errorf("failed to update assignment: %w", err)
	}

	out = db.Assignment{
		ID:        uuid.New().String(),
		TeamID:    team.ID,
		Date:      date,
		PersonID:  personID,
		Mode:      db.ModeSingle,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	_, err = s.PG.Exec(`
		INSERT INTO assignments (id, team_id, date, person_id, mode, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, out.ID, out.TeamID, dateStr, out.PersonID, out.Mode, out.CreatedAt, out.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			// A concurrent writer took the slot between our UPDATE and INSERT.
			return out, NewConflictError(db.ConflictInfo{
				TeamID:      team.ID,
				TeamName:    team.Name,
				DisplayName: team.DisplayName,
				PersonID:    personID,
				Date:        date,
				Mode:        db.ModeSingle,
			})
		}
		return out, fmt.Errorf("failed to insert assignment: %w", err)
	}

	return out, nil
}

// writeMulti appends one row per distinct person; re-adding the same person
// returns the existing row unchanged.
func (s *AssignmentService) writeMulti(team db.Team, date time.Time, personID string) (db.Assignment, error) {
	dateStr := date.Format(db.DateLayout)

	existing, err := s.findRow(team.ID, dateStr, personID)
	if err != nil {
		return db.Assignment{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	out := db.Assignment{
		ID:        uuid.New().String(),
		TeamID:    team.ID,
		Date:      date,
		PersonID:  personID,
		Mode:      db.ModeMulti,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	_, err = s.PG.Exec(`
		INSERT INTO assignments (id, team_id, date, person_id, mode, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, out.ID, out.TeamID, dateStr, out.PersonID, out.Mode, out.CreatedAt, out.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			// Lost a race against an identical insert; still a no-op.
			existing, ferr := s.findRow(team.ID, dateStr, personID)
			if ferr == nil && existing != nil {
				return *existing, nil
			}
			return out, NewConflictError(db.ConflictInfo{
				TeamID: team.ID, TeamName: team.Name, DisplayName: team.DisplayName,
				PersonID: personID, Date: date, Mode: db.ModeMulti,
			})
		}
		return out, fmt.Errorf("failed to insert assignment: %w", err)
	}

	return out, nil
}

func (s *AssignmentService) findRow(teamID, dateStr, personID string) (*db.Assignment, error) {
	var row db.Assignment
	err := s.PG.QueryRow(`
		SELECT id, team_id, date, person_id, mode, created_at, updated_at
		FROM assignments
		WHERE team_id = $1 AND date = $2 AND person_id = $3
	`, teamID, dateStr, personID).Scan(
		&row.ID, &row.TeamID, &row.Date, &row.PersonID, &row.Mode, &row.CreatedAt, &row.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up assignment: %w", err)
	}
	return &row, nil
}

// ClearAssignment deletes every row for (team, date) regardless of mode, so
// clearing a multi-mode day removes the whole shift. Returns whether anything
// was deleted.
func (s *AssignmentService) ClearAssignment(teamID string, date time.Time) (bool, error) {
	if _, err := s.GetTeam(teamID); err != nil {
		return false, err
	}

	result, err := s.PG.Exec(`
		DELETE FROM assignments WHERE team_id = $1 AND date = $2
	`, teamID, date.Format(db.DateLayout))
	if err != nil {
		return false, fmt.Errorf("failed to clear assignments: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// GetAssignments returns zero, one (single mode) or many (multi mode) rows
// for the date, with person names attached.
func (s *AssignmentService) GetAssignments(teamID string, date time.Time) ([]db.Assignment, error) {
	return s.queryAssignments(`
		SELECT a.id, a.team_id, a.date, a.person_id, a.mode, a.created_at, a.updated_at,
		       COALESCE(p.name, '')
		FROM assignments a
		LEFT JOIN people p ON p.id = a.person_id
		WHERE a.team_id = $1 AND a.date = $2
		ORDER BY a.person_id
	`, teamID, date.Format(db.DateLayout))
}

// ListRange returns all rows in the inclusive date range, ascending by date.
func (s *AssignmentService) ListRange(teamID string, start, end time.Time) ([]db.Assignment, error) {
	return s.queryAssignments(`
		SELECT a.id, a.team_id, a.date, a.person_id, a.mode, a.created_at, a.updated_at,
		       COALESCE(p.name, '')
		FROM assignments a
		LEFT JOIN people p ON p.id = a.person_id
		WHERE a.team_id = $1 AND a.date BETWEEN $2 AND $3
		ORDER BY a.date ASC, a.person_id
	`, teamID, start.Format(db.DateLayout), end.Format(db.DateLayout))
}

func (s *AssignmentService) queryAssignments(query string, args ...interface{}) ([]db.Assignment, error) {
	rows, err := s.PG.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var out []db.Assignment
	for rows.Next() {
		var a db.Assignment
		err := rows.Scan(&a.ID, &a.TeamID, &a.Date, &a.PersonID, &a.Mode,
			&a.CreatedAt, &a.UpdatedAt, &a.PersonName)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SetRange assigns one person to every day in [start, end]. Conflicts for the
// whole range are collected first; without force any conflict aborts before
// anything is written. The write loop then commits per day, so a failure
// partway leaves earlier days in place and the result reports the partial
// progress.
func (s *AssignmentService) SetRange(teamID string, start, end time.Time, personID string, force bool) (db.RangeResult, error) {
	var result db.RangeResult

	team, err := s.GetTeam(teamID)
	if err != nil {
		return result, err
	}
	if end.Before(start) {
		return result, NewUserError("end date %s is before start date %s",
			end.Format(db.DateLayout), start.Format(db.DateLayout))
	}

	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	result.DaysRequested = len(days)

	for _, d := range days {
		conflict, err := s.Conflicts.FindConflict(personID, d, team.WorkspaceID)
		if err != nil {
			return result, err
		}
		if conflict != nil && conflict.TeamID != teamID {
			result.Conflicts = append(result.Conflicts, *conflict)
		}
	}
	if len(result.Conflicts) > 0 && !force {
		summary := lo.Map(result.Conflicts, func(c db.ConflictInfo, _ int) string {
			return c.Date.Format(db.DateLayout)
		})
		return result, NewUserError("%d conflicting days (%v); pass force to override",
			len(result.Conflicts), summary)
	}

	for _, d := range days {
		a, err := s.SetAssignment(teamID, d, personID, team.AssignmentMode, force)
		if err != nil {
			return result, err
		}
		result.Assignments = append(result.Assignments, a)
		result.DaysWritten++
	}

	return result, nil
}

// syncCalendar mirrors the write into the external calendar, fire-and-forget.
func (s *AssignmentService) syncCalendar(a db.Assignment) {
	if s.calendar == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.calendarGrace)
		defer cancel()
		if err := s.calendar.SyncAssignment(ctx, a); err != nil {
			log.Printf("Calendar sync failed for assignment %s: %v", a.ID, err)
		}
	}()
}
