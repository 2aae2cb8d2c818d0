package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/samber/lo"

	"github.com/letya999/duty-bot/db"
	"github.com/letya999/duty-bot/internal/lock"
)

// RotationService drives round-robin duty selection per team. The cursor
// (last assigned person and date) is persisted in rotation_configs and
// survives disable/re-enable; the assign path is serialized per team with an
// advisory lock, and the cursor write itself is a compare-and-swap.
type RotationService struct {
	PG          *sql.DB
	Assignments *AssignmentService
	Audit       *AuditService
	Locker      *lock.Locker
}

func NewRotationService(pg *sql.DB, assignments *AssignmentService, audit *AuditService, locker *lock.Locker) *RotationService {
	return &RotationService{PG: pg, Assignments: assignments, Audit: audit, Locker: locker}
}

// GetConfig loads the rotation config for a team, or nil when rotation was
// never enabled.
func (s *RotationService) GetConfig(teamID string) (*db.RotationConfig, error) {
	var cfg db.RotationConfig
	var memberOrderJSON string
	var lastPerson sql.NullString
	var lastDate sql.NullTime

	err := s.PG.QueryRow(`
		SELECT team_id, enabled, member_order::text, last_assigned_person_id, last_assigned_date,
		       created_at, updated_at
		FROM rotation_configs
		WHERE team_id = $1
	`, teamID).Scan(
		&cfg.TeamID, &cfg.Enabled, &memberOrderJSON, &lastPerson, &lastDate,
		&cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get rotation config: %w", err)
	}

	if err := json.Unmarshal([]byte(memberOrderJSON), &cfg.MemberOrder); err != nil {
		return nil, fmt.Errorf("failed to parse member order: %w", err)
	}
	if lastPerson.Valid {
		cfg.LastAssignedPersonID = &lastPerson.String
	}
	if lastDate.Valid {
		cfg.LastAssignedDate = &lastDate.Time
	}

	return &cfg, nil
}

// EnableRotation creates or re-enables the rotation for a team. On first
// enable the cursor is seeded with the first member and no history; on
// re-enable the member order is replaced but an existing cursor is preserved
// so the rotation continues where it left off.
func (s *RotationService) EnableRotation(teamID string, memberOrder []string) (db.RotationConfig, error) {
	if _, err := s.Assignments.GetTeam(teamID); err != nil {
		return db.RotationConfig{}, err
	}

	memberOrder = lo.Uniq(memberOrder)
	memberOrderJSON, err := json.Marshal(memberOrder)
	if err != nil {
		return db.RotationConfig{}, fmt.Errorf("failed to marshal member order: %w", err)
	}

	existing, err := s.GetConfig(teamID)
	if err != nil {
		return db.RotationConfig{}, err
	}

	if existing == nil {
		var seed interface{}
		if len(memberOrder) > 0 {
			seed = memberOrder[0]
		}
		_, err = s.PG.Exec(`
			INSERT INTO rotation_configs (team_id, enabled, member_order, last_assigned_person_id, last_assigned_date, created_at, updated_at)
			VALUES ($1, true, $2, $3, NULL, NOW(), NOW())
		`, teamID, string(memberOrderJSON), seed)
		if err != nil {
			return db.RotationConfig{}, fmt.Errorf("failed to create rotation config: %w", err)
		}
	} else {
		_, err = s.PG.Exec(`
			UPDATE rotation_configs
			SET enabled = true, member_order = $2, updated_at = NOW()
			WHERE team_id = $1
		`, teamID, string(memberOrderJSON))
		if err != nil {
			return db.RotationConfig{}, fmt.Errorf("failed to update rotation config: %w", err)
		}
	}

	cfg, err := s.GetConfig(teamID)
	if err != nil {
		return db.RotationConfig{}, err
	}
	if cfg == nil {
		return db.RotationConfig{}, fmt.Errorf("rotation config missing after enable")
	}
	return *cfg, nil
}

// DisableRotation turns rotation off. The config and cursor are retained for
// a later re-enable.
func (s *RotationService) DisableRotation(teamID string) error {
	result, err := s.PG.Exec(`
		UPDATE rotation_configs SET enabled = false, updated_at = NOW() WHERE team_id = $1
	`, teamID)
	if err != nil {
		return fmt.Errorf("failed to disable rotation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return NewUserError("rotation was never enabled for team %s", teamID)
	}
	return nil
}

// GetNextPerson computes who rotation would pick next without assigning.
// Returns empty when rotation is disabled or the member list is empty.
func (s *RotationService) GetNextPerson(teamID string) (string, error) {
	cfg, err := s.GetConfig(teamID)
	if err != nil {
		return "", err
	}
	return nextPerson(cfg), nil
}

// nextPerson applies the round-robin rule to a config snapshot. With no
// assignment history the seeded cursor person goes first; afterwards the
// cursor advances one position with wrap-around, and a cursor pointing at a
// removed member restarts from the first element.
func nextPerson(cfg *db.RotationConfig) string {
	if cfg == nil || !cfg.Enabled || len(cfg.MemberOrder) == 0 {
		return ""
	}
	if cfg.LastAssignedPersonID == nil {
		return cfg.MemberOrder[0]
	}

	last := *cfg.LastAssignedPersonID
	if cfg.LastAssignedDate == nil {
		// Seeded but never assigned: the seeded person goes first.
		if lo.Contains(cfg.MemberOrder, last) {
			return last
		}
		return cfg.MemberOrder[0]
	}

	_, idx, found := lo.FindIndexOf(cfg.MemberOrder, func(m string) bool { return m == last })
	if !found {
		return cfg.MemberOrder[0]
	}
	return cfg.MemberOrder[(idx+1)%len(cfg.MemberOrder)]
}

// AssignRotation picks the next person and writes the assignment for the
// date, replacing whatever was scheduled for that team/date — rotation always
// wins over a prior manual assignment. It deliberately skips cross-team
// conflict detection, matching the chat bot's long-standing behavior; the
// audit trail is how operators notice the silent overlap.
func (s *RotationService) AssignRotation(teamID string, date time.Time) (db.AssignRotationResponse, error) {
	var resp db.AssignRotationResponse

	team, err := s.Assignments.GetTeam(teamID)
	if err != nil {
		return resp, err
	}

	release, err := s.Locker.Acquire(context.Background(), "rotation:"+teamID, 3*time.Second)
	if err != nil {
		return resp, fmt.Errorf("failed to serialize rotation assign: %w", err)
	}
	defer release()

	cfg, err := s.GetConfig(teamID)
	if err != nil {
		return resp, err
	}
	if cfg == nil || !cfg.Enabled {
		return resp, NewUserError("rotation is disabled for team %s", team.Name)
	}
	if len(cfg.MemberOrder) == 0 {
		return resp, NewUserError("rotation member list is empty for team %s", team.Name)
	}

	person := nextPerson(cfg)

	// Rotation overwrites the day: clear whatever is there, then write.
	if _, err := s.Assignments.ClearAssignment(teamID, date); err != nil {
		return resp, err
	}
	assignment, err := s.Assignments.SetAssignment(teamID, date, person, team.AssignmentMode, true)
	if err != nil {
		return resp, err
	}

	if err := s.advanceCursor(cfg, person, date); err != nil {
		return resp, err
	}

	s.Audit.Record(team.WorkspaceID, person, "rotation.auto_assign", teamID, map[string]interface{}{
		"date": date.Format(db.DateLayout),
	})

	resp.Assignment = &assignment
	resp.PersonID = person
	resp.Message = fmt.Sprintf("%s is on duty for %s on %s", person, team.Name, date.Format(db.DateLayout))
	return resp, nil
}

// advanceCursor moves the cursor with a compare-and-swap on the previous
// person; a lost race (another writer already advanced) is logged, not fatal.
func (s *RotationService) advanceCursor(cfg *db.RotationConfig, person string, date time.Time) error {
	result, err := s.PG.Exec(`
		UPDATE rotation_configs
		SET last_assigned_person_id = $2, last_assigned_date = $3, updated_at = NOW()
		WHERE team_id = $1 AND last_assigned_person_id IS NOT DISTINCT FROM $4
	`, cfg.TeamID, person, date.Format(db.DateLayout), cfg.LastAssignedPersonID)
	if err != nil {
		return fmt.Errorf("failed to advance rotation cursor: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		log.Printf("Rotation cursor for team %s moved concurrently, leaving it as is", cfg.TeamID)
	}
	return nil
}
