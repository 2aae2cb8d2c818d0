package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/letya999/duty-bot/db"
)

// EscalationService owns the per-team incident records and the two-level
// contact chain (team lead, then workspace CTO). At most one unacknowledged
// event exists per team; acknowledgement is terminal and both timestamps are
// set-once, guarded in SQL so a sweep tick can never double-fire.
type EscalationService struct {
	PG    *sql.DB
	Audit *AuditService
}

func NewEscalationService(pg *sql.DB, audit *AuditService) *EscalationService {
	return &EscalationService{PG: pg, Audit: audit}
}

// GetActiveEscalation returns the unacknowledged event for a team, or nil.
// If bad data ever yields several active rows, the most recent one wins.
func (s *EscalationService) GetActiveEscalation(teamID string) (*db.EscalationEvent, error) {
	var ev db.EscalationEvent
	var acked, level2 sql.NullTime

	err := s.PG.QueryRow(`
		SELECT id, team_id, origin_channel, initiated_at, acknowledged_at, escalated_to_level2_at, created_at
		FROM escalation_events
		WHERE team_id = $1 AND acknowledged_at IS NULL
		ORDER BY initiated_at DESC
		LIMIT 1
	`, teamID).Scan(
		&ev.ID, &ev.TeamID, &ev.OriginChannel, &ev.InitiatedAt, &acked, &level2, &ev.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active escalation: %w", err)
	}
	if acked.Valid {
		ev.AcknowledgedAt = &acked.Time
	}
	if level2.Valid {
		ev.EscalatedToLevel2At = &level2.Time
	}

	return &ev, nil
}

// GetEvent loads one escalation event by id.
func (s *EscalationService) GetEvent(eventID string) (db.EscalationEvent, error) {
	var ev db.EscalationEvent
	var acked, level2 sql.NullTime

	err := s.PG.QueryRow(`
		SELECT id, team_id, origin_channel, initiated_at, acknowledged_at, escalated_to_level2_at, created_at
		FROM escalation_events
		WHERE id = $1
	`, eventID).Scan(
		&ev.ID, &ev.TeamID, &ev.OriginChannel, &ev.InitiatedAt, &acked, &level2, &ev.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return ev, NewUserError("escalation event not found: %s", eventID)
		}
		return ev, fmt.Errorf("failed to get escalation event: %w", err)
	}
	if acked.Valid {
		ev.AcknowledgedAt = &acked.Time
	}
	if level2.Valid {
		ev.EscalatedToLevel2At = &level2.Time
	}

	return ev, nil
}

// CreateEscalationEvent starts an incident for a team. When an active event
// already exists it is reused instead of spawning a second concurrent timer.
func (s *EscalationService) CreateEscalationEvent(teamID, originChannel string) (db.CreateEscalationResponse, error) {
	var resp db.CreateEscalationResponse

	active, err := s.GetActiveEscalation(teamID)
	if err != nil {
		return resp, err
	}
	if active != nil {
		resp.Event = *active
		resp.Reused = true
		return resp, nil
	}

	ev := db.EscalationEvent{
		ID:            uuid.New().String(),
		TeamID:        teamID,
		OriginChannel: originChannel,
		InitiatedAt:   time.Now(),
		CreatedAt:     time.Now(),
	}
	_, err = s.PG.Exec(`
		INSERT INTO escalation_events (id, team_id, origin_channel, initiated_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, ev.ID, ev.TeamID, ev.OriginChannel, ev.InitiatedAt, ev.CreatedAt)
	if err != nil {
		return resp, fmt.Errorf("failed to create escalation event: %w", err)
	}

	resp.Event = ev
	return resp, nil
}

// AcknowledgeEscalation sets acknowledged_at exactly once. A second call is a
// recoverable user error; the stored timestamp is never overwritten.
func (s *EscalationService) AcknowledgeEscalation(eventID string) (db.EscalationEvent, error) {
	result, err := s.PG.Exec(`
		UPDATE escalation_events
		SET acknowledged_at = NOW()
		WHERE id = $1 AND acknowledged_at IS NULL
	`, eventID)
	if err != nil {
		return db.EscalationEvent{}, fmt.Errorf("failed to acknowledge escalation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return db.EscalationEvent{}, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		ev, gerr := s.GetEvent(eventID)
		if gerr != nil {
			return db.EscalationEvent{}, gerr
		}
		if ev.AcknowledgedAt != nil {
			return ev, NewUserError("escalation %s is already acknowledged", eventID)
		}
		return ev, fmt.Errorf("failed to acknowledge escalation %s", eventID)
	}

	return s.GetEvent(eventID)
}

// EscalateToLevel2 marks the level-2 promotion exactly once. Returns whether
// this call performed the promotion, so the sweep notifies at most once per
// event even across ticks.
func (s *EscalationService) EscalateToLevel2(eventID string) (bool, error) {
	result, err := s.PG.Exec(`
		UPDATE escalation_events
		SET escalated_to_level2_at = NOW()
		WHERE id = $1 AND escalated_to_level2_at IS NULL AND acknowledged_at IS NULL
	`, eventID)
	if err != nil {
		return false, fmt.Errorf("failed to escalate to level 2: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// SetGlobalCTO registers the workspace-wide level-2 contact. Older rows are
// kept; lookups take the most recent one.
func (s *EscalationService) SetGlobalCTO(workspaceID, personID string) (db.EscalationContact, error) {
	contact := db.EscalationContact{
		ID:          uuid.New().String(),
		WorkspaceID: workspaceID,
		PersonID:    personID,
		CreatedAt:   time.Now(),
	}
	_, err := s.PG.Exec(`
		INSERT INTO escalations (id, workspace_id, team_id, person_id, created_at)
		VALUES ($1, $2, NULL, $3, $4)
	`, contact.ID, contact.WorkspaceID, contact.PersonID, contact.CreatedAt)
	if err != nil {
		return contact, fmt.Errorf("failed to set global CTO: %w", err)
	}
	return contact, nil
}

// GetGlobalCTO resolves the workspace's level-2 contact, or nil when none is
// configured. Duplicate team_id IS NULL rows are a data smell the engine
// tolerates by taking the most recent match for the workspace.
func (s *EscalationService) GetGlobalCTO(workspaceID string) (*db.EscalationContact, error) {
	var contact db.EscalationContact
	var teamID sql.NullString

	err := s.PG.QueryRow(`
		SELECT e.id, e.workspace_id, e.team_id, e.person_id, e.created_at, COALESCE(p.name, '')
		FROM escalations e
		LEFT JOIN people p ON p.id = e.person_id
		WHERE e.workspace_id = $1 AND e.team_id IS NULL
		ORDER BY e.created_at DESC
		LIMIT 1
	`, workspaceID).Scan(
		&contact.ID, &contact.WorkspaceID, &teamID, &contact.PersonID, &contact.CreatedAt, &contact.PersonName,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get global CTO: %w", err)
	}
	if teamID.Valid {
		contact.TeamID = &teamID.String
	}

	return &contact, nil
}
