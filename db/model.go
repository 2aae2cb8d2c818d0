package db

import "time"

// DateLayout is the wire format for calendar dates. Assignments are plain
// calendar dates in the workspace's configured timezone, never instants.
const DateLayout = "2006-01-02"

// Assignment modes. A team is configured for exactly one of them.
const (
	ModeSingle = "single" // one person holds the duty for a date
	ModeMulti  = "multi"  // a set of people share a shift on a date
)

// ===========================
// TENANCY MODELS
// ===========================

// Workspace is the multi-tenant isolation boundary. Every other entity
// belongs to exactly one workspace.
type Workspace struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Person is a member of a workspace who can be assigned duty.
type Person struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	Name        string    `json:"name"`
	Handle      string    `json:"handle,omitempty"` // chat platform handle, e.g. @alice
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ===========================
// TEAM MODELS
// ===========================

// Team groups people that share a duty schedule. AssignmentMode decides the
// record shape for its assignments; switching the mode does not migrate
// existing rows.
type Team struct {
	ID             string    `json:"id"`
	WorkspaceID    string    `json:"workspace_id"`
	Name           string    `json:"name"`
	DisplayName    string    `json:"display_name"`
	AssignmentMode string    `json:"assignment_mode"` // single | multi
	LeadPersonID   *string   `json:"lead_person_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Populated via JOINs for API responses
	LeadName string `json:"lead_name,omitempty"`
}

type CreateTeamRequest struct {
	Name           string `json:"name" binding:"required"`
	DisplayName    string `json:"display_name"`
	AssignmentMode string `json:"assignment_mode"`
}

type UpdateTeamRequest struct {
	DisplayName *string `json:"display_name,omitempty"`
}

type SetTeamLeadRequest struct {
	PersonID string `json:"person_id" binding:"required"`
}

type SetAssignmentModeRequest struct {
	AssignmentMode string `json:"assignment_mode" binding:"required"`
}

// ===========================
// ASSIGNMENT MODELS
// ===========================

// Assignment is one (team, date, person) duty record. Under single mode at
// most one row exists per (team, date); under multi mode one row per person.
type Assignment struct {
	ID        string    `json:"id"`
	TeamID    string    `json:"team_id"`
	Date      time.Time `json:"date"`
	PersonID  string    `json:"person_id"`
	Mode      string    `json:"mode"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Populated via JOINs for API responses
	PersonName string `json:"person_name,omitempty"`
	TeamName   string `json:"team_name,omitempty"`
}

type SetAssignmentRequest struct {
	Date     string `json:"date" binding:"required"` // YYYY-MM-DD
	PersonID string `json:"person_id" binding:"required"`
	Force    bool   `json:"force"`
}

type SetRangeRequest struct {
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date" binding:"required"`
	PersonID  string `json:"person_id" binding:"required"`
	Force     bool   `json:"force"`
}

// RangeResult reports partial progress of a day-by-day range write. Range
// writes commit per day and are not atomic across the range.
type RangeResult struct {
	DaysRequested int            `json:"days_requested"`
	DaysWritten   int            `json:"days_written"`
	Assignments   []Assignment   `json:"assignments,omitempty"`
	Conflicts     []ConflictInfo `json:"conflicts,omitempty"`
}

// ConflictInfo describes an existing assignment that blocks a candidate
// (person, date) pair, with enough context for a user-facing report.
type ConflictInfo struct {
	TeamID      string    `json:"team_id"`
	TeamName    string    `json:"team_name"`
	DisplayName string    `json:"display_name"`
	PersonID    string    `json:"person_id"`
	Date        time.Time `json:"date"`
	Mode        string    `json:"mode"`
}

// ===========================
// ROTATION MODELS
// ===========================

// RotationConfig holds the round-robin state for one team. The cursor
// (LastAssignedPersonID, LastAssignedDate) survives disable/re-enable.
// A nil LastAssignedDate means rotation has never assigned anyone yet.
type RotationConfig struct {
	TeamID               string     `json:"team_id"`
	Enabled              bool       `json:"enabled"`
	MemberOrder          []string   `json:"member_order"`
	LastAssignedPersonID *string    `json:"last_assigned_person_id,omitempty"`
	LastAssignedDate     *time.Time `json:"last_assigned_date,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

type EnableRotationRequest struct {
	MemberOrder []string `json:"member_order" binding:"required"`
}

type AssignRotationRequest struct {
	Date string `json:"date" binding:"required"` // YYYY-MM-DD
}

type AssignRotationResponse struct {
	Assignment *Assignment `json:"assignment,omitempty"`
	PersonID   string      `json:"person_id,omitempty"`
	Message    string      `json:"message"`
}

// ===========================
// ESCALATION MODELS
// ===========================

// EscalationEvent is one active-incident record for a team. At most one
// unacknowledged event exists per team at a time. AcknowledgedAt is terminal;
// EscalatedToLevel2At is an intermediate marker.
type EscalationEvent struct {
	ID                  string     `json:"id"`
	TeamID              string     `json:"team_id"`
	OriginChannel       string     `json:"origin_channel"`
	InitiatedAt         time.Time  `json:"initiated_at"`
	AcknowledgedAt      *time.Time `json:"acknowledged_at,omitempty"`
	EscalatedToLevel2At *time.Time `json:"escalated_to_level2_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// Active reports whether the event is still awaiting acknowledgement.
func (e *EscalationEvent) Active() bool {
	return e.AcknowledgedAt == nil
}

type CreateEscalationRequest struct {
	OriginChannel string `json:"origin_channel"`
}

type CreateEscalationResponse struct {
	Event  EscalationEvent `json:"event"`
	Reused bool            `json:"reused"` // true when an active event already existed
}

// EscalationContact maps a level-2 contact onto a workspace. A row with
// TeamID == nil is the workspace-global CTO; duplicates are tolerated and the
// most recent row wins.
type EscalationContact struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	TeamID      *string   `json:"team_id,omitempty"`
	PersonID    string    `json:"person_id"`
	CreatedAt   time.Time `json:"created_at"`

	// Populated via JOINs for API responses
	PersonName string `json:"person_name,omitempty"`
}

type SetCTORequest struct {
	PersonID string `json:"person_id" binding:"required"`
}

// ===========================
// STATISTICS MODELS
// ===========================

// DutyStat is the denormalized per-person monthly counter, overwritten on
// every recalculation for the same period.
type DutyStat struct {
	WorkspaceID string    `json:"workspace_id"`
	TeamID      string    `json:"team_id"`
	PersonID    string    `json:"person_id"`
	Year        int       `json:"year"`
	Month       int       `json:"month"`
	DutyDays    int       `json:"duty_days"`
	ShiftDays   int       `json:"shift_days"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Populated via JOINs for API responses
	PersonName string `json:"person_name,omitempty"`
	TeamName   string `json:"team_name,omitempty"`
}

type RecalculateStatsRequest struct {
	Year  int `json:"year" binding:"required"`
	Month int `json:"month" binding:"required"`
}

// ===========================
// AUDIT MODELS
// ===========================

// AuditEntry records force-overrides and automatic engine actions.
type AuditEntry struct {
	ID          string                 `json:"id"`
	WorkspaceID string                 `json:"workspace_id"`
	Actor       string                 `json:"actor"`
	Action      string                 `json:"action"`
	Target      string                 `json:"target"`
	Details     map[string]interface{} `json:"details,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}
