package services

import (
	"database/sql"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
)

// AuditService appends engine actions (force overrides, auto-rotation,
// auto-escalation) to the audit log. Recording is best-effort: a failed write
// is logged and never fails the operation that triggered it.
type AuditService struct {
	PG *sql.DB
}

func NewAuditService(pg *sql.DB) *AuditService {
	return &AuditService{PG: pg}
}

// Record writes one audit entry.
func (s *AuditService) Record(workspaceID, actor, action, target string, details map[string]interface{}) {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		log.Printf("Audit: failed to serialize details for %s: %v", action, err)
		detailsJSON = []byte("{}")
	}

	_, err = s.PG.Exec(`
		INSERT INTO audit_log (id, workspace_id, actor, action, target, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.New().String(), workspaceID, actor, action, target, detailsJSON, time.Now())
	if err != nil {
		log.Printf("Audit: failed to record %s on %s: %v", action, target, err)
	}
}
