package workers

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/letya999/duty-bot/services"
)

// EscalationSweeper promotes unacknowledged incidents to level 2 once they
// outlive the configured timeout. One sweep runs at a time per process: a
// tick that fires while the previous one is still working is skipped, not
// queued, so a slow tick can never cause double promotion.
type EscalationSweeper struct {
	PG          *sql.DB
	Escalations *services.EscalationService
	Notifier    services.Notifier
	Audit       *services.AuditService

	Timeout       time.Duration
	Interval      time.Duration
	NotifyTimeout time.Duration

	running atomic.Bool
}

func NewEscalationSweeper(pg *sql.DB, escalations *services.EscalationService, notifier services.Notifier, audit *services.AuditService, timeout, interval, notifyTimeout time.Duration) *EscalationSweeper {
	return &EscalationSweeper{
		PG:            pg,
		Escalations:   escalations,
		Notifier:      notifier,
		Audit:         audit,
		Timeout:       timeout,
		Interval:      interval,
		NotifyTimeout: notifyTimeout,
	}
}

// Run ticks until ctx is cancelled.
func (w *EscalationSweeper) Run(ctx context.Context) {
	log.Printf("Escalation sweeper started (timeout %s, interval %s)", w.Timeout, w.Interval)

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Escalation sweeper stopped")
			return
		case <-ticker.C:
			w.Tick()
		}
	}
}

// overdueEvent is one active event past its timeout, joined with team tenancy.
type overdueEvent struct {
	EventID       string
	TeamID        string
	TeamName      string
	WorkspaceID   string
	OriginChannel string
	InitiatedAt   time.Time
}

// Tick runs one sweep pass, skipping entirely if a previous pass is still in
// flight.
func (w *EscalationSweeper) Tick() {
	if !w.running.CompareAndSwap(false, true) {
		log.Println("Sweeper: previous tick still running, skipping")
		return
	}
	defer w.running.Store(false)

	events, err := w.findOverdue()
	if err != nil {
		log.Printf("Sweeper: failed to find overdue escalations: %v", err)
		return
	}

	for _, ev := range events {
		if err := w.promote(ev); err != nil {
			// Failures are isolated per team; the sweep carries on.
			log.Printf("Sweeper: failed to promote escalation %s (team %s): %v", ev.EventID, ev.TeamID, err)
		}
	}
}

func (w *EscalationSweeper) findOverdue() ([]overdueEvent, error) {
	rows, err := w.PG.Query(`
		SELECT e.id, e.team_id, t.name, t.workspace_id, e.origin_channel, e.initiated_at
		FROM escalation_events e
		JOIN teams t ON t.id = e.team_id
		WHERE e.acknowledged_at IS NULL
		  AND e.escalated_to_level2_at IS NULL
		  AND e.initiated_at < $1
		ORDER BY t.workspace_id, t.id
	`, time.Now().Add(-w.Timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to query overdue escalations: %w", err)
	}
	defer rows.Close()

	var events []overdueEvent
	for rows.Next() {
		var ev overdueEvent
		err := rows.Scan(&ev.EventID, &ev.TeamID, &ev.TeamName, &ev.WorkspaceID, &ev.OriginChannel, &ev.InitiatedAt)
		if err != nil {
			log.Printf("Sweeper: error scanning overdue event: %v", err)
			continue
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (w *EscalationSweeper) promote(ev overdueEvent) error {
	promoted, err := w.Escalations.EscalateToLevel2(ev.EventID)
	if err != nil {
		return err
	}
	if !promoted {
		// Another tick or an explicit command got there first.
		return nil
	}

	w.Audit.Record(ev.WorkspaceID, "sweeper", "escalation.auto_level2", ev.EventID, map[string]interface{}{
		"team_id":      ev.TeamID,
		"initiated_at": ev.InitiatedAt.Format(time.RFC3339),
	})

	cto, err := w.Escalations.GetGlobalCTO(ev.WorkspaceID)
	if err != nil {
		return err
	}
	if cto == nil {
		log.Printf("Sweeper: no CTO configured for workspace %s, level-2 notification skipped", ev.WorkspaceID)
		return nil
	}

	name := cto.PersonName
	if name == "" {
		name = cto.PersonID
	}
	message := fmt.Sprintf("Incident in team %s is unacknowledged for over %s, escalating to %s",
		ev.TeamName, w.Timeout, name)

	// Bound the delivery call so one stuck transport cannot stall the
	// remaining teams in this tick.
	ctx, cancel := context.WithTimeout(context.Background(), w.NotifyTimeout)
	defer cancel()
	if err := w.Notifier.Notify(ctx, ev.WorkspaceID, ev.OriginChannel, message); err != nil {
		log.Printf("Sweeper: level-2 notification failed for event %s: %v", ev.EventID, err)
	}

	return nil
}
