package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/letya999/duty-bot/db"
)

// StatsService recomputes the denormalized per-person monthly duty counters.
// Recalculation always replaces the period's rows wholesale, so repeated runs
// converge to the same result.
type StatsService struct {
	PG *sql.DB
}

func NewStatsService(pg *sql.DB) *StatsService {
	return &StatsService{PG: pg}
}

// Recalculate rebuilds duty_stats for one workspace and month from the
// assignment rows: single-mode rows count as duty days, multi-mode rows as
// shift days.
func (s *StatsService) Recalculate(workspaceID string, year, month int) ([]db.DutyStat, error) {
	if month < 1 || month > 12 {
		return nil, NewUserError("invalid month: %d", month)
	}

	periodStart := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	periodEnd := periodStart.AddDate(0, 1, 0)

	rows, err := s.PG.Query(`
		SELECT a.team_id, a.person_id,
		       COUNT(*) FILTER (WHERE a.mode = 'single') AS duty_days,
		       COUNT(*) FILTER (WHERE a.mode = 'multi') AS shift_days
		FROM assignments a
		JOIN teams t ON t.id = a.team_id
		WHERE t.workspace_id = $1 AND a.date >= $2 AND a.date < $3
		GROUP BY a.team_id, a.person_id
	`, workspaceID, periodStart.Format(db.DateLayout), periodEnd.Format(db.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate assignments: %w", err)
	}
	defer rows.Close()

	var stats []db.DutyStat
	for rows.Next() {
		stat := db.DutyStat{
			WorkspaceID: workspaceID,
			Year:        year,
			Month:       month,
			UpdatedAt:   time.Now(),
		}
		if err := rows.Scan(&stat.TeamID, &stat.PersonID, &stat.DutyDays, &stat.ShiftDays); err != nil {
			return nil, fmt.Errorf("failed to scan stat row: %w", err)
		}
		stats = append(stats, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stat rows: %w", err)
	}

	tx, err := s.PG.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Drop stale rows first so people with no assignments this month do not
	// keep last run's counters.
	_, err = tx.Exec(`
		DELETE FROM duty_stats WHERE workspace_id = $1 AND year = $2 AND month = $3
	`, workspaceID, year, month)
	if err != nil {
		return nil, fmt.Errorf("failed to clear previous stats: %w", err)
	}

	for _, stat := range stats {
		_, err = tx.Exec(`
			INSERT INTO duty_stats (workspace_id, team_id, person_id, year, month, duty_days, shift_days, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (workspace_id, team_id, person_id, year, month)
			DO UPDATE SET duty_days = EXCLUDED.duty_days, shift_days = EXCLUDED.shift_days, updated_at = EXCLUDED.updated_at
		`, stat.WorkspaceID, stat.TeamID, stat.PersonID, stat.Year, stat.Month,
			stat.DutyDays, stat.ShiftDays, stat.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to write stat row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit stats: %w", err)
	}

	return stats, nil
}

// GetStats returns the stored counters for a workspace period with names
// attached for reporting.
func (s *StatsService) GetStats(workspaceID string, year, month int) ([]db.DutyStat, error) {
	rows, err := s.PG.Query(`
		SELECT ds.workspace_id, ds.team_id, ds.person_id, ds.year, ds.month,
		       ds.duty_days, ds.shift_days, ds.updated_at,
		       COALESCE(p.name, ''), COALESCE(t.name, '')
		FROM duty_stats ds
		LEFT JOIN people p ON p.id = ds.person_id
		LEFT JOIN teams t ON t.id = ds.team_id
		WHERE ds.workspace_id = $1 AND ds.year = $2 AND ds.month = $3
		ORDER BY t.name, p.name
	`, workspaceID, year, month)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	defer rows.Close()

	var stats []db.DutyStat
	for rows.Next() {
		var stat db.DutyStat
		err := rows.Scan(&stat.WorkspaceID, &stat.TeamID, &stat.PersonID, &stat.Year, &stat.Month,
			&stat.DutyDays, &stat.ShiftDays, &stat.UpdatedAt, &stat.PersonName, &stat.TeamName)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stat: %w", err)
		}
		stats = append(stats, stat)
	}
	return stats, rows.Err()
}

// ListWorkspaceIDs feeds the scheduled recalculation across all tenants.
func (s *StatsService) ListWorkspaceIDs() ([]string, error) {
	rows, err := s.PG.Query(`SELECT id FROM workspaces ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan workspace id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
