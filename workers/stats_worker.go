package workers

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/letya999/duty-bot/services"
)

// StatsWorker recalculates the current month's counters for every workspace
// on a cron schedule. Recalculation is idempotent, so an extra run is
// harmless.
type StatsWorker struct {
	Stats    *services.StatsService
	Schedule string
	Location *time.Location

	cron *cron.Cron
}

func NewStatsWorker(stats *services.StatsService, schedule string, loc *time.Location) *StatsWorker {
	if loc == nil {
		loc = time.UTC
	}
	return &StatsWorker{Stats: stats, Schedule: schedule, Location: loc}
}

// Start registers the schedule and begins running in the background.
func (w *StatsWorker) Start() error {
	w.cron = cron.New(cron.WithLocation(w.Location))
	if _, err := w.cron.AddFunc(w.Schedule, w.RecalculateAll); err != nil {
		return err
	}
	w.cron.Start()
	log.Printf("Stats worker started (schedule %q)", w.Schedule)
	return nil
}

// Stop halts the schedule, waiting for a running job to finish.
func (w *StatsWorker) Stop() {
	if w.cron != nil {
		<-w.cron.Stop().Done()
	}
}

// RecalculateAll rebuilds the current month for every workspace. Per-
// workspace failures are logged and do not stop the rest.
func (w *StatsWorker) RecalculateAll() {
	now := time.Now().In(w.Location)
	year, month := now.Year(), int(now.Month())

	workspaceIDs, err := w.Stats.ListWorkspaceIDs()
	if err != nil {
		log.Printf("Stats worker: failed to list workspaces: %v", err)
		return
	}

	for _, id := range workspaceIDs {
		stats, err := w.Stats.Recalculate(id, year, month)
		if err != nil {
			log.Printf("Stats worker: recalculation failed for workspace %s: %v", id, err)
			continue
		}
		log.Printf("Stats worker: workspace %s %d-%02d recalculated, %d rows", id, year, month, len(stats))
	}
}
