package draft

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Janitor purges stale drafts on a cron schedule.
type Janitor struct {
	cron *cron.Cron
}

// StartJanitor schedules a periodic sweep removing drafts untouched for
// longer than the retention period.
func StartJanitor(store *Store, spec string, retention time.Duration, log *slog.Logger) (*Janitor, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		removed, err := store.Purge(retention)
		if err != nil {
			log.Error("draft sweep failed", "error", err)
			return
		}
		if removed > 0 {
			log.Info("purged stale drafts", "count", removed)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule draft sweep: %w", err)
	}
	c.Start()
	return &Janitor{cron: c}, nil
}

// Stop halts the schedule; a running sweep finishes first.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}
