package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-service/internal/config"
	"github.com/spec-kit/incident-service/internal/events"
	"github.com/spec-kit/incident-service/internal/repository"
)

// SLAWatcher periodically scans active incidents and persists breach
// flags. Breach state is also derived lazily at read time; the watcher
// exists so breach events fire even when nobody is looking at the
// incident. MarkBreached is a guarded update, so each incident produces
// at most one sla_breached event across runs.
type SLAWatcher struct {
	incidents  repository.IncidentRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	schedule   string
	cron       *cron.Cron
	now        func() time.Time
}

// NewSLAWatcher constructs the watcher.
func NewSLAWatcher(cfg config.WorkerConfig, incidents repository.IncidentRepository, dispatcher events.Dispatcher, logger *zap.Logger) *SLAWatcher {
	return &SLAWatcher{
		incidents:  incidents,
		dispatcher: dispatcher,
		logger:     logger,
		schedule:   cfg.CronSchedule,
		now:        time.Now,
	}
}

// Start schedules the periodic scan. Returns an error when the cron
// expression is invalid.
func (w *SLAWatcher) Start() error {
	w.cron = cron.New()
	if _, err := w.cron.AddFunc(w.schedule, w.runOnce); err != nil {
		return err
	}
	w.cron.Start()
	w.logger.Info("sla watcher started", zap.String("schedule", w.schedule))
	return nil
}

// Stop halts scheduling and waits for a running scan to finish.
func (w *SLAWatcher) Stop() {
	if w.cron == nil {
		return
	}
	ctx := w.cron.Stop()
	<-ctx.Done()
	w.logger.Info("sla watcher stopped")
}

func (w *SLAWatcher) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := w.Scan(ctx); err != nil {
		w.logger.Error("sla scan failed", zap.Error(err))
	}
}

// Scan flags newly breached incidents and publishes one event each.
func (w *SLAWatcher) Scan(ctx context.Context) error {
	active, err := w.incidents.ListActiveWithTarget(ctx)
	if err != nil {
		return err
	}

	now := w.now()
	flagged := 0
	for i := range active {
		incident := &active[i]
		if incident.SLA.IsBreached || !now.After(incident.SLA.Target) {
			continue
		}
		marked, err := w.incidents.MarkBreached(ctx, incident.ID, now)
		if err != nil {
			w.logger.Error("mark breached failed",
				zap.String("incident_id", incident.IncidentID), zap.Error(err))
			continue
		}
		if !marked {
			// another instance got there first
			continue
		}
		flagged++

		payload := events.SLABreachedPayload{
			Reference:  incident.IncidentID,
			Severity:   incident.Severity,
			Target:     incident.SLA.Target,
			BreachedAt: now,
		}
		if incident.Assignee != nil {
			payload.AssigneeID = incident.Assignee.UserID
		}
		if w.dispatcher != nil {
			_ = w.dispatcher.Publish(ctx, events.Event{
				ID:         uuid.NewString(),
				Type:       events.EventSLABreached,
				IncidentID: incident.ID,
				Timestamp:  now,
				Payload:    payload,
			})
		}
	}

	if flagged > 0 {
		w.logger.Warn("sla breaches flagged", zap.Int("count", flagged))
	}
	return nil
}
