package reminder

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/expatdesk/docvault/internal/core/ports"
)

// Dispatcher sweeps pending reminders on a schedule and hands due ones to the
// notifier. Delivery failures are logged and retried on the next sweep; a
// reminder is only marked sent after successful delivery.
type Dispatcher struct {
	repo     ports.ReminderRepository
	notifier ports.ReminderNotifier
	cron     *cron.Cron
	logger   *slog.Logger
}

func NewDispatcher(repo ports.ReminderRepository, notifier ports.ReminderNotifier, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		repo:     repo,
		notifier: notifier,
		cron:     cron.New(),
		logger:   logger,
	}
}

// Start registers the hourly sweep and launches the scheduler. The scheduler
// stops when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context, schedule string) error {
	if schedule == "" {
		schedule = "@hourly"
	}
	_, err := d.cron.AddFunc(schedule, func() {
		sweepCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		d.Sweep(sweepCtx)
	})
	if err != nil {
		return err
	}

	d.cron.Start()
	go func() {
		<-ctx.Done()
		stopCtx := d.cron.Stop()
		<-stopCtx.Done()
	}()
	return nil
}

// Sweep delivers every reminder due as of now.
func (d *Dispatcher) Sweep(ctx context.Context) {
	due, err := d.repo.ListDue(ctx, time.Now().UTC())
	if err != nil {
		d.logger.Error("list due reminders failed", "error", err)
		return
	}

	for _, rem := range due {
		if err := d.notifier.Notify(ctx, rem); err != nil {
			d.logger.Warn("reminder delivery failed, will retry next sweep",
				"reminder_id", rem.ID, "document_id", rem.DocumentID, "error", err)
			continue
		}
		if err := d.repo.MarkSent(ctx, rem.ID); err != nil {
			d.logger.Error("mark reminder sent failed",
				"reminder_id", rem.ID, "error", err)
		}
	}
	if len(due) > 0 {
		d.logger.Info("reminder sweep completed", "due", len(due))
	}
}
