package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/task-service/internal/domain"
	"github.com/spec-kit/task-service/internal/events"
	"github.com/spec-kit/task-service/internal/repository"
)

const runTimeout = time.Minute

// OverdueNotifier periodically publishes task_overdue events for tasks whose
// due date has passed and that are not done.
type OverdueNotifier struct {
	cron       *cron.Cron
	tasks      repository.TaskRepository
	dispatcher events.Dispatcher
	now        func() time.Time
	logger     *zap.Logger
}

// NewOverdueNotifier builds a notifier. now may be nil.
func NewOverdueNotifier(tasks repository.TaskRepository, dispatcher events.Dispatcher, now func() time.Time, logger *zap.Logger) *OverdueNotifier {
	if now == nil {
		now = time.Now
	}
	return &OverdueNotifier{
		cron:       cron.New(),
		tasks:      tasks,
		dispatcher: dispatcher,
		now:        now,
		logger:     logger,
	}
}

// Start schedules the job with a standard five field cron expression and starts the scheduler.
func (n *OverdueNotifier) Start(schedule string) error {
	if _, err := n.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		if _, err := n.Run(ctx); err != nil {
			n.logger.Warn("overdue run failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}
	n.cron.Start()
	n.logger.Info("overdue notifier started", zap.String("schedule", schedule))
	return nil
}

// Stop waits for a running job to finish and stops the scheduler.
func (n *OverdueNotifier) Stop() {
	<-n.cron.Stop().Done()
	n.logger.Info("overdue notifier stopped")
}

// Run publishes one event per overdue task and returns how many were published.
func (n *OverdueNotifier) Run(ctx context.Context) (int, error) {
	now := n.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	overdue, err := n.tasks.ListOverdue(ctx, today)
	if err != nil {
		return 0, err
	}
	if len(overdue) == 0 {
		n.logger.Info("no overdue tasks", zap.String("as_of", today.Format(domain.DateLayout)))
		return 0, nil
	}

	published := 0
	for _, task := range overdue {
		payload := events.TaskOverduePayload{Title: task.Title}
		if task.DueDate != nil {
			payload.DueDate = *task.DueDate
		}
		if task.OwnerEmail != nil {
			payload.OwnerEmail = *task.OwnerEmail
		}
		event := events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventTaskOverdue,
			TaskID:    task.ID,
			Timestamp: now,
			Payload:   payload,
		}
		if err := n.dispatcher.Publish(ctx, event); err != nil {
			n.logger.Error("publish overdue event failed", zap.String("task_id", task.ID), zap.Error(err))
			continue
		}
		published++
	}
	n.logger.Info("overdue run completed", zap.Int("tasks", len(overdue)), zap.Int("published", published))
	return published, nil
}
