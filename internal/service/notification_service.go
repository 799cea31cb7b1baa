package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/task-service/internal/config"
	"github.com/spec-kit/task-service/internal/domain"
	"github.com/spec-kit/task-service/internal/events"
)

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTaskCreated, n.handleTaskCreated)
	n.dispatcher.Subscribe(events.EventTaskAssigned, n.handleTaskAssigned)
	n.dispatcher.Subscribe(events.EventTaskOverdue, n.handleTaskOverdue)
}

func (n *NotificationService) handleTaskCreated(_ context.Context, event events.Event) error {
	n.logger.Info("TaskCreated", zap.String("task_id", event.TaskID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleTaskAssigned(ctx context.Context, event events.Event) error {
	n.logger.Info("TaskAssigned", zap.String("task_id", event.TaskID), zap.Any("payload", event.Payload))
	payload, ok := event.Payload.(events.TaskAssignedPayload)
	if !ok {
		return nil
	}
	n.sendEmailNotificationStub(ctx, event, payload.OwnerEmail, "Task assigned: "+payload.Title)
	return nil
}

func (n *NotificationService) handleTaskOverdue(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TaskOverduePayload)
	if !ok {
		return nil
	}
	if payload.OwnerEmail == "" {
		n.logger.Warn("overdue task has no owner; skipping notification", zap.String("task_id", event.TaskID))
		return nil
	}
	n.sendEmailNotificationStub(ctx, event, payload.OwnerEmail, "Task overdue: "+payload.Title)
	n.logger.Debug("overdue notice sent",
		zap.String("task_id", event.TaskID),
		zap.String("due_date", payload.DueDate.Format(domain.DateLayout)))
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event, to, subject string) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" || to == "" {
		return
	}
	n.logger.Info("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("task_id", event.TaskID),
		zap.String("event_type", string(event.Type)))
}
