package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/task-service/internal/auth"
	"github.com/spec-kit/task-service/internal/domain"
	"github.com/spec-kit/task-service/internal/events"
	"github.com/spec-kit/task-service/internal/repository"
	apperrors "github.com/spec-kit/task-service/pkg/util/errorutil"
)

const (
	defaultPageSize = 5
	maxPageSize     = 100
)

// TaskService coordinates task workflows. Every method receives the caller's
// principal and consults the access policy before touching data.
type TaskService struct {
	tasks      repository.TaskRepository
	users      repository.UserRepository
	quotes     Quoter
	dispatcher events.Dispatcher
	now        func() time.Time
	logger     *zap.Logger
}

// TaskDependencies bundles collaborators for the task service. Quotes and
// Dispatcher are optional.
type TaskDependencies struct {
	TaskRepo   repository.TaskRepository
	UserRepo   repository.UserRepository
	Quotes     Quoter
	Dispatcher events.Dispatcher
	Now        func() time.Time
	Logger     *zap.Logger
}

// NewTaskService builds the service.
func NewTaskService(deps TaskDependencies) *TaskService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskService{
		tasks:      deps.TaskRepo,
		users:      deps.UserRepo,
		quotes:     deps.Quotes,
		dispatcher: deps.Dispatcher,
		now:        now,
		logger:     logger,
	}
}

// TaskInput carries the writable task fields.
type TaskInput struct {
	Title       string
	Description string
	Priority    domain.TaskPriority
	Status      domain.TaskStatus
	DueDate     *time.Time
}

// TaskListQuery holds filter and pagination parameters. Page is zero based.
type TaskListQuery struct {
	Status   *domain.TaskStatus
	Priority *domain.TaskPriority
	DueDate  *time.Time
	SortBy   repository.TaskSortField
	Page     int
	Size     int
}

// TaskPage is one page of a scoped listing.
type TaskPage struct {
	Tasks         []domain.Task
	Page          int
	Size          int
	TotalElements int
	TotalPages    int
}

// Create stores a new unowned task.
func (s *TaskService) Create(ctx context.Context, principal auth.PrincipalContext, input TaskInput) (*domain.Task, error) {
	if err := auth.Authorize(principal, auth.OpTaskCreate, nil); err != nil {
		return nil, err
	}
	input = withTaskDefaults(input)
	if err := validateTask(input); err != nil {
		return nil, err
	}

	task := &domain.Task{
		Title:       strings.TrimSpace(input.Title),
		Description: s.enrich(ctx, input.Description),
		Priority:    input.Priority,
		Status:      input.Status,
		DueDate:     input.DueDate,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.publish(ctx, principal, events.EventTaskCreated, task.ID, events.TaskCreatedPayload{
		Title:    task.Title,
		Priority: task.Priority,
	})
	return task, nil
}

// Get returns a task the caller administers or owns.
func (s *TaskService) Get(ctx context.Context, principal auth.PrincipalContext, id string) (*domain.Task, error) {
	task, err := s.loadAuthorized(ctx, principal, auth.OpTaskRead, id)
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Update replaces the writable fields of a task. Ownership is unchanged.
func (s *TaskService) Update(ctx context.Context, principal auth.PrincipalContext, id string, input TaskInput) (*domain.Task, error) {
	task, err := s.loadAuthorized(ctx, principal, auth.OpTaskUpdate, id)
	if err != nil {
		return nil, err
	}
	if input.Priority == "" {
		input.Priority = task.Priority
	}
	if input.Status == "" {
		input.Status = task.Status
	}
	if err := validateTask(input); err != nil {
		return nil, err
	}

	task.Title = strings.TrimSpace(input.Title)
	task.Description = input.Description
	task.Priority = input.Priority
	task.Status = input.Status
	task.DueDate = input.DueDate
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, translateStoreError(err, "task", id)
	}
	return task, nil
}

// Delete removes a task.
func (s *TaskService) Delete(ctx context.Context, principal auth.PrincipalContext, id string) error {
	if err := auth.Authorize(principal, auth.OpTaskDelete, nil); err != nil {
		return err
	}
	if err := validID("task", id); err != nil {
		return err
	}
	if err := s.tasks.Delete(ctx, id); err != nil {
		return translateStoreError(err, "task", id)
	}
	return nil
}

// Assign makes userID the owner of task id.
func (s *TaskService) Assign(ctx context.Context, principal auth.PrincipalContext, id, userID string) (*domain.Task, error) {
	if err := auth.Authorize(principal, auth.OpTaskAssign, nil); err != nil {
		return nil, err
	}
	if err := validID("task", id); err != nil {
		return nil, err
	}
	if err := validID("user", userID); err != nil {
		return nil, err
	}
	if _, err := s.tasks.GetByID(ctx, id); err != nil {
		return nil, translateStoreError(err, "task", id)
	}
	owner, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, translateStoreError(err, "user", userID)
	}
	if err := s.tasks.Assign(ctx, id, owner.ID); err != nil {
		return nil, translateStoreError(err, "task", id)
	}

	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err, "task", id)
	}
	s.publish(ctx, principal, events.EventTaskAssigned, task.ID, events.TaskAssignedPayload{
		OwnerID:    owner.ID,
		OwnerEmail: owner.Email,
		Title:      task.Title,
	})
	return task, nil
}

// List returns one page of the tasks visible to principal. Non-admin callers
// are restricted to their own tasks by the store query itself, so the totals
// count only those tasks.
func (s *TaskService) List(ctx context.Context, principal auth.PrincipalContext, query TaskListQuery) (*TaskPage, error) {
	scope, err := auth.ScopeFor(principal, auth.OpTaskList)
	if err != nil {
		return nil, err
	}
	if query.Size == 0 {
		query.Size = defaultPageSize
	}
	errs := fieldErrors{}
	if query.Page < 0 {
		errs["page"] = "must not be negative"
	}
	if query.Size < 1 || query.Size > maxPageSize {
		errs["size"] = "must be between 1 and 100"
	} else if query.Page > math.MaxInt/query.Size {
		errs["page"] = "is too large"
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	filter := repository.TaskFilter{
		Status:   query.Status,
		Priority: query.Priority,
		DueDate:  query.DueDate,
		SortBy:   query.SortBy,
		Limit:    query.Size,
		Offset:   query.Page * query.Size,
	}
	if !scope.Unrestricted {
		ownerID, err := s.resolveOwnerID(ctx, scope)
		if err != nil {
			return nil, err
		}
		filter.OwnerID = &ownerID
	}

	tasks, total, err := s.tasks.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &TaskPage{
		Tasks:         tasks,
		Page:          query.Page,
		Size:          query.Size,
		TotalElements: total,
		TotalPages:    (total + query.Size - 1) / query.Size,
	}, nil
}

func (s *TaskService) resolveOwnerID(ctx context.Context, scope auth.ListScope) (string, error) {
	user, err := s.users.GetByEmail(ctx, scope.OwnerEmail)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// A valid token for a principal that has since been deleted.
			return "", apperrors.NewUnauthorized("principal no longer exists")
		}
		return "", apperrors.NewInternalError(err)
	}
	return user.ID, nil
}

// loadAuthorized runs the admin-or-owner rule for op against task id.
// Authentication is checked first, then existence, then ownership.
func (s *TaskService) loadAuthorized(ctx context.Context, principal auth.PrincipalContext, op auth.Operation, id string) (*domain.Task, error) {
	if err := auth.Precheck(principal, op); err != nil {
		return nil, err
	}
	if err := validID("task", id); err != nil {
		return nil, err
	}
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err, "task", id)
	}
	if err := auth.Authorize(principal, op, ownerOf(task)); err != nil {
		return nil, err
	}
	return task, nil
}

func ownerOf(task *domain.Task) *auth.ResourceOwner {
	if !task.HasOwner() {
		return nil
	}
	owner := &auth.ResourceOwner{ID: *task.OwnerID}
	if task.OwnerEmail != nil {
		owner.CredentialName = *task.OwnerEmail
	}
	return owner
}

func (s *TaskService) enrich(ctx context.Context, description string) string {
	if s.quotes == nil {
		return description
	}
	quote := s.quotes.MotivationalQuote(ctx)
	if quote == "" {
		return description
	}
	if strings.TrimSpace(description) == "" {
		return "Motivation: " + quote
	}
	return description + "\n\nMotivation: " + quote
}

func (s *TaskService) publish(ctx context.Context, principal auth.PrincipalContext, eventType events.EventType, taskID string, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TaskID:    taskID,
		Actor:     events.Actor{CredentialName: principal.CredentialName, Role: principal.Role},
		Timestamp: s.now().UTC(),
		Payload:   payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish event failed", zap.String("event_type", string(eventType)), zap.Error(err))
	}
}

func withTaskDefaults(input TaskInput) TaskInput {
	if input.Priority == "" {
		input.Priority = domain.TaskPriorityMedium
	}
	if input.Status == "" {
		input.Status = domain.TaskStatusTodo
	}
	return input
}

func validateTask(input TaskInput) error {
	errs := fieldErrors{}
	errs.require("title", input.Title)
	errs.maxLen("title", input.Title, maxTitleLength)
	if _, err := domain.ParseTaskPriority(string(input.Priority)); err != nil {
		errs["priority"] = "must be LOW, MEDIUM or HIGH"
	}
	if _, err := domain.ParseTaskStatus(string(input.Status)); err != nil {
		errs["status"] = "must be TODO, IN_PROGRESS or DONE"
	}
	return errs.err()
}
