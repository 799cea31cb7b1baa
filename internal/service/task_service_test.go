package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/task-service/internal/auth"
	"github.com/spec-kit/task-service/internal/domain"
	"github.com/spec-kit/task-service/internal/events"
	"github.com/spec-kit/task-service/internal/repository"
	apperrors "github.com/spec-kit/task-service/pkg/util/errorutil"
)

type staticQuoter string

func (q staticQuoter) MotivationalQuote(context.Context) string { return string(q) }

func TestTaskService_OwnershipDecidesReadAndUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice@example.com", "password1", domain.RoleUser)
	bob := f.addUser(t, "bob@example.com", "password1", domain.RoleUser)
	aliceTask := f.addTask(t, "alice's", alice)
	bobTask := f.addTask(t, "bob's", bob)
	unowned := f.addTask(t, "nobody's", nil)

	_, err := f.tasks.Get(ctx, principalOf(bob), aliceTask.ID)
	requireCode(t, err, apperrors.CodeForbidden)

	_, err = f.tasks.Get(ctx, principalOf(bob), unowned.ID)
	requireCode(t, err, apperrors.CodeForbidden)

	got, err := f.tasks.Get(ctx, principalOf(bob), bobTask.ID)
	require.NoError(t, err)
	assert.Equal(t, bobTask.ID, got.ID)

	// Credential names compare case-insensitively.
	shouting := auth.PrincipalContext{CredentialName: "BOB@EXAMPLE.COM", Role: domain.RoleUser}
	_, err = f.tasks.Get(ctx, shouting, bobTask.ID)
	require.NoError(t, err)

	for _, id := range []string{aliceTask.ID, bobTask.ID, unowned.ID} {
		_, err := f.tasks.Get(ctx, admin, id)
		assert.NoError(t, err)
	}

	_, err = f.tasks.Get(ctx, anon, bobTask.ID)
	requireCode(t, err, apperrors.CodeUnauthorized)

	_, err = f.tasks.Update(ctx, principalOf(bob), aliceTask.ID, TaskInput{Title: "stolen"})
	requireCode(t, err, apperrors.CodeForbidden)
}

func TestTaskService_NotFoundBeforeOwnership(t *testing.T) {
	f := newFixture(t)
	bob := f.addUser(t, "bob@example.com", "password1", domain.RoleUser)

	_, err := f.tasks.Get(context.Background(), principalOf(bob), uuid.NewString())
	requireCode(t, err, apperrors.CodeNotFound)

	_, err = f.tasks.Get(context.Background(), anon, uuid.NewString())
	requireCode(t, err, apperrors.CodeUnauthorized)
}

func TestTaskService_UpdateByOwnerKeepsOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := f.addUser(t, "bob@example.com", "password1", domain.RoleUser)
	task := f.addTask(t, "draft", bob)
	due := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)

	updated, err := f.tasks.Update(ctx, principalOf(bob), task.ID, TaskInput{
		Title:   "final",
		Status:  domain.TaskStatusInProgress,
		DueDate: &due,
	})
	require.NoError(t, err)
	assert.Equal(t, "final", updated.Title)
	assert.Equal(t, domain.TaskStatusInProgress, updated.Status)
	assert.Equal(t, domain.TaskPriorityMedium, updated.Priority)

	stored, err := f.tasks.Get(ctx, admin, task.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.OwnerID)
	assert.Equal(t, bob.ID, *stored.OwnerID)
	require.NotNil(t, stored.DueDate)
	assert.True(t, due.Equal(*stored.DueDate))

	_, err = f.tasks.Update(ctx, principalOf(bob), task.ID, TaskInput{Title: ""})
	requireCode(t, err, apperrors.CodeValidation)
}

func TestTaskService_CreateIsAdminOnlyAndUnowned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := f.addUser(t, "bob@example.com", "password1", domain.RoleUser)

	_, err := f.tasks.Create(ctx, principalOf(bob), TaskInput{Title: "mine"})
	requireCode(t, err, apperrors.CodeForbidden)

	_, err = f.tasks.Create(ctx, anon, TaskInput{Title: "mine"})
	requireCode(t, err, apperrors.CodeUnauthorized)

	task, err := f.tasks.Create(ctx, admin, TaskInput{Title: "ship it"})
	require.NoError(t, err)
	assert.False(t, task.HasOwner())
	assert.Equal(t, domain.TaskStatusTodo, task.Status)
	assert.Equal(t, domain.TaskPriorityMedium, task.Priority)

	require.Len(t, f.events.published, 1)
	assert.Equal(t, events.EventTaskCreated, f.events.published[0].Type)
	assert.Equal(t, task.ID, f.events.published[0].TaskID)
	assert.Equal(t, "admin@example.com", f.events.published[0].Actor.CredentialName)
}

func TestTaskService_CreateAppendsQuote(t *testing.T) {
	f := newFixture(t)
	svc := NewTaskService(TaskDependencies{
		TaskRepo: f.store.Tasks(),
		UserRepo: f.store.Users(),
		Quotes:   staticQuoter("Ship early."),
	})

	task, err := svc.Create(context.Background(), admin, TaskInput{Title: "t", Description: "details"})
	require.NoError(t, err)
	assert.Equal(t, "details\n\nMotivation: Ship early.", task.Description)

	task, err = svc.Create(context.Background(), admin, TaskInput{Title: "t"})
	require.NoError(t, err)
	assert.Equal(t, "Motivation: Ship early.", task.Description)
}

func TestTaskService_DeleteAndAssignAreAdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := f.addUser(t, "bob@example.com", "password1", domain.RoleUser)
	task := f.addTask(t, "bob's", bob)

	err := f.tasks.Delete(ctx, principalOf(bob), task.ID)
	requireCode(t, err, apperrors.CodeForbidden)

	_, err = f.tasks.Assign(ctx, principalOf(bob), task.ID, bob.ID)
	requireCode(t, err, apperrors.CodeForbidden)

	require.NoError(t, f.tasks.Delete(ctx, admin, task.ID))
	err = f.tasks.Delete(ctx, admin, task.ID)
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestTaskService_Assign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := f.addUser(t, "bob@example.com", "password1", domain.RoleUser)
	task := f.addTask(t, "unowned", nil)

	_, err := f.tasks.Get(ctx, principalOf(bob), task.ID)
	requireCode(t, err, apperrors.CodeForbidden)

	assigned, err := f.tasks.Assign(ctx, admin, task.ID, bob.ID)
	require.NoError(t, err)
	require.NotNil(t, assigned.OwnerEmail)
	assert.Equal(t, "bob@example.com", *assigned.OwnerEmail)

	_, err = f.tasks.Get(ctx, principalOf(bob), task.ID)
	assert.NoError(t, err)

	require.Len(t, f.events.published, 1)
	payload, ok := f.events.published[0].Payload.(events.TaskAssignedPayload)
	require.True(t, ok)
	assert.Equal(t, bob.ID, payload.OwnerID)

	_, err = f.tasks.Assign(ctx, admin, task.ID, uuid.NewString())
	requireCode(t, err, apperrors.CodeNotFound)
	assert.Contains(t, apperrors.ToDomainError(err).Message, "user")

	_, err = f.tasks.Assign(ctx, admin, uuid.NewString(), bob.ID)
	requireCode(t, err, apperrors.CodeNotFound)
	assert.Contains(t, apperrors.ToDomainError(err).Message, "task")
}

func TestTaskService_ListIsScopedBeforePagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice@example.com", "password1", domain.RoleUser)
	bob := f.addUser(t, "bob@example.com", "password1", domain.RoleUser)
	for i := 0; i < 6; i++ {
		f.addTask(t, "alice", alice)
	}
	for i := 0; i < 3; i++ {
		f.addTask(t, "bob", bob)
	}
	f.addTask(t, "unowned", nil)

	page, err := f.tasks.List(ctx, principalOf(bob), TaskListQuery{Size: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalElements)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Tasks, 2)
	for _, task := range page.Tasks {
		assert.Equal(t, bob.ID, *task.OwnerID)
	}

	page, err = f.tasks.List(ctx, principalOf(bob), TaskListQuery{Page: 1, Size: 2})
	require.NoError(t, err)
	assert.Len(t, page.Tasks, 1)

	page, err = f.tasks.List(ctx, admin, TaskListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 10, page.TotalElements)
	assert.Equal(t, 5, page.Size)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Tasks, 5)
}

func TestTaskService_ListFiltersApplyWithinScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := f.addUser(t, "bob@example.com", "password1", domain.RoleUser)
	done := f.addTask(t, "done", bob)
	f.addTask(t, "todo", bob)
	done.Status = domain.TaskStatusDone
	require.NoError(t, f.store.Tasks().Update(ctx, done))

	status := domain.TaskStatusDone
	page, err := f.tasks.List(ctx, principalOf(bob), TaskListQuery{Status: &status, SortBy: repository.SortByTitle})
	require.NoError(t, err)
	require.Len(t, page.Tasks, 1)
	assert.Equal(t, done.ID, page.Tasks[0].ID)
}

func TestTaskService_ListRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tasks.List(ctx, anon, TaskListQuery{})
	requireCode(t, err, apperrors.CodeUnauthorized)

	ghost := auth.PrincipalContext{CredentialName: "deleted@example.com", Role: domain.RoleUser}
	_, err = f.tasks.List(ctx, ghost, TaskListQuery{})
	requireCode(t, err, apperrors.CodeUnauthorized)

	_, err = f.tasks.List(ctx, admin, TaskListQuery{Size: 101})
	requireCode(t, err, apperrors.CodeValidation)

	_, err = f.tasks.List(ctx, admin, TaskListQuery{Page: -1})
	requireCode(t, err, apperrors.CodeValidation)

	_, err = f.tasks.List(ctx, admin, TaskListQuery{Page: math.MaxInt/5 + 1, Size: 5})
	requireCode(t, err, apperrors.CodeValidation)
	assert.Contains(t, apperrors.ToDomainError(err).Details, "page")

	_, err = f.tasks.List(ctx, admin, TaskListQuery{Page: math.MaxInt / 5, Size: 5})
	require.NoError(t, err)
}
