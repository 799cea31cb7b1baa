package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/task-service/internal/auth"
	"github.com/spec-kit/task-service/internal/domain"
	"github.com/spec-kit/task-service/internal/events"
	"github.com/spec-kit/task-service/internal/repository"
	apperrors "github.com/spec-kit/task-service/pkg/util/errorutil"
)

var fixedNow = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store  *repository.MemoryStore
	hasher *auth.BcryptHasher
	codec  *auth.TokenCodec
	events *recordingDispatcher
	auth   *AuthService
	users  *UserService
	tasks  *TaskService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	codec := auth.NewTokenCodec(auth.TokenConfig{Secret: []byte("service-test-secret"), TTL: 24 * time.Hour})
	dispatcher := &recordingDispatcher{}
	clock := func() time.Time { return fixedNow }

	return &fixture{
		store:  store,
		hasher: hasher,
		codec:  codec,
		events: dispatcher,
		auth: NewAuthService(AuthDependencies{
			UserRepo: store.Users(),
			Hasher:   hasher,
			Tokens:   codec,
			Now:      clock,
		}),
		users: NewUserService(store.Users(), hasher, nil),
		tasks: NewTaskService(TaskDependencies{
			TaskRepo:   store.Tasks(),
			UserRepo:   store.Users(),
			Dispatcher: dispatcher,
			Now:        clock,
		}),
	}
}

func (f *fixture) addUser(t *testing.T, email, password string, role domain.Role) *domain.User {
	t.Helper()
	hash, err := f.hasher.Hash(password)
	require.NoError(t, err)
	user := &domain.User{Username: email, Email: email, PasswordHash: hash, Role: role}
	require.NoError(t, f.store.Users().Create(context.Background(), user))
	return user
}

func (f *fixture) addTask(t *testing.T, title string, owner *domain.User) *domain.Task {
	t.Helper()
	ctx := context.Background()
	task := &domain.Task{Title: title, Priority: domain.TaskPriorityMedium, Status: domain.TaskStatusTodo}
	require.NoError(t, f.store.Tasks().Create(ctx, task))
	if owner != nil {
		require.NoError(t, f.store.Tasks().Assign(ctx, task.ID, owner.ID))
	}
	return task
}

func principalOf(user *domain.User) auth.PrincipalContext {
	return auth.PrincipalContext{CredentialName: user.Email, Role: user.Role}
}

var (
	admin = auth.PrincipalContext{CredentialName: "admin@example.com", Role: domain.RoleAdmin}
	anon  = auth.Anonymous()
)

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, code), "want %s, got %v", code, err)
}

type recordingDispatcher struct {
	published []events.Event
}

func (r *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	r.published = append(r.published, event)
	return nil
}

func (r *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}
