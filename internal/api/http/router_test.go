package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/task-service/internal/api/http/handlers"
	"github.com/spec-kit/task-service/internal/auth"
	"github.com/spec-kit/task-service/internal/domain"
	"github.com/spec-kit/task-service/internal/events"
	"github.com/spec-kit/task-service/internal/observability"
	"github.com/spec-kit/task-service/internal/persistence"
	"github.com/spec-kit/task-service/internal/repository"
	"github.com/spec-kit/task-service/internal/service"
)

type testServer struct {
	app    *fiber.App
	store  *repository.MemoryStore
	codec  *auth.TokenCodec
	hasher *auth.BcryptHasher
	clock  *time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	now := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	srv := &testServer{
		store:  repository.NewMemoryStore(),
		codec:  auth.NewTokenCodec(auth.TokenConfig{Secret: []byte("router-test-secret"), TTL: 24 * time.Hour}),
		hasher: auth.NewBcryptHasher(bcrypt.MinCost),
		clock:  &now,
	}
	clock := func() time.Time { return *srv.clock }
	logger := zap.NewNop()
	metrics := observability.NewMetrics("tasks_test")
	dispatcher := events.NewInMemoryDispatcher(logger)

	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo: srv.store.Users(),
		Hasher:   srv.hasher,
		Tokens:   srv.codec,
		Now:      clock,
	})
	taskService := service.NewTaskService(service.TaskDependencies{
		TaskRepo:   srv.store.Tasks(),
		UserRepo:   srv.store.Users(),
		Dispatcher: dispatcher,
		Now:        clock,
	})

	srv.app = NewApp("task-service-test", logger, metrics, time.Second)
	RegisterRoutes(srv.app, RouteConfig{
		Health:        handlers.NewHealthHandler("task-service", "test", &persistence.Postgres{}, &persistence.Redis{}),
		Auth:          handlers.NewAuthHandler(authService),
		Users:         handlers.NewUsersHandler(service.NewUserService(srv.store.Users(), srv.hasher, logger)),
		Tasks:         handlers.NewTasksHandler(taskService),
		Authenticator: auth.NewRequestAuthenticator(srv.codec, clock, logger),
		Metrics:       metrics,
	})
	return srv
}

func (s *testServer) addUser(t *testing.T, email, password string, role domain.Role) *domain.User {
	t.Helper()
	hash, err := s.hasher.Hash(password)
	require.NoError(t, err)
	user := &domain.User{Username: email, Email: email, PasswordHash: hash, Role: role}
	require.NoError(t, s.store.Users().Create(context.Background(), user))
	return user
}

func (s *testServer) addTask(t *testing.T, title string, owner *domain.User) *domain.Task {
	t.Helper()
	ctx := context.Background()
	task := &domain.Task{Title: title, Priority: domain.TaskPriorityLow, Status: domain.TaskStatusTodo}
	require.NoError(t, s.store.Tasks().Create(ctx, task))
	if owner != nil {
		require.NoError(t, s.store.Tasks().Assign(ctx, task.ID, owner.ID))
	}
	return task
}

type response struct {
	status int
	raw    []byte
	body   map[string]any
}

func (r response) errorCode() string {
	errBody, _ := r.body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func (r response) data() map[string]any {
	data, _ := r.body["data"].(map[string]any)
	return data
}

func (s *testServer) do(t *testing.T, method, path, token string, payload any) response {
	t.Helper()
	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if payload != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := response{status: resp.StatusCode, raw: raw, body: map[string]any{}}
	_ = json.Unmarshal(raw, &out.body)
	return out
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	resp := s.do(t, fiber.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, fiber.StatusOK, resp.status, string(resp.raw))
	token, _ := resp.data()["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestLogin_ResponseShape(t *testing.T) {
	srv := newTestServer(t)
	bob := srv.addUser(t, "bob@example.com", "bob-password", domain.RoleUser)

	resp := srv.do(t, fiber.MethodPost, "/api/auth/login", "", map[string]string{"email": "bob@example.com", "password": "bob-password"})
	require.Equal(t, fiber.StatusOK, resp.status)
	data := resp.data()
	assert.Equal(t, bob.ID, data["user_id"])
	assert.Equal(t, "bob@example.com", data["email"])
	assert.Equal(t, "bob@example.com", data["display_name"])
	assert.Equal(t, "USER", data["role"])
	assert.NotEmpty(t, data["expires_at"])
	assert.NotContains(t, string(resp.raw), "password")
}

func TestLogin_FailureResponsesAreIdentical(t *testing.T) {
	srv := newTestServer(t)
	srv.addUser(t, "bob@example.com", "bob-password", domain.RoleUser)

	unknown := srv.do(t, fiber.MethodPost, "/api/auth/login", "", map[string]string{"email": "ghost@example.com", "password": "bob-password"})
	mismatch := srv.do(t, fiber.MethodPost, "/api/auth/login", "", map[string]string{"email": "bob@example.com", "password": "not-it"})

	assert.Equal(t, fiber.StatusUnauthorized, unknown.status)
	assert.Equal(t, unknown.status, mismatch.status)
	assert.Equal(t, "AUTHENTICATION_FAILED", unknown.errorCode())
	assert.Equal(t, string(unknown.raw), string(mismatch.raw))
}

func TestLogin_EmptyFieldsFailLikeBadCredentials(t *testing.T) {
	srv := newTestServer(t)
	srv.addUser(t, "bob@example.com", "bob-password", domain.RoleUser)

	mismatch := srv.do(t, fiber.MethodPost, "/api/auth/login", "", map[string]string{"email": "bob@example.com", "password": "not-it"})
	for _, payload := range []map[string]string{
		{"email": "", "password": "bob-password"},
		{"email": "bob@example.com", "password": ""},
		{},
	} {
		resp := srv.do(t, fiber.MethodPost, "/api/auth/login", "", payload)
		assert.Equal(t, fiber.StatusUnauthorized, resp.status)
		assert.Equal(t, string(mismatch.raw), string(resp.raw))
	}
}

func TestTaskAccessScenario(t *testing.T) {
	srv := newTestServer(t)
	srv.addUser(t, "admin@example.com", "admin-password", domain.RoleAdmin)
	alice := srv.addUser(t, "alice@example.com", "alice-password", domain.RoleUser)
	bob := srv.addUser(t, "bob@example.com", "bob-password", domain.RoleUser)
	aliceTask := srv.addTask(t, "alice's task", alice)
	bobTask := srv.addTask(t, "bob's task", bob)

	bobToken := srv.login(t, "bob@example.com", "bob-password")
	adminToken := srv.login(t, "admin@example.com", "admin-password")

	resp := srv.do(t, fiber.MethodGet, "/api/tasks/"+aliceTask.ID, bobToken, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.status)
	assert.Equal(t, "FORBIDDEN", resp.errorCode())

	resp = srv.do(t, fiber.MethodGet, "/api/tasks/"+bobTask.ID, bobToken, nil)
	assert.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, bobTask.ID, resp.data()["id"])

	resp = srv.do(t, fiber.MethodGet, "/api/tasks/"+bobTask.ID, "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.status)
	assert.Equal(t, "UNAUTHORIZED", resp.errorCode())

	for _, id := range []string{aliceTask.ID, bobTask.ID} {
		resp = srv.do(t, fiber.MethodGet, "/api/tasks/"+id, adminToken, nil)
		assert.Equal(t, fiber.StatusOK, resp.status)
	}

	resp = srv.do(t, fiber.MethodPut, "/api/tasks/"+aliceTask.ID, bobToken, map[string]any{"title": "mine now"})
	assert.Equal(t, fiber.StatusForbidden, resp.status)

	resp = srv.do(t, fiber.MethodPut, "/api/tasks/"+bobTask.ID, bobToken, map[string]any{"title": "renamed", "status": "DONE"})
	assert.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, "DONE", resp.data()["status"])
	assert.Equal(t, bob.ID, resp.data()["owner_id"])
}

func TestCreateTaskScenario(t *testing.T) {
	srv := newTestServer(t)
	srv.addUser(t, "admin@example.com", "admin-password", domain.RoleAdmin)
	bob := srv.addUser(t, "bob@example.com", "bob-password", domain.RoleUser)
	bobToken := srv.login(t, "bob@example.com", "bob-password")
	adminToken := srv.login(t, "admin@example.com", "admin-password")
	payload := map[string]any{"title": "write docs", "priority": "HIGH", "due_date": "2026-05-10"}

	resp := srv.do(t, fiber.MethodPost, "/api/tasks", bobToken, payload)
	assert.Equal(t, fiber.StatusForbidden, resp.status)

	resp = srv.do(t, fiber.MethodPost, "/api/tasks", adminToken, payload)
	require.Equal(t, fiber.StatusOK, resp.status, string(resp.raw))
	created := resp.data()
	assert.Nil(t, created["owner_id"])
	assert.Equal(t, "HIGH", created["priority"])
	assert.Equal(t, "2026-05-10", created["due_date"])
	taskID, _ := created["id"].(string)

	resp = srv.do(t, fiber.MethodGet, "/api/tasks/"+taskID, bobToken, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.status)

	resp = srv.do(t, fiber.MethodPost, "/api/tasks/"+taskID+"/assign/"+bob.ID, adminToken, nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, bob.ID, resp.data()["owner_id"])

	resp = srv.do(t, fiber.MethodGet, "/api/tasks/"+taskID, bobToken, nil)
	assert.Equal(t, fiber.StatusOK, resp.status)
}

func TestExpiredTokenScenario(t *testing.T) {
	srv := newTestServer(t)
	bob := srv.addUser(t, "bob@example.com", "bob-password", domain.RoleUser)
	task := srv.addTask(t, "bob's task", bob)
	token := srv.login(t, "bob@example.com", "bob-password")

	later := srv.clock.Add(24*time.Hour + time.Second)
	srv.clock = &later

	resp := srv.do(t, fiber.MethodGet, "/api/tasks/"+task.ID, token, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.status)
	assert.Equal(t, "TOKEN_EXPIRED", resp.errorCode())
}

func TestRejectedTokens(t *testing.T) {
	srv := newTestServer(t)
	bob := srv.addUser(t, "bob@example.com", "bob-password", domain.RoleUser)
	task := srv.addTask(t, "bob's task", bob)
	token := srv.login(t, "bob@example.com", "bob-password")

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{name: "wrong scheme", header: "Basic " + token, code: "TOKEN_MALFORMED"},
		{name: "garbage", header: "Bearer not.a.token", code: "TOKEN_MALFORMED"},
		{name: "tampered", header: "Bearer " + token[:len(token)-2] + flip(token[len(token)-2:]), code: "TOKEN_INVALID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/api/tasks/"+task.ID, nil)
			req.Header.Set(fiber.HeaderAuthorization, tt.header)
			resp, err := srv.app.Test(req, -1)
			require.NoError(t, err)
			defer resp.Body.Close()

			body := map[string]map[string]any{}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, tt.code, body["error"]["code"])
		})
	}
}

// flip changes the first character of a base64url fragment to another
// character of the same alphabet.
func flip(s string) string {
	b := []byte(s)
	if b[0] == 'A' {
		b[0] = 'B'
	} else {
		b[0] = 'A'
	}
	return string(b)
}

func TestListTasksScenario(t *testing.T) {
	srv := newTestServer(t)
	srv.addUser(t, "admin@example.com", "admin-password", domain.RoleAdmin)
	alice := srv.addUser(t, "alice@example.com", "alice-password", domain.RoleUser)
	bob := srv.addUser(t, "bob@example.com", "bob-password", domain.RoleUser)
	for i := 0; i < 4; i++ {
		srv.addTask(t, "alice", alice)
	}
	for i := 0; i < 3; i++ {
		srv.addTask(t, "bob", bob)
	}
	bobToken := srv.login(t, "bob@example.com", "bob-password")
	adminToken := srv.login(t, "admin@example.com", "admin-password")

	resp := srv.do(t, fiber.MethodGet, "/api/tasks?page=0&size=2", bobToken, nil)
	require.Equal(t, fiber.StatusOK, resp.status, string(resp.raw))
	assert.EqualValues(t, 3, resp.body["total_elements"])
	assert.EqualValues(t, 2, resp.body["total_pages"])
	assert.Len(t, resp.body["data"], 2)

	resp = srv.do(t, fiber.MethodGet, "/api/tasks", adminToken, nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.EqualValues(t, 7, resp.body["total_elements"])
	assert.EqualValues(t, 5, resp.body["size"])

	resp = srv.do(t, fiber.MethodGet, "/api/tasks", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.status)

	resp = srv.do(t, fiber.MethodGet, "/api/tasks?sort_by=password_hash", adminToken, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.status)
	assert.Equal(t, "VALIDATION_FAILED", resp.errorCode())

	resp = srv.do(t, fiber.MethodGet, "/api/tasks?status=ARCHIVED", adminToken, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.status)
}

func TestUserManagementScenario(t *testing.T) {
	srv := newTestServer(t)
	srv.addUser(t, "admin@example.com", "admin-password", domain.RoleAdmin)
	srv.addUser(t, "bob@example.com", "bob-password", domain.RoleUser)
	bobToken := srv.login(t, "bob@example.com", "bob-password")
	adminToken := srv.login(t, "admin@example.com", "admin-password")
	carol := map[string]any{"username": "carol", "email": "carol@example.com", "password": "carol-password"}

	resp := srv.do(t, fiber.MethodPost, "/api/users", bobToken, carol)
	assert.Equal(t, fiber.StatusForbidden, resp.status)

	resp = srv.do(t, fiber.MethodGet, "/api/users", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.status)

	resp = srv.do(t, fiber.MethodPost, "/api/users", adminToken, carol)
	require.Equal(t, fiber.StatusCreated, resp.status, string(resp.raw))
	assert.Equal(t, "USER", resp.data()["role"])
	assert.NotContains(t, string(resp.raw), "password")
	carolID, _ := resp.data()["id"].(string)

	resp = srv.do(t, fiber.MethodPost, "/api/users", adminToken, carol)
	assert.Equal(t, fiber.StatusConflict, resp.status)

	resp = srv.do(t, fiber.MethodPost, "/api/users", adminToken, map[string]any{
		"username": "root", "email": "root@example.com", "password": "root-password", "role": "SUPERUSER",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.status)
	assert.Equal(t, "VALIDATION_FAILED", resp.errorCode())

	resp = srv.do(t, fiber.MethodPost, "/api/users", adminToken, map[string]any{
		"username": "dan", "email": "dan@example.com", "password": strings.Repeat("x", 80),
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.status)
	assert.Equal(t, "VALIDATION_FAILED", resp.errorCode())

	resp = srv.do(t, fiber.MethodPut, "/api/users/"+carolID, adminToken, map[string]any{
		"username": "carol", "email": "carol@example.com", "password": strings.Repeat("x", 80),
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.status)
	assert.Equal(t, "VALIDATION_FAILED", resp.errorCode())

	srv.login(t, "carol@example.com", "carol-password")

	resp = srv.do(t, fiber.MethodDelete, "/api/users/"+carolID, adminToken, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.status)

	resp = srv.do(t, fiber.MethodGet, "/api/users/"+carolID, adminToken, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.status)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.do(t, fiber.MethodGet, "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.status)

	resp = srv.do(t, fiber.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, "ready", resp.body["status"])

	resp = srv.do(t, fiber.MethodGet, "/metrics", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.status)
	assert.Contains(t, string(resp.raw), "tasks_test_http_requests_total")
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.do(t, fiber.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.status)
	assert.Equal(t, "NOT_FOUND", resp.errorCode())
}
