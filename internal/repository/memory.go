package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/task-service/internal/domain"
)

// MemoryStore keeps users and tasks in process memory. It backs the service
// when no Postgres DSN is configured and is used by tests.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]domain.User
	tasks map[string]domain.Task
	now   func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]domain.User),
		tasks: make(map[string]domain.Task),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Users returns the credential store view.
func (s *MemoryStore) Users() UserRepository {
	return memoryUsers{s}
}

// Tasks returns the task store view.
func (s *MemoryStore) Tasks() TaskRepository {
	return memoryTasks{s}
}

type memoryUsers struct{ s *MemoryStore }

func (m memoryUsers) Create(_ context.Context, user *domain.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, exists := m.s.userByEmailLocked(user.Email); exists {
		return ErrDuplicateEmail
	}
	now := m.s.now()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	m.s.users[user.ID] = *user
	return nil
}

func (m memoryUsers) Update(_ context.Context, user *domain.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	current, ok := m.s.users[user.ID]
	if !ok {
		return ErrNotFound
	}
	if other, exists := m.s.userByEmailLocked(user.Email); exists && other.ID != user.ID {
		return ErrDuplicateEmail
	}
	user.CreatedAt = current.CreatedAt
	user.UpdatedAt = m.s.now()
	m.s.users[user.ID] = *user
	return nil
}

func (m memoryUsers) Delete(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, ok := m.s.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.s.users, id)
	for taskID, task := range m.s.tasks {
		if task.OwnerID != nil && *task.OwnerID == id {
			task.OwnerID = nil
			m.s.tasks[taskID] = task
		}
	}
	return nil
}

func (m memoryUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	user, ok := m.s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (m memoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	user, ok := m.s.userByEmailLocked(email)
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (m memoryUsers) ExistsByEmail(_ context.Context, email string) (bool, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	_, ok := m.s.userByEmailLocked(email)
	return ok, nil
}

func (m memoryUsers) List(_ context.Context) ([]domain.User, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	users := make([]domain.User, 0, len(m.s.users))
	for _, user := range m.s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.Before(users[j].CreatedAt)
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}

func (s *MemoryStore) userByEmailLocked(email string) (domain.User, bool) {
	needle := domain.NormalizeEmail(email)
	for _, user := range s.users {
		if domain.NormalizeEmail(user.Email) == needle {
			return user, true
		}
	}
	return domain.User{}, false
}

type memoryTasks struct{ s *MemoryStore }

func (m memoryTasks) Create(_ context.Context, task *domain.Task) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	now := m.s.now()
	task.ID = uuid.NewString()
	task.CreatedAt = now
	task.UpdatedAt = now
	stored := *task
	stored.OwnerEmail = nil
	m.s.tasks[task.ID] = stored
	return nil
}

func (m memoryTasks) Update(_ context.Context, task *domain.Task) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	current, ok := m.s.tasks[task.ID]
	if !ok {
		return ErrNotFound
	}
	current.Title = task.Title
	current.Description = task.Description
	current.Priority = task.Priority
	current.Status = task.Status
	current.DueDate = task.DueDate
	current.UpdatedAt = m.s.now()
	m.s.tasks[task.ID] = current
	task.UpdatedAt = current.UpdatedAt
	return nil
}

func (m memoryTasks) Delete(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, ok := m.s.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(m.s.tasks, id)
	return nil
}

func (m memoryTasks) GetByID(_ context.Context, id string) (*domain.Task, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	task, ok := m.s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.s.withOwnerLocked(task), nil
}

func (m memoryTasks) Assign(_ context.Context, taskID, userID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	task, ok := m.s.tasks[taskID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := m.s.users[userID]; !ok {
		return ErrNotFound
	}
	owner := userID
	task.OwnerID = &owner
	task.UpdatedAt = m.s.now()
	m.s.tasks[taskID] = task
	return nil
}

func (m memoryTasks) List(_ context.Context, filter TaskFilter) ([]domain.Task, int, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	matched := make([]domain.Task, 0)
	for _, task := range m.s.tasks {
		if !matchesFilter(task, filter) {
			continue
		}
		matched = append(matched, *m.s.withOwnerLocked(task))
	}
	sortTasks(matched, filter.SortBy)

	total := len(matched)
	start := filter.offset()
	if start > total {
		start = total
	}
	end := start + filter.limit()
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (m memoryTasks) ListOverdue(_ context.Context, asOf time.Time) ([]domain.Task, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	var overdue []domain.Task
	for _, task := range m.s.tasks {
		if task.DueDate == nil || task.DueDate.After(asOf) || task.Status == domain.TaskStatusDone {
			continue
		}
		overdue = append(overdue, *m.s.withOwnerLocked(task))
	}
	sortTasks(overdue, SortByDueDate)
	return overdue, nil
}

func (s *MemoryStore) withOwnerLocked(task domain.Task) *domain.Task {
	task.OwnerEmail = nil
	if task.OwnerID != nil {
		if owner, ok := s.users[*task.OwnerID]; ok {
			email := owner.Email
			task.OwnerEmail = &email
		}
	}
	return &task
}

func matchesFilter(task domain.Task, filter TaskFilter) bool {
	if filter.OwnerID != nil && (task.OwnerID == nil || *task.OwnerID != *filter.OwnerID) {
		return false
	}
	if filter.Status != nil && task.Status != *filter.Status {
		return false
	}
	if filter.Priority != nil && task.Priority != *filter.Priority {
		return false
	}
	if filter.DueDate != nil && (task.DueDate == nil || !sameDay(*task.DueDate, *filter.DueDate)) {
		return false
	}
	return true
}

func sameDay(a, b time.Time) bool {
	return a.Format(domain.DateLayout) == b.Format(domain.DateLayout)
}

func sortTasks(tasks []domain.Task, field TaskSortField) {
	key := func(t domain.Task) string {
		switch field {
		case SortByTitle:
			return strings.ToLower(t.Title)
		case SortByPriority:
			return string(t.Priority)
		case SortByStatus:
			return string(t.Status)
		case SortByDueDate:
			if t.DueDate == nil {
				// NULLs sort last, as in Postgres ascending order.
				return "~"
			}
			return t.DueDate.Format(domain.DateLayout)
		case SortByCreatedAt:
			return t.CreatedAt.UTC().Format("2006-01-02T15:04:05.000000000")
		default:
			return t.ID
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		ki, kj := key(tasks[i]), key(tasks[j])
		if ki != kj {
			return ki < kj
		}
		return tasks[i].ID < tasks[j].ID
	})
}
