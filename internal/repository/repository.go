package repository

import (
	"errors"
	"time"

	"github.com/spec-kit/task-service/internal/domain"
)

var (
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail is returned when a credential name is already taken.
	ErrDuplicateEmail = errors.New("email already registered")
)

// TaskSortField is a whitelisted ordering for task listings.
type TaskSortField string

const (
	SortByID        TaskSortField = "id"
	SortByTitle     TaskSortField = "title"
	SortByPriority  TaskSortField = "priority"
	SortByStatus    TaskSortField = "status"
	SortByDueDate   TaskSortField = "due_date"
	SortByCreatedAt TaskSortField = "created_at"
)

var sortColumns = map[TaskSortField]string{
	SortByID:        "t.id",
	SortByTitle:     "t.title",
	SortByPriority:  "t.priority",
	SortByStatus:    "t.status",
	SortByDueDate:   "t.due_date",
	SortByCreatedAt: "t.created_at",
}

// ParseTaskSortField validates a sort parameter. Empty selects SortByID.
func ParseTaskSortField(s string) (TaskSortField, bool) {
	if s == "" {
		return SortByID, true
	}
	field := TaskSortField(s)
	if field == "dueDate" {
		field = SortByDueDate
	}
	_, ok := sortColumns[field]
	return field, ok
}

// TaskFilter captures listing constraints. OwnerID, when set, is the
// mandatory scope of a non-admin caller and is applied by the query itself.
type TaskFilter struct {
	OwnerID  *string
	Status   *domain.TaskStatus
	Priority *domain.TaskPriority
	DueDate  *time.Time
	SortBy   TaskSortField
	Limit    int
	Offset   int
}

func (f TaskFilter) limit() int {
	if f.Limit <= 0 {
		return 5
	}
	return f.Limit
}

func (f TaskFilter) offset() int {
	if f.Offset < 0 {
		return 0
	}
	return f.Offset
}
