package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TaskStatus enumerates task lifecycle states.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "TODO"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusDone       TaskStatus = "DONE"
)

// TaskPriority enumerates task urgency.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "LOW"
	TaskPriorityMedium TaskPriority = "MEDIUM"
	TaskPriorityHigh   TaskPriority = "HIGH"
)

// DateLayout is the wire and storage format of due dates.
const DateLayout = "2006-01-02"

// ParseTaskStatus validates a status string.
func ParseTaskStatus(s string) (TaskStatus, error) {
	switch st := TaskStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return st, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// ParseTaskPriority validates a priority string.
func ParseTaskPriority(s string) (TaskPriority, error) {
	switch p := TaskPriority(strings.ToUpper(strings.TrimSpace(s))); p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return p, nil
	default:
		return "", fmt.Errorf("unknown priority %q", s)
	}
}

func (s *TaskStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTaskStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (p *TaskPriority) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTaskPriority(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Task is a protected resource. A task without an owner is visible to
// administrators only.
type Task struct {
	ID          string
	Title       string
	Description string
	Priority    TaskPriority
	Status      TaskStatus
	DueDate     *time.Time
	OwnerID     *string
	OwnerEmail  *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasOwner reports whether the task has been assigned.
func (t *Task) HasOwner() bool {
	return t.OwnerID != nil && *t.OwnerID != ""
}
