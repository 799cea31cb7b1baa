package events

import (
	"time"

	"github.com/spec-kit/task-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTaskCreated  EventType = "task_created"
	EventTaskAssigned EventType = "task_assigned"
	EventTaskOverdue  EventType = "task_overdue"
)

// Actor identifies who triggered an event. System events carry no credential.
type Actor struct {
	CredentialName string      `json:"credential_name,omitempty"`
	Role           domain.Role `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TaskID    string      `json:"task_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TaskCreatedPayload payload.
type TaskCreatedPayload struct {
	Title    string              `json:"title"`
	Priority domain.TaskPriority `json:"priority"`
}

// TaskAssignedPayload payload.
type TaskAssignedPayload struct {
	OwnerID    string `json:"owner_id"`
	OwnerEmail string `json:"owner_email"`
	Title      string `json:"title"`
}

// TaskOverduePayload payload. OwnerEmail is empty for unowned tasks.
type TaskOverduePayload struct {
	Title      string    `json:"title"`
	DueDate    time.Time `json:"due_date"`
	OwnerEmail string    `json:"owner_email,omitempty"`
}
