package dto

import (
	"time"

	"github.com/spec-kit/task-service/internal/domain"
)

// TaskRequest payload for create and update. DueDate uses YYYY-MM-DD.
type TaskRequest struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Priority    domain.TaskPriority `json:"priority"`
	Status      domain.TaskStatus   `json:"status"`
	DueDate     *string             `json:"due_date"`
}

// TaskResponse representation.
type TaskResponse struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Priority    domain.TaskPriority `json:"priority"`
	Status      domain.TaskStatus   `json:"status"`
	DueDate     *string             `json:"due_date"`
	OwnerID     *string             `json:"owner_id"`
	OwnerEmail  *string             `json:"owner_email,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// TaskPageResponse is one page of a task listing.
type TaskPageResponse struct {
	Data          []TaskResponse `json:"data"`
	Page          int            `json:"page"`
	Size          int            `json:"size"`
	TotalElements int            `json:"total_elements"`
	TotalPages    int            `json:"total_pages"`
}

// NewTaskResponse maps a domain task.
func NewTaskResponse(t *domain.Task) TaskResponse {
	resp := TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		Status:      t.Status,
		OwnerID:     t.OwnerID,
		OwnerEmail:  t.OwnerEmail,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.DueDate != nil {
		due := t.DueDate.Format(domain.DateLayout)
		resp.DueDate = &due
	}
	return resp
}

// NewTaskResponses maps a slice, never returning nil.
func NewTaskResponses(tasks []domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, NewTaskResponse(&tasks[i]))
	}
	return out
}
