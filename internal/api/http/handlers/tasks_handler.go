package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/task-service/internal/api/dto"
	"github.com/spec-kit/task-service/internal/auth"
	"github.com/spec-kit/task-service/internal/domain"
	"github.com/spec-kit/task-service/internal/repository"
	"github.com/spec-kit/task-service/internal/service"
	apperrors "github.com/spec-kit/task-service/pkg/util/errorutil"
)

// TasksHandler exposes task endpoints.
type TasksHandler struct {
	tasks *service.TaskService
}

// NewTasksHandler constructs handler.
func NewTasksHandler(taskService *service.TaskService) *TasksHandler {
	return &TasksHandler{tasks: taskService}
}

// Create handles POST /api/tasks.
func (h *TasksHandler) Create(c *fiber.Ctx) error {
	input, err := parseTaskRequest(c)
	if err != nil {
		return err
	}
	task, err := h.tasks.Create(c.UserContext(), auth.PrincipalFromContext(c), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTaskResponse(task)})
}

// Get handles GET /api/tasks/:id.
func (h *TasksHandler) Get(c *fiber.Ctx) error {
	task, err := h.tasks.Get(c.UserContext(), auth.PrincipalFromContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTaskResponse(task)})
}

// Update handles PUT /api/tasks/:id.
func (h *TasksHandler) Update(c *fiber.Ctx) error {
	input, err := parseTaskRequest(c)
	if err != nil {
		return err
	}
	task, err := h.tasks.Update(c.UserContext(), auth.PrincipalFromContext(c), c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTaskResponse(task)})
}

// Delete handles DELETE /api/tasks/:id.
func (h *TasksHandler) Delete(c *fiber.Ctx) error {
	if err := h.tasks.Delete(c.UserContext(), auth.PrincipalFromContext(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Assign handles POST /api/tasks/:id/assign/:userId.
func (h *TasksHandler) Assign(c *fiber.Ctx) error {
	task, err := h.tasks.Assign(c.UserContext(), auth.PrincipalFromContext(c), c.Params("id"), c.Params("userId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTaskResponse(task)})
}

// List handles GET /api/tasks.
func (h *TasksHandler) List(c *fiber.Ctx) error {
	query, err := parseTaskListQuery(c)
	if err != nil {
		return err
	}
	page, err := h.tasks.List(c.UserContext(), auth.PrincipalFromContext(c), query)
	if err != nil {
		return err
	}
	return c.JSON(dto.TaskPageResponse{
		Data:          dto.NewTaskResponses(page.Tasks),
		Page:          page.Page,
		Size:          page.Size,
		TotalElements: page.TotalElements,
		TotalPages:    page.TotalPages,
	})
}

func parseTaskRequest(c *fiber.Ctx) (service.TaskInput, error) {
	var req dto.TaskRequest
	if err := parseBody(c, &req); err != nil {
		return service.TaskInput{}, err
	}
	input := service.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Status:      req.Status,
	}
	if req.DueDate != nil && *req.DueDate != "" {
		due, err := parseDate(*req.DueDate)
		if err != nil {
			return service.TaskInput{}, apperrors.NewValidationError("invalid due_date", map[string]any{"due_date": "must be YYYY-MM-DD"})
		}
		input.DueDate = &due
	}
	return input, nil
}

func parseTaskListQuery(c *fiber.Ctx) (service.TaskListQuery, error) {
	var query service.TaskListQuery
	details := map[string]any{}

	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			details["page"] = "must be an integer"
		}
		query.Page = page
	}
	if raw := c.Query("size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size == 0 {
			details["size"] = "must be between 1 and 100"
		}
		query.Size = size
	}
	if raw := c.Query("status"); raw != "" {
		status, err := domain.ParseTaskStatus(raw)
		if err != nil {
			details["status"] = "must be TODO, IN_PROGRESS or DONE"
		}
		query.Status = &status
	}
	if raw := c.Query("priority"); raw != "" {
		priority, err := domain.ParseTaskPriority(raw)
		if err != nil {
			details["priority"] = "must be LOW, MEDIUM or HIGH"
		}
		query.Priority = &priority
	}
	if raw := c.Query("due_date"); raw != "" {
		due, err := parseDate(raw)
		if err != nil {
			details["due_date"] = "must be YYYY-MM-DD"
		}
		query.DueDate = &due
	}
	sortBy, ok := repository.ParseTaskSortField(c.Query("sort_by"))
	if !ok {
		details["sort_by"] = "unsupported sort field"
	}
	query.SortBy = sortBy

	if len(details) > 0 {
		return service.TaskListQuery{}, apperrors.NewValidationError("invalid query", details)
	}
	return query, nil
}

func parseDate(raw string) (time.Time, error) {
	return time.ParseInLocation(domain.DateLayout, raw, time.UTC)
}
