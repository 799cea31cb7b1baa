package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/task-service/internal/domain"
)

// TaskRepository encapsulates task persistence. Reads include the owner's
// email so ownership can be decided without a second lookup.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) error
	Update(ctx context.Context, task *domain.Task) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	Assign(ctx context.Context, taskID, userID string) error
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, int, error)
	ListOverdue(ctx context.Context, asOf time.Time) ([]domain.Task, error)
}

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository instantiates repository.
func NewTaskRepository(pool *pgxpool.Pool) TaskRepository {
	return &taskRepository{pool: pool}
}

const taskSelect = `
        SELECT t.id, t.title, t.description, t.priority, t.status, t.due_date,
               t.owner_id, u.email, t.created_at, t.updated_at
        FROM tasks t LEFT JOIN users u ON u.id = t.owner_id`

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) error {
	const query = `
        INSERT INTO tasks (title, description, priority, status, due_date, owner_id)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		task.Title,
		task.Description,
		task.Priority,
		task.Status,
		task.DueDate,
		task.OwnerID,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
}

// Update writes the editable fields. Ownership only changes through Assign.
func (r *taskRepository) Update(ctx context.Context, task *domain.Task) error {
	const query = `
        UPDATE tasks SET title=$1, description=$2, priority=$3, status=$4, due_date=$5, updated_at=NOW()
        WHERE id=$6
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		task.Title,
		task.Description,
		task.Priority,
		task.Status,
		task.DueDate,
		task.ID,
	).Scan(&task.UpdatedAt)
	return translateError(err)
}

func (r *taskRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *taskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	task, err := scanTask(r.pool.QueryRow(ctx, taskSelect+` WHERE t.id=$1`, id))
	if err != nil {
		return nil, translateError(err)
	}
	return task, nil
}

func (r *taskRepository) Assign(ctx context.Context, taskID, userID string) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE tasks SET owner_id=$1, updated_at=NOW() WHERE id=$2`, userID, taskID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns one page and the total number of matching rows. Both queries
// share the same WHERE clause, so an owner scope constrains the count too.
func (r *taskRepository) List(ctx context.Context, filter TaskFilter) ([]domain.Task, int, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		clauses = append(clauses, fmt.Sprintf("t.owner_id=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("t.status=$%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		clauses = append(clauses, fmt.Sprintf("t.priority=$%d", len(args)))
	}
	if filter.DueDate != nil {
		args = append(args, *filter.DueDate)
		clauses = append(clauses, fmt.Sprintf("t.due_date=$%d", len(args)))
	}
	where := strings.Join(clauses, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM tasks t WHERE ` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	column, ok := sortColumns[filter.SortBy]
	if !ok {
		column = sortColumns[SortByID]
	}
	query := fmt.Sprintf(`%s WHERE %s ORDER BY %s, t.id LIMIT %d OFFSET %d`,
		taskSelect, where, column, filter.limit(), filter.offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

func (r *taskRepository) ListOverdue(ctx context.Context, asOf time.Time) ([]domain.Task, error) {
	query := taskSelect + ` WHERE t.due_date <= $1 AND t.status <> $2 ORDER BY t.due_date, t.id`
	rows, err := r.pool.Query(ctx, query, asOf, domain.TaskStatusDone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var task domain.Task
	if err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Priority,
		&task.Status,
		&task.DueDate,
		&task.OwnerID,
		&task.OwnerEmail,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &task, nil
}

func scanTasks(rows pgx.Rows) ([]domain.Task, error) {
	var result []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *task)
	}
	return result, rows.Err()
}
