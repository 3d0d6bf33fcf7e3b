package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/taskmaster/todos/internal/domain/entities"
	"github.com/taskmaster/todos/internal/domain/query"
	"github.com/taskmaster/todos/internal/infrastructure/database"
	"github.com/taskmaster/todos/internal/ports"
)

const todoColumnList = `id, title, description, is_done, owner_id, created_at, updated_at`

// TodoRepository stores todos in PostgreSQL
type TodoRepository struct {
	db database.DBTX
}

func NewTodoRepository(db database.DBTX) *TodoRepository {
	return &TodoRepository{db: db}
}

func (r *TodoRepository) Create(ctx context.Context, todo *entities.Todo) error {
	query := `
		INSERT INTO todos (title, description, is_done, owner_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		todo.Title, todo.Description, todo.IsDone, todo.OwnerID,
	).Scan(&todo.ID, &todo.CreatedAt, &todo.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create todo: %w", err)
	}

	return nil
}

func (r *TodoRepository) GetByID(ctx context.Context, id int64) (*entities.Todo, error) {
	query := `SELECT ` + todoColumnList + ` FROM todos WHERE id = $1`

	var todo entities.Todo
	if err := r.db.GetContext(ctx, &todo, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrTodoNotFound
		}
		return nil, fmt.Errorf("get todo by id: %w", err)
	}

	return &todo, nil
}

func (r *TodoRepository) List(ctx context.Context, spec query.Spec) ([]*entities.Todo, int64, error) {
	where, args, err := whereClause(todoColumns, spec.Where)
	if err != nil {
		return nil, 0, fmt.Errorf("list todos: %w", err)
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM todos`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count todos: %w", err)
	}

	order, err := orderClause(todoColumns, spec)
	if err != nil {
		return nil, 0, fmt.Errorf("list todos: %w", err)
	}
	page, args := pageClause(args, spec)

	todos := []*entities.Todo{}
	listQuery := `SELECT ` + todoColumnList + ` FROM todos` + where + order + page
	if err := r.db.SelectContext(ctx, &todos, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list todos: %w", err)
	}

	return todos, total, nil
}

// Update writes only the fields present in patch and returns the stored
// row; owner_id is never changed
func (r *TodoRepository) Update(ctx context.Context, id int64, patch ports.TodoPatch) (*entities.Todo, error) {
	query := `
		UPDATE todos
		SET title = COALESCE($2, title),
			description = COALESCE($3, description),
			is_done = COALESCE($4, is_done),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING ` + todoColumnList

	var todo entities.Todo
	if err := r.db.GetContext(ctx, &todo, query, id, patch.Title, patch.Description, patch.IsDone); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrTodoNotFound
		}
		return nil, fmt.Errorf("update todo: %w", err)
	}

	return &todo, nil
}

func (r *TodoRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM todos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	if rows == 0 {
		return entities.ErrTodoNotFound
	}

	return nil
}
