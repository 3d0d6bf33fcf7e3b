package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/taskmaster/todos/internal/domain/entities"
	"github.com/taskmaster/todos/internal/domain/policy"
	"github.com/taskmaster/todos/internal/domain/query"
	"github.com/taskmaster/todos/internal/infrastructure/logger"
	"github.com/taskmaster/todos/internal/ports"
)

// TodoService handles todo operations on behalf of an authenticated requester
type TodoService struct {
	todos  ports.TodoRepository
	logger *logger.Logger
	now    func() time.Time
}

// NewTodoService creates a new todo service
func NewTodoService(todos ports.TodoRepository, log *logger.Logger) *TodoService {
	return &TodoService{
		todos:  todos,
		logger: log.WithComponent("todos"),
		now:    time.Now,
	}
}

// Create stores a todo owned by requester
func (s *TodoService) Create(ctx context.Context, requester policy.Requester, req ports.CreateTodoRequest) (*entities.Todo, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, entities.BadRequest("Title is required")
	}

	todo := &entities.Todo{
		Title:       req.Title,
		Description: req.Description,
		OwnerID:     requester.ID,
	}
	if req.IsDone != nil {
		todo.IsDone = *req.IsDone
	}

	if err := s.todos.Create(ctx, todo); err != nil {
		return nil, fmt.Errorf("failed to create todo: %w", err)
	}

	s.logger.Infow("Todo created", "todo_id", todo.ID, "owner_id", todo.OwnerID)
	return todo, nil
}

// GetByID returns the todo if requester may see it
func (s *TodoService) GetByID(ctx context.Context, id int64, requester policy.Requester) (*entities.Todo, error) {
	todo, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := policy.Authorize(todo.OwnerID, requester); err != nil {
		s.logger.LogSecurityEvent("access_denied", "not_owner", map[string]interface{}{
			"todo_id":      id,
			"requester_id": requester.ID,
		})
		return nil, err
	}

	return todo, nil
}

// List returns one page of todos visible to requester
func (s *TodoService) List(ctx context.Context, requester policy.Requester, params query.Params) (*ports.PaginatedResponse[*entities.Todo], error) {
	spec, err := query.TodoSchema.Build(params, requester, s.now())
	if err != nil {
		return nil, err
	}

	todos, total, err := s.todos.List(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}

	return &ports.PaginatedResponse[*entities.Todo]{
		Data: todos,
		Meta: query.NewMeta(total, spec),
	}, nil
}

// Update applies the fields present in req and keeps the rest
func (s *TodoService) Update(ctx context.Context, id int64, requester policy.Requester, req ports.UpdateTodoRequest) (*entities.Todo, error) {
	todo, err := s.GetByID(ctx, id, requester)
	if err != nil {
		return nil, err
	}

	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return nil, entities.BadRequest("Title must not be empty")
	}

	updated, err := s.todos.Update(ctx, todo.ID, ports.TodoPatch{
		Title:       req.Title,
		Description: req.Description,
		IsDone:      req.IsDone,
	})
	if err != nil {
		if errors.Is(err, entities.ErrTodoNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update todo: %w", err)
	}

	return updated, nil
}

// Delete removes the todo permanently
func (s *TodoService) Delete(ctx context.Context, id int64, requester policy.Requester) (*ports.MessageResponse, error) {
	if _, err := s.GetByID(ctx, id, requester); err != nil {
		return nil, err
	}

	if err := s.todos.Delete(ctx, id); err != nil {
		if errors.Is(err, entities.ErrTodoNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to delete todo: %w", err)
	}

	s.logger.LogUserAction(requester.ID, "todo_deleted", map[string]interface{}{"todo_id": id})
	return &ports.MessageResponse{Message: "Todo deleted successfully"}, nil
}

func (s *TodoService) load(ctx context.Context, id int64) (*entities.Todo, error) {
	todo, err := s.todos.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, entities.ErrTodoNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get todo: %w", err)
	}
	return todo, nil
}
