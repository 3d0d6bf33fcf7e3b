package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster/todos/internal/infrastructure/logger"
	"github.com/taskmaster/todos/internal/ports"
)

// TodoHandler handles todo-related requests
type TodoHandler struct {
	todoService ports.TodoService
	logger      *logger.Logger
}

// NewTodoHandler creates a new todo handler
func NewTodoHandler(todoService ports.TodoService, log *logger.Logger) *TodoHandler {
	return &TodoHandler{
		todoService: todoService,
		logger:      log,
	}
}

// CreateTodo godoc
// @Summary Create a todo
// @Description The todo is always owned by the caller
// @Tags todos
// @Accept json
// @Produce json
// @Param request body ports.CreateTodoRequest true "Todo data"
// @Success 201 {object} entities.Todo
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /todos [post]
func (h *TodoHandler) CreateTodo(c echo.Context) error {
	requester, err := mustRequester(c)
	if err != nil {
		return err
	}

	var req ports.CreateTodoRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	todo, err := h.todoService.Create(c.Request().Context(), requester, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, todo)
}

// ListTodos godoc
// @Summary List todos
// @Description Members see their own todos, admins see all
// @Tags todos
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size (max 100)" default(10)
// @Param isDone query bool false "Completion filter"
// @Param search query string false "Matches title or description"
// @Param fromDate query string false "Created on or after (RFC 3339 or YYYY-MM-DD)"
// @Param toDate query string false "Created on or before (RFC 3339 or YYYY-MM-DD)"
// @Param sortBy query string false "id, title, isDone, createdAt, updatedAt"
// @Param sortOrder query string false "asc or desc"
// @Success 200 {object} ports.PaginatedResponse[entities.Todo]
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /todos [get]
func (h *TodoHandler) ListTodos(c echo.Context) error {
	requester, err := mustRequester(c)
	if err != nil {
		return err
	}

	params, err := parseListParams(c)
	if err != nil {
		return err
	}

	page, err := h.todoService.List(c.Request().Context(), requester, params)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, page)
}

// GetTodo godoc
// @Summary Get todo by ID
// @Tags todos
// @Produce json
// @Param id path int true "Todo ID"
// @Success 200 {object} entities.Todo
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /todos/{id} [get]
func (h *TodoHandler) GetTodo(c echo.Context) error {
	requester, err := mustRequester(c)
	if err != nil {
		return err
	}

	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	todo, err := h.todoService.GetByID(c.Request().Context(), id, requester)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, todo)
}

// UpdateTodo godoc
// @Summary Update a todo
// @Description Only the fields present in the body are changed
// @Tags todos
// @Accept json
// @Produce json
// @Param id path int true "Todo ID"
// @Param request body ports.UpdateTodoRequest true "Fields to change"
// @Success 200 {object} entities.Todo
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /todos/{id} [patch]
func (h *TodoHandler) UpdateTodo(c echo.Context) error {
	requester, err := mustRequester(c)
	if err != nil {
		return err
	}

	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req ports.UpdateTodoRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	todo, err := h.todoService.Update(c.Request().Context(), id, requester, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, todo)
}

// DeleteTodo godoc
// @Summary Delete a todo
// @Tags todos
// @Produce json
// @Param id path int true "Todo ID"
// @Success 200 {object} ports.MessageResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /todos/{id} [delete]
func (h *TodoHandler) DeleteTodo(c echo.Context) error {
	requester, err := mustRequester(c)
	if err != nil {
		return err
	}

	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	response, err := h.todoService.Delete(c.Request().Context(), id, requester)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, response)
}
