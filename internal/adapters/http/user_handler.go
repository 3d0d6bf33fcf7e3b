package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster/todos/internal/domain/policy"
	"github.com/taskmaster/todos/internal/infrastructure/logger"
	"github.com/taskmaster/todos/internal/ports"
)

// UserHandler handles user-related requests
type UserHandler struct {
	userService ports.UserService
	logger      *logger.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService ports.UserService, log *logger.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      log,
	}
}

// ListUsers godoc
// @Summary List users
// @Tags users
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size (max 100)" default(10)
// @Param search query string false "Matches username or email"
// @Param fromDate query string false "Created on or after (RFC 3339 or YYYY-MM-DD)"
// @Param toDate query string false "Created on or before (RFC 3339 or YYYY-MM-DD)"
// @Param sortBy query string false "id, username, email, role, createdAt, updatedAt"
// @Param sortOrder query string false "asc or desc"
// @Success 200 {object} ports.PaginatedResponse[entities.User]
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Security BearerAuth
// @Router /users [get]
func (h *UserHandler) ListUsers(c echo.Context) error {
	params, err := parseListParams(c)
	if err != nil {
		return err
	}

	page, err := h.userService.List(c.Request().Context(), params)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, page)
}

// GetUser godoc
// @Summary Get user by ID
// @Description Admins may read any user; members only themselves
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} entities.User
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /users/{id} [get]
func (h *UserHandler) GetUser(c echo.Context) error {
	requester, err := mustRequester(c)
	if err != nil {
		return err
	}

	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	if err := policy.Authorize(id, requester); err != nil {
		return err
	}

	user, err := h.userService.GetByID(c.Request().Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, user)
}

// UpdateRole godoc
// @Summary Change a user's role
// @Description Fails with 409 when it would leave no admin
// @Tags users
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param request body ports.UpdateRoleRequest true "New role"
// @Success 200 {object} entities.User
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Security BearerAuth
// @Router /users/{id}/role [patch]
func (h *UserHandler) UpdateRole(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req ports.UpdateRoleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.userService.UpdateRole(c.Request().Context(), id, req.Role)
	if err != nil {
		return err
	}

	if requester, ok := RequesterFrom(c); ok {
		h.logger.Infow("Role changed", "user_id", id, "role", user.Role, "by", requester.ID)
	}

	return c.JSON(http.StatusOK, user)
}
