package ports

import (
	"context"
	"time"

	"github.com/taskmaster/todos/internal/domain/entities"
	"github.com/taskmaster/todos/internal/domain/policy"
	"github.com/taskmaster/todos/internal/domain/query"
)

// AuthService interface for authentication operations
type AuthService interface {
	Verify(ctx context.Context, identifier, password string) (*entities.User, error)
	IssueClaims(user *entities.User) (string, time.Time, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	ValidateToken(tokenString string) (*Claims, error)
}

// UserService interface for account management operations
type UserService interface {
	Register(ctx context.Context, req RegisterRequest) (*entities.User, error)
	CreateUser(ctx context.Context, req RegisterRequest, role entities.Role) (*entities.User, error)
	GetByID(ctx context.Context, id int64) (*entities.User, error)
	List(ctx context.Context, params query.Params) (*PaginatedResponse[*entities.User], error)
	UpdateRole(ctx context.Context, id int64, role entities.Role) (*entities.User, error)
}

// TodoService interface for todo operations. Every call is made on behalf of requester.
type TodoService interface {
	Create(ctx context.Context, requester policy.Requester, req CreateTodoRequest) (*entities.Todo, error)
	GetByID(ctx context.Context, id int64, requester policy.Requester) (*entities.Todo, error)
	List(ctx context.Context, requester policy.Requester, params query.Params) (*PaginatedResponse[*entities.Todo], error)
	Update(ctx context.Context, id int64, requester policy.Requester, req UpdateTodoRequest) (*entities.Todo, error)
	Delete(ctx context.Context, id int64, requester policy.Requester) (*MessageResponse, error)
}

// Auth related types
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest accepts a username or an email as identifier
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

type AuthResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresIn   int64          `json:"expires_in"`
	User        *entities.User `json:"user"`
}

// Claims is the verified identity carried by an access token
type Claims struct {
	UserID   int64         `json:"user_id"`
	Username string        `json:"username"`
	Role     entities.Role `json:"role"`
}

// Requester converts the claims into the identity the policy engine works with
func (c *Claims) Requester() policy.Requester {
	return policy.Requester{ID: c.UserID, Username: c.Username, Role: c.Role}
}

type UpdateRoleRequest struct {
	Role entities.Role `json:"role" validate:"required,oneof=member admin"`
}

// Todo related types
type CreateTodoRequest struct {
	Title       string  `json:"title" validate:"required,max=255"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	IsDone      *bool   `json:"is_done"`
}

// UpdateTodoRequest is a partial update: nil fields keep their stored value
type UpdateTodoRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	IsDone      *bool   `json:"is_done"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// PaginatedResponse is one page of a list plus its pagination metadata
type PaginatedResponse[T any] struct {
	Data []T        `json:"data"`
	Meta query.Meta `json:"meta"`
}
