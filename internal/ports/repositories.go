package ports

import (
	"context"

	"github.com/taskmaster/todos/internal/domain/entities"
	"github.com/taskmaster/todos/internal/domain/query"
)

// UserRepository defines the interface for user data operations.
// Lookups return entities.ErrUserNotFound when no row matches.
type UserRepository interface {
	Create(ctx context.Context, user *entities.User) error
	GetByID(ctx context.Context, id int64) (*entities.User, error)
	GetByUsername(ctx context.Context, username string) (*entities.User, error)
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
	// GetByIdentifier matches either the username or the email.
	GetByIdentifier(ctx context.Context, identifier string) (*entities.User, error)
	List(ctx context.Context, spec query.Spec) ([]*entities.User, int64, error)
	// LockIDsByRole returns the ids of users holding role and, inside a
	// transaction, locks their rows until commit.
	LockIDsByRole(ctx context.Context, role entities.Role) ([]int64, error)
	UpdateRole(ctx context.Context, id int64, role entities.Role) (*entities.User, error)
}

// TodoRepository defines the interface for todo data operations.
// Lookups return entities.ErrTodoNotFound when no row matches.
type TodoRepository interface {
	Create(ctx context.Context, todo *entities.Todo) error
	GetByID(ctx context.Context, id int64) (*entities.Todo, error)
	List(ctx context.Context, spec query.Spec) ([]*entities.Todo, int64, error)
	Update(ctx context.Context, id int64, patch TodoPatch) (*entities.Todo, error)
	Delete(ctx context.Context, id int64) error
}

// TodoPatch names the columns one update writes. Nil fields keep whatever
// the row holds at write time, so concurrent patches to different fields
// both survive.
type TodoPatch struct {
	Title       *string
	Description *string
	IsDone      *bool
}

// UserTransactor runs fn against a UserRepository bound to a single
// transaction. The transaction commits only if fn returns nil.
type UserTransactor interface {
	WithUserTx(ctx context.Context, fn func(users UserRepository) error) error
}
