package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/taskmaster/todos/internal/infrastructure/database"
	"github.com/taskmaster/todos/internal/ports"
)

// Store bundles the repositories over one connection pool
type Store struct {
	db    *database.DB
	Users *UserRepository
	Todos *TodoRepository
}

func NewStore(db *database.DB) *Store {
	return &Store{
		db:    db,
		Users: NewUserRepository(db.DB),
		Todos: NewTodoRepository(db.DB),
	}
}

// WithUserTx runs fn with a user repository bound to a fresh transaction
func (s *Store) WithUserTx(ctx context.Context, fn func(users ports.UserRepository) error) error {
	return s.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		return fn(NewUserRepository(tx))
	})
}
