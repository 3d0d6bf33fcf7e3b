package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/taskmaster/todos/internal/domain/entities"
	"github.com/taskmaster/todos/internal/domain/query"
	"github.com/taskmaster/todos/internal/infrastructure/database"
)

const userColumnList = `id, username, email, password_hash, role, created_at, updated_at`

const (
	uniqueViolation         = "23505"
	usersUsernameConstraint = "users_username_key"
	usersEmailConstraint    = "users_email_key"
)

// UserRepository stores users in PostgreSQL
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a user repository on a pool or a transaction
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	query := `
		INSERT INTO users (username, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		user.Username, user.Email, user.PasswordHash, user.Role,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if conflict := uniqueConflict(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entities.User, error) {
	return r.getOne(ctx, "get user by id", `WHERE id = $1`, id)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*entities.User, error) {
	return r.getOne(ctx, "get user by username", `WHERE username = $1`, username)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	return r.getOne(ctx, "get user by email", `WHERE email = $1`, email)
}

// GetByIdentifier prefers a username match when one user's email equals another's username.
func (r *UserRepository) GetByIdentifier(ctx context.Context, identifier string) (*entities.User, error) {
	return r.getOne(ctx, "get user by identifier",
		`WHERE username = $1 OR email = $1 ORDER BY (username = $1) DESC LIMIT 1`, identifier)
}

func (r *UserRepository) getOne(ctx context.Context, op, clause string, arg interface{}) (*entities.User, error) {
	query := `SELECT ` + userColumnList + ` FROM users ` + clause

	var user entities.User
	if err := r.db.GetContext(ctx, &user, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrUserNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &user, nil
}

func (r *UserRepository) List(ctx context.Context, spec query.Spec) ([]*entities.User, int64, error) {
	where, args, err := whereClause(userColumns, spec.Where)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	order, err := orderClause(userColumns, spec)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	page, args := pageClause(args, spec)

	users := []*entities.User{}
	listQuery := `SELECT ` + userColumnList + ` FROM users` + where + order + page
	if err := r.db.SelectContext(ctx, &users, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	return users, total, nil
}

// LockIDsByRole locks every row holding role and returns their ids.
func (r *UserRepository) LockIDsByRole(ctx context.Context, role entities.Role) ([]int64, error) {
	ids := []int64{}
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM users WHERE role = $1 ORDER BY id FOR UPDATE`, role); err != nil {
		return nil, fmt.Errorf("lock users by role: %w", err)
	}
	return ids, nil
}

func (r *UserRepository) UpdateRole(ctx context.Context, id int64, role entities.Role) (*entities.User, error) {
	query := `
		UPDATE users
		SET role = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING ` + userColumnList

	var user entities.User
	if err := r.db.GetContext(ctx, &user, query, id, role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrUserNotFound
		}
		return nil, fmt.Errorf("update user role: %w", err)
	}

	return &user, nil
}

// uniqueConflict maps a unique violation on users to its domain conflict
func uniqueConflict(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return nil
	}

	switch pqErr.Constraint {
	case usersUsernameConstraint:
		return entities.ErrUsernameTaken
	case usersEmailConstraint:
		return entities.ErrEmailTaken
	default:
		return &entities.Error{Kind: entities.KindConflict, Message: "Resource already exists", Err: err}
	}
}
