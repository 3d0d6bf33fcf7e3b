package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/singleflight"

	"github.com/taskmaster/todos/internal/domain/entities"
	"github.com/taskmaster/todos/internal/domain/policy"
	"github.com/taskmaster/todos/internal/domain/query"
	"github.com/taskmaster/todos/internal/infrastructure/cache"
	"github.com/taskmaster/todos/internal/infrastructure/logger"
	"github.com/taskmaster/todos/internal/ports"
)

// userLoadTimeout bounds a shared store read once it no longer follows the
// caller that started it.
const userLoadTimeout = 5 * time.Second

// UserService handles account operations. It owns the user cache: every
// write path that changes a user updates or invalidates the cached entry.
type UserService struct {
	users      ports.UserRepository
	tx         ports.UserTransactor
	cache      *cache.UserCache
	loads      singleflight.Group
	bcryptCost int
	logger     *logger.Logger
	now        func() time.Time
}

// NewUserService creates a new user service
func NewUserService(users ports.UserRepository, tx ports.UserTransactor, userCache *cache.UserCache, bcryptCost int, log *logger.Logger) *UserService {
	return &UserService{
		users:      users,
		tx:         tx,
		cache:      userCache,
		bcryptCost: bcryptCost,
		logger:     log.WithComponent("users"),
		now:        time.Now,
	}
}

// Register creates a member account
func (s *UserService) Register(ctx context.Context, req ports.RegisterRequest) (*entities.User, error) {
	return s.CreateUser(ctx, req, entities.RoleMember)
}

// CreateUser creates an account with the given role. Uniqueness is checked
// before hashing; the unique constraints still catch a concurrent insert.
func (s *UserService) CreateUser(ctx context.Context, req ports.RegisterRequest, role entities.Role) (*entities.User, error) {
	if !role.IsValid() {
		return nil, entities.ErrInvalidRole
	}

	if _, err := s.users.GetByUsername(ctx, req.Username); err == nil {
		return nil, entities.ErrUsernameTaken
	} else if !errors.Is(err, entities.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}

	if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
		return nil, entities.ErrEmailTaken
	} else if !errors.Is(err, entities.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &entities.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hashedPassword),
		Role:         role,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if entities.KindOf(err) == entities.KindConflict {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Infow("User created", "user_id", user.ID, "username", user.Username, "role", user.Role)

	return user.Sanitized(), nil
}

// GetByID returns the user from cache, falling back to the store.
// Concurrent misses for the same id share a single store read. The shared
// read is detached from any one caller's cancellation; each caller still
// stops waiting when its own context ends.
func (s *UserService) GetByID(ctx context.Context, id int64) (*entities.User, error) {
	if user, ok := s.cache.Get(id); ok {
		return user, nil
	}

	ch := s.loads.DoChan(strconv.FormatInt(id, 10), func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), userLoadTimeout)
		defer cancel()

		user, err := s.users.GetByID(loadCtx, id)
		if err != nil {
			return nil, err
		}
		s.cache.Fill(id, user)
		return user.Sanitized(), nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}

	v, err := res.Val, res.Err
	if err != nil {
		if errors.Is(err, entities.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	// callers sharing the flight must not share the pointer
	user := *v.(*entities.User)
	return &user, nil
}

// List returns one page of users
func (s *UserService) List(ctx context.Context, params query.Params) (*ports.PaginatedResponse[*entities.User], error) {
	spec, err := query.UserSchema.Build(params, policy.Requester{Role: entities.RoleAdmin}, s.now())
	if err != nil {
		return nil, err
	}

	users, total, err := s.users.List(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	data := make([]*entities.User, 0, len(users))
	for _, u := range users {
		data = append(data, u.Sanitized())
	}

	return &ports.PaginatedResponse[*entities.User]{
		Data: data,
		Meta: query.NewMeta(total, spec),
	}, nil
}

// UpdateRole changes a user's role atomically. The admin rows are locked and
// the target's current role is taken from that locked set, so neither a stale
// cache entry nor a concurrent role change can slip past the last-admin check.
// The cache is refreshed only after commit.
func (s *UserService) UpdateRole(ctx context.Context, id int64, role entities.Role) (*entities.User, error) {
	if !role.IsValid() {
		return nil, entities.ErrInvalidRole
	}

	var updated *entities.User
	err := s.tx.WithUserTx(ctx, func(users ports.UserRepository) error {
		adminIDs, err := users.LockIDsByRole(ctx, entities.RoleAdmin)
		if err != nil {
			return err
		}

		target := &entities.User{ID: id, Role: entities.RoleMember}
		for _, adminID := range adminIDs {
			if adminID == id {
				target.Role = entities.RoleAdmin
				break
			}
		}

		if err := policy.AssertNotLastAdmin(int64(len(adminIDs)), target, role); err != nil {
			return err
		}

		updated, err = users.UpdateRole(ctx, id, role)
		return err
	})
	if err != nil {
		s.cache.Invalidate(id)
		if entities.KindOf(err) != entities.KindInternal {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update role: %w", err)
	}

	s.cache.Put(id, updated)
	s.logger.LogUserAction(id, "role_updated", map[string]interface{}{"role": role})

	return updated.Sanitized(), nil
}
