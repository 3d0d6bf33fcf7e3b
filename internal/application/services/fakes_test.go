package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/taskmaster/todos/internal/domain/entities"
	"github.com/taskmaster/todos/internal/domain/query"
	"github.com/taskmaster/todos/internal/ports"
)

var errStoreDown = errors.New("connection refused")

// memUsers is an in-memory users table. WithUserTx snapshots the table and
// restores it when fn fails, which is enough to observe rollback behaviour.
type memUsers struct {
	mu     sync.Mutex
	rows   map[int64]entities.User
	nextID int64
	calls  map[string]int
	fail   error

	// when gate is set, GetByID signals entered and then waits for gate
	// to close or its context to end
	gate    chan struct{}
	entered chan struct{}
}

func newMemUsers() *memUsers {
	return &memUsers{rows: map[int64]entities.User{}, calls: map[string]int{}}
}

var (
	_ ports.UserRepository = (*memUsers)(nil)
	_ ports.UserTransactor = (*memUsers)(nil)
)

func (m *memUsers) hit(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[name]++
	return m.fail
}

func (m *memUsers) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *memUsers) seed(u entities.User) *entities.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	if u.ID == 0 {
		u.ID = m.nextID
	}
	m.rows[u.ID] = u
	return &u
}

func (m *memUsers) Create(_ context.Context, user *entities.User) error {
	if err := m.hit("Create"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.Username == user.Username {
			return entities.ErrUsernameTaken
		}
		if r.Email == user.Email {
			return entities.ErrEmailTaken
		}
	}
	m.nextID++
	user.ID = m.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.rows[user.ID] = *user
	return nil
}

func (m *memUsers) find(match func(entities.User) bool) (*entities.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if match(r) {
			u := r
			return &u, nil
		}
	}
	return nil, entities.ErrUserNotFound
}

func (m *memUsers) GetByID(ctx context.Context, id int64) (*entities.User, error) {
	if err := m.hit("GetByID"); err != nil {
		return nil, err
	}
	if m.gate != nil {
		m.entered <- struct{}{}
		select {
		case <-m.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.find(func(u entities.User) bool { return u.ID == id })
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (*entities.User, error) {
	if err := m.hit("GetByUsername"); err != nil {
		return nil, err
	}
	return m.find(func(u entities.User) bool { return u.Username == username })
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*entities.User, error) {
	if err := m.hit("GetByEmail"); err != nil {
		return nil, err
	}
	return m.find(func(u entities.User) bool { return u.Email == email })
}

func (m *memUsers) GetByIdentifier(_ context.Context, identifier string) (*entities.User, error) {
	if err := m.hit("GetByIdentifier"); err != nil {
		return nil, err
	}
	if u, err := m.find(func(u entities.User) bool { return u.Username == identifier }); err == nil {
		return u, nil
	}
	return m.find(func(u entities.User) bool { return u.Email == identifier })
}

func userField(u entities.User) func(query.Field) interface{} {
	return func(f query.Field) interface{} {
		switch f {
		case query.FieldID:
			return u.ID
		case query.FieldUsername:
			return u.Username
		case query.FieldEmail:
			return u.Email
		case query.FieldRole:
			return string(u.Role)
		case query.FieldCreatedAt:
			return u.CreatedAt
		case query.FieldUpdatedAt:
			return u.UpdatedAt
		}
		return nil
	}
}

func (m *memUsers) List(_ context.Context, spec query.Spec) ([]*entities.User, int64, error) {
	if err := m.hit("List"); err != nil {
		return nil, 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*entities.User
	for _, r := range m.rows {
		if query.Matches(spec.Where, userField(r)) {
			u := r
			matched = append(matched, &u)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	return window(matched, spec), int64(len(matched)), nil
}

func (m *memUsers) LockIDsByRole(_ context.Context, role entities.Role) ([]int64, error) {
	if err := m.hit("LockIDsByRole"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := []int64{}
	for _, r := range m.rows {
		if r.Role == role {
			ids = append(ids, r.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *memUsers) UpdateRole(_ context.Context, id int64, role entities.Role) (*entities.User, error) {
	if err := m.hit("UpdateRole"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, entities.ErrUserNotFound
	}
	r.Role = role
	r.UpdatedAt = time.Now()
	m.rows[id] = r
	return &r, nil
}

func (m *memUsers) WithUserTx(_ context.Context, fn func(users ports.UserRepository) error) error {
	m.mu.Lock()
	m.calls["WithUserTx"]++
	snapshot := make(map[int64]entities.User, len(m.rows))
	for k, v := range m.rows {
		snapshot[k] = v
	}
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.rows = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

// memTodos is an in-memory todos table. Update applies patches field by
// field the way the SQL COALESCE does.
type memTodos struct {
	mu      sync.Mutex
	rows    map[int64]entities.Todo
	nextID  int64
	calls   map[string]int
	fail    error
	patches []ports.TodoPatch
}

var _ ports.TodoRepository = (*memTodos)(nil)

func newMemTodos() *memTodos {
	return &memTodos{rows: map[int64]entities.Todo{}, calls: map[string]int{}}
}

func (m *memTodos) hit(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[name]++
	return m.fail
}

func (m *memTodos) seed(t entities.Todo) *entities.Todo {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t.ID = m.nextID
	m.rows[t.ID] = t
	return &t
}

func (m *memTodos) Create(_ context.Context, todo *entities.Todo) error {
	if err := m.hit("Create"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	todo.ID = m.nextID
	todo.CreatedAt = time.Now()
	todo.UpdatedAt = todo.CreatedAt
	m.rows[todo.ID] = *todo
	return nil
}

func (m *memTodos) GetByID(_ context.Context, id int64) (*entities.Todo, error) {
	if err := m.hit("GetByID"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[id]
	if !ok {
		return nil, entities.ErrTodoNotFound
	}
	return &t, nil
}

func todoField(t entities.Todo) func(query.Field) interface{} {
	return func(f query.Field) interface{} {
		switch f {
		case query.FieldID:
			return t.ID
		case query.FieldTitle:
			return t.Title
		case query.FieldDescription:
			return t.Description
		case query.FieldIsDone:
			return t.IsDone
		case query.FieldOwnerID:
			return t.OwnerID
		case query.FieldCreatedAt:
			return t.CreatedAt
		case query.FieldUpdatedAt:
			return t.UpdatedAt
		}
		return nil
	}
}

func (m *memTodos) List(_ context.Context, spec query.Spec) ([]*entities.Todo, int64, error) {
	if err := m.hit("List"); err != nil {
		return nil, 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*entities.Todo
	for _, r := range m.rows {
		if query.Matches(spec.Where, todoField(r)) {
			t := r
			matched = append(matched, &t)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	return window(matched, spec), int64(len(matched)), nil
}

func (m *memTodos) Update(_ context.Context, id int64, patch ports.TodoPatch) (*entities.Todo, error) {
	if err := m.hit("Update"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[id]
	if !ok {
		return nil, entities.ErrTodoNotFound
	}
	m.patches = append(m.patches, patch)
	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		t.Description = patch.Description
	}
	if patch.IsDone != nil {
		t.IsDone = *patch.IsDone
	}
	t.UpdatedAt = time.Now()
	m.rows[id] = t
	return &t, nil
}

func (m *memTodos) Delete(_ context.Context, id int64) error {
	if err := m.hit("Delete"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return entities.ErrTodoNotFound
	}
	delete(m.rows, id)
	return nil
}

func window[T any](rows []T, spec query.Spec) []T {
	start := spec.Skip()
	if start >= len(rows) {
		return []T{}
	}
	end := start + spec.Take()
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}
