package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster/todos/internal/domain/entities"
	"github.com/taskmaster/todos/internal/domain/policy"
	"github.com/taskmaster/todos/internal/domain/query"
	"github.com/taskmaster/todos/internal/infrastructure/logger"
	"github.com/taskmaster/todos/internal/ports"
)

var (
	member = policy.Requester{ID: 1, Username: "alice", Role: entities.RoleMember}
	admin  = policy.Requester{ID: 9, Username: "root", Role: entities.RoleAdmin}
)

type stubAuth struct {
	login func(req ports.LoginRequest) (*ports.AuthResponse, error)
}

func (s *stubAuth) Verify(context.Context, string, string) (*entities.User, error) {
	return nil, errors.New("not used")
}

func (s *stubAuth) IssueClaims(*entities.User) (string, time.Time, error) {
	return "", time.Time{}, errors.New("not used")
}

func (s *stubAuth) Login(_ context.Context, req ports.LoginRequest) (*ports.AuthResponse, error) {
	return s.login(req)
}

func (s *stubAuth) ValidateToken(string) (*ports.Claims, error) {
	return nil, errors.New("not used")
}

type stubUsers struct {
	register   func(req ports.RegisterRequest) (*entities.User, error)
	getByID    func(id int64) (*entities.User, error)
	list       func(p query.Params) (*ports.PaginatedResponse[*entities.User], error)
	updateRole func(id int64, role entities.Role) (*entities.User, error)
}

func (s *stubUsers) Register(_ context.Context, req ports.RegisterRequest) (*entities.User, error) {
	return s.register(req)
}

func (s *stubUsers) CreateUser(_ context.Context, req ports.RegisterRequest, _ entities.Role) (*entities.User, error) {
	return s.register(req)
}

func (s *stubUsers) GetByID(_ context.Context, id int64) (*entities.User, error) {
	return s.getByID(id)
}

func (s *stubUsers) List(_ context.Context, p query.Params) (*ports.PaginatedResponse[*entities.User], error) {
	return s.list(p)
}

func (s *stubUsers) UpdateRole(_ context.Context, id int64, role entities.Role) (*entities.User, error) {
	return s.updateRole(id, role)
}

type stubTodos struct {
	create  func(r policy.Requester, req ports.CreateTodoRequest) (*entities.Todo, error)
	get     func(id int64, r policy.Requester) (*entities.Todo, error)
	list    func(r policy.Requester, p query.Params) (*ports.PaginatedResponse[*entities.Todo], error)
	update  func(id int64, r policy.Requester, req ports.UpdateTodoRequest) (*entities.Todo, error)
	deleteF func(id int64, r policy.Requester) (*ports.MessageResponse, error)
}

func (s *stubTodos) Create(_ context.Context, r policy.Requester, req ports.CreateTodoRequest) (*entities.Todo, error) {
	return s.create(r, req)
}

func (s *stubTodos) GetByID(_ context.Context, id int64, r policy.Requester) (*entities.Todo, error) {
	return s.get(id, r)
}

func (s *stubTodos) List(_ context.Context, r policy.Requester, p query.Params) (*ports.PaginatedResponse[*entities.Todo], error) {
	return s.list(r, p)
}

func (s *stubTodos) Update(_ context.Context, id int64, r policy.Requester, req ports.UpdateTodoRequest) (*entities.Todo, error) {
	return s.update(id, r, req)
}

func (s *stubTodos) Delete(_ context.Context, id int64, r policy.Requester) (*ports.MessageResponse, error) {
	return s.deleteF(id, r)
}

// as authenticates every request in the test router as r
func as(r *policy.Requester) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if r != nil {
				SetRequester(c, *r)
			}
			return next(c)
		}
	}
}

func newTestEcho(r *policy.Requester, auth *stubAuth, users *stubUsers, todos *stubTodos) *echo.Echo {
	log := logger.NewNop()

	e := echo.New()
	e.Validator = NewRequestValidator()
	e.HTTPErrorHandler = ErrorHandler(log)

	ah := NewAuthHandler(auth, users, log)
	uh := NewUserHandler(users, log)
	th := NewTodoHandler(todos, log)

	e.POST("/auth/register", ah.Register)
	e.POST("/auth/login", ah.Login)

	g := e.Group("", as(r))
	g.GET("/auth/me", ah.Me)
	g.GET("/users", uh.ListUsers)
	g.GET("/users/:id", uh.GetUser)
	g.PATCH("/users/:id/role", uh.UpdateRole)
	g.GET("/todos", th.ListTodos)
	g.POST("/todos", th.CreateTodo)
	g.GET("/todos/:id", th.GetTodo)
	g.PATCH("/todos/:id", th.UpdateTodo)
	g.DELETE("/todos/:id", th.DeleteTodo)

	return e
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body struct {
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return ErrorResponse{Message: body.Message, Details: body.Details}
}

func TestRegister(t *testing.T) {
	users := &stubUsers{register: func(req ports.RegisterRequest) (*entities.User, error) {
		if req.Username == "taken" {
			return nil, entities.ErrUsernameTaken
		}
		return &entities.User{ID: 5, Username: req.Username, Email: req.Email, PasswordHash: "hash", Role: entities.RoleMember}, nil
	}}
	e := newTestEcho(nil, &stubAuth{}, users, &stubTodos{})

	t.Run("created", func(t *testing.T) {
		rec := do(e, http.MethodPost, "/auth/register", `{"username":"alice","email":"alice@example.com","password":"password1"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.NotContains(t, rec.Body.String(), "hash")
		assert.Contains(t, rec.Body.String(), `"username":"alice"`)
	})

	t.Run("validation", func(t *testing.T) {
		rec := do(e, http.MethodPost, "/auth/register", `{"username":"al","email":"not-an-email","password":"short"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		body := decodeError(t, rec)
		assert.Equal(t, "Validation failed", body.Message)

		var fields []FieldError
		require.NoError(t, json.Unmarshal(body.Details.(json.RawMessage), &fields))
		names := make([]string, len(fields))
		for i, f := range fields {
			names[i] = f.Field
		}
		assert.ElementsMatch(t, []string{"username", "email", "password"}, names)
	})

	t.Run("malformed json", func(t *testing.T) {
		rec := do(e, http.MethodPost, "/auth/register", `{"username":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid request format", decodeError(t, rec).Message)
	})

	t.Run("conflict", func(t *testing.T) {
		rec := do(e, http.MethodPost, "/auth/register", `{"username":"taken","email":"t@example.com","password":"password1"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "Username already exists", decodeError(t, rec).Message)
	})
}

func TestLogin(t *testing.T) {
	auth := &stubAuth{login: func(req ports.LoginRequest) (*ports.AuthResponse, error) {
		if req.Password != "right" {
			return nil, entities.ErrInvalidCredentials
		}
		return &ports.AuthResponse{AccessToken: "tok", TokenType: "Bearer", ExpiresIn: 60}, nil
	}}
	e := newTestEcho(nil, auth, &stubUsers{}, &stubTodos{})

	rec := do(e, http.MethodPost, "/auth/login", `{"identifier":"alice","password":"right"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"access_token":"tok"`)

	rec = do(e, http.MethodPost, "/auth/login", `{"identifier":"alice","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", decodeError(t, rec).Message)
}

func TestMe_RequiresRequester(t *testing.T) {
	e := newTestEcho(nil, &stubAuth{}, &stubUsers{}, &stubTodos{})

	rec := do(e, http.MethodGet, "/auth/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Authentication required", decodeError(t, rec).Message)
}

func TestGetUser_MemberSeesOnlySelf(t *testing.T) {
	users := &stubUsers{getByID: func(id int64) (*entities.User, error) {
		return &entities.User{ID: id, Username: "someone"}, nil
	}}
	r := member
	e := newTestEcho(&r, &stubAuth{}, users, &stubTodos{})

	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/users/1", "").Code)
	assert.Equal(t, http.StatusForbidden, do(e, http.MethodGet, "/users/2", "").Code)

	rec := do(e, http.MethodGet, "/users/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid id parameter", decodeError(t, rec).Message)
}

func TestUpdateRole(t *testing.T) {
	users := &stubUsers{updateRole: func(id int64, role entities.Role) (*entities.User, error) {
		if id == 9 {
			return nil, entities.ErrLastAdmin
		}
		return &entities.User{ID: id, Role: role}, nil
	}}
	r := admin
	e := newTestEcho(&r, &stubAuth{}, users, &stubTodos{})

	rec := do(e, http.MethodPatch, "/users/2/role", `{"role":"admin"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"admin"`)

	rec = do(e, http.MethodPatch, "/users/9/role", `{"role":"member"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Cannot downgrade the last admin user", decodeError(t, rec).Message)

	rec = do(e, http.MethodPatch, "/users/2/role", `{"role":"owner"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListTodos_PassesParams(t *testing.T) {
	var got query.Params
	todos := &stubTodos{list: func(_ policy.Requester, p query.Params) (*ports.PaginatedResponse[*entities.Todo], error) {
		got = p
		return &ports.PaginatedResponse[*entities.Todo]{
			Data: []*entities.Todo{},
			Meta: query.Meta{Total: 0, Page: 2, Limit: 5},
		}, nil
	}}
	r := member
	e := newTestEcho(&r, &stubAuth{}, &stubUsers{}, todos)

	rec := do(e, http.MethodGet, "/todos?page=2&limit=5&isDone=true&search=milk&sortBy=title&sortOrder=asc&fromDate=2024-01-01&toDate=2024-01-31", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[],"meta":{"total":0,"page":2,"limit":5,"total_pages":0,"has_next":false,"has_prev":false}}`, rec.Body.String())

	assert.Equal(t, 2, got.Page)
	assert.Equal(t, 5, got.Limit)
	require.NotNil(t, got.IsDone)
	assert.True(t, *got.IsDone)
	assert.Equal(t, "milk", got.Search)
	assert.Equal(t, "title", got.SortBy)
	assert.Equal(t, "asc", got.SortOrder)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *got.From)
	assert.Equal(t, time.Date(2024, 1, 31, 23, 59, 59, 999999999, time.UTC), *got.To)
}

func TestListTodos_RejectsBadParams(t *testing.T) {
	r := member
	e := newTestEcho(&r, &stubAuth{}, &stubUsers{}, &stubTodos{})

	tests := []struct {
		target  string
		message string
	}{
		{"/todos?isDone=yes", "Invalid isDone parameter: yes. Allowed values: true, false"},
		{"/todos?page=two", "Invalid page parameter: two"},
		{"/todos?limit=1.5", "Invalid limit parameter: 1.5"},
		{"/todos?fromDate=yesterday", "Invalid fromDate parameter: yesterday"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := do(e, http.MethodGet, tt.target, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.message, decodeError(t, rec).Message)
		})
	}
}

func TestTodoHandlers(t *testing.T) {
	todos := &stubTodos{
		create: func(r policy.Requester, req ports.CreateTodoRequest) (*entities.Todo, error) {
			return &entities.Todo{ID: 1, Title: req.Title, OwnerID: r.ID}, nil
		},
		get: func(id int64, _ policy.Requester) (*entities.Todo, error) {
			switch id {
			case 1:
				return &entities.Todo{ID: 1, OwnerID: 1}, nil
			case 2:
				return nil, entities.ErrForbidden
			default:
				return nil, entities.ErrTodoNotFound
			}
		},
		update: func(id int64, _ policy.Requester, req ports.UpdateTodoRequest) (*entities.Todo, error) {
			todo := &entities.Todo{ID: id, Title: "kept"}
			if req.IsDone != nil {
				todo.IsDone = *req.IsDone
			}
			return todo, nil
		},
		deleteF: func(int64, policy.Requester) (*ports.MessageResponse, error) {
			return &ports.MessageResponse{Message: "Todo deleted successfully"}, nil
		},
	}
	r := member
	e := newTestEcho(&r, &stubAuth{}, &stubUsers{}, todos)

	rec := do(e, http.MethodPost, "/todos", `{"title":"Buy milk"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"owner_id":1`)

	rec = do(e, http.MethodPost, "/todos", `{"description":"no title"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/todos/1", "").Code)
	assert.Equal(t, http.StatusForbidden, do(e, http.MethodGet, "/todos/2", "").Code)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/todos/3", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/todos/0", "").Code)

	rec = do(e, http.MethodPatch, "/todos/1", `{"is_done":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"is_done":true`)

	rec = do(e, http.MethodDelete, "/todos/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Todo deleted successfully"}`, rec.Body.String())
}

func TestErrorHandler_HidesInternalErrors(t *testing.T) {
	todos := &stubTodos{get: func(int64, policy.Requester) (*entities.Todo, error) {
		return nil, errors.New("pq: password authentication failed for user \"todos\"")
	}}
	r := member
	e := newTestEcho(&r, &stubAuth{}, &stubUsers{}, todos)

	rec := do(e, http.MethodGet, "/todos/1", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"Internal server error"}`, rec.Body.String())
}

func TestErrorHandler_EchoErrors(t *testing.T) {
	e := newTestEcho(nil, &stubAuth{}, &stubUsers{}, &stubTodos{})

	rec := do(e, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", decodeError(t, rec).Message)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, StatusFor(entities.KindUnauthenticated))
	assert.Equal(t, http.StatusForbidden, StatusFor(entities.KindForbidden))
	assert.Equal(t, http.StatusNotFound, StatusFor(entities.KindNotFound))
	assert.Equal(t, http.StatusConflict, StatusFor(entities.KindConflict))
	assert.Equal(t, http.StatusBadRequest, StatusFor(entities.KindBadRequest))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(entities.KindInternal))
}
