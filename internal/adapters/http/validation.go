package http

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/taskmaster/todos/internal/domain/entities"
	"github.com/taskmaster/todos/internal/domain/query"
)

const dateLayout = "2006-01-02"

// FieldError describes one rejected request field
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// ValidationError lists every rejected field of a request body
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Field
	}
	return "validation failed: " + strings.Join(names, ", ")
}

// RequestValidator is the echo.Validator for request bodies.
// Field names are reported by their json tag.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &RequestValidator{validate: v}
}

// Validate validates structs
func (rv *RequestValidator) Validate(i interface{}) error {
	err := rv.validate.Struct(i)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()})
	}
	return &ValidationError{Fields: fields}
}

// bindAndValidate decodes the request body into req and validates it
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return entities.BadRequest("Invalid request format")
	}
	return c.Validate(req)
}

// parseID reads a positive integer path parameter
func parseID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 1 {
		return 0, entities.BadRequest("Invalid %s parameter", name)
	}
	return id, nil
}

// parseListParams coerces the list query string. Values that do not parse are
// rejected here; range clamping is left to the query composer.
func parseListParams(c echo.Context) (query.Params, error) {
	var (
		p   query.Params
		err error
	)

	if p.Page, err = intParam(c, "page"); err != nil {
		return p, err
	}
	if p.Limit, err = intParam(c, "limit"); err != nil {
		return p, err
	}

	switch v := c.QueryParam("isDone"); v {
	case "":
	case "true", "false":
		done := v == "true"
		p.IsDone = &done
	default:
		return p, entities.BadRequest("Invalid isDone parameter: %s. Allowed values: true, false", v)
	}

	if p.From, err = dateParam(c, "fromDate", false); err != nil {
		return p, err
	}
	if p.To, err = dateParam(c, "toDate", true); err != nil {
		return p, err
	}

	p.Search = c.QueryParam("search")
	p.SortBy = c.QueryParam("sortBy")
	p.SortOrder = c.QueryParam("sortOrder")
	return p, nil
}

func intParam(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, entities.BadRequest("Invalid %s parameter: %s", name, raw)
	}
	return n, nil
}

// dateParam accepts RFC 3339 timestamps or plain dates. A plain date used as
// an upper bound covers the whole day.
func dateParam(c echo.Context, name string, endOfDay bool) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}

	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, entities.BadRequest("Invalid %s parameter: %s", name, raw)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
