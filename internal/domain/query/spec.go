// Package query turns untrusted list parameters into a normalized Spec: page window,
// filter expression and ordering. Specs are store-independent; repositories translate
// the expression tree into their own predicate syntax.
package query

import (
	"math"
	"strings"
	"time"

	"github.com/taskmaster/todos/internal/domain/entities"
	"github.com/taskmaster/todos/internal/domain/policy"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	// MaxPage keeps (page-1)*limit within int for every accepted limit
	MaxPage = math.MaxInt / MaxLimit
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Params are list parameters after type coercion. Zero values mean "not given".
type Params struct {
	Page      int
	Limit     int
	IsDone    *bool
	Search    string
	From      *time.Time
	To        *time.Time
	SortBy    string
	SortOrder string
}

// Spec is a validated list request.
type Spec struct {
	Page      int
	PageSize  int
	Where     Expr
	SortField Field
	Direction Direction
}

func (s Spec) Skip() int { return (s.Page - 1) * s.PageSize }
func (s Spec) Take() int { return s.PageSize }

// SortKey maps a caller-facing sort name onto a field.
type SortKey struct {
	Name  string
	Field Field
}

// Schema describes what a collection can be filtered, searched and sorted by.
type Schema struct {
	Sortable        []SortKey
	DefaultSort     Field
	SearchFields    []Field
	CompletionField Field
	OwnerField      Field
	CreatedField    Field
}

var TodoSchema = Schema{
	Sortable: []SortKey{
		{Name: "id", Field: FieldID},
		{Name: "title", Field: FieldTitle},
		{Name: "isDone", Field: FieldIsDone},
		{Name: "createdAt", Field: FieldCreatedAt},
		{Name: "updatedAt", Field: FieldUpdatedAt},
	},
	DefaultSort:     FieldCreatedAt,
	SearchFields:    []Field{FieldTitle, FieldDescription},
	CompletionField: FieldIsDone,
	OwnerField:      FieldOwnerID,
	CreatedField:    FieldCreatedAt,
}

var UserSchema = Schema{
	Sortable: []SortKey{
		{Name: "id", Field: FieldID},
		{Name: "username", Field: FieldUsername},
		{Name: "email", Field: FieldEmail},
		{Name: "role", Field: FieldRole},
		{Name: "createdAt", Field: FieldCreatedAt},
		{Name: "updatedAt", Field: FieldUpdatedAt},
	},
	DefaultSort:  FieldCreatedAt,
	SearchFields: []Field{FieldUsername, FieldEmail},
	CreatedField: FieldCreatedAt,
}

// SortNames lists the accepted sortBy values in declaration order.
func (s Schema) SortNames() []string {
	names := make([]string, len(s.Sortable))
	for i, k := range s.Sortable {
		names[i] = k.Name
	}
	return names
}

func (s Schema) sortField(name string) (Field, bool) {
	for _, k := range s.Sortable {
		if k.Name == name {
			return k.Field, true
		}
	}
	return "", false
}

// Build validates p and composes the filter expression for requester.
// Non-admin requesters are scoped to their own rows when the schema has an owner field.
func (s Schema) Build(p Params, requester policy.Requester, now time.Time) (Spec, error) {
	spec := Spec{
		Page:      clampPage(p.Page),
		PageSize:  clampLimit(p.Limit),
		SortField: s.DefaultSort,
		Direction: Desc,
	}

	if p.SortBy != "" {
		field, ok := s.sortField(p.SortBy)
		if !ok {
			return Spec{}, entities.InvalidSortField(p.SortBy, s.SortNames())
		}
		spec.SortField = field
	}

	switch strings.ToLower(strings.TrimSpace(p.SortOrder)) {
	case "":
	case string(Asc):
		spec.Direction = Asc
	case string(Desc):
		spec.Direction = Desc
	default:
		return Spec{}, entities.BadRequest("Invalid sort order: %s. Allowed values: asc, desc", p.SortOrder)
	}

	var filters []Expr
	if s.OwnerField != "" && !requester.IsAdmin() {
		filters = append(filters, Eq(s.OwnerField, requester.ID))
	}
	if s.CompletionField != "" && p.IsDone != nil {
		filters = append(filters, Eq(s.CompletionField, *p.IsDone))
	}
	if s.CreatedField != "" && (p.From != nil || p.To != nil) {
		from, to := dateRange(p.From, p.To, now)
		// a lone bound past the default of the other simply matches nothing
		if p.From != nil && p.To != nil && from.After(to) {
			return Spec{}, entities.BadRequest("fromDate must not be after toDate")
		}
		filters = append(filters, Gte(s.CreatedField, from), Lte(s.CreatedField, to))
	}

	var alternatives []Expr
	if term := strings.TrimSpace(p.Search); term != "" {
		for _, f := range s.SearchFields {
			alternatives = append(alternatives, Contains(f, term))
		}
	}

	spec.Where = Distribute(filters, alternatives)
	return spec, nil
}

func clampPage(page int) int {
	switch {
	case page < 1:
		return DefaultPage
	case page > MaxPage:
		return MaxPage
	}
	return page
}

func clampLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultLimit
	case limit < 1:
		return 1
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// dateRange fills a missing bound: the upper defaults to now, the lower to the epoch.
func dateRange(from, to *time.Time, now time.Time) (time.Time, time.Time) {
	lower := time.Unix(0, 0).UTC()
	upper := now
	if from != nil {
		lower = *from
	}
	if to != nil {
		upper = *to
	}
	return lower, upper
}
