package repository

import (
	"fmt"
	"strings"

	"github.com/taskmaster/todos/internal/domain/query"
)

// columns maps logical fields onto the columns of one table
type columns map[query.Field]string

var todoColumns = columns{
	query.FieldID:          "id",
	query.FieldTitle:       "title",
	query.FieldDescription: "description",
	query.FieldIsDone:      "is_done",
	query.FieldOwnerID:     "owner_id",
	query.FieldCreatedAt:   "created_at",
	query.FieldUpdatedAt:   "updated_at",
}

var userColumns = columns{
	query.FieldID:        "id",
	query.FieldUsername:  "username",
	query.FieldEmail:     "email",
	query.FieldRole:      "role",
	query.FieldCreatedAt: "created_at",
	query.FieldUpdatedAt: "updated_at",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// predicate renders an expression tree as a parameterized WHERE body.
// Values are never interpolated; each one becomes the next $n placeholder.
type predicate struct {
	cols columns
	args []interface{}
}

func (p *predicate) bind(v interface{}) string {
	p.args = append(p.args, v)
	return fmt.Sprintf("$%d", len(p.args))
}

func (p *predicate) render(e query.Expr) (string, error) {
	switch n := e.(type) {
	case nil:
		return "TRUE", nil
	case query.And:
		return p.join(n.Terms, " AND ", "TRUE")
	case query.Or:
		return p.join(n.Terms, " OR ", "FALSE")
	case query.Cmp:
		return p.compare(n)
	default:
		return "", fmt.Errorf("unsupported expression %T", e)
	}
}

func (p *predicate) join(terms []query.Expr, sep, empty string) (string, error) {
	if len(terms) == 0 {
		return empty, nil
	}

	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		part, err := p.render(t)
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}

	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func (p *predicate) compare(c query.Cmp) (string, error) {
	col, ok := p.cols[c.Field]
	if !ok {
		return "", fmt.Errorf("unsupported filter field %q", c.Field)
	}

	switch c.Op {
	case query.OpEq:
		return fmt.Sprintf("%s = %s", col, p.bind(c.Value)), nil
	case query.OpGte:
		return fmt.Sprintf("%s >= %s", col, p.bind(c.Value)), nil
	case query.OpLte:
		return fmt.Sprintf("%s <= %s", col, p.bind(c.Value)), nil
	case query.OpContains:
		term, ok := c.Value.(string)
		if !ok {
			return "", fmt.Errorf("contains on %q needs a string, got %T", c.Field, c.Value)
		}
		pattern := "%" + likeEscaper.Replace(term) + "%"
		return fmt.Sprintf(`%s ILIKE %s ESCAPE '\'`, col, p.bind(pattern)), nil
	default:
		return "", fmt.Errorf("unsupported operator %s", c.Op)
	}
}

// whereClause returns " WHERE ..." (or "" for a nil expression) and its arguments
func whereClause(cols columns, e query.Expr) (string, []interface{}, error) {
	if e == nil {
		return "", nil, nil
	}

	p := &predicate{cols: cols}
	body, err := p.render(e)
	if err != nil {
		return "", nil, err
	}
	return " WHERE " + body, p.args, nil
}

// orderClause sorts by spec.SortField, breaking ties on id so pages are stable
func orderClause(cols columns, spec query.Spec) (string, error) {
	col, ok := cols[spec.SortField]
	if !ok {
		return "", fmt.Errorf("unsupported sort field %q", spec.SortField)
	}

	dir := "DESC"
	if spec.Direction == query.Asc {
		dir = "ASC"
	}

	if col == "id" {
		return fmt.Sprintf(" ORDER BY id %s", dir), nil
	}
	return fmt.Sprintf(" ORDER BY %s %s, id %s", col, dir, dir), nil
}

// pageClause appends LIMIT/OFFSET placeholders after the existing args
func pageClause(args []interface{}, spec query.Spec) (string, []interface{}) {
	n := len(args)
	args = append(args, spec.Take(), spec.Skip())
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", n+1, n+2), args
}
