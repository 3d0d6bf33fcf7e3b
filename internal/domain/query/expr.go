package query

import (
	"fmt"
	"strings"
	"time"
)

// Field names a logical, store-independent column.
type Field string

const (
	FieldID          Field = "id"
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldIsDone      Field = "isDone"
	FieldOwnerID     Field = "ownerId"
	FieldUsername    Field = "username"
	FieldEmail       Field = "email"
	FieldRole        Field = "role"
	FieldCreatedAt   Field = "createdAt"
	FieldUpdatedAt   Field = "updatedAt"
)

type Op int

const (
	OpEq Op = iota
	OpGte
	OpLte
	OpContains
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "="
	case OpGte:
		return ">="
	case OpLte:
		return "<="
	case OpContains:
		return "contains"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Expr is a node of a filter expression: And, Or or Cmp.
type Expr interface {
	expr()
}

// And matches when every term matches. An empty And matches everything.
type And struct {
	Terms []Expr
}

// Or matches when at least one term matches. An empty Or matches nothing.
type Or struct {
	Terms []Expr
}

// Cmp compares a single field against a value.
type Cmp struct {
	Field Field
	Op    Op
	Value interface{}
}

func (And) expr() {}
func (Or) expr()  {}
func (Cmp) expr() {}

func Eq(f Field, v interface{}) Cmp     { return Cmp{Field: f, Op: OpEq, Value: v} }
func Gte(f Field, v interface{}) Cmp    { return Cmp{Field: f, Op: OpGte, Value: v} }
func Lte(f Field, v interface{}) Cmp    { return Cmp{Field: f, Op: OpLte, Value: v} }
func Contains(f Field, term string) Cmp { return Cmp{Field: f, Op: OpContains, Value: term} }

// Distribute conjoins filters with each alternative and ORs the results:
// (F AND a1) OR (F AND a2) ... With no alternatives it returns And(F), or nil
// when there is nothing to filter on.
func Distribute(filters []Expr, alternatives []Expr) Expr {
	if len(alternatives) == 0 {
		if len(filters) == 0 {
			return nil
		}
		return And{Terms: filters}
	}

	disjuncts := make([]Expr, 0, len(alternatives))
	for _, alt := range alternatives {
		terms := make([]Expr, 0, len(filters)+1)
		terms = append(terms, filters...)
		terms = append(terms, alt)
		disjuncts = append(disjuncts, And{Terms: terms})
	}
	return Or{Terms: disjuncts}
}

// Matches evaluates expr against a record whose fields are read through get.
// Contains is case-insensitive, mirroring ILIKE. A nil expr matches everything.
func Matches(e Expr, get func(Field) interface{}) bool {
	switch n := e.(type) {
	case nil:
		return true
	case And:
		for _, t := range n.Terms {
			if !Matches(t, get) {
				return false
			}
		}
		return true
	case Or:
		for _, t := range n.Terms {
			if Matches(t, get) {
				return true
			}
		}
		return false
	case Cmp:
		return compare(get(n.Field), n.Op, n.Value)
	default:
		return false
	}
}

func compare(have interface{}, op Op, want interface{}) bool {
	if op == OpContains {
		term, _ := want.(string)
		var s string
		switch v := have.(type) {
		case string:
			s = v
		case *string:
			if v == nil {
				return false
			}
			s = *v
		default:
			return false
		}
		return strings.Contains(strings.ToLower(s), strings.ToLower(term))
	}

	if ht, ok := have.(time.Time); ok {
		wt, ok := want.(time.Time)
		if !ok {
			return false
		}
		switch op {
		case OpEq:
			return ht.Equal(wt)
		case OpGte:
			return !ht.Before(wt)
		case OpLte:
			return !ht.After(wt)
		}
		return false
	}

	if hi, ok := toInt64(have); ok {
		wi, ok := toInt64(want)
		if !ok {
			return false
		}
		switch op {
		case OpEq:
			return hi == wi
		case OpGte:
			return hi >= wi
		case OpLte:
			return hi <= wi
		}
		return false
	}

	return op == OpEq && have == want
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}
