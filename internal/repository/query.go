package repository

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/kaiser100010/grc-system-sub002/internal/apperr"
	"github.com/kaiser100010/grc-system-sub002/internal/models"
)

type Op string

const (
	OpEq  Op = "eq"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
)

func ParseOp(s string) (Op, bool) {
	switch Op(s) {
	case OpEq, OpGt, OpGte, OpLt, OpLte:
		return Op(s), true
	}
	return "", false
}

// Predicate is one conjunct of a filter. Value may be raw (string from a
// query string) until the query is prepared against a kind.
type Predicate struct {
	Field string
	Op    Op
	Value any
}

type Order struct {
	Field string
	Desc  bool
}

const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// Query is the caller-facing list request.
type Query struct {
	Filter []Predicate
	Fields []string // projection; empty means every public field
	Order  *Order
	Limit  int
	Offset int
}

// Plan is a Query resolved against a kind: fields exist, values are typed,
// secret fields are gone.
type Plan struct {
	Kind    *Kind
	Filter  []Predicate
	Project []*Field
	Order   Order
	Limit   int
	Offset  int
}

// Prepare validates q against k.
func Prepare(k *Kind, q Query) (*Plan, error) {
	p := &Plan{Kind: k}

	for _, pr := range q.Filter {
		f, ok := k.Field(pr.Field)
		if !ok || f.Secret {
			return nil, apperr.Validation("unknown filter field: " + pr.Field)
		}
		if _, ok := ParseOp(string(pr.Op)); !ok {
			return nil, apperr.Validation("unknown filter operator: " + string(pr.Op))
		}
		if pr.Op != OpEq && (f.Type == TypeBool || f.Type == TypeEnum) {
			return nil, apperr.Validation("range filter not supported on " + pr.Field)
		}
		v, err := Coerce(f, pr.Value)
		if err != nil {
			return nil, err
		}
		p.Filter = append(p.Filter, Predicate{Field: f.Name, Op: pr.Op, Value: v})
	}

	proj, err := Projection(k, q.Fields)
	if err != nil {
		return nil, err
	}
	p.Project = proj

	p.Order = k.Order
	if q.Order != nil && q.Order.Field != "" {
		f, ok := k.Field(q.Order.Field)
		if !ok || f.Secret {
			return nil, apperr.Validation("unknown sort field: " + q.Order.Field)
		}
		p.Order = Order{Field: f.Name, Desc: q.Order.Desc}
	}

	p.Limit, p.Offset = ClampPage(q.Limit, q.Offset)
	return p, nil
}

// ClampPage applies the default and maximum page size.
func ClampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Projection resolves requested field names. Secret fields are dropped
// silently; unknown names are rejected; id is always included.
func Projection(k *Kind, names []string) ([]*Field, error) {
	if len(names) == 0 {
		return k.Public(), nil
	}
	seen := map[string]bool{}
	idField, _ := k.Field("id")
	out := []*Field{idField}
	seen["id"] = true
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		f, ok := k.Field(n)
		if !ok {
			return nil, apperr.Validation("unknown field: " + n)
		}
		seen[n] = true
		if f.Secret {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

// Coerce converts v into the Go type stored for f. nil passes through.
func Coerce(f *Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	bad := func() error {
		return apperr.Validation(fmt.Sprintf("invalid value for %s", f.Name))
	}
	switch f.Type {
	case TypeString, TypeRef:
		s, ok := v.(string)
		if !ok {
			return nil, bad()
		}
		return strings.TrimSpace(s), nil
	case TypeEnum:
		s, ok := v.(string)
		if !ok {
			return nil, bad()
		}
		s = strings.TrimSpace(s)
		if !f.allows(s) {
			return nil, apperr.Validation(fmt.Sprintf("%s must be one of %s", f.Name, strings.Join(f.Enum, ", ")))
		}
		return s, nil
	case TypeBool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			pb, err := strconv.ParseBool(b)
			if err != nil {
				return nil, bad()
			}
			return pb, nil
		}
		return nil, bad()
	case TypeInt:
		n, ok := toInt64(v)
		if !ok {
			return nil, bad()
		}
		if f.Max > 0 && (n < f.Min || n > f.Max) {
			return nil, apperr.Validation(fmt.Sprintf("%s must be between %d and %d", f.Name, f.Min, f.Max))
		}
		return n, nil
	case TypeTime:
		switch t := v.(type) {
		case time.Time:
			return t.UTC(), nil
		case string:
			pt, err := parseTime(t)
			if err != nil {
				return nil, bad()
			}
			return pt, nil
		}
		return nil, bad()
	}
	return nil, bad()
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	}
	return 0, false
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable time %q", s)
}

// CheckCreate validates client input for a new entity, applies enum
// defaults and returns the typed values keyed by field name.
func CheckCreate(k *Kind, in map[string]any) (models.Entity, error) {
	if !k.Creatable {
		return nil, apperr.Validation(k.Name + " cannot be created through this endpoint")
	}
	out, err := checkWritable(k, in)
	if err != nil {
		return nil, err
	}
	for i := range k.Fields {
		f := &k.Fields[i]
		if !f.Writable {
			continue
		}
		if _, set := out[f.Name]; !set && f.Default != nil {
			out[f.Name] = f.Default
		}
		if f.Required && isEmpty(out[f.Name]) {
			return nil, apperr.Validation(f.Name + " is required")
		}
	}
	return out, nil
}

// CheckUpdate validates a partial update.
func CheckUpdate(k *Kind, in map[string]any) (models.Entity, error) {
	if len(in) == 0 {
		return nil, apperr.Validation("no fields to update")
	}
	out, err := checkWritable(k, in)
	if err != nil {
		return nil, err
	}
	for name, v := range out {
		f, _ := k.Field(name)
		if (f.Required || f.Type == TypeEnum || f.Type == TypeBool) && isEmpty(v) {
			return nil, apperr.Validation(name + " cannot be empty")
		}
	}
	return out, nil
}

func checkWritable(k *Kind, in map[string]any) (models.Entity, error) {
	out := models.Entity{}
	for name, raw := range in {
		f, ok := k.Field(name)
		if !ok || !f.Writable {
			return nil, apperr.Validation("field not writable: " + name)
		}
		v, err := Coerce(f, raw)
		if err != nil {
			return nil, err
		}
		if f.Type == TypeRef && v == "" {
			v = nil
		}
		out[name] = v
	}
	return out, nil
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// RefIDs groups the non-nil reference values of e by target kind.
func RefIDs(k *Kind, e models.Entity) map[string][]string {
	out := map[string][]string{}
	for i := range k.Fields {
		f := &k.Fields[i]
		if f.Type != TypeRef {
			continue
		}
		if id, ok := e[f.Name].(string); ok && id != "" {
			out[f.Ref] = append(out[f.Ref], id)
		}
	}
	return out
}

func notFound(singular string) error { return apperr.NotFound(singular + " not found") }

// MissingRef builds the validation error for a reference to a nonexistent row.
func MissingRef(kind, id string) error {
	return apperr.Validation(fmt.Sprintf("referenced %s %q does not exist", kind, id))
}
