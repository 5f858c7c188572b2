package repository

import (
	"sort"
	"strings"
	"time"

	"github.com/kaiser100010/grc-system-sub002/internal/models"
)

// Evaluate runs a prepared plan over rows held in memory: filter, stable
// order with id as tie-breaker, page, project. It returns the page and the
// number of rows that matched before paging.
func Evaluate(p *Plan, rows []models.Entity) ([]models.Entity, int) {
	matched := make([]models.Entity, 0, len(rows))
	for _, r := range rows {
		if Match(p.Filter, r) {
			matched = append(matched, r)
		}
	}
	SortEntities(matched, p.Order)

	total := len(matched)
	start := p.Offset
	if start > total {
		start = total
	}
	end := total
	if p.Limit > 0 && start+p.Limit < end {
		end = start + p.Limit
	}

	out := make([]models.Entity, 0, end-start)
	for _, r := range matched[start:end] {
		out = append(out, Project(r, p.Project))
	}
	return out, total
}

// Match reports whether e satisfies every predicate.
func Match(filter []Predicate, e models.Entity) bool {
	for _, pr := range filter {
		c, ok := compare(e[pr.Field], pr.Value)
		if !ok {
			return false
		}
		switch pr.Op {
		case OpEq:
			if c != 0 {
				return false
			}
		case OpGt:
			if c <= 0 {
				return false
			}
		case OpGte:
			if c < 0 {
				return false
			}
		case OpLt:
			if c >= 0 {
				return false
			}
		case OpLte:
			if c > 0 {
				return false
			}
		}
	}
	return true
}

// SortEntities orders rows by o, then by id ascending.
func SortEntities(rows []models.Entity, o Order) {
	sort.SliceStable(rows, func(i, j int) bool {
		c, _ := compare(rows[i][o.Field], rows[j][o.Field])
		if o.Desc {
			c = -c
		}
		if c != 0 {
			return c < 0
		}
		return rows[i].ID() < rows[j].ID()
	})
}

// Project copies only the given fields; missing values come back as nil.
func Project(e models.Entity, fields []*Field) models.Entity {
	out := make(models.Entity, len(fields))
	for _, f := range fields {
		if f.Secret {
			continue
		}
		out[f.Name] = e[f.Name]
	}
	return out
}

// compare orders two stored values of the same field. nil sorts first.
// ok is false when either side is nil and the other is not, or when the
// types disagree.
func compare(a, b any) (int, bool) {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0, true
		case a == nil:
			return -1, false
		default:
			return 1, false
		}
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(strings.ToLower(av), strings.ToLower(bv)), true
	case int64:
		bv, ok := b.(int64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		}
		return 1, true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	}
	return 0, false
}
