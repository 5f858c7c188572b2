package utils

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/kaiser100010/grc-system-sub002/internal/apperr"
	"github.com/kaiser100010/grc-system-sub002/internal/repository"
)

// QueryInt safely parses an integer from query parameters.
// If missing or invalid, returns the provided default.
func QueryInt(q url.Values, key string, def int) int {
	v := q.Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

var reserved = map[string]bool{"fields": true, "sort": true, "order": true, "limit": true, "offset": true}

// ListQuery turns query parameters into a repository.Query:
//
//	fields=a,b  sort=field  order=asc|desc  limit=N  offset=N
//	field=value  field[gte]=value  (also gt, lt, lte, eq)
//
// Keys starting with "_" (cache busters) are ignored. Field names are
// checked later against the kind.
func ListQuery(q url.Values) (repository.Query, error) {
	out := repository.Query{
		Limit:  QueryInt(q, "limit", repository.DefaultLimit),
		Offset: QueryInt(q, "offset", 0),
	}
	if f := strings.TrimSpace(q.Get("fields")); f != "" {
		out.Fields = strings.Split(f, ",")
	}

	if s := strings.TrimSpace(q.Get("sort")); s != "" {
		o := &repository.Order{Field: s}
		switch strings.ToLower(q.Get("order")) {
		case "", "asc":
		case "desc":
			o.Desc = true
		default:
			return out, apperr.Validation("order must be asc or desc")
		}
		out.Order = o
	} else if q.Get("order") != "" {
		return out, apperr.Validation("order requires sort")
	}

	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if reserved[key] || strings.HasPrefix(key, "_") {
			continue
		}
		field, op := key, repository.OpEq
		if i := strings.IndexByte(key, '['); i > 0 && strings.HasSuffix(key, "]") {
			parsed, ok := repository.ParseOp(key[i+1 : len(key)-1])
			if !ok {
				return out, apperr.Validation("unknown filter operator in " + key)
			}
			field, op = key[:i], parsed
		}
		for _, v := range q[key] {
			out.Filter = append(out.Filter, repository.Predicate{Field: field, Op: op, Value: v})
		}
	}
	return out, nil
}
