package utils

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaiser100010/grc-system-sub002/internal/apperr"
	"github.com/kaiser100010/grc-system-sub002/internal/repository"
)

func TestListQuery(t *testing.T) {
	q, err := ListQuery(url.Values{
		"fields":         {"title,status"},
		"sort":           {"dueDate"},
		"order":          {"DESC"},
		"limit":          {"10"},
		"offset":         {"20"},
		"status":         {"pending"},
		"dueDate[gte]":   {"2025-01-01"},
		"likelihood[lt]": {"4"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "status"}, q.Fields)
	assert.Equal(t, &repository.Order{Field: "dueDate", Desc: true}, q.Order)
	assert.Equal(t, 10, q.Limit)
	assert.Equal(t, 20, q.Offset)
	assert.Equal(t, []repository.Predicate{
		{Field: "dueDate", Op: repository.OpGte, Value: "2025-01-01"},
		{Field: "likelihood", Op: repository.OpLt, Value: "4"},
		{Field: "status", Op: repository.OpEq, Value: "pending"},
	}, q.Filter)
}

func TestListQueryDefaults(t *testing.T) {
	q, err := ListQuery(url.Values{"limit": {"abc"}})
	require.NoError(t, err)
	assert.Equal(t, repository.DefaultLimit, q.Limit)
	assert.Zero(t, q.Offset)
	assert.Nil(t, q.Order)
	assert.Empty(t, q.Filter)
}

func TestListQueryIgnoresUnderscoreKeys(t *testing.T) {
	q, err := ListQuery(url.Values{"_": {"1700000000"}, "_ts": {"x"}, "status": {"open"}})
	require.NoError(t, err)
	assert.Equal(t, []repository.Predicate{{Field: "status", Op: repository.OpEq, Value: "open"}}, q.Filter)
}

func TestListQueryRejects(t *testing.T) {
	for name, v := range map[string]url.Values{
		"bad operator":     {"status[like]": {"x"}},
		"bad direction":    {"sort": {"title"}, "order": {"sideways"}},
		"order without by": {"order": {"asc"}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ListQuery(v)
			require.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}
