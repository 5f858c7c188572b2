package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaiser100010/grc-system-sub002/internal/apperr"
	"github.com/kaiser100010/grc-system-sub002/internal/repository"
	"github.com/kaiser100010/grc-system-sub002/internal/repository/memory"
)

var tasks = repository.MustKind(repository.KindTasks)

func TestBuildWhere(t *testing.T) {
	p, err := repository.Prepare(tasks, repository.Query{Filter: []repository.Predicate{
		{Field: "status", Op: repository.OpEq, Value: "pending"},
		{Field: "dueDate", Op: repository.OpLte, Value: "2025-06-30"},
		{Field: "assigneeId", Op: repository.OpEq, Value: nil},
	}})
	require.NoError(t, err)

	sql, args := buildWhere(p)
	assert.Equal(t, "WHERE 1=1 AND lower(t.status) = lower($1) AND t.due_date <= $2 AND t.assignee_id IS NULL", sql)
	require.Len(t, args, 2)
	assert.Equal(t, "pending", args[0])
	assert.Equal(t, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), args[1])
}

func TestOrderBy(t *testing.T) {
	cases := []struct {
		name  string
		order *repository.Order
		want  string
	}{
		{"default", nil, "ORDER BY t.created_at DESC NULLS LAST, t.id ASC"},
		{"text is case-insensitive", &repository.Order{Field: "title"}, "ORDER BY lower(t.title) ASC NULLS FIRST, t.id ASC"},
		{"id only", &repository.Order{Field: "id", Desc: true}, "ORDER BY t.id DESC"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := repository.Prepare(tasks, repository.Query{Order: tc.order})
			require.NoError(t, err)
			assert.Equal(t, tc.want, orderBy(p))
		})
	}
}

func TestSelectListResolvesReferences(t *testing.T) {
	proj, err := repository.Projection(tasks, []string{"assigneeId"})
	require.NoError(t, err)
	assert.Equal(t, "t.id, (SELECT r.id FROM users r WHERE r.id = t.assignee_id) AS assignee_id", selectList(proj))
}

func TestResourceRepo_List(t *testing.T) {
	mock := newMock(t)
	repo := NewResourceRepo(mock)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM tasks t WHERE 1=1 AND lower\(t.status\) = lower\(\$1\)`).
		WithArgs("pending").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`SELECT t.id, t.title\s+FROM tasks t`).
		WithArgs("pending", 2, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "title"}).
			AddRow("a", "First").
			AddRow("b", "Second"))

	rows, total, err := repo.List(context.Background(), tasks, repository.Query{
		Filter: []repository.Predicate{{Field: "status", Op: repository.OpEq, Value: "pending"}},
		Fields: []string{"title"},
		Limit:  2,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, rows, 2)
	assert.Equal(t, "First", rows[0]["title"])
}

func TestResourceRepo_DeleteMissing(t *testing.T) {
	mock := newMock(t)
	repo := NewResourceRepo(mock)

	mock.ExpectExec(`DELETE FROM tasks WHERE id = \$1`).
		WithArgs("gone").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := repo.Delete(context.Background(), tasks, "gone")
	require.ErrorIs(t, err, apperr.ErrNotFound)
	assert.EqualError(t, err, "task not found")
}

func TestResourceRepo_UpdateConflict(t *testing.T) {
	mock := newMock(t)
	repo := NewResourceRepo(mock)
	stored := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	stale := stored.Add(-time.Second)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT updated_at FROM tasks WHERE id = \$1 FOR UPDATE`).
		WithArgs("t1").
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(stored))
	mock.ExpectRollback()

	_, err := repo.Update(context.Background(), tasks, "t1", map[string]any{"status": "completed"}, "u1", &stale)
	require.ErrorIs(t, err, apperr.ErrConflict)
}

func TestResourceRepo_CountRelated(t *testing.T) {
	mock := newMock(t)
	repo := NewResourceRepo(mock)

	mock.ExpectQuery(`SELECT \(SELECT COUNT\(\*\) FROM controls WHERE owner_id = \$1\)`).
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"controls", "employees", "evidence", "incidents", "policies", "risks", "tasks"}).
			AddRow(int64(1), int64(0), int64(2), int64(0), int64(0), int64(4), int64(3)))

	counts, err := repo.CountRelated(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		"controls": 1, "employees": 0, "evidence": 2, "incidents": 0, "policies": 0, "risks": 4, "tasks": 3,
	}, counts)
}

func TestTranslate(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"unique", &pgconn.PgError{Code: "23505"}, apperr.ErrConflict},
		{"bad text", &pgconn.PgError{Code: "22P02"}, apperr.ErrValidation},
		{"connection", &pgconn.PgError{Code: "08001"}, apperr.ErrStoreUnavailable},
		{"shutdown", &pgconn.PgError{Code: "57P01"}, apperr.ErrStoreUnavailable},
		{"deadline", context.DeadlineExceeded, apperr.ErrStoreUnavailable},
		{"passthrough", apperr.NotFound("task not found"), apperr.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, translate(tc.err, nil), tc.want)
		})
	}

	other := translate(errors.New("boom"), nil)
	for _, s := range []error{apperr.ErrConflict, apperr.ErrValidation, apperr.ErrStoreUnavailable, apperr.ErrNotFound} {
		assert.NotErrorIs(t, other, s)
	}
}

// The in-process evaluator and the SQL builder must agree on text matching.
func TestTextFilterMatchesMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	for _, title := range []string{"Audit Q1", "Audit Q2"} {
		_, err := store.Resources().Create(ctx, tasks, map[string]any{"title": title}, "")
		require.NoError(t, err)
	}
	q := repository.Query{Filter: []repository.Predicate{{Field: "title", Op: repository.OpEq, Value: "AUDIT q1"}}}

	rows, total, err := store.Resources().List(ctx, tasks, q)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, rows, 1)
	assert.Equal(t, "Audit Q1", rows[0]["title"])

	p, err := repository.Prepare(tasks, q)
	require.NoError(t, err)
	sql, args := buildWhere(p)
	assert.Equal(t, "WHERE 1=1 AND lower(t.title) = lower($1)", sql)
	assert.Equal(t, []any{"AUDIT q1"}, args)

	mock := newMock(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM tasks t WHERE 1=1 AND lower\(t.title\) = lower\(\$1\)`).
		WithArgs("AUDIT q1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`FROM tasks t\s+WHERE 1=1 AND lower\(t.title\) = lower\(\$1\)`).
		WithArgs("AUDIT q1", repository.DefaultLimit, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "title"}).AddRow("a", "Audit Q1"))
	got, n, err := NewResourceRepo(mock).List(ctx, tasks, repository.Query{Filter: q.Filter, Fields: []string{"title"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "Audit Q1", got[0]["title"])
}
