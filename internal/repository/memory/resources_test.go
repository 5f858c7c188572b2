package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaiser100010/grc-system-sub002/internal/apperr"
	"github.com/kaiser100010/grc-system-sub002/internal/repository"
)

var (
	usersKind    = repository.MustKind(repository.KindUsers)
	tasksKind    = repository.MustKind(repository.KindTasks)
	risksKind    = repository.MustKind(repository.KindRisks)
	evidenceKind = repository.MustKind(repository.KindEvidence)
)

func TestResources_UserListNeverProjectsHash(t *testing.T) {
	ctx := context.Background()
	s := New()
	newUser(t, s, "zed@example.com", "Zed")
	newUser(t, s, "amy@example.com", "amy")
	newUser(t, s, "bea@example.com", "Bea")

	for _, fields := range [][]string{nil, {"email", "passwordHash"}} {
		rows, total, err := s.Resources().List(ctx, usersKind, repository.Query{Fields: fields})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		for _, r := range rows {
			assert.NotContains(t, r, "passwordHash")
			assert.Contains(t, r, "id")
		}
	}

	rows, _, err := s.Resources().List(ctx, usersKind, repository.Query{})
	require.NoError(t, err)
	var names []string
	for _, r := range rows {
		names = append(names, r["firstName"].(string))
	}
	assert.Equal(t, []string{"amy", "Bea", "Zed"}, names)
}

func TestResources_UnknownProjectionField(t *testing.T) {
	s := New()
	_, _, err := s.Resources().List(context.Background(), tasksKind, repository.Query{Fields: []string{"nope"}})
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestResources_StableOrderAndIdempotentList(t *testing.T) {
	ctx := context.Background()
	s := New()
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return fixed })
	for i := 0; i < 5; i++ {
		_, err := s.Resources().Create(ctx, tasksKind, map[string]any{"title": "same"}, "")
		require.NoError(t, err)
	}

	q := repository.Query{Order: &repository.Order{Field: "createdAt", Desc: true}}
	first, total, err := s.Resources().List(ctx, tasksKind, q)
	require.NoError(t, err)
	require.Equal(t, 5, total)
	for i := 1; i < len(first); i++ {
		assert.Less(t, first[i-1].ID(), first[i].ID())
	}

	second, _, err := s.Resources().List(ctx, tasksKind, q)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResources_FilterAndPage(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, l := range []int64{1, 2, 3, 4, 5} {
		_, err := s.Resources().Create(ctx, risksKind, map[string]any{"title": "r", "likelihood": float64(l)}, "")
		require.NoError(t, err)
	}

	rows, total, err := s.Resources().List(ctx, risksKind, repository.Query{
		Filter: []repository.Predicate{{Field: "likelihood", Op: repository.OpGte, Value: "3"}},
		Order:  &repository.Order{Field: "likelihood"},
		Limit:  2,
		Offset: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(4), rows[0]["likelihood"])
	assert.Equal(t, int64(5), rows[1]["likelihood"])

	_, _, err = s.Resources().List(ctx, risksKind, repository.Query{
		Filter: []repository.Predicate{{Field: "status", Op: repository.OpGt, Value: "a"}},
	})
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestResources_CreateGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := newUser(t, s, "owner@example.com", "Owner")

	created, err := s.Resources().Create(ctx, tasksKind, map[string]any{
		"title":      "Quarterly access review",
		"priority":   "high",
		"assigneeId": u.ID,
		"dueDate":    "2025-06-30",
	}, u.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID())
	assert.Equal(t, "pending", created["status"])
	assert.Equal(t, u.ID, created["createdBy"])

	got, err := s.Resources().Get(ctx, tasksKind, created.ID(), nil)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	_, err = s.Resources().Get(ctx, tasksKind, "missing", nil)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	assert.EqualError(t, err, "task not found")
}

func TestResources_CreateValidation(t *testing.T) {
	ctx := context.Background()
	s := New()

	cases := []struct {
		name string
		kind *repository.Kind
		in   map[string]any
	}{
		{"missing required", tasksKind, map[string]any{"description": "x"}},
		{"bad enum", tasksKind, map[string]any{"title": "x", "status": "bogus"}},
		{"unknown field", tasksKind, map[string]any{"title": "x", "color": "red"}},
		{"system field", tasksKind, map[string]any{"title": "x", "createdBy": "u"}},
		{"type mismatch", risksKind, map[string]any{"title": "x", "impact": "high"}},
		{"out of range", risksKind, map[string]any{"title": "x", "impact": float64(9)}},
		{"missing user ref", tasksKind, map[string]any{"title": "x", "assigneeId": "ghost"}},
		{"missing entity ref", evidenceKind, map[string]any{"title": "x", "controlId": "ghost"}},
		{"users not creatable", usersKind, map[string]any{"firstName": "x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Resources().Create(ctx, tc.kind, tc.in, "")
			require.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestResources_DanglingReferenceReadsAsNull(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := newUser(t, s, "gone@example.com", "Gone")
	task, err := s.Resources().Create(ctx, tasksKind, map[string]any{"title": "t", "assigneeId": u.ID}, u.ID)
	require.NoError(t, err)

	require.NoError(t, s.Resources().Delete(ctx, usersKind, u.ID))

	got, err := s.Resources().Get(ctx, tasksKind, task.ID(), nil)
	require.NoError(t, err)
	assert.Nil(t, got["assigneeId"])
	assert.Nil(t, got["createdBy"])

	_, err = s.Users().FindByEmail(ctx, "gone@example.com")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestResources_UpdateAndConflict(t *testing.T) {
	ctx := context.Background()
	s := New()
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return clock })

	created, err := s.Resources().Create(ctx, tasksKind, map[string]any{"title": "t"}, "")
	require.NoError(t, err)
	stamp := created["updatedAt"].(time.Time)

	clock = clock.Add(time.Minute)
	updated, err := s.Resources().Update(ctx, tasksKind, created.ID(), map[string]any{"status": "completed"}, "", &stamp)
	require.NoError(t, err)
	assert.Equal(t, "completed", updated["status"])
	assert.True(t, updated["updatedAt"].(time.Time).After(stamp))

	_, err = s.Resources().Update(ctx, tasksKind, created.ID(), map[string]any{"status": "pending"}, "", &stamp)
	require.ErrorIs(t, err, apperr.ErrConflict)

	_, err = s.Resources().Update(ctx, tasksKind, "missing", map[string]any{"status": "pending"}, "", nil)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = s.Resources().Update(ctx, tasksKind, created.ID(), map[string]any{}, "", nil)
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestResources_ConcurrentUpdatesOneWins(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var tick atomic.Int64
	s.SetClock(func() time.Time { return base.Add(time.Duration(tick.Add(1)) * time.Second) })

	created, err := s.Resources().Create(ctx, tasksKind, map[string]any{"title": "t"}, "")
	require.NoError(t, err)
	stamp := created["updatedAt"].(time.Time)

	const writers = 16
	var (
		wg        sync.WaitGroup
		wins      atomic.Int32
		conflicts atomic.Int32
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Resources().Update(ctx, tasksKind, created.ID(),
				map[string]any{"title": fmt.Sprintf("writer %d", i)}, "", &stamp)
			switch {
			case err == nil:
				wins.Add(1)
			case assert.ErrorIs(t, err, apperr.ErrConflict):
				conflicts.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())
	assert.EqualValues(t, writers-1, conflicts.Load())

	got, err := s.Resources().Get(ctx, tasksKind, created.ID(), nil)
	require.NoError(t, err)
	assert.True(t, got["updatedAt"].(time.Time).After(stamp))
}

func TestResources_DoubleDelete(t *testing.T) {
	ctx := context.Background()
	s := New()
	created, err := s.Resources().Create(ctx, tasksKind, map[string]any{"title": "t"}, "")
	require.NoError(t, err)

	require.NoError(t, s.Resources().Delete(ctx, tasksKind, created.ID()))
	require.ErrorIs(t, s.Resources().Delete(ctx, tasksKind, created.ID()), apperr.ErrNotFound)
}

func TestResources_CountRelated(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := newUser(t, s, "counts@example.com", "Counts")
	other := newUser(t, s, "other@example.com", "Other")

	_, err := s.Resources().Create(ctx, tasksKind, map[string]any{"title": "a", "assigneeId": u.ID}, other.ID)
	require.NoError(t, err)
	_, err = s.Resources().Create(ctx, tasksKind, map[string]any{"title": "b", "assigneeId": other.ID}, u.ID)
	require.NoError(t, err)
	_, err = s.Resources().Create(ctx, risksKind, map[string]any{"title": "r", "ownerId": u.ID}, "")
	require.NoError(t, err)

	counts, err := s.Resources().CountRelated(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[repository.KindTasks])
	assert.Equal(t, 1, counts[repository.KindRisks])
	assert.Equal(t, 0, counts[repository.KindIncidents])
	assert.NotContains(t, counts, repository.KindUsers)
}
