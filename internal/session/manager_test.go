package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvas-backend/internal/store"
)

func TestManager_OpenReusesSession(t *testing.T) {
	ctx := context.Background()
	m := NewManager(newTestStore(t), nil)

	s, err := m.OpenByResponse(ctx, 42, 7, "Visit 42")
	require.NoError(t, err)
	id := s.Document().ID

	again, err := m.OpenByResponse(ctx, 42, 7, "")
	require.NoError(t, err)
	assert.Same(t, s, again)

	opened, err := m.Open(ctx, id)
	require.NoError(t, err)
	assert.Same(t, s, opened)
	assert.Equal(t, 1, m.Count())

	m.Forget(id)
	_, ok := m.Get(id)
	assert.False(t, ok)
}

func TestManager_OpenMissing(t *testing.T) {
	m := NewManager(newTestStore(t), nil)
	_, err := m.Open(context.Background(), "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
	assert.Zero(t, m.Count())
}

func TestManager_ClearAll(t *testing.T) {
	ctx := context.Background()
	m := NewManager(newTestStore(t), nil)

	a, err := m.OpenByResponse(ctx, 1, 1, "")
	require.NoError(t, err)
	_, err = m.OpenByResponse(ctx, 2, 2, "")
	require.NoError(t, err)

	require.NoError(t, m.ClearAll(ctx))
	assert.Zero(t, m.Count())
	assert.Nil(t, a.Document())
}

func TestManager_OpenRefreshesFromStore(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	m := NewManager(st, nil)

	s, err := m.OpenByResponse(ctx, 1, 1, "")
	require.NoError(t, err)
	id := s.Document().ID

	_, err = st.DocumentStore.CreatePage(ctx, id, 1)
	require.NoError(t, err)

	opened, err := m.Open(ctx, id)
	require.NoError(t, err)
	assert.Same(t, s, opened)
	assert.Len(t, opened.Pages(), 2)

	// a reset from another process
	require.NoError(t, st.DocumentStore.ClearAll(ctx))
	_, err = m.Open(ctx, id)
	require.ErrorIs(t, err, store.ErrNotFound)
	assert.Zero(t, m.Count())
}

func TestManager_Sweep(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	m := NewManager(st, nil)
	clock := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	idle, err := m.OpenByResponse(ctx, 1, 1, "")
	require.NoError(t, err)
	held, err := m.OpenByResponse(ctx, 2, 2, "")
	require.NoError(t, err)
	queued, err := m.OpenByResponse(ctx, 3, 3, "")
	require.NoError(t, err)

	_, release, err := m.Acquire(ctx, held.Document().ID)
	require.NoError(t, err)

	st.setFailAppend(true)
	require.ErrorIs(t, queued.SaveStroke(ctx, firstPage(t, queued), stroke(0, 0, 0.5, 4, 4, 0.5)), ErrWriteFailed)

	assert.Zero(t, m.Sweep(time.Minute), "nothing is idle yet")

	clock = clock.Add(5 * time.Minute)
	assert.Equal(t, 1, m.Sweep(time.Minute))
	_, ok := m.Get(idle.Document().ID)
	assert.False(t, ok)
	_, ok = m.Get(held.Document().ID)
	assert.True(t, ok, "connected clients keep the session")
	_, ok = m.Get(queued.Document().ID)
	assert.True(t, ok, "queued strokes keep the session")

	release()
	release()
	clock = clock.Add(5 * time.Minute)
	assert.Equal(t, 1, m.Sweep(time.Minute))
	_, ok = m.Get(held.Document().ID)
	assert.False(t, ok)
	assert.Equal(t, 1, m.Count())
}
