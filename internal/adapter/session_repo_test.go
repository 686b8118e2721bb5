//go:build unit

package adapter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestSessionRepo_InsertAndTouch(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	repo := NewSessionRepo(withClock(clock.Now))
	ctx := context.Background()

	s, err := repo.Insert(ctx, uuid.New(), nil)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, s.ID)
	assert.Equal(t, clock.Now(), s.CreatedAt)

	clock.Advance(time.Minute)
	touched, err := repo.Touch(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.CreatedAt, touched.CreatedAt)
	assert.Equal(t, clock.Now(), touched.LastSeen)
}

func TestSessionRepo_UnknownID(t *testing.T) {
	repo := NewSessionRepo()
	ctx := context.Background()

	_, err := repo.Touch(ctx, uuid.New())
	assert.ErrorIs(t, err, errNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, uuid.New()), errNotFound)
}

func TestSessionRepo_MaxSessions(t *testing.T) {
	repo := NewSessionRepo(WithMaxSessions(2))
	ctx := context.Background()

	a, err := repo.Insert(ctx, uuid.New(), nil)
	require.NoError(t, err)
	_, err = repo.Insert(ctx, uuid.New(), nil)
	require.NoError(t, err)
	_, err = repo.Insert(ctx, uuid.New(), nil)
	assert.ErrorIs(t, err, errFull)
	assert.Equal(t, 2, repo.Len())

	require.NoError(t, repo.Delete(ctx, a.ID))
	_, err = repo.Insert(ctx, uuid.New(), nil)
	assert.NoError(t, err)
}

func TestSessionRepo_SweepDropsIdleSessions(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	var opened, closed int
	repo := NewSessionRepo(
		withClock(clock.Now),
		WithSessionHooks(func() { opened++ }, func() { closed++ }),
	)
	ctx := context.Background()

	old, _ := repo.Insert(ctx, uuid.New(), nil)
	clock.Advance(20 * time.Minute)
	fresh, _ := repo.Insert(ctx, uuid.New(), nil)
	clock.Advance(20 * time.Minute)

	n := repo.Sweep(ctx, 30*time.Minute)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, repo.Len())

	_, err := repo.Touch(ctx, old.ID)
	assert.ErrorIs(t, err, errNotFound)
	_, err = repo.Touch(ctx, fresh.ID)
	assert.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, fresh.ID))
	assert.Equal(t, 2, opened)
	assert.Equal(t, 2, closed)
	assert.Zero(t, repo.Len())
}

func TestSessionRepo_RunSweeperStopsWithContext(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	repo := NewSessionRepo(withClock(clock.Now))
	_, _ = repo.Insert(context.Background(), uuid.New(), nil)
	clock.Advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	swept := make(chan int, 1)
	done := make(chan struct{})
	go func() {
		repo.RunSweeper(ctx, 5*time.Millisecond, time.Minute, func(n int) { swept <- n })
		close(done)
	}()

	select {
	case n := <-swept:
		assert.Equal(t, 1, n)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not run")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSessionRepo_InsertConflict(t *testing.T) {
	repo := NewSessionRepo()
	ctx := context.Background()
	id := uuid.New()

	_, err := repo.Insert(ctx, id, nil)
	require.NoError(t, err)
	_, err = repo.Insert(ctx, id, nil)
	assert.ErrorIs(t, err, errConflict)
	assert.Equal(t, 1, repo.Len())
}
