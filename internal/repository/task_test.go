package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hiroki-koketsu/taskboard/internal/kvstore"
	"github.com/hiroki-koketsu/taskboard/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances by one second every time it is read.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// switchSimulation fails every call while failing is set.
type switchSimulation struct {
	mu      sync.Mutex
	failing bool
}

func (s *switchSimulation) Wait(context.Context) error { return nil }

func (s *switchSimulation) Fail() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failing
}

func (s *switchSimulation) set(failing bool) {
	s.mu.Lock()
	s.failing = failing
	s.mu.Unlock()
}

// brokenStore fails every write.
type brokenStore struct {
	*kvstore.MemoryStore
}

func (brokenStore) Put(context.Context, string, []byte) error {
	return errors.New("disk full")
}

func newTestRepo(t *testing.T, store kvstore.Store, sim Simulation) *TaskRepository {
	t.Helper()
	if store == nil {
		store = kvstore.NewMemoryStore()
	}
	if sim == nil {
		sim = NoSimulation{}
	}
	r, err := NewTaskRepository(context.Background(), store, Options{
		Simulation: sim,
		Now:        newFakeClock().Now,
	})
	require.NoError(t, err)
	return r
}

func mustCreate(t *testing.T, r *TaskRepository, title string) *model.Task {
	t.Helper()
	task, err := r.Create(context.Background(), &model.CreateTaskRequest{Title: title})
	require.NoError(t, err)
	return task
}

func TestTaskRepository_CreateThenList(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t, nil, nil)

	due := model.Date{Year: 2026, Month: 11, Day: 1}
	created, err := r.Create(ctx, &model.CreateTaskRequest{Title: "Buy milk", Description: "", DueDate: &due})
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, model.StatusTodo, created.Status)
	assert.False(t, created.Completed)
	assert.Empty(t, created.Comments)
	assert.Empty(t, created.Subtasks)
	assert.NotNil(t, created.Comments)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created, list[0])
	assert.Equal(t, int64(1), r.Count())
}

func TestTaskRepository_ListKeepsInsertionOrder(t *testing.T) {
	r := newTestRepo(t, nil, nil)
	a := mustCreate(t, r, "first")
	b := mustCreate(t, r, "second")
	c := mustCreate(t, r, "third")

	list, err := r.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, []string{list[0].ID, list[1].ID, list[2].ID})
}

func TestTaskRepository_ToggleTwiceRestoresFlag(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t, nil, nil)
	task := mustCreate(t, r, "Water plants")

	done := true
	first, err := r.Update(ctx, task.ID, &model.UpdateTaskRequest{Completed: &done})
	require.NoError(t, err)
	assert.True(t, first.Completed)
	assert.True(t, first.UpdatedAt.After(task.UpdatedAt))

	undone := false
	second, err := r.Update(ctx, task.ID, &model.UpdateTaskRequest{Completed: &undone})
	require.NoError(t, err)
	assert.False(t, second.Completed)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
}

func TestTaskRepository_UpdateSameTitleRefreshesTimestamp(t *testing.T) {
	r := newTestRepo(t, nil, nil)
	task := mustCreate(t, r, "Same title")

	title := "Same title"
	got, err := r.Update(context.Background(), task.ID, &model.UpdateTaskRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Same title", got.Title)
	assert.True(t, got.UpdatedAt.After(task.UpdatedAt))
}

func TestTaskRepository_DeleteThenNotFound(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t, nil, nil)
	task := mustCreate(t, r, "Delete me")

	require.NoError(t, r.Delete(ctx, task.ID))

	list, err := r.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	title := "again"
	_, err = r.Update(ctx, task.ID, &model.UpdateTaskRequest{Title: &title})
	assert.ErrorIs(t, err, model.ErrTaskNotFound)
	assert.ErrorIs(t, r.Delete(ctx, task.ID), model.ErrTaskNotFound)
}

func TestTaskRepository_Comments(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t, nil, nil)
	task := mustCreate(t, r, "Review PR")

	withOne, err := r.AddComment(ctx, task.ID, "looks good")
	require.NoError(t, err)
	require.Len(t, withOne.Comments, 1)
	assert.Equal(t, "looks good", withOne.Comments[0].Text)
	assert.True(t, withOne.UpdatedAt.After(task.UpdatedAt))

	withTwo, err := r.AddComment(ctx, task.ID, "ship it")
	require.NoError(t, err)
	require.Len(t, withTwo.Comments, 2)
	assert.NotEqual(t, withTwo.Comments[0].ID, withTwo.Comments[1].ID)
	assert.True(t, withTwo.UpdatedAt.After(withOne.UpdatedAt))

	afterDelete, err := r.DeleteComment(ctx, task.ID, withTwo.Comments[0].ID)
	require.NoError(t, err)
	require.Len(t, afterDelete.Comments, 1)
	assert.Equal(t, "ship it", afterDelete.Comments[0].Text)

	_, err = r.DeleteComment(ctx, task.ID, "missing")
	assert.ErrorIs(t, err, model.ErrCommentNotFound)

	_, err = r.AddComment(ctx, "missing", "hello")
	assert.ErrorIs(t, err, model.ErrTaskNotFound)
}

func TestTaskRepository_Subtasks(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t, nil, nil)
	task := mustCreate(t, r, "Plan trip")

	withSubtask, err := r.AddSubtask(ctx, task.ID, "Book flights")
	require.NoError(t, err)
	require.Len(t, withSubtask.Subtasks, 1)
	sub := withSubtask.Subtasks[0]
	assert.False(t, sub.Completed)

	toggled, err := r.ToggleSubtask(ctx, task.ID, sub.ID)
	require.NoError(t, err)
	assert.True(t, toggled.Subtasks[0].Completed)
	assert.True(t, toggled.Subtasks[0].UpdatedAt.After(sub.UpdatedAt))
	assert.Equal(t, sub.CreatedAt, toggled.Subtasks[0].CreatedAt)
	assert.True(t, toggled.UpdatedAt.After(withSubtask.UpdatedAt))

	removed, err := r.DeleteSubtask(ctx, task.ID, sub.ID)
	require.NoError(t, err)
	assert.Empty(t, removed.Subtasks)
}

func TestTaskRepository_ToggleMissingSubtaskLeavesTaskUntouched(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t, nil, nil)
	task := mustCreate(t, r, "Plan trip")

	_, err := r.ToggleSubtask(ctx, task.ID, "nope")
	assert.ErrorIs(t, err, model.ErrSubtaskNotFound)
	assert.Equal(t, model.CodeNotFound, model.CodeOf(err))

	list, err := r.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, task.UpdatedAt, list[0].UpdatedAt)
}

func TestTaskRepository_SimulatedFailureUsesCategoryError(t *testing.T) {
	ctx := context.Background()
	sim := &switchSimulation{}
	r := newTestRepo(t, nil, sim)
	task := mustCreate(t, r, "Fragile")

	sim.set(true)

	_, err := r.List(ctx)
	assert.ErrorIs(t, err, model.ErrFetch)
	_, err = r.Create(ctx, &model.CreateTaskRequest{Title: "nope"})
	assert.ErrorIs(t, err, model.ErrCreate)
	_, err = r.Update(ctx, task.ID, &model.UpdateTaskRequest{})
	assert.ErrorIs(t, err, model.ErrUpdate)
	assert.ErrorIs(t, r.Delete(ctx, task.ID), model.ErrDelete)
	_, err = r.AddComment(ctx, task.ID, "hi there")
	assert.ErrorIs(t, err, model.ErrAddComment)
	_, err = r.DeleteComment(ctx, task.ID, "c")
	assert.ErrorIs(t, err, model.ErrDeleteComment)
	_, err = r.AddSubtask(ctx, task.ID, "sub")
	assert.ErrorIs(t, err, model.ErrAddSubtask)
	_, err = r.ToggleSubtask(ctx, task.ID, "s")
	assert.ErrorIs(t, err, model.ErrToggleSubtask)
	_, err = r.DeleteSubtask(ctx, task.ID, "s")
	assert.ErrorIs(t, err, model.ErrDeleteSubtask)

	// The coin flip happens before the lookup.
	_, err = r.Update(ctx, "missing", &model.UpdateTaskRequest{})
	assert.ErrorIs(t, err, model.ErrUpdate)

	sim.set(false)
	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, task, list[0])
}

func TestTaskRepository_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()

	r := newTestRepo(t, store, nil)
	task := mustCreate(t, r, "Durable")
	_, err := r.AddSubtask(ctx, task.ID, "step one")
	require.NoError(t, err)

	reopened := newTestRepo(t, store, nil)
	list, err := reopened.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Durable", list[0].Title)
	require.Len(t, list[0].Subtasks, 1)
	assert.Equal(t, "step one", list[0].Subtasks[0].Title)
}

func TestTaskRepository_StorageWriteFailure(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t, brokenStore{kvstore.NewMemoryStore()}, nil)

	_, err := r.Create(ctx, &model.CreateTaskRequest{Title: "Lost"})
	assert.ErrorIs(t, err, model.ErrCreate)
	assert.Equal(t, int64(0), r.Count())
}

func TestTaskRepository_SeedsDemoTasksOnlyWhenUnwritten(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()

	r, err := NewTaskRepository(ctx, store, Options{Simulation: NoSimulation{}, Seed: true})
	require.NoError(t, err)

	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, model.StatusInProgress, list[0].Status)
	assert.Len(t, list[0].Subtasks, 2)

	for _, task := range list {
		require.NoError(t, r.Delete(ctx, task.ID))
	}

	reopened, err := NewTaskRepository(ctx, store, Options{Simulation: NoSimulation{}, Seed: true})
	require.NoError(t, err)
	list, err = reopened.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestTaskRepository_SeedIsStableUntilFirstWrite(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()

	r, err := NewTaskRepository(ctx, store, Options{
		Simulation: NoSimulation{},
		Seed:       true,
		Now:        newFakeClock().Now,
	})
	require.NoError(t, err)

	first, err := r.List(ctx)
	require.NoError(t, err)
	second, err := r.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = store.Get(ctx, DefaultStorageKey)
	assert.ErrorIs(t, err, kvstore.ErrNotFound, "seeding alone does not write")

	mustCreate(t, r, "First write")
	persisted, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, persisted, 4)
	assert.Equal(t, first[0].CreatedAt, persisted[0].CreatedAt)
}

func TestRandomSimulation(t *testing.T) {
	never := NewRandomSimulation(0, 0)
	always := NewRandomSimulation(0, 1)
	for i := 0; i < 100; i++ {
		assert.False(t, never.Fail())
		assert.True(t, always.Fail())
	}

	slow := NewRandomSimulation(time.Hour, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, slow.Wait(ctx), context.Canceled)
}
