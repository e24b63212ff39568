package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/remora/internal/domain"
	"github.com/tazhate/remora/internal/repository"
	"github.com/tazhate/remora/internal/storage"
)

type call struct {
	op  string
	id  int64
	due time.Time
}

// mockScheduler keeps one registration per id, like the real gateway.
type mockScheduler struct {
	mu    sync.Mutex
	calls []call
	regs  map[int64]time.Time
}

func newMockScheduler() *mockScheduler {
	return &mockScheduler{regs: make(map[int64]time.Time)}
}

func (m *mockScheduler) Schedule(r *domain.Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call{op: "schedule", id: r.ID, due: r.DueDateTime})
	m.regs[r.ID] = r.DueDateTime
	return nil
}

func (m *mockScheduler) Cancel(r *domain.Reminder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call{op: "cancel", id: r.ID})
	delete(m.regs, r.ID)
}

func (m *mockScheduler) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockScheduler) registration(id int64) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.regs[id]
	return t, ok
}

type mockMirror struct {
	mu      sync.Mutex
	put     []int64
	removed []int64
	err     error
}

func (m *mockMirror) Put(_ context.Context, r *domain.Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put = append(m.put, r.ID)
	return m.err
}

func (m *mockMirror) Remove(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, id)
	return m.err
}

func newTestService(t *testing.T, opts Options) (*ReminderService, *mockScheduler) {
	t.Helper()
	store, err := storage.New(filepath.Join(t.TempDir(), "remora.db"))
	require.NoError(t, err)
	sched := newMockScheduler()
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.GracePeriod == 0 {
		opts.GracePeriod = 50 * time.Millisecond
	}
	svc := NewReminderService(repository.NewReminderRepository(store), sched, opts)
	t.Cleanup(func() {
		svc.Close()
		store.Close()
	})
	return svc, sched
}

func await(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("operation did not complete")
		return Result{}
	}
}

func due(day, hour int) time.Time {
	return time.Date(2030, 6, day, hour, 0, 0, 0, time.UTC)
}

// waitForList waits until the live list satisfies cond.
func waitForList(t *testing.T, ch <-chan []*domain.Reminder, cond func([]*domain.Reminder) bool) []*domain.Reminder {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case list, ok := <-ch:
			require.True(t, ok, "subscription closed")
			if cond(list) {
				return list
			}
		case <-deadline:
			t.Fatal("live list never matched")
			return nil
		}
	}
}

func TestReminderService_InsertListsAndSchedules(t *testing.T) {
	svc, sched := newTestService(t, Options{})
	ch, cancel := svc.AllReminders().Subscribe()
	defer cancel()

	res := await(t, svc.Insert(&domain.Reminder{Title: "  Buy milk ", DueDateTime: due(2, 9)}))
	require.NoError(t, res.Err)
	require.NotZero(t, res.Reminder.ID)

	list := waitForList(t, ch, func(l []*domain.Reminder) bool { return len(l) == 1 })
	assert.Equal(t, res.Reminder.ID, list[0].ID)
	assert.Equal(t, "Buy milk", list[0].Title)
	assert.Equal(t, domain.PriorityLow, list[0].Priority)

	at, ok := sched.registration(res.Reminder.ID)
	require.True(t, ok)
	assert.Equal(t, due(2, 9), at)
}

func TestReminderService_InsertRejectsEmptyTitle(t *testing.T) {
	svc, sched := newTestService(t, Options{})

	res := await(t, svc.Insert(&domain.Reminder{Title: "   "}))
	assert.ErrorIs(t, res.Err, domain.ErrEmptyTitle)
	assert.Zero(t, sched.callCount())
}

func TestReminderService_ListIsOrderedByDueTime(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ch, cancel := svc.AllReminders().Subscribe()
	defer cancel()

	svc.Insert(&domain.Reminder{Title: "late", DueDateTime: due(5, 9)})
	svc.Insert(&domain.Reminder{Title: "early", DueDateTime: due(1, 9)})
	await(t, svc.Insert(&domain.Reminder{Title: "middle", DueDateTime: due(3, 9)}))

	list := waitForList(t, ch, func(l []*domain.Reminder) bool { return len(l) == 3 })
	assert.Equal(t, []string{"early", "middle", "late"}, []string{list[0].Title, list[1].Title, list[2].Title})
}

func TestReminderService_UpdateWithRescheduleLeavesOneRegistration(t *testing.T) {
	svc, sched := newTestService(t, Options{})
	r := await(t, svc.Insert(&domain.Reminder{Title: "Call mom", DueDateTime: due(2, 9)})).Reminder

	r.DueDateTime = due(4, 18)
	require.NoError(t, await(t, svc.Update(r, true)).Err)

	at, ok := sched.registration(r.ID)
	require.True(t, ok)
	assert.Equal(t, due(4, 18), at)

	sched.mu.Lock()
	defer sched.mu.Unlock()
	assert.Len(t, sched.regs, 1)
	assert.Equal(t, []call{
		{op: "schedule", id: r.ID, due: due(2, 9)},
		{op: "cancel", id: r.ID},
		{op: "schedule", id: r.ID, due: due(4, 18)},
	}, sched.calls)
}

func TestReminderService_UpdateWithoutRescheduleLeavesRegistration(t *testing.T) {
	svc, sched := newTestService(t, Options{})
	r := await(t, svc.Insert(&domain.Reminder{Title: "Call mom", DueDateTime: due(2, 9)})).Reminder
	before := sched.callCount()

	done := r.Completed()
	done.DueDateTime = due(9, 9)
	res := await(t, svc.Update(&done, false))
	require.NoError(t, res.Err)
	assert.True(t, res.Reminder.IsCompleted)

	assert.Equal(t, before, sched.callCount())
	at, ok := sched.registration(r.ID)
	require.True(t, ok)
	assert.Equal(t, due(2, 9), at)
}

func TestReminderService_UpdateUnknownFails(t *testing.T) {
	svc, sched := newTestService(t, Options{})

	res := await(t, svc.Update(&domain.Reminder{ID: 99, Title: "ghost"}, true))
	assert.ErrorIs(t, res.Err, storage.ErrNotFound)
	assert.Zero(t, sched.callCount())
}

func TestReminderService_DeleteUnlistsAndCancels(t *testing.T) {
	svc, sched := newTestService(t, Options{})
	ch, cancel := svc.AllReminders().Subscribe()
	defer cancel()

	r := await(t, svc.Insert(&domain.Reminder{Title: "Trash", DueDateTime: due(2, 9)})).Reminder
	waitForList(t, ch, func(l []*domain.Reminder) bool { return len(l) == 1 })

	require.NoError(t, await(t, svc.Delete(r)).Err)
	waitForList(t, ch, func(l []*domain.Reminder) bool { return len(l) == 0 })

	_, ok := sched.registration(r.ID)
	assert.False(t, ok)

	require.NoError(t, await(t, svc.Delete(r)).Err)
}

func TestReminderService_ToggleDoesNotTouchScheduler(t *testing.T) {
	svc, sched := newTestService(t, Options{})
	r := await(t, svc.Insert(&domain.Reminder{Title: "Gym", DueDateTime: due(2, 9)})).Reminder
	before := sched.callCount()

	res := await(t, svc.ToggleCompleted(r.ID))
	require.NoError(t, res.Err)
	assert.True(t, res.Reminder.IsCompleted)

	res = await(t, svc.ToggleCompleted(r.ID))
	require.NoError(t, res.Err)
	assert.False(t, res.Reminder.IsCompleted)

	assert.Equal(t, before, sched.callCount())

	res = await(t, svc.ToggleCompleted(12345))
	assert.ErrorIs(t, res.Err, storage.ErrNotFound)
}

func TestReminderService_RearmSchedulesOpenFutureReminders(t *testing.T) {
	svc, sched := newTestService(t, Options{})
	svc.now = func() time.Time { return due(3, 0) }

	past := await(t, svc.Insert(&domain.Reminder{Title: "past", DueDateTime: due(1, 9)})).Reminder
	future := await(t, svc.Insert(&domain.Reminder{Title: "future", DueDateTime: due(5, 9)})).Reminder
	doneR := await(t, svc.Insert(&domain.Reminder{Title: "done", DueDateTime: due(6, 9), IsCompleted: true})).Reminder

	sched.mu.Lock()
	sched.regs = make(map[int64]time.Time)
	sched.mu.Unlock()

	n, err := svc.Rearm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok := sched.registration(future.ID)
	assert.True(t, ok)
	_, ok = sched.registration(past.ID)
	assert.False(t, ok)
	_, ok = sched.registration(doneR.ID)
	assert.False(t, ok)
}

func TestReminderService_ListForDate(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	svc.Insert(&domain.Reminder{Title: "b", DueDateTime: due(2, 18)})
	svc.Insert(&domain.Reminder{Title: "other day", DueDateTime: due(3, 9)})
	await(t, svc.Insert(&domain.Reminder{Title: "a", DueDateTime: due(2, 7)}))

	list, err := svc.ListForDate(time.Date(2030, 6, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Title)
	assert.Equal(t, "b", list[1].Title)
}

func TestReminderService_CurrentSelection(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	assert.Nil(t, svc.Current())

	r := &domain.Reminder{ID: 3, Title: "edit me"}
	svc.SetCurrent(r)
	r.Title = "mutated"

	got := svc.Current()
	require.NotNil(t, got)
	assert.Equal(t, "edit me", got.Title)

	svc.ClearCurrent()
	assert.Nil(t, svc.Current())
}

func TestReminderService_MirrorFailureIsNotFatal(t *testing.T) {
	mirror := &mockMirror{err: errors.New("caldav unreachable")}
	svc, _ := newTestService(t, Options{Mirror: mirror})

	res := await(t, svc.Insert(&domain.Reminder{Title: "x", DueDateTime: due(2, 9)}))
	require.NoError(t, res.Err)
	require.NoError(t, await(t, svc.Delete(res.Reminder)).Err)

	mirror.mu.Lock()
	defer mirror.mu.Unlock()
	assert.Equal(t, []int64{res.Reminder.ID}, mirror.put)
	assert.Equal(t, []int64{res.Reminder.ID}, mirror.removed)
}

func TestReminderService_ClosedRejectsWork(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	svc.Close()

	res := await(t, svc.Insert(&domain.Reminder{Title: "late"}))
	assert.ErrorIs(t, res.Err, ErrClosed)
}
