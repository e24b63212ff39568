package service

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/remora/internal/domain"
)

// fakeSource counts upstream opens and closes and lets tests push lists.
type fakeSource struct {
	mu     sync.Mutex
	opens  int
	closes int
	ch     chan []*domain.Reminder
	err    error
}

func (f *fakeSource) observe() (<-chan []*domain.Reminder, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, nil, f.err
	}
	f.opens++
	ch := make(chan []*domain.Reminder, 1)
	f.ch = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.closes++
			close(ch)
		})
	}, nil
}

func (f *fakeSource) push(list []*domain.Reminder) {
	f.mu.Lock()
	ch := f.ch
	f.mu.Unlock()
	ch <- list
}

func (f *fakeSource) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens, f.closes
}

func TestLiveReminders_NewSubscriberGetsLatestValue(t *testing.T) {
	src := &fakeSource{}
	live := NewLiveReminders(src.observe, time.Hour)
	defer live.Close()

	first, cancel := live.Subscribe()
	defer cancel()
	assert.Empty(t, <-first)

	src.push([]*domain.Reminder{{ID: 1, Title: "a"}})
	got := <-first
	require.Len(t, got, 1)

	second, cancel2 := live.Subscribe()
	defer cancel2()
	latest := <-second
	require.Len(t, latest, 1)
	assert.Equal(t, int64(1), latest[0].ID)
	assert.Len(t, live.Value(), 1)
}

func TestLiveReminders_UpstreamClosedAfterGracePeriod(t *testing.T) {
	src := &fakeSource{}
	live := NewLiveReminders(src.observe, 30*time.Millisecond)
	defer live.Close()

	_, cancel := live.Subscribe()
	opens, _ := src.counts()
	assert.Equal(t, 1, opens)

	cancel()
	assert.True(t, live.Active())

	require.Eventually(t, func() bool {
		_, closes := src.counts()
		return closes == 1
	}, time.Second, 5*time.Millisecond)
	assert.False(t, live.Active())
}

func TestLiveReminders_ResubscribeWithinGraceKeepsUpstream(t *testing.T) {
	src := &fakeSource{}
	live := NewLiveReminders(src.observe, 100*time.Millisecond)
	defer live.Close()

	_, cancel := live.Subscribe()
	cancel()
	_, cancel2 := live.Subscribe()
	defer cancel2()

	time.Sleep(200 * time.Millisecond)
	opens, closes := src.counts()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 0, closes)
	assert.True(t, live.Active())
}

func TestLiveReminders_ReopensAfterTeardown(t *testing.T) {
	src := &fakeSource{}
	live := NewLiveReminders(src.observe, 0)
	defer live.Close()

	_, cancel := live.Subscribe()
	cancel()
	require.Eventually(t, func() bool { return !live.Active() }, time.Second, 5*time.Millisecond)

	_, cancel2 := live.Subscribe()
	defer cancel2()
	opens, _ := src.counts()
	assert.Equal(t, 2, opens)
}

func TestLiveReminders_SourceErrorStillServesLatest(t *testing.T) {
	src := &fakeSource{err: errors.New("db locked")}
	live := NewLiveReminders(src.observe, time.Second)
	defer live.Close()

	ch, cancel := live.Subscribe()
	assert.Empty(t, <-ch)
	assert.False(t, live.Active())

	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)
}
