package presentation

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/remora/internal/delivery"
	"github.com/tazhate/remora/internal/domain"
	"github.com/tazhate/remora/internal/service"
)

type mockCoordinator struct {
	mu      sync.Mutex
	updates []domain.Reminder
	flags   []bool
	err     error
}

func (m *mockCoordinator) Update(r *domain.Reminder, reschedule bool) <-chan service.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, *r)
	m.flags = append(m.flags, reschedule)
	ch := make(chan service.Result, 1)
	ch <- service.Result{Reminder: r, Err: m.err}
	return ch
}

type mockSignals struct{ stops atomic.Int32 }

func (m *mockSignals) StopAlert() { m.stops.Add(1) }

type mockAlert struct{ stops atomic.Int32 }

func (m *mockAlert) Stop() { m.stops.Add(1) }

var buyMilk = domain.Reminder{
	ID:          7,
	Title:       "Buy milk",
	Description: "2 liters",
	DueDateTime: time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC),
	Priority:    domain.PriorityHigh,
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func TestAlarmModel_View(t *testing.T) {
	m := NewAlarmModel(buyMilk)
	view := m.View()

	assert.Contains(t, view, "Buy milk")
	assert.Contains(t, view, "2 liters")
	assert.Contains(t, view, "09:30")
	assert.Contains(t, view, "HIGH")
	assert.Contains(t, view, "Dismiss & Complete")
}

func TestAlarmModel_Keys(t *testing.T) {
	tests := []struct {
		key       string
		quits     bool
		dismissed bool
	}{
		{"enter", true, true},
		{"d", true, true},
		{"q", true, false},
		{"esc", true, false},
		{"ctrl+c", true, false},
		{"x", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			next, cmd := NewAlarmModel(buyMilk).Update(key(tt.key))
			m := next.(AlarmModel)
			assert.Equal(t, tt.dismissed, m.Dismissed())
			if tt.quits {
				require.NotNil(t, cmd)
				assert.IsType(t, tea.QuitMsg{}, cmd())
			} else {
				assert.Nil(t, cmd)
			}
		})
	}
}

func TestSession_DismissCompletesWithoutReschedule(t *testing.T) {
	coord := &mockCoordinator{}
	signals := &mockSignals{}
	s := NewSession(coord, signals, nil, io.Discard)

	require.NoError(t, s.dismiss(context.Background(), buyMilk))

	assert.Equal(t, int32(1), signals.stops.Load())
	require.Len(t, coord.updates, 1)
	assert.True(t, coord.updates[0].IsCompleted)
	assert.Equal(t, int64(7), coord.updates[0].ID)
	assert.Equal(t, []bool{false}, coord.flags)
}

func TestSession_DismissWithoutIDOnlyStops(t *testing.T) {
	coord := &mockCoordinator{}
	signals := &mockSignals{}
	s := NewSession(coord, signals, nil, io.Discard)

	require.NoError(t, s.dismiss(context.Background(), domain.Reminder{Title: domain.DefaultAlarmTitle}))

	assert.Equal(t, int32(1), signals.stops.Load())
	assert.Empty(t, coord.updates)
}

func TestSession_DismissReportsStoreFailure(t *testing.T) {
	coord := &mockCoordinator{err: errors.New("disk full")}
	s := NewSession(coord, &mockSignals{}, nil, io.Discard)

	err := s.dismiss(context.Background(), buyMilk)
	assert.ErrorContains(t, err, "disk full")
}

func TestSession_ShowDismissedByKey(t *testing.T) {
	coord := &mockCoordinator{}
	signals := &mockSignals{}
	alert := &mockAlert{}
	s := NewSession(coord, signals, strings.NewReader("d"), io.Discard, tea.WithoutRenderer())

	r := buyMilk
	require.NoError(t, s.Show(context.Background(), &r, alert))

	assert.Equal(t, int32(1), signals.stops.Load())
	assert.Equal(t, int32(1), alert.stops.Load())
	require.Len(t, coord.updates, 1)
	assert.True(t, coord.updates[0].IsCompleted)
}

func TestSession_ContextCancelStillStopsAlert(t *testing.T) {
	coord := &mockCoordinator{}
	alert := &mockAlert{}
	in, w := io.Pipe()
	defer w.Close()
	s := NewSession(coord, &mockSignals{}, in, io.Discard, tea.WithoutRenderer())

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	r := buyMilk
	go func() { errc <- s.Show(ctx, &r, alert) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("view did not exit")
	}
	assert.Equal(t, int32(1), alert.stops.Load())
	assert.Empty(t, coord.updates)
}

func TestSession_PresentReplacesVisibleView(t *testing.T) {
	coord := &mockCoordinator{}
	first, second := &mockAlert{}, &mockAlert{}
	in, w := io.Pipe()
	defer w.Close()
	s := NewSession(coord, &mockSignals{}, in, io.Discard, tea.WithoutRenderer())
	defer s.Close()

	r1, r2 := buyMilk, buyMilk
	r2.ID = 8
	require.NoError(t, s.Present(context.Background(), &r1, first))
	require.NoError(t, s.Present(context.Background(), &r2, second))

	require.Eventually(t, func() bool { return first.stops.Load() == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(0), second.stops.Load())

	s.Close()
	require.Eventually(t, func() bool { return second.stops.Load() == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Empty(t, coord.updates)
}

func (s *Session) visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.program != nil
}

func TestSession_StopBroadcastQuitsView(t *testing.T) {
	signals := delivery.NewSignals()
	alerts := delivery.NewAlertController(nil, nil)
	defer signals.Listen(delivery.ActionStopAlert, func() { alerts.StopAll() })()

	coord := &mockCoordinator{}
	in, w := io.Pipe()
	defer w.Close()
	s := NewSession(coord, signals, in, io.Discard, tea.WithoutRenderer())
	defer s.Close()
	defer s.Follow(signals)()

	r := buyMilk
	require.NoError(t, s.Present(context.Background(), &r, alerts.Start(&r)))
	require.True(t, s.visible())

	// Stopped from another surface.
	signals.StopAlert()

	_, ringing := alerts.Active()
	assert.False(t, ringing)
	require.Eventually(t, func() bool { return !s.visible() }, 3*time.Second, 10*time.Millisecond)
	assert.Empty(t, coord.updates)
}

func TestSession_OwnDismissWithFollowDoesNotDeadlock(t *testing.T) {
	signals := delivery.NewSignals()
	coord := &mockCoordinator{}
	alert := &mockAlert{}
	s := NewSession(coord, signals, strings.NewReader("d"), io.Discard, tea.WithoutRenderer())
	defer s.Follow(signals)()

	errc := make(chan error, 1)
	r := buyMilk
	go func() { errc <- s.Show(context.Background(), &r, alert) }()

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("dismiss did not return")
	}
	require.Len(t, coord.updates, 1)
	assert.True(t, coord.updates[0].IsCompleted)
	assert.False(t, s.visible())
}
