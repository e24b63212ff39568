package presentation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/tazhate/remora/internal/delivery"
	"github.com/tazhate/remora/internal/domain"
	"github.com/tazhate/remora/internal/metrics"
	"github.com/tazhate/remora/internal/scheduler"
	"github.com/tazhate/remora/internal/service"
)

const completeTimeout = 5 * time.Second

// Coordinator persists the completion of a dismissed reminder.
type Coordinator interface {
	Update(r *domain.Reminder, reschedule bool) <-chan service.Result
}

// StopSender broadcasts the stop-alert signal.
type StopSender interface {
	StopAlert()
}

// Listener registers callbacks for in-app broadcasts.
type Listener interface {
	Listen(action string, fn func()) func()
}

// Session runs at most one alarm view at a time on a terminal.
type Session struct {
	coordinator Coordinator
	signals     StopSender
	in          io.Reader
	out         io.Writer
	options     []tea.ProgramOption
	metrics     *metrics.Metrics

	mu      sync.Mutex
	program *tea.Program
	done    chan struct{}
}

func NewSession(c Coordinator, s StopSender, in io.Reader, out io.Writer, opts ...tea.ProgramOption) *Session {
	return &Session{coordinator: c, signals: s, in: in, out: out, options: opts}
}

// SetMetrics records dismissals on m.
func (s *Session) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Follow quits the visible alarm view whenever the stop-alert broadcast is
// sent, so an alarm resolved on another surface leaves the terminal. The
// returned func unregisters.
func (s *Session) Follow(l Listener) func() {
	return l.Listen(delivery.ActionStopAlert, s.quitVisible)
}

// quitVisible asks the view on screen to exit without waiting for it. A
// program that already returned ignores the request.
func (s *Session) quitVisible() {
	s.mu.Lock()
	p := s.program
	s.mu.Unlock()
	if p != nil {
		p.Quit()
	}
}

// IsTerminal reports whether stdin and stdout are both attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// Present shows r in the background, replacing a view that is already up.
func (s *Session) Present(ctx context.Context, r *domain.Reminder, alert scheduler.Alert) error {
	if r == nil {
		return errors.New("nil reminder")
	}
	ready := make(chan struct{})
	go func() {
		if err := s.show(ctx, *r, alert, ready); err != nil {
			log.Printf("[presentation] Alarm view for reminder %d: %v", r.ID, err)
		}
	}()
	<-ready
	return nil
}

// Show runs the alarm view for r until it is dismissed or closed. The alert is
// stopped on every exit path.
func (s *Session) Show(ctx context.Context, r *domain.Reminder, alert scheduler.Alert) error {
	if r == nil {
		return errors.New("nil reminder")
	}
	return s.show(ctx, *r, alert, nil)
}

func (s *Session) show(ctx context.Context, r domain.Reminder, alert scheduler.Alert, ready chan<- struct{}) error {
	defer stopAlert(alert)

	opts := append([]tea.ProgramOption{
		tea.WithContext(ctx),
		tea.WithInput(s.in),
		tea.WithOutput(s.out),
		tea.WithAltScreen(),
	}, s.options...)
	p := tea.NewProgram(NewAlarmModel(r), opts...)
	done := make(chan struct{})

	s.replace(p, done)
	if ready != nil {
		close(ready)
	}
	defer func() {
		s.mu.Lock()
		if s.program == p {
			s.program, s.done = nil, nil
		}
		s.mu.Unlock()
		close(done)
	}()

	final, err := p.Run()
	if m, ok := final.(AlarmModel); ok && m.Dismissed() {
		return s.dismiss(ctx, r)
	}
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run alarm view: %w", err)
	}
	return nil
}

// replace quits the view on screen, waits for it to exit and installs p.
func (s *Session) replace(p *tea.Program, done chan struct{}) {
	s.mu.Lock()
	prev, prevDone := s.program, s.done
	s.program, s.done = p, done
	s.mu.Unlock()

	if prev != nil {
		prev.Quit()
		<-prevDone
	}
}

// Close quits the view on screen, if any.
func (s *Session) Close() {
	s.mu.Lock()
	p, done := s.program, s.done
	s.mu.Unlock()
	if p != nil {
		p.Quit()
		<-done
	}
}

// dismiss stops ringing and marks r completed without rescheduling it.
func (s *Session) dismiss(ctx context.Context, r domain.Reminder) error {
	if s.signals != nil {
		s.signals.StopAlert()
	}
	if r.ID == 0 || s.coordinator == nil {
		return nil
	}

	done := r.Completed()
	select {
	case res := <-s.coordinator.Update(&done, false):
		if res.Err != nil {
			return fmt.Errorf("complete reminder %d: %w", r.ID, res.Err)
		}
		s.metrics.Dismissed()
		log.Printf("[presentation] Reminder %d dismissed and completed", r.ID)
		return nil
	case <-time.After(completeTimeout):
		return fmt.Errorf("complete reminder %d: timed out", r.ID)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func stopAlert(alert scheduler.Alert) {
	if alert != nil {
		alert.Stop()
	}
}
