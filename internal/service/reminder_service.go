package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/tazhate/remora/internal/domain"
	"github.com/tazhate/remora/internal/storage"
)

var ErrClosed = errors.New("reminder service is closed")

const mirrorTimeout = 15 * time.Second

// Repository is the persistence the service works against.
type Repository interface {
	Insert(r *domain.Reminder) error
	Update(r *domain.Reminder) error
	Delete(r *domain.Reminder) error
	Get(id int64) (*domain.Reminder, error)
	List() ([]*domain.Reminder, error)
	ListActiveAfter(t time.Time) ([]*domain.Reminder, error)
	Observe() (<-chan []*domain.Reminder, func(), error)
}

// Scheduler arms and disarms alarms.
type Scheduler interface {
	Schedule(r *domain.Reminder) error
	Cancel(r *domain.Reminder)
}

// Mirror receives a copy of every persisted change. Failures are logged only.
type Mirror interface {
	Put(ctx context.Context, r *domain.Reminder) error
	Remove(ctx context.Context, id int64) error
}

// Result is delivered once per queued operation.
type Result struct {
	Reminder *domain.Reminder
	Err      error
}

type Options struct {
	Location    *time.Location
	GracePeriod time.Duration
	Mirror      Mirror
}

type job struct {
	name   string
	run    func() (*domain.Reminder, error)
	result chan Result
}

// ReminderService sits between the user surfaces and the repository plus the
// scheduler. Mutations run one at a time on a worker goroutine and never block
// the caller.
type ReminderService struct {
	repo      Repository
	scheduler Scheduler
	mirror    Mirror
	location  *time.Location
	live      *LiveReminders
	now       func() time.Time

	currentMu sync.RWMutex
	current   *domain.Reminder

	queueMu sync.Mutex
	queue   []job
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

func NewReminderService(repo Repository, sched Scheduler, opts Options) *ReminderService {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.GracePeriod == 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	s := &ReminderService{
		repo:      repo,
		scheduler: sched,
		mirror:    opts.Mirror,
		location:  opts.Location,
		live:      NewLiveReminders(repo.Observe, opts.GracePeriod),
		now:       time.Now,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go s.worker()
	return s
}

// Close finishes queued operations and stops the worker.
func (s *ReminderService) Close() {
	s.queueMu.Lock()
	if s.closed {
		s.queueMu.Unlock()
		return
	}
	s.closed = true
	s.queueMu.Unlock()

	s.signal()
	<-s.done
	s.live.Close()
}

func (s *ReminderService) AllReminders() *LiveReminders {
	return s.live
}

// SetCurrent selects r for editing. A copy is kept.
func (s *ReminderService) SetCurrent(r *domain.Reminder) {
	s.currentMu.Lock()
	defer s.currentMu.Unlock()
	if r == nil {
		s.current = nil
		return
	}
	c := *r
	s.current = &c
}

func (s *ReminderService) Current() *domain.Reminder {
	s.currentMu.RLock()
	defer s.currentMu.RUnlock()
	if s.current == nil {
		return nil
	}
	c := *s.current
	return &c
}

func (s *ReminderService) ClearCurrent() {
	s.SetCurrent(nil)
}

// Insert persists r and then schedules it with the assigned id.
func (s *ReminderService) Insert(r *domain.Reminder) <-chan Result {
	c, err := prepare(r)
	if err != nil {
		return failed(err)
	}
	c.ID = 0
	return s.enqueue("insert", func() (*domain.Reminder, error) {
		if err := s.repo.Insert(c); err != nil {
			return nil, fmt.Errorf("insert reminder: %w", err)
		}
		if !c.IsCompleted {
			s.schedule(c)
		}
		s.mirrorPut(c)
		return c, nil
	})
}

// Update persists r. With reschedule the old registration is cancelled and a
// new one made; without it the scheduler is not touched at all.
func (s *ReminderService) Update(r *domain.Reminder, reschedule bool) <-chan Result {
	c, err := prepare(r)
	if err != nil {
		return failed(err)
	}
	return s.enqueue("update", func() (*domain.Reminder, error) {
		if err := s.repo.Update(c); err != nil {
			return nil, fmt.Errorf("update reminder %d: %w", c.ID, err)
		}
		if reschedule {
			s.scheduler.Cancel(c)
			if !c.IsCompleted {
				s.schedule(c)
			}
		}
		s.mirrorPut(c)
		return c, nil
	})
}

// Delete removes r and cancels its registration.
func (s *ReminderService) Delete(r *domain.Reminder) <-chan Result {
	if r == nil {
		return failed(storage.ErrNotFound)
	}
	c := *r
	return s.enqueue("delete", func() (*domain.Reminder, error) {
		if err := s.repo.Delete(&c); err != nil {
			return nil, fmt.Errorf("delete reminder %d: %w", c.ID, err)
		}
		s.scheduler.Cancel(&c)
		s.mirrorRemove(c.ID)
		return &c, nil
	})
}

// ToggleCompleted flips the completion flag of id without rescheduling.
func (s *ReminderService) ToggleCompleted(id int64) <-chan Result {
	return s.enqueue("toggle", func() (*domain.Reminder, error) {
		r, err := s.repo.Get(id)
		if err != nil {
			return nil, fmt.Errorf("get reminder %d: %w", id, err)
		}
		if r == nil {
			return nil, storage.ErrNotFound
		}
		r.IsCompleted = !r.IsCompleted
		if err := s.repo.Update(r); err != nil {
			return nil, fmt.Errorf("update reminder %d: %w", id, err)
		}
		s.mirrorPut(r)
		return r, nil
	})
}

// Rearm schedules every open reminder that is still in the future. It is run
// once at startup since registrations do not survive a restart.
func (s *ReminderService) Rearm(ctx context.Context) (int, error) {
	now := domain.Wall(s.now().In(s.location))
	list, err := s.repo.ListActiveAfter(now)
	if err != nil {
		return 0, fmt.Errorf("list active reminders: %w", err)
	}
	n := 0
	for _, r := range list {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if err := s.scheduler.Schedule(r); err != nil {
			log.Printf("[service] Failed to rearm reminder %d: %v", r.ID, err)
			continue
		}
		n++
	}
	return n, nil
}

func (s *ReminderService) Get(id int64) (*domain.Reminder, error) {
	return s.repo.Get(id)
}

func (s *ReminderService) List() ([]*domain.Reminder, error) {
	return s.repo.List()
}

// ListForDate returns reminders due on the calendar day of date, by due time.
func (s *ReminderService) ListForDate(date time.Time) ([]*domain.Reminder, error) {
	all, err := s.repo.List()
	if err != nil {
		return nil, err
	}
	day := domain.Wall(date)
	out := make([]*domain.Reminder, 0, len(all))
	for _, r := range all {
		if r.OnDate(day) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueDateTime.Before(out[j].DueDateTime) })
	return out, nil
}

func (s *ReminderService) schedule(r *domain.Reminder) {
	if err := s.scheduler.Schedule(r); err != nil {
		log.Printf("[service] Failed to schedule reminder %d: %v", r.ID, err)
	}
}

func (s *ReminderService) mirrorPut(r *domain.Reminder) {
	if s.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if err := s.mirror.Put(ctx, r); err != nil {
		log.Printf("[service] Calendar mirror put %d: %v", r.ID, err)
	}
}

func (s *ReminderService) mirrorRemove(id int64) {
	if s.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if err := s.mirror.Remove(ctx, id); err != nil {
		log.Printf("[service] Calendar mirror remove %d: %v", id, err)
	}
}

func (s *ReminderService) enqueue(name string, run func() (*domain.Reminder, error)) <-chan Result {
	result := make(chan Result, 1)

	s.queueMu.Lock()
	if s.closed {
		s.queueMu.Unlock()
		result <- Result{Err: ErrClosed}
		return result
	}
	s.queue = append(s.queue, job{name: name, run: run, result: result})
	s.queueMu.Unlock()

	s.signal()
	return result
}

func (s *ReminderService) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *ReminderService) worker() {
	defer close(s.done)
	for {
		s.queueMu.Lock()
		pending := s.queue
		s.queue = nil
		closed := s.closed
		s.queueMu.Unlock()

		for _, j := range pending {
			r, err := j.run()
			if err != nil {
				log.Printf("[service] %s failed: %v", j.name, err)
			}
			j.result <- Result{Reminder: r, Err: err}
		}

		if len(pending) > 0 {
			continue
		}
		if closed {
			return
		}
		<-s.wake
	}
}

func prepare(r *domain.Reminder) (*domain.Reminder, error) {
	if r == nil {
		return nil, domain.ErrEmptyTitle
	}
	c := *r
	c.Normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func failed(err error) <-chan Result {
	ch := make(chan Result, 1)
	ch <- Result{Err: err}
	return ch
}
