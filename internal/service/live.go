package service

import (
	"log"
	"sync"
	"time"

	"github.com/tazhate/remora/internal/domain"
)

// DefaultGracePeriod keeps the upstream subscription alive after the last
// subscriber leaves.
const DefaultGracePeriod = 5 * time.Second

// ObserveFunc opens an upstream list subscription.
type ObserveFunc func() (<-chan []*domain.Reminder, func(), error)

// LiveReminders re-publishes the repository's live list. New subscribers get
// the latest known value immediately. The upstream is opened by the first
// subscriber and closed a grace period after the last one leaves.
type LiveReminders struct {
	source ObserveFunc
	grace  time.Duration

	mu         sync.Mutex
	latest     []*domain.Reminder
	subs       map[int]chan []*domain.Reminder
	nextID     int
	upstream   func()
	generation uint64
	teardown   *time.Timer
}

func NewLiveReminders(source ObserveFunc, grace time.Duration) *LiveReminders {
	if grace < 0 {
		grace = 0
	}
	return &LiveReminders{
		source: source,
		grace:  grace,
		latest: []*domain.Reminder{},
		subs:   make(map[int]chan []*domain.Reminder),
	}
}

// Value returns the latest snapshot. Callers must not modify it.
func (l *LiveReminders) Value() []*domain.Reminder {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.latest
}

// Active reports whether the upstream subscription is open.
func (l *LiveReminders) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.upstream != nil
}

// Subscribe returns a channel holding at most the newest snapshot and a func
// that unsubscribes and closes it.
func (l *LiveReminders) Subscribe() (<-chan []*domain.Reminder, func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.teardown != nil {
		l.teardown.Stop()
		l.teardown = nil
	}

	l.nextID++
	id := l.nextID
	ch := make(chan []*domain.Reminder, 1)
	ch <- l.latest
	l.subs[id] = ch

	if l.upstream == nil {
		l.openLocked()
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() { l.unsubscribe(id) })
	}
}

func (l *LiveReminders) openLocked() {
	ch, cancel, err := l.source()
	if err != nil {
		log.Printf("[service] Failed to observe reminders: %v", err)
		return
	}
	l.generation++
	l.upstream = cancel
	go l.pump(ch, l.generation)
}

func (l *LiveReminders) pump(ch <-chan []*domain.Reminder, generation uint64) {
	for list := range ch {
		l.mu.Lock()
		if l.generation != generation {
			l.mu.Unlock()
			continue
		}
		l.latest = list
		for _, sub := range l.subs {
			offer(sub, list)
		}
		l.mu.Unlock()
	}
}

func (l *LiveReminders) unsubscribe(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.subs[id]
	if !ok {
		return
	}
	delete(l.subs, id)
	close(ch)

	if len(l.subs) > 0 || l.upstream == nil {
		return
	}
	generation := l.generation
	l.teardown = time.AfterFunc(l.grace, func() { l.close(generation) })
}

func (l *LiveReminders) close(generation uint64) {
	l.mu.Lock()
	if len(l.subs) > 0 || l.generation != generation || l.upstream == nil {
		l.mu.Unlock()
		return
	}
	cancel := l.upstream
	l.upstream = nil
	l.teardown = nil
	l.generation++
	l.mu.Unlock()

	cancel()
}

// Close tears the upstream down immediately and closes every subscriber.
func (l *LiveReminders) Close() {
	l.mu.Lock()
	if l.teardown != nil {
		l.teardown.Stop()
		l.teardown = nil
	}
	for id, ch := range l.subs {
		delete(l.subs, id)
		close(ch)
	}
	cancel := l.upstream
	l.upstream = nil
	l.generation++
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// offer replaces a pending snapshot so a slow reader only sees the newest one.
func offer(ch chan []*domain.Reminder, list []*domain.Reminder) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- list:
	default:
	}
}
