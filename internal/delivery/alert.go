package delivery

import (
	"context"
	"log"
	"sync"

	"github.com/tazhate/remora/internal/domain"
	"github.com/tazhate/remora/internal/metrics"
)

// Sound plays until ctx is cancelled.
type Sound interface {
	Play(ctx context.Context)
}

// AlertController owns the single ringing alert of the process. Every Start
// bumps the generation, so handles from older deliveries cannot stop a newer
// alert.
type AlertController struct {
	sound   Sound
	metrics *metrics.Metrics

	mu         sync.Mutex
	generation uint64
	reminderID int64
	cancel     context.CancelFunc
	done       chan struct{}
}

func NewAlertController(sound Sound, m *metrics.Metrics) *AlertController {
	return &AlertController{sound: sound, metrics: m}
}

// Handle stops the alert it was issued for and nothing else.
type Handle struct {
	c          *AlertController
	generation uint64
	reminderID int64
}

// Start begins ringing for r, replacing whatever alert is in progress.
func (c *AlertController) Start(r *domain.Reminder) *Handle {
	c.mu.Lock()
	prevCancel, prevDone := c.cancel, c.done

	c.generation++
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel, c.done, c.reminderID = cancel, done, r.ID
	h := &Handle{c: c, generation: c.generation, reminderID: r.ID}
	c.metrics.AlertActive(true)
	c.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
		<-prevDone
	}

	go func() {
		defer close(done)
		if c.sound != nil {
			c.sound.Play(ctx)
		} else {
			<-ctx.Done()
		}
	}()

	log.Printf("[delivery] Alert started for reminder %d", r.ID)
	return h
}

// StopAll halts whatever is ringing. It reports whether an alert was active.
func (c *AlertController) StopAll() bool {
	c.mu.Lock()
	return c.stopLocked()
}

// Active reports the reminder id of the ringing alert.
func (c *AlertController) Active() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reminderID, c.cancel != nil
}

// stopLocked releases c.mu.
func (c *AlertController) stopLocked() bool {
	cancel, done, id := c.cancel, c.done, c.reminderID
	c.cancel, c.done, c.reminderID = nil, nil, 0
	if cancel != nil {
		c.metrics.AlertActive(false)
	}
	c.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	<-done
	log.Printf("[delivery] Alert stopped for reminder %d", id)
	return true
}

// Stop halts the alert if it is still the current one. Safe to call any number
// of times.
func (h *Handle) Stop() {
	if h == nil || h.c == nil {
		return
	}
	h.c.mu.Lock()
	if h.c.generation != h.generation {
		h.c.mu.Unlock()
		return
	}
	h.c.stopLocked()
}

func (h *Handle) ReminderID() int64 {
	return h.reminderID
}
