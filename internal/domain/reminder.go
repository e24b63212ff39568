package domain

import (
	"errors"
	"strings"
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

var ErrEmptyTitle = errors.New("reminder title cannot be empty")

// ParsePriority accepts enum names in any case. Unknown names report false.
func ParsePriority(s string) (Priority, bool) {
	switch Priority(strings.ToUpper(strings.TrimSpace(s))) {
	case PriorityLow:
		return PriorityLow, true
	case PriorityMedium:
		return PriorityMedium, true
	case PriorityHigh:
		return PriorityHigh, true
	default:
		return PriorityLow, false
	}
}

func (p Priority) Emoji() string {
	switch p {
	case PriorityHigh:
		return "🔴"
	case PriorityMedium:
		return "🟡"
	default:
		return "🟢"
	}
}

// Reminder is the only persisted entity. DueDateTime is wall-clock time with
// no zone; see Wall.
type Reminder struct {
	ID          int64
	Title       string
	Description string
	DueDateTime time.Time
	Priority    Priority
	IsCompleted bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Normalize trims text fields, fills the default priority and strips the zone
// from DueDateTime.
func (r *Reminder) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	if p, ok := ParsePriority(string(r.Priority)); ok {
		r.Priority = p
	} else {
		r.Priority = PriorityLow
	}
	r.DueDateTime = Wall(r.DueDateTime)
}

func (r *Reminder) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return ErrEmptyTitle
	}
	return nil
}

// Completed returns a copy marked as done.
func (r Reminder) Completed() Reminder {
	r.IsCompleted = true
	return r
}

// OnDate reports whether the reminder falls on the calendar day of d.
func (r *Reminder) OnDate(d time.Time) bool {
	y1, m1, d1 := r.DueDateTime.Date()
	y2, m2, d2 := d.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
