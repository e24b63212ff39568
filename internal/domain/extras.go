package domain

import (
	"strconv"
	"strings"
	"time"
)

// Alarm payload keys.
const (
	ExtraID          = "id"
	ExtraTitle       = "title"
	ExtraDescription = "description"
	ExtraPriority    = "priority"
	ExtraDueDateTime = "dueDateTime"

	DefaultAlarmTitle = "Reminder"
)

// Extras is the payload carried from a registration to its delivery.
type Extras map[string]string

func ExtrasFromReminder(r *Reminder) Extras {
	return Extras{
		ExtraID:          strconv.FormatInt(r.ID, 10),
		ExtraTitle:       r.Title,
		ExtraDescription: r.Description,
		ExtraPriority:    string(r.Priority),
		ExtraDueDateTime: FormatDateTime(r.DueDateTime),
	}
}

// ReminderFromExtras rebuilds a reminder from a delivered payload. Missing or
// garbled fields fall back to defaults; it never fails.
func ReminderFromExtras(e Extras, now time.Time) *Reminder {
	r := &Reminder{
		Title:       DefaultAlarmTitle,
		Priority:    PriorityLow,
		DueDateTime: Wall(now),
	}
	if e == nil {
		return r
	}

	if v, ok := e[ExtraID]; ok {
		if id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && id > 0 {
			r.ID = id
		}
	}
	if v := strings.TrimSpace(e[ExtraTitle]); v != "" {
		r.Title = v
	}
	r.Description = e[ExtraDescription]
	if p, ok := ParsePriority(e[ExtraPriority]); ok {
		r.Priority = p
	}
	if v, ok := e[ExtraDueDateTime]; ok {
		if t, err := ParseDateTime(v); err == nil {
			r.DueDateTime = t
		}
	}
	return r
}
