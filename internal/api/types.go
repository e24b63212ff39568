package api

import (
	"fmt"
	"time"

	"github.com/tazhate/remora/internal/domain"
)

// APIResponse is the envelope of every JSON reply.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type ReminderResponse struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	DueDateTime string `json:"due_date_time"`
	Priority    string `json:"priority"`
	IsCompleted bool   `json:"is_completed"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// ReminderRequest creates a reminder or patches one. Nil fields are left
// untouched on update.
type ReminderRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	DueDateTime *string `json:"due_date_time,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	IsCompleted *bool   `json:"is_completed,omitempty"`
}

type CurrentRequest struct {
	ID int64 `json:"id"`
}

type AlarmResponse struct {
	ID   int64  `json:"id"`
	At   string `json:"at"`
	Mode string `json:"mode"`
}

type StopResponse struct {
	Stopped bool `json:"stopped"`
}

func ToResponse(r *domain.Reminder) ReminderResponse {
	resp := ReminderResponse{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		DueDateTime: domain.FormatDateTime(r.DueDateTime),
		Priority:    string(r.Priority),
		IsCompleted: r.IsCompleted,
	}
	if !r.CreatedAt.IsZero() {
		resp.CreatedAt = r.CreatedAt.Format(time.RFC3339)
	}
	if !r.UpdatedAt.IsZero() {
		resp.UpdatedAt = r.UpdatedAt.Format(time.RFC3339)
	}
	return resp
}

func ToResponses(list []*domain.Reminder) []ReminderResponse {
	out := make([]ReminderResponse, 0, len(list))
	for _, r := range list {
		out = append(out, ToResponse(r))
	}
	return out
}

// FromResponse rebuilds a reminder from the wire form.
func FromResponse(resp ReminderResponse) (*domain.Reminder, error) {
	due, err := domain.ParseDateTime(resp.DueDateTime)
	if err != nil {
		return nil, err
	}
	p, _ := domain.ParsePriority(resp.Priority)
	return &domain.Reminder{
		ID:          resp.ID,
		Title:       resp.Title,
		Description: resp.Description,
		DueDateTime: due,
		Priority:    p,
		IsCompleted: resp.IsCompleted,
	}, nil
}

// Apply copies the set fields of req onto r.
func (req ReminderRequest) Apply(r *domain.Reminder) error {
	if req.Title != nil {
		r.Title = *req.Title
	}
	if req.Description != nil {
		r.Description = *req.Description
	}
	if req.DueDateTime != nil {
		due, err := domain.ParseDateTime(*req.DueDateTime)
		if err != nil {
			return err
		}
		r.DueDateTime = due
	}
	if req.Priority != nil {
		p, ok := domain.ParsePriority(*req.Priority)
		if !ok {
			return fmt.Errorf("invalid priority %q (LOW, MEDIUM, HIGH)", *req.Priority)
		}
		r.Priority = p
	}
	if req.IsCompleted != nil {
		r.IsCompleted = *req.IsCompleted
	}
	return nil
}
