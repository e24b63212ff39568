package repository

import (
	"time"

	"github.com/tazhate/remora/internal/domain"
	"github.com/tazhate/remora/internal/storage"
)

// ReminderRepository decouples callers from the storage technology.
type ReminderRepository struct {
	store *storage.Storage
}

func NewReminderRepository(s *storage.Storage) *ReminderRepository {
	return &ReminderRepository{store: s}
}

func (r *ReminderRepository) Insert(reminder *domain.Reminder) error {
	return r.store.CreateReminder(reminder)
}

func (r *ReminderRepository) Update(reminder *domain.Reminder) error {
	return r.store.UpdateReminder(reminder)
}

func (r *ReminderRepository) Delete(reminder *domain.Reminder) error {
	return r.store.DeleteReminder(reminder.ID)
}

func (r *ReminderRepository) Get(id int64) (*domain.Reminder, error) {
	return r.store.GetReminder(id)
}

func (r *ReminderRepository) List() ([]*domain.Reminder, error) {
	return r.store.ListReminders()
}

func (r *ReminderRepository) ListActiveAfter(t time.Time) ([]*domain.Reminder, error) {
	return r.store.ListActiveAfter(t)
}

func (r *ReminderRepository) Observe() (<-chan []*domain.Reminder, func(), error) {
	return r.store.Observe()
}
