package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tazhate/remora/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

var ErrNotFound = errors.New("reminder not found")

type Storage struct {
	db *sql.DB

	// mu serializes writes and the snapshot fan-out that follows them.
	mu       sync.Mutex
	watchers map[int]chan []*domain.Reminder
	nextID   int
}

func New(dbPath string) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{
		db:       db,
		watchers: make(map[int]chan []*domain.Reminder),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	s.mu.Lock()
	for id, ch := range s.watchers {
		close(ch)
		delete(s.watchers, id)
	}
	s.mu.Unlock()
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS reminders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			due_date_time TEXT NOT NULL,
			priority TEXT NOT NULL DEFAULT 'LOW',
			is_completed INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders(due_date_time)`,
		`PRAGMA user_version = 1`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// === Reminders ===

const reminderColumns = `id, title, description, due_date_time, priority, is_completed, created_at, updated_at`

func (s *Storage) CreateReminder(r *domain.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	res, err := s.db.Exec(
		`INSERT INTO reminders (title, description, due_date_time, priority, is_completed, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.Title, r.Description, domain.FormatDateTime(r.DueDateTime), string(r.Priority), r.IsCompleted, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert reminder: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert reminder: %w", err)
	}
	r.ID = id
	r.CreatedAt = now
	r.UpdatedAt = now

	s.publishLocked()
	return nil
}

func (s *Storage) GetReminder(id int64) (*domain.Reminder, error) {
	row := s.db.QueryRow(`SELECT `+reminderColumns+` FROM reminders WHERE id = ?`, id)
	r, err := scanReminder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// ListReminders returns every reminder ordered by due time.
func (s *Storage) ListReminders() ([]*domain.Reminder, error) {
	rows, err := s.db.Query(`SELECT ` + reminderColumns + ` FROM reminders ORDER BY due_date_time ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReminders(rows)
}

// ListActiveAfter returns reminders not completed and due strictly after t.
func (s *Storage) ListActiveAfter(t time.Time) ([]*domain.Reminder, error) {
	rows, err := s.db.Query(
		`SELECT `+reminderColumns+` FROM reminders
		 WHERE is_completed = 0 AND due_date_time > ?
		 ORDER BY due_date_time ASC, id ASC`,
		domain.FormatDateTime(t),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReminders(rows)
}

func (s *Storage) UpdateReminder(r *domain.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	res, err := s.db.Exec(
		`UPDATE reminders SET title = ?, description = ?, due_date_time = ?, priority = ?, is_completed = ?, updated_at = ?
		 WHERE id = ?`,
		r.Title, r.Description, domain.FormatDateTime(r.DueDateTime), string(r.Priority), r.IsCompleted, now, r.ID,
	)
	if err != nil {
		return fmt.Errorf("update reminder %d: %w", r.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	r.UpdatedAt = now

	s.publishLocked()
	return nil
}

// DeleteReminder is a no-op for unknown ids.
func (s *Storage) DeleteReminder(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reminder %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.publishLocked()
	}
	return nil
}

// Observe returns a channel that receives the ordered reminder list right away
// and again after every mutation. Only the latest snapshot is kept for a slow
// reader. The returned func unsubscribes and closes the channel.
func (s *Storage) Observe() (<-chan []*domain.Reminder, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.ListReminders()
	if err != nil {
		return nil, nil, fmt.Errorf("initial snapshot: %w", err)
	}

	ch := make(chan []*domain.Reminder, 1)
	ch <- list
	id := s.nextID
	s.nextID++
	s.watchers[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if w, ok := s.watchers[id]; ok {
				delete(s.watchers, id)
				close(w)
			}
		})
	}
	return ch, cancel, nil
}

// publishLocked must be called with s.mu held.
func (s *Storage) publishLocked() {
	if len(s.watchers) == 0 {
		return
	}
	list, err := s.ListReminders()
	if err != nil {
		return
	}
	for _, ch := range s.watchers {
		// Drop a stale snapshot the reader has not picked up yet.
		select {
		case <-ch:
		default:
		}
		ch <- cloneList(list)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (*domain.Reminder, error) {
	r := &domain.Reminder{}
	var due, priority string
	if err := row.Scan(&r.ID, &r.Title, &r.Description, &due, &priority, &r.IsCompleted, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	t, err := domain.ParseDateTime(due)
	if err != nil {
		return nil, fmt.Errorf("reminder %d: %w", r.ID, err)
	}
	r.DueDateTime = t
	r.Priority, _ = domain.ParsePriority(priority)
	return r, nil
}

func scanReminders(rows *sql.Rows) ([]*domain.Reminder, error) {
	reminders := []*domain.Reminder{}
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

func cloneList(list []*domain.Reminder) []*domain.Reminder {
	out := make([]*domain.Reminder, len(list))
	for i, r := range list {
		c := *r
		out[i] = &c
	}
	return out
}
