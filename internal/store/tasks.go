package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Task lifecycle states. Cancellation is a state transition, never a row
// removal.
const (
	TaskPending   = "pending"
	TaskDone      = "done"
	TaskCancelled = "cancelled"
)

// Task kinds.
const (
	KindReminder = "reminder"
	KindAction   = "action"
)

// Repeat policies.
const (
	RepeatNone    = "none"
	RepeatDaily   = "daily"
	RepeatWeekly  = "weekly"
	RepeatMonthly = "monthly"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("not found")

// Task is a scheduled reminder or autonomous action.
type Task struct {
	ID          string
	IdentityID  string
	Description string
	DueAt       time.Time
	Repeat      string
	Kind        string
	Status      string
	Channel     string
	ChatID      string
}

// ValidRepeat reports whether r is one of the known repeat policies.
func ValidRepeat(r string) bool {
	switch r {
	case RepeatNone, RepeatDaily, RepeatWeekly, RepeatMonthly:
		return true
	}
	return false
}

// CreateTask inserts a new pending task and returns its id.
func (sc *Scope) CreateTask(description string, dueAt time.Time, repeat, kind, channel, chatID string) (string, error) {
	id := uuid.NewString()[:8]
	ts := now()
	_, err := sc.store.db.Exec(
		`INSERT INTO tasks (id, identity_id, description, due_at, repeat, kind, status, channel, chat_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 'pending', ?, ?, ?, ?)`,
		id, sc.identityID, description, dueAt.UTC().Format(time.RFC3339), repeat, kind, channel, chatID, ts, ts)
	if err != nil {
		return "", fmt.Errorf("create task: %w", err)
	}
	return id, nil
}

// GetTask reads one task owned by this scope.
func (sc *Scope) GetTask(id string) (*Task, error) {
	row := sc.store.db.QueryRow(
		`SELECT id, identity_id, description, due_at, repeat, kind, status, channel, chat_id
		 FROM tasks WHERE id = ? AND identity_id = ?`, id, sc.identityID)
	return scanTask(row)
}

// PendingTasks returns the scope's pending tasks ordered by due time.
func (sc *Scope) PendingTasks() ([]*Task, error) {
	rows, err := sc.store.db.Query(
		`SELECT id, identity_id, description, due_at, repeat, kind, status, channel, chat_id
		 FROM tasks WHERE identity_id = ? AND status = 'pending' ORDER BY due_at`, sc.identityID)
	if err != nil {
		return nil, fmt.Errorf("pending tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// CancelTask transitions a pending task to cancelled. The check and the
// transition are one statement so a concurrently firing scheduler tick
// cannot slip between them.
func (sc *Scope) CancelTask(id string) error {
	res, err := sc.store.db.Exec(
		`UPDATE tasks SET status = 'cancelled', updated_at = ?
		 WHERE id = ? AND identity_id = ? AND status = 'pending'`,
		now(), id, sc.identityID)
	if err != nil {
		return fmt.Errorf("cancel task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateTask changes the description and/or due time of a pending task.
// Zero values leave the corresponding field untouched.
func (sc *Scope) UpdateTask(id, description string, dueAt time.Time) error {
	res, err := sc.store.db.Exec(
		`UPDATE tasks SET
			description = CASE WHEN ? != '' THEN ? ELSE description END,
			due_at = CASE WHEN ? != '' THEN ? ELSE due_at END,
			updated_at = ?
		 WHERE id = ? AND identity_id = ? AND status = 'pending'`,
		description, description,
		fmtDue(dueAt), fmtDue(dueAt),
		now(), id, sc.identityID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DueTasks returns all pending tasks across every identity whose due time
// is at or before cutoff. Used by the scheduler.
func (s *Store) DueTasks(cutoff time.Time) ([]*Task, error) {
	rows, err := s.db.Query(
		`SELECT id, identity_id, description, due_at, repeat, kind, status, channel, chat_id
		 FROM tasks WHERE status = 'pending' AND due_at <= ? ORDER BY due_at`,
		cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("due tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// FinishFiring marks a fired task done (repeat=none) or advances its due
// time per its repeat policy, in one statement keyed on the pending state.
func (s *Store) FinishFiring(t *Task) error {
	if t.Repeat == RepeatNone {
		_, err := s.db.Exec(
			`UPDATE tasks SET status = 'done', updated_at = ? WHERE id = ? AND status = 'pending'`,
			now(), t.ID)
		if err != nil {
			return fmt.Errorf("complete task: %w", err)
		}
		return nil
	}
	next := NextDue(t.DueAt, t.Repeat, time.Now())
	_, err := s.db.Exec(
		`UPDATE tasks SET due_at = ?, updated_at = ? WHERE id = ? AND status = 'pending'`,
		next.UTC().Format(time.RFC3339), now(), t.ID)
	if err != nil {
		return fmt.Errorf("reschedule task: %w", err)
	}
	return nil
}

// NextDue advances due by its repeat interval until it lands after ref.
func NextDue(due time.Time, repeat string, ref time.Time) time.Time {
	for !due.After(ref) {
		switch repeat {
		case RepeatDaily:
			due = due.AddDate(0, 0, 1)
		case RepeatWeekly:
			due = due.AddDate(0, 0, 7)
		case RepeatMonthly:
			due = due.AddDate(0, 1, 0)
		default:
			return due
		}
	}
	return due
}

func fmtDue(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	var due string
	err := row.Scan(&t.ID, &t.IdentityID, &t.Description, &due, &t.Repeat, &t.Kind, &t.Status, &t.Channel, &t.ChatID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	t.DueAt, _ = time.Parse(time.RFC3339, due)
	return &t, nil
}

func scanTasks(rows *sql.Rows) ([]*Task, error) {
	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
