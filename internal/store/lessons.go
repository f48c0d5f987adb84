package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// maxLessonsPerDomain caps stored lessons per (identity, domain); the
// oldest are evicted first.
const maxLessonsPerDomain = 20

// Lesson is a learned behavior rule scoped to one domain.
type Lesson struct {
	ID         string
	Domain     string
	Rule       string
	Reinforced int
}

// Outcome is a structured self-evaluation record.
type Outcome struct {
	ID     string
	Score  int
	Domain string
	Lesson string
}

// RecordOutcome stores a REWARD-style self-evaluation.
func (sc *Scope) RecordOutcome(score int, domain, lesson string) (string, error) {
	id := uuid.NewString()[:8]
	_, err := sc.store.db.Exec(
		`INSERT INTO outcomes (id, identity_id, score, domain, lesson, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, sc.identityID, score, domain, lesson, now())
	if err != nil {
		return "", fmt.Errorf("record outcome: %w", err)
	}
	return id, nil
}

// UpsertLesson stores a lesson, deduplicating by exact rule content: a
// repeated lesson reinforces the existing row instead of creating a new
// one. Inserts and the cap eviction share one transaction.
func (sc *Scope) UpsertLesson(domain, rule string) (*Lesson, error) {
	tx, err := sc.store.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("upsert lesson: %w", err)
	}
	defer tx.Rollback()

	var existing Lesson
	err = tx.QueryRow(
		`SELECT id, reinforced FROM lessons WHERE identity_id = ? AND domain = ? AND rule = ?`,
		sc.identityID, domain, rule).Scan(&existing.ID, &existing.Reinforced)
	switch {
	case err == nil:
		if _, err := tx.Exec(
			`UPDATE lessons SET reinforced = reinforced + 1, updated_at = ? WHERE id = ?`,
			now(), existing.ID); err != nil {
			return nil, fmt.Errorf("reinforce lesson: %w", err)
		}
		existing.Domain, existing.Rule = domain, rule
		existing.Reinforced++
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("upsert lesson: %w", err)
		}
		return &existing, nil
	case err != sql.ErrNoRows:
		return nil, fmt.Errorf("upsert lesson: %w", err)
	}

	id := uuid.NewString()[:8]
	ts := now()
	if _, err := tx.Exec(
		`INSERT INTO lessons (id, identity_id, domain, rule, reinforced, created_at, updated_at) VALUES (?, ?, ?, ?, 1, ?, ?)`,
		id, sc.identityID, domain, rule, ts, ts); err != nil {
		return nil, fmt.Errorf("insert lesson: %w", err)
	}
	// Evict oldest rows beyond the cap.
	if _, err := tx.Exec(
		`DELETE FROM lessons WHERE identity_id = ? AND domain = ? AND id NOT IN (
			SELECT id FROM lessons WHERE identity_id = ? AND domain = ? ORDER BY created_at DESC, id DESC LIMIT ?
		)`,
		sc.identityID, domain, sc.identityID, domain, maxLessonsPerDomain); err != nil {
		return nil, fmt.Errorf("evict lessons: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("upsert lesson: %w", err)
	}
	return &Lesson{ID: id, Domain: domain, Rule: rule, Reinforced: 1}, nil
}

// GetLesson reads one lesson by id.
func (sc *Scope) GetLesson(id string) (*Lesson, error) {
	var l Lesson
	err := sc.store.db.QueryRow(
		`SELECT id, domain, rule, reinforced FROM lessons WHERE id = ? AND identity_id = ?`,
		id, sc.identityID).Scan(&l.ID, &l.Domain, &l.Rule, &l.Reinforced)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get lesson: %w", err)
	}
	return &l, nil
}

// RecentLessons returns up to limit lessons across domains, newest first.
func (sc *Scope) RecentLessons(limit int) ([]*Lesson, error) {
	rows, err := sc.store.db.Query(
		`SELECT id, domain, rule, reinforced FROM lessons WHERE identity_id = ?
		 ORDER BY updated_at DESC LIMIT ?`, sc.identityID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent lessons: %w", err)
	}
	defer rows.Close()

	var lessons []*Lesson
	for rows.Next() {
		var l Lesson
		if err := rows.Scan(&l.ID, &l.Domain, &l.Rule, &l.Reinforced); err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		lessons = append(lessons, &l)
	}
	return lessons, rows.Err()
}

// LessonCount returns the number of lessons for one (identity, domain).
func (sc *Scope) LessonCount(domain string) (int, error) {
	var n int
	err := sc.store.db.QueryRow(
		`SELECT COUNT(*) FROM lessons WHERE identity_id = ? AND domain = ?`,
		sc.identityID, domain).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("lesson count: %w", err)
	}
	return n, nil
}
