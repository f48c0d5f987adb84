package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// Reserved fact keys hold control-plane state (active project, onboarding
// stage, language, personality). Only the system writes these, through the
// dedicated setters below; the marker pathway, which is driven by
// arbitrary AI text, is refused so a hallucinated directive cannot rewrite
// control state.
var reservedFactKeys = map[string]bool{
	"project.active":     true,
	"onboarding.stage":   true,
	"lang":               true,
	"personality":        true,
	"heartbeat.interval": true,
}

// ErrReservedKey is returned when a marker-driven write targets a reserved
// fact key.
var ErrReservedKey = errors.New("reserved fact key")

// IsReservedFactKey reports whether key is system-owned.
func IsReservedFactKey(key string) bool {
	return reservedFactKeys[key]
}

// SetFact upserts a (key, value) fact for this scope. Reserved keys are
// refused.
func (sc *Scope) SetFact(key, value string) error {
	if IsReservedFactKey(key) {
		return ErrReservedKey
	}
	return sc.setFact(key, value)
}

// SetSystemFact upserts a fact bypassing the reserved-key check. Callers
// are trusted code paths (command handlers, onboarding), never marker
// handlers relaying AI text.
func (sc *Scope) SetSystemFact(key, value string) error {
	return sc.setFact(key, value)
}

func (sc *Scope) setFact(key, value string) error {
	_, err := sc.store.db.Exec(
		`INSERT INTO facts (identity_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(identity_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		sc.identityID, key, value, now())
	if err != nil {
		return fmt.Errorf("set fact: %w", err)
	}
	return nil
}

// GetFact reads one fact. Returns ErrNotFound if absent.
func (sc *Scope) GetFact(key string) (string, error) {
	var value string
	err := sc.store.db.QueryRow(
		`SELECT value FROM facts WHERE identity_id = ? AND key = ?`,
		sc.identityID, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get fact: %w", err)
	}
	return value, nil
}

// DeleteFact removes a non-reserved fact.
func (sc *Scope) DeleteFact(key string) error {
	if IsReservedFactKey(key) {
		return ErrReservedKey
	}
	_, err := sc.store.db.Exec(
		`DELETE FROM facts WHERE identity_id = ? AND key = ?`, sc.identityID, key)
	if err != nil {
		return fmt.Errorf("delete fact: %w", err)
	}
	return nil
}

// Facts returns all non-reserved facts for this scope.
func (sc *Scope) Facts() (map[string]string, error) {
	rows, err := sc.store.db.Query(
		`SELECT key, value FROM facts WHERE identity_id = ?`, sc.identityID)
	if err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}
	defer rows.Close()

	facts := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		if !IsReservedFactKey(k) {
			facts[k] = v
		}
	}
	return facts, rows.Err()
}

// PurgeFacts deletes every non-reserved fact for this scope in one
// statement and returns how many were removed.
func (sc *Scope) PurgeFacts() (int64, error) {
	res, err := sc.store.db.Exec(
		`DELETE FROM facts WHERE identity_id = ? AND key NOT IN ('project.active', 'onboarding.stage', 'lang', 'personality', 'heartbeat.interval')`,
		sc.identityID)
	if err != nil {
		return 0, fmt.Errorf("purge facts: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
