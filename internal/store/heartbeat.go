package store

import "fmt"

// AddHeartbeatItem appends an item to the scope's heartbeat checklist.
func (sc *Scope) AddHeartbeatItem(item string) error {
	_, err := sc.store.db.Exec(
		`INSERT INTO heartbeat_items (identity_id, item, created_at) VALUES (?, ?, ?)`,
		sc.identityID, item, now())
	if err != nil {
		return fmt.Errorf("add heartbeat item: %w", err)
	}
	return nil
}

// RemoveHeartbeatItem deletes items matching the given text exactly.
func (sc *Scope) RemoveHeartbeatItem(item string) (int64, error) {
	res, err := sc.store.db.Exec(
		`DELETE FROM heartbeat_items WHERE identity_id = ? AND item = ?`,
		sc.identityID, item)
	if err != nil {
		return 0, fmt.Errorf("remove heartbeat item: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// HeartbeatItems returns the checklist in insertion order.
func (sc *Scope) HeartbeatItems() ([]string, error) {
	rows, err := sc.store.db.Query(
		`SELECT item FROM heartbeat_items WHERE identity_id = ? ORDER BY id`, sc.identityID)
	if err != nil {
		return nil, fmt.Errorf("heartbeat items: %w", err)
	}
	defer rows.Close()

	var items []string
	for rows.Next() {
		var it string
		if err := rows.Scan(&it); err != nil {
			return nil, fmt.Errorf("scan heartbeat item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// SuppressHeartbeatSection hides one prompt section from heartbeat ticks.
func (sc *Scope) SuppressHeartbeatSection(section string) error {
	_, err := sc.store.db.Exec(
		`INSERT OR IGNORE INTO heartbeat_suppressed (identity_id, section) VALUES (?, ?)`,
		sc.identityID, section)
	if err != nil {
		return fmt.Errorf("suppress heartbeat section: %w", err)
	}
	return nil
}

// UnsuppressHeartbeatSection re-enables a suppressed section.
func (sc *Scope) UnsuppressHeartbeatSection(section string) (bool, error) {
	res, err := sc.store.db.Exec(
		`DELETE FROM heartbeat_suppressed WHERE identity_id = ? AND section = ?`,
		sc.identityID, section)
	if err != nil {
		return false, fmt.Errorf("unsuppress heartbeat section: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// SuppressedHeartbeatSections returns the suppressed section ids.
func (sc *Scope) SuppressedHeartbeatSections() (map[string]bool, error) {
	rows, err := sc.store.db.Query(
		`SELECT section FROM heartbeat_suppressed WHERE identity_id = ?`, sc.identityID)
	if err != nil {
		return nil, fmt.Errorf("suppressed sections: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		out[s] = true
	}
	return out, rows.Err()
}
