package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Identity is a canonical cross-channel counterpart. Many channel aliases
// may map onto one identity; identities are merged, never deleted.
type Identity struct {
	ID          string
	DisplayName string
	Onboarded   bool
	New         bool
}

// ResolveIdentity maps a (channel, channel-native id) alias to its
// canonical identity, creating both on first contact. A freshly created
// identity comes back with New set so the pipeline can trigger onboarding.
func (s *Store) ResolveIdentity(channel, channelID string) (*Identity, error) {
	var id Identity
	err := s.db.QueryRow(
		`SELECT i.id, i.display_name, i.onboarded FROM aliases a
		 JOIN identities i ON i.id = a.identity_id
		 WHERE a.channel = ? AND a.channel_id = ?`,
		channel, channelID).Scan(&id.ID, &id.DisplayName, &id.Onboarded)
	if err == nil {
		return &id, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("resolve identity: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("create identity: %w", err)
	}
	defer tx.Rollback()

	newID := uuid.NewString()
	ts := now()
	if _, err := tx.Exec(
		`INSERT INTO identities (id, display_name, onboarded, created_at) VALUES (?, '', 0, ?)`,
		newID, ts); err != nil {
		return nil, fmt.Errorf("create identity: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO aliases (channel, channel_id, identity_id, created_at) VALUES (?, ?, ?, ?)`,
		channel, channelID, newID, ts); err != nil {
		return nil, fmt.Errorf("create alias: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("create identity: %w", err)
	}
	return &Identity{ID: newID, New: true}, nil
}

// MergeIdentities repoints every alias of src onto dst. The src identity
// row stays behind (identities are never deleted) but owns no aliases.
func (s *Store) MergeIdentities(dst, src string) error {
	if dst == src {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("merge identities: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`UPDATE aliases SET identity_id = ? WHERE identity_id = ?`,
		`UPDATE tasks SET identity_id = ? WHERE identity_id = ?`,
		`UPDATE facts SET identity_id = ? WHERE identity_id = ?
			AND key NOT IN (SELECT key FROM facts WHERE identity_id = ?)`,
		`UPDATE lessons SET identity_id = ? WHERE identity_id = ?`,
		`UPDATE outcomes SET identity_id = ? WHERE identity_id = ?`,
	} {
		args := []any{dst, src}
		if stmt[len(stmt)-1] == ')' {
			args = append(args, dst)
		}
		if _, err := tx.Exec(stmt, args...); err != nil {
			return fmt.Errorf("merge identities: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("merge identities: %w", err)
	}
	return nil
}

// MarkOnboarded flags an identity as having completed onboarding.
func (s *Store) MarkOnboarded(identityID, displayName string) error {
	_, err := s.db.Exec(
		`UPDATE identities SET onboarded = 1, display_name = ? WHERE id = ?`,
		displayName, identityID)
	if err != nil {
		return fmt.Errorf("mark onboarded: %w", err)
	}
	return nil
}
