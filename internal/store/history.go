package store

import (
	"fmt"

	"github.com/google/uuid"
)

// Exchange is one stored user/assistant turn.
type Exchange struct {
	UserText  string
	ReplyText string
}

// StoreExchange records one completed pipeline pass.
func (sc *Scope) StoreExchange(sessionKey, userText, replyText string) error {
	_, err := sc.store.db.Exec(
		`INSERT INTO exchanges (identity_id, session_key, user_text, reply_text, closed, created_at)
		 VALUES (?, ?, ?, ?, 0, ?)`,
		sc.identityID, sessionKey, userText, replyText, now())
	if err != nil {
		return fmt.Errorf("store exchange: %w", err)
	}
	return nil
}

// RecentExchanges returns up to limit open exchanges for one session,
// oldest first. Exchanges behind a conversation close are excluded.
func (sc *Scope) RecentExchanges(sessionKey string, limit int) ([]*Exchange, error) {
	rows, err := sc.store.db.Query(
		`SELECT user_text, reply_text FROM (
			SELECT id, user_text, reply_text FROM exchanges
			WHERE identity_id = ? AND session_key = ? AND closed = 0
			ORDER BY id DESC LIMIT ?
		 ) ORDER BY id`,
		sc.identityID, sessionKey, limit)
	if err != nil {
		return nil, fmt.Errorf("recent exchanges: %w", err)
	}
	defer rows.Close()

	var out []*Exchange
	for rows.Next() {
		var e Exchange
		if err := rows.Scan(&e.UserText, &e.ReplyText); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// CloseConversation marks every open exchange in the scope closed so it no
// longer feeds context assembly. History stays on disk.
func (sc *Scope) CloseConversation() (int64, error) {
	res, err := sc.store.db.Exec(
		`UPDATE exchanges SET closed = 1 WHERE identity_id = ? AND closed = 0`,
		sc.identityID)
	if err != nil {
		return 0, fmt.Errorf("close conversation: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// RecordBugReport stores a user- or AI-filed bug description.
func (sc *Scope) RecordBugReport(description string) (string, error) {
	id := uuid.NewString()[:8]
	_, err := sc.store.db.Exec(
		`INSERT INTO bug_reports (id, identity_id, description, created_at) VALUES (?, ?, ?, ?)`,
		id, sc.identityID, description, now())
	if err != nil {
		return "", fmt.Errorf("record bug report: %w", err)
	}
	return id, nil
}

// RecordBuildProposal stores a proposed build spec.
func (sc *Scope) RecordBuildProposal(spec string) (string, error) {
	id := uuid.NewString()[:8]
	_, err := sc.store.db.Exec(
		`INSERT INTO build_proposals (id, identity_id, spec, created_at) VALUES (?, ?, ?, ?)`,
		id, sc.identityID, spec, now())
	if err != nil {
		return "", fmt.Errorf("record build proposal: %w", err)
	}
	return id, nil
}
