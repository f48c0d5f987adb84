// Package session tracks backend continuation state per conversation.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Session holds the continuation state for one channel:chat_id pair. The
// continuation token lets the backend resume a server-side conversation
// instead of replaying full history on every call.
type Session struct {
	Key          string `json:"key"`
	Continuation string `json:"continuation,omitempty"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
}

// Manager manages sessions with JSON persistence under the data dir.
type Manager struct {
	dir   string
	mu    sync.Mutex
	cache map[string]*Session
}

// NewManager creates a session manager rooted at dir.
func NewManager(dir string) *Manager {
	os.MkdirAll(dir, 0o755)
	return &Manager{
		dir:   dir,
		cache: make(map[string]*Session),
	}
}

// getOrCreate returns the cached session for key, loading or creating it
// as needed. Callers must hold m.mu; the returned pointer is only valid
// while the lock is held.
func (m *Manager) getOrCreate(key string) *Session {
	if s, ok := m.cache[key]; ok {
		return s
	}
	s := m.load(key)
	if s == nil {
		now := time.Now().Format(time.RFC3339)
		s = &Session{Key: key, CreatedAt: now, UpdatedAt: now}
	}
	m.cache[key] = s
	return s
}

// Continuation returns the stored continuation token, or "".
func (m *Manager) Continuation(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getOrCreate(key).Continuation
}

// SetContinuation stores a new continuation token and persists it.
func (m *Manager) SetContinuation(key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.getOrCreate(key)
	s.Continuation = token
	s.UpdatedAt = time.Now().Format(time.RFC3339)
	return m.save(s)
}

// ClearSession drops the continuation token so the next backend call
// starts a fresh session. Used by the retry path and by conversation
// forgetting.
func (m *Manager) ClearSession(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.getOrCreate(key)
	s.Continuation = ""
	s.UpdatedAt = time.Now().Format(time.RFC3339)
	m.save(s)
}

// List returns all persisted sessions, newest first.
func (m *Manager) List() []*Session {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil
	}
	var sessions []*Session
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(m.dir, e.Name()))
		if err != nil {
			continue
		}
		var s Session
		if json.Unmarshal(data, &s) == nil && s.Key != "" {
			sessions = append(sessions, &s)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt > sessions[j].UpdatedAt
	})
	return sessions
}

func (m *Manager) load(key string) *Session {
	data, err := os.ReadFile(m.path(key))
	if err != nil {
		return nil
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	return &s
}

func (m *Manager) save(s *Session) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := os.WriteFile(m.path(s.Key), data, 0o644); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (m *Manager) path(key string) string {
	safe := strings.ReplaceAll(key, ":", "_")
	unsafe := `<>"/\|?*`
	for _, c := range unsafe {
		safe = strings.ReplaceAll(safe, string(c), "_")
	}
	return filepath.Join(m.dir, safe+".json")
}
