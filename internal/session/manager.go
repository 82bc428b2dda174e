// Package session keeps the wizard workspaces of connected browsers.
package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slidewizard/backend/internal/logging"
)

// DefaultMaxSessions limits concurrent workspaces.
const DefaultMaxSessions = 50

// SessionKeepAliveWindow protects recently used workspaces from age cleanup.
const SessionKeepAliveWindow = 5 * time.Minute

var (
	ErrNotFound        = errors.New("session not found")
	ErrTooManySessions = errors.New("too many active sessions")
)

// Manager handles active wizard workspaces.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*Workspace
	services    Services
	maxSessions int
	now         func() time.Time
	log         *slog.Logger
}

// NewManager creates a manager. maxSessions <= 0 uses DefaultMaxSessions.
func NewManager(svc Services, maxSessions int) *Manager {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	now := time.Now
	if svc.Now != nil {
		now = svc.Now
	}
	return &Manager{
		sessions:    make(map[string]*Workspace),
		services:    svc,
		maxSessions: maxSessions,
		now:         now,
		log:         logging.WithComponent("session"),
	}
}

// Create starts a new workspace on the upload step. At capacity the least
// recently used idle workspace is evicted first.
func (m *Manager) Create(clientID string) (*Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= m.maxSessions && !m.evictLocked() {
		return nil, ErrTooManySessions
	}

	ws, err := newWorkspace(uuid.New().String(), clientID, m.services)
	if err != nil {
		return nil, err
	}
	m.sessions[ws.ID] = ws
	m.log.Info("session created", "session", shortID(ws.ID), "active", len(m.sessions))
	return ws, nil
}

// evictLocked removes the least recently used workspace that is not
// processing a batch.
func (m *Manager) evictLocked() bool {
	var oldest *Workspace
	for _, ws := range m.sessions {
		if ws.Controller.State().Processing {
			continue
		}
		if oldest == nil || ws.LastAccessed().Before(oldest.LastAccessed()) {
			oldest = ws
		}
	}
	if oldest == nil {
		return false
	}
	delete(m.sessions, oldest.ID)
	oldest.Close()
	m.log.Info("evicted session to stay under limit", "session", shortID(oldest.ID))
	return true
}

// Get returns a workspace and marks it used.
func (m *Manager) Get(id string) (*Workspace, error) {
	m.mu.RLock()
	ws, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	ws.Touch(m.now())
	return ws, nil
}

// Touch updates the last access time of a workspace.
func (m *Manager) Touch(id string) bool {
	m.mu.RLock()
	ws, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		ws.Touch(m.now())
	}
	return ok
}

// Delete closes and removes a workspace.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	ws, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	ws.Close()
	m.log.Info("session deleted", "session", shortID(id))
	return nil
}

// Count returns the number of active workspaces.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CleanupOldSessions removes workspaces idle for longer than maxAge. Busy
// workspaces and those used within SessionKeepAliveWindow are kept.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	now := m.now()
	cutoff := now.Add(-maxAge)
	keepAlive := now.Add(-SessionKeepAliveWindow)

	m.mu.Lock()
	var removed []*Workspace
	for id, ws := range m.sessions {
		last := ws.LastAccessed()
		if last.After(keepAlive) || !last.Before(cutoff) {
			continue
		}
		if ws.Controller.State().Processing {
			continue
		}
		delete(m.sessions, id)
		removed = append(removed, ws)
	}
	m.mu.Unlock()

	for _, ws := range removed {
		ws.Close()
		m.log.Info("cleaned up aged session", "session", shortID(ws.ID),
			"idle", now.Sub(ws.LastAccessed()).Round(time.Second))
	}
	return len(removed)
}

// shortID truncates an id for logging.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
