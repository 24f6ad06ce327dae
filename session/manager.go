package session

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Manager tracks all live sessions in memory.
type Manager struct {
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty session table.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session for a user (the user id may be empty for
// anonymous browsing; chat requires authentication, search does not).
func (m *Manager) Create(userID string) *Session {
	s := newSession(userID)
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	m.logger.Info("Session created", zap.String("session_id", s.ID), zap.String("user_id", userID))
	return s
}

// Get looks up a session by id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Sweep removes sessions idle for longer than maxIdle and returns how many
// were dropped. In-flight operations on a swept session run to completion
// against the detached object; their late updates are simply unobservable.
func (m *Manager) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	m.mu.Lock()
	defer m.mu.Unlock()

	dropped := 0
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			delete(m.sessions, id)
			dropped++
		}
	}
	if dropped > 0 {
		m.logger.Info("Swept idle sessions", zap.Int("dropped", dropped))
	}
	return dropped
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
