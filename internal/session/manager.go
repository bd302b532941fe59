package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/nugget/marcus/internal/advisor"
	"github.com/nugget/marcus/internal/notify"
	"github.com/nugget/marcus/internal/report"
)

// Manager holds independent sessions keyed by id.
type Manager struct {
	advisor  advisor.Advisor
	composer *report.Composer
	notifier notify.Notifier
	seed     bool
	logger   *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Host
}

// NewManager creates a session manager. When seed is true and a
// composer is available, each new session starts with the newest
// report on disk as its latest report.
func NewManager(adv advisor.Advisor, composer *report.Composer, notifier notify.Notifier, seed bool, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		advisor:  adv,
		composer: composer,
		notifier: notifier,
		seed:     seed,
		logger:   logger,
		sessions: make(map[string]*Host),
	}
}

// Create starts a new session.
func (m *Manager) Create() (*Host, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("session id: %w", err)
	}
	h := NewHost(id.String(), m.advisor, m.composer, m.notifier, m.logger)

	if m.seed && m.composer != nil {
		r, err := m.composer.Store().Latest()
		switch {
		case err == nil:
			h.SetLatestReport(r)
			m.logger.Debug("session seeded with report", "session_id", h.ID(), "report", r.Name)
		case !errors.Is(err, report.ErrNotFound):
			m.logger.Warn("session report seed failed", "session_id", h.ID(), "error", err)
		}
	}

	m.mu.Lock()
	m.sessions[h.ID()] = h
	m.mu.Unlock()

	m.logger.Info("session created", "session_id", h.ID())
	return h, nil
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*Host, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.sessions[id]
	return h, ok
}

// Delete removes a session. It reports whether the session existed.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	return ok
}

// IDs returns the ids of all sessions in creation order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	// uuid v7 ids sort by creation time.
	sort.Strings(ids)
	return ids
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
