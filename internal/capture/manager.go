package capture

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/zombor/book-scanner/internal/apperrors"
)

// Manager keeps at most one live session. Starting a session closes the
// previous one first.
type Manager struct {
	deps  Dependencies
	newID func() string

	mu     sync.Mutex
	active *Session
}

// NewManager creates a Manager whose sessions use deps
func NewManager(deps Dependencies) *Manager {
	return &Manager{
		deps:  deps,
		newID: uuid.NewString,
	}
}

// Start closes any active session and opens a new one
func (m *Manager) Start(mode Mode) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		slog.Info("Closing previous scan session", "session", m.active.ID())
		m.active.Close()
	}
	m.active = newSession(m.newID(), mode, m.deps)
	slog.Info("Scan session started", "session", m.active.ID(), "mode", mode)
	return m.active
}

// Get returns the active session if its ID matches
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil || m.active.ID() != id {
		return nil, apperrors.Newf(apperrors.KindNotFound, "Scan session not found. Start a new scan.")
	}
	return m.active, nil
}

// Close ends the session with the given ID
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil || m.active.ID() != id {
		return apperrors.Newf(apperrors.KindNotFound, "Scan session not found. Start a new scan.")
	}
	m.active.Close()
	m.active = nil
	slog.Info("Scan session closed", "session", id)
	return nil
}

// Shutdown closes the active session, if any
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		m.active.Close()
		m.active = nil
	}
}
