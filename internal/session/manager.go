package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/acolita/shell-parse-mcp/internal/adapters/treesitter"
	"github.com/acolita/shell-parse-mcp/internal/config"
	"github.com/acolita/shell-parse-mcp/internal/ports"
)

// EngineFactory builds the private parsing engine for one new session.
type EngineFactory func() (ports.Engine, error)

// Manager manages parsing sessions.
type Manager struct {
	sessions  map[string]*Session
	mu        sync.RWMutex
	config    *config.Config
	newEngine EngineFactory
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithEngineFactory overrides how session engines are built (for testing).
func WithEngineFactory(f EngineFactory) ManagerOption {
	return func(m *Manager) {
		m.newEngine = f
	}
}

// NewManager creates a new session manager.
func NewManager(cfg *config.Config, opts ...ManagerOption) *Manager {
	m := &Manager{
		sessions:  make(map[string]*Session),
		config:    cfg,
		newEngine: defaultEngineFactory,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func defaultEngineFactory() (ports.Engine, error) {
	engine, err := treesitter.New()
	if err != nil {
		return nil, err
	}
	return engine, nil
}

// CreateOptions defines options for creating a session.
type CreateOptions struct {
	// MaxBufferSize overrides the configured input limit; 0 keeps it.
	MaxBufferSize int

	// DisableStatements makes the session publish tree updates only,
	// for callers that inspect but never execute.
	DisableStatements bool
}

// Create creates a new session and returns it.
func (m *Manager) Create(opts CreateOptions) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= m.config.Security.MaxSessions {
		return nil, fmt.Errorf("max sessions reached (%d)", m.config.Security.MaxSessions)
	}

	engine, err := m.newEngine()
	if err != nil {
		return nil, fmt.Errorf("create parsing engine: %w", err)
	}

	maxBuffer := m.config.Parser.MaxBufferSize
	if opts.MaxBufferSize > 0 {
		maxBuffer = opts.MaxBufferSize
	}
	emit := m.config.Parser.EmitStatements && !opts.DisableStatements

	id := generateSessionID()
	sess := NewSession(id, engine,
		WithMaxBufferSize(maxBuffer),
		WithStatementEmission(emit),
	)

	m.sessions[id] = sess
	return sess, nil
}

// Get retrieves a session by ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return sess, nil
}

// Close closes and removes a session.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if err := sess.Close(); err != nil {
		return err
	}

	delete(m.sessions, id)
	return nil
}

// CloseAll closes every session, keeping the first error.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for id, sess := range m.sessions {
		if err := sess.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.sessions, id)
	}
	return firstErr
}

// List returns all active session IDs.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// SessionCount returns the number of active sessions.
func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// UpdateConfig applies a new configuration. Existing sessions keep their
// limits; new sessions pick up the new ones.
func (m *Manager) UpdateConfig(cfg *config.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = cfg
}

// generateSessionID generates a unique session ID.
func generateSessionID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return "sess_" + hex.EncodeToString(b)
}
