package capture

import (
	"context"
	"errors"
	"sync"
)

// ErrSessionActive is returned when a user already has a recording in
// progress. A user records one workout at a time; a second connection has to
// wait for the first to stop.
var ErrSessionActive = errors.New("capture: a recording is already active for this user")

// Manager tracks at most one active capture session per user.
type Manager struct {
	mu         sync.Mutex
	sessions   map[string]*Session
	newSession func() *Session
}

// NewManager creates a Manager that builds sessions with factory.
func NewManager(factory func() *Session) *Manager {
	return &Manager{
		sessions:   make(map[string]*Session),
		newSession: factory,
	}
}

// Begin creates and starts a session for userID. It fails with
// ErrSessionActive if the user already has one running. The user's slot is
// claimed before the session starts, so a slow provider handshake never
// blocks other users' starts; on start failure the slot is released.
func (m *Manager) Begin(ctx context.Context, userID string) (*Session, error) {
	m.mu.Lock()
	if _, ok := m.sessions[userID]; ok {
		m.mu.Unlock()
		return nil, ErrSessionActive
	}
	sess := m.newSession()
	m.sessions[userID] = sess
	m.mu.Unlock()

	if err := sess.Start(ctx); err != nil {
		m.End(userID)
		return nil, err
	}
	return sess, nil
}

// End forgets userID's session. Safe to call when no session is active.
func (m *Manager) End(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// Active returns userID's running session, if any.
func (m *Manager) Active(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// ActiveCount reports how many users are currently recording.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
