package api

import (
	"fmt"
	"sync"

	"github.com/dvloznov/khatalens/internal/domain"
	"github.com/dvloznov/khatalens/internal/workflow"
)

// SessionManager maps each logged-in identity to its workflow controller.
// A fresh controller replaces any previous session for the same identity,
// so logging in again simply restarts the workflow at Idle.
type SessionManager struct {
	mu            sync.Mutex
	sessions      map[string]*workflow.Controller
	newController func() *workflow.Controller
}

// NewSessionManager creates a manager that builds controllers with factory.
func NewSessionManager(factory func() *workflow.Controller) *SessionManager {
	return &SessionManager{
		sessions:      make(map[string]*workflow.Controller),
		newController: factory,
	}
}

// Login creates a session for username and logs its controller in.
func (m *SessionManager) Login(username, password string) (domain.UserProfile, error) {
	ctrl := m.newController()
	profile, err := ctrl.Login(username, password)
	if err != nil {
		return domain.UserProfile{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.sessions[username]; ok {
		old.Logout()
	}
	m.sessions[username] = ctrl
	return profile, nil
}

// Get returns the controller for username.
func (m *SessionManager) Get(username string) (*workflow.Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctrl, ok := m.sessions[username]
	if !ok {
		return nil, fmt.Errorf("no active session for %s", username)
	}
	return ctrl, nil
}

// Logout ends username's session, discarding uncommitted workflow state.
func (m *SessionManager) Logout(username string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ctrl, ok := m.sessions[username]; ok {
		ctrl.Logout()
		delete(m.sessions, username)
	}
}
