package infrastructure

import "sync"

// SessionManager serialises work per customer within one process.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*customerSession
}

type customerSession struct {
	mu   sync.Mutex
	refs int
}

func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]*customerSession)}
}

// Acquire blocks until the caller holds the lock for customerID and
// returns the matching release function.
func (sm *SessionManager) Acquire(customerID string) (release func()) {
	sm.mu.Lock()
	s, ok := sm.sessions[customerID]
	if !ok {
		s = &customerSession{}
		sm.sessions[customerID] = s
	}
	s.refs++
	sm.mu.Unlock()

	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		sm.mu.Lock()
		s.refs--
		if s.refs == 0 {
			delete(sm.sessions, customerID)
		}
		sm.mu.Unlock()
	}
}

// Active returns the number of customers with a pending or held lock.
func (sm *SessionManager) Active() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.sessions)
}
