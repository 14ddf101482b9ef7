package server

import "sync"

// Sessions maps authenticated user ids to connection ids and back. Text
// messages address users, the Registry addresses connections; this table is
// the bridge between the two id spaces. A connection carries at most one
// user; a user logging in again from a new connection replaces the old
// binding.
type Sessions struct {
	mu     sync.Mutex
	byUser map[int64]int64 // user id -> connection id
	byConn map[int64]int64 // connection id -> user id
}

func NewSessions() *Sessions {
	return &Sessions{
		byUser: make(map[int64]int64),
		byConn: make(map[int64]int64),
	}
}

// Bind associates a user with a connection, displacing any previous binding
// on either side.
func (s *Sessions) Bind(userID, connID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if oldConn, ok := s.byUser[userID]; ok {
		delete(s.byConn, oldConn)
	}
	if oldUser, ok := s.byConn[connID]; ok {
		delete(s.byUser, oldUser)
	}
	s.byUser[userID] = connID
	s.byConn[connID] = userID
}

// UnbindConn drops the binding for a connection and returns the user id
// that was bound, if any.
func (s *Sessions) UnbindConn(connID int64) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.byConn[connID]
	if !ok {
		return 0, false
	}
	delete(s.byConn, connID)
	delete(s.byUser, userID)
	return userID, true
}

// ResolveUser returns the connection a user is logged in on.
func (s *Sessions) ResolveUser(userID int64) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	connID, ok := s.byUser[userID]
	return connID, ok
}

// UserFor returns the user logged in on a connection.
func (s *Sessions) UserFor(connID int64) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.byConn[connID]
	return userID, ok
}

// Count returns the number of logged-in users.
func (s *Sessions) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byUser)
}
