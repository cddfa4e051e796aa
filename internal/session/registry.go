// Package session tracks live user sessions and the per-session virtual-tree
// mirrors hanging off them.
package session

import (
	"log/slog"
	"sync"

	"arbor/internal/domain/repositories"
	"arbor/internal/virtualtree"
)

// Session is one authenticated client session. Each session holds its own
// mirrors; sessions never touch each other's state directly.
type Session struct {
	ID        string
	UserID    string
	ContextID string

	mu      sync.Mutex
	mirrors map[string]*virtualtree.Mirror // tree id -> mirror
}

// Mirror returns the session's mirror for a tree, creating it unloaded on
// first use.
func (s *Session) Mirror(treeID string) *virtualtree.Mirror {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.mirrors[treeID]; ok {
		return m
	}
	m := virtualtree.NewMirror(repositories.DeltaKey{
		ContextID: s.ContextID,
		TreeID:    treeID,
		UserID:    s.UserID,
	})
	s.mirrors[treeID] = m
	return m
}

func (s *Session) invalidateMirror(treeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.mirrors[treeID]; ok {
		m.Invalidate()
	}
}

type userKey struct {
	userID    string
	contextID string
}

// Registry holds the live sessions and fans folder-deletion events out to
// every session of the affected user. It implements the aggregation engine's
// Invalidator contract.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	byUser   map[userKey][]string
	logger   *slog.Logger
}

// NewRegistry creates an empty session registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		byUser:   make(map[userKey][]string),
		logger:   logger,
	}
}

// Acquire returns the session registered under sessionID, creating it on
// first sight.
func (r *Registry) Acquire(sessionID, userID, contextID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		return s
	}
	s := &Session{
		ID:        sessionID,
		UserID:    userID,
		ContextID: contextID,
		mirrors:   make(map[string]*virtualtree.Mirror),
	}
	r.sessions[sessionID] = s
	key := userKey{userID: userID, contextID: contextID}
	r.byUser[key] = append(r.byUser[key], sessionID)
	return s
}

// Remove drops a session, for example on logout.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	delete(r.sessions, sessionID)
	key := userKey{userID: s.UserID, contextID: s.ContextID}
	ids := r.byUser[key]
	for i, id := range ids {
		if id == sessionID {
			r.byUser[key] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(r.byUser[key]) == 0 {
		delete(r.byUser, key)
	}
}

// FolderDeleted invalidates the tree's mirror in every live session of the
// user, so no session keeps presenting a folder that is gone.
func (r *Registry) FolderDeleted(userID, contextID, treeID, folderID string) {
	r.mu.RLock()
	ids := r.byUser[userKey{userID: userID, contextID: contextID}]
	sessions := make([]*Session, 0, len(ids))
	for _, id := range ids {
		if s, ok := r.sessions[id]; ok {
			sessions = append(sessions, s)
		}
	}
	r.mu.RUnlock()

	for _, s := range sessions {
		s.invalidateMirror(treeID)
	}
	r.logger.Debug("broadcast folder deletion",
		"user_id", userID, "tree_id", treeID, "folder_id", folderID, "sessions", len(sessions))
}
