// Package session tracks the currently-connected authenticated players
// and their live connections.
package session

import (
	"io"
	"net"
	"sort"
	"sync"
	"time"
)

const pushTimeout = 5 * time.Second

// Session is one authenticated player connection. Addr is the player's
// reachable IP, advertised to the opponent at match handoff.
type Session struct {
	Username string
	Addr     string

	mu   sync.Mutex
	conn net.Conn
}

func NewSession(username string, conn net.Conn, addr string) *Session {
	return &Session{
		Username: username,
		Addr:     addr,
		conn:     conn,
	}
}

// Push writes one newline-terminated line to the client. Writes are
// serialized so a handler reply can't interleave with a match handoff
// pushed from another connection's goroutine.
func (s *Session) Push(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(pushTimeout))
	_, err := io.WriteString(s.conn, line+"\n")
	return err
}

// Registry is the shared map of online sessions, one per username.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Register inserts a session, overwriting any stale prior session for
// the same username.
func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[s.Username] = s
}

func (r *Registry) Lookup(username string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.sessions[username]
}

func (r *Registry) Remove(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, username)
}

// RemoveSession removes the entry for username only if it still belongs
// to s. A handler exiting late must not evict a fresh login that
// overwrote its session.
func (r *Registry) RemoveSession(username string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessions[username] == s {
		delete(r.sessions, username)
	}
}

// Snapshot returns all active sessions ordered by username. Callers
// enrich the entries with stats outside the registry lock.
func (r *Registry) Snapshot() []*Session {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Username < sessions[j].Username
	})
	return sessions
}
