package session

import (
	"sync"
)

// Registry is the process-global name→Session map (spec.md §4.7). A
// single reader-writer lock guards it, matching the teacher's
// GetSessionManager singleton and its mutation-is-rare assumption.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	maxCount int
}

var (
	registryInstance *Registry
	registryOnce     sync.Once
)

// GetRegistry returns the process-wide Registry singleton.
func GetRegistry() *Registry {
	registryOnce.Do(func() {
		registryInstance = NewRegistry(0)
	})
	return registryInstance
}

// NewRegistry constructs a Registry. maxCount <= 0 means unbounded (main
// passes the MAX_SESSIONS setting, which defaults to 32).
func NewRegistry(maxCount int) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		maxCount: maxCount,
	}
}

// SetMaxSessions adjusts the registry's session cap.
func (r *Registry) SetMaxSessions(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maxCount = n
}

// Add registers a new session under its name. Returns ErrSessionExists if
// the name is taken, or a capacity error if MAX_SESSIONS would be exceeded.
func (r *Registry) Add(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[s.Name]; exists {
		return ErrSessionExists
	}
	if r.maxCount > 0 && len(r.sessions) >= r.maxCount {
		return ErrMaxSessionsReached
	}
	r.sessions[s.Name] = s
	return nil
}

// Get looks up a session by name.
func (r *Registry) Get(name string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[name]
	return s, ok
}

// Remove drops a session from the registry without disposing it; callers
// that want teardown-then-remove should call Disconnect.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, name)
}

// Disconnect disposes the named session (drain + PTY close) and removes it
// from the registry.
func (r *Registry) Disconnect(name string) error {
	r.mu.Lock()
	s, ok := r.sessions[name]
	if ok {
		delete(r.sessions, name)
	}
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.Dispose()
	return nil
}

// List returns every currently-registered session.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// TeardownAll disposes every registered session, used on process shutdown
// (SIGINT/SIGTERM, spec.md §4.7/§6).
func (r *Registry) TeardownAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.Dispose()
		}(s)
	}
	wg.Wait()
}
