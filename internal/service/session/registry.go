package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/agent-relay/backend/internal/model/session"
)

var ErrSessionNotFound = errors.New("session not found")

// Registry owns the table of live sessions. Records never expire;
// they live for the process lifetime by design.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]session.Session
}

// NewRegistry bootstraps the in-memory session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]session.Session),
	}
}

// Create allocates a fresh session bound to the given tier. The tier
// and upstream reference are immutable after this call.
func (r *Registry) Create(_ context.Context, mode, qualityLevel string, tier session.Tier, upstreamRef string) (session.Session, error) {
	s := session.Session{
		ID:           uuid.NewString(),
		CreatedAt:    time.Now().UTC(),
		Mode:         mode,
		QualityLevel: qualityLevel,
		Tier:         tier,
		UpstreamRef:  upstreamRef,
		Status:       session.StatusActive,
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	return s, nil
}

// Get retrieves a session by identifier.
func (r *Registry) Get(_ context.Context, id string) (session.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return session.Session{}, ErrSessionNotFound
	}
	return s, nil
}

// List returns a snapshot of all current sessions, safe against
// concurrent mutation.
func (r *Registry) List(_ context.Context) []session.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]session.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// SetMode updates the session's mode in place and returns the
// updated record.
func (r *Registry) SetMode(_ context.Context, id, mode string) (session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return session.Session{}, ErrSessionNotFound
	}
	s.Mode = mode
	r.sessions[id] = s
	return s, nil
}

// MergeUpstreamStatus overlays status fields reported by the enhanced
// tier onto the local record. Used only for enhanced sessions.
func (r *Registry) MergeUpstreamStatus(_ context.Context, id string, patch map[string]any) (session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return session.Session{}, ErrSessionNotFound
	}
	if s.Upstream == nil {
		s.Upstream = make(map[string]any, len(patch))
	} else {
		// Copy before mutating so snapshots handed out by Get/List
		// stay isolated.
		merged := make(map[string]any, len(s.Upstream)+len(patch))
		for k, v := range s.Upstream {
			merged[k] = v
		}
		s.Upstream = merged
	}
	for k, v := range patch {
		s.Upstream[k] = v
	}
	r.sessions[id] = s
	return s, nil
}
