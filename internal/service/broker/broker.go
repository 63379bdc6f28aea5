package broker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/zhouzirui/agent-relay/backend/internal/model/event"
	"github.com/zhouzirui/agent-relay/backend/internal/model/session"
	"github.com/zhouzirui/agent-relay/backend/internal/service/hub"
	registry "github.com/zhouzirui/agent-relay/backend/internal/service/session"
	"github.com/zhouzirui/agent-relay/backend/internal/service/upstream"
)

// ErrSessionNotFound is re-exported so callers depend on the broker
// alone.
var ErrSessionNotFound = registry.ErrSessionNotFound

// Broker orchestrates the session registry, the upstream client and
// the connection hub. It owns neither table; it serializes mutating
// access per session and decides tier routing per call.
type Broker struct {
	registry *registry.Registry
	hub      *hub.Hub
	upstream *upstream.Client

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New wires a broker over its collaborators.
func New(reg *registry.Registry, h *hub.Hub, up *upstream.Client) *Broker {
	return &Broker{
		registry: reg,
		hub:      h,
		upstream: up,
		locks:    make(map[string]*sync.Mutex),
	}
}

// sessionLock returns the mutex serializing read-modify-write access
// for one session id. Locks are never held across upstream calls.
func (b *Broker) sessionLock(id string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.locks[id]
	if !ok {
		l = &sync.Mutex{}
		b.locks[id] = l
	}
	return l
}

// fallbackEligible reports whether an upstream failure may be
// recovered locally. Only transport-level failures qualify; an
// explicit rejection must surface to the caller.
func fallbackEligible(err error) bool {
	return errors.Is(err, upstream.ErrUnreachable)
}

// CreateSession runs the creation path: enhanced tier first, basic on
// any failure. The chosen tier is fixed for the session's lifetime.
// Creation intentionally conflates rejection with unreachability;
// every other path keeps them distinct.
func (b *Broker) CreateSession(ctx context.Context, mode, qualityLevel, description string) (session.Session, error) {
	res, err := b.upstream.CreateSession(ctx, upstream.CreateRequest{
		StartMode:    mode,
		QualityLevel: qualityLevel,
		Description:  description,
	})
	if err == nil && res.SessionID != "" {
		return b.registry.Create(ctx, mode, qualityLevel, session.TierEnhanced, res.SessionID)
	}
	if err != nil {
		log.Printf("[broker] enhanced tier unavailable for creation, using basic: %v", err)
	} else {
		log.Printf("[broker] enhanced tier returned no session id, using basic")
	}
	return b.registry.Create(ctx, mode, qualityLevel, session.TierBasic, "")
}

// MessageReply is the relay's answer to one message send.
type MessageReply struct {
	Content         string `json:"content"`
	Mode            string `json:"mode,omitempty"`
	ToolUsed        any    `json:"toolUsed,omitempty"`
	ExecutionResult any    `json:"executionResult,omitempty"`
}

// SendMessage routes one message through the session's bound tier and
// pushes the resulting agent_response to the live subscriber, if any.
// Enhanced sessions fall back to the local echo only when the tier is
// unreachable; a rejection surfaces as-is.
func (b *Broker) SendMessage(ctx context.Context, sessionID, text, mode string) (MessageReply, error) {
	s, err := b.registry.Get(ctx, sessionID)
	if err != nil {
		return MessageReply{}, err
	}

	reply := MessageReply{
		Content: fmt.Sprintf("Received message: %s", text),
		Mode:    mode,
	}
	if s.Tier == session.TierEnhanced {
		res, err := b.upstream.SendMessage(ctx, s.UpstreamRef, text, mode)
		switch {
		case err == nil:
			reply = MessageReply{
				Content:         res.Content,
				Mode:            mode,
				ToolUsed:        res.ToolUsed,
				ExecutionResult: res.ExecutionResult,
			}
		case fallbackEligible(err):
			log.Printf("[broker] enhanced tier unreachable for session %s, answering locally: %v", sessionID, err)
		default:
			return MessageReply{}, err
		}
	}

	evt := event.New(event.TypeAgentResponse)
	evt.Content = reply.Content
	evt.Mode = mode
	evt.ToolUsed = reply.ToolUsed
	evt.ExecutionResult = reply.ExecutionResult
	b.hub.Push(sessionID, evt)

	return reply, nil
}

// ModeSwitch reports the outcome of a mode switch.
type ModeSwitch struct {
	PreviousMode string `json:"previousMode"`
	CurrentMode  string `json:"currentMode"`
	Result       any    `json:"result,omitempty"`
}

// SwitchMode routes a mode switch through the session's bound tier,
// updates the registry (also on local fallback), and pushes a
// mode_switched event.
func (b *Broker) SwitchMode(ctx context.Context, sessionID, mode string) (ModeSwitch, error) {
	s, err := b.registry.Get(ctx, sessionID)
	if err != nil {
		return ModeSwitch{}, err
	}

	message := fmt.Sprintf("Switched from %s to %s mode", s.Mode, mode)
	var result any
	if s.Tier == session.TierEnhanced {
		res, err := b.upstream.SwitchMode(ctx, s.UpstreamRef, mode)
		switch {
		case err == nil:
			if res.Message != "" {
				message = res.Message
			}
			result = res
		case fallbackEligible(err):
			log.Printf("[broker] enhanced tier unreachable for mode switch on session %s, applying locally: %v", sessionID, err)
		default:
			return ModeSwitch{}, err
		}
	}

	lock := b.sessionLock(sessionID)
	lock.Lock()
	cur, err := b.registry.Get(ctx, sessionID)
	if err != nil {
		lock.Unlock()
		return ModeSwitch{}, err
	}
	previous := cur.Mode
	if _, err := b.registry.SetMode(ctx, sessionID, mode); err != nil {
		lock.Unlock()
		return ModeSwitch{}, err
	}
	lock.Unlock()

	evt := event.New(event.TypeModeSwitched)
	evt.SessionID = sessionID
	evt.Mode = mode
	evt.Message = message
	b.hub.Push(sessionID, evt)

	return ModeSwitch{PreviousMode: previous, CurrentMode: mode, Result: result}, nil
}

// GetSession reads one session. Enhanced sessions get a best-effort
// status refresh from their tier first; a failed refresh never fails
// the read.
func (b *Broker) GetSession(ctx context.Context, sessionID string) (session.Session, error) {
	s, err := b.registry.Get(ctx, sessionID)
	if err != nil {
		return session.Session{}, err
	}

	if s.Tier == session.TierEnhanced && s.UpstreamRef != "" {
		status, err := b.upstream.GetStatus(ctx, s.UpstreamRef)
		if err != nil {
			log.Printf("[broker] status refresh failed for session %s: %v", sessionID, err)
			return s, nil
		}
		merged, err := b.registry.MergeUpstreamStatus(ctx, sessionID, status)
		if err != nil {
			return s, nil
		}
		return merged, nil
	}
	return s, nil
}

// ListSessions snapshots all current sessions.
func (b *Broker) ListSessions(ctx context.Context) []session.Session {
	return b.registry.List(ctx)
}
