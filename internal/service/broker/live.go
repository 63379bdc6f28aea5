package broker

import (
	"context"

	"github.com/zhouzirui/agent-relay/backend/internal/model/event"
	"github.com/zhouzirui/agent-relay/backend/internal/service/hub"
)

// Live-connection protocol actions. These back the WebSocket frame
// handlers; the acknowledging envelope is written to the requesting
// connection by the caller, while later agent_response pushes arrive
// through the hub from the HTTP request path.

// Join subscribes conn to the session's event stream, replacing any
// previous subscriber, and returns the session_joined ack.
func (b *Broker) Join(ctx context.Context, sessionID, connectionID string, conn hub.Conn) (event.Envelope, error) {
	if _, err := b.registry.Get(ctx, sessionID); err != nil {
		return event.Envelope{}, err
	}
	b.hub.Subscribe(sessionID, conn)

	evt := event.New(event.TypeSessionJoined)
	evt.SessionID = sessionID
	evt.ConnectionID = connectionID
	return evt, nil
}

// Leave drops whatever subscriptions conn holds. Safe to call for
// connections that never joined.
func (b *Broker) Leave(conn hub.Conn) {
	b.hub.Unsubscribe(conn)
}

// EchoUserMessage validates the session and returns the user_message
// echo for the live channel. The assistant's reply is not produced
// here; it arrives via the HTTP send path's push.
func (b *Broker) EchoUserMessage(ctx context.Context, sessionID, content, mode string) (event.Envelope, error) {
	if _, err := b.registry.Get(ctx, sessionID); err != nil {
		return event.Envelope{}, err
	}

	evt := event.New(event.TypeUserMessage)
	evt.Content = content
	evt.Mode = mode
	return evt, nil
}

// LocalSwitchMode applies a mode switch from the live channel. This
// path never consults the upstream tier; only the registry changes.
func (b *Broker) LocalSwitchMode(ctx context.Context, sessionID, mode string) (event.Envelope, error) {
	lock := b.sessionLock(sessionID)
	lock.Lock()
	_, err := b.registry.SetMode(ctx, sessionID, mode)
	lock.Unlock()
	if err != nil {
		return event.Envelope{}, err
	}

	evt := event.New(event.TypeModeSwitched)
	evt.SessionID = sessionID
	evt.Mode = mode
	return evt, nil
}
