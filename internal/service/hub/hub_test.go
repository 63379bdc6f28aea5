package hub_test

import (
	"errors"
	"testing"

	"github.com/zhouzirui/agent-relay/backend/internal/service/hub"
)

type fakeConn struct {
	events []any
	fail   bool
}

func (c *fakeConn) WriteJSON(v any) error {
	if c.fail {
		return errors.New("broken pipe")
	}
	c.events = append(c.events, v)
	return nil
}

func TestPushDeliversToSubscriber(t *testing.T) {
	h := hub.New()
	conn := &fakeConn{}
	h.Subscribe("s1", conn)

	if got := h.Push("s1", "hello"); got != hub.Delivered {
		t.Fatalf("expected Delivered, got %v", got)
	}
	if len(conn.events) != 1 || conn.events[0] != "hello" {
		t.Fatalf("unexpected events: %+v", conn.events)
	}
}

func TestPushWithoutSubscriberDrops(t *testing.T) {
	h := hub.New()

	if got := h.Push("nobody", "hello"); got != hub.NoSubscriber {
		t.Fatalf("expected NoSubscriber, got %v", got)
	}
}

func TestSubscribeReplacesPrevious(t *testing.T) {
	h := hub.New()
	first := &fakeConn{}
	second := &fakeConn{}

	h.Subscribe("s1", first)
	h.Subscribe("s1", second)

	if got := h.Push("s1", "event"); got != hub.Delivered {
		t.Fatalf("expected Delivered, got %v", got)
	}
	if len(first.events) != 0 {
		t.Fatalf("replaced subscriber still receiving: %+v", first.events)
	}
	if len(second.events) != 1 {
		t.Fatalf("current subscriber missed event: %+v", second.events)
	}
}

func TestFailedPushPrunesSubscriber(t *testing.T) {
	h := hub.New()
	conn := &fakeConn{fail: true}
	h.Subscribe("s1", conn)

	if got := h.Push("s1", "event"); got != hub.Dropped {
		t.Fatalf("expected Dropped, got %v", got)
	}
	// Pruned: the next push finds nobody.
	if got := h.Push("s1", "event"); got != hub.NoSubscriber {
		t.Fatalf("expected NoSubscriber after prune, got %v", got)
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	h := hub.New()
	conn := &fakeConn{}
	h.Subscribe("s1", conn)

	h.Unsubscribe(conn)
	h.Unsubscribe(conn)

	if got := h.Push("s1", "event"); got != hub.NoSubscriber {
		t.Fatalf("expected NoSubscriber, got %v", got)
	}
}

func TestStaleUnsubscribeKeepsReplacement(t *testing.T) {
	h := hub.New()
	stale := &fakeConn{}
	current := &fakeConn{}

	h.Subscribe("s1", stale)
	h.Subscribe("s1", current)
	// The stale connection disconnects after being replaced.
	h.Unsubscribe(stale)

	if got := h.Push("s1", "event"); got != hub.Delivered {
		t.Fatalf("expected Delivered, got %v", got)
	}
	if len(current.events) != 1 {
		t.Fatalf("replacement subscriber lost its registration")
	}
}
