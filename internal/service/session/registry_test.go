package session_test

import (
	"context"
	"errors"
	"testing"

	model "github.com/zhouzirui/agent-relay/backend/internal/model/session"
	sessionService "github.com/zhouzirui/agent-relay/backend/internal/service/session"
)

func TestRegistryCreateAndGet(t *testing.T) {
	reg := sessionService.NewRegistry()
	ctx := context.Background()

	created, err := reg.Create(ctx, model.ModeAct, "advanced", model.TierEnhanced, "up-123")
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated session ID")
	}
	if created.Status != model.StatusActive {
		t.Fatalf("unexpected status: %s", created.Status)
	}

	got, err := reg.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if got.Tier != model.TierEnhanced || got.UpstreamRef != "up-123" {
		t.Fatalf("unexpected tier binding: %+v", got)
	}
	if got.Mode != model.ModeAct || got.QualityLevel != "advanced" {
		t.Fatalf("unexpected session fields: %+v", got)
	}
}

func TestRegistryGetNotFound(t *testing.T) {
	reg := sessionService.NewRegistry()

	_, err := reg.Get(context.Background(), "missing")
	if !errors.Is(err, sessionService.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRegistryCreateUniqueIDs(t *testing.T) {
	reg := sessionService.NewRegistry()
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		s, err := reg.Create(ctx, model.ModeAct, "advanced", model.TierBasic, "")
		if err != nil {
			t.Fatalf("Create err: %v", err)
		}
		if seen[s.ID] {
			t.Fatalf("duplicate session ID %s", s.ID)
		}
		seen[s.ID] = true
	}

	if got := len(reg.List(ctx)); got != 50 {
		t.Fatalf("expected 50 sessions, got %d", got)
	}
}

func TestRegistrySetMode(t *testing.T) {
	reg := sessionService.NewRegistry()
	ctx := context.Background()

	s, _ := reg.Create(ctx, model.ModeAct, "advanced", model.TierBasic, "")

	updated, err := reg.SetMode(ctx, s.ID, model.ModePlan)
	if err != nil {
		t.Fatalf("SetMode err: %v", err)
	}
	if updated.Mode != model.ModePlan {
		t.Fatalf("expected PLAN, got %s", updated.Mode)
	}

	got, _ := reg.Get(ctx, s.ID)
	if got.Mode != model.ModePlan {
		t.Fatalf("mode not persisted, got %s", got.Mode)
	}

	if _, err := reg.SetMode(ctx, "missing", model.ModePlan); !errors.Is(err, sessionService.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRegistryListSnapshotIsolated(t *testing.T) {
	reg := sessionService.NewRegistry()
	ctx := context.Background()

	s, _ := reg.Create(ctx, model.ModeAct, "advanced", model.TierBasic, "")

	snapshot := reg.List(ctx)
	snapshot[0].Mode = "MUTATED"

	got, _ := reg.Get(ctx, s.ID)
	if got.Mode != model.ModeAct {
		t.Fatalf("snapshot mutation leaked into registry: %s", got.Mode)
	}
}

func TestRegistryMergeUpstreamStatus(t *testing.T) {
	reg := sessionService.NewRegistry()
	ctx := context.Background()

	s, _ := reg.Create(ctx, model.ModeAct, "advanced", model.TierEnhanced, "up-1")

	merged, err := reg.MergeUpstreamStatus(ctx, s.ID, map[string]any{"state": "working", "turns": 3})
	if err != nil {
		t.Fatalf("MergeUpstreamStatus err: %v", err)
	}
	if merged.Upstream["state"] != "working" {
		t.Fatalf("unexpected merged status: %+v", merged.Upstream)
	}

	before, _ := reg.Get(ctx, s.ID)

	merged, err = reg.MergeUpstreamStatus(ctx, s.ID, map[string]any{"state": "idle"})
	if err != nil {
		t.Fatalf("MergeUpstreamStatus err: %v", err)
	}
	if merged.Upstream["state"] != "idle" || merged.Upstream["turns"] != 3 {
		t.Fatalf("expected overlay to keep prior keys: %+v", merged.Upstream)
	}
	// The snapshot handed out earlier must not see the second merge.
	if before.Upstream["state"] != "working" {
		t.Fatalf("earlier snapshot mutated: %+v", before.Upstream)
	}

	if _, err := reg.MergeUpstreamStatus(ctx, "missing", nil); !errors.Is(err, sessionService.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
