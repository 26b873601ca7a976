package web

import (
	"strings"
	"testing"
	"time"

	"github.com/rohanthewiz/serr"
	"steward/agent"
	"steward/tool"
)

func TestStatusForErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"session not found", agent.ErrSessionNotFound, 404},
		{"wrapped plan not found", serr.Wrap(agent.ErrPlanNotFound, "session", "ses-1"), 404},
		{"forbidden", agent.ErrForbidden, 403},
		{"conflict", agent.ErrConflict, 409},
		{"terminal", agent.ErrSessionTerminal, 409},
		{"not approved", agent.ErrNotApproved, 409},
		{"validation", &tool.ValidationError{Tool: "create_task", Param: "title", Reason: "required parameter missing"}, 400},
		{"insufficient scope", &tool.InsufficientScopeError{Tool: "delete_task", Missing: []string{"tasks:delete"}}, 403},
		{"unknown", serr.New("boom"), 500},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := statusFor(tc.err); got != tc.want {
				t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

func TestSSEHubEvictsDeadClients(t *testing.T) {
	hub := NewSSEHub()

	live := make(chan any, 10)
	dead := make(chan any) // unbuffered and never drained
	hub.Register(live)
	hub.Register(dead)

	for i := 0; i < sseEvictAfterMisses; i++ {
		hub.Broadcast(SSEEvent{Type: "plan_created", SessionId: "ses-1"})
		<-live // drain so the live client never misses
	}

	if got := hub.ClientCount(); got != 1 {
		t.Errorf("client count = %d, want 1 after evicting the dead client", got)
	}
	if _, open := <-dead; open {
		t.Error("evicted client channel should be closed")
	}

	// Unregister tolerates an already-evicted client
	hub.Unregister(dead)
	hub.Unregister(live)
	if got := hub.ClientCount(); got != 0 {
		t.Errorf("client count = %d, want 0", got)
	}
}

func TestGenerateStatusPage(t *testing.T) {
	registry := tool.NewRegistry()
	srv := &Server{registry: registry}

	t.Run("empty state", func(t *testing.T) {
		html := srv.generateStatusPage(nil)
		if !strings.Contains(html, "No sessions for this actor") {
			t.Error("empty state text missing")
		}
	})

	t.Run("lists sessions and plan summary", func(t *testing.T) {
		sessions := []*agent.Session{
			{
				ID:      "ses-1",
				OwnerID: "ana",
				State:   agent.StateAwaitingApproval,
				Plan: &agent.Plan{
					ID:     "plan-1",
					Intent: "create-task",
					Steps:  []agent.Step{{ID: "step-1"}, {ID: "step-2"}},
				},
				UpdatedAt: time.Now(),
			},
		}
		html := srv.generateStatusPage(sessions)
		for _, want := range []string{"ses-1", "ana", "awaiting_approval", "create-task (2 steps)"} {
			if !strings.Contains(html, want) {
				t.Errorf("status page missing %q", want)
			}
		}
	})
}
