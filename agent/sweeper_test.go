package agent

import (
	"sync"
	"testing"
	"time"

	"steward/tool"
)

func TestExpireStale(t *testing.T) {
	svc, store, audit, _ := newTestService(t)
	actor := owner()

	stale := planSession(t, svc, actor, PlanRequest{
		Intent: IntentCreateTask,
		Params: map[string]interface{}{"title": "Forgotten"},
	})
	fresh := planSession(t, svc, actor, PlanRequest{
		Intent: IntentCreateTask,
		Params: map[string]interface{}{"title": "Active"},
	})
	done, _ := svc.CreateSession(actor, "proj-1")
	if _, err := svc.CancelSession(actor, done.ID); err != nil {
		t.Fatal(err)
	}

	old := time.Now().Add(-48 * time.Hour)
	store.touch(stale.ID, old)
	store.touch(done.ID, old)

	expired := svc.ExpireStale(time.Now().Add(-24 * time.Hour))
	if expired != 1 {
		t.Fatalf("expired %d sessions, want 1", expired)
	}

	got, err := svc.GetSession(actor, stale.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != StateFailed {
		t.Errorf("stale session state = %s, want %s", got.State, StateFailed)
	}
	if got.Error != "Session expired due to inactivity" {
		t.Errorf("stale session error = %q", got.Error)
	}

	// The active session is untouched
	got, err = svc.GetSession(actor, fresh.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != StateAwaitingApproval {
		t.Errorf("fresh session state = %s, want %s", got.State, StateAwaitingApproval)
	}

	recs := audit.byAction(stale.ID, ActionSessionExpired)
	if len(recs) != 1 {
		t.Fatalf("expected one session_expired audit record, got %d", len(recs))
	}
	if recs[0].Payload["previous_state"] != string(StateAwaitingApproval) {
		t.Errorf("previous_state = %v", recs[0].Payload["previous_state"])
	}
}

// racingStore bumps the stored versions right after the first stale scan,
// standing in for a writer that touches a session between the sweep's read
// and its write.
type racingStore struct {
	*memStore
	once sync.Once
}

func (r *racingStore) ListStale(cutoff time.Time) ([]*Session, error) {
	stale, err := r.memStore.ListStale(cutoff)
	r.once.Do(func() {
		r.memStore.mu.Lock()
		defer r.memStore.mu.Unlock()
		for _, s := range stale {
			r.memStore.sessions[s.ID].Version++
		}
	})
	return stale, err
}

func TestExpireSkipsConcurrentlyTouchedSessions(t *testing.T) {
	store := &racingStore{memStore: newMemStore()}
	tasks := newMemTasks()
	registry := tool.NewRegistry()
	if err := tool.RegisterDefaults(registry, tasks); err != nil {
		t.Fatalf("registering tools: %v", err)
	}
	svc := NewService(store, &memAudit{}, registry, ServiceOptions{})
	actor := owner()

	session := planSession(t, svc, actor, PlanRequest{
		Intent: IntentCreateTask,
		Params: map[string]interface{}{"title": "Contested"},
	})
	store.touch(session.ID, time.Now().Add(-48*time.Hour))

	expired := svc.ExpireStale(time.Now().Add(-24 * time.Hour))
	if expired != 0 {
		t.Errorf("expired %d sessions, want 0 on version conflict", expired)
	}

	// The concurrent touch wins: the session is still live
	got, err := svc.GetSession(actor, session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != StateAwaitingApproval {
		t.Errorf("session state = %s, want %s", got.State, StateAwaitingApproval)
	}
}

func TestSweeperStartStop(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	actor := owner()
	session := planSession(t, svc, actor, PlanRequest{
		Intent: IntentCreateTask,
		Params: map[string]interface{}{"title": "Timed out"},
	})
	store.touch(session.ID, time.Now().Add(-48*time.Hour))

	w := NewSweeper(svc, 10*time.Millisecond, 24*time.Hour)
	w.Start()
	defer w.Stop()

	deadline := time.After(2 * time.Second)
	for {
		got, err := svc.GetSession(actor, session.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.State == StateFailed {
			return
		}
		select {
		case <-deadline:
			t.Fatal("sweeper never expired the stale session")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
