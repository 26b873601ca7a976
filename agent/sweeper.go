package agent

import (
	"errors"
	"time"

	"github.com/rohanthewiz/logger"
)

// Sweeper periodically fails sessions that have sat idle past the expiry
// window, so abandoned plans can never be approved or executed later.
type Sweeper struct {
	svc      *Service
	interval time.Duration
	expiry   time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func NewSweeper(svc *Service, interval, expiry time.Duration) *Sweeper {
	return &Sweeper{
		svc:      svc,
		interval: interval,
		expiry:   expiry,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop in its own goroutine.
func (w *Sweeper) Start() {
	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				expired := w.svc.ExpireStale(w.svc.now().Add(-w.expiry))
				if expired > 0 {
					logger.Info("Expired stale sessions", "count", expired)
				}
			case <-w.stop:
				return
			}
		}
	}()
}

// Stop halts the loop and waits for the current sweep to finish.
func (w *Sweeper) Stop() {
	close(w.stop)
	<-w.done
}

// ExpireStale fails every non-terminal session not updated since cutoff.
// Returns the number of sessions expired. A version conflict means the
// session was touched while sweeping and is skipped; it gets a fresh
// inactivity window from that touch.
func (s *Service) ExpireStale(cutoff time.Time) int {
	stale, err := s.store.ListStale(cutoff)
	if err != nil {
		logger.LogErr(err, "Stale session scan failed")
		return 0
	}

	expired := 0
	for _, session := range stale {
		if session.State.Terminal() {
			continue
		}
		previous := session.State
		session.State = StateFailed
		session.Error = "Session expired due to inactivity"
		if err := s.store.Update(session); err != nil {
			if !errors.Is(err, ErrConflict) {
				logger.LogErr(err, "Failed to expire session", "session", session.ID)
			}
			continue
		}
		expired++

		s.auditAppend(AuditRecord{
			ActorID:    "system",
			SessionID:  session.ID,
			Action:     ActionSessionExpired,
			TargetType: "session",
			TargetID:   session.ID,
			Payload: map[string]interface{}{
				"previous_state": string(previous),
			},
			Status: AuditStatusExecuted,
		})
		s.publish("session_expired", session.ID, map[string]interface{}{
			"previous_state": string(previous),
		})
	}
	return expired
}
