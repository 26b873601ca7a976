package agent

import (
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// Decision is the outcome a reviewer records against a plan.
type Decision struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason,omitempty"`
}

// Decide records an approval or rejection on the session's plan. A plan can
// be decided exactly once; the version check on Update catches two reviewers
// racing so only the first decision lands.
func (s *Service) Decide(actor Principal, sessionID, planID string, decision Decision) (*Session, error) {
	session, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(session) {
		return nil, ErrForbidden
	}
	if session.State.Terminal() {
		return nil, ErrSessionTerminal
	}
	if session.Plan == nil || session.Plan.ID != planID {
		return nil, serr.Wrap(ErrPlanNotFound, "session", sessionID, "plan", planID)
	}
	if session.Plan.Decided() {
		return nil, serr.Wrap(ErrConflict, "plan already decided", "plan", planID)
	}
	if session.State != StateAwaitingApproval {
		return nil, serr.Wrap(ErrConflict, "session is not awaiting approval",
			"session", sessionID, "state", string(session.State))
	}

	now := s.now()
	if decision.Approve {
		session.Plan.Approved = true
		session.Plan.ApprovedAt = &now
		session.Plan.ApprovedBy = actor.ID
	} else {
		session.Plan.Rejected = true
		session.Plan.RejectedAt = &now
		session.Plan.RejectedBy = actor.ID
		session.Plan.RejectionReason = decision.Reason
		session.State = StateFailed
		session.Error = "Plan rejected: " + decision.Reason
	}

	if err := s.store.Update(session); err != nil {
		return nil, err
	}

	action := ActionPlanApproved
	if !decision.Approve {
		action = ActionPlanRejected
	}
	s.auditAppend(AuditRecord{
		ActorID:    actor.ID,
		SessionID:  session.ID,
		Action:     action,
		TargetType: "plan",
		TargetID:   planID,
		Payload: map[string]interface{}{
			"approve": decision.Approve,
			"reason":  decision.Reason,
		},
		Status: AuditStatusExecuted,
	})

	logger.Info("Plan decision recorded", "session", sessionID, "plan", planID,
		"approved", decision.Approve, "by", actor.ID)
	event := "plan_approved"
	if !decision.Approve {
		event = "plan_rejected"
	}
	s.publish(event, session.ID, map[string]interface{}{
		"plan_id": planID,
		"by":      actor.ID,
	})
	return session, nil
}
