package web

import (
	"context"
	"encoding/json"

	"github.com/rohanthewiz/rweb"
	"github.com/rohanthewiz/serr"
	"steward/agent"
)

// CreateSessionRequest opens a new session, optionally scoped to a project
type CreateSessionRequest struct {
	ProjectID string `json:"project_id,omitempty"`
}

func (s *Server) createSessionHandler(c rweb.Context) error {
	actor, err := s.principalFrom(c)
	if err != nil {
		return c.WriteError(err, 401)
	}

	var req CreateSessionRequest
	if body := c.Request().Body(); len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return c.WriteError(serr.Wrap(err, "invalid request body"), 400)
		}
	}

	session, err := s.svc.CreateSession(actor, req.ProjectID)
	if err != nil {
		return writeErr(c, err)
	}
	return c.WriteJSON(session)
}

func (s *Server) getSessionHandler(c rweb.Context) error {
	actor, err := s.principalFrom(c)
	if err != nil {
		return c.WriteError(err, 401)
	}

	session, err := s.svc.GetSession(actor, c.Request().Param("id"))
	if err != nil {
		return writeErr(c, err)
	}
	return c.WriteJSON(session)
}

func (s *Server) listSessionsHandler(c rweb.Context) error {
	actor, err := s.principalFrom(c)
	if err != nil {
		return c.WriteError(err, 401)
	}

	sessions, err := s.svc.ListSessions(actor)
	if err != nil {
		return writeErr(c, err)
	}
	return c.WriteJSON(map[string]interface{}{"sessions": sessions})
}

func (s *Server) cancelSessionHandler(c rweb.Context) error {
	actor, err := s.principalFrom(c)
	if err != nil {
		return c.WriteError(err, 401)
	}

	session, err := s.svc.CancelSession(actor, c.Request().Param("id"))
	if err != nil {
		return writeErr(c, err)
	}
	return c.WriteJSON(session)
}

func (s *Server) createPlanHandler(c rweb.Context) error {
	actor, err := s.principalFrom(c)
	if err != nil {
		return c.WriteError(err, 401)
	}

	var req agent.PlanRequest
	if err := json.Unmarshal(c.Request().Body(), &req); err != nil {
		return c.WriteError(serr.Wrap(err, "invalid request body"), 400)
	}
	if req.Request == "" && req.Intent == "" {
		return c.WriteError(serr.New("request text or intent required"), 400)
	}

	session, err := s.svc.Plan(actor, c.Request().Param("id"), req)
	if err != nil {
		return writeErr(c, err)
	}
	return c.WriteJSON(session)
}

func (s *Server) dryRunHandler(c rweb.Context) error {
	actor, err := s.principalFrom(c)
	if err != nil {
		return c.WriteError(err, 401)
	}

	session, err := s.svc.DryRun(context.Background(), actor,
		c.Request().Param("id"), c.Request().Param("planId"))
	if err != nil {
		return writeErr(c, err)
	}
	return c.WriteJSON(session)
}

func (s *Server) decideHandler(c rweb.Context) error {
	actor, err := s.principalFrom(c)
	if err != nil {
		return c.WriteError(err, 401)
	}

	var decision agent.Decision
	if err := json.Unmarshal(c.Request().Body(), &decision); err != nil {
		return c.WriteError(serr.Wrap(err, "invalid request body"), 400)
	}
	if !decision.Approve && decision.Reason == "" {
		return c.WriteError(serr.New("a rejection requires a reason"), 400)
	}

	session, err := s.svc.Decide(actor, c.Request().Param("id"), c.Request().Param("planId"), decision)
	if err != nil {
		return writeErr(c, err)
	}
	return c.WriteJSON(session)
}

func (s *Server) executeHandler(c rweb.Context) error {
	actor, err := s.principalFrom(c)
	if err != nil {
		return c.WriteError(err, 401)
	}

	session, err := s.svc.Execute(context.Background(), actor, c.Request().Param("id"))
	if err != nil {
		return writeErr(c, err)
	}
	return c.WriteJSON(session)
}

func (s *Server) auditHandler(c rweb.Context) error {
	actor, err := s.principalFrom(c)
	if err != nil {
		return c.WriteError(err, 401)
	}

	records, err := s.svc.AuditTrail(actor, c.Request().Param("id"))
	if err != nil {
		return writeErr(c, err)
	}
	return c.WriteJSON(map[string]interface{}{"records": records})
}

func (s *Server) listToolsHandler(c rweb.Context) error {
	if _, err := s.principalFrom(c); err != nil {
		return c.WriteError(err, 401)
	}

	return c.WriteJSON(map[string]interface{}{
		"tools":   s.registry.List(),
		"metrics": s.registry.MetricsSummary(),
	})
}
