package web

import (
	"strings"

	"github.com/rohanthewiz/rweb"
	"github.com/rohanthewiz/serr"
	"steward/agent"
)

// principalFrom builds the calling principal from the identity headers the
// portal gateway sets after authenticating the user. The pipeline itself
// never sees credentials, only the resolved actor and its granted scopes.
func (s *Server) principalFrom(c rweb.Context) (agent.Principal, error) {
	actorID := c.Request().Header("X-Actor-Id")
	if actorID == "" {
		return agent.Principal{}, serr.New("missing X-Actor-Id header")
	}

	var scopes []string
	if raw := c.Request().Header("X-Actor-Scopes"); raw != "" {
		for _, scope := range strings.Split(raw, ",") {
			if scope = strings.TrimSpace(scope); scope != "" {
				scopes = append(scopes, scope)
			}
		}
	}

	return agent.Principal{
		ID:     actorID,
		Scopes: scopes,
		Admin:  s.cfg.IsAdmin(actorID),
	}, nil
}
