package web

import (
	"fmt"
	"strings"

	"github.com/rohanthewiz/element"
	"github.com/rohanthewiz/rweb"
	"steward/agent"
	"steward/tool"
)

// statusPageHandler serves a server-rendered overview of the pipeline:
// the caller's sessions and the tool catalog. When the identity headers
// are absent it renders an empty state instead of failing.
func (s *Server) statusPageHandler(c rweb.Context) error {
	var sessions []*agent.Session
	if actor, err := s.principalFrom(c); err == nil {
		sessions, _ = s.svc.ListSessions(actor)
	}
	return c.WriteHTML(s.generateStatusPage(sessions))
}

func (s *Server) generateStatusPage(sessions []*agent.Session) string {
	b := element.NewBuilder()

	b.Html().R(
		b.Head().R(
			b.Title().T("Steward - Agent Action Pipeline"),
			b.Meta("charset", "UTF-8"),
			b.Meta("name", "viewport", "content", "width=device-width, initial-scale=1.0"),
			b.Style().T(statusPageCSS),
		),
		b.Body().R(
			b.Header().R(
				b.H1().T("Steward"),
				b.P("class", "subtitle").T("Plan, preview, approve, execute"),
			),
			b.Main().R(
				b.Section().R(
					b.H2().T("Sessions"),
					renderSessionTable(b, sessions),
				),
				b.Section().R(
					b.H2().T("Tools"),
					renderToolTable(b, s.registry.List()),
				),
			),
		),
	)

	return b.String()
}

func renderSessionTable(b *element.Builder, sessions []*agent.Session) (x any) {
	if len(sessions) == 0 {
		b.P("class", "empty").T("No sessions for this actor. POST /api/session to open one.")
		return
	}
	b.Table().R(
		b.Tr().R(
			b.Th().T("Session"),
			b.Th().T("Owner"),
			b.Th().T("State"),
			b.Th().T("Plan"),
			b.Th().T("Updated"),
		),
		element.ForEach(sessions, func(session *agent.Session) {
			planLabel := "-"
			if session.Plan != nil {
				planLabel = fmt.Sprintf("%s (%d steps)", session.Plan.Intent, len(session.Plan.Steps))
			}
			b.Tr().R(
				b.Td().T(session.ID),
				b.Td().T(session.OwnerID),
				b.Td().R(
					b.Span("class", "state state-"+string(session.State)).T(string(session.State)),
				),
				b.Td().T(planLabel),
				b.Td().T(session.UpdatedAt.Format("2006-01-02 15:04:05")),
			)
		}),
	)
	return
}

func renderToolTable(b *element.Builder, descriptors []tool.Descriptor) (x any) {
	b.Table().R(
		b.Tr().R(
			b.Th().T("Name"),
			b.Th().T("Scopes"),
			b.Th().T("Mutates"),
			b.Th().T("Description"),
		),
		element.ForEach(descriptors, func(desc tool.Descriptor) {
			mutates := "no"
			if desc.Mutates {
				mutates = "yes"
			}
			b.Tr().R(
				b.Td().T(desc.Name),
				b.Td().T(strings.Join(desc.RequiredScopes, ", ")),
				b.Td().T(mutates),
				b.Td().T(desc.Description),
			)
		}),
	)
	return
}

const statusPageCSS = `
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif; margin: 0; background: #1a1a2e; color: #e0e0e0; }
header { padding: 24px 32px; border-bottom: 1px solid #2a2a4e; }
h1 { margin: 0; font-size: 1.6em; }
.subtitle { margin: 4px 0 0; color: #8888aa; }
main { padding: 24px 32px; }
section { margin-bottom: 32px; }
h2 { font-size: 1.1em; color: #aaaacc; }
table { border-collapse: collapse; width: 100%; }
th, td { text-align: left; padding: 8px 12px; border-bottom: 1px solid #2a2a4e; font-size: 0.9em; }
th { color: #8888aa; font-weight: 600; }
.empty { color: #8888aa; font-style: italic; }
.state { padding: 2px 8px; border-radius: 4px; font-size: 0.85em; }
.state-planning { background: #2d4a6e; }
.state-awaiting_approval { background: #6e5a2d; }
.state-executing { background: #2d6e4a; }
.state-completed { background: #2d6e2d; }
.state-failed { background: #6e2d2d; }
`
