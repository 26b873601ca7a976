package web

import (
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"
	"steward/agent"
	"steward/config"
	"steward/tool"
)

// Server owns the HTTP surface of the pipeline. All collaborators are
// injected; nothing here reaches for package-level state.
type Server struct {
	cfg      *config.Config
	svc      *agent.Service
	registry *tool.Registry
	hub      *SSEHub
	rweb     *rweb.Server
}

func NewServer(cfg *config.Config, svc *agent.Service, registry *tool.Registry, hub *SSEHub) *Server {
	s := &Server{
		cfg:      cfg,
		svc:      svc,
		registry: registry,
		hub:      hub,
		rweb: rweb.NewServer(rweb.ServerOptions{
			Address: cfg.Address,
			Verbose: true,
		}),
	}
	s.rweb.Use(rweb.RequestInfo)
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server
func (s *Server) setupRoutes() {
	// Root endpoint - serves the status page
	s.rweb.Get("/", s.statusPageHandler)

	// Session lifecycle
	s.rweb.Get("/api/session", s.listSessionsHandler)
	s.rweb.Post("/api/session", s.createSessionHandler)
	s.rweb.Get("/api/session/:id", s.getSessionHandler)
	s.rweb.Delete("/api/session/:id", s.cancelSessionHandler)

	// Planning and approval
	s.rweb.Post("/api/session/:id/plan", s.createPlanHandler)
	s.rweb.Put("/api/session/:id/plan/:planId/dryrun", s.dryRunHandler)
	s.rweb.Post("/api/session/:id/plan/:planId/approve", s.decideHandler)

	// Execution and audit
	s.rweb.Post("/api/session/:id/execute", s.executeHandler)
	s.rweb.Get("/api/session/:id/audit", s.auditHandler)

	// Tool catalog with usage metrics
	s.rweb.Get("/api/tools", s.listToolsHandler)

	// SSE endpoint for streaming pipeline events
	s.rweb.Get("/events", func(c rweb.Context) error {
		clientChan := make(chan any, 10)
		s.hub.Register(clientChan)

		// No unregister here: the connection outlives the handler.
		// The hub evicts clients that stop draining their channel.
		s.rweb.SetupSSE(c, clientChan, "")
		return nil
	})
}

// Run starts the HTTP server and blocks until it stops
func (s *Server) Run() error {
	logger.Info("Starting steward server", "address", s.cfg.Address)
	return s.rweb.Run()
}
