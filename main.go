package main

import (
	"log"
	"os"
	"time"

	"github.com/rohanthewiz/logger"
	"steward/agent"
	"steward/config"
	"steward/db"
	"steward/platform/shutdown"
	"steward/tool"
	"steward/web"
)

func main() {
	cfg, err := config.Load(os.Getenv("STEWARD_CONFIG"))
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}

	registry := tool.NewRegistry()
	if err := tool.RegisterDefaults(registry, db.NewTaskStore(database)); err != nil {
		log.Fatalf("registering tools: %v", err)
	}

	hub := web.NewSSEHub()
	svc := agent.NewService(db.NewSessionStore(database), db.NewAuditLog(database), registry,
		agent.ServiceOptions{
			PreviewLimit: cfg.PreviewLimit,
			Events:       hub,
		})

	sweeper := agent.NewSweeper(svc, cfg.SweepInterval, cfg.SessionExpiry)
	sweeper.Start()

	done := make(chan struct{})
	shutdown.InitShutdownService(done)
	shutdown.RegisterHook(func(time.Duration) error {
		sweeper.Stop()
		return nil
	})
	shutdown.RegisterHook(func(time.Duration) error {
		return database.Close()
	})

	srv := web.NewServer(cfg, svc, registry, hub)
	go func() {
		if err := srv.Run(); err != nil {
			logger.LogErr(err, "server stopped")
		}
	}()

	<-done
	logger.Info("Steward stopped")
}
