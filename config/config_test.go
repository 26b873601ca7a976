package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Address != ":8700" || cfg.DBPath != "steward.db" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.PreviewLimit != 500 {
		t.Errorf("preview limit = %d, want 500", cfg.PreviewLimit)
	}
	if cfg.SweepInterval != 10*time.Minute || cfg.SessionExpiry != 24*time.Hour {
		t.Errorf("unexpected sweep defaults: %+v", cfg)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steward.yaml")
	content := []byte(`
address: ":9000"
db_path: /tmp/steward-test.db
preview_limit: 200
sweep_interval: 1m
session_expiry: 2h
admin_actor_ids:
  - root
  - ops
`)
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Address != ":9000" || cfg.DBPath != "/tmp/steward-test.db" || cfg.PreviewLimit != 200 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.SweepInterval != time.Minute || cfg.SessionExpiry != 2*time.Hour {
		t.Errorf("durations did not parse: %+v", cfg)
	}
	if !cfg.IsAdmin("root") || !cfg.IsAdmin("ops") || cfg.IsAdmin("ana") {
		t.Errorf("admin list wrong: %v", cfg.AdminActorIDs)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steward.yaml")
	if err := os.WriteFile(path, []byte("sweep_interval: soon\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for unparseable duration")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("STEWARD_ADDRESS", ":7777")
	t.Setenv("STEWARD_PREVIEW_LIMIT", "50")
	t.Setenv("STEWARD_SESSION_EXPIRY", "36h")
	t.Setenv("STEWARD_ADMINS", "root, ops")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Address != ":7777" || cfg.PreviewLimit != 50 {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
	if cfg.SessionExpiry != 36*time.Hour {
		t.Errorf("session expiry = %v, want 36h", cfg.SessionExpiry)
	}
	if !cfg.IsAdmin("ops") {
		t.Errorf("admins not parsed from env: %v", cfg.AdminActorIDs)
	}
}
