package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.FreeWeeklyMinutes != 25 {
		t.Errorf("expected 25 free weekly minutes, got %d", cfg.FreeWeeklyMinutes)
	}
	if cfg.TrackerPollInterval != 2*time.Second {
		t.Errorf("expected 2s poll interval, got %s", cfg.TrackerPollInterval)
	}
	if cfg.StuckCallTimeout != 10*time.Minute {
		t.Errorf("expected 10m stuck call timeout, got %s", cfg.StuckCallTimeout)
	}
	if cfg.TerminalRetention != 24*time.Hour {
		t.Errorf("expected 24h terminal retention, got %s", cfg.TerminalRetention)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("FREE_WEEKLY_MINUTES", "50")
	t.Setenv("SCHEDULER_LOOKAHEAD", "2m")
	t.Setenv("USE_MEMORY_QUEUE", "true")

	cfg := Load()

	if cfg.Port != "9999" {
		t.Errorf("expected port 9999, got %s", cfg.Port)
	}
	if cfg.FreeWeeklyMinutes != 50 {
		t.Errorf("expected 50 minutes, got %d", cfg.FreeWeeklyMinutes)
	}
	if cfg.SchedulerLookahead != 2*time.Minute {
		t.Errorf("expected 2m lookahead, got %s", cfg.SchedulerLookahead)
	}
	if !cfg.UseMemoryQueue {
		t.Error("expected memory queue enabled")
	}
}
