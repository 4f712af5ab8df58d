package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.AutosaveDelay != 5*time.Second {
		t.Errorf("AutosaveDelay = %v", cfg.AutosaveDelay)
	}
	if cfg.IdleCheckDelay != 30*time.Second {
		t.Errorf("IdleCheckDelay = %v", cfg.IdleCheckDelay)
	}
	if cfg.MinAnalyzeLength != 20 {
		t.Errorf("MinAnalyzeLength = %d", cfg.MinAnalyzeLength)
	}
	if cfg.DefaultGradeLevel != "3" {
		t.Errorf("DefaultGradeLevel = %q", cfg.DefaultGradeLevel)
	}
	if cfg.CoachEnabled() {
		t.Error("Coach should be disabled without COACH_BASE_URL")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("COACH_BASE_URL", "http://coach:8000")
	t.Setenv("AUTOSAVE_DELAY", "2s")
	t.Setenv("IDLE_CHECK_DELAY", "10s")
	t.Setenv("MIN_ANALYZE_LENGTH", "50")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Port != "9999" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if !cfg.CoachEnabled() {
		t.Error("Coach should be enabled")
	}
	if cfg.AutosaveDelay != 2*time.Second {
		t.Errorf("AutosaveDelay = %v", cfg.AutosaveDelay)
	}
	if cfg.MinAnalyzeLength != 50 {
		t.Errorf("MinAnalyzeLength = %d", cfg.MinAnalyzeLength)
	}
}

func TestLoadRejectsIdleDelayNotExceedingAutosave(t *testing.T) {
	t.Setenv("AUTOSAVE_DELAY", "30s")
	t.Setenv("IDLE_CHECK_DELAY", "30s")

	if _, err := Load(); err == nil {
		t.Fatal("Expected error when idle delay does not exceed autosave delay")
	}
}

func TestInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("AUTOSAVE_DELAY", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.AutosaveDelay != 5*time.Second {
		t.Errorf("AutosaveDelay = %v, want default", cfg.AutosaveDelay)
	}
}

func TestIsDevelopment(t *testing.T) {
	tests := []struct {
		frontendURL string
		want        bool
	}{
		{"", true},
		{"http://localhost:3000", true},
		{"http://127.0.0.1:3000", true},
		{"https://studio.example.com", false},
	}
	for _, tt := range tests {
		cfg := &Config{FrontendURL: tt.frontendURL}
		if got := cfg.IsDevelopment(); got != tt.want {
			t.Errorf("IsDevelopment(%q) = %v, want %v", tt.frontendURL, got, tt.want)
		}
	}
}
