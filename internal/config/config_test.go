package config

import (
	"os"
	"path/filepath"
	"testing"
)

func setTempHome(t *testing.T) string {
	t.Helper()
	tmpHome := t.TempDir()
	origHome := os.Getenv("HOME")
	t.Cleanup(func() {
		os.Setenv("HOME", origHome)
	})
	os.Setenv("HOME", tmpHome)
	return tmpHome
}

func TestDefaultConfig(t *testing.T) {
	setTempHome(t)

	origAPIKey := os.Getenv("OPENAI_API_KEY")
	t.Cleanup(func() { os.Setenv("OPENAI_API_KEY", origAPIKey) })
	os.Unsetenv("OPENAI_API_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Strategy != DefaultStrategy {
		t.Errorf("Expected Strategy=%s, got %s", DefaultStrategy, cfg.Strategy)
	}
	if cfg.BaseBranch != DefaultBaseBranch {
		t.Errorf("Expected BaseBranch=%s, got %s", DefaultBaseBranch, cfg.BaseBranch)
	}
	if cfg.AuthorName != DefaultAuthorName {
		t.Errorf("Expected AuthorName=%s, got %s", DefaultAuthorName, cfg.AuthorName)
	}
	if cfg.AutoApply {
		t.Error("Expected AutoApply=false by default")
	}
}

func TestLoadWithAPIKey(t *testing.T) {
	setTempHome(t)

	origAPIKey := os.Getenv("OPENAI_API_KEY")
	t.Cleanup(func() { os.Setenv("OPENAI_API_KEY", origAPIKey) })

	testAPIKey := "test-api-key"
	os.Setenv("OPENAI_API_KEY", testAPIKey)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.APIKey != testAPIKey {
		t.Errorf("Expected APIKey=%s, got %s", testAPIKey, cfg.APIKey)
	}
}

func TestLoadFromConfigFile(t *testing.T) {
	tmpHome := setTempHome(t)

	configDir := filepath.Join(tmpHome, DefaultConfigDir)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("Failed to create config directory: %v", err)
	}
	content := "strategy: legacy\nbase_branch: develop\nauthor_name: Jo Dev\n"
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Strategy != "legacy" {
		t.Errorf("Expected Strategy=legacy, got %s", cfg.Strategy)
	}
	if cfg.BaseBranch != "develop" {
		t.Errorf("Expected BaseBranch=develop, got %s", cfg.BaseBranch)
	}
	if cfg.AuthorName != "Jo Dev" {
		t.Errorf("Expected AuthorName=Jo Dev, got %s", cfg.AuthorName)
	}
}

func TestLoadRejectsInvalidStrategy(t *testing.T) {
	tmpHome := setTempHome(t)

	configDir := filepath.Join(tmpHome, DefaultConfigDir)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("Failed to create config directory: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("strategy: bogus\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(); err == nil {
		t.Fatal("Expected error for invalid strategy")
	}
}
