package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Name != "viewer" {
		t.Errorf("expected Name=viewer, got %s", cfg.Name)
	}
	if cfg.Storage.Driver != "sqlite3" {
		t.Errorf("expected Driver=sqlite3, got %s", cfg.Storage.Driver)
	}
	if cfg.ControlFlow.MaxIterations != 100 {
		t.Errorf("expected MaxIterations=100, got %d", cfg.ControlFlow.MaxIterations)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("VIEWER_DB", "")
	t.Setenv("VIEWER_ADDR", "")

	path := filepath.Join(t.TempDir(), "viewer.yaml")

	cfg := DefaultConfig()
	cfg.Server.Address = ":9999"
	cfg.Execution.Interpreters["python"] = "/opt/python/bin/python3"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Server.Address != ":9999" {
		t.Errorf("expected Address=:9999, got %s", loaded.Server.Address)
	}
	if got := loaded.Execution.Interpreter("python", "python3"); got != "/opt/python/bin/python3" {
		t.Errorf("expected custom python interpreter, got %s", got)
	}
}

func TestConfig_LoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Content.MaxContentBytes != DefaultConfig().Content.MaxContentBytes {
		t.Error("expected default content limit")
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("VIEWER_DB", "/tmp/other.db")
	t.Setenv("VIEWER_DB_DRIVER", "sqlite")
	t.Setenv("VIEWER_ADDR", "127.0.0.1:8080")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	if cfg.Storage.DatabasePath != "/tmp/other.db" {
		t.Errorf("expected DatabasePath override, got %s", cfg.Storage.DatabasePath)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("expected Driver override, got %s", cfg.Storage.Driver)
	}
	if cfg.Server.Address != "127.0.0.1:8080" {
		t.Errorf("expected Address override, got %s", cfg.Server.Address)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Driver = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for unknown driver")
	}

	cfg = DefaultConfig()
	cfg.ControlFlow.MaxIterations = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for zero iteration cap")
	}
}

func TestConfig_Helpers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Execution.DefaultTimeout = "not-a-duration"
	if cfg.GetExecutionTimeout() != 30*time.Second {
		t.Errorf("expected fallback timeout, got %v", cfg.GetExecutionTimeout())
	}
	if cfg.ControlFlow.GetMaxDuration() != 30*time.Second {
		t.Errorf("unexpected max duration %v", cfg.ControlFlow.GetMaxDuration())
	}
	if got := cfg.Execution.Interpreter("ruby", "ruby"); got != "ruby" {
		t.Errorf("expected fallback interpreter, got %s", got)
	}
	if cfg.Logging.Options().DebugMode != cfg.Logging.DebugMode {
		t.Error("logging options should mirror debug mode")
	}
}
