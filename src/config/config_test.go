package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaultsWithNoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DBPath != "./data.db" {
		t.Errorf("expected default db_path, got %q", cfg.DBPath)
	}
	if cfg.ExcavatorLink.Port != 5005 {
		t.Errorf("expected default excavator port 5005, got %d", cfg.ExcavatorLink.Port)
	}
}

func TestLoadMergesConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "riglink.yaml")
	contents := `
db_path: /tmp/custom.db
excavator_link:
  port: 6000
  num_inputs: 8
`
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DBPath != "/tmp/custom.db" {
		t.Errorf("expected overridden db_path, got %q", cfg.DBPath)
	}
	if cfg.ExcavatorLink.Port != 6000 {
		t.Errorf("expected overridden excavator port 6000, got %d", cfg.ExcavatorLink.Port)
	}
	if cfg.ExcavatorLink.NumInputs != 8 {
		t.Errorf("expected overridden num_inputs 8, got %d", cfg.ExcavatorLink.NumInputs)
	}
	// Untouched default should survive the merge.
	if cfg.MotionLink.Port != 5006 {
		t.Errorf("expected default motion port to survive merge, got %d", cfg.MotionLink.Port)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("RIGLINK_DB_PATH", "/env/override.db")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DBPath != "/env/override.db" {
		t.Errorf("expected env override, got %q", cfg.DBPath)
	}
}
