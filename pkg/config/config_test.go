package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func TestLoadOrDefault_MissingFileKeepsDefaults(t *testing.T) {
	cfg := &sample{Name: "default", Port: 1}
	found, err := LoadOrDefault(filepath.Join(t.TempDir(), "none.yaml"), cfg)
	if err != nil || found {
		t.Fatalf("found=%v err=%v", found, err)
	}
	if cfg.Name != "default" {
		t.Errorf("name = %q", cfg.Name)
	}
}

func TestLoadOrDefault_ValidatesDefaults(t *testing.T) {
	if _, err := LoadOrDefault(filepath.Join(t.TempDir(), "none.yaml"), &sample{}); err == nil {
		t.Fatal("invalid defaults should fail")
	}
}

func TestLoad_OverlaysAndExpands(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "from-env")
	path := filepath.Join(t.TempDir(), "c.yaml")
	if err := os.WriteFile(path, []byte("name: ${SAMPLE_NAME}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := &sample{Port: 8080}
	found, err := LoadOrDefault(path, cfg)
	if err != nil || !found {
		t.Fatalf("found=%v err=%v", found, err)
	}
	if cfg.Name != "from-env" || cfg.Port != 8080 {
		t.Errorf("cfg = %+v", cfg)
	}
}
