package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/folio/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestStorageConfig_DriverRules(t *testing.T) {
	cases := []struct {
		name string
		cfg  StorageConfig
		ok   bool
	}{
		{"file", StorageConfig{Driver: DriverFile, Dir: "./data"}, true},
		{"file without dir", StorageConfig{Driver: DriverFile}, false},
		{"sqlite", StorageConfig{Driver: DriverSQLite, SQLitePath: "x.db"}, true},
		{"sqlite without path", StorageConfig{Driver: DriverSQLite, Dir: "./data"}, false},
		{"unknown driver", StorageConfig{Driver: "redis", Dir: "./data"}, false},
	}
	for _, c := range cases {
		err := c.cfg.Validate()
		if (err == nil) != c.ok {
			t.Errorf("%s: err = %v", c.name, err)
		}
	}
}

func TestBackendConfig_RequiresURL(t *testing.T) {
	cfg := BackendConfig{URL: "not a url", Timeout: time.Second}
	if err := cfg.Validate(); err == nil {
		t.Error("invalid URL should fail")
	}
	cfg = BackendConfig{URL: "http://127.0.0.1:8765"}
	if err := cfg.Validate(); err == nil {
		t.Error("missing timeout should fail")
	}
}

func TestSearchConfig_Bounds(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Search.FetchCount = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero fetch count should fail")
	}
	cfg = NewDefaultConfig()
	cfg.Search.Debounce = time.Minute
	if err := cfg.Validate(); err == nil {
		t.Error("minute-long debounce should fail")
	}
	cfg = NewDefaultConfig()
	cfg.Search.ScanLimit = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero scan limit should fail")
	}
}

func TestLoadConfig_ExpandsEnv(t *testing.T) {
	t.Setenv("FOLIO_TEST_TOKEN", "s3cret")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `app:
  log_level: debug
  http:
    port: 9090
storage:
  driver: sqlite
  sqlite_path: ./folio.db
search:
  debounce: 250ms
auth:
  mode: token
  token: ${FOLIO_TEST_TOKEN}
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Auth.Token != "s3cret" || cfg.App.HTTP.Port != 9090 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Search.Debounce != 250*time.Millisecond || cfg.Search.FetchCount != 50 {
		t.Errorf("search = %+v", cfg.Search)
	}
	if cfg.App.LogLevel != slog.LevelDebug || cfg.Storage.Driver != DriverSQLite {
		t.Errorf("app = %+v storage = %+v", cfg.App, cfg.Storage)
	}
}
