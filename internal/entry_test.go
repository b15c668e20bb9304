package internal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/folio/internal/everything"
	"github.com/starford/folio/internal/fileops"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/testutil"
)

func testRuntime(t *testing.T, driver string) (*runtime, http.Handler, *testutil.FakeBackend) {
	t.Helper()
	dir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.Storage.Driver = driver
	cfg.Storage.Dir = dir
	cfg.Storage.SQLitePath = filepath.Join(dir, "folio.db")
	cfg.Auth = AuthConfig{Mode: AuthModeToken, Token: "tok"}

	backend := testutil.NewFakeBackend()
	app, err := newApplication([]Option{
		WithConfig(cfg),
		WithBackend(backend),
		WithOps(fileops.NewLocal(testutil.Logger())),
	})
	if err != nil {
		t.Fatal(err)
	}
	rt, err := build(context.Background(), app, testutil.Logger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { rt.close(testutil.Logger()) })
	return rt, newHandler(cfg, rt), backend
}

func get(h http.Handler, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRun_RequiresConfig(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Fatal("Run without config should fail")
	}
}

func TestHandler_Probes(t *testing.T) {
	_, h, _ := testRuntime(t, DriverFile)

	for _, p := range []string{"/health/live", "/health/ready"} {
		if w := get(h, p, ""); w.Code != http.StatusOK {
			t.Errorf("%s = %d", p, w.Code)
		}
	}
}

func TestHandler_APIBehindAuth(t *testing.T) {
	_, h, _ := testRuntime(t, DriverFile)

	if w := get(h, "/api/lists", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}
	if w := get(h, "/api/lists", "tok"); w.Code != http.StatusOK {
		t.Errorf("token = %d, want 200", w.Code)
	}
}

func TestHandler_MetricsUseRoutePatterns(t *testing.T) {
	_, h, _ := testRuntime(t, DriverFile)

	get(h, "/api/lists/Some%20List", "tok")
	w := get(h, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "folio_http_requests_total") {
		t.Error("request counter missing")
	}
	if strings.Contains(body, "Some") {
		t.Error("list name leaked into labels")
	}
}

func TestBuild_SQLiteDriverPersists(t *testing.T) {
	rt, _, backend := testRuntime(t, DriverSQLite)
	backend.Respond("ext:pdf|djvu", everything.Response{})

	if err := rt.svc.Lists().CreateList("Thesis", []models.ListItem{{FileName: "a.pdf", FullPath: `C:\a.pdf`}}); err != nil {
		t.Fatal(err)
	}
	if err := rt.svc.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if rt.watched != nil {
		t.Error("sqlite stores should not be watched")
	}
	if err := rt.svc.Reload(context.Background(), "lists"); err != nil {
		t.Fatal(err)
	}
	if l, ok := rt.svc.Lists().Get("Thesis"); !ok || len(l.Items) != 1 {
		t.Errorf("reloaded list = %+v", l)
	}
}

func TestBuild_FileDriverWatchesStores(t *testing.T) {
	rt, _, _ := testRuntime(t, DriverFile)
	if len(rt.watched) != 2 {
		t.Errorf("watched = %d stores, want 2", len(rt.watched))
	}
}
