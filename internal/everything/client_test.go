package everything

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSearch_RoundTrip(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("auth header = %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"file_name":"a.pdf","full_path":"C:\\a.pdf","title":"A","highlights":[],"pdf_title":"x"}],"has_more":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", time.Second, testLogger(), WithTokenProvider(func(context.Context) (string, error) {
		return "secret", nil
	}))
	resp, err := c.Search(context.Background(), Request{Query: "physics", IncludeHighlights: true, Count: 50})
	if err != nil {
		t.Fatal(err)
	}
	if got.Query != "physics" || !got.IncludeHighlights || got.Count != 50 {
		t.Errorf("request = %+v", got)
	}
	if !resp.HasMore || len(resp.Items) != 1 {
		t.Fatalf("response = %+v", resp)
	}
	it := resp.Items[0]
	if it.FullPath != `C:\a.pdf` || it.Highlights == nil {
		t.Errorf("item = %+v", it)
	}
	if string(it.Extra["pdf_title"]) != `"x"` {
		t.Errorf("extra = %v", it.Extra)
	}
}

func TestSearch_BlankQueryShortCircuits(t *testing.T) {
	c := New("http://127.0.0.1:1", time.Second, testLogger())
	resp, err := c.Search(context.Background(), Request{Query: "   "})
	if err != nil || len(resp.Items) != 0 {
		t.Fatalf("resp=%+v err=%v", resp, err)
	}
	items, err := c.SearchMeta(context.Background(), "")
	if err != nil || items != nil {
		t.Fatalf("meta=%v err=%v", items, err)
	}
}

func TestSearchMeta(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Query string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		if r.URL.Path != "/search/meta" || body.Query != `frn:"7"` {
			t.Errorf("path=%s query=%q", r.URL.Path, body.Query)
		}
		_, _ = w.Write([]byte(`[{"id":"7","file_name":"b.pdf","full_path":"C:\\b.pdf","title":"B"}]`))
	}))
	defer srv.Close()

	items, err := New(srv.URL, time.Second, testLogger()).SearchMeta(context.Background(), `frn:"7"`)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ID != "7" {
		t.Errorf("items = %+v", items)
	}
}

func TestSearch_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "index not running", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second, testLogger()).Search(context.Background(), Request{Query: "x"})
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusServiceUnavailable || se.Body != "index not running" {
		t.Fatalf("err = %v", err)
	}
}
