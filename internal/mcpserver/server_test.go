package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/everything"
	"github.com/starford/folio/internal/kvstore"
	"github.com/starford/folio/internal/library"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/testutil"
)

// noOps refuses every native call; tagging is reported as unsupported so
// files are added untagged.
type noOps struct{}

func (noOps) Open(context.Context, string, int, string) (string, error) {
	return "", apperr.ErrUnsupported
}
func (noOps) ShowInExplorer(context.Context, string) error { return apperr.ErrUnsupported }
func (noOps) Delete(context.Context, string) error         { return apperr.ErrUnsupported }
func (noOps) Rename(context.Context, string, string) (string, error) {
	return "", apperr.ErrUnsupported
}
func (noOps) SetMetadata(context.Context, string) (string, error) {
	return "", apperr.ErrUnsupported
}

func testServer(t *testing.T) (*Server, *testutil.FakeBackend, *library.Service) {
	t.Helper()

	backend := testutil.NewFakeBackend()
	svc := library.New(
		testutil.FileStore(t, kvstore.SettingsStore),
		testutil.FileStore(t, kvstore.ListsStore),
		backend, noOps{}, nil, testutil.Logger(),
		library.Config{Debounce: time.Hour, Location: time.UTC},
	)
	t.Cleanup(svc.Close)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	return New(svc), backend, svc
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_files":
		result, err = srv.searchFiles(ctx, req)
	case "list_lists":
		result, err = srv.listLists(ctx, req)
	case "read_list":
		result, err = srv.readList(ctx, req)
	case "add_to_list":
		result, err = srv.addToList(ctx, req)
	case "pin_item":
		result, err = srv.pinItem(ctx, req)
	case "get_highlights":
		result, err = srv.getHighlights(ctx, req)
	case "get_query_syntax":
		result, err = srv.getQuerySyntax(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func book(name string, hl ...models.Highlight) models.FileRecord {
	return models.FileRecord{
		ID:         "id-" + name,
		FileName:   name,
		FullPath:   `C:\lib\` + name,
		Title:      strings.TrimSuffix(name, ".pdf"),
		Extension:  "pdf",
		Highlights: hl,
	}
}

func TestSearchAndAddToList(t *testing.T) {
	srv, backend, svc := testServer(t)
	backend.Respond("optics ext:pdf|djvu", everything.Response{Items: []models.FileRecord{book("optics.pdf")}})

	r := callTool(t, srv, "search_files", map[string]interface{}{"query": "optics"})
	if r.IsError || !strings.Contains(resultText(r), `optics.pdf`) {
		t.Fatalf("search = %q", resultText(r))
	}

	r = callTool(t, srv, "add_to_list", map[string]interface{}{"list": "Reading", "full_path": `C:\lib\optics.pdf`})
	if text := resultText(r); text != "added to Reading: optics.pdf" {
		t.Errorf("add = %q", text)
	}
	r = callTool(t, srv, "add_to_list", map[string]interface{}{"list": "Reading", "full_path": `C:\lib\optics.pdf`})
	if text := resultText(r); text != "already in Reading: optics.pdf" {
		t.Errorf("second add = %q", text)
	}
	if l, ok := svc.Lists().Get("Reading"); !ok || len(l.Items) != 1 {
		t.Errorf("list = %+v", l)
	}

	r = callTool(t, srv, "add_to_list", map[string]interface{}{"list": "Reading", "full_path": `C:\lib\ghost.pdf`})
	if !r.IsError {
		t.Error("expected error for a file outside the results")
	}
}

func TestListsAndPins(t *testing.T) {
	srv, _, svc := testServer(t)
	_ = svc.Lists().SetList("Thesis", []models.ListItem{book("a.pdf"), book("b.pdf")})
	_ = svc.Lists().SetList("Later", nil)

	if text := resultText(callTool(t, srv, "list_lists", map[string]interface{}{})); text != "Thesis\nLater" {
		t.Errorf("lists = %q", text)
	}

	r := callTool(t, srv, "pin_item", map[string]interface{}{"list": "Thesis", "file_name": "b.pdf"})
	if text := resultText(r); text != "pinned: b.pdf" {
		t.Fatalf("pin = %q", text)
	}

	r = callTool(t, srv, "read_list", map[string]interface{}{"name": "Thesis"})
	var l models.List
	if err := json.Unmarshal([]byte(resultText(r)), &l); err != nil {
		t.Fatal(err)
	}
	if l.Items[0].FileName != "b.pdf" {
		t.Errorf("pinned item not first: %+v", l.Items)
	}

	r = callTool(t, srv, "pin_item", map[string]interface{}{"list": "Thesis", "file_name": "b.pdf", "pinned": false})
	if text := resultText(r); text != "unpinned: b.pdf" {
		t.Errorf("unpin = %q", text)
	}
	if r := callTool(t, srv, "pin_item", map[string]interface{}{"list": "Thesis", "file_name": "zzz.pdf"}); !r.IsError {
		t.Error("expected error for a missing item")
	}
}

func TestReadListMissing(t *testing.T) {
	srv, _, _ := testServer(t)
	r := callTool(t, srv, "read_list", map[string]interface{}{"name": "nope"})
	if !r.IsError {
		t.Error("expected error for missing list")
	}
}

func TestGetHighlights(t *testing.T) {
	srv, backend, _ := testServer(t)
	backend.Respond("ext:pdf|djvu", everything.Response{Items: []models.FileRecord{
		book("a.pdf", models.Highlight{Page: 1, HighlightedText: "alpha"}),
		book("b.pdf", models.Highlight{Page: 2, HighlightedText: "beta"}),
	}})
	callTool(t, srv, "search_files", map[string]interface{}{})

	text := resultText(callTool(t, srv, "get_highlights", map[string]interface{}{}))
	if !strings.Contains(text, "alpha") || !strings.Contains(text, "beta") {
		t.Errorf("feed = %s", text)
	}
	if !strings.Contains(text, `"total_filtered": 2`) {
		t.Errorf("total missing: %s", text)
	}
}

func TestQuerySyntax(t *testing.T) {
	srv, _, _ := testServer(t)
	if text := resultText(callTool(t, srv, "get_query_syntax", nil)); !strings.Contains(text, "ext:pdf|djvu") {
		t.Errorf("syntax = %q", text)
	}
}
