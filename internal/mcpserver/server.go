// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes folio tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/folio/internal/library"
	"github.com/starford/folio/internal/lists"
)

const syntaxURI = "folio://query-syntax"

// Server wraps the MCP server with folio tools.
type Server struct {
	mcp *server.MCPServer
	svc *library.Service
}

// New creates a new MCP server with all folio tools registered.
func New(svc *library.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Folio",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_files",
		mcp.WithDescription("Search the library and return the file table. "+
			"The query becomes the current search text; type filters and exclusions "+
			"from settings are added automatically. Read the syntax via get_query_syntax "+
			"or the "+syntaxURI+" resource."),
		mcp.WithString("query", mcp.Description("Search text (empty for the whole library)")),
	), s.searchFiles)

	s.mcp.AddTool(mcp.NewTool("list_lists",
		mcp.WithDescription("List the names of all lists in display order."),
	), s.listLists)

	s.mcp.AddTool(mcp.NewTool("read_list",
		mcp.WithDescription("Read a list with its items, pinned items first."),
		mcp.WithString("name", mcp.Required(), mcp.Description("List name")),
	), s.readList)

	s.mcp.AddTool(mcp.NewTool("add_to_list",
		mcp.WithDescription("Add a file from the current search results to a list. "+
			"A missing list is created."),
		mcp.WithString("list", mcp.Required(), mcp.Description("List name")),
		mcp.WithString("full_path", mcp.Required(), mcp.Description("Full path of a file in the current results")),
	), s.addToList)

	s.mcp.AddTool(mcp.NewTool("pin_item",
		mcp.WithDescription("Pin or unpin a list item."),
		mcp.WithString("list", mcp.Required(), mcp.Description("List name")),
		mcp.WithString("file_name", mcp.Required(), mcp.Description("File name of the item")),
		mcp.WithBoolean("pinned", mcp.Description("false unpins (default true)")),
	), s.pinItem)

	s.mcp.AddTool(mcp.NewTool("get_highlights",
		mcp.WithDescription("Return the highlight feed of the current results, grouped by day and book."),
		mcp.WithString("book", mcp.Description("Optional book title to restrict the feed to")),
	), s.getHighlights)

	s.mcp.AddTool(mcp.NewTool("get_query_syntax",
		mcp.WithDescription("Returns the search query syntax accepted by search_files."),
	), s.getQuerySyntax)

	s.mcp.AddResource(
		mcp.NewResource(syntaxURI, "Query Syntax",
			mcp.WithResourceDescription("Search query language of the file index."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSyntaxResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) searchFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.svc.View().SetSearchText(req.GetString("query", ""))
	if err := s.svc.Search().Run(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.svc.DisplayFiles(lists.SortSpec{}))
}

func (s *Server) listLists(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names := s.svc.Lists().Names()
	if len(names) == 0 {
		return mcp.NewToolResultText("no lists"), nil
	}
	return mcp.NewToolResultText(strings.Join(names, "\n")), nil
}

func (s *Server) readList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	l, ok := s.svc.Lists().Get(name)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", name)), nil
	}
	l.Items = lists.SortForDisplay(l.Items, lists.DefaultSort, true)
	return jsonResult(l)
}

func (s *Server) addToList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := req.RequireString("list")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fullPath, err := req.RequireString("full_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	file, ok := s.svc.Files().Get(fullPath)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not in current results: %s", fullPath)), nil
	}
	res, err := s.svc.AddFileToList(ctx, list, file)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !res.Added {
		return mcp.NewToolResultText(fmt.Sprintf("already in %s: %s", list, file.FileName)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("added to %s: %s", list, file.FileName)), nil
}

func (s *Server) pinItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := req.RequireString("list")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fileName, err := req.RequireString("file_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pinned := req.GetBool("pinned", true)

	var ok bool
	if pinned {
		ok = s.svc.Lists().PinItem(list, fileName)
	} else {
		ok = s.svc.Lists().UnpinItem(list, fileName)
	}
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s in %s", fileName, list)), nil
	}
	if pinned {
		return mcp.NewToolResultText(fmt.Sprintf("pinned: %s", fileName)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("unpinned: %s", fileName)), nil
}

func (s *Server) getHighlights(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if book := req.GetString("book", ""); book != "" {
		s.svc.View().SelectBook(book)
	}
	return jsonResult(s.svc.Highlights())
}

func (s *Server) getQuerySyntax(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(QuerySyntax), nil
}

func (s *Server) readSyntaxResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      syntaxURI,
			MIMEType: "text/markdown",
			Text:     QuerySyntax,
		},
	}, nil
}
