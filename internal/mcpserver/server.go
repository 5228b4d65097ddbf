// Package mcpserver exposes the inventory to LLM clients over the Model
// Context Protocol.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/sowilo/internal/inventoryservice"
)

// Server wraps an MCP server bound to an inventory service.
type Server struct {
	svc *inventoryservice.Service
	mcp *server.MCPServer
}

// New creates a configured MCP server with all inventory tools registered.
func New(svc *inventoryservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Sowilo",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying MCPServer for custom transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("search_inventory",
		mcp.WithDescription("Find records whose name or folder contains every whitespace-separated term. Matching is case-insensitive."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search terms")),
		mcp.WithString("sort", mcp.Description("Sort field: name, location, created, size or description")),
		mcp.WithString("order", mcp.Description("asc (default) or desc")),
	), s.searchInventory)

	s.mcp.AddTool(mcp.NewTool("list_sheets",
		mcp.WithDescription("List inventory sheets in display order with record counts and sizes."),
	), s.listSheets)

	s.mcp.AddTool(mcp.NewTool("get_sheet",
		mcp.WithDescription("Return every record of one sheet."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Source sheet name as returned by list_sheets")),
	), s.getSheet)

	s.mcp.AddTool(mcp.NewTool("get_totals",
		mcp.WithDescription("Return record counts and the total size across all sheets."),
	), s.getTotals)

	s.mcp.AddTool(mcp.NewTool("list_changes",
		mcp.WithDescription("List changes detected by the most recent refresh."),
	), s.listChanges)

	s.mcp.AddTool(mcp.NewTool("refresh",
		mcp.WithDescription("Fetch the inventory source now and report the outcome."),
		mcp.WithBoolean("force", mcp.Description("Bypass intermediate caches")),
	), s.refresh)

	s.mcp.AddTool(mcp.NewTool("set_source_url",
		mcp.WithDescription("Point the inventory at a published spreadsheet URL and fetch it. An empty URL clears the inventory."),
		mcp.WithString("url", mcp.Required(), mcp.Description("Published spreadsheet URL (http or https)")),
	), s.setSourceURL)

	s.mcp.AddTool(mcp.NewTool("get_layout_contract",
		mcp.WithDescription("Return the spreadsheet layout Sowilo expects from a source."),
	), s.getLayoutContract)
}

func (s *Server) registerResources() {
	s.mcp.AddResource(mcp.NewResource(
		"sowilo://layout",
		"Source Layout Contract",
		mcp.WithResourceDescription("Columns and markup expected from a published inventory spreadsheet"),
		mcp.WithMIMEType("text/markdown"),
	), s.readLayoutResource)
}

// --- Tool handlers ---

func (s *Server) searchInventory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return mcp.NewToolResultError("query must not be empty"), nil
	}

	results, err := s.svc.Filter(ctx, query, req.GetString("sort", ""), req.GetString("order", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("No records found."), nil
	}
	return jsonResult(results)
}

func (s *Server) listSheets(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	views, err := s.svc.Sheets(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(views) == 0 {
		return mcp.NewToolResultText("No inventory loaded."), nil
	}
	return jsonResult(views)
}

func (s *Server) getSheet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	detail, err := s.svc.Sheet(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(detail)
}

func (s *Server) getTotals(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.Totals())
}

func (s *Server) listChanges(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	changes := s.svc.Changes()
	if len(changes) == 0 {
		return mcp.NewToolResultText("No changes detected."), nil
	}
	return jsonResult(changes)
}

func (s *Server) refresh(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.svc.Refresh(ctx, req.GetBool("force", false)); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("refresh failed: %v", err)), nil
	}
	st := s.svc.Inventory().Status()
	return mcp.NewToolResultText(fmt.Sprintf("Refreshed: %d sheets, %d records", st.Sheets, st.Records)), nil
}

func (s *Server) setSourceURL(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.SetSourceURL(ctx, raw); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(raw) == "" {
		return mcp.NewToolResultText("Source cleared."), nil
	}
	return jsonResult(s.svc.Inventory().Status())
}

func (s *Server) getLayoutContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(LayoutContract), nil
}

// --- Resource handlers ---

func (s *Server) readLayoutResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "sowilo://layout",
			MIMEType: "text/markdown",
			Text:     LayoutContract,
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
