package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/sowilo/internal/inventoryservice"
	"github.com/starford/sowilo/internal/testutil/servicetest"
)

func testServer(t *testing.T) (*Server, *servicetest.Harness) {
	t.Helper()
	h := servicetest.New(t, nil)
	h.Inventory.Serve(servicetest.InventoryHTML("alien", "brazil"))
	if err := h.Service.Refresh(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	return New(h.Service), h
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
	case "search_inventory":
		result, err = srv.searchInventory(ctx, req)
	case "list_sheets":
		result, err = srv.listSheets(ctx, req)
	case "get_sheet":
		result, err = srv.getSheet(ctx, req)
	case "get_totals":
		result, err = srv.getTotals(ctx, req)
	case "list_changes":
		result, err = srv.listChanges(ctx, req)
	case "refresh":
		result, err = srv.refresh(ctx, req)
	case "set_source_url":
		result, err = srv.setSourceURL(ctx, req)
	case "get_layout_contract":
		result, err = srv.getLayoutContract(ctx, req)
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

func TestSearchInventory(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "search_inventory", map[string]interface{}{
		"query": "movies",
		"sort":  "name",
		"order": "desc",
	})
	if r.IsError {
		t.Fatalf("search error: %s", resultText(r))
	}
	var results []inventoryservice.SearchResult
	if err := json.Unmarshal([]byte(resultText(r)), &results); err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || len(results[0].Records) != 2 || results[0].Records[0].Name != "brazil" {
		t.Errorf("results = %+v", results)
	}

	r = callTool(t, srv, "search_inventory", map[string]interface{}{"query": "nothing-matches"})
	if resultText(r) != "No records found." {
		t.Errorf("empty result = %q", resultText(r))
	}
}

func TestSearchInventoryRejectsBadInput(t *testing.T) {
	srv, _ := testServer(t)

	if r := callTool(t, srv, "search_inventory", map[string]interface{}{}); !r.IsError {
		t.Error("missing query should fail")
	}
	if r := callTool(t, srv, "search_inventory", map[string]interface{}{"query": "  "}); !r.IsError {
		t.Error("blank query should fail")
	}
	r := callTool(t, srv, "search_inventory", map[string]interface{}{"query": "alien", "sort": "colour"})
	if !r.IsError {
		t.Error("unknown sort field should fail")
	}
}

func TestListSheetsAndGetSheet(t *testing.T) {
	srv, _ := testServer(t)

	var views []inventoryservice.SheetView
	if err := json.Unmarshal([]byte(resultText(callTool(t, srv, "list_sheets", nil))), &views); err != nil {
		t.Fatal(err)
	}
	if len(views) != 2 || views[0].SheetName != "Movies" || views[0].Records != 2 {
		t.Errorf("views = %+v", views)
	}

	r := callTool(t, srv, "get_sheet", map[string]interface{}{"name": "Music"})
	var detail inventoryservice.SheetDetail
	if err := json.Unmarshal([]byte(resultText(r)), &detail); err != nil {
		t.Fatal(err)
	}
	if len(detail.Items) != 1 || detail.Items[0].Description != "ambient" {
		t.Errorf("detail = %+v", detail)
	}

	if r := callTool(t, srv, "get_sheet", map[string]interface{}{"name": "Nope"}); !r.IsError {
		t.Error("expected error for missing sheet")
	}
}

func TestGetTotalsAndChanges(t *testing.T) {
	srv, _ := testServer(t)

	var tot inventoryservice.Totals
	if err := json.Unmarshal([]byte(resultText(callTool(t, srv, "get_totals", nil))), &tot); err != nil {
		t.Fatal(err)
	}
	if tot.Records != 3 || tot.SizeUnit != "TB" {
		t.Errorf("totals = %+v", tot)
	}

	text := resultText(callTool(t, srv, "list_changes", nil))
	if !strings.Contains(text, "/media/movies/alien") {
		t.Errorf("changes = %s", text)
	}
}

func TestRefreshReportsFailure(t *testing.T) {
	srv, h := testServer(t)

	r := callTool(t, srv, "refresh", map[string]interface{}{"force": true})
	if r.IsError || resultText(r) != "Refreshed: 2 sheets, 3 records" {
		t.Errorf("refresh = %q", resultText(r))
	}

	h.Inventory.Fail(http.StatusNotFound)
	r = callTool(t, srv, "refresh", nil)
	if !r.IsError || !strings.Contains(resultText(r), "refresh failed") {
		t.Errorf("failed refresh = %q", resultText(r))
	}
}

func TestSetSourceURL(t *testing.T) {
	srv, h := testServer(t)

	if r := callTool(t, srv, "set_source_url", map[string]interface{}{"url": "ftp://example.com"}); !r.IsError {
		t.Error("non-http url should fail")
	}

	r := callTool(t, srv, "set_source_url", map[string]interface{}{"url": ""})
	if resultText(r) != "Source cleared." {
		t.Errorf("clear = %q", resultText(r))
	}
	if h.Service.Totals().Records != 0 {
		t.Error("inventory not cleared")
	}

	r = callTool(t, srv, "set_source_url", map[string]interface{}{"url": h.Inventory.URL()})
	if r.IsError {
		t.Fatalf("set = %s", resultText(r))
	}
	if h.Service.Totals().Records != 3 {
		t.Errorf("records after set = %d", h.Service.Totals().Records)
	}
}

func TestLayoutContract(t *testing.T) {
	srv, _ := testServer(t)

	text := resultText(callTool(t, srv, "get_layout_contract", nil))
	if !strings.Contains(text, "| A      | Folder") {
		t.Errorf("contract missing column table")
	}

	contents, err := srv.readLayoutResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); !ok || tc.Text != LayoutContract {
		t.Error("resource text differs from contract")
	}
}
