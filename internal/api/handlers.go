package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/sowilo/internal/inventoryservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *inventoryservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *inventoryservice.Service) *Handler {
	return &Handler{svc: svc}
}

// sheetName extracts the {name} URL parameter. Sheet names may contain
// spaces and slashes, so clients send them escaped.
func sheetName(r *http.Request) string {
	raw := chi.URLParam(r, "name")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// Inventory handles GET /api/inventory.
//
//	@Summary		List sheets in display order with totals
//	@Tags			inventory
//	@Produce		json
//	@Success		200	{object}	InventoryResponse
//	@Security		BearerAuth
//	@Router			/inventory [get]
func (h *Handler) Inventory(w http.ResponseWriter, r *http.Request) {
	sheets, err := h.svc.Sheets(r.Context())
	if err != nil {
		writeServiceError(w, "list sheets", err)
		return
	}
	writeJSON(w, http.StatusOK, InventoryResponse{Sheets: sheets, Totals: h.svc.Totals()})
}

// Sheet handles GET /api/inventory/sheets/{name}.
//
//	@Summary		Get one sheet with its records
//	@Tags			inventory
//	@Produce		json
//	@Param			name	path		string	true	"Sheet name"
//	@Success		200		{object}	inventoryservice.SheetDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/inventory/sheets/{name} [get]
func (h *Handler) Sheet(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.Sheet(r.Context(), sheetName(r))
	if err != nil {
		writeServiceError(w, "get sheet", err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// Search handles GET /api/search.
//
//	@Summary		Search records by name and location
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Whitespace-separated terms, all must match"
//	@Param			sort	query		string	false	"Sort field"	Enums(name, location, created, size, description)
//	@Param			order	query		string	false	"Sort order"	Enums(asc, desc)
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	results, err := h.svc.Filter(r.Context(), query, q.Get("sort"), q.Get("order"))
	if err != nil {
		writeServiceError(w, "search", err)
		return
	}
	total := 0
	for _, res := range results {
		total += len(res.Records)
	}
	writeJSON(w, http.StatusOK, SearchResponse{Query: query, Results: results, Total: total})
}

// Totals handles GET /api/totals.
func (h *Handler) Totals(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Totals())
}

// Changes handles GET /api/changes.
func (h *Handler) Changes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ChangesResponse{Changes: h.svc.Changes()})
}

// ClearChanges handles DELETE /api/changes.
func (h *Handler) ClearChanges(w http.ResponseWriter, _ *http.Request) {
	h.svc.ClearChanges()
	w.WriteHeader(http.StatusNoContent)
}

// DismissChange handles DELETE /api/changes/{id}.
//
//	@Summary		Dismiss one change event
//	@Tags			changes
//	@Param			id	path	string	true	"Change id"
//	@Success		204	"Dismissed"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/changes/{id} [delete]
func (h *Handler) DismissChange(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DismissChange(chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, "dismiss change", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// readRefresh decodes an optional RefreshRequest; an empty body means
// an unforced refresh.
func readRefresh(w http.ResponseWriter, r *http.Request) (RefreshRequest, bool) {
	var req RefreshRequest
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return req, false
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return req, true
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return req, false
	}
	return req, true
}

// Refresh handles POST /api/refresh.
//
//	@Summary		Fetch the inventory source now
//	@Tags			refresh
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RefreshRequest	false	"Refresh options"
//	@Success		200		{object}	refresh.Status
//	@Failure		409		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/refresh [post]
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	req, ok := readRefresh(w, r)
	if !ok {
		return
	}
	if err := h.svc.Refresh(r.Context(), req.Force); err != nil {
		writeServiceError(w, "refresh", err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Inventory().Status())
}

// RefreshAccounts handles POST /api/accounts/refresh.
func (h *Handler) RefreshAccounts(w http.ResponseWriter, r *http.Request) {
	req, ok := readRefresh(w, r)
	if !ok {
		return
	}
	if err := h.svc.RefreshAccounts(r.Context(), req.Force); err != nil {
		writeServiceError(w, "refresh accounts", err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// SetSource handles PUT /api/source.
//
//	@Summary		Change the inventory source URL
//	@Description	An empty URL clears the inventory. A new URL is fetched immediately.
//	@Tags			refresh
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SourceRequest	true	"Source"
//	@Success		200		{object}	refresh.Status
//	@Failure		400		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/source [put]
func (h *Handler) SetSource(w http.ResponseWriter, r *http.Request) {
	var req SourceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.SetSourceURL(r.Context(), req.URL); err != nil {
		writeServiceError(w, "set source", err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Inventory().Status())
}

// SetAccountSource handles PUT /api/accounts/source.
func (h *Handler) SetAccountSource(w http.ResponseWriter, r *http.Request) {
	var req SourceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.SetAccountSourceURL(r.Context(), req.URL); err != nil {
		writeServiceError(w, "set account source", err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// Accounts handles GET /api/accounts.
func (h *Handler) Accounts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, AccountsResponse{Sheets: h.svc.Accounts()})
}

// SetInterval handles PUT /api/refresh-interval.
func (h *Handler) SetInterval(w http.ResponseWriter, r *http.Request) {
	var req IntervalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Seconds == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("seconds is required"))
		return
	}
	if err := h.svc.SetAutoRefreshInterval(r.Context(), *req.Seconds); err != nil {
		writeServiceError(w, "set interval", err)
		return
	}
	slog.Info("api: refresh interval changed", slog.Int("seconds", *req.Seconds))
	writeJSON(w, http.StatusOK, IntervalResponse{Seconds: h.svc.RefreshInterval()})
}

// RenameSheet handles PUT /api/sheets/{name}/display-name.
func (h *Handler) RenameSheet(w http.ResponseWriter, r *http.Request) {
	var req DisplayNameRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.RenameSheet(r.Context(), sheetName(r), req.Name); err != nil {
		writeServiceError(w, "rename sheet", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReorderSheets handles PUT /api/sheets/order.
func (h *Handler) ReorderSheets(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.ReorderSheets(r.Context(), req.Sheets); err != nil {
		writeServiceError(w, "reorder sheets", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Status handles GET /api/status.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// Export handles GET /api/export.xlsx.
//
//	@Summary		Download the inventory as an XLSX workbook
//	@Tags			inventory
//	@Produce		application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
//	@Success		200
//	@Security		BearerAuth
//	@Router			/export.xlsx [get]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.svc.ExportXLSX(r.Context(), &buf); err != nil {
		writeServiceError(w, "export", err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="inventory.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
