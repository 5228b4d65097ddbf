package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/sowilo/internal/inventoryservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events behind the same auth.
func NewRouter(svc *inventoryservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Inventory queries.
	r.Get("/inventory", h.Inventory)
	r.Get("/inventory/sheets/{name}", h.Sheet)
	r.Get("/search", h.Search)
	r.Get("/totals", h.Totals)
	r.Get("/status", h.Status)
	r.Get("/export.xlsx", h.Export)

	// Change feed.
	r.Get("/changes", h.Changes)
	r.Delete("/changes", h.ClearChanges)
	r.Delete("/changes/{id}", h.DismissChange)

	// Sources and refresh.
	r.Post("/refresh", h.Refresh)
	r.Put("/source", h.SetSource)
	r.Put("/refresh-interval", h.SetInterval)
	r.Get("/accounts", h.Accounts)
	r.Post("/accounts/refresh", h.RefreshAccounts)
	r.Put("/accounts/source", h.SetAccountSource)

	// Display preferences.
	r.Put("/sheets/order", h.ReorderSheets)
	r.Put("/sheets/{name}/display-name", h.RenameSheet)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
