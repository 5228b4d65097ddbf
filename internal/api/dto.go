package api

import (
	"github.com/starford/sowilo/internal/inventoryservice"
	"github.com/starford/sowilo/internal/models"
)

// RefreshRequest is the body of POST /refresh and POST /accounts/refresh.
type RefreshRequest struct {
	Force bool `json:"force" example:"true"`
}

// SourceRequest sets a source URL; an empty URL clears the source.
type SourceRequest struct {
	URL string `json:"url" example:"https://docs.google.com/spreadsheets/d/e/XYZ/pubhtml"`
}

// IntervalRequest sets the automatic refresh interval; 0 disables it.
type IntervalRequest struct {
	Seconds *int `json:"seconds" example:"300" validate:"required"`
}

// DisplayNameRequest renames a sheet for display.
type DisplayNameRequest struct {
	Name string `json:"name" example:"Movies"`
}

// OrderRequest sets the display order of sheets.
type OrderRequest struct {
	Sheets []string `json:"sheets" validate:"required"`
}

// SheetView is a sheet summary (aliased from the domain layer).
type SheetView = inventoryservice.SheetView

// InventoryResponse is the body of GET /inventory.
type InventoryResponse struct {
	Sheets []SheetView             `json:"sheets" validate:"required"`
	Totals inventoryservice.Totals `json:"totals" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Query   string                          `json:"query" example:"report q3"`
	Results []inventoryservice.SearchResult `json:"results" validate:"required"`
	Total   int                             `json:"total" example:"2"`
}

// ChangesResponse wraps the change feed.
type ChangesResponse struct {
	Changes []models.ChangeEvent `json:"changes" validate:"required"`
}

// AccountsResponse wraps the account sheets.
type AccountsResponse struct {
	Sheets []models.SheetSnapshot `json:"sheets" validate:"required"`
}

// IntervalResponse reports the active interval.
type IntervalResponse struct {
	Seconds int `json:"seconds" example:"300"`
}
