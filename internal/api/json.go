package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/sowilo/internal/apperr"
)

const maxRequestBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("api: json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
	Kind  string `json:"kind,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

// writeServiceError maps the domain error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	var (
		ve *apperr.ValidationError
		ne *apperr.NetworkError
		pe *apperr.ParseError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody(ve.Error()))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrRefreshInProgress):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	case errors.As(err, &ne):
		writeJSON(w, http.StatusBadGateway, errResponse{Error: ne.Error(), Kind: "network"})
	case errors.As(err, &pe):
		writeJSON(w, http.StatusBadGateway, errResponse{Error: pe.Error(), Kind: string(pe.Kind)})
	default:
		slog.Error("api: "+op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
