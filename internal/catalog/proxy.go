package catalog

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/osd-exam/backend-registration/internal/common"
)

// Handler exposes the read-only catalog surface to browsers: the generic
// whitelisted query proxy plus convenience endpoints for the two tables the
// form always needs.
type Handler struct {
	Client *Client
	Loader *Loader
	Logger zerolog.Logger
}

type queryRequest struct {
	Table   string       `json:"table"`
	Options QueryOptions `json:"options"`
}

// Query handles POST /api/catalog/query. The request names a table and
// PostgREST-style options; only whitelisted tables are reachable.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if req.Table == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "table name is required", nil)
		return
	}
	rows, err := h.Client.Query(r.Context(), req.Table, req.Options)
	if err != nil {
		h.writeError(w, req.Table, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rows)
}

// Sessions handles GET /api/sessions.
func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.Loader.Load(r.Context())
	if err != nil {
		h.writeError(w, TableSessions, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": snapshot.Sessions})
}

// Products handles GET /api/products.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.Loader.Load(r.Context())
	if err != nil {
		h.writeError(w, TableProducts, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": snapshot.Products})
}

func (h *Handler) writeError(w http.ResponseWriter, table string, err error) {
	if errors.Is(err, ErrTableNotAllowed) {
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "access to table '"+table+"' is not allowed", nil)
		return
	}
	var qerr *QueryError
	if errors.As(err, &qerr) {
		h.Logger.Error().Err(err).Str("table", table).Msg("catalog query failed")
		common.JSONError(w, http.StatusBadGateway, "CATALOG_QUERY_FAILED", "failed to fetch data from "+table, nil)
		return
	}
	h.Logger.Error().Err(err).Str("table", table).Msg("catalog request failed")
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
