package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/daserver/internal/logger"
	"github.com/marmos91/daserver/pkg/items"
	"github.com/marmos91/daserver/pkg/lifecycle"
	"github.com/marmos91/daserver/pkg/variant"
)

// ActorFunc names the caller of a request for audit logs.
type ActorFunc func(r *http.Request) string

// ItemHandler serves the address space.
type ItemHandler struct {
	core  *lifecycle.ServerCore
	actor ActorFunc
}

func NewItemHandler(core *lifecycle.ServerCore, actor ActorFunc) *ItemHandler {
	if actor == nil {
		actor = func(r *http.Request) string { return r.RemoteAddr }
	}
	return &ItemHandler{core: core, actor: actor}
}

// ItemResponse is an item description with its current sample. Sample is
// omitted for write-only items.
type ItemResponse struct {
	items.Info
	Value     *variant.Value `json:"value,omitempty"`
	Quality   *items.Quality `json:"quality,omitempty"`
	Timestamp *time.Time     `json:"timestamp,omitempty"`
}

// WriteRequest is the body of PUT /api/v1/items/*.
type WriteRequest struct {
	// Value is a bare JSON payload parsed against the item's data type.
	Value json.RawMessage `json:"value"`
}

// List handles GET /api/v1/items?prefix=&limit=.
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", 0)
	if !ok {
		BadRequest(w, "limit must be a non-negative integer")
		return
	}
	infos := h.core.Items().List(r.URL.Query().Get("prefix"))
	if limit > 0 && len(infos) > limit {
		infos = infos[:limit]
	}
	WriteJSONOK(w, infos)
}

// Get handles GET /api/v1/items/{path}.
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	path, ok := itemPath(w, r)
	if !ok {
		return
	}
	info, sample, err := h.core.ReadItemByPath(r.Context(), path)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSONOK(w, ItemResponse{
		Info:      info,
		Value:     &sample.Value,
		Quality:   &sample.Quality,
		Timestamp: &sample.Timestamp,
	})
}

// Put handles PUT /api/v1/items/{path}. Writing the shutdown control item
// raises a shutdown request.
func (h *ItemHandler) Put(w http.ResponseWriter, r *http.Request) {
	path, ok := itemPath(w, r)
	if !ok {
		return
	}
	var req WriteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if len(req.Value) == 0 {
		BadRequest(w, "value is required")
		return
	}

	handle, err := h.core.Items().Lookup(path)
	if err != nil {
		WriteError(w, err)
		return
	}
	info, err := h.core.Items().Info(handle)
	if err != nil {
		WriteError(w, err)
		return
	}
	value, err := variant.Parse(info.Type, req.Value)
	if err != nil {
		WriteError(w, err)
		return
	}
	if err := h.core.WriteItem(r.Context(), handle, value); err != nil {
		WriteError(w, err)
		return
	}

	logger.InfoCtx(r.Context(), "Item written via API", logger.Item(path), "actor", h.actor(r))
	resp := ItemResponse{Info: info}
	if info.Access.Readable() {
		if sample, err := h.core.Items().GetValue(handle); err == nil {
			resp.Value, resp.Quality, resp.Timestamp = &sample.Value, &sample.Quality, &sample.Timestamp
		}
	}
	WriteJSONOK(w, resp)
}

// itemPath extracts the wildcard item path. Clients percent-encode the
// brackets of array items.
func itemPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "*")
	path, err := url.PathUnescape(raw)
	if err != nil || path == "" {
		BadRequest(w, "invalid item path")
		return "", false
	}
	return path, true
}
