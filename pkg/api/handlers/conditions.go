package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/daserver/pkg/alarms"
	"github.com/marmos91/daserver/pkg/lifecycle"
)

// ConditionHandler serves the area tree, sources and conditions.
type ConditionHandler struct {
	core  *lifecycle.ServerCore
	actor ActorFunc
}

func NewConditionHandler(core *lifecycle.ServerCore, actor ActorFunc) *ConditionHandler {
	if actor == nil {
		actor = func(r *http.Request) string { return r.RemoteAddr }
	}
	return &ConditionHandler{core: core, actor: actor}
}

// AreaResponse is an area with its name path from the root.
type AreaResponse struct {
	alarms.Area
	Path []string `json:"path"`
}

// AckRequest is the body of POST /api/v1/conditions/{id}/ack.
type AckRequest struct {
	SubCondition alarms.SubConditionID `json:"sub_condition"`
	Comment      string                `json:"comment,omitempty"`
}

// Areas handles GET /api/v1/areas.
func (h *ConditionHandler) Areas(w http.ResponseWriter, r *http.Request) {
	model := h.core.Model()
	areas := model.Areas()
	out := make([]AreaResponse, 0, len(areas))
	for _, a := range areas {
		path, err := model.AreaPath(a.ID)
		if err != nil {
			WriteError(w, err)
			return
		}
		out = append(out, AreaResponse{Area: a, Path: path})
	}
	WriteJSONOK(w, out)
}

// Children handles GET /api/v1/areas/{id}/children.
func (h *ConditionHandler) Children(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	children, err := h.core.Model().ChildAreas(alarms.AreaID(id))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSONOK(w, children)
}

// Sources handles GET /api/v1/areas/{id}/sources.
func (h *ConditionHandler) Sources(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	sources, err := h.core.Model().SourcesInArea(alarms.AreaID(id))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSONOK(w, sources)
}

// List handles GET /api/v1/conditions with optional area, source and
// active filters.
func (h *ConditionHandler) List(w http.ResponseWriter, r *http.Request) {
	model := h.core.Model()
	q := r.URL.Query()

	var (
		states []alarms.ConditionState
		err    error
	)
	switch {
	case q.Get("area") != "":
		id, ok := parseID(q.Get("area"))
		if !ok {
			BadRequest(w, "invalid area id")
			return
		}
		states, err = model.ConditionsInArea(alarms.AreaID(id))
	case q.Get("source") != "":
		id, ok := parseID(q.Get("source"))
		if !ok {
			BadRequest(w, "invalid source id")
			return
		}
		states, err = model.ConditionsForSource(alarms.SourceID(id))
	default:
		states = model.Conditions()
	}
	if err != nil {
		WriteError(w, err)
		return
	}

	if raw := q.Get("active"); raw != "" {
		active, perr := strconv.ParseBool(raw)
		if perr != nil {
			BadRequest(w, "active must be true or false")
			return
		}
		filtered := states[:0]
		for _, s := range states {
			if s.Active == active {
				filtered = append(filtered, s)
			}
		}
		states = filtered
	}
	WriteJSONOK(w, states)
}

// Get handles GET /api/v1/conditions/{id}.
func (h *ConditionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	state, err := h.core.Model().Condition(alarms.ConditionID(id))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSONOK(w, state)
}

// Acknowledge handles POST /api/v1/conditions/{id}/ack. The acknowledgment
// is validated and logged; it does not change the condition state.
func (h *ConditionHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	var req AckRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			BadRequest(w, "invalid request body: "+err.Error())
			return
		}
	}
	if err := h.core.Acknowledge(r.Context(), alarms.ConditionID(id), req.SubCondition, h.actor(r)); err != nil {
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func urlID(w http.ResponseWriter, r *http.Request, name string) (uint32, bool) {
	id, ok := parseID(chi.URLParam(r, name))
	if !ok {
		BadRequest(w, "invalid "+name)
	}
	return id, ok
}
