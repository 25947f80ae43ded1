package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/elevenvotes/consensus/internal/adapters/repository"
	"github.com/elevenvotes/consensus/internal/domain/model"
	"github.com/elevenvotes/consensus/internal/domain/types"
)

// ViewDependencies is what the match routes need.
type ViewDependencies interface {
	View(ctx context.Context, matchID string) (types.MatchView, error)
}

// MatchesHandler serves match views.
type MatchesHandler struct {
	deps ViewDependencies
}

// NewMatchesHandler creates a matches handler.
func NewMatchesHandler(deps ViewDependencies) *MatchesHandler {
	return &MatchesHandler{deps: deps}
}

// sectionAliases maps the view's JSON field names to snapshot kinds.
var sectionAliases = map[string]model.Kind{
	"lineup":     model.KindLineupVotes,
	"motm":       model.KindMOTMVotes,
	"prediction": model.KindPredictionVotes,
	"momentum":   model.KindMomentum,
	"mood":       model.KindMood,
	"lineups":    model.KindSubstitutions,
}

// sectionKind resolves a path segment given either as a view field name or a kind.
func sectionKind(name string) (model.Kind, bool) {
	if k, ok := sectionAliases[name]; ok {
		return k, true
	}
	k := model.Kind(name)
	return k, k.Valid()
}

// HandleGetView handles GET /matches/{id}.
func (h *MatchesHandler) HandleGetView(w http.ResponseWriter, r *http.Request) {
	view, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleGetSection handles GET /matches/{id}/{section}.
func (h *MatchesHandler) HandleGetSection(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_section"
	kind, ok := sectionKind(r.PathValue("section"))
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", wrap(op, ErrUnknownView, nil))
		return
	}
	view, ok := h.load(w, r)
	if !ok {
		return
	}
	data, ok := view.Section(kind)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", wrap(op, repository.ErrNotFound, nil))
		return
	}
	writeJSON(w, http.StatusOK, types.SectionUpdate{
		MatchID:   view.MatchID,
		Kind:      kind,
		Data:      data,
		UpdatedAt: view.UpdatedAt,
	})
}

func (h *MatchesHandler) load(w http.ResponseWriter, r *http.Request) (types.MatchView, bool) {
	const op = "api.get_view"
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", wrap(op, ErrBadRequest, nil))
		return types.MatchView{}, false
	}
	view, err := h.deps.View(r.Context(), id)
	switch {
	case err == nil:
		return view, true
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
	return types.MatchView{}, false
}
