package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/okian/moodscale/internal/domain/types"
)

// InstrumentDependencies exposes the instrument catalog and band lookup.
type InstrumentDependencies interface {
	Instruments() []types.InstrumentSummary
	Instrument(code string) (types.InstrumentDetail, error)
	Interpret(ctx context.Context, code string, score int, locale string) (types.Interpretation, error)
}

// InstrumentHandler serves the catalog routes.
type InstrumentHandler struct {
	deps InstrumentDependencies
}

// NewInstrumentHandler creates a new instrument handler.
func NewInstrumentHandler(deps InstrumentDependencies) *InstrumentHandler {
	return &InstrumentHandler{deps: deps}
}

// HandleList handles GET /instruments.
func (h *InstrumentHandler) HandleList(w http.ResponseWriter, _ *http.Request) {
	items := h.deps.Instruments()
	writeJSON(w, http.StatusOK, listResponse[types.InstrumentSummary]{Count: len(items), Items: items})
}

// HandleGet handles GET /instruments/{code}.
func (h *InstrumentHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.instrument"

	detail, err := h.deps.Instrument(chi.URLParam(r, "code"))
	if err != nil {
		respondError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// HandleInterpret handles GET /instruments/{code}/interpretation?score=N&locale=L.
func (h *InstrumentHandler) HandleInterpret(w http.ResponseWriter, r *http.Request) {
	const op = "api.interpretation"

	raw := r.URL.Query().Get("score")
	if raw == "" {
		respondError(w, r, NewKind(op, ErrBadRequest))
		return
	}
	score, err := strconv.Atoi(raw)
	if err != nil {
		respondError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}

	it, err := h.deps.Interpret(r.Context(), chi.URLParam(r, "code"), score, r.URL.Query().Get("locale"))
	if err != nil {
		respondError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, it)
}
