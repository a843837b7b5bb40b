package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/okian/moodscale/internal/domain/model"
	"github.com/okian/moodscale/internal/domain/types"
)

// AssessmentDependencies scores, stores and reads assessments.
type AssessmentDependencies interface {
	Submit(ctx context.Context, sub model.Submission) (types.Receipt, error)
	Assessment(ctx context.Context, id string) (types.Assessment, error)
	History(ctx context.Context, subjectID, code string, limit int) ([]types.Assessment, error)
}

// AssessmentHandler serves submission and history routes.
type AssessmentHandler struct {
	deps AssessmentDependencies
}

// NewAssessmentHandler creates a new assessment handler.
func NewAssessmentHandler(deps AssessmentDependencies) *AssessmentHandler {
	return &AssessmentHandler{deps: deps}
}

// HandleSubmit handles POST /assessments. A new submission answers 202 with
// its scored receipt; a repeated submission id answers 200.
func (h *AssessmentHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit"

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req assessmentRequest
	if err := dec.Decode(&req); err != nil {
		respondError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	sub, err := req.submission()
	if err != nil {
		respondError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}

	receipt, err := h.deps.Submit(r.Context(), sub)
	if err != nil {
		respondError(w, r, Wrap(op, err))
		return
	}
	if receipt.Status == types.StatusDuplicate {
		writeJSON(w, http.StatusOK, receipt)
		return
	}
	writeJSON(w, http.StatusAccepted, receipt)
}

// HandleGet handles GET /assessments/{id}.
func (h *AssessmentHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.assessment"

	a, err := h.deps.Assessment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// HandleHistory handles GET /subjects/{subjectID}/assessments?instrument=&limit=.
func (h *AssessmentHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	const op = "api.history"

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, r, WrapKind(op, ErrBadRequest, err))
			return
		}
		limit = n
	}

	list, err := h.deps.History(r.Context(), chi.URLParam(r, "subjectID"), r.URL.Query().Get("instrument"), limit)
	if err != nil {
		respondError(w, r, Wrap(op, err))
		return
	}
	if list == nil {
		list = []types.Assessment{}
	}
	writeJSON(w, http.StatusOK, listResponse[types.Assessment]{Count: len(list), Items: list})
}
