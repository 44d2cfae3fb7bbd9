package controller

import (
	"net/http"

	"payment-confirmation/internal/domain/action"
	domainErrors "payment-confirmation/internal/domain/errors"
	"payment-confirmation/internal/infrastructure/observability"
	"payment-confirmation/internal/reconciler"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ActionController handles the reconciliation admin surface: enqueuing
// pending actions and driving retries against the store.
type ActionController struct {
	store      action.Repository
	reconciler *reconciler.Reconciler
	metrics    *observability.Metrics
}

// NewActionController creates a new ActionController.
func NewActionController(store action.Repository, rec *reconciler.Reconciler, metrics *observability.Metrics) *ActionController {
	return &ActionController{store: store, reconciler: rec, metrics: metrics}
}

// Enqueue handles POST /pending-actions
func (h *ActionController) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req EnqueueActionRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	kind, err := action.ParseKind(req.Kind)
	if err != nil {
		writeError(w, err)
		return
	}

	a, err := action.New(kind, req.PaymentReference, req.Payload)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.store.Store(r.Context(), a); err != nil {
		writeError(w, err)
		return
	}

	h.metrics.ActionsEnqueued.WithLabelValues(string(kind)).Inc()
	writeJSON(w, http.StatusCreated, FromAction(a))
}

// List handles GET /pending-actions
func (h *ActionController) List(w http.ResponseWriter, r *http.Request) {
	filter := action.ListFilter{IncludeFailed: true}
	if k := r.URL.Query().Get("kind"); k != "" {
		kind, err := action.ParseKind(k)
		if err != nil {
			writeError(w, err)
			return
		}
		filter.Kind = &kind
	}

	actions, err := h.store.ListUnresolved(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*ActionResponse, 0, len(actions))
	for _, a := range actions {
		resp = append(resp, FromAction(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": resp})
}

// Get handles GET /pending-actions/{actionId}
func (h *ActionController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := actionIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	a, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromAction(a))
}

// Retry handles POST /pending-actions/{actionId}/retry
func (h *ActionController) Retry(w http.ResponseWriter, r *http.Request) {
	id, err := actionIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.reconciler.RetryOne(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RetryAll handles POST /pending-actions/retry-all
func (h *ActionController) RetryAll(w http.ResponseWriter, r *http.Request) {
	var kind *action.Kind
	if k := r.URL.Query().Get("kind"); k != "" {
		parsed, err := action.ParseKind(k)
		if err != nil {
			writeError(w, err)
			return
		}
		kind = &parsed
	}

	results, err := h.reconciler.RetryAll(r.Context(), kind)
	if err != nil {
		writeError(w, err)
		return
	}

	succeeded := 0
	for _, res := range results {
		if res.Success {
			succeeded++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"attempted": len(results),
		"succeeded": succeeded,
		"results":   results,
	})
}

// Stats handles GET /pending-actions/stats
func (h *ActionController) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.reconciler.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromCounts(counts))
}

func actionIDParam(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "actionId")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domainErrors.NewValidationError("actionId", "must be a valid UUID")
	}
	return id, nil
}
