package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fluentive/campaigns/internal/domain"
	"github.com/fluentive/campaigns/internal/service/suppression"
)

func (h *Handlers) ListSuppressions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.deps.Suppressions.List(r.Context(), suppression.ListFilter{
		Reason: q.Get("reason"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"suppressions": items,
		"total":        total,
	})
}

func (h *Handlers) AddSuppression(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email  string `json:"email"`
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Email == "" {
		respondError(w, http.StatusBadRequest, "email is required")
		return
	}
	reason := domain.SuppressionReason(req.Reason)
	if reason == "" {
		reason = domain.ReasonManual
	}
	if err := h.deps.Suppressions.Suppress(r.Context(), req.Email, reason, ""); err != nil {
		serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handlers) RemoveSuppression(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Suppressions.Remove(r.Context(), chi.URLParam(r, "email")); err != nil {
		serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handlers) SuppressionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.deps.Suppressions.GetStats(r.Context())
	if err != nil {
		serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
