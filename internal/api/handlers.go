package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fluentive/campaigns/internal/dispatch"
	"github.com/fluentive/campaigns/internal/service/campaign"
	"github.com/fluentive/campaigns/internal/service/contact"
	"github.com/fluentive/campaigns/internal/service/suppression"
)

// Handlers carries the service dependencies for all admin endpoints.
type Handlers struct {
	deps Deps
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// serviceError maps known sentinel errors to HTTP statuses.
func serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, campaign.ErrNotFound),
		errors.Is(err, contact.ErrNotFound),
		errors.Is(err, suppression.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, campaign.ErrInvalidTransition),
		errors.Is(err, campaign.ErrNotSendable),
		errors.Is(err, campaign.ErrNotEditable),
		errors.Is(err, dispatch.ErrNotSendable):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, contact.ErrInvalidEmail),
		errors.Is(err, dispatch.ErrEmptyContent):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}
