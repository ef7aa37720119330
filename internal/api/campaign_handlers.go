package api

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fluentive/campaigns/internal/domain"
	"github.com/fluentive/campaigns/internal/service/campaign"
)

func (h *Handlers) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.deps.Campaigns.List(r.Context(), campaign.ListFilter{
		Status: q.Get("status"),
		Search: q.Get("search"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"campaigns": items,
		"total":     total,
	})
}

func (h *Handlers) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var input campaign.CreateInput
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	c, err := h.deps.Campaigns.Create(r.Context(), input)
	if err != nil {
		serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

func (h *Handlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.deps.Campaigns.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

type updateCampaignRequest struct {
	Name           *string              `json:"name"`
	AudienceType   *domain.AudienceType `json:"audience_type"`
	AudienceFilter *string              `json:"audience_filter"`
	Subject        *string              `json:"subject"`
	Preheader      *string              `json:"preheader"`
	BodyHTML       *string              `json:"body_html"`
	BodyText       *string              `json:"body_text"`
	CTAText        *string              `json:"cta_text"`
	CTALink        *string              `json:"cta_link"`
}

func (h *Handlers) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	var req updateCampaignRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id := chi.URLParam(r, "id")
	err := h.deps.Campaigns.Update(r.Context(), id, campaign.UpdateFields{
		Name:           req.Name,
		AudienceType:   req.AudienceType,
		AudienceFilter: req.AudienceFilter,
		Subject:        req.Subject,
		Preheader:      req.Preheader,
		BodyHTML:       req.BodyHTML,
		BodyText:       req.BodyText,
		CTAText:        req.CTAText,
		CTALink:        req.CTALink,
	})
	if err != nil {
		serviceError(w, err)
		return
	}
	c, err := h.deps.Campaigns.Get(r.Context(), id)
	if err != nil {
		serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handlers) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Campaigns.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// PreviewAudience returns the resolved audience counts without sending.
func (h *Handlers) PreviewAudience(w http.ResponseWriter, r *http.Request) {
	c, err := h.deps.Campaigns.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		serviceError(w, err)
		return
	}
	res, err := h.deps.Audience.Resolve(r.Context(), c.AudienceType, c.AudienceFilter)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"total_matched":         res.TotalMatched,
		"suppressed_count":      res.SuppressedCount,
		"eligible_count":        len(res.Eligible),
		"requires_confirmation": h.deps.Dispatcher.NeedsConfirmation(len(res.Eligible)),
	})
}

func (h *Handlers) ListCampaignSends(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.deps.Campaigns.Get(r.Context(), id); err != nil {
		serviceError(w, err)
		return
	}
	sends, err := h.deps.Ledger.ListByCampaign(r.Context(), id)
	if err != nil {
		serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"sends": sends,
		"total": len(sends),
	})
}

func (h *Handlers) ScheduleCampaign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScheduledAt time.Time `json:"scheduled_at"`
	}
	if err := decodeJSON(r, &req); err != nil || req.ScheduledAt.IsZero() {
		respondError(w, http.StatusBadRequest, "scheduled_at is required (RFC 3339)")
		return
	}
	if err := h.deps.Campaigns.Schedule(r.Context(), chi.URLParam(r, "id"), req.ScheduledAt); err != nil {
		serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handlers) UnscheduleCampaign(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Campaigns.Unschedule(r.Context(), chi.URLParam(r, "id")); err != nil {
		serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handlers) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Campaigns.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// SendCampaign starts a campaign send. The confirmation gate runs
// synchronously; the send itself runs in the background so the HTTP request
// is not held open for the duration of a large campaign.
func (h *Handlers) SendCampaign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfirmLargeSend bool `json:"confirm_large_send"`
	}
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	id := chi.URLParam(r, "id")
	c, err := h.deps.Campaigns.Get(r.Context(), id)
	if err != nil {
		serviceError(w, err)
		return
	}
	if !c.Sendable() {
		serviceError(w, campaign.ErrNotSendable)
		return
	}

	res, err := h.deps.Dispatcher.Preflight(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	recipients := len(res.Eligible)

	if h.deps.Dispatcher.NeedsConfirmation(recipients) && !req.ConfirmLargeSend {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"requires_confirmation": true,
			"recipient_count":       recipients,
		})
		return
	}

	go func() {
		if _, err := h.deps.Dispatcher.Send(context.Background(), id, true); err != nil {
			log.Printf("[API] Background send of campaign %s failed: %v", id, err)
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":          "sending",
		"recipient_count": recipients,
	})
}

func (h *Handlers) SendTestEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Email == "" {
		respondError(w, http.StatusBadRequest, "email is required")
		return
	}
	if err := h.deps.Dispatcher.SendTest(r.Context(), chi.URLParam(r, "id"), req.Email); err != nil {
		serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
