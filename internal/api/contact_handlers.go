package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fluentive/campaigns/internal/service/contact"
)

func (h *Handlers) ListContacts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.deps.Contacts.List(r.Context(), contact.ListFilter{
		Search: q.Get("search"),
		Tag:    q.Get("tag"),
		Source: q.Get("source"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"contacts": items,
		"total":    total,
	})
}

func (h *Handlers) CreateContact(w http.ResponseWriter, r *http.Request) {
	var input contact.CreateInput
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	c, err := h.deps.Contacts.Create(r.Context(), input)
	if err != nil {
		serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

// ImportContacts bulk-creates contacts. Rows with invalid emails are skipped
// and counted rather than failing the whole import.
func (h *Handlers) ImportContacts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Contacts []contact.CreateInput `json:"contacts"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	imported, skipped := 0, 0
	for _, input := range req.Contacts {
		if _, err := h.deps.Contacts.Create(r.Context(), input); err != nil {
			skipped++
			continue
		}
		imported++
	}
	respondJSON(w, http.StatusOK, map[string]int{
		"imported": imported,
		"skipped":  skipped,
		"total":    len(req.Contacts),
	})
}

func (h *Handlers) GetContact(w http.ResponseWriter, r *http.Request) {
	c, err := h.deps.Contacts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handlers) DeleteContact(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Contacts.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
