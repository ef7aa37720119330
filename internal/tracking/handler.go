package tracking

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
)

// 1x1 transparent GIF
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x2c,
	0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02,
	0x02, 0x44, 0x01, 0x00, 0x3b,
}

// Unsubscriber resolves an unsubscribe token to a contact and opts them out.
type Unsubscriber interface {
	Unsubscribe(ctx context.Context, token string) error
}

// Handler serves the public tracking and unsubscribe endpoints. Recording
// failures are logged, never surfaced: the pixel and the redirect must work
// even for unknown or malformed send IDs.
type Handler struct {
	svc *Service
	// fallbackURL is where a click with a missing or unusable url parameter
	// lands.
	fallbackURL string
	unsub       Unsubscriber
}

// NewHandler creates the tracking handler.
func NewHandler(svc *Service, unsub Unsubscriber, fallbackURL string) *Handler {
	if fallbackURL == "" {
		fallbackURL = "https://fluentive.com"
	}
	return &Handler{svc: svc, unsub: unsub, fallbackURL: fallbackURL}
}

// Routes mounts the public endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/track/open/{sendID}", h.HandleOpen)
	r.Get("/track/click/{sendID}", h.HandleClick)
	r.Get("/unsubscribe/{token}", h.HandleUnsubscribe)
	return r
}

func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	sendID := chi.URLParam(r, "sendID")
	if err := h.svc.Open(r.Context(), sendID); err != nil {
		log.Printf("[Tracking] open %s from %s: %v", sendID, realIP(r), err)
	}
	h.servePixel(w)
}

func (h *Handler) HandleClick(w http.ResponseWriter, r *http.Request) {
	sendID := chi.URLParam(r, "sendID")
	if err := h.svc.Click(r.Context(), sendID); err != nil {
		log.Printf("[Tracking] click %s from %s: %v", sendID, realIP(r), err)
	}
	http.Redirect(w, r, h.clickTarget(r), http.StatusFound)
}

// clickTarget extracts the destination from the url query parameter. Only
// absolute http(s) URLs pass; anything else goes to the fallback.
func (h *Handler) clickTarget(r *http.Request) string {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		return h.fallbackURL
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return h.fallbackURL
	}
	return raw
}

func (h *Handler) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if err := h.unsub.Unsubscribe(r.Context(), token); err != nil {
		// An unknown token still gets the confirmation page. Repeated or
		// stale unsubscribe links must never show an error.
		log.Printf("[Tracking] unsubscribe token from %s: %v", realIP(r), err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(`<!DOCTYPE html><html><body style="font-family:Arial,sans-serif;text-align:center;padding:50px;">
		<h1>You have been unsubscribed</h1>
		<p>You will no longer receive emails from us.</p>
	</body></html>`))
}

func (h *Handler) servePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Write(pixelGIF)
}

func realIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
