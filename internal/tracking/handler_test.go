package tracking

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type memLedger struct {
	mu     sync.Mutex
	opens  map[string]int
	clicks map[string]int
	// every known send belongs to campaign "camp-1"
	known map[string]bool
}

func newMemLedger(sendIDs ...string) *memLedger {
	l := &memLedger{
		opens:  map[string]int{},
		clicks: map[string]int{},
		known:  map[string]bool{},
	}
	for _, id := range sendIDs {
		l.known[id] = true
	}
	return l
}

func (l *memLedger) RecordOpen(_ context.Context, sendID string, _ time.Time) (bool, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.known[sendID] {
		return false, "", fmt.Errorf("send record %s not found", sendID)
	}
	l.opens[sendID]++
	return l.opens[sendID] == 1, "camp-1", nil
}

func (l *memLedger) RecordClick(_ context.Context, sendID string, _ time.Time) (bool, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.known[sendID] {
		return false, "", fmt.Errorf("send record %s not found", sendID)
	}
	l.clicks[sendID]++
	return l.clicks[sendID] == 1, "camp-1", nil
}

type memCounters struct {
	mu      sync.Mutex
	opened  map[string]int
	clicked map[string]int
}

func newMemCounters() *memCounters {
	return &memCounters{opened: map[string]int{}, clicked: map[string]int{}}
}

func (c *memCounters) IncrementOpened(_ context.Context, campaignID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opened[campaignID]++
	return nil
}

func (c *memCounters) IncrementClicked(_ context.Context, campaignID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clicked[campaignID]++
	return nil
}

type memUnsub struct {
	mu     sync.Mutex
	tokens []string
}

func (u *memUnsub) Unsubscribe(_ context.Context, token string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.tokens = append(u.tokens, token)
	if token == "unknown" {
		return fmt.Errorf("contact not found")
	}
	return nil
}

func newTestHandler(ledger *memLedger, counters *memCounters, unsub *memUnsub) *Handler {
	return NewHandler(NewService(ledger, counters), unsub, "https://fluentive.com")
}

func TestOpenServesPixelAndCounts(t *testing.T) {
	ledger := newMemLedger("send-1")
	counters := newMemCounters()
	h := newTestHandler(ledger, counters, &memUnsub{})
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	for i := 0; i < 3; i++ {
		resp, err := http.Get(srv.URL + "/track/open/send-1")
		if err != nil {
			t.Fatalf("GET open: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("open status = %d, want 200", resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "image/gif" {
			t.Fatalf("content type = %q, want image/gif", ct)
		}
	}

	if ledger.opens["send-1"] != 3 {
		t.Errorf("open count = %d, want 3", ledger.opens["send-1"])
	}
	if counters.opened["camp-1"] != 1 {
		t.Errorf("unique opened = %d, want 1 (only first open counts)", counters.opened["camp-1"])
	}
}

func TestOpenUnknownSendStillServesPixel(t *testing.T) {
	h := newTestHandler(newMemLedger(), newMemCounters(), &memUnsub{})
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/track/open/nope")
	if err != nil {
		t.Fatalf("GET open: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unknown send open status = %d, want 200", resp.StatusCode)
	}
}

func TestClickRedirectsAndCounts(t *testing.T) {
	ledger := newMemLedger("send-1")
	counters := newMemCounters()
	h := newTestHandler(ledger, counters, &memUnsub{})
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	resp, err := client.Get(srv.URL + "/track/click/send-1?url=https%3A%2F%2Ffluentive.com%2Fcourses")
	if err != nil {
		t.Fatalf("GET click: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("click status = %d, want 302", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "https://fluentive.com/courses" {
		t.Fatalf("redirect location = %q", loc)
	}

	// Missing or junk url falls back rather than erroring.
	resp, err = client.Get(srv.URL + "/track/click/send-1?url=javascript%3Aalert(1)")
	if err != nil {
		t.Fatalf("GET click: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("bad-url click status = %d, want 302", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "https://fluentive.com" {
		t.Fatalf("bad-url redirect = %q, want fallback", loc)
	}

	if counters.clicked["camp-1"] != 1 {
		t.Errorf("unique clicked = %d, want 1", counters.clicked["camp-1"])
	}
	if ledger.clicks["send-1"] != 2 {
		t.Errorf("click count = %d, want 2", ledger.clicks["send-1"])
	}
}

func TestClickUnknownSendStillRedirectsToURL(t *testing.T) {
	counters := newMemCounters()
	h := newTestHandler(newMemLedger(), counters, &memUnsub{})
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	resp, err := client.Get(srv.URL + "/track/click/42?url=https%3A%2F%2Fexample.com%2Fx")
	if err != nil {
		t.Fatalf("GET click: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("unknown send click status = %d, want 302", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "https://example.com/x" {
		t.Fatalf("redirect location = %q, want https://example.com/x", loc)
	}
	if len(counters.clicked) != 0 {
		t.Errorf("campaign counters advanced for unknown send: %v", counters.clicked)
	}
}

func TestConcurrentOpensCountUniqueOnce(t *testing.T) {
	ledger := newMemLedger("send-1")
	counters := newMemCounters()
	svc := NewService(ledger, counters)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.Open(context.Background(), "send-1")
		}()
	}
	wg.Wait()

	if counters.opened["camp-1"] != 1 {
		t.Fatalf("unique opened = %d after concurrent opens, want 1", counters.opened["camp-1"])
	}
	if ledger.opens["send-1"] != 20 {
		t.Fatalf("open count = %d, want 20", ledger.opens["send-1"])
	}
}

func TestUnsubscribeAlwaysConfirms(t *testing.T) {
	unsub := &memUnsub{}
	h := newTestHandler(newMemLedger(), newMemCounters(), unsub)
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	for _, token := range []string{"tok-1", "tok-1", "unknown"} {
		resp, err := http.Get(srv.URL + "/unsubscribe/" + token)
		if err != nil {
			t.Fatalf("GET unsubscribe: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("unsubscribe %s status = %d, want 200", token, resp.StatusCode)
		}
	}
	if len(unsub.tokens) != 3 {
		t.Fatalf("unsubscribe calls = %d, want 3", len(unsub.tokens))
	}
}
