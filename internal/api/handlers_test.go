package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fluentive/campaigns/internal/dispatch"
	"github.com/fluentive/campaigns/internal/domain"
	"github.com/fluentive/campaigns/internal/mailer"
	"github.com/fluentive/campaigns/internal/service/audience"
	"github.com/fluentive/campaigns/internal/service/campaign"
	"github.com/fluentive/campaigns/internal/service/contact"
	"github.com/fluentive/campaigns/internal/service/suppression"
	"github.com/fluentive/campaigns/internal/tracking"
)

// ---- in-memory repositories ----

type memContacts struct {
	mu    sync.Mutex
	items map[string]domain.Contact
}

func newMemContacts() *memContacts {
	return &memContacts{items: map[string]domain.Contact{}}
}

func (m *memContacts) Get(_ context.Context, id string) (*domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok {
		return nil, contact.ErrNotFound
	}
	return &c, nil
}

func (m *memContacts) GetByEmail(_ context.Context, email string) (*domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.items {
		if c.Email == email {
			c := c
			return &c, nil
		}
	}
	return nil, contact.ErrNotFound
}

func (m *memContacts) GetByUnsubscribeToken(_ context.Context, token string) (*domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.items {
		if c.UnsubscribeToken == token {
			c := c
			return &c, nil
		}
	}
	return nil, contact.ErrNotFound
}

func (m *memContacts) Upsert(_ context.Context, c *domain.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, have := range m.items {
		if have.Email == c.Email {
			have.FirstName = c.FirstName
			have.LastName = c.LastName
			have.Tags = c.Tags
			have.Source = c.Source
			m.items[id] = have
			*c = have
			return nil
		}
	}
	c.CreatedAt = time.Now()
	m.items[c.ID] = *c
	return nil
}

func (m *memContacts) SetSubscribed(_ context.Context, id string, subscribed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok {
		return contact.ErrNotFound
	}
	c.Subscribed = subscribed
	m.items[id] = c
	return nil
}

func (m *memContacts) List(_ context.Context, f contact.ListFilter) ([]domain.Contact, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Contact
	for _, c := range m.items {
		if f.Tag != "" && !c.HasTag(f.Tag) {
			continue
		}
		if f.Source != "" && c.Source != f.Source {
			continue
		}
		if f.Search != "" && !strings.Contains(c.Email, f.Search) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, len(out), nil
}

func (m *memContacts) ListSubscribed(_ context.Context) ([]domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Contact
	for _, c := range m.items {
		if c.Subscribed {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *memContacts) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return contact.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

type memSuppressions struct {
	mu    sync.Mutex
	items map[string]domain.Suppression
}

func newMemSuppressions() *memSuppressions {
	return &memSuppressions{items: map[string]domain.Suppression{}}
}

func (m *memSuppressions) IsSuppressed(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[email]
	return ok, nil
}

func (m *memSuppressions) Suppress(_ context.Context, s *domain.Suppression) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[s.Email]; ok {
		return nil
	}
	s.CreatedAt = time.Now()
	m.items[s.Email] = *s
	return nil
}

func (m *memSuppressions) Remove(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[email]; !ok {
		return suppression.ErrNotFound
	}
	delete(m.items, email)
	return nil
}

func (m *memSuppressions) List(_ context.Context, f suppression.ListFilter) ([]domain.Suppression, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Suppression
	for _, s := range m.items {
		if f.Reason != "" && string(s.Reason) != f.Reason {
			continue
		}
		out = append(out, s)
	}
	return out, len(out), nil
}

func (m *memSuppressions) AllEmails(_ context.Context) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]struct{}, len(m.items))
	for email := range m.items {
		out[email] = struct{}{}
	}
	return out, nil
}

type memCampaigns struct {
	mu    sync.Mutex
	items map[string]domain.Campaign
}

func newMemCampaigns() *memCampaigns {
	return &memCampaigns{items: map[string]domain.Campaign{}}
}

func (m *memCampaigns) Get(_ context.Context, id string) (*domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok {
		return nil, campaign.ErrNotFound
	}
	return &c, nil
}

func (m *memCampaigns) List(_ context.Context, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Campaign
	for _, c := range m.items {
		if f.Status != "" && string(c.Status) != f.Status {
			continue
		}
		out = append(out, c)
	}
	return out, len(out), nil
}

func (m *memCampaigns) ListDue(_ context.Context, now time.Time) ([]domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Campaign
	for _, c := range m.items {
		if c.Status == domain.CampaignScheduled && c.ScheduledAt != nil && !c.ScheduledAt.After(now) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memCampaigns) Create(_ context.Context, c *domain.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.CreatedAt = time.Now()
	m.items[c.ID] = *c
	return nil
}

func (m *memCampaigns) Update(_ context.Context, id string, u campaign.UpdateFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok {
		return campaign.ErrNotFound
	}
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Subject != nil {
		c.Subject = *u.Subject
	}
	if u.BodyHTML != nil {
		c.BodyHTML = *u.BodyHTML
	}
	if u.BodyText != nil {
		c.BodyText = *u.BodyText
	}
	if u.AudienceType != nil {
		c.AudienceType = *u.AudienceType
	}
	if u.AudienceFilter != nil {
		c.AudienceFilter = *u.AudienceFilter
	}
	if u.CTALink != nil {
		c.CTALink = *u.CTALink
	}
	if u.ScheduledAt != nil {
		if u.ScheduledAt.IsZero() {
			c.ScheduledAt = nil
		} else {
			at := *u.ScheduledAt
			c.ScheduledAt = &at
		}
	}
	m.items[id] = c
	return nil
}

func (m *memCampaigns) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok {
		return campaign.ErrNotFound
	}
	if c.Status != domain.CampaignDraft && c.Status != domain.CampaignCancelled {
		return campaign.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memCampaigns) UpdateStatus(_ context.Context, id string, from []domain.CampaignStatus, to domain.CampaignStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok {
		return campaign.ErrNotFound
	}
	for _, s := range from {
		if c.Status == s {
			c.Status = to
			m.items[id] = c
			return nil
		}
	}
	return campaign.ErrInvalidTransition
}

func (m *memCampaigns) SetTargeted(_ context.Context, id string, targeted int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.items[id]
	c.TargetedCount = targeted
	m.items[id] = c
	return nil
}

func (m *memCampaigns) SetCompleted(_ context.Context, id string, sent, failed int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.items[id]
	if c.Status != domain.CampaignSending {
		return nil
	}
	now := time.Now()
	c.Status = domain.CampaignCompleted
	c.SentCount = sent
	c.FailedCount = failed
	c.SentAt = &now
	m.items[id] = c
	return nil
}

func (m *memCampaigns) IncrementOpened(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.items[id]
	c.OpenedCount++
	m.items[id] = c
	return nil
}

func (m *memCampaigns) IncrementClicked(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.items[id]
	c.ClickedCount++
	m.items[id] = c
	return nil
}

type memSendLedger struct {
	mu      sync.Mutex
	records map[string]domain.SendRecord
}

func newMemSendLedger() *memSendLedger {
	return &memSendLedger{records: map[string]domain.SendRecord{}}
}

func (m *memSendLedger) CreateBatch(_ context.Context, records []*domain.SendRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
next:
	for _, r := range records {
		for _, have := range m.records {
			if have.CampaignID == r.CampaignID && have.ContactID == r.ContactID {
				continue next
			}
		}
		r.CreatedAt = time.Now()
		m.records[r.ID] = *r
	}
	return nil
}

func (m *memSendLedger) ListByCampaign(_ context.Context, campaignID string) ([]domain.SendRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SendRecord
	for _, r := range m.records {
		if r.CampaignID == campaignID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memSendLedger) MarkSent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return fmt.Errorf("send record %s not found", id)
	}
	now := time.Now()
	r.Status = domain.SendSent
	r.SentAt = &now
	m.records[id] = r
	return nil
}

func (m *memSendLedger) MarkFailed(_ context.Context, id, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return fmt.Errorf("send record %s not found", id)
	}
	r.Status = domain.SendFailed
	r.ErrorMsg = errMsg
	m.records[id] = r
	return nil
}

func (m *memSendLedger) RecordOpen(_ context.Context, sendID string, at time.Time) (bool, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[sendID]
	if !ok {
		return false, "", fmt.Errorf("send record %s not found", sendID)
	}
	r.OpenCount++
	first := r.OpenedAt == nil
	if first {
		r.OpenedAt = &at
	}
	m.records[sendID] = r
	return first, r.CampaignID, nil
}

func (m *memSendLedger) RecordClick(_ context.Context, sendID string, at time.Time) (bool, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[sendID]
	if !ok {
		return false, "", fmt.Errorf("send record %s not found", sendID)
	}
	r.ClickCount++
	first := r.ClickedAt == nil
	if first {
		r.ClickedAt = &at
	}
	m.records[sendID] = r
	return first, r.CampaignID, nil
}

type recordingTransport struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (t *recordingTransport) Name() string { return "recording" }

func (t *recordingTransport) Send(_ context.Context, msg mailer.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, msg)
	return nil
}

// ---- fixture ----

type fixture struct {
	srv       *httptest.Server
	contacts  *memContacts
	campaigns *memCampaigns
	ledger    *memSendLedger
	transport *recordingTransport
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	contactRepo := newMemContacts()
	suppressionRepo := newMemSuppressions()
	campaignRepo := newMemCampaigns()
	ledger := newMemSendLedger()
	transport := &recordingTransport{}

	suppressionSvc := suppression.NewService(suppressionRepo)
	contactSvc := contact.NewService(contactRepo, suppressionSvc)
	campaignSvc := campaign.NewService(campaignRepo)
	resolver := audience.NewResolver(contactRepo, suppressionRepo)

	dispatcher := dispatch.NewDispatcher(dispatch.Config{
		BatchSize:        100,
		BatchPause:       time.Millisecond,
		ConfirmThreshold: 500,
		BaseURL:          "https://mail.fluentive.com",
		FromName:         "Fluentive",
		FromAddr:         "hello@fluentive.com",
	}, campaignRepo, ledger, resolver, transport)

	trackingSvc := tracking.NewService(ledger, campaignRepo)
	trackingHandler := tracking.NewHandler(trackingSvc, contactSvc, "https://fluentive.com")

	router := NewRouter(Deps{
		Campaigns:    campaignSvc,
		Contacts:     contactSvc,
		Suppressions: suppressionSvc,
		Audience:     resolver,
		Dispatcher:   dispatcher,
		Ledger:       ledger,
		Tracking:     trackingHandler,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &fixture{
		srv:       srv,
		contacts:  contactRepo,
		campaigns: campaignRepo,
		ledger:    ledger,
		transport: transport,
	}
}

func (f *fixture) post(t *testing.T, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	resp, err := http.Post(f.srv.URL+path, "application/json", &buf)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	out := map[string]interface{}{}
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func (f *fixture) seedContacts(t *testing.T, n int, tags string) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, body := f.post(t, "/api/contacts", map[string]string{
			"email":      fmt.Sprintf("student%d@example.com", i),
			"first_name": fmt.Sprintf("Student%d", i),
			"tags":       tags,
			"source":     "website",
		})
		if body["id"] == nil {
			t.Fatalf("seed contact %d: %v", i, body)
		}
	}
}

func (f *fixture) createCampaign(t *testing.T, audienceType, filter string) string {
	t.Helper()
	resp, body := f.post(t, "/api/campaigns", map[string]string{
		"name":            "Course launch",
		"audience_type":   audienceType,
		"audience_filter": filter,
		"subject":         "Hi {{first_name}}",
		"body_html":       "<html><body><p>Hello {{first_name}}</p></body></html>",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create campaign: status %d body %v", resp.StatusCode, body)
	}
	return body["id"].(string)
}

func (f *fixture) waitForStatus(t *testing.T, id string, want domain.CampaignStatus) *domain.Campaign {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		c, err := f.campaigns.Get(context.Background(), id)
		if err == nil && c.Status == want {
			return c
		}
		time.Sleep(10 * time.Millisecond)
	}
	c, _ := f.campaigns.Get(context.Background(), id)
	t.Fatalf("campaign %s never reached %s (now %s)", id, want, c.Status)
	return nil
}

// ---- tests ----

func TestSendCampaignEndToEnd(t *testing.T) {
	f := newFixture(t)
	f.seedContacts(t, 3, "vip")
	id := f.createCampaign(t, "all", "")

	resp, body := f.post(t, "/api/campaigns/"+id+"/send", nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("send: status %d body %v", resp.StatusCode, body)
	}
	if body["recipient_count"].(float64) != 3 {
		t.Fatalf("recipient_count = %v, want 3", body["recipient_count"])
	}

	c := f.waitForStatus(t, id, domain.CampaignCompleted)
	if c.SentCount != 3 || c.TargetedCount != 3 {
		t.Fatalf("counters sent=%d targeted=%d, want 3/3", c.SentCount, c.TargetedCount)
	}

	f.transport.mu.Lock()
	defer f.transport.mu.Unlock()
	if len(f.transport.sent) != 3 {
		t.Fatalf("transport delivered %d messages, want 3", len(f.transport.sent))
	}
	if !strings.Contains(f.transport.sent[0].BodyHTML, "/track/open/") {
		t.Error("delivered mail missing tracking pixel")
	}
}

func TestSendCampaignConfirmationGate(t *testing.T) {
	f := newFixture(t)
	f.seedContacts(t, 501, "")
	id := f.createCampaign(t, "all", "")

	resp, body := f.post(t, "/api/campaigns/"+id+"/send", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unconfirmed send: status %d", resp.StatusCode)
	}
	if body["requires_confirmation"] != true {
		t.Fatalf("expected confirmation gate, got %v", body)
	}

	c, _ := f.campaigns.Get(context.Background(), id)
	if c.Status != domain.CampaignDraft {
		t.Fatalf("gate changed status to %s", c.Status)
	}

	resp, _ = f.post(t, "/api/campaigns/"+id+"/send", map[string]bool{"confirm_large_send": true})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("confirmed send: status %d", resp.StatusCode)
	}
	f.waitForStatus(t, id, domain.CampaignCompleted)
}

func TestAudiencePreviewExcludesSuppressed(t *testing.T) {
	f := newFixture(t)
	f.seedContacts(t, 3, "vip")
	f.post(t, "/api/suppressions", map[string]string{"email": "student1@example.com", "reason": "manual"})

	id := f.createCampaign(t, "by_tag", "vip")
	resp, err := http.Get(f.srv.URL + "/api/campaigns/" + id + "/audience")
	if err != nil {
		t.Fatalf("GET audience: %v", err)
	}
	defer resp.Body.Close()
	var body map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&body)

	if body["total_matched"].(float64) != 3 {
		t.Errorf("total_matched = %v, want 3", body["total_matched"])
	}
	if body["suppressed_count"].(float64) != 1 {
		t.Errorf("suppressed_count = %v, want 1", body["suppressed_count"])
	}
	if body["eligible_count"].(float64) != 2 {
		t.Errorf("eligible_count = %v, want 2", body["eligible_count"])
	}
}

func TestUnsubscribeFlow(t *testing.T) {
	f := newFixture(t)
	f.seedContacts(t, 1, "")

	c, err := f.contacts.GetByEmail(context.Background(), "student0@example.com")
	if err != nil {
		t.Fatalf("seeded contact missing: %v", err)
	}

	for i := 0; i < 2; i++ {
		resp, err := http.Get(f.srv.URL + "/unsubscribe/" + c.UnsubscribeToken)
		if err != nil {
			t.Fatalf("GET unsubscribe: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("unsubscribe status = %d, want 200", resp.StatusCode)
		}
	}

	got, _ := f.contacts.Get(context.Background(), c.ID)
	if got.Subscribed {
		t.Error("contact still subscribed after unsubscribe")
	}

	resp, err := http.Get(f.srv.URL + "/api/suppressions")
	if err != nil {
		t.Fatalf("GET suppressions: %v", err)
	}
	defer resp.Body.Close()
	var body map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&body)
	if body["total"].(float64) != 1 {
		t.Fatalf("suppression total = %v, want 1 (idempotent)", body["total"])
	}
}

func TestTrackingUpdatesCampaignCounters(t *testing.T) {
	f := newFixture(t)
	f.seedContacts(t, 2, "")
	id := f.createCampaign(t, "all", "")

	f.post(t, "/api/campaigns/"+id+"/send", nil)
	f.waitForStatus(t, id, domain.CampaignCompleted)

	sends, _ := f.ledger.ListByCampaign(context.Background(), id)
	if len(sends) != 2 {
		t.Fatalf("ledger rows = %d, want 2", len(sends))
	}

	// Open the first send twice; the unique counter moves once.
	for i := 0; i < 2; i++ {
		resp, err := http.Get(f.srv.URL + "/track/open/" + sends[0].ID)
		if err != nil {
			t.Fatalf("GET open: %v", err)
		}
		resp.Body.Close()
	}

	c, _ := f.campaigns.Get(context.Background(), id)
	if c.OpenedCount != 1 {
		t.Fatalf("opened_count = %d, want 1", c.OpenedCount)
	}
}

func TestCancelScheduledCampaign(t *testing.T) {
	f := newFixture(t)
	f.seedContacts(t, 1, "")
	id := f.createCampaign(t, "all", "")

	at := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	resp, body := f.post(t, "/api/campaigns/"+id+"/schedule", map[string]string{"scheduled_at": at})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("schedule: status %d body %v", resp.StatusCode, body)
	}

	resp, _ = f.post(t, "/api/campaigns/"+id+"/cancel", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel: status %d", resp.StatusCode)
	}

	c, _ := f.campaigns.Get(context.Background(), id)
	if c.Status != domain.CampaignCancelled {
		t.Fatalf("status = %s, want cancelled", c.Status)
	}

	// Cancelled is terminal.
	resp, _ = f.post(t, "/api/campaigns/"+id+"/cancel", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("re-cancel status = %d, want 409", resp.StatusCode)
	}
}
