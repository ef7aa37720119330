package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fluentive/campaigns/internal/domain"
	"github.com/fluentive/campaigns/internal/mailer"
	"github.com/fluentive/campaigns/internal/service/audience"
)

// Sentinel errors for dispatch preconditions.
var (
	ErrNotSendable  = errors.New("campaign is not in a sendable state")
	ErrEmptyContent = errors.New("campaign subject and HTML body must not be empty")
)

// CampaignStore is the slice of the campaign repository the dispatcher needs.
type CampaignStore interface {
	Get(ctx context.Context, id string) (*domain.Campaign, error)
	UpdateStatus(ctx context.Context, id string, from []domain.CampaignStatus, to domain.CampaignStatus) error
	SetTargeted(ctx context.Context, id string, targeted int) error
	SetCompleted(ctx context.Context, id string, sent, failed int) error
}

// Ledger is the send-ledger contract used during dispatch.
type Ledger interface {
	// CreateBatch inserts pending rows, skipping (campaign, contact) pairs
	// that already have one.
	CreateBatch(ctx context.Context, records []*domain.SendRecord) error
	ListByCampaign(ctx context.Context, campaignID string) ([]domain.SendRecord, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, errMsg string) error
}

// AudienceResolver computes the eligible recipient set.
type AudienceResolver interface {
	Resolve(ctx context.Context, t domain.AudienceType, filter string) (*audience.Resolution, error)
}

// Config holds dispatch tuning and the public URLs baked into each message.
type Config struct {
	// BatchSize is the number of recipients delivered between pauses.
	BatchSize int
	// BatchPause is the wait between consecutive batches.
	BatchPause time.Duration
	// ConfirmThreshold is the audience size above which an unconfirmed
	// send is refused.
	ConfirmThreshold int
	// BaseURL is the public origin for tracking and unsubscribe links.
	BaseURL  string
	FromName string
	FromAddr string
}

// DefaultConfig returns the standard dispatch tuning.
func DefaultConfig() Config {
	return Config{
		BatchSize:        100,
		BatchPause:       1500 * time.Millisecond,
		ConfirmThreshold: 500,
	}
}

// Result reports the outcome of a dispatch.
type Result struct {
	// RequiresConfirmation is set when the audience exceeded the threshold
	// and the caller did not confirm. Nothing was sent or recorded.
	RequiresConfirmation bool `json:"requires_confirmation"`
	RecipientCount       int  `json:"recipient_count"`
	SentCount            int  `json:"sent_count"`
	FailedCount          int  `json:"failed_count"`
	// Halted is set when the campaign was cancelled mid-send. Rows already
	// sent keep their state; pending rows stay pending.
	Halted bool `json:"halted"`
}

// Dispatcher executes campaign sends.
type Dispatcher struct {
	cfg       Config
	campaigns CampaignStore
	ledger    Ledger
	resolver  AudienceResolver
	transport mailer.Transport
	render    *Personalizer
}

// NewDispatcher wires a dispatcher. Zero values in cfg fall back to defaults.
func NewDispatcher(cfg Config, campaigns CampaignStore, ledger Ledger, resolver AudienceResolver, transport mailer.Transport) *Dispatcher {
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.BatchPause <= 0 {
		cfg.BatchPause = def.BatchPause
	}
	if cfg.ConfirmThreshold <= 0 {
		cfg.ConfirmThreshold = def.ConfirmThreshold
	}
	return &Dispatcher{
		cfg:       cfg,
		campaigns: campaigns,
		ledger:    ledger,
		resolver:  resolver,
		transport: transport,
		render:    NewPersonalizer(),
	}
}

// Preflight validates a campaign's content and resolves its audience without
// mutating anything. The API uses it for the pre-send summary.
func (d *Dispatcher) Preflight(ctx context.Context, campaignID string) (*audience.Resolution, error) {
	c, err := d.campaigns.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if err := validateContent(c); err != nil {
		return nil, err
	}
	return d.resolver.Resolve(ctx, c.AudienceType, c.AudienceFilter)
}

// NeedsConfirmation reports whether an audience of the given size requires
// explicit operator confirmation before sending.
func (d *Dispatcher) NeedsConfirmation(recipients int) bool {
	return recipients > d.cfg.ConfirmThreshold
}

// Send executes the campaign send end to end. When confirmLargeSend is false
// and the eligible audience exceeds the confirmation threshold, it returns a
// RequiresConfirmation result without claiming the campaign or writing any
// ledger rows. A campaign already in sending status is resumed: missing
// ledger rows are created and only pending rows are delivered.
func (d *Dispatcher) Send(ctx context.Context, campaignID string, confirmLargeSend bool) (*Result, error) {
	c, err := d.campaigns.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	resuming := c.Status == domain.CampaignSending
	if !resuming && !c.Sendable() {
		return nil, fmt.Errorf("%w (status %s)", ErrNotSendable, c.Status)
	}
	if err := validateContent(c); err != nil {
		return nil, err
	}

	res, err := d.resolver.Resolve(ctx, c.AudienceType, c.AudienceFilter)
	if err != nil {
		return nil, fmt.Errorf("resolve audience: %w", err)
	}

	if !resuming && !confirmLargeSend && len(res.Eligible) > d.cfg.ConfirmThreshold {
		return &Result{RequiresConfirmation: true, RecipientCount: len(res.Eligible)}, nil
	}

	if !resuming {
		err = d.campaigns.UpdateStatus(ctx, campaignID,
			[]domain.CampaignStatus{domain.CampaignDraft, domain.CampaignScheduled},
			domain.CampaignSending)
		if err != nil {
			return nil, fmt.Errorf("claim campaign: %w", err)
		}
		if err := d.campaigns.SetTargeted(ctx, campaignID, len(res.Eligible)); err != nil {
			return nil, fmt.Errorf("record targeted count: %w", err)
		}
	}

	pending, sent, failed, err := d.materializeLedger(ctx, campaignID, res.Eligible)
	if err != nil {
		return nil, err
	}

	log.Printf("[Dispatcher] Campaign %s: %d eligible, %d pending, %d already sent, %d already failed",
		campaignID, len(res.Eligible), len(pending), sent, failed)

	result := &Result{RecipientCount: len(res.Eligible)}
	halted := false

	for start := 0; start < len(pending); start += d.cfg.BatchSize {
		if start > 0 {
			if halted = d.pauseOrHalt(ctx, campaignID); halted {
				break
			}
		}

		end := start + d.cfg.BatchSize
		if end > len(pending) {
			end = len(pending)
		}
		for _, job := range pending[start:end] {
			if err := d.deliver(ctx, c, job); err != nil {
				failed++
				if mfErr := d.ledger.MarkFailed(ctx, job.record.ID, err.Error()); mfErr != nil {
					log.Printf("[Dispatcher] Campaign %s: mark failed for %s: %v", campaignID, job.record.ID, mfErr)
				}
				log.Printf("[Dispatcher] Campaign %s: send to %s failed: %v", campaignID, job.contact.Email, err)
				continue
			}
			sent++
			if msErr := d.ledger.MarkSent(ctx, job.record.ID); msErr != nil {
				log.Printf("[Dispatcher] Campaign %s: mark sent for %s: %v", campaignID, job.record.ID, msErr)
			}
		}
	}

	result.SentCount = sent
	result.FailedCount = failed
	if halted {
		result.Halted = true
		log.Printf("[Dispatcher] Campaign %s: halted after %d sent, %d failed", campaignID, sent, failed)
		return result, nil
	}

	if err := d.campaigns.SetCompleted(ctx, campaignID, sent, failed); err != nil {
		return result, fmt.Errorf("complete campaign: %w", err)
	}
	log.Printf("[Dispatcher] Campaign %s completed: %d sent, %d failed", campaignID, sent, failed)
	return result, nil
}

// SendTest delivers the campaign content to a single address without touching
// campaign status or the ledger. Tracking links point at a throwaway send ID.
func (d *Dispatcher) SendTest(ctx context.Context, campaignID, email string) error {
	c, err := d.campaigns.Get(ctx, campaignID)
	if err != nil {
		return err
	}
	if err := validateContent(c); err != nil {
		return err
	}
	contact := domain.Contact{
		ID:               uuid.New().String(),
		Email:            domain.NormalizeEmail(email),
		UnsubscribeToken: "test",
	}
	msg := d.buildMessage(c, contact, "test-"+uuid.New().String())
	msg.Subject = "[TEST] " + msg.Subject
	return d.transport.Send(ctx, msg)
}

type sendJob struct {
	record  domain.SendRecord
	contact domain.Contact
}

// materializeLedger ensures one ledger row per eligible contact and returns
// the pending jobs plus counts of rows already in a terminal state.
func (d *Dispatcher) materializeLedger(ctx context.Context, campaignID string, eligible []domain.Contact) ([]sendJob, int, int, error) {
	existing, err := d.ledger.ListByCampaign(ctx, campaignID)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("load send ledger: %w", err)
	}
	byContact := make(map[string]domain.SendRecord, len(existing))
	for _, r := range existing {
		byContact[r.ContactID] = r
	}

	var created []*domain.SendRecord
	for _, c := range eligible {
		if _, ok := byContact[c.ID]; ok {
			continue
		}
		rec := &domain.SendRecord{
			ID:         uuid.New().String(),
			CampaignID: campaignID,
			ContactID:  c.ID,
			Status:     domain.SendPending,
		}
		created = append(created, rec)
		byContact[c.ID] = *rec
	}
	if len(created) > 0 {
		if err := d.ledger.CreateBatch(ctx, created); err != nil {
			return nil, 0, 0, fmt.Errorf("create send records: %w", err)
		}
	}

	var (
		jobs         []sendJob
		sent, failed int
	)
	for _, c := range eligible {
		rec := byContact[c.ID]
		switch rec.Status {
		case domain.SendPending:
			jobs = append(jobs, sendJob{record: rec, contact: c})
		case domain.SendSent, domain.SendBounced:
			sent++
		case domain.SendFailed:
			failed++
		}
	}
	return jobs, sent, failed, nil
}

// pauseOrHalt waits the inter-batch pause, checking for cancellation both
// before and via context. It returns true when the send must stop.
func (d *Dispatcher) pauseOrHalt(ctx context.Context, campaignID string) bool {
	c, err := d.campaigns.Get(ctx, campaignID)
	if err != nil {
		log.Printf("[Dispatcher] Campaign %s: status check failed, continuing: %v", campaignID, err)
	} else if c.Status == domain.CampaignCancelled {
		return true
	}

	select {
	case <-ctx.Done():
		return true
	case <-time.After(d.cfg.BatchPause):
		return false
	}
}

func (d *Dispatcher) deliver(ctx context.Context, c *domain.Campaign, job sendJob) error {
	msg := d.buildMessage(c, job.contact, job.record.ID)
	return d.transport.Send(ctx, msg)
}

// buildMessage renders one recipient's message: personalization, CTA click
// tracking, the unsubscribe footer, and the open pixel.
func (d *Dispatcher) buildMessage(c *domain.Campaign, contact domain.Contact, sendID string) mailer.Message {
	unsubURL := d.cfg.BaseURL + "/unsubscribe/" + contact.UnsubscribeToken
	pixelURL := d.cfg.BaseURL + "/track/open/" + sendID

	ctaURL := c.CTALink
	if ctaURL != "" {
		ctaURL = d.cfg.BaseURL + "/track/click/" + sendID + "?url=" + url.QueryEscape(c.CTALink)
	}

	b := Bindings{
		FirstName:      contact.FirstName,
		LastName:       contact.LastName,
		Email:          contact.Email,
		UnsubscribeURL: unsubURL,
		CTAURL:         ctaURL,
	}

	html := d.render.Render(c.BodyHTML, b)
	if c.CTALink != "" {
		// Literal hrefs to the CTA target go through the click redirect too.
		html = strings.ReplaceAll(html, c.CTALink, ctaURL)
	}
	html = injectFooter(html, unsubURL, pixelURL)

	text := d.render.Render(c.BodyText, b)
	text = textFooter(text, unsubURL)

	return mailer.Message{
		To:       contact.Email,
		FromName: d.cfg.FromName,
		FromAddr: d.cfg.FromAddr,
		Subject:  d.render.Render(c.Subject, b),
		BodyHTML: html,
		BodyText: text,
	}
}

func validateContent(c *domain.Campaign) error {
	if strings.TrimSpace(c.Subject) == "" || strings.TrimSpace(c.BodyHTML) == "" {
		return ErrEmptyContent
	}
	return nil
}
