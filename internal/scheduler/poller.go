// Package scheduler runs the background poller that launches scheduled
// campaigns when their send time arrives.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/fluentive/campaigns/internal/dispatch"
	"github.com/fluentive/campaigns/internal/domain"
	"github.com/fluentive/campaigns/internal/pkg/distlock"
)

// CampaignSource lists campaigns whose scheduled time has arrived.
type CampaignSource interface {
	ListDue(ctx context.Context, now time.Time) ([]domain.Campaign, error)
}

// Sender dispatches one campaign. Scheduled sends were approved when they
// were scheduled, so the poller always confirms.
type Sender interface {
	Send(ctx context.Context, campaignID string, confirmLargeSend bool) (*dispatch.Result, error)
}

// Canceller marks a campaign cancelled when its dispatch fails.
type Canceller interface {
	Cancel(ctx context.Context, id string) error
}

// LockFactory builds a per-campaign lock so concurrent poller instances
// never dispatch the same campaign twice.
type LockFactory func(key string) distlock.Lock

// Poller periodically checks for due campaigns and dispatches them.
type Poller struct {
	campaigns CampaignSource
	sender    Sender
	canceller Canceller
	locks     LockFactory
	interval  time.Duration
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewPoller creates a poller. interval defaults to one minute.
func NewPoller(campaigns CampaignSource, sender Sender, canceller Canceller, locks LockFactory, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Poller{
		campaigns: campaigns,
		sender:    sender,
		canceller: canceller,
		locks:     locks,
		interval:  interval,
		stopCh:    make(chan struct{}),
	}
}

// Start launches the poll loop in a background goroutine.
func (p *Poller) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		log.Printf("[Scheduler] Poller started (interval %s)", p.interval)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-p.stopCh:
				log.Println("[Scheduler] Poller stopped")
				return
			case <-ticker.C:
				p.RunOnce(context.Background())
			}
		}
	}()
}

// Stop shuts the poll loop down and waits for it to exit. An in-flight
// dispatch finishes its current cycle first.
func (p *Poller) Stop() {
	close(p.stopCh)
	p.wg.Wait()
}

// RunOnce processes all currently due campaigns. A failure on one campaign
// cancels that campaign and moves on to the rest.
func (p *Poller) RunOnce(ctx context.Context) {
	due, err := p.campaigns.ListDue(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("[Scheduler] List due campaigns: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}
	log.Printf("[Scheduler] %d campaign(s) due", len(due))

	for _, c := range due {
		p.dispatchOne(ctx, c)
	}
}

func (p *Poller) dispatchOne(ctx context.Context, c domain.Campaign) {
	lock := p.locks("dispatch:campaign:" + c.ID)
	ok, err := lock.TryAcquire(ctx)
	if err != nil {
		log.Printf("[Scheduler] Lock %s: %v", c.ID, err)
		return
	}
	if !ok {
		// Another instance owns this campaign.
		return
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			log.Printf("[Scheduler] Release lock %s: %v", c.ID, err)
		}
	}()

	log.Printf("[Scheduler] Dispatching campaign %s (%s)", c.ID, c.Name)
	res, err := p.sender.Send(ctx, c.ID, true)
	if err != nil {
		log.Printf("[Scheduler] Campaign %s failed: %v", c.ID, err)
		if cancelErr := p.canceller.Cancel(ctx, c.ID); cancelErr != nil {
			log.Printf("[Scheduler] Cancel failed campaign %s: %v", c.ID, cancelErr)
		}
		return
	}
	log.Printf("[Scheduler] Campaign %s done: %d sent, %d failed", c.ID, res.SentCount, res.FailedCount)
}
