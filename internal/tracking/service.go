// Package tracking records email engagement events. The HTTP surface is
// deliberately forgiving: an open always returns the pixel and a click always
// redirects, whatever the state of the send ID, so broken tracking never
// breaks the recipient's experience.
package tracking

import (
	"context"
	"fmt"
	"log"
	"time"
)

// SendLedger records engagement against send-ledger rows. The first return
// value reports whether this was the row's first open or click. The campaign
// ID of the row comes back so the service can advance campaign rollups.
type SendLedger interface {
	RecordOpen(ctx context.Context, sendID string, at time.Time) (first bool, campaignID string, err error)
	RecordClick(ctx context.Context, sendID string, at time.Time) (first bool, campaignID string, err error)
}

// CampaignCounters advances the campaign-level unique open/click rollups.
type CampaignCounters interface {
	IncrementOpened(ctx context.Context, campaignID string) error
	IncrementClicked(ctx context.Context, campaignID string) error
}

// Service applies tracking events to the ledger and campaign counters.
type Service struct {
	ledger    SendLedger
	campaigns CampaignCounters
}

// NewService creates a tracking service.
func NewService(ledger SendLedger, campaigns CampaignCounters) *Service {
	return &Service{ledger: ledger, campaigns: campaigns}
}

// Open records an open event. The per-row open count always advances; the
// campaign's unique-open counter advances only on the row's first open. The
// ledger decides firstness atomically, so concurrent opens of the same send
// produce exactly one campaign increment.
func (s *Service) Open(ctx context.Context, sendID string) error {
	first, campaignID, err := s.ledger.RecordOpen(ctx, sendID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record open %s: %w", sendID, err)
	}
	if first {
		if err := s.campaigns.IncrementOpened(ctx, campaignID); err != nil {
			return fmt.Errorf("increment opened for campaign %s: %w", campaignID, err)
		}
	}
	log.Printf("[Tracking] OPEN send=%s campaign=%s first=%t", sendID, campaignID, first)
	return nil
}

// Click records a click event with the same firstness semantics as Open.
func (s *Service) Click(ctx context.Context, sendID string) error {
	first, campaignID, err := s.ledger.RecordClick(ctx, sendID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record click %s: %w", sendID, err)
	}
	if first {
		if err := s.campaigns.IncrementClicked(ctx, campaignID); err != nil {
			return fmt.Errorf("increment clicked for campaign %s: %w", campaignID, err)
		}
	}
	log.Printf("[Tracking] CLICK send=%s campaign=%s first=%t", sendID, campaignID, first)
	return nil
}
