package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/fluentive/campaigns/internal/dispatch"
	"github.com/fluentive/campaigns/internal/domain"
	"github.com/fluentive/campaigns/internal/pkg/distlock"
)

type fakeSource struct {
	due []domain.Campaign
}

func (f *fakeSource) ListDue(context.Context, time.Time) ([]domain.Campaign, error) {
	return f.due, nil
}

type fakeSender struct {
	mu       sync.Mutex
	sent     []string
	confirms []bool
	failIDs  map[string]bool
}

func (f *fakeSender) Send(_ context.Context, campaignID string, confirm bool) (*dispatch.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIDs[campaignID] {
		return nil, fmt.Errorf("transport exploded")
	}
	f.sent = append(f.sent, campaignID)
	f.confirms = append(f.confirms, confirm)
	return &dispatch.Result{SentCount: 1}, nil
}

type fakeCanceller struct {
	mu        sync.Mutex
	cancelled []string
}

func (f *fakeCanceller) Cancel(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
	return nil
}

func redisLocks(t *testing.T) LockFactory {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return func(key string) distlock.Lock {
		return distlock.NewRedisLock(client, key, time.Minute)
	}
}

func due(ids ...string) []domain.Campaign {
	out := make([]domain.Campaign, len(ids))
	for i, id := range ids {
		out[i] = domain.Campaign{ID: id, Name: "Campaign " + id, Status: domain.CampaignScheduled}
	}
	return out
}

func TestRunOnceDispatchesDueCampaignsConfirmed(t *testing.T) {
	sender := &fakeSender{}
	p := NewPoller(&fakeSource{due: due("c1", "c2")}, sender, &fakeCanceller{}, redisLocks(t), time.Minute)

	p.RunOnce(context.Background())

	if len(sender.sent) != 2 {
		t.Fatalf("dispatched %d campaigns, want 2", len(sender.sent))
	}
	for _, confirmed := range sender.confirms {
		if !confirmed {
			t.Fatal("scheduled dispatch must pre-confirm large sends")
		}
	}
}

func TestRunOnceCancelsFailingCampaignAndContinues(t *testing.T) {
	sender := &fakeSender{failIDs: map[string]bool{"c2": true}}
	canceller := &fakeCanceller{}
	p := NewPoller(&fakeSource{due: due("c1", "c2", "c3")}, sender, canceller, redisLocks(t), time.Minute)

	p.RunOnce(context.Background())

	if len(sender.sent) != 2 {
		t.Fatalf("dispatched %d campaigns, want 2 (c1 and c3)", len(sender.sent))
	}
	if len(canceller.cancelled) != 1 || canceller.cancelled[0] != "c2" {
		t.Fatalf("cancelled = %v, want [c2]", canceller.cancelled)
	}
}

func TestRunOnceSkipsLockedCampaign(t *testing.T) {
	locks := redisLocks(t)

	// Simulate another instance holding c1.
	held := locks("dispatch:campaign:c1")
	if ok, err := held.TryAcquire(context.Background()); err != nil || !ok {
		t.Fatalf("pre-acquire: ok=%t err=%v", ok, err)
	}

	sender := &fakeSender{}
	p := NewPoller(&fakeSource{due: due("c1", "c2")}, sender, &fakeCanceller{}, locks, time.Minute)
	p.RunOnce(context.Background())

	if len(sender.sent) != 1 || sender.sent[0] != "c2" {
		t.Fatalf("sent = %v, want [c2]", sender.sent)
	}
}

func TestStartStop(t *testing.T) {
	sender := &fakeSender{}
	p := NewPoller(&fakeSource{due: due("c1")}, sender, &fakeCanceller{}, redisLocks(t), 10*time.Millisecond)

	p.Start()
	time.Sleep(50 * time.Millisecond)
	p.Stop()

	sender.mu.Lock()
	n := len(sender.sent)
	sender.mu.Unlock()
	if n == 0 {
		t.Fatal("poller never dispatched the due campaign")
	}
}
