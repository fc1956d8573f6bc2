package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"billing-gateway-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepo implements Repository in memory so the protocol can be exercised
// without a database. Apply calls are recorded per provider payment id.
type fakeRepo struct {
	mu     sync.Mutex
	events map[string]*models.WebhookEvent

	paymentApplies      []string
	subscriptionApplies []string
	applyErr            error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{events: map[string]*models.WebhookEvent{}}
}

func (f *fakeRepo) Transaction(_ context.Context, fn func(Repository) error) error {
	return fn(f)
}

func (f *fakeRepo) ClaimEvent(_ context.Context, event *models.WebhookEvent) (*models.WebhookEvent, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.events[event.EventID]; ok {
		cp := *existing
		return &cp, false, nil
	}
	cp := *event
	cp.ReceivedAt = time.Now()
	f.events[event.EventID] = &cp
	out := cp
	return &out, true, nil
}

func (f *fakeRepo) FinalizeEvent(_ context.Context, eventID, result, errDetail string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[eventID]
	if !ok {
		return fmt.Errorf("no ledger entry for %s", eventID)
	}
	// Mirrors the repository contract: success is immutable.
	if ev.ProcessingResult == models.ResultSuccess {
		return nil
	}
	now := time.Now()
	ev.ProcessedAt = &now
	ev.ProcessingResult = result
	ev.ErrorDetail = errDetail
	return nil
}

func (f *fakeRepo) ApplyPaymentState(_ context.Context, p *PaymentPayload, _ string) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paymentApplies = append(f.paymentApplies, p.ID)
	return nil
}

func (f *fakeRepo) ApplySubscriptionState(_ context.Context, sub *SubscriptionPayload, _ string) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscriptionApplies = append(f.subscriptionApplies, sub.ID)
	return nil
}

func (f *fakeRepo) result(eventID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ev, ok := f.events[eventID]; ok {
		return ev.ProcessingResult
	}
	return ""
}

func paymentDelivery(eventID string) (*Delivery, []byte) {
	raw := []byte(fmt.Sprintf(
		`{"id":%q,"event":"PAYMENT_CONFIRMED","payment":{"id":"pay_1","customer":"cus_1"}}`, eventID))
	d, err := ParseDelivery(raw)
	if err != nil {
		panic(err)
	}
	return d, raw
}

func TestProcessAppliesOnce(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	d, raw := paymentDelivery("evt_1")

	outcome, err := svc.Process(context.Background(), d, raw)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, []string{"pay_1"}, repo.paymentApplies)
	assert.Equal(t, models.ResultSuccess, repo.result("evt_1"))
}

func TestProcessDuplicateDeliveriesMutateOnce(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	d, raw := paymentDelivery("evt_1")

	for i := 0; i < 5; i++ {
		outcome, err := svc.Process(context.Background(), d, raw)
		require.NoError(t, err)
		if i == 0 {
			assert.Equal(t, OutcomeApplied, outcome)
		} else {
			assert.Equal(t, OutcomeDuplicate, outcome)
		}
	}

	assert.Len(t, repo.paymentApplies, 1)
}

func TestProcessUnknownEventRecordedAndSkipped(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	raw := []byte(`{"id":"evt_9","event":"PAYMENT_CHARGEBACK_REQUESTED"}`)
	d, err := ParseDelivery(raw)
	require.NoError(t, err)

	outcome, err := svc.Process(context.Background(), d, raw)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
	assert.Empty(t, repo.paymentApplies)
	assert.Empty(t, repo.subscriptionApplies)
	assert.Equal(t, models.ResultIgnored, repo.result("evt_9"))

	// Replays of the ignored event short-circuit as duplicates.
	outcome, err = svc.Process(context.Background(), d, raw)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
}

func TestProcessPermanentFailureRecordedTerminally(t *testing.T) {
	repo := newFakeRepo()
	repo.applyErr = fmt.Errorf("%w: cus_missing", ErrUnknownCustomer)
	svc := NewService(repo)
	d, raw := paymentDelivery("evt_1")

	outcome, err := svc.Process(context.Background(), d, raw)
	require.NoError(t, err, "permanent failures must not trigger provider redelivery")
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, models.ResultFailed, repo.result("evt_1"))
}

func TestProcessTransientFailureConvergesOnRedelivery(t *testing.T) {
	repo := newFakeRepo()
	repo.applyErr = errors.New("downstream timeout")
	svc := NewService(repo)
	d, raw := paymentDelivery("evt_1")

	_, err := svc.Process(context.Background(), d, raw)
	require.Error(t, err)
	assert.Equal(t, models.ResultFailed, repo.result("evt_1"))
	assert.Empty(t, repo.paymentApplies)

	// Provider redelivers after the fault clears: exactly one mutation total.
	repo.applyErr = nil
	outcome, err := svc.Process(context.Background(), d, raw)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Len(t, repo.paymentApplies, 1)
	assert.Equal(t, models.ResultSuccess, repo.result("evt_1"))
}

func TestProcessFreshPendingClaimShortCircuits(t *testing.T) {
	repo := newFakeRepo()
	repo.events["evt_1"] = &models.WebhookEvent{
		EventID:          "evt_1",
		ProcessingResult: models.ResultPending,
		ReceivedAt:       time.Now(),
	}
	svc := NewService(repo)
	d, raw := paymentDelivery("evt_1")

	outcome, err := svc.Process(context.Background(), d, raw)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.Empty(t, repo.paymentApplies)
}

func TestProcessStalePendingClaimIsRetaken(t *testing.T) {
	repo := newFakeRepo()
	repo.events["evt_1"] = &models.WebhookEvent{
		EventID:          "evt_1",
		ProcessingResult: models.ResultPending,
		ReceivedAt:       time.Now().Add(-5 * time.Minute),
	}
	svc := NewService(repo)
	d, raw := paymentDelivery("evt_1")

	outcome, err := svc.Process(context.Background(), d, raw)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Len(t, repo.paymentApplies, 1)
}

func TestLateFailureMarkCannotOverwriteSuccess(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	d, raw := paymentDelivery("evt_1")

	// Two attempts retake the same stale claim; the slower one fails after
	// the faster one has already settled the entry.
	outcome, err := svc.Process(context.Background(), d, raw)
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome)

	require.NoError(t, repo.FinalizeEvent(context.Background(), "evt_1", models.ResultFailed, "downstream timeout"))
	assert.Equal(t, models.ResultSuccess, repo.result("evt_1"))

	// The settled entry keeps short-circuiting redeliveries.
	outcome, err = svc.Process(context.Background(), d, raw)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.Len(t, repo.paymentApplies, 1)
}

func TestProcessSubscriptionEvent(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	raw := []byte(`{"id":"evt_2","event":"SUBSCRIPTION_DELETED","subscription":{"id":"sub_1"}}`)
	d, err := ParseDelivery(raw)
	require.NoError(t, err)

	outcome, err := svc.Process(context.Background(), d, raw)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, []string{"sub_1"}, repo.subscriptionApplies)
}
