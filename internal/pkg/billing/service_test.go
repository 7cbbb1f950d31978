package billing

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PrepVault/app/models"
)

func webhookBody(event, orderID, paymentID string, amount int64) []byte {
	return []byte(fmt.Sprintf(`{"entity":"event","event":%q,"payload":{"payment":{"entity":{"id":%q,"order_id":%q,"amount":%d,"currency":"INR","status":"captured"}}}}`,
		event, paymentID, orderID, amount))
}

func signedWebhook(body []byte, eventID string) WebhookInput {
	return WebhookInput{RawBody: body, Signature: SignWebhook(body, testWebhookSecret), EventID: eventID}
}

func TestCreateOrder_FreePlanGrantsImmediately(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	res, err := h.svc.CreateOrder(ctx, 42, "archive")
	require.NoError(t, err)
	assert.True(t, res.Free)
	assert.Equal(t, int64(0), res.Amount)
	require.NotNil(t, res.ExpiresAt)
	assert.Equal(t, testNow.AddDate(0, 0, 365), *res.ExpiresAt)
	assert.Empty(t, h.gateway.requests)

	payment := h.payments.byOrder(res.OrderID)
	assert.Equal(t, models.PaymentStatusFree, payment.Status)
	assert.Equal(t, int64(0), payment.AmountMinor)
	assert.Contains(t, payment.GatewayOrderID, "free_")

	snap, err := h.svc.AccessStatus(ctx, 42)
	require.NoError(t, err)
	assert.True(t, snap.Archive.Active)
	assert.False(t, snap.Materials.Active)
	assert.False(t, snap.Combo.Active)
	assert.Equal(t, 1, h.notes.count())
}

func TestCreateOrder_FreePlanRecordFailureKeepsGrant(t *testing.T) {
	h := newHarness()
	h.payments.createErr = errBoom

	res, err := h.svc.CreateOrder(context.Background(), 42, "archive")
	require.NoError(t, err)
	assert.True(t, res.Free)
	assert.True(t, h.grants.get(42).ArchiveUnlocked.Bool())
}

func TestCreateOrder_PaidPlanCreatesPendingPayment(t *testing.T) {
	h := newHarness()

	res, err := h.svc.CreateOrder(context.Background(), 7, " Combo ")
	require.NoError(t, err)
	assert.False(t, res.Free)
	assert.Equal(t, int64(49900), res.Amount)
	assert.Equal(t, "INR", res.Currency)
	assert.Equal(t, testKeyID, res.KeyID)
	assert.Nil(t, res.ExpiresAt)

	require.Len(t, h.gateway.requests, 1)
	req := h.gateway.requests[0]
	assert.Equal(t, int64(49900), req.Amount)
	assert.LessOrEqual(t, len(req.Receipt), maxReceiptLen)
	assert.Equal(t, "combo", req.Notes["plan_code"])
	assert.Equal(t, "7", req.Notes["user_id"])

	payment := h.payments.byOrder(res.OrderID)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	assert.Equal(t, uint(7), payment.UserID)
	assert.Equal(t, int64(49900), payment.AmountMinor)
	assert.Equal(t, req.Receipt, payment.Receipt)
	assert.Nil(t, h.grants.get(7))
}

func TestCreateOrder_Rejections(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.svc.CreateOrder(ctx, 7, "nope")
	assert.ErrorIs(t, err, ErrPlanNotFound)

	_, err = h.svc.CreateOrder(ctx, 7, "legacy")
	assert.ErrorIs(t, err, ErrPlanInactive)

	_, err = h.svc.CreateOrder(ctx, 0, "combo")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestCreateOrder_GatewayFailurePersistsNothing(t *testing.T) {
	h := newHarness()
	h.gateway.err = errBoom

	_, err := h.svc.CreateOrder(context.Background(), 7, "combo")
	assert.ErrorIs(t, err, ErrGatewayUnavailable)

	list, err := h.svc.PaymentHistory(context.Background(), 7, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateOrder_GatewayAmountMismatch(t *testing.T) {
	h := newHarness()
	h.gateway.amount = 100

	_, err := h.svc.CreateOrder(context.Background(), 7, "combo")
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
	assert.Empty(t, h.payments.rows)
}

func TestCreateOrder_MissingCredentials(t *testing.T) {
	h := newHarness()
	h.svc.cfg.KeySecret = ""

	_, err := h.svc.CreateOrder(context.Background(), 7, "combo")
	assert.ErrorIs(t, err, ErrGatewayNotConfigured)

	// free plans do not need the gateway
	res, err := h.svc.CreateOrder(context.Background(), 7, "archive")
	require.NoError(t, err)
	assert.True(t, res.Free)
}

func TestVerifyPayment_ComboScenario(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	order, err := h.svc.CreateOrder(ctx, 42, "combo")
	require.NoError(t, err)

	res, err := h.svc.VerifyPayment(ctx, 42, VerifyRequest{
		OrderID:   order.OrderID,
		PaymentID: "pay_123",
		Signature: SignPayment(order.OrderID, "pay_123", testKeySecret),
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeGranted, res.Outcome)
	assert.Equal(t, models.PaymentStatusPaid, res.Status)
	require.NotNil(t, res.ExpiresAt)
	assert.Equal(t, testNow.AddDate(0, 0, 365), *res.ExpiresAt)

	payment := h.payments.byOrder(order.OrderID)
	assert.Equal(t, models.PaymentStatusPaid, payment.Status)
	require.NotNil(t, payment.GatewayPaymentID)
	assert.Equal(t, "pay_123", *payment.GatewayPaymentID)
	require.NotNil(t, payment.PaidAt)

	snap, err := h.svc.AccessStatus(ctx, 42)
	require.NoError(t, err)
	assert.True(t, snap.Combo.Active)
	assert.True(t, snap.Archive.Active)
	assert.True(t, snap.Materials.Active)

	grant := h.grants.get(42)
	assert.False(t, grant.ArchiveUnlocked.Bool())
	assert.False(t, grant.MaterialsUnlocked.Bool())
}

func TestVerifyPayment_TwiceGrantsOnce(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	order, err := h.svc.CreateOrder(ctx, 42, "materials")
	require.NoError(t, err)
	req := VerifyRequest{
		OrderID:   order.OrderID,
		PaymentID: "pay_abc",
		Signature: SignPayment(order.OrderID, "pay_abc", testKeySecret),
	}

	first, err := h.svc.VerifyPayment(ctx, 42, req)
	require.NoError(t, err)
	assert.Equal(t, OutcomeGranted, first.Outcome)
	expiry := *h.grants.get(42).MaterialsExpiresAt

	// a later clock must not move the expiry
	h.svc.now = func() time.Time { return testNow.Add(time.Hour) }
	second, err := h.svc.VerifyPayment(ctx, 42, req)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyProcessed, second.Outcome)
	assert.Nil(t, second.ExpiresAt)

	assert.Equal(t, int32(1), h.grants.applied)
	assert.Equal(t, expiry, *h.grants.get(42).MaterialsExpiresAt)
	assert.Equal(t, 1, h.notes.count())
}

func TestVerifyPayment_Rejections(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	order, err := h.svc.CreateOrder(ctx, 42, "combo")
	require.NoError(t, err)
	good := SignPayment(order.OrderID, "pay_1", testKeySecret)

	tests := []struct {
		name   string
		userID uint
		req    VerifyRequest
		want   error
	}{
		{
			name:   "missing fields",
			userID: 42,
			req:    VerifyRequest{OrderID: order.OrderID},
			want:   ErrInvalidRequest,
		},
		{
			name:   "non hex signature",
			userID: 42,
			req:    VerifyRequest{OrderID: order.OrderID, PaymentID: "pay_1", Signature: "not-hex"},
			want:   ErrInvalidRequest,
		},
		{
			name:   "unknown order",
			userID: 42,
			req:    VerifyRequest{OrderID: "order_missing", PaymentID: "pay_1", Signature: good},
			want:   ErrOrderNotFound,
		},
		{
			name:   "other user",
			userID: 99,
			req:    VerifyRequest{OrderID: order.OrderID, PaymentID: "pay_1", Signature: good},
			want:   ErrOrderNotFound,
		},
		{
			name:   "wrong payment id",
			userID: 42,
			req:    VerifyRequest{OrderID: order.OrderID, PaymentID: "pay_2", Signature: good},
			want:   ErrInvalidSignature,
		},
		{
			name:   "signed with webhook secret",
			userID: 42,
			req:    VerifyRequest{OrderID: order.OrderID, PaymentID: "pay_1", Signature: SignPayment(order.OrderID, "pay_1", testWebhookSecret)},
			want:   ErrInvalidSignature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.VerifyPayment(ctx, tt.userID, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Equal(t, models.PaymentStatusPending, h.payments.byOrder(order.OrderID).Status)
	assert.Nil(t, h.grants.get(42))
}

func TestVerifyPayment_ClosedPayment(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	order, err := h.svc.CreateOrder(ctx, 42, "combo")
	require.NoError(t, err)
	h.payments.rows[1].Status = models.PaymentStatusFailed

	_, err = h.svc.VerifyPayment(ctx, 42, VerifyRequest{
		OrderID:   order.OrderID,
		PaymentID: "pay_1",
		Signature: SignPayment(order.OrderID, "pay_1", testKeySecret),
	})
	assert.ErrorIs(t, err, ErrPaymentClosed)
}

func TestHandleWebhook_FinalizesPendingOrder(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	order, err := h.svc.CreateOrder(ctx, 42, "combo")
	require.NoError(t, err)

	res, err := h.svc.HandleWebhook(ctx, signedWebhook(webhookBody(EventPaymentCaptured, order.OrderID, "pay_w1", 49900), "evt_1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeGranted, res.Outcome)
	assert.Equal(t, order.OrderID, res.OrderID)

	payment := h.payments.byOrder(order.OrderID)
	assert.Equal(t, models.PaymentStatusPaid, payment.Status)
	require.NotNil(t, payment.GatewayPaymentID)
	assert.Equal(t, "pay_w1", *payment.GatewayPaymentID)
	assert.Nil(t, payment.GatewaySignature)

	require.Len(t, h.events.rows, 1)
	assert.Equal(t, "evt_1", h.events.rows[0].ProviderEventID)
	assert.NotNil(t, h.events.rows[0].ProcessedAt)
	assert.Empty(t, h.events.rows[0].ProcessingError)
}

func TestHandleWebhook_AfterClientVerify(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	order, err := h.svc.CreateOrder(ctx, 42, "combo")
	require.NoError(t, err)
	_, err = h.svc.VerifyPayment(ctx, 42, VerifyRequest{
		OrderID:   order.OrderID,
		PaymentID: "pay_1",
		Signature: SignPayment(order.OrderID, "pay_1", testKeySecret),
	})
	require.NoError(t, err)
	expiry := *h.grants.get(42).ComboExpiresAt

	h.svc.now = func() time.Time { return testNow.Add(10 * time.Minute) }
	res, err := h.svc.HandleWebhook(ctx, signedWebhook(webhookBody(EventPaymentCaptured, order.OrderID, "pay_1", 49900), "evt_2"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyProcessed, res.Outcome)
	assert.Equal(t, expiry, *h.grants.get(42).ComboExpiresAt)
	assert.Equal(t, int32(1), h.grants.applied)
}

func TestHandleWebhook_InvalidSignature(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	order, err := h.svc.CreateOrder(ctx, 42, "combo")
	require.NoError(t, err)
	body := webhookBody(EventPaymentCaptured, order.OrderID, "pay_1", 49900)

	for _, sig := range []string{"", "zz", SignWebhook(body, testKeySecret), SignWebhook(append(body, ' '), testWebhookSecret)} {
		_, err := h.svc.HandleWebhook(ctx, WebhookInput{RawBody: body, Signature: sig})
		assert.ErrorIs(t, err, ErrInvalidSignature)
	}

	assert.Equal(t, models.PaymentStatusPending, h.payments.byOrder(order.OrderID).Status)
	assert.Nil(t, h.grants.get(42))
	assert.Empty(t, h.events.rows)
}

func TestHandleWebhook_MalformedBody(t *testing.T) {
	h := newHarness()
	body := []byte(`{"event":`)

	_, err := h.svc.HandleWebhook(context.Background(), signedWebhook(body, ""))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestHandleWebhook_AcknowledgedWithoutMutation(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	order, err := h.svc.CreateOrder(ctx, 42, "combo")
	require.NoError(t, err)

	tests := []struct {
		name string
		body []byte
	}{
		{name: "unrecognized event", body: webhookBody("payment.failed", order.OrderID, "pay_1", 49900)},
		{name: "refund event", body: webhookBody("refund.created", order.OrderID, "pay_1", 49900)},
		{name: "unknown order", body: webhookBody(EventPaymentCaptured, "order_elsewhere", "pay_1", 49900)},
		{name: "no order id", body: []byte(`{"event":"payment.captured","payload":{}}`)},
		{name: "amount mismatch", body: webhookBody(EventPaymentCaptured, order.OrderID, "pay_1", 100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := h.svc.HandleWebhook(ctx, signedWebhook(tt.body, ""))
			require.NoError(t, err)
			assert.Equal(t, OutcomeIgnored, res.Outcome)
		})
	}

	assert.Equal(t, models.PaymentStatusPending, h.payments.byOrder(order.OrderID).Status)
	assert.Equal(t, int32(0), h.payments.transitions)
	assert.Nil(t, h.grants.get(42))
}

func TestHandleWebhook_RedeliveryIsJournaledOnce(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	order, err := h.svc.CreateOrder(ctx, 42, "combo")
	require.NoError(t, err)
	in := signedWebhook(webhookBody(EventOrderPaid, order.OrderID, "pay_1", 49900), "")

	first, err := h.svc.HandleWebhook(ctx, in)
	require.NoError(t, err)
	second, err := h.svc.HandleWebhook(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, OutcomeGranted, first.Outcome)
	assert.Equal(t, OutcomeAlreadyProcessed, second.Outcome)
	require.Len(t, h.events.rows, 1)
	assert.Equal(t, 2, h.events.rows[0].Deliveries)
	assert.Contains(t, h.events.rows[0].ProviderEventID, "hash:")
}

func TestFinalize_ClientAndWebhookRace(t *testing.T) {
	for round := 0; round < 20; round++ {
		h := newHarness()
		ctx := context.Background()

		order, err := h.svc.CreateOrder(ctx, 42, "combo")
		require.NoError(t, err)
		verifyReq := VerifyRequest{
			OrderID:   order.OrderID,
			PaymentID: "pay_race",
			Signature: SignPayment(order.OrderID, "pay_race", testKeySecret),
		}
		hook := signedWebhook(webhookBody(EventPaymentCaptured, order.OrderID, "pay_race", 49900), "evt_race")

		var wg sync.WaitGroup
		outcomes := make(chan Outcome, 4)
		for i := 0; i < 2; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				res, err := h.svc.VerifyPayment(ctx, 42, verifyReq)
				if assert.NoError(t, err) {
					outcomes <- res.Outcome
				}
			}()
			go func() {
				defer wg.Done()
				res, err := h.svc.HandleWebhook(ctx, hook)
				if assert.NoError(t, err) {
					outcomes <- res.Outcome
				}
			}()
		}
		wg.Wait()
		close(outcomes)

		granted := 0
		for o := range outcomes {
			if o == OutcomeGranted {
				granted++
			} else {
				assert.Equal(t, OutcomeAlreadyProcessed, o)
			}
		}
		assert.Equal(t, 1, granted)
		assert.Equal(t, int32(1), h.payments.transitions)
		assert.Equal(t, int32(1), h.grants.applied)
		assert.Equal(t, 1, h.notes.count())
	}
}

func TestHasAccess(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	ok, err := h.svc.HasAccess(ctx, 5, RoleAdmin, "combo")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.svc.HasAccess(ctx, 5, "user", "archive")
	require.NoError(t, err)
	assert.True(t, ok, "free active plan is open")

	ok, err = h.svc.HasAccess(ctx, 5, "user", "materials")
	require.NoError(t, err)
	assert.False(t, ok)

	order, err := h.svc.CreateOrder(ctx, 5, "combo")
	require.NoError(t, err)
	_, err = h.svc.VerifyPayment(ctx, 5, VerifyRequest{
		OrderID:   order.OrderID,
		PaymentID: "pay_5",
		Signature: SignPayment(order.OrderID, "pay_5", testKeySecret),
	})
	require.NoError(t, err)

	ok, err = h.svc.HasAccess(ctx, 5, "user", "materials")
	require.NoError(t, err)
	assert.True(t, ok, "combo covers materials")

	h.svc.now = func() time.Time { return testNow.AddDate(0, 0, 366) }
	ok, err = h.svc.HasAccess(ctx, 5, "user", "materials")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.svc.HasAccess(ctx, 5, "user", "unknown")
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestGrant_NotificationFailureKeepsGrant(t *testing.T) {
	h := newHarness()
	h.notes.err = errBoom

	res, err := h.svc.CreateOrder(context.Background(), 3, "archive")
	require.NoError(t, err)
	require.NotNil(t, res.ExpiresAt)
	assert.True(t, h.grants.get(3).ArchiveUnlocked.Bool())
}

type recordedOutcomes struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *recordedOutcomes) Add(_ context.Context, source, outcome string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	r.counts[source+":"+outcome]++
	return nil
}

func TestOutcomesAreCounted(t *testing.T) {
	h := newHarness()
	rec := &recordedOutcomes{}
	WithOutcomeRecorder(rec)(h.svc)
	ctx := context.Background()

	order, err := h.svc.CreateOrder(ctx, 42, "combo")
	require.NoError(t, err)
	req := VerifyRequest{
		OrderID:   order.OrderID,
		PaymentID: "pay_1",
		Signature: SignPayment(order.OrderID, "pay_1", testKeySecret),
	}
	_, err = h.svc.VerifyPayment(ctx, 42, req)
	require.NoError(t, err)
	_, err = h.svc.VerifyPayment(ctx, 42, req)
	require.NoError(t, err)
	_, err = h.svc.HandleWebhook(ctx, signedWebhook(webhookBody(EventPaymentCaptured, order.OrderID, "pay_1", 49900), "evt_c"))
	require.NoError(t, err)
	_, err = h.svc.HandleWebhook(ctx, signedWebhook(webhookBody("payment.failed", "order_none", "pay_2", 1), "evt_d"))
	require.NoError(t, err)

	assert.Equal(t, map[string]int{
		"client:granted":            1,
		"client:already_processed":  1,
		"webhook:already_processed": 1,
		"webhook:ignored":           1,
	}, rec.counts)
}
