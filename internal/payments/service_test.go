package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"buildbidz.in/internal/models"
	"buildbidz.in/internal/payment_gateway/razorpay"
)

const (
	testKeySecret     = "test_key_secret"
	testWebhookSecret = "test_webhook_secret"
)

// fakeStore is an in-memory Store with the same conditional-update semantics
// as the SQL implementation, guarded by one mutex so concurrent tests are
// meaningful.
type fakeStore struct {
	mu       sync.Mutex
	bids     map[string]*models.Bid
	projects map[string]*models.Project
	payments map[string]*models.Payment // keyed by gateway order id

	awardApplied int // successful MarkPaidAndAward transitions
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bids:     make(map[string]*models.Bid),
		projects: make(map[string]*models.Project),
		payments: make(map[string]*models.Payment),
	}
}

func (f *fakeStore) GetBidByID(_ context.Context, id string) (*models.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.bids[id]; ok {
		copied := *b
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeStore) GetProjectByID(_ context.Context, id string) (*models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.projects[id]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeStore) GetPaymentByOrderID(_ context.Context, gatewayOrderID string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.payments[gatewayOrderID]; ok {
		copied := *p
		copied.AuditTrail = append([]models.AuditEntry(nil), p.AuditTrail...)
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeStore) GetActivePaymentByBidID(_ context.Context, bidID string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.BidID == bidID && p.Status != models.PaymentStatusFailed {
			copied := *p
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreatePayment(_ context.Context, p *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.payments[p.GatewayOrderID]; exists {
		return errors.New("duplicate gateway order id")
	}
	copied := *p
	copied.AuditTrail = append([]models.AuditEntry(nil), p.AuditTrail...)
	f.payments[p.GatewayOrderID] = &copied
	return nil
}

func (f *fakeStore) MarkPaidAndAward(_ context.Context, gatewayOrderID, gatewayPaymentID string, viaWebhook bool, entry models.AuditEntry) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[gatewayOrderID]
	if !ok {
		return false, errors.New("payment not found")
	}
	if p.Status != models.PaymentStatusCreated {
		return false, nil
	}
	p.Status = models.PaymentStatusPaid
	p.GatewayPaymentID = &gatewayPaymentID
	if viaWebhook {
		p.WebhookProcessed = true
	}
	p.AuditTrail = append(p.AuditTrail, entry)

	if b, ok := f.bids[p.BidID]; ok {
		b.Status = models.BidStatusAccepted
	}
	if proj, ok := f.projects[p.ProjectID]; ok {
		proj.Status = models.ProjectStatusAwarded
		bidID := p.BidID
		proj.AwardedBidID = &bidID
	}
	f.awardApplied++
	return true, nil
}

func (f *fakeStore) MarkWebhookProcessed(_ context.Context, gatewayOrderID, gatewayPaymentID string, entry models.AuditEntry) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[gatewayOrderID]
	if !ok {
		return false, errors.New("payment not found")
	}
	if p.WebhookProcessed {
		return false, nil
	}
	p.WebhookProcessed = true
	if p.GatewayPaymentID == nil {
		p.GatewayPaymentID = &gatewayPaymentID
	}
	p.AuditTrail = append(p.AuditTrail, entry)
	return true, nil
}

func (f *fakeStore) MarkFailed(_ context.Context, gatewayOrderID, gatewayPaymentID string, entry models.AuditEntry) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[gatewayOrderID]
	if !ok {
		return false, errors.New("payment not found")
	}
	if p.Status != models.PaymentStatusCreated || p.WebhookProcessed {
		return false, nil
	}
	p.Status = models.PaymentStatusFailed
	p.WebhookProcessed = true
	if p.GatewayPaymentID == nil && gatewayPaymentID != "" {
		p.GatewayPaymentID = &gatewayPaymentID
	}
	p.AuditTrail = append(p.AuditTrail, entry)
	return true, nil
}

func (f *fakeStore) AppendAuditEntry(_ context.Context, gatewayOrderID string, entry models.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[gatewayOrderID]
	if !ok {
		return errors.New("payment not found")
	}
	p.AuditTrail = append(p.AuditTrail, entry)
	return nil
}

// fakeGateway mints deterministic order ids; err, when set, is returned
// instead.
type fakeGateway struct {
	mu     sync.Mutex
	calls  int
	err    error
	lastID string
}

func (g *fakeGateway) CreateOrder(_ context.Context, req razorpay.CreateOrderRequest) (*razorpay.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.calls++
	g.lastID = fmt.Sprintf("order_%06d", g.calls)
	return &razorpay.Order{
		ID:       g.lastID,
		Entity:   "order",
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
	}, nil
}

func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Publish(event string, _ any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) has(event string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.events {
		if e == event {
			return true
		}
	}
	return false
}

func sign(message, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

func capturedEvent(t *testing.T, orderID, paymentID string, amount int64) []byte {
	t.Helper()
	var ev razorpay.WebhookEvent
	ev.Event = razorpay.EventPaymentCaptured
	ev.Payload.Payment.Entity = razorpay.WebhookPaymentEntity{
		ID:       paymentID,
		OrderID:  orderID,
		Status:   "captured",
		Amount:   amount,
		Currency: "INR",
	}
	body, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return body
}

func failedEvent(t *testing.T, orderID, paymentID string) []byte {
	t.Helper()
	var ev razorpay.WebhookEvent
	ev.Event = razorpay.EventPaymentFailed
	ev.Payload.Payment.Entity = razorpay.WebhookPaymentEntity{
		ID:      paymentID,
		OrderID: orderID,
		Status:  "failed",
	}
	body, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return body
}

// newFixture seeds one open project with one pending bid priced 5000.00 INR.
func newFixture() (*fakeStore, *fakeGateway, *recordingNotifier, *Service, *models.User) {
	store := newFakeStore()
	owner := &models.User{ID: "user-owner", Role: models.RoleCompany}
	store.projects["proj-1"] = &models.Project{
		ID:       "proj-1",
		OwnerID:  owner.ID,
		Status:   models.ProjectStatusOpen,
		Currency: "INR",
		Budget:   decimal.RequireFromString("10000.00"),
	}
	store.bids["bid-1"] = &models.Bid{
		ID:         "bid-1",
		ProjectID:  "proj-1",
		SupplierID: "user-supplier",
		Price:      decimal.RequireFromString("5000.00"),
		Currency:   "INR",
		Status:     models.BidStatusPending,
	}
	gateway := &fakeGateway{}
	notifier := &recordingNotifier{}
	svc := NewService(store, gateway, notifier, testKeySecret, testWebhookSecret)
	return store, gateway, notifier, svc, owner
}

func mustCreateOrder(t *testing.T, svc *Service, owner *models.User) *OrderResult {
	t.Helper()
	result, err := svc.CreateOrder(context.Background(), owner, "bid-1", "proj-1",
		decimal.RequireFromString("5000.00"), "INR", models.PaymentTypeEscrow)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	return result
}

func assertKind(t *testing.T, err error, kind Kind, code string) {
	t.Helper()
	var svcErr *Error
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected *payments.Error, got %T: %v", err, err)
	}
	if svcErr.Kind != kind {
		t.Errorf("expected kind %q, got %q (%v)", kind, svcErr.Kind, err)
	}
	if code != "" && svcErr.Code != code {
		t.Errorf("expected code %q, got %q", code, svcErr.Code)
	}
}

func TestCreateOrderSuccess(t *testing.T) {
	store, gateway, _, svc, owner := newFixture()

	result := mustCreateOrder(t, svc, owner)

	if result.Amount != 500000 {
		t.Errorf("expected 500000 minor units for 5000.00, got %d", result.Amount)
	}
	if result.OrderID != gateway.lastID {
		t.Errorf("expected order id %q, got %q", gateway.lastID, result.OrderID)
	}
	if result.PublicKey != "rzp_test_key" {
		t.Errorf("expected publishable key in result, got %q", result.PublicKey)
	}

	payment := store.payments[result.OrderID]
	if payment == nil {
		t.Fatal("payment row was not persisted")
	}
	if payment.Status != models.PaymentStatusCreated {
		t.Errorf("expected status created, got %q", payment.Status)
	}
	if payment.PayerID != owner.ID || payment.PayeeID != "user-supplier" {
		t.Errorf("wrong payer/payee: %q/%q", payment.PayerID, payment.PayeeID)
	}
	if len(payment.AuditTrail) != 1 || payment.AuditTrail[0].Action != "payment_order_created" {
		t.Errorf("expected one payment_order_created audit entry, got %+v", payment.AuditTrail)
	}
}

func TestCreateOrderPreconditions(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*fakeStore)
		bidID   string
		project string
		amount  string
		kind    Kind
		code    string
	}{
		{
			name:    "missing bid checked before missing project",
			bidID:   "no-such-bid",
			project: "no-such-project",
			amount:  "5000.00",
			kind:    KindNotFound,
			code:    "bid_not_found",
		},
		{
			name:    "missing project",
			bidID:   "bid-1",
			project: "no-such-project",
			amount:  "5000.00",
			kind:    KindNotFound,
			code:    "project_not_found",
		},
		{
			name: "bid belongs to another project",
			mutate: func(s *fakeStore) {
				s.projects["proj-2"] = &models.Project{ID: "proj-2", OwnerID: "user-owner", Status: models.ProjectStatusOpen}
			},
			bidID:   "bid-1",
			project: "proj-2",
			amount:  "5000.00",
			kind:    KindIntegrity,
			code:    "bid_project_mismatch",
		},
		{
			name: "mismatch checked before ownership",
			mutate: func(s *fakeStore) {
				s.projects["proj-3"] = &models.Project{ID: "proj-3", OwnerID: "someone-else", Status: models.ProjectStatusOpen}
			},
			bidID:   "bid-1",
			project: "proj-3",
			amount:  "5000.00",
			kind:    KindIntegrity,
			code:    "bid_project_mismatch",
		},
		{
			name: "requester does not own the project",
			mutate: func(s *fakeStore) {
				s.projects["proj-1"].OwnerID = "someone-else"
			},
			bidID:   "bid-1",
			project: "proj-1",
			amount:  "5000.00",
			kind:    KindForbidden,
			code:    "not_owner",
		},
		{
			name: "bid no longer pending",
			mutate: func(s *fakeStore) {
				s.bids["bid-1"].Status = models.BidStatusWithdrawn
			},
			bidID:   "bid-1",
			project: "proj-1",
			amount:  "5000.00",
			kind:    KindConflict,
			code:    "bid_not_pending",
		},
		{
			name:    "amount does not match the bid",
			bidID:   "bid-1",
			project: "proj-1",
			amount:  "4999.99",
			kind:    KindConflict,
			code:    "amount_mismatch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, gateway, _, svc, owner := newFixture()
			if tt.mutate != nil {
				tt.mutate(store)
			}

			_, err := svc.CreateOrder(context.Background(), owner, tt.bidID, tt.project,
				decimal.RequireFromString(tt.amount), "INR", models.PaymentTypeEscrow)
			if err == nil {
				t.Fatal("expected an error")
			}
			assertKind(t, err, tt.kind, tt.code)

			if gateway.calls != 0 {
				t.Errorf("gateway must not be called when a precondition fails, got %d calls", gateway.calls)
			}
			if len(store.payments) != 0 {
				t.Errorf("no payment row may be created when a precondition fails")
			}
		})
	}
}

func TestCreateOrderDuplicateAndRetryAfterFailure(t *testing.T) {
	store, _, _, svc, owner := newFixture()

	first := mustCreateOrder(t, svc, owner)

	_, err := svc.CreateOrder(context.Background(), owner, "bid-1", "proj-1",
		decimal.RequireFromString("5000.00"), "INR", models.PaymentTypeEscrow)
	if err == nil {
		t.Fatal("expected duplicate_payment conflict")
	}
	assertKind(t, err, KindConflict, "duplicate_payment")

	// A failed payment releases the bid for a fresh order.
	body := failedEvent(t, first.OrderID, "pay_gw_1")
	outcome, err := svc.HandleWebhook(context.Background(), body, sign(string(body), testWebhookSecret))
	if err != nil {
		t.Fatalf("HandleWebhook(failed): %v", err)
	}
	if outcome != WebhookAccepted {
		t.Fatalf("expected accepted, got %q", outcome)
	}

	second, err := svc.CreateOrder(context.Background(), owner, "bid-1", "proj-1",
		decimal.RequireFromString("5000.00"), "INR", models.PaymentTypeEscrow)
	if err != nil {
		t.Fatalf("retry after failure should succeed: %v", err)
	}
	if second.OrderID == first.OrderID {
		t.Error("retry must mint a new gateway order")
	}
	if store.payments[first.OrderID].Status != models.PaymentStatusFailed {
		t.Error("first payment should remain failed")
	}
}

func TestCreateOrderIndeterminateGateway(t *testing.T) {
	store, gateway, _, svc, owner := newFixture()
	gateway.err = fmt.Errorf("%w: connection reset", razorpay.ErrIndeterminate)

	_, err := svc.CreateOrder(context.Background(), owner, "bid-1", "proj-1",
		decimal.RequireFromString("5000.00"), "INR", models.PaymentTypeEscrow)
	if err == nil {
		t.Fatal("expected indeterminate error")
	}
	assertKind(t, err, KindIndeterminate, "order_indeterminate")
	if len(store.payments) != 0 {
		t.Error("no local row may exist for an indeterminate order")
	}
}

func TestVerifyClientConfirmation(t *testing.T) {
	store, _, notifier, svc, owner := newFixture()
	result := mustCreateOrder(t, svc, owner)

	gatewayPaymentID := "pay_gw_42"
	signature := sign(razorpay.ClientConfirmationMessage(result.OrderID, gatewayPaymentID), testKeySecret)

	verification, err := svc.VerifyClientConfirmation(context.Background(), owner, result.OrderID, gatewayPaymentID, signature)
	if err != nil {
		t.Fatalf("VerifyClientConfirmation: %v", err)
	}
	if !verification.BidAwarded || verification.AlreadyVerified {
		t.Errorf("expected fresh award, got %+v", verification)
	}
	if verification.Payment.Status != models.PaymentStatusPaid {
		t.Errorf("expected paid summary, got %q", verification.Payment.Status)
	}

	if store.bids["bid-1"].Status != models.BidStatusAccepted {
		t.Error("bid was not accepted")
	}
	proj := store.projects["proj-1"]
	if proj.Status != models.ProjectStatusAwarded || proj.AwardedBidID == nil || *proj.AwardedBidID != "bid-1" {
		t.Errorf("project was not awarded: %+v", proj)
	}
	if !notifier.has("payment.verified") {
		t.Error("payment.verified notification was not published")
	}

	// Second confirmation is a benign no-op.
	again, err := svc.VerifyClientConfirmation(context.Background(), owner, result.OrderID, gatewayPaymentID, signature)
	if err != nil {
		t.Fatalf("repeat confirmation must not error: %v", err)
	}
	if !again.AlreadyVerified || !again.BidAwarded {
		t.Errorf("expected already-verified result, got %+v", again)
	}
	if store.awardApplied != 1 {
		t.Errorf("award transition must apply exactly once, applied %d times", store.awardApplied)
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	store, _, _, svc, owner := newFixture()
	result := mustCreateOrder(t, svc, owner)

	signature := sign(razorpay.ClientConfirmationMessage(result.OrderID, "pay_gw_42"), testKeySecret)
	// Flip one hex digit.
	tampered := []byte(signature)
	if tampered[0] == 'a' {
		tampered[0] = 'b'
	} else {
		tampered[0] = 'a'
	}

	_, err := svc.VerifyClientConfirmation(context.Background(), owner, result.OrderID, "pay_gw_42", string(tampered))
	if err == nil {
		t.Fatal("expected signature rejection")
	}
	assertKind(t, err, KindSecurity, "invalid_signature")

	if store.payments[result.OrderID].Status != models.PaymentStatusCreated {
		t.Error("payment must stay in created after a rejected signature")
	}
}

func TestVerifyRejectsNonPayer(t *testing.T) {
	_, _, _, svc, owner := newFixture()
	result := mustCreateOrder(t, svc, owner)

	intruder := &models.User{ID: "user-intruder", Role: models.RoleCompany}
	signature := sign(razorpay.ClientConfirmationMessage(result.OrderID, "pay_gw_42"), testKeySecret)

	_, err := svc.VerifyClientConfirmation(context.Background(), intruder, result.OrderID, "pay_gw_42", signature)
	if err == nil {
		t.Fatal("expected forbidden")
	}
	assertKind(t, err, KindForbidden, "not_payer")
}

func TestVerifyUnknownOrder(t *testing.T) {
	_, _, _, svc, owner := newFixture()
	_, err := svc.VerifyClientConfirmation(context.Background(), owner, "order_missing", "pay_gw_1", "deadbeef")
	if err == nil {
		t.Fatal("expected not found")
	}
	assertKind(t, err, KindNotFound, "payment_not_found")
}

func TestClientWebhookRace(t *testing.T) {
	store, _, _, svc, owner := newFixture()
	result := mustCreateOrder(t, svc, owner)

	gatewayPaymentID := "pay_gw_race"
	clientSig := sign(razorpay.ClientConfirmationMessage(result.OrderID, gatewayPaymentID), testKeySecret)
	body := capturedEvent(t, result.OrderID, gatewayPaymentID, 500000)
	webhookSig := sign(string(body), testWebhookSecret)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := svc.VerifyClientConfirmation(context.Background(), owner, result.OrderID, gatewayPaymentID, clientSig)
		if err != nil {
			t.Errorf("client confirmation in race: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		_, err := svc.HandleWebhook(context.Background(), body, webhookSig)
		if err != nil {
			t.Errorf("webhook in race: %v", err)
		}
	}()
	wg.Wait()

	if store.awardApplied != 1 {
		t.Fatalf("award transition must apply exactly once, applied %d times", store.awardApplied)
	}
	payment := store.payments[result.OrderID]
	if payment.Status != models.PaymentStatusPaid {
		t.Errorf("expected paid, got %q", payment.Status)
	}
	if !payment.WebhookProcessed {
		t.Error("webhook delivery must be recorded regardless of who won the race")
	}
	if store.bids["bid-1"].Status != models.BidStatusAccepted {
		t.Error("bid was not accepted")
	}
}

func TestWebhookCapturedLifecycle(t *testing.T) {
	store, _, notifier, svc, owner := newFixture()
	result := mustCreateOrder(t, svc, owner)

	if result.Amount != 500000 {
		t.Fatalf("expected 500000 paise for 5000.00, got %d", result.Amount)
	}

	body := capturedEvent(t, result.OrderID, "pay_gw_7", 500000)
	signature := sign(string(body), testWebhookSecret)

	outcome, err := svc.HandleWebhook(context.Background(), body, signature)
	if err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if outcome != WebhookAccepted {
		t.Fatalf("expected accepted, got %q", outcome)
	}

	payment := store.payments[result.OrderID]
	if payment.Status != models.PaymentStatusPaid || !payment.WebhookProcessed {
		t.Errorf("expected paid+processed, got status=%q processed=%v", payment.Status, payment.WebhookProcessed)
	}
	if payment.GatewayPaymentID == nil || *payment.GatewayPaymentID != "pay_gw_7" {
		t.Error("gateway payment id was not recorded")
	}
	if !notifier.has("payment.captured") {
		t.Error("payment.captured notification was not published")
	}

	// Redelivery is a no-op acknowledgement.
	outcome, err = svc.HandleWebhook(context.Background(), body, signature)
	if err != nil {
		t.Fatalf("redelivery must not error: %v", err)
	}
	if outcome != WebhookAlreadyProcessed {
		t.Errorf("expected already_processed, got %q", outcome)
	}
	if store.awardApplied != 1 {
		t.Errorf("award transition must apply exactly once, applied %d times", store.awardApplied)
	}
}

func TestWebhookSignatureRequired(t *testing.T) {
	_, _, _, svc, owner := newFixture()
	result := mustCreateOrder(t, svc, owner)
	body := capturedEvent(t, result.OrderID, "pay_gw_1", 500000)

	t.Run("missing signature", func(t *testing.T) {
		_, err := svc.HandleWebhook(context.Background(), body, "")
		if err == nil {
			t.Fatal("expected rejection")
		}
		assertKind(t, err, KindSecurity, "missing_signature")
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := svc.HandleWebhook(context.Background(), body, sign(string(body), "wrong_secret"))
		if err == nil {
			t.Fatal("expected rejection")
		}
		assertKind(t, err, KindSecurity, "invalid_signature")
	})

	t.Run("body altered after signing", func(t *testing.T) {
		signature := sign(string(body), testWebhookSecret)
		altered := append([]byte(nil), body...)
		altered[len(altered)-2] ^= 0x01
		_, err := svc.HandleWebhook(context.Background(), altered, signature)
		if err == nil {
			t.Fatal("expected rejection")
		}
		assertKind(t, err, KindSecurity, "invalid_signature")
	})
}

func TestWebhookMalformedBody(t *testing.T) {
	_, _, _, svc, _ := newFixture()
	body := []byte(`{"event":`)
	_, err := svc.HandleWebhook(context.Background(), body, sign(string(body), testWebhookSecret))
	if err == nil {
		t.Fatal("expected rejection")
	}
	assertKind(t, err, KindIntegrity, "malformed_event")
}

func TestWebhookUnknownOrderAcknowledged(t *testing.T) {
	_, _, _, svc, _ := newFixture()
	body := capturedEvent(t, "order_unknown", "pay_gw_1", 500000)
	outcome, err := svc.HandleWebhook(context.Background(), body, sign(string(body), testWebhookSecret))
	if err != nil {
		t.Fatalf("unknown order must be acknowledged: %v", err)
	}
	if outcome != WebhookIgnored {
		t.Errorf("expected ignored, got %q", outcome)
	}
}

func TestWebhookUnhandledEventIgnored(t *testing.T) {
	_, _, _, svc, _ := newFixture()
	body := []byte(`{"event":"refund.processed","payload":{}}`)
	outcome, err := svc.HandleWebhook(context.Background(), body, sign(string(body), testWebhookSecret))
	if err != nil {
		t.Fatalf("unhandled events must be acknowledged: %v", err)
	}
	if outcome != WebhookIgnored {
		t.Errorf("expected ignored, got %q", outcome)
	}
}

func TestWebhookAmountMismatchDisputePolicy(t *testing.T) {
	store, _, _, svc, owner := newFixture()
	result := mustCreateOrder(t, svc, owner)

	body := capturedEvent(t, result.OrderID, "pay_gw_bad", 499999)
	signature := sign(string(body), testWebhookSecret)

	// First two deliveries are hard rejections so the gateway retries.
	for i := 1; i <= 2; i++ {
		_, err := svc.HandleWebhook(context.Background(), body, signature)
		if err == nil {
			t.Fatalf("delivery %d: expected rejection", i)
		}
		assertKind(t, err, KindIntegrity, "amount_mismatch")
	}

	// The third is acknowledged as disputed; the payment stays unpaid.
	outcome, err := svc.HandleWebhook(context.Background(), body, signature)
	if err != nil {
		t.Fatalf("third delivery must be acknowledged: %v", err)
	}
	if outcome != WebhookDisputed {
		t.Errorf("expected disputed, got %q", outcome)
	}

	payment := store.payments[result.OrderID]
	if payment.Status != models.PaymentStatusCreated {
		t.Errorf("payment must stay unpaid through the dispute, got %q", payment.Status)
	}
	if payment.WebhookProcessed {
		t.Error("mismatched deliveries must not be marked processed")
	}

	mismatches := 0
	for _, e := range payment.AuditTrail {
		if e.Action == "webhook_amount_mismatch" {
			mismatches++
		}
	}
	if mismatches != 3 {
		t.Errorf("expected 3 mismatch audit entries, got %d", mismatches)
	}

	// A correct delivery still completes the payment afterwards.
	good := capturedEvent(t, result.OrderID, "pay_gw_good", 500000)
	outcome, err = svc.HandleWebhook(context.Background(), good, sign(string(good), testWebhookSecret))
	if err != nil {
		t.Fatalf("correct delivery after dispute: %v", err)
	}
	if outcome != WebhookAccepted {
		t.Errorf("expected accepted, got %q", outcome)
	}
	if store.payments[result.OrderID].Status != models.PaymentStatusPaid {
		t.Error("payment should be paid after the corrected delivery")
	}
}

func TestWebhookFailedEvent(t *testing.T) {
	store, _, notifier, svc, owner := newFixture()
	result := mustCreateOrder(t, svc, owner)

	body := failedEvent(t, result.OrderID, "pay_gw_1")
	outcome, err := svc.HandleWebhook(context.Background(), body, sign(string(body), testWebhookSecret))
	if err != nil {
		t.Fatalf("HandleWebhook(failed): %v", err)
	}
	if outcome != WebhookAccepted {
		t.Errorf("expected accepted, got %q", outcome)
	}
	if store.payments[result.OrderID].Status != models.PaymentStatusFailed {
		t.Error("payment was not marked failed")
	}
	if !notifier.has("payment.failed") {
		t.Error("payment.failed notification was not published")
	}

	// A failed event must not flip an already-paid payment.
	store.payments[result.OrderID].Status = models.PaymentStatusPaid
	store.payments[result.OrderID].WebhookProcessed = true
	outcome, err = svc.HandleWebhook(context.Background(), body, sign(string(body), testWebhookSecret))
	if err != nil {
		t.Fatalf("failed redelivery must not error: %v", err)
	}
	if outcome != WebhookAlreadyProcessed {
		t.Errorf("expected already_processed, got %q", outcome)
	}
}
