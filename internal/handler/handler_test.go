package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-faster/errors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eubiosis/checkout/internal/domain/auth"
	"github.com/eubiosis/checkout/internal/domain/cart"
	"github.com/eubiosis/checkout/internal/domain/checkout"
	"github.com/eubiosis/checkout/internal/domain/notify"
	"github.com/eubiosis/checkout/internal/domain/order"
	"github.com/eubiosis/checkout/internal/domain/subscriber"
	"github.com/eubiosis/checkout/internal/effect"
	"github.com/eubiosis/checkout/internal/payfast"
	redisstore "github.com/eubiosis/checkout/internal/storage/redis"
)

// --- Mock implementations ---

type mockOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*order.Order
	err    error
	reads  int
}

func (m *mockOrderRepo) Create(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	o.ID = "3f2a9c1e-0000-4000-8000-000000000001"
	o.CreatedAt = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	m.orders[o.ID] = o
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

type mockMailer struct {
	mu    sync.Mutex
	types []notify.EmailType
	proof []notify.ProofSummary
	fail  bool
}

func (m *mockMailer) result(name string) effect.Result[string] {
	if m.fail {
		return effect.Result[string]{Name: name, Err: errors.New("brevo down")}
	}
	return effect.Result[string]{Name: name, Value: "<msg@brevo>"}
}

func (m *mockMailer) OrderEmails(_ context.Context, typ notify.EmailType, _ notify.Summary) []effect.Result[string] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.types = append(m.types, typ)
	return []effect.Result[string]{
		m.result("email.admin-" + string(typ)),
		m.result("email.customer-" + string(typ)),
	}
}

func (m *mockMailer) EFTProof(_ context.Context, s notify.ProofSummary) effect.Result[string] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.proof = append(m.proof, s)
	return m.result("email.admin-eft-proof")
}

type mockProofStore struct {
	uploaded []checkout.Proof
	err      error
}

func (m *mockProofStore) Upload(_ context.Context, p checkout.Proof) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.uploaded = append(m.uploaded, p)
	return "https://storage.example/eft/" + p.Filename, nil
}

type mockSubscriberRepo struct {
	emails map[string]bool
}

func (m *mockSubscriberRepo) Insert(_ context.Context, s subscriber.Subscriber) (bool, error) {
	if m.emails[s.Email] {
		return false, nil
	}
	m.emails[s.Email] = true
	return true, nil
}

func (m *mockSubscriberRepo) Exists(_ context.Context, email string) (bool, error) {
	return m.emails[email], nil
}

func (m *mockSubscriberRepo) Emails(_ context.Context, fn func(string) error) error {
	for e := range m.emails {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// --- Helpers ---

const (
	testPepper   = "pepper"
	testAdminKey = "back-office-key"
)

type fixture struct {
	srv    *httptest.Server
	orders *mockOrderRepo
	mailer *mockMailer
	proofs *mockProofStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &fixture{
		orders: &mockOrderRepo{orders: map[string]*order.Order{}},
		mailer: &mockMailer{},
		proofs: &mockProofStore{},
	}

	svc, err := checkout.NewService(checkout.Deps{
		Sessions: redisstore.NewSessionStore(client, time.Hour),
		Orders:   f.orders,
		Notifier: f.mailer,
		Proofs:   f.proofs,
		Gateway:  payfast.NewBuilder(payfast.Config{MerchantID: "10000100", MerchantKey: "46f0cd694581a"}),
	}, checkout.Config{})
	require.NoError(t, err)

	keys, err := auth.ParseStaticKeys([]string{"ops:" + auth.Hash(testAdminKey, []byte(testPepper))})
	require.NoError(t, err)

	h := NewHandler(HandlerConfig{RedirectDelay: 0}, Deps{
		Checkout:    svc,
		Cart:        cart.NewService(redisstore.NewCartStore(client, time.Hour)),
		Subscribers: subscriber.NewService(&mockSubscriberRepo{emails: map[string]bool{}}),
		Orders:      f.orders,
		Mailer:      f.mailer,
		APIKeys:     keys,
		Pepper:      []byte(testPepper),
	})
	f.srv = httptest.NewServer(h.Routes())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	return f.send(t, req)
}

func (f *fixture) send(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func (f *fixture) start(t *testing.T, body string) string {
	t.Helper()
	status, out := f.do(t, http.MethodPost, "/api/checkout", body)
	require.Equal(t, http.StatusCreated, status, out)
	return out["id"].(string)
}

const customerBody = `{
	"fullName": "Thandi Mokoena",
	"email": "thandi@example.co.za",
	"phone": "0821234567",
	"address": "12 Long Street",
	"city": "Cape Town",
	"postalCode": "8001"
}`

// toModal starts a checkout and drives it to the payment method modal.
func (f *fixture) toModal(t *testing.T, startBody string) string {
	t.Helper()
	id := f.start(t, startBody)

	status, out := f.do(t, http.MethodPost, "/api/checkout/"+id+"/continue", "")
	require.Equal(t, http.StatusOK, status, out)
	status, out = f.do(t, http.MethodPut, "/api/checkout/"+id+"/customer", customerBody)
	require.Equal(t, http.StatusOK, status, out)
	status, out = f.do(t, http.MethodPost, "/api/checkout/"+id+"/continue", "")
	require.Equal(t, http.StatusOK, status, out)
	require.Equal(t, "payment-method", out["step"])
	return id
}

func proofRequest(t *testing.T, url, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if data != nil {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// --- Tests ---

func TestQuote(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		query  string
		status int
		total  float64
	}{
		{name: "single 50ml", query: "size=50ml&quantity=1", status: http.StatusOK, total: 324},
		{name: "two 100ml", query: "size=100ml&quantity=2", status: http.StatusOK, total: 1089},
		{name: "unknown size", query: "size=75ml&quantity=1", status: http.StatusBadRequest},
		{name: "zero quantity", query: "size=50ml&quantity=0", status: http.StatusBadRequest},
		{name: "bad number", query: "size=50ml&quantity=two", status: http.StatusBadRequest},
		{name: "free bundle", query: "size=50ml&quantity=3&bundle=true&bundleDiscount=100", status: http.StatusBadRequest},
		{name: "unknown offer", query: "size=50ml&quantity=1&oto=offer9", status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, out := f.do(t, http.MethodGet, "/api/pricing/quote?"+tt.query, "")
			require.Equal(t, tt.status, status, out)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.total, out["total"])
			} else {
				assert.NotEmpty(t, out["code"])
			}
		})
	}
}

func TestQuote_OfferPriceFromCatalog(t *testing.T) {
	f := newFixture(t)

	status, out := f.do(t, http.MethodGet, "/api/pricing/quote?size=50ml&quantity=1&oto=offer1&otoPrice=0.01", "")
	require.Equal(t, http.StatusOK, status, out)
	assert.Equal(t, float64(245), out["otoPrice"])
}

func TestFunnelAndCatalog(t *testing.T) {
	f := newFixture(t)

	status, out := f.do(t, http.MethodGet, "/api/funnel/upsell?size=50ml&quantity=1", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(3), out["quantity"])
	assert.Equal(t, float64(20), out["discountPercent"])

	resp, err := http.Get(f.srv.URL + "/api/provinces")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	var provinces []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&provinces))
	assert.Len(t, provinces, len(checkout.Provinces))
}

func TestCart(t *testing.T) {
	f := newFixture(t)

	status, out := f.do(t, http.MethodPost, "/api/cart/browser-1/items", `{"size":"50ml","quantity":3,"bundle":true}`)
	require.Equal(t, http.StatusOK, status, out)
	assert.Equal(t, float64(3), out["itemCount"])

	status, out = f.do(t, http.MethodPatch, "/api/cart/browser-1/items", `{"size":"50ml","quantity":1}`)
	require.Equal(t, http.StatusOK, status, out)
	assert.Equal(t, float64(1), out["itemCount"])

	status, out = f.do(t, http.MethodDelete, "/api/cart/browser-1/items?size=50ml", "")
	require.Equal(t, http.StatusOK, status, out)
	assert.Equal(t, float64(0), out["itemCount"])

	status, _ = f.do(t, http.MethodDelete, "/api/cart/browser-1", "")
	assert.Equal(t, http.StatusNoContent, status)

	status, out = f.do(t, http.MethodPost, "/api/cart/browser-1/items", `{"size":"50ml","quantity":0}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_item", out["code"])
}

func TestStartCheckout_Validation(t *testing.T) {
	f := newFixture(t)

	status, out := f.do(t, http.MethodPost, "/api/checkout", `{"size":"50ml","quantity":0}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_quantity", out["code"])

	status, out = f.do(t, http.MethodPost, "/api/checkout", `{"size":"75ml","quantity":1}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "unknown_size", out["code"])

	status, _ = f.do(t, http.MethodPost, "/api/checkout", `{"size":`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, out = f.do(t, http.MethodGet, "/api/checkout/missing", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "session_not_found", out["code"])
}

func TestStartCheckout_ClientPrices(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body string
		code string
	}{
		{name: "free bottles", body: `{"size":"50ml","quantity":3,"bundle":true,"upsellDiscount":100}`, code: "invalid_discount"},
		{name: "negative total", body: `{"size":"50ml","quantity":3,"bundle":true,"upsellDiscount":150}`, code: "invalid_discount"},
		{name: "discount not offered", body: `{"size":"50ml","quantity":3,"bundle":true,"upsellDiscount":50}`, code: "invalid_discount"},
		{name: "cheap offer", body: `{"size":"50ml","quantity":1,"oto":"offer2","otoPrice":0.01}`, code: "offer_price_mismatch"},
		{name: "unknown offer", body: `{"size":"50ml","quantity":1,"oto":"offer9"}`, code: "unknown_offer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, out := f.do(t, http.MethodPost, "/api/checkout", tt.body)
			require.Equal(t, http.StatusBadRequest, status, out)
			assert.Equal(t, tt.code, out["code"])
		})
	}

	status, out := f.do(t, http.MethodPost, "/api/checkout", `{"size":"50ml","quantity":3,"bundle":true,"upsellDiscount":20,"oto":"offer2"}`)
	require.Equal(t, http.StatusCreated, status, out)
	draft := out["draft"].(map[string]any)
	assert.Equal(t, float64(20), draft["bundleDiscountPercent"])
	assert.Equal(t, float64(940), draft["otoPrice"])
}

func TestCheckout_IncompleteDetails(t *testing.T) {
	f := newFixture(t)
	id := f.start(t, `{"size":"50ml","quantity":1}`)

	status, out := f.do(t, http.MethodPost, "/api/checkout/"+id+"/continue", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "customer-details", out["step"])
	assert.Equal(t, false, out["canContinue"])

	status, out = f.do(t, http.MethodPost, "/api/checkout/"+id+"/continue", "")
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "incomplete_details", out["code"])
	assert.NotEmpty(t, out["missing"])

	_, out = f.do(t, http.MethodGet, "/api/checkout/"+id, "")
	assert.Equal(t, "customer-details", out["step"])
}

func TestCheckout_GatewayWithProvince(t *testing.T) {
	f := newFixture(t)
	id := f.toModal(t, `{"size":"50ml","quantity":1,"province":"Western Cape"}`)

	status, out := f.do(t, http.MethodPost, "/api/checkout/"+id+"/payment-method", `{"method":"payfast"}`)
	require.Equal(t, http.StatusOK, status, out)

	sess := out["session"].(map[string]any)
	assert.Equal(t, "completed", sess["step"])
	assert.Equal(t, "EB3F2A9C1E", sess["orderNumber"])

	payment := out["payment"].(map[string]any)
	fields := payment["fields"].(map[string]any)
	assert.Equal(t, "324.00", fields["amount"])
	assert.Equal(t, "Thandi", fields["name_first"])
	assert.Equal(t, "Mokoena", fields["name_last"])
	assert.NotEmpty(t, fields["signature"])
	assert.Equal(t, "/api/checkout/"+id+"/redirect", out["redirectUrl"])

	assert.Equal(t, []notify.EmailType{notify.EmailPending}, f.mailer.types)

	// Paying again returns the same form without new side effects.
	status, again := f.do(t, http.MethodPost, "/api/checkout/"+id+"/pay", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, fields["signature"], again["payment"].(map[string]any)["fields"].(map[string]any)["signature"])
	assert.Len(t, f.mailer.types, 1)

	resp, err := http.Get(f.srv.URL + "/api/checkout/" + id + "/redirect")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	status, out = f.do(t, http.MethodGet, "/api/orders/3f2a9c1e-0000-4000-8000-000000000001", "")
	require.Equal(t, http.StatusOK, status, out)
	assert.Equal(t, "pending", out["status"])
	assert.Equal(t, float64(324), out["total"])
}

func TestCheckout_CustomerFrozenAtPayment(t *testing.T) {
	f := newFixture(t)
	id := f.toModal(t, `{"size":"50ml","quantity":1}`)

	status, out := f.do(t, http.MethodPost, "/api/checkout/"+id+"/payment-method", `{"method":"eft"}`)
	require.Equal(t, http.StatusOK, status, out)

	status, out = f.do(t, http.MethodPut, "/api/checkout/"+id+"/customer", `{"fullName":"","email":"","phone":""}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "invalid_transition", out["code"])

	_, out = f.do(t, http.MethodGet, "/api/checkout/"+id, "")
	customer := out["customer"].(map[string]any)
	assert.Equal(t, "thandi@example.co.za", customer["email"])
}

func TestGetOrder_MalformedID(t *testing.T) {
	f := newFixture(t)

	status, out := f.do(t, http.MethodGet, "/api/orders/not-a-uuid", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "order_not_found", out["code"])
	assert.Zero(t, f.orders.reads)

	status, out = f.do(t, http.MethodGet, "/api/orders/9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "order_not_found", out["code"])
	assert.Equal(t, 1, f.orders.reads)
}

func TestCheckout_GatewayWithoutProvince(t *testing.T) {
	f := newFixture(t)
	id := f.toModal(t, `{"size":"50ml","quantity":1}`)

	status, out := f.do(t, http.MethodPost, "/api/checkout/"+id+"/payment-method", `{"method":"gateway"}`)
	require.Equal(t, http.StatusOK, status, out)
	assert.Nil(t, out["payment"])
	assert.Equal(t, "payment", out["session"].(map[string]any)["step"])

	status, out = f.do(t, http.MethodPost, "/api/checkout/"+id+"/pay", "")
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "province_required", out["code"])

	status, out = f.do(t, http.MethodPost, "/api/checkout/"+id+"/irresistible-offer", "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "offer_unavailable", out["code"])

	status, out = f.do(t, http.MethodPut, "/api/checkout/"+id+"/province", `{"province":"Gauteng"}`)
	require.Equal(t, http.StatusOK, status, out)
	assert.Equal(t, true, out["irresistibleOfferAvailable"])

	status, out = f.do(t, http.MethodPost, "/api/checkout/"+id+"/irresistible-offer", "")
	require.Equal(t, http.StatusOK, status, out)
	assert.Equal(t, float64(559), out["totals"].(map[string]any)["total"])

	status, out = f.do(t, http.MethodPost, "/api/checkout/"+id+"/pay", "")
	require.Equal(t, http.StatusOK, status, out)
	assert.Equal(t, "559.00", out["payment"].(map[string]any)["fields"].(map[string]any)["amount"])
}

func TestCheckout_ManualTransfer(t *testing.T) {
	f := newFixture(t)
	id := f.toModal(t, `{"size":"50ml","quantity":1}`)

	status, out := f.do(t, http.MethodPost, "/api/checkout/"+id+"/payment-method", `{"method":"eft"}`)
	require.Equal(t, http.StatusOK, status, out)

	status, out = f.do(t, http.MethodPost, "/api/checkout/"+id+"/seller-contacted", "")
	require.Equal(t, http.StatusOK, status, out)
	assert.Contains(t, out["whatsappUrl"], "https://wa.me/")

	status, out = f.send(t, proofRequest(t, f.srv.URL+"/api/checkout/"+id+"/proof", "", nil))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "proof_required", out["code"])

	status, out = f.send(t, proofRequest(t, f.srv.URL+"/api/checkout/"+id+"/proof", "proof.pdf", []byte("%PDF-1.4")))
	require.Equal(t, http.StatusOK, status, out)
	assert.Equal(t, "completed", out["step"])
	assert.Equal(t, "https://storage.example/eft/proof.pdf", out["proofUrl"])

	require.Len(t, f.proofs.uploaded, 1)
	assert.Equal(t, "thandi@example.co.za", f.proofs.uploaded[0].Email)
	require.Len(t, f.mailer.proof, 1)

	status, out = f.do(t, http.MethodPost, "/api/checkout/"+id+"/pay", "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "already_completed", out["code"])
}

func TestCheckout_ProofUploadFailure(t *testing.T) {
	f := newFixture(t)
	f.proofs.err = errors.New("storage unavailable")
	id := f.toModal(t, `{"size":"100ml","quantity":1}`)

	status, _ := f.do(t, http.MethodPost, "/api/checkout/"+id+"/payment-method", `{"method":"manual"}`)
	require.Equal(t, http.StatusOK, status)

	status, out := f.send(t, proofRequest(t, f.srv.URL+"/api/checkout/"+id+"/proof", "proof.jpg", []byte("jpeg")))
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "proof_upload_failed", out["code"])

	_, out = f.do(t, http.MethodGet, "/api/checkout/"+id, "")
	assert.Equal(t, "payment", out["step"])
}

func TestCheckout_UnknownPaymentMethod(t *testing.T) {
	f := newFixture(t)
	id := f.toModal(t, `{"size":"50ml","quantity":1}`)

	status, out := f.do(t, http.MethodPost, "/api/checkout/"+id+"/payment-method", `{"method":"bitcoin"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "unknown_payment_method", out["code"])
}

func TestSubscribe(t *testing.T) {
	f := newFixture(t)

	status, out := f.do(t, http.MethodPost, "/api/subscribe", `{"email":"Thandi@Example.co.za","source":"exit-popup"}`)
	require.Equal(t, http.StatusCreated, status, out)
	assert.Equal(t, true, out["created"])

	status, out = f.do(t, http.MethodPost, "/api/subscribe", `{"email":"thandi@example.co.za"}`)
	require.Equal(t, http.StatusOK, status, out)
	assert.Equal(t, false, out["created"])

	status, out = f.do(t, http.MethodPost, "/api/subscribe", `{"email":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_email", out["code"])
}

func TestAdminNotifications(t *testing.T) {
	const body = `{
		"emailType": "purchased",
		"customerName": "Thandi Mokoena",
		"customerEmail": "thandi@example.co.za",
		"size": "50ml",
		"quantity": 2,
		"totalPrice": 559
	}`

	t.Run("Unauthorized", func(t *testing.T) {
		f := newFixture(t)
		status, out := f.do(t, http.MethodPost, "/api/admin/notifications", body)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "unauthorized", out["code"])
	})

	t.Run("WrongKey", func(t *testing.T) {
		f := newFixture(t)
		req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/api/admin/notifications", strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set(APIKeyHeader, "guess")
		status, _ := f.send(t, req)
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("Sent", func(t *testing.T) {
		f := newFixture(t)
		req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/api/admin/notifications", strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set(APIKeyHeader, testAdminKey)
		status, out := f.send(t, req)
		require.Equal(t, http.StatusOK, status, out)
		assert.Equal(t, true, out["sent"])
		assert.Len(t, out["results"], 2)
		assert.Equal(t, []notify.EmailType{notify.EmailPurchased}, f.mailer.types)
	})

	t.Run("AllFailed", func(t *testing.T) {
		f := newFixture(t)
		f.mailer.fail = true
		req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/api/admin/notifications", strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set(APIKeyHeader, testAdminKey)
		status, out := f.send(t, req)
		assert.Equal(t, http.StatusBadGateway, status)
		assert.Equal(t, false, out["sent"])
	})

	t.Run("UnknownType", func(t *testing.T) {
		f := newFixture(t)
		req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/api/admin/notifications",
			strings.NewReader(`{"emailType":"refund","size":"50ml","quantity":1}`))
		require.NoError(t, err)
		req.Header.Set(APIKeyHeader, testAdminKey)
		status, out := f.send(t, req)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "unknown_email_type", out["code"])
	})
}
