package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderdomain "github.com/dmehra2102/event-pos/internal/order/domain"
	paymentapp "github.com/dmehra2102/event-pos/internal/payment/application"
	paymentdomain "github.com/dmehra2102/event-pos/internal/payment/domain"
	"github.com/dmehra2102/event-pos/internal/pix/domain"
	"github.com/dmehra2102/event-pos/internal/testkit"
	"github.com/dmehra2102/event-pos/pkg/access"
	"github.com/dmehra2102/event-pos/pkg/httpx"
	"github.com/dmehra2102/event-pos/pkg/logging"
)

const (
	jwtSecret     = "test-secret"
	webhookSecret = "hook-secret"
)

func newServer(t *testing.T) (*httptest.Server, *testkit.Kit) {
	t.Helper()
	k := testkit.New(t, testkit.Options{})
	h := NewHandler(logging.Discard(), k.Charges, k.Reconciler, webhookSecret)

	r := chi.NewRouter()
	r.Use(httpx.Authenticate(jwtSecret))
	r.Mount("/pix", h.Routes())
	r.Mount("/webhooks", h.WebhookRoutes())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, k
}

func post(t *testing.T, srv *httptest.Server, path, body string, header map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func bearer(t *testing.T, c access.Caller) map[string]string {
	t.Helper()
	token, err := httpx.IssueToken(jwtSecret, c, time.Hour)
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func pixCharge(t *testing.T, k *testkit.Kit) (orderdomain.Order, *domain.Charge) {
	t.Helper()
	o := k.PlaceOrder(t)
	r, err := k.Payments.Process(context.Background(), testkit.Customer, paymentapp.ProcessInput{
		OrderID: o.ID,
		Method:  paymentdomain.MethodPix,
	})
	require.NoError(t, err)
	return o, r.Charge
}

func TestWebhookPaysOrder(t *testing.T) {
	srv, k := newServer(t)
	o, c := pixCharge(t, k)
	body := fmt.Sprintf(`{"pix":[{"endToEndId":"E1","txid":%q,"valor":"35.00","horario":"2024-05-01T12:00:00Z"}]}`, c.PSPTransactionID)

	resp := post(t, srv, "/webhooks/bank/pix", body, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	hdr := map[string]string{SecretHeader: webhookSecret}
	for range 2 {
		resp = post(t, srv, "/webhooks/bank/pix", body, hdr)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var events []webhookEventResp
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&events))
		require.Len(t, events, 1)
		assert.True(t, events[0].Processed)
	}
	assert.Equal(t, orderdomain.StatusPaid, k.Order(t, o.ID).Status)
}

func TestWebhookKeepsMalformedBody(t *testing.T) {
	srv, _ := newServer(t)

	resp := post(t, srv, "/webhooks/bank/pix", `{"pix":`, map[string]string{SecretHeader: webhookSecret})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var events []webhookEventResp
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&events))
	require.Len(t, events, 1)
	assert.False(t, events[0].Processed)
	assert.NotEmpty(t, events[0].LastError)
}

func TestWebhookRejectsOversizedBody(t *testing.T) {
	srv, k := newServer(t)
	_, c := pixCharge(t, k)
	entry := fmt.Sprintf(`{"endToEndId":"E1","txid":%q,"valor":"35.00","pad":%q}`,
		c.PSPTransactionID, strings.Repeat("x", maxWebhookBody))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/bank/pix", strings.NewReader(`{"pix":[`+entry+`]}`))
	req.Header.Set(SecretHeader, webhookSecret)
	rec := httptest.NewRecorder()
	srv.Config.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	got, err := k.Charges.GetByTransactionID(context.Background(), testkit.Customer, c.PSPTransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.ChargeActive, got.Status)
}

func TestReplayNeedsOperator(t *testing.T) {
	srv, k := newServer(t)
	ev, err := k.Reconciler.Ingest(context.Background(), domain.Notification{PSPTransactionID: "nope"})
	require.NoError(t, err)

	resp := post(t, srv, "/webhooks/events/"+ev.ID+"/replay", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp = post(t, srv, "/webhooks/events/"+ev.ID+"/replay", "", bearer(t, testkit.Manager))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = post(t, srv, "/webhooks/events/"+ev.ID+"/replay", "", bearer(t, testkit.Admin))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out webhookEventResp
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 2, out.Attempts)
}

func TestChargeRoutes(t *testing.T) {
	srv, k := newServer(t)
	o, c := pixCharge(t, k)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/pix/charges/txid/"+c.PSPTransactionID, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", bearer(t, testkit.Customer)["Authorization"])
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got chargeResp
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, c.ID, got.ID)
	assert.False(t, got.Expired)
	assert.Equal(t, domain.ChargeActive, got.Status)

	resp = post(t, srv, "/pix/charges", fmt.Sprintf(`{"order_id":%q}`, o.ID), bearer(t, testkit.Customer))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var fresh chargeResp
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fresh))
	assert.NotEqual(t, c.PSPTransactionID, fresh.TransactionID)
}
