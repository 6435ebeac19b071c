package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderdomain "github.com/dmehra2102/event-pos/internal/order/domain"
	"github.com/dmehra2102/event-pos/internal/payment/domain"
	"github.com/dmehra2102/event-pos/internal/testkit"
	"github.com/dmehra2102/event-pos/pkg/access"
	"github.com/dmehra2102/event-pos/pkg/httpx"
	"github.com/dmehra2102/event-pos/pkg/idempotency"
	"github.com/dmehra2102/event-pos/pkg/logging"
)

const secret = "test-secret"

func newServer(t *testing.T, opts testkit.Options) (*httptest.Server, *testkit.Kit) {
	t.Helper()
	k := testkit.New(t, opts)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	r := chi.NewRouter()
	r.Use(httpx.Authenticate(secret))
	r.Mount("/payments", NewHandler(logging.Discard(), k.Payments, idempotency.NewStore(rdb, time.Minute)).Routes())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, k
}

func call(t *testing.T, srv *httptest.Server, method, path string, caller access.Caller, body any, header map[string]string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	if !caller.IsAnonymous() {
		token, err := httpx.IssueToken(secret, caller, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestPixPaymentReturnsCharge(t *testing.T) {
	srv, k := newServer(t, testkit.Options{})
	o := k.PlaceOrder(t)

	resp := call(t, srv, http.MethodPost, "/payments", testkit.Customer, map[string]any{"order_id": o.ID, "method": "pix"}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var p paymentResp
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	assert.Equal(t, domain.StatusPending, p.Status)
	require.NotNil(t, p.Charge)
	assert.True(t, p.Charge.Simulated)
	assert.NotEmpty(t, p.Charge.QRCode)
}

func TestIdempotencyKeyReplaysPayment(t *testing.T) {
	srv, k := newServer(t, testkit.Options{})
	o := k.PlaceOrder(t)
	body := map[string]any{"order_id": o.ID, "method": "cash"}
	key := map[string]string{idempotency.HeaderKey: "k-1"}

	first := call(t, srv, http.MethodPost, "/payments", testkit.Customer, body, key)
	require.Equal(t, http.StatusCreated, first.StatusCode)
	var p1 paymentResp
	require.NoError(t, json.NewDecoder(first.Body).Decode(&p1))

	second := call(t, srv, http.MethodPost, "/payments", testkit.Customer, body, key)
	require.Equal(t, http.StatusCreated, second.StatusCode)
	assert.Equal(t, "true", second.Header.Get("Idempotent-Replayed"))
	var p2 paymentResp
	require.NoError(t, json.NewDecoder(second.Body).Decode(&p2))
	assert.Equal(t, p1.ID, p2.ID)

	payments, err := k.Payments.ListByConsumer(t.Context(), testkit.Customer, testkit.Consumer)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestConfirmTwice(t *testing.T) {
	srv, k := newServer(t, testkit.Options{})
	o := k.PlaceOrder(t)
	resp := call(t, srv, http.MethodPost, "/payments", testkit.Customer, map[string]any{"order_id": o.ID, "method": "cash"}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var p paymentResp
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))

	for range 2 {
		resp = call(t, srv, http.MethodPost, "/payments/"+p.TransactionID+"/confirm", testkit.Manager, nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	assert.Equal(t, orderdomain.StatusPaid, k.Order(t, o.ID).Status)

	resp = call(t, srv, http.MethodPost, "/payments/"+p.TransactionID+"/refund", testkit.Customer, nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestProcessValidation(t *testing.T) {
	srv, k := newServer(t, testkit.Options{})
	o := k.PlaceOrder(t)

	resp := call(t, srv, http.MethodPost, "/payments", testkit.Customer, map[string]any{"order_id": o.ID, "method": "barter"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = call(t, srv, http.MethodPost, "/payments", testkit.Customer, map[string]any{"order_id": o.ID, "method": "cash", "amount": "10.00"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
