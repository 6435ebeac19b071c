package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/event-pos/internal/kitchen/domain"
	orderdomain "github.com/dmehra2102/event-pos/internal/order/domain"
	"github.com/dmehra2102/event-pos/internal/testkit"
	"github.com/dmehra2102/event-pos/pkg/access"
	"github.com/dmehra2102/event-pos/pkg/httpx"
	"github.com/dmehra2102/event-pos/pkg/logging"
)

const secret = "test-secret"

func do(t *testing.T, srv *httptest.Server, method, path string, caller access.Caller, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
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

func TestKitchenRoutes(t *testing.T) {
	k := testkit.New(t, testkit.Options{})
	r := chi.NewRouter()
	r.Use(httpx.Authenticate(secret))
	r.Mount("/kitchen", NewHandler(logging.Discard(), k.Kitchen).Routes())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	o := k.PaidOrder(t)

	resp := do(t, srv, http.MethodGet, "/kitchen/events/"+testkit.EventID+"/orders", access.Anonymous(), "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp = do(t, srv, http.MethodGet, "/kitchen/events/"+testkit.EventID+"/orders", testkit.Customer, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/kitchen/events/"+testkit.EventID+"/orders?status=paid", testkit.Manager, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tickets []domain.Ticket
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tickets))
	require.Len(t, tickets, 1)
	assert.Equal(t, o.ID, tickets[0].OrderID)

	resp = do(t, srv, http.MethodPatch, "/kitchen/items/"+o.Items[0].ID, testkit.Manager, `{"status":"preparing"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ticket domain.Ticket
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ticket))
	assert.Equal(t, orderdomain.ItemPreparing, ticket.Items[0].Status)

	resp = do(t, srv, http.MethodPatch, "/kitchen/items/"+o.Items[0].ID, testkit.Manager, `{"status":"pending"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/kitchen/orders/"+o.ID+"/delivered", testkit.Manager, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/kitchen/events/"+testkit.EventID+"/statistics", testkit.Manager, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st struct {
		TotalOrders int `json:"total_orders"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, 1, st.TotalOrders)
}
