package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/opensplit/splitbot/internal/expense"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)
	return c
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	c, err := New(Config{BaseURL: "http://localhost:8080/"})
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080", c.baseURL)
}

func TestRegisterGroup(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	})

	err := c.RegisterGroup(context.Background(), -100123, "flatmates")
	require.NoError(t, err)
	require.Equal(t, http.MethodPut, gotMethod)
	require.Equal(t, "/groups/-100123", gotPath)
	require.Equal(t, map[string]string{"name": "flatmates"}, gotBody)
}

func TestSubmitExpenseWirePayload(t *testing.T) {
	var gotPath string
	var raw []byte
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var err error
		raw, err = io.ReadAll(r.Body)
		require.NoError(t, err)
		w.WriteHeader(http.StatusCreated)
	})

	rec := expense.Record{
		Name:   "pizza",
		Payer:  expense.UserRef{Username: "ana"},
		Amount: decimal.RequireFromString("12.5"),
		Receivers: []expense.UserRef{
			{Username: "bob"},
			{ID: 42},
		},
	}
	err := c.SubmitExpense(context.Background(), 7, rec)
	require.NoError(t, err)
	require.Equal(t, "/groups/7/expenses", gotPath)

	// The amount travels as a bare JSON number with the exact decimal text,
	// and mention-only users fall back to their numeric ID.
	require.JSONEq(t, `{"name":"pizza","payer":"ana","amount":12.5,"receivers":["bob","42"]}`, string(raw))
}

func TestSubmitExpenseStalledResponseSingleDelivery(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(300 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	rec := expense.Record{
		Name:      "taxi",
		Payer:     expense.UserRef{Username: "ana"},
		Amount:    decimal.RequireFromString("5"),
		Receivers: []expense.UserRef{{Username: "bob"}},
	}
	err = c.SubmitExpense(context.Background(), 7, rec)

	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)
	require.Equal(t, KindTransport, gwErr.Kind)
	// A stalled response surfaces as an error; the POST reaches the
	// backend exactly once, never via a transparent resend.
	require.EqualValues(t, 1, hits.Load())
}

func TestConfigTimeoutAppliesToInjectedClient(t *testing.T) {
	c, err := New(Config{BaseURL: "http://backend", Timeout: 3 * time.Second},
		WithHTTPClient(&http.Client{}))
	require.NoError(t, err)
	require.Equal(t, 3*time.Second, c.http.Timeout)

	c, err = New(Config{BaseURL: "http://backend", Timeout: 3 * time.Second},
		WithHTTPClient(&http.Client{Timeout: time.Second}))
	require.NoError(t, err)
	require.Equal(t, time.Second, c.http.Timeout)
}

func TestGroupBalancePreservesOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/groups/7/balance", r.URL.Path)
		// Keys deliberately not alphabetical.
		_, _ = w.Write([]byte(`{"zoe": -3.50, "ana": "7.00", "bob": 0}`))
	})

	view, err := c.GroupBalance(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, view, 3)
	require.Equal(t, "zoe", view[0].Name)
	require.Equal(t, "ana", view[1].Name)
	require.Equal(t, "bob", view[2].Name)
	require.True(t, view[0].Amount.Equal(decimal.RequireFromString("-3.5")))
	require.True(t, view[1].Amount.Equal(decimal.RequireFromString("7")))
	require.False(t, view.AllZero())
}

func TestUserBalanceEscapesUsername(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_, _ = w.Write([]byte(`{"flatmates": 1.25}`))
	})

	view, err := c.UserBalance(context.Background(), "ana/..")
	require.NoError(t, err)
	require.Equal(t, "/users/ana%2F../balance", gotPath)
	require.Len(t, view, 1)
	require.Equal(t, "flatmates", view[0].Name)
}

func TestExchanges(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/groups/7/exchanges", r.URL.Path)
		_, _ = w.Write([]byte(`[{"payer":"bob","receiver":"ana","amount":3.5}]`))
	})

	list, err := c.Exchanges(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "bob", list[0].Payer)
	require.Equal(t, "ana", list[0].Receiver)
	require.True(t, list[0].Amount.Equal(decimal.RequireFromString("3.5")))
}

func TestStatusErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "group not found", http.StatusNotFound)
	})

	_, err := c.GroupBalance(context.Background(), 7)
	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)
	require.Equal(t, KindStatus, gwErr.Kind)
	require.Equal(t, http.StatusNotFound, gwErr.Status)
	require.Contains(t, gwErr.Detail, "group not found")
	require.Equal(t, "GATEWAY_STATUS", gwErr.Code())
}

func TestTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.GroupBalance(context.Background(), 7)
	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)
	require.Equal(t, KindTransport, gwErr.Kind)
	require.Equal(t, "GATEWAY_TRANSPORT", gwErr.Code())
}

func TestDecodeBalanceRejectsNonObject(t *testing.T) {
	_, err := decodeBalance([]byte(`[1,2]`))
	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)
	require.Equal(t, KindTransport, gwErr.Kind)

	_, err = decodeBalance([]byte(`{"ana": true}`))
	require.ErrorAs(t, err, &gwErr)
	require.Equal(t, KindTransport, gwErr.Kind)
}
