package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"pos_ledger/internal/catalog"
	"pos_ledger/internal/expenses"
	"pos_ledger/internal/sales"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type received struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
	Auth   string          `json:"-"`
}

// actionServer records every request and answers with respond.
func actionServer(t *testing.T, respond func(action string) (int, string)) (*httptest.Server, func() []received) {
	t.Helper()
	var mu sync.Mutex
	var got []received
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req received
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		req.Auth = r.Header.Get("Authorization")
		mu.Lock()
		got = append(got, req)
		mu.Unlock()

		status, body := respond(req.Action)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, func() []received {
		mu.Lock()
		defer mu.Unlock()
		return append([]received(nil), got...)
	}
}

func ok(string) (int, string) { return http.StatusOK, `{"success": true}` }

func TestActionClientWrites(t *testing.T) {
	srv, requests := actionServer(t, ok)
	c := NewActionClient(srv.URL, "secret", zaptest.NewLogger(t))
	ctx := context.Background()

	sale := sales.Sale{ID: "s1", OrderNumber: 1, Total: decimal.NewFromInt(13), ExchangeRateAtSale: decimal.NewFromInt(45),
		PaymentMethod: sales.PaymentCash, Status: sales.StatusCompleted}
	product := catalog.Product{ID: "p1", Name: "Coffee", Price: decimal.RequireFromString("2.5")}
	expense := expenses.Expense{ID: "e1", Amount: decimal.NewFromInt(3), Description: "ice", Category: expenses.CategoryExpense}

	require.NoError(t, c.Init(ctx))
	require.NoError(t, c.SaveSale(ctx, sale))
	require.NoError(t, c.UpdateSaleStatus(ctx, "s1", sales.StatusReady))
	require.NoError(t, c.SaveProduct(ctx, product))
	require.NoError(t, c.UpdateProduct(ctx, product))
	require.NoError(t, c.DeleteProduct(ctx, "p1"))
	require.NoError(t, c.SaveExpense(ctx, expense))
	require.NoError(t, c.DeleteExpense(ctx, "e1"))

	got := requests()
	require.Len(t, got, 8)
	actions := make([]string, len(got))
	for i, r := range got {
		actions[i] = r.Action
		assert.Equal(t, "Bearer secret", r.Auth)
	}
	assert.Equal(t, []string{
		ActionInit, ActionSaveSale, ActionUpdateSaleStatus, ActionSaveProduct,
		ActionUpdateProduct, ActionDeleteProduct, ActionSaveExpense, ActionDeleteExpense,
	}, actions)

	var status statusRequest
	require.NoError(t, json.Unmarshal(got[2].Data, &status))
	assert.Equal(t, statusRequest{ID: "s1", Status: sales.StatusReady}, status)

	var savedSale sales.Sale
	require.NoError(t, json.Unmarshal(got[1].Data, &savedSale))
	assert.Equal(t, "s1", savedSale.ID)
	assert.True(t, savedSale.ExchangeRateAtSale.Equal(decimal.NewFromInt(45)))

	var del idRequest
	require.NoError(t, json.Unmarshal(got[7].Data, &del))
	assert.Equal(t, "e1", del.ID)
}

func TestActionClientFetch(t *testing.T) {
	srv, _ := actionServer(t, func(action string) (int, string) {
		return http.StatusOK, `{"success": true, "data": {
			"products": [{"id": "p1", "name": "Coffee", "price": 2.5, "category": "drinks"}],
			"sales": [
				{"id": "old", "orderNumber": 1, "date": "2025-03-09T10:00:00Z", "total": 3, "paymentMethod": "cash", "exchangeRateAtSale": 44, "status": "completed"},
				{"id": "new", "orderNumber": 1, "date": "2025-03-10T10:00:00Z", "total": 5, "paymentMethod": "card", "exchangeRateAtSale": 45, "status": "pending"}
			],
			"expenses": [
				{"id": "e-old", "date": "2025-03-01T10:00:00Z", "amount": 1, "description": "a", "category": "loss"},
				{"id": "e-new", "date": "2025-03-02T10:00:00Z", "amount": 2, "description": "b", "category": "expense"}
			]
		}}`
	})
	c := NewActionClient(srv.URL, "", zaptest.NewLogger(t))

	snap, err := c.Fetch(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Products, 1)
	assert.True(t, snap.Products[0].Price.Equal(decimal.RequireFromString("2.5")))
	require.Len(t, snap.Sales, 2)
	assert.Equal(t, "new", snap.Sales[0].ID, "sales come newest first")
	assert.Equal(t, time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC), snap.Sales[1].Date.UTC())
	require.Len(t, snap.Expenses, 2)
	assert.Equal(t, "e-new", snap.Expenses[0].ID)
}

func TestActionClientFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "rejected", status: http.StatusOK, body: `{"success": false, "error": "sheet locked"}`, wantErr: ErrRejected},
		{name: "server error", status: http.StatusBadGateway, body: `oops`},
		{name: "not json", status: http.StatusOK, body: `<html>`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := actionServer(t, func(string) (int, string) { return tc.status, tc.body })
			c := NewActionClient(srv.URL, "", zaptest.NewLogger(t))

			err := c.SaveExpense(context.Background(), expenses.Expense{ID: "e1"})
			require.Error(t, err)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}

func TestActionClientUnreachable(t *testing.T) {
	srv, _ := actionServer(t, ok)
	url := srv.URL
	srv.Close()

	c := NewActionClient(url, "", zaptest.NewLogger(t))
	assert.Error(t, c.Init(context.Background()))
}
