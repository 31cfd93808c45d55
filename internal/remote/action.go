// Package remote implements the remote persistence backends the sync
// coordinator writes to: an action-style HTTP endpoint and a table-style
// Postgres database.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"pos_ledger/internal/catalog"
	"pos_ledger/internal/expenses"
	"pos_ledger/internal/remotesync"
	"pos_ledger/internal/sales"

	"go.uber.org/zap"
	"resty.dev/v3"
)

// ErrRejected is returned when the backend answers but refuses the action.
var ErrRejected = errors.New("remote store rejected the request")

// Actions understood by the endpoint.
const (
	ActionInit             = "init"
	ActionGetAll           = "get-all"
	ActionSaveSale         = "save-sale"
	ActionUpdateSaleStatus = "update-sale-status"
	ActionSaveProduct      = "save-product"
	ActionUpdateProduct    = "update-product"
	ActionDeleteProduct    = "delete-product"
	ActionSaveExpense      = "save-expense"
	ActionDeleteExpense    = "delete-expense"
)

// actionRequest is the body posted for every action.
type actionRequest struct {
	Action string `json:"action"`
	Data   any    `json:"data,omitempty"`
}

// actionResponse is the envelope every answer comes in.
type actionResponse struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type idRequest struct {
	ID string `json:"id"`
}

type statusRequest struct {
	ID     string       `json:"id"`
	Status sales.Status `json:"status"`
}

// ActionClient talks to a single endpoint that dispatches on an action name.
type ActionClient struct {
	url    string
	client *resty.Client
	logger *zap.Logger
}

var _ remotesync.Remote = (*ActionClient)(nil)

// NewActionClient creates a client for url. apiKey, when set, is sent as a
// bearer token.
func NewActionClient(url, apiKey string, logger *zap.Logger) *ActionClient {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	client := resty.New().SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	return &ActionClient{url: url, client: client, logger: logger}
}

func (a *ActionClient) call(ctx context.Context, action string, data any, out any) error {
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(actionRequest{Action: action, Data: data}).
		Post(a.url)
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%s: remote store returned status %d", action, resp.StatusCode())
	}

	var env actionResponse
	if err := json.Unmarshal([]byte(resp.String()), &env); err != nil {
		return fmt.Errorf("%s: cannot decode response: %w", action, err)
	}
	if !env.Success {
		return fmt.Errorf("%w: %s: %s", ErrRejected, action, env.Error)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%s: cannot decode data: %w", action, err)
		}
	}
	a.logger.Debug("remote action done", zap.String("action", action))
	return nil
}

func (a *ActionClient) Init(ctx context.Context) error {
	return a.call(ctx, ActionInit, nil, nil)
}

// Fetch runs get-all and orders sales and expenses newest first.
func (a *ActionClient) Fetch(ctx context.Context) (remotesync.Snapshot, error) {
	var snap remotesync.Snapshot
	if err := a.call(ctx, ActionGetAll, nil, &snap); err != nil {
		return remotesync.Snapshot{}, err
	}
	sort.SliceStable(snap.Sales, func(i, j int) bool { return snap.Sales[i].Date.After(snap.Sales[j].Date) })
	sort.SliceStable(snap.Expenses, func(i, j int) bool { return snap.Expenses[i].Date.After(snap.Expenses[j].Date) })
	return snap, nil
}

func (a *ActionClient) SaveSale(ctx context.Context, s sales.Sale) error {
	return a.call(ctx, ActionSaveSale, s, nil)
}

func (a *ActionClient) UpdateSaleStatus(ctx context.Context, id string, status sales.Status) error {
	return a.call(ctx, ActionUpdateSaleStatus, statusRequest{ID: id, Status: status}, nil)
}

func (a *ActionClient) SaveProduct(ctx context.Context, p catalog.Product) error {
	return a.call(ctx, ActionSaveProduct, p, nil)
}

func (a *ActionClient) UpdateProduct(ctx context.Context, p catalog.Product) error {
	return a.call(ctx, ActionUpdateProduct, p, nil)
}

func (a *ActionClient) DeleteProduct(ctx context.Context, id string) error {
	return a.call(ctx, ActionDeleteProduct, idRequest{ID: id}, nil)
}

func (a *ActionClient) SaveExpense(ctx context.Context, e expenses.Expense) error {
	return a.call(ctx, ActionSaveExpense, e, nil)
}

func (a *ActionClient) DeleteExpense(ctx context.Context, id string) error {
	return a.call(ctx, ActionDeleteExpense, idRequest{ID: id}, nil)
}
