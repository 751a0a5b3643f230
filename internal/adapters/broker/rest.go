// Package broker implements the BrokerClient against a generic
// Alpaca-style REST brokerage API. Two independently-configured instances
// (primary, secondary) are wired at startup with identical semantics;
// FailoverClient in this package owns the failover decision between them.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lmoretti-dev/whitelight/internal/domain"
)

// RESTClient implements ports.BrokerClient over a JSON REST API.
type RESTClient struct {
	http    *http.Client
	baseURL string
	keyID   string
	secret  string
}

// NewRESTClient builds a RESTClient authenticated with keyID/secret.
func NewRESTClient(baseURL, keyID, secret string) *RESTClient {
	return &RESTClient{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
		keyID:   keyID,
		secret:  secret,
	}
}

type accountPayload struct {
	Equity    string `json:"equity"`
	Cash      string `json:"cash"`
	Positions []struct {
		Symbol       string `json:"symbol"`
		Qty          string `json:"qty"`
		AvgEntryCost string `json:"avg_entry_price"`
		MarketValue  string `json:"market_value"`
	} `json:"positions"`
}

// GetAccount implements ports.BrokerClient.
func (c *RESTClient) GetAccount(ctx context.Context) (domain.AccountSnapshot, error) {
	var payload accountPayload
	if err := c.do(ctx, "broker.GetAccount", http.MethodGet, "/v2/account", nil, &payload); err != nil {
		return domain.AccountSnapshot{}, err
	}

	equity, err := decimal.NewFromString(payload.Equity)
	if err != nil {
		return domain.AccountSnapshot{}, domain.Wrap(domain.KindBrokerTransient, "broker.GetAccount", err)
	}
	cash, err := decimal.NewFromString(payload.Cash)
	if err != nil {
		return domain.AccountSnapshot{}, domain.Wrap(domain.KindBrokerTransient, "broker.GetAccount", err)
	}

	positions := make(map[string]domain.Position, len(payload.Positions))
	for _, p := range payload.Positions {
		qty, _ := decimal.NewFromString(p.Qty)
		avgCost, _ := decimal.NewFromString(p.AvgEntryCost)
		marketValue, _ := decimal.NewFromString(p.MarketValue)
		positions[p.Symbol] = domain.Position{
			Symbol:      p.Symbol,
			Quantity:    qty.IntPart(),
			AvgCost:     avgCost,
			MarketValue: marketValue,
		}
	}

	return domain.AccountSnapshot{Equity: equity, Cash: cash, Positions: positions}, nil
}

// SubmitMarketOrder implements ports.BrokerClient. clientOrderID is an
// idempotency key: resubmitting with the same ID after a network failure
// does not create a duplicate order at the broker.
func (c *RESTClient) SubmitMarketOrder(ctx context.Context, symbol string, side domain.Side, quantity int64, clientOrderID string) (string, error) {
	if clientOrderID == "" {
		clientOrderID = uuid.NewString()
	}
	body := map[string]any{
		"symbol":          symbol,
		"qty":             quantity,
		"side":            string(side),
		"type":            "market",
		"time_in_force":   "day",
		"client_order_id": clientOrderID,
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, "broker.SubmitMarketOrder", http.MethodPost, "/v2/orders", body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// PollOrder implements ports.BrokerClient.
func (c *RESTClient) PollOrder(ctx context.Context, orderID string) (domain.Fill, error) {
	var out struct {
		Symbol      string `json:"symbol"`
		Side        string `json:"side"`
		Qty         string `json:"qty"`
		FilledQty   string `json:"filled_qty"`
		FilledAvgPx string `json:"filled_avg_price"`
		Status      string `json:"status"`
	}
	if err := c.do(ctx, "broker.PollOrder", http.MethodGet, "/v2/orders/"+orderID, nil, &out); err != nil {
		return domain.Fill{}, err
	}

	requestedQty, _ := decimal.NewFromString(out.Qty)
	filledQty, _ := decimal.NewFromString(out.FilledQty)
	avgPrice, _ := decimal.NewFromString(out.FilledAvgPx)

	return domain.Fill{
		OrderID:        orderID,
		Symbol:         out.Symbol,
		Side:           domain.Side(out.Side),
		RequestedQty:   requestedQty.IntPart(),
		FilledQuantity: filledQty.IntPart(),
		AvgFillPrice:   avgPrice,
		Status:         mapOrderStatus(out.Status),
	}, nil
}

// CancelOrder implements ports.BrokerClient.
func (c *RESTClient) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	if err := c.do(ctx, "broker.CancelOrder", http.MethodDelete, "/v2/orders/"+orderID, nil, nil); err != nil {
		return false, err
	}
	return true, nil
}

// IsMarketOpen implements ports.BrokerClient.
func (c *RESTClient) IsMarketOpen(ctx context.Context) (bool, error) {
	var out struct {
		IsOpen bool `json:"is_open"`
	}
	if err := c.do(ctx, "broker.IsMarketOpen", http.MethodGet, "/v2/clock", nil, &out); err != nil {
		return false, err
	}
	return out.IsOpen, nil
}

func mapOrderStatus(raw string) domain.OrderStatus {
	switch raw {
	case "filled":
		return domain.OrderStatusFilled
	case "partially_filled":
		return domain.OrderStatusPartial
	case "rejected":
		return domain.OrderStatusRejected
	case "canceled", "cancelled":
		return domain.OrderStatusCanceled
	default:
		return domain.OrderStatusNew
	}
}

// do issues one REST call and classifies any failure by Kind before
// returning it, the same 429/5xx-retryable vs 4xx-terminal split
// marketdata.Client.getWithRetry applies: a network failure or a
// 429/5xx response is KindBrokerTransient (worth retrying, worth
// failing over on), a 4xx response is KindBrokerRejection (the order
// itself was refused — retrying it changes nothing).
func (c *RESTClient) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return domain.Wrap(domain.KindBrokerRejection, op, fmt.Errorf("marshal body: %w", err))
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return domain.Wrap(domain.KindBrokerRejection, op, err)
	}
	req.Header.Set("APCA-API-KEY-ID", c.keyID)
	req.Header.Set("APCA-API-SECRET-KEY", c.secret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Wrap(domain.KindBrokerTransient, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		respBody, _ := io.ReadAll(resp.Body)
		return domain.Wrap(domain.KindBrokerTransient, op, fmt.Errorf("broker returned %d: %s", resp.StatusCode, string(respBody)))
	}
	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return domain.Wrap(domain.KindBrokerRejection, op, fmt.Errorf("broker returned %d: %s", resp.StatusCode, string(respBody)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.Wrap(domain.KindBrokerTransient, op, err)
	}
	return nil
}
