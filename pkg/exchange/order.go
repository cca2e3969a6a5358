package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// OrderType denotes the order types this client places.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// OrderRequest captures an order intent.
type OrderRequest struct {
	Symbol        string
	Side          string // BUY or SELL
	Type          OrderType
	Quantity      string // base-asset amount as wire string
	Price         string // required for LIMIT
	ClientOrderID string // reused across retries so the exchange can deduplicate
}

// OrderResult is the exchange ack for a placed order.
type OrderResult struct {
	OrderID       string `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Symbol        string `json:"symbol"`
	Status        string `json:"status"`
	ExecutedQty   string `json:"executedQty"`
	Price         string `json:"price"`
}

// OrderDetail is the full queried view of one order.
type OrderDetail struct {
	OrderID       string `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Price         string `json:"price"`
	OrigQty       string `json:"origQty"`
	ExecutedQty   string `json:"executedQty"`
	Status        string `json:"status"`
	Time          int64  `json:"time"`
}

// PlaceOrder submits an order. Quantity and price travel as wire strings to
// avoid any float rounding between sizing and submission.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", req.Side)
	params.Set("type", string(req.Type))
	params.Set("quantity", req.Quantity)
	if req.Type == OrderTypeLimit {
		params.Set("price", req.Price)
	}
	if req.ClientOrderID != "" {
		params.Set("newClientOrderId", req.ClientOrderID)
	}

	body, err := c.transport.Send(ctx, http.MethodPost, "/api/v3/order", params, true)
	if err != nil {
		return nil, err
	}
	var res OrderResult
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode order result: %w", err)
	}
	return &res, nil
}

// GetOrder queries one order by id.
func (c *Client) GetOrder(ctx context.Context, symbol, orderID string) (*OrderDetail, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)
	body, err := c.transport.Send(ctx, http.MethodGet, "/api/v3/order", params, true)
	if err != nil {
		return nil, err
	}
	var detail OrderDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, fmt.Errorf("decode order: %w", err)
	}
	return &detail, nil
}

// CancelOrder cancels one open order.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)
	_, err := c.transport.Send(ctx, http.MethodDelete, "/api/v3/order", params, true)
	return err
}

// GetOpenOrders lists open orders; empty symbol means all symbols.
func (c *Client) GetOpenOrders(ctx context.Context, symbol string) ([]OrderDetail, error) {
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", symbol)
	}
	body, err := c.transport.Send(ctx, http.MethodGet, "/api/v3/openOrders", params, true)
	if err != nil {
		return nil, err
	}
	var orders []OrderDetail
	if err := json.Unmarshal(body, &orders); err != nil {
		return nil, fmt.Errorf("decode open orders: %w", err)
	}
	return orders, nil
}
