package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Kline is one raw candle row from the REST klines endpoint.
type Kline struct {
	OpenTime  int64
	Open      string
	High      string
	Low       string
	Close     string
	Volume    string
	CloseTime int64
}

// Depth is an order-book snapshot; each level is [price, quantity].
type Depth struct {
	LastUpdateID int64       `json:"lastUpdateId"`
	Bids         [][2]string `json:"bids"`
	Asks         [][2]string `json:"asks"`
}

// PublicTrade is one public trade row.
type PublicTrade struct {
	ID           int64  `json:"id"`
	Price        string `json:"price"`
	Qty          string `json:"qty"`
	Time         int64  `json:"time"`
	IsBuyerMaker bool   `json:"isBuyerMaker"`
}

// AggTrade is one aggregated trade row.
type AggTrade struct {
	AggID        int64  `json:"a"`
	Price        string `json:"p"`
	Qty          string `json:"q"`
	Time         int64  `json:"T"`
	IsBuyerMaker bool   `json:"m"`
}

// GetTickerPrice returns the latest price for a symbol as its wire string.
func (c *Client) GetTickerPrice(ctx context.Context, symbol string) (string, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	body, err := c.transport.Send(ctx, http.MethodGet, "/api/v3/ticker/price", params, false)
	if err != nil {
		return "", err
	}
	var resp struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode ticker price: %w", err)
	}
	return resp.Price, nil
}

// GetKlines fetches historical candles from the public endpoint.
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	body, err := c.transport.Send(ctx, http.MethodGet, "/api/v3/klines", params, false)
	if err != nil {
		return nil, err
	}

	var raw [][]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}
	klines := make([]Kline, 0, len(raw))
	for _, item := range raw {
		// The exchange returns open time, OHLCV and close time in the
		// first seven fields; the rest are quote-volume extras.
		if len(item) < 7 {
			continue
		}
		klines = append(klines, Kline{
			OpenTime:  toInt64(item[0]),
			Open:      toString(item[1]),
			High:      toString(item[2]),
			Low:       toString(item[3]),
			Close:     toString(item[4]),
			Volume:    toString(item[5]),
			CloseTime: toInt64(item[6]),
		})
	}
	return klines, nil
}

// GetDepth fetches an order-book snapshot.
func (c *Client) GetDepth(ctx context.Context, symbol string, limit int) (*Depth, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	body, err := c.transport.Send(ctx, http.MethodGet, "/api/v3/depth", params, false)
	if err != nil {
		return nil, err
	}
	var depth Depth
	if err := json.Unmarshal(body, &depth); err != nil {
		return nil, fmt.Errorf("decode depth: %w", err)
	}
	return &depth, nil
}

// GetRecentTrades fetches the latest public trades.
func (c *Client) GetRecentTrades(ctx context.Context, symbol string, limit int) ([]PublicTrade, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	body, err := c.transport.Send(ctx, http.MethodGet, "/api/v3/trades", params, false)
	if err != nil {
		return nil, err
	}
	var trades []PublicTrade
	if err := json.Unmarshal(body, &trades); err != nil {
		return nil, fmt.Errorf("decode trades: %w", err)
	}
	return trades, nil
}

// GetAggTrades fetches compressed/aggregate trades.
func (c *Client) GetAggTrades(ctx context.Context, symbol string, limit int) ([]AggTrade, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	body, err := c.transport.Send(ctx, http.MethodGet, "/api/v3/aggTrades", params, false)
	if err != nil {
		return nil, err
	}
	var trades []AggTrade
	if err := json.Unmarshal(body, &trades); err != nil {
		return nil, fmt.Errorf("decode agg trades: %w", err)
	}
	return trades, nil
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int64:
		return t
	case json.Number:
		i, _ := t.Int64()
		return i
	default:
		return 0
	}
}
