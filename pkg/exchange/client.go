// Package exchange provides the authenticated REST and websocket clients for
// one spot exchange. REST capabilities are split per concern (account,
// market, order, sub-account, user stream) and composed by delegation over a
// single signed transport.
package exchange

import "context"

// AccountAPI covers account state queries.
type AccountAPI interface {
	GetAccountInfo(ctx context.Context) (*AccountInfo, error)
}

// MarketAPI covers public market data.
type MarketAPI interface {
	GetTickerPrice(ctx context.Context, symbol string) (string, error)
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error)
	GetDepth(ctx context.Context, symbol string, limit int) (*Depth, error)
	GetRecentTrades(ctx context.Context, symbol string, limit int) ([]PublicTrade, error)
	GetAggTrades(ctx context.Context, symbol string, limit int) ([]AggTrade, error)
}

// OrderAPI covers order placement and management.
type OrderAPI interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
	GetOrder(ctx context.Context, symbol, orderID string) (*OrderDetail, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	GetOpenOrders(ctx context.Context, symbol string) ([]OrderDetail, error)
}

// SubAccountAPI covers sub-account management.
type SubAccountAPI interface {
	ListSubAccounts(ctx context.Context) ([]SubAccount, error)
	GetSubAccountBalance(ctx context.Context, subAccount string) (*AccountInfo, error)
	SubAccountTransfer(ctx context.Context, req TransferRequest) (string, error)
	CreateSubAccountAPIKey(ctx context.Context, subAccount, note, permissions string) (*SubAccountAPIKey, error)
	DeleteSubAccountAPIKey(ctx context.Context, subAccount, apiKey string) error
}

// UserStreamAPI manages listen keys for private websocket sessions.
type UserStreamAPI interface {
	CreateListenKey(ctx context.Context) (string, error)
	KeepAliveListenKey(ctx context.Context, listenKey string) error
	CloseListenKey(ctx context.Context, listenKey string) error
}

// Client implements every capability over one shared transport.
type Client struct {
	transport *SignedTransport
}

var (
	_ AccountAPI    = (*Client)(nil)
	_ MarketAPI     = (*Client)(nil)
	_ OrderAPI      = (*Client)(nil)
	_ SubAccountAPI = (*Client)(nil)
	_ UserStreamAPI = (*Client)(nil)
)

// NewClient builds a REST client over a signed transport.
func NewClient(cfg TransportConfig) *Client {
	return &Client{transport: NewSignedTransport(cfg)}
}
