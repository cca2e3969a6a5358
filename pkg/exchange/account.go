package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// AssetBalance is one asset row of the account snapshot. Amounts stay as
// strings on the wire; callers parse them into decimals.
type AssetBalance struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

// AccountInfo holds balances and trading permissions.
type AccountInfo struct {
	CanTrade   bool           `json:"canTrade"`
	UpdateTime int64          `json:"updateTime"`
	Balances   []AssetBalance `json:"balances"`
}

// GetAccountInfo returns the signed account snapshot.
func (c *Client) GetAccountInfo(ctx context.Context) (*AccountInfo, error) {
	body, err := c.transport.Send(ctx, http.MethodGet, "/api/v3/account", nil, true)
	if err != nil {
		return nil, err
	}
	var info AccountInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decode account info: %w", err)
	}
	return &info, nil
}

// Balance returns the balance row for one asset, zero-valued when the
// account holds none of it.
func (a *AccountInfo) Balance(asset string) AssetBalance {
	for _, b := range a.Balances {
		if b.Asset == asset {
			return b
		}
	}
	return AssetBalance{Asset: asset, Free: "0", Locked: "0"}
}
