package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// SubAccount is one sub-account row.
type SubAccount struct {
	SubAccount string `json:"subAccount"`
	IsFreeze   bool   `json:"isFreeze"`
	CreateTime int64  `json:"createTime"`
}

// TransferRequest moves an asset between master and sub-accounts.
type TransferRequest struct {
	FromAccount string
	ToAccount   string
	Asset       string
	Amount      string
}

// SubAccountAPIKey is the ack for a created sub-account API key.
type SubAccountAPIKey struct {
	SubAccount string `json:"subAccount"`
	APIKey     string `json:"apiKey"`
	SecretKey  string `json:"secretKey"`
	Note       string `json:"note"`
}

// ListSubAccounts returns all sub-accounts of the master account.
func (c *Client) ListSubAccounts(ctx context.Context) ([]SubAccount, error) {
	body, err := c.transport.Send(ctx, http.MethodGet, "/api/v3/sub-account/list", nil, true)
	if err != nil {
		return nil, err
	}
	var resp struct {
		SubAccounts []SubAccount `json:"subAccounts"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode sub-accounts: %w", err)
	}
	return resp.SubAccounts, nil
}

// GetSubAccountBalance returns the balance snapshot of one sub-account.
func (c *Client) GetSubAccountBalance(ctx context.Context, subAccount string) (*AccountInfo, error) {
	params := url.Values{}
	params.Set("subAccount", subAccount)
	body, err := c.transport.Send(ctx, http.MethodGet, "/api/v3/sub-account/asset", params, true)
	if err != nil {
		return nil, err
	}
	var info AccountInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decode sub-account balance: %w", err)
	}
	return &info, nil
}

// SubAccountTransfer moves funds between accounts and returns the transfer id.
func (c *Client) SubAccountTransfer(ctx context.Context, req TransferRequest) (string, error) {
	params := url.Values{}
	params.Set("fromAccount", req.FromAccount)
	params.Set("toAccount", req.ToAccount)
	params.Set("asset", req.Asset)
	params.Set("amount", req.Amount)
	body, err := c.transport.Send(ctx, http.MethodPost, "/api/v3/capital/sub-account/universalTransfer", params, true)
	if err != nil {
		return "", err
	}
	var resp struct {
		TranID string `json:"tranId"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode transfer: %w", err)
	}
	return resp.TranID, nil
}

// CreateSubAccountAPIKey issues an API key for a sub-account.
func (c *Client) CreateSubAccountAPIKey(ctx context.Context, subAccount, note, permissions string) (*SubAccountAPIKey, error) {
	params := url.Values{}
	params.Set("subAccount", subAccount)
	params.Set("note", note)
	params.Set("permissions", permissions)
	body, err := c.transport.Send(ctx, http.MethodPost, "/api/v3/sub-account/apiKey", params, true)
	if err != nil {
		return nil, err
	}
	var key SubAccountAPIKey
	if err := json.Unmarshal(body, &key); err != nil {
		return nil, fmt.Errorf("decode sub-account api key: %w", err)
	}
	return &key, nil
}

// DeleteSubAccountAPIKey revokes a sub-account API key.
func (c *Client) DeleteSubAccountAPIKey(ctx context.Context, subAccount, apiKey string) error {
	params := url.Values{}
	params.Set("subAccount", subAccount)
	params.Set("apiKey", apiKey)
	_, err := c.transport.Send(ctx, http.MethodDelete, "/api/v3/sub-account/apiKey", params, true)
	return err
}
