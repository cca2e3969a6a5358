package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// CreateListenKey opens a user data stream and returns its listen key.
func (c *Client) CreateListenKey(ctx context.Context) (string, error) {
	body, err := c.transport.Send(ctx, http.MethodPost, userDataStreamPath, nil, true)
	if err != nil {
		return "", err
	}
	var resp struct {
		ListenKey string `json:"listenKey"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode listen key: %w", err)
	}
	return resp.ListenKey, nil
}

// KeepAliveListenKey extends the validity of a listen key.
func (c *Client) KeepAliveListenKey(ctx context.Context, listenKey string) error {
	params := url.Values{}
	params.Set("listenKey", listenKey)
	_, err := c.transport.Send(ctx, http.MethodPut, userDataStreamPath, params, true)
	return err
}

// CloseListenKey closes a user data stream.
func (c *Client) CloseListenKey(ctx context.Context, listenKey string) error {
	params := url.Values{}
	params.Set("listenKey", listenKey)
	_, err := c.transport.Send(ctx, http.MethodDelete, userDataStreamPath, params, true)
	return err
}
