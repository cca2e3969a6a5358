package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	apiKeyHeader       = "X-MEXC-APIKEY"
	userDataStreamPath = "/api/v3/userDataStream"

	defaultRecvWindow = 5000
	defaultMaxRetries = 3
)

// TransportConfig holds credentials and tuning for the REST transport.
type TransportConfig struct {
	APIKey     string
	APISecret  string
	BaseURL    string
	RecvWindow int64 // ms
	MaxRetries int   // attempts per request, including the first
	Timeout    time.Duration
}

// SignedTransport builds and sends authenticated REST calls: it injects a
// millisecond timestamp immediately before signing, computes an HMAC-SHA256
// signature over the URL-encoded key-sorted parameter set, and carries the
// API key as a header. 429/503/504 and network errors are retried with
// exponential backoff up to the configured attempt count; any other non-2xx
// is fatal.
type SignedTransport struct {
	cfg        TransportConfig
	httpClient *http.Client
	limiter    *rate.Limiter

	sleep func(time.Duration) // test hook
}

// NewSignedTransport builds a transport; zero config fields take defaults.
func NewSignedTransport(cfg TransportConfig) *SignedTransport {
	if cfg.RecvWindow == 0 {
		cfg.RecvWindow = defaultRecvWindow
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SignedTransport{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		// 20 requests/s with a short burst keeps us far from the ban threshold.
		limiter: rate.NewLimiter(rate.Limit(20), 40),
		sleep:   time.Sleep,
	}
}

// Send performs one REST call. GET and DELETE place parameters in the query
// string; POST and PUT place them in the body, except the listen-key
// keep-alive call which uses query parameters despite being a PUT.
func (t *SignedTransport) Send(ctx context.Context, method, path string, params url.Values, signed bool) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	if signed {
		if t.cfg.APIKey == "" || t.cfg.APISecret == "" {
			return nil, ErrAuth
		}
		params.Set("recvWindow", strconv.FormatInt(t.cfg.RecvWindow, 10))
	}

	var lastStatus int
	var lastErr error
	for attempt := 0; attempt < t.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			t.sleep(backoff)
		}
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Op: method + " " + path, Err: err}
		}

		req, err := t.buildRequest(ctx, method, path, params, signed)
		if err != nil {
			return nil, err
		}

		res, err := t.httpClient.Do(req)
		if err != nil {
			lastErr = &TransportError{Op: method + " " + path, Err: err}
			continue
		}
		body, _ := io.ReadAll(res.Body)
		res.Body.Close()

		switch {
		case res.StatusCode < 300:
			return body, nil
		case retryableStatus(res.StatusCode):
			lastStatus = res.StatusCode
			lastErr = nil
			continue
		default:
			return nil, &RejectedError{Status: res.StatusCode, Body: string(body)}
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, &RateLimitedError{Status: lastStatus, Attempts: t.cfg.MaxRetries}
}

// buildRequest rebuilds the request per attempt so the timestamp and
// signature stay fresh across retries.
func (t *SignedTransport) buildRequest(ctx context.Context, method, path string, params url.Values, signed bool) (*http.Request, error) {
	p := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			p.Add(k, v)
		}
	}
	if signed {
		// Timestamp goes in immediately before signing so the signature
		// always covers a fresh value.
		p.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		p.Set("signature", sign(p.Encode(), t.cfg.APISecret))
	}
	encoded := p.Encode()

	var req *http.Request
	var err error
	endpoint := t.cfg.BaseURL + path
	if usesQueryParams(method, path) {
		if encoded != "" {
			endpoint += "?" + encoded
		}
		req, err = http.NewRequestWithContext(ctx, method, endpoint, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(encoded))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", method, path, err)
	}
	if t.cfg.APIKey != "" {
		req.Header.Set(apiKeyHeader, t.cfg.APIKey)
	}
	return req, nil
}

func usesQueryParams(method, path string) bool {
	switch method {
	case http.MethodGet, http.MethodDelete:
		return true
	case http.MethodPut:
		// Listen-key keep-alive takes query parameters despite being a PUT.
		return path == userDataStreamPath
	}
	return false
}

func sign(data, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}
