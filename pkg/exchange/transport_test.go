package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func newTestTransport(baseURL string, maxRetries int) *SignedTransport {
	tr := NewSignedTransport(TransportConfig{
		APIKey:     "test-key",
		APISecret:  "test-secret",
		BaseURL:    baseURL,
		MaxRetries: maxRetries,
	})
	tr.sleep = func(time.Duration) {}
	return tr
}

func TestSendRetriesExhaustedOn503(t *testing.T) {
	calls := 0
	var backoffs []time.Duration
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr := newTestTransport(srv.URL, 4)
	tr.sleep = func(d time.Duration) { backoffs = append(backoffs, d) }

	_, err := tr.Send(context.Background(), http.MethodGet, "/api/v3/account", nil, true)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	var rle *RateLimitedError
	if !errors.As(err, &rle) {
		t.Fatalf("err=%T, want *RateLimitedError", err)
	}
	if calls != 4 {
		t.Errorf("calls=%d, want exactly the configured 4 attempts", calls)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	if len(backoffs) != len(want) {
		t.Fatalf("backoffs=%v, want %v", backoffs, want)
	}
	for i := range want {
		if backoffs[i] != want[i] {
			t.Errorf("backoff[%d]=%v, want %v", i, backoffs[i], want[i])
		}
	}
}

func TestSendSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tr := newTestTransport(srv.URL, 4)
	body, err := tr.Send(context.Background(), http.MethodGet, "/api/v3/time", nil, false)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls=%d, want exactly 1", calls)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("body=%s", body)
	}
}

func TestSendSignsSortedParams(t *testing.T) {
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "" {
			t.Errorf("POST carried query params: %s", r.URL.RawQuery)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotForm = r.PostForm
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	tr := newTestTransport(srv.URL, 1)
	params := url.Values{}
	params.Set("symbol", "BTCUSDT")
	params.Set("side", "BUY")
	if _, err := tr.Send(context.Background(), http.MethodPost, "/api/v3/order", params, true); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotForm.Get("timestamp") == "" {
		t.Error("timestamp not injected")
	}
	sig := gotForm.Get("signature")
	if sig == "" {
		t.Fatal("signature missing")
	}
	// Recompute over the sorted encoded set minus the signature itself.
	signed := url.Values{}
	for k, vs := range gotForm {
		if k == "signature" {
			continue
		}
		signed[k] = vs
	}
	mac := hmac.New(sha256.New, []byte("test-secret"))
	mac.Write([]byte(signed.Encode()))
	if want := hex.EncodeToString(mac.Sum(nil)); sig != want {
		t.Errorf("signature=%s, want %s", sig, want)
	}
}

func TestSendPlacesGetParamsInQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") != "BTCUSDT" {
			t.Errorf("query=%s, want symbol in query", r.URL.RawQuery)
		}
		if r.Header.Get(apiKeyHeader) != "test-key" {
			t.Errorf("api key header=%q", r.Header.Get(apiKeyHeader))
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	tr := newTestTransport(srv.URL, 1)
	params := url.Values{}
	params.Set("symbol", "BTCUSDT")
	if _, err := tr.Send(context.Background(), http.MethodGet, "/api/v3/openOrders", params, true); err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestListenKeyKeepAliveUsesQueryOnPut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method=%s", r.Method)
		}
		if r.URL.Query().Get("listenKey") != "lk-123" {
			t.Errorf("listenKey not in query: %s", r.URL.RawQuery)
		}
		body, _ := io.ReadAll(r.Body)
		if len(body) != 0 {
			t.Errorf("PUT keep-alive carried a body: %s", body)
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	tr := newTestTransport(srv.URL, 1)
	params := url.Values{}
	params.Set("listenKey", "lk-123")
	if _, err := tr.Send(context.Background(), http.MethodPut, userDataStreamPath, params, true); err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestSendMissingCredentials(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	tr := NewSignedTransport(TransportConfig{BaseURL: srv.URL})
	_, err := tr.Send(context.Background(), http.MethodGet, "/api/v3/account", nil, true)
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("err=%v, want ErrAuth", err)
	}
	if calls != 0 {
		t.Errorf("auth errors must not reach the network, calls=%d", calls)
	}
}

func TestSendFatalOnOtherStatus(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-1013,"msg":"Invalid quantity"}`))
	}))
	defer srv.Close()

	tr := newTestTransport(srv.URL, 4)
	_, err := tr.Send(context.Background(), http.MethodPost, "/api/v3/order", nil, true)
	var rej *RejectedError
	if !errors.As(err, &rej) {
		t.Fatalf("err=%T, want *RejectedError", err)
	}
	if rej.Status != http.StatusBadRequest {
		t.Errorf("status=%d", rej.Status)
	}
	if calls != 1 {
		t.Errorf("calls=%d, 4xx must not be retried", calls)
	}
}
