package exchange

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStreamClientSubscribesAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub controlMessage
		if err := conn.ReadJSON(&sub); err != nil {
			t.Errorf("read subscribe: %v", err)
			return
		}
		if sub.Method != "SUBSCRIPTION" || len(sub.Params) != 2 {
			t.Errorf("subscribe=%+v, want one batch with both channels", sub)
		}

		// Ack first, then a text data frame, then a gzip binary frame.
		conn.WriteJSON(map[string]string{"msg": "subscribed"})
		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"c":"spot@public.kline.v3.api@BTCUSDT@Min1","s":"BTCUSDT","d":{"o":"100"}}`))

		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		zw.Write([]byte(`{"c":"spot@public.deals.v3.api@BTCUSDT","s":"BTCUSDT","d":{"p":"101"}}`))
		zw.Close()
		conn.WriteMessage(websocket.BinaryMessage, buf.Bytes())
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewStreamClient(StreamConfig{URL: wsURL(srv), Heartbeat: 2 * time.Second},
		KlineChannel("BTCUSDT", "Min1"), DealsChannel("BTCUSDT"))
	if err := client.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()
	if got := client.State(); got != StateSubscribed {
		t.Errorf("state=%s, want SUBSCRIBED", got)
	}

	msg, err := client.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Channel != KlineChannel("BTCUSDT", "Min1") || msg.Symbol != "BTCUSDT" {
		t.Errorf("msg=%+v", msg)
	}
	if got := client.State(); got != StateStreaming {
		t.Errorf("state=%s, want STREAMING", got)
	}

	msg, err = client.Read()
	if err != nil {
		t.Fatalf("read binary: %v", err)
	}
	var payload struct {
		P string `json:"p"`
	}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.P != "101" {
		t.Errorf("binary payload=%s err=%v", msg.Payload, err)
	}
}

func TestStreamClientAnswersHeartbeat(t *testing.T) {
	gotPong := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.ReadJSON(new(controlMessage))

		conn.WriteJSON(map[string]int64{"ping": 1712345678})
		// The pong answer arrives as a text frame.
		var pong map[string]int64
		if err := conn.ReadJSON(&pong); err == nil && pong["pong"] == 1712345678 {
			gotPong <- struct{}{}
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"c":"ch","s":"BTCUSDT","d":{}}`))
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewStreamClient(StreamConfig{URL: wsURL(srv), Heartbeat: 2 * time.Second}, "ch")
	if err := client.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	msg, err := client.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Channel != "ch" {
		t.Errorf("heartbeat frame surfaced instead of data: %+v", msg)
	}
	select {
	case <-gotPong:
	case <-time.After(time.Second):
		t.Error("server never received the pong answer")
	}
}

func TestStreamClientLivenessTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.ReadJSON(new(controlMessage))
		// Keep the connection open but silent.
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	client := NewStreamClient(StreamConfig{URL: wsURL(srv), Heartbeat: 200 * time.Millisecond}, "ch")
	if err := client.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	start := time.Now()
	if _, err := client.Read(); err == nil {
		t.Fatal("silent connection must fail the read")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("liveness timeout took %v, want ~200ms", elapsed)
	}
}

func TestSupervisorReconnects(t *testing.T) {
	conns := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns++
		conn.ReadJSON(new(controlMessage))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"c":"ch","s":"BTCUSDT","d":{}}`))
		time.Sleep(50 * time.Millisecond)
		conn.Close() // simulate a dropped session
	}))
	defer srv.Close()

	build := func() *StreamClient {
		return NewStreamClient(StreamConfig{URL: wsURL(srv), Heartbeat: time.Second}, "ch")
	}
	sup := NewStreamSupervisor(build, 20*time.Millisecond, 8)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(done)
	}()

	for i := 0; i < 2; i++ {
		select {
		case _, ok := <-sup.Messages():
			if !ok {
				t.Fatal("message channel closed early")
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("message %d never arrived", i)
		}
	}

	sup.Stop()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("supervisor did not stop at loop boundary")
	}
	if conns < 2 {
		t.Errorf("connections=%d, want at least 2 (reconnect happened)", conns)
	}
}
