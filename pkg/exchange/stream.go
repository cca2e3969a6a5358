package exchange

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// StreamState tracks the websocket session lifecycle.
type StreamState int32

const (
	StateDisconnected StreamState = iota
	StateConnecting
	StateSubscribed
	StateStreaming
	StateReconnecting
	StateStopped
)

func (s StreamState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateSubscribed:
		return "SUBSCRIBED"
	case StateStreaming:
		return "STREAMING"
	case StateReconnecting:
		return "RECONNECTING"
	case StateStopped:
		return "STOPPED"
	}
	return "UNKNOWN"
}

// RawMessage is one decoded data frame: the channel it arrived on, the
// symbol when present, and the raw JSON payload.
type RawMessage struct {
	Channel string
	Symbol  string
	Payload json.RawMessage
}

// StreamConfig tunes one websocket session.
type StreamConfig struct {
	URL       string
	Heartbeat time.Duration // max silence before the connection counts as dead
}

// StreamClient maintains one websocket session: batch subscribe on connect,
// ping/pong control handling, and JSON or gzip-binary frame decoding.
// A connection that stays silent past the heartbeat interval fails the next
// Read even though it is technically still open.
type StreamClient struct {
	cfg      StreamConfig
	channels []string

	dialer  *websocket.Dialer
	conn    *websocket.Conn
	writeMu sync.Mutex
	state   atomic.Int32
}

type controlMessage struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
}

// streamEnvelope is the wire shape of data frames. Heartbeat frames carry
// only the ping field.
type streamEnvelope struct {
	Channel string          `json:"c"`
	Symbol  string          `json:"s"`
	Data    json.RawMessage `json:"d"`
	Msg     string          `json:"msg"`
	Ping    int64           `json:"ping"`
}

// NewStreamClient builds a client subscribed to the given channels once
// connected.
func NewStreamClient(cfg StreamConfig, channels ...string) *StreamClient {
	if cfg.Heartbeat == 0 {
		cfg.Heartbeat = 60 * time.Second
	}
	return &StreamClient{
		cfg:      cfg,
		channels: append([]string(nil), channels...),
		dialer:   websocket.DefaultDialer,
	}
}

// State returns the current session state.
func (c *StreamClient) State() StreamState {
	return StreamState(c.state.Load())
}

func (c *StreamClient) setState(s StreamState) { c.state.Store(int32(s)) }

// Connect dials the stream endpoint and resubscribes the full channel set in
// one batch.
func (c *StreamClient) Connect() error {
	c.setState(StateConnecting)
	conn, _, err := c.dialer.Dial(c.cfg.URL, nil)
	if err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("dial stream: %w", err)
	}
	c.conn = conn

	// A protocol ping answers with a pong immediately and counts as
	// liveness; it is never surfaced to consumers.
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.Heartbeat))
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})

	if len(c.channels) > 0 {
		if err := c.writeJSON(controlMessage{Method: "SUBSCRIPTION", Params: c.channels}); err != nil {
			conn.Close()
			c.setState(StateDisconnected)
			return fmt.Errorf("batch subscribe: %w", err)
		}
	}
	c.setState(StateSubscribed)
	return nil
}

// Subscribe adds channels to the session; they survive reconnects.
func (c *StreamClient) Subscribe(channels ...string) error {
	c.channels = append(c.channels, channels...)
	if c.conn == nil {
		return nil
	}
	return c.writeJSON(controlMessage{Method: "SUBSCRIPTION", Params: channels})
}

// Unsubscribe removes channels from the session.
func (c *StreamClient) Unsubscribe(channels ...string) error {
	drop := make(map[string]bool, len(channels))
	for _, ch := range channels {
		drop[ch] = true
	}
	kept := c.channels[:0]
	for _, ch := range c.channels {
		if !drop[ch] {
			kept = append(kept, ch)
		}
	}
	c.channels = kept
	if c.conn == nil {
		return nil
	}
	return c.writeJSON(controlMessage{Method: "UNSUBSCRIPTION", Params: channels})
}

// Read blocks for the next data frame. Subscription acks and heartbeat
// frames are consumed internally; every returned message is a real data
// frame. An error here means the connection is dead.
func (c *StreamClient) Read() (RawMessage, error) {
	if c.conn == nil {
		return RawMessage{}, fmt.Errorf("stream: not connected")
	}
	for {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.Heartbeat)); err != nil {
			return RawMessage{}, err
		}
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return RawMessage{}, err
		}
		if msgType == websocket.BinaryMessage {
			data, err = gunzip(data)
			if err != nil {
				return RawMessage{}, fmt.Errorf("decode binary frame: %w", err)
			}
		}

		var env streamEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return RawMessage{}, fmt.Errorf("decode frame: %w", err)
		}
		if env.Ping != 0 {
			// Application-level heartbeat: answer and keep reading.
			_ = c.writeJSON(map[string]int64{"pong": env.Ping})
			continue
		}
		if env.Channel == "" {
			// Subscription ack or informational message.
			continue
		}
		c.setState(StateStreaming)
		return RawMessage{Channel: env.Channel, Symbol: env.Symbol, Payload: env.Data}, nil
	}
}

// Close tears the connection down. Safe to call on a client that never
// connected.
func (c *StreamClient) Close() error {
	if c.conn == nil {
		return nil
	}
	c.writeMu.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	err := c.conn.Close()
	c.conn = nil
	if c.State() != StateStopped {
		c.setState(StateDisconnected)
	}
	return err
}

func (c *StreamClient) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

func gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
