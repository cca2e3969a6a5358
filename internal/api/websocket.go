package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"accum-core/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsEnvelope wraps every outbound frame so clients can demux topics.
type wsEnvelope struct {
	Topic   string `json:"topic"`
	Payload any    `json:"payload"`
}

// websocket streams price ticks, closed candles and fired signals to the
// connected client until it goes away.
func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade: %v", err)
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteJSON(wsEnvelope{Topic: "error", Payload: "event bus not ready"})
		return
	}

	ticks, unsubTicks := s.Bus.Subscribe(events.EventPriceTick, 100)
	defer unsubTicks()
	candles, unsubCandles := s.Bus.Subscribe(events.EventCandleClosed, 16)
	defer unsubCandles()
	signals, unsubSignals := s.Bus.Subscribe(events.EventSignal, 16)
	defer unsubSignals()

	// Reads are discarded; the loop exists to notice a closed peer.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		var frame wsEnvelope
		select {
		case <-gone:
			return
		case msg := <-ticks:
			frame = wsEnvelope{Topic: string(events.EventPriceTick), Payload: msg}
		case msg := <-candles:
			frame = wsEnvelope{Topic: string(events.EventCandleClosed), Payload: msg}
		case msg := <-signals:
			frame = wsEnvelope{Topic: string(events.EventSignal), Payload: msg}
		}
		if err := conn.WriteJSON(frame); err != nil {
			log.Printf("ws write: %v", err)
			return
		}
	}
}
