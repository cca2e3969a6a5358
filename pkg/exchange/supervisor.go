package exchange

import (
	"context"
	"log"
	"sync/atomic"
	"time"
)

// StreamSupervisor wraps one StreamClient with reconnect-on-failure. Any
// failure, including a heartbeat liveness timeout, tears the client down,
// waits a fixed delay, then reconstructs and resubscribes. Messages already
// handed to the consumer are never dropped; Stop takes effect at the next
// loop boundary, never mid-message.
type StreamSupervisor struct {
	build func() *StreamClient
	delay time.Duration

	out     chan RawMessage
	stopped atomic.Bool
}

// NewStreamSupervisor builds a supervisor. build must return a fresh,
// unconnected client each time it is called.
func NewStreamSupervisor(build func() *StreamClient, delay time.Duration, buffer int) *StreamSupervisor {
	return &StreamSupervisor{
		build: build,
		delay: delay,
		out:   make(chan RawMessage, buffer),
	}
}

// Messages returns the delivery channel. It closes when Run exits.
func (s *StreamSupervisor) Messages() <-chan RawMessage {
	return s.out
}

// Stop requests a cooperative shutdown.
func (s *StreamSupervisor) Stop() {
	s.stopped.Store(true)
}

// Run drives the connect/read/reconnect loop until Stop or context
// cancellation. Ingestion failures are absorbed here and never propagate to
// consumers.
func (s *StreamSupervisor) Run(ctx context.Context) {
	defer close(s.out)

	for !s.stopped.Load() && ctx.Err() == nil {
		client := s.build()
		if err := client.Connect(); err != nil {
			log.Printf("stream: connect failed: %v", err)
			if !s.wait(ctx) {
				return
			}
			continue
		}

		for !s.stopped.Load() {
			msg, err := client.Read()
			if err != nil {
				if !s.stopped.Load() {
					log.Printf("stream: session lost (%s): %v", client.State(), err)
				}
				break
			}
			select {
			case s.out <- msg:
			case <-ctx.Done():
				client.Close()
				return
			}
		}

		client.Close()
		client.setState(StateReconnecting)
		if s.stopped.Load() {
			client.setState(StateStopped)
			return
		}
		if !s.wait(ctx) {
			return
		}
	}
}

// wait sleeps the reconnect delay; false means shutdown was requested.
func (s *StreamSupervisor) wait(ctx context.Context) bool {
	select {
	case <-time.After(s.delay):
		return !s.stopped.Load()
	case <-ctx.Done():
		return false
	}
}
