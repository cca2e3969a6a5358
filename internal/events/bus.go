package events

import (
	"sync"
	"sync/atomic"
)

// Bus fans events out from the market feed and the coordinator to whoever
// listens: the API websocket, the metrics collector. Publishing never blocks;
// a subscriber that falls behind loses events rather than stalling the
// pipeline.
type Bus struct {
	mu      sync.RWMutex
	subs    map[Event][]chan any
	dropped atomic.Int64
}

func NewBus() *Bus {
	return &Bus{subs: make(map[Event][]chan any)}
}

// Subscribe registers a buffered listener for one topic. The returned stop
// function removes the subscription and closes the channel.
func (b *Bus) Subscribe(topic Event, buffer int) (<-chan any, func()) {
	ch := make(chan any, buffer)

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()

	stop := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		listeners := b.subs[topic]
		for i, c := range listeners {
			if c == ch {
				close(c)
				b.subs[topic] = append(listeners[:i], listeners[i+1:]...)
				return
			}
		}
	}
	return ch, stop
}

// Publish delivers the payload to every subscriber of the topic. Full
// subscriber buffers are skipped and counted.
func (b *Bus) Publish(topic Event, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[topic] {
		select {
		case ch <- payload:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped reports how many deliveries were skipped because a subscriber's
// buffer was full.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}
