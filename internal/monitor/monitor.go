package monitor

import (
	"context"
	"log"
	"time"

	"accum-core/internal/events"
)

// Collector watches the event bus and keeps the metrics counters current.
// Risk denials are additionally forwarded to the alert sink.
type Collector struct {
	Bus     *events.Bus
	Metrics *SystemMetrics
	Alerts  AlertSink
}

// Start subscribes to the bus topics and counts in the background until the
// context ends.
func (c *Collector) Start(ctx context.Context) {
	if c.Bus == nil || c.Metrics == nil {
		log.Println("monitor not fully configured; skipping")
		return
	}

	count := func(e events.Event, fn func(any)) {
		stream, unsub := c.Bus.Subscribe(e, 100)
		go func() {
			defer unsub()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-stream:
					if !ok {
						return
					}
					fn(msg)
				}
			}
		}()
	}

	count(events.EventPriceTick, func(any) { c.Metrics.IncrementTicks() })
	count(events.EventCandleClosed, func(any) { c.Metrics.IncrementCandles() })
	count(events.EventSignal, func(any) { c.Metrics.IncrementSignals() })
	count(events.EventOrderSubmitted, func(any) { c.Metrics.IncrementOrders() })
	count(events.EventRiskDenied, func(msg any) {
		c.Metrics.IncrementRiskDenials()
		if c.Alerts != nil {
			if err := c.Alerts.Send(formatAlert(msg)); err != nil {
				log.Printf("monitor: alert delivery failed: %v", err)
			}
		}
	})
}

func formatAlert(msg any) string {
	return "[" + time.Now().Format(time.RFC3339) + "] " + toString(msg)
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	default:
		return "risk denial"
	}
}
