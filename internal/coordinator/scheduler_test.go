package coordinator

import (
	"context"
	"testing"
	"time"

	"accum-core/internal/domain"
	"accum-core/internal/risk"
)

// A scheduled trigger that lands while a cycle is in flight must be
// rejected right away, not held back and run after the cycle finishes.
func TestSchedulerOverlappingTriggerRejected(t *testing.T) {
	f := newFixture(t, domain.RebalancePlan{Action: domain.ActionHold, Reason: "flat"}, risk.Config{})
	f.market.block = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := NewScheduler(f.coord, testSymbol, 5*time.Millisecond, 7*time.Millisecond)
	go sched.Run(ctx)

	// The first tick parks inside the blocked market call. Every later tick,
	// from either interval, must come back rejected while it is parked.
	deadline := time.After(2 * time.Second)
	for {
		if _, skipped := sched.Counts(); skipped >= 2 {
			break
		}
		select {
		case <-deadline:
			triggered, skipped := sched.Counts()
			t.Fatalf("no overlapping trigger rejected (triggered=%d skipped=%d)", triggered, skipped)
		default:
			time.Sleep(time.Millisecond)
		}
	}

	// The rejections happened while the first cycle was still running.
	f.coord.mu.Lock()
	running := f.coord.running[testSymbol]
	f.coord.mu.Unlock()
	if !running {
		t.Fatal("first cycle not in flight while overlaps were rejected")
	}

	close(f.market.block)
	cancel()

	// Rejected triggers never ran: the archive holds only completed cycles,
	// all of them HELD.
	waitDone := time.After(2 * time.Second)
	for {
		records := f.coord.Recent(0)
		if len(records) > 0 {
			for _, r := range records {
				if r.Result.Status != StatusHeld {
					t.Fatalf("archived status = %s, want HELD", r.Result.Status)
				}
			}
			break
		}
		select {
		case <-waitDone:
			t.Fatal("first cycle never completed")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}
