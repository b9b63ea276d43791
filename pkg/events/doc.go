/*
Package events provides an in-memory pub/sub broker that fans the two
workload source adapters into a single consumer goroutine.

Both pkg/containeradapter and pkg/vmadapter publish workload.start and
workload.stop events to the same Broker; cmd/beacond subscribes once
and drives pkg/core from a single goroutine, so the two adapters never
need to coordinate with each other directly.

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	for ev := range sub {
		switch ev.Type {
		case events.EventWorkloadStart:
			core.Start(ev.Workload)
		case events.EventWorkloadStop:
			core.Stop(ev.Workload.SourceID)
		}
	}

Publish blocks only while the broker's 100-event queue is full (or
returns once the broker is stopped). Delivery to subscribers is
best-effort: a subscriber whose buffer is full skips the event rather
than stalling the broadcaster. beacond runs with exactly one subscriber
in practice, so this only matters if another consumer subscribes
alongside it.

# See Also

  - cmd/beacond, the sole production subscriber, which drives pkg/core
*/
package events
