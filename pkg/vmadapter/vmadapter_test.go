package vmadapter

import (
	"context"
	"testing"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/beacond/pkg/events"
	"github.com/cuemby/beacond/pkg/log"
)

func TestNilAdapterIsNoop(t *testing.T) {
	var a *Adapter
	require.NoError(t, a.Close())

	workloads, err := a.Enumerate(context.Background())
	require.NoError(t, err)
	require.Nil(t, workloads)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.NoError(t, a.Run(ctx, nil))
}

func TestHandleLifecycleEventDropsUndefined(t *testing.T) {
	a := &Adapter{}
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	ev := libvirt.DomainEventLifecycle{
		Dom:   libvirt.Domain{Name: "web-1"},
		Event: int32(EventUndefined),
	}
	a.handleLifecycleEvent(context.Background(), ev, broker, log.WithComponent("test"))

	select {
	case got := <-sub:
		t.Fatalf("EventUndefined must be dropped, got published event %+v", got)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSourceID(t *testing.T) {
	dom := libvirt.Domain{Name: "web-1", UUID: libvirt.UUID{
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
		0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10,
	}}
	require.Equal(t, "vm:01020304-0506-0708-090a-0b0c0d0e0f10", sourceID(dom))
}
