// Package vmadapter watches a libvirt hypervisor and turns its domain
// lifecycle into the same workload.start/workload.stop events
// containeradapter produces for containerd, so pkg/core never has to
// know which runtime a workload came from.
package vmadapter

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/beacond/pkg/events"
	"github.com/cuemby/beacond/pkg/log"
	"github.com/cuemby/beacond/pkg/selfaddr"
	"github.com/cuemby/beacond/pkg/types"
)

// metadataType is libvirt's VIR_DOMAIN_METADATA_ELEMENT constant,
// selecting the custom-XML-element form of domain metadata.
const metadataType = 2

// Adapter watches a libvirt daemon over its unix socket. A nil
// *Adapter is a valid, inert no-op: New returns one when the socket
// path doesn't exist, so callers never need a separate "is libvirt
// enabled" check.
type Adapter struct {
	l         *libvirt.Libvirt
	conn      net.Conn
	self      selfaddr.Addr
	ipTimeout time.Duration
}

// New connects to libvirt at socketPath. It returns (nil, nil) when
// the socket is absent, leaving VM discovery disabled for hosts with
// no hypervisor.
func New(socketPath string, ipTimeout time.Duration, self selfaddr.Addr) (*Adapter, error) {
	if _, err := os.Stat(socketPath); err != nil {
		if os.IsNotExist(err) {
			log.WithComponent("vmadapter").Info().Str("socket", socketPath).Msg("libvirt socket not found, adapter disabled")
			return nil, nil
		}
		return nil, fmt.Errorf("stat libvirt socket %s: %w", socketPath, err)
	}

	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dial libvirt socket %s: %w", socketPath, err)
	}

	l := libvirt.New(conn)
	if err := l.Connect(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connect to libvirt at %s: %w", socketPath, err)
	}

	return &Adapter{l: l, conn: conn, self: self, ipTimeout: ipTimeout}, nil
}

func (a *Adapter) Close() error {
	if a == nil {
		return nil
	}
	if err := a.l.Disconnect(); err != nil {
		return fmt.Errorf("disconnect from libvirt: %w", err)
	}
	return nil
}

// Enumerate lists every running domain as a Workload, for the
// startup reconciliation pass. Domains whose IP can't be resolved
// within the configured timeout are skipped, matching the behavior of
// late arrivals seen through Run.
func (a *Adapter) Enumerate(ctx context.Context) ([]types.Workload, error) {
	if a == nil {
		return nil, nil
	}

	domains, _, err := a.l.ConnectListAllDomains(-1, libvirt.ConnectListDomainsActive)
	if err != nil {
		return nil, fmt.Errorf("list active domains: %w", err)
	}

	workloads := make([]types.Workload, 0, len(domains))
	for _, dom := range domains {
		wl, ok, err := a.snapshot(ctx, dom)
		if err != nil {
			log.WithComponent("vmadapter").Warn().Str("domain", dom.Name).Err(err).Msg("inspect domain")
			continue
		}
		if ok {
			workloads = append(workloads, wl)
		}
	}
	return workloads, nil
}

// Run streams libvirt lifecycle events until ctx is canceled,
// publishing a start or stop event to broker for each one that maps
// to a workload transition.
func (a *Adapter) Run(ctx context.Context, broker *events.Broker) error {
	if a == nil {
		<-ctx.Done()
		return nil
	}

	logger := log.WithComponent("vmadapter")
	evCh, err := a.l.LifecycleEvents(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to libvirt lifecycle events: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-evCh:
			if !ok {
				return nil
			}
			a.handleLifecycleEvent(ctx, ev, broker, logger)
		}
	}
}

func (a *Adapter) handleLifecycleEvent(ctx context.Context, ev libvirt.DomainEventLifecycle, broker *events.Broker, logger zerolog.Logger) {
	evType := LifecycleEvent(ev.Event)
	dom := ev.Dom

	switch {
	case evType == EventStarted:
		go a.publishStart(ctx, dom, broker, logger)
	case evType == EventStopped:
		broker.Publish(&events.Event{
			Type: events.EventWorkloadStop,
			Workload: types.Workload{
				SourceID: sourceID(dom),
				Source:   types.SourceVM,
				Name:     dom.Name,
			},
		})
	case evType == EventDefined && a.isRunning(dom):
		go a.publishStart(ctx, dom, broker, logger)
	default:
		// Undefined, Suspended, Resumed, Shutdown, PMSuspended, and
		// Crashed are all dropped, per spec.md §4.1.2's exactly-three
		// translations.
		logger.Debug().Str("domain", dom.Name).Str("event", evType.String()).Msg("lifecycle event ignored")
	}
}

func (a *Adapter) isRunning(dom libvirt.Domain) bool {
	state, _, err := a.l.DomainGetState(dom, 0)
	if err != nil {
		return false
	}
	return state == domainRunning
}

// publishStart resolves a domain's address and labels, bounded by
// ipTimeout, and publishes a start event once it has them. It runs in
// its own goroutine per event so a slow IP resolution never blocks
// the lifecycle event loop.
func (a *Adapter) publishStart(ctx context.Context, dom libvirt.Domain, broker *events.Broker, logger zerolog.Logger) {
	wl, ok, err := a.snapshot(ctx, dom)
	if err != nil {
		logger.Warn().Str("domain", dom.Name).Err(err).Msg("inspect domain failed")
		return
	}
	if !ok {
		logger.Warn().Str("domain", dom.Name).Dur("timeout", a.ipTimeout).Msg("domain ip not resolved in time, skipping registration")
		return
	}
	broker.Publish(&events.Event{Type: events.EventWorkloadStart, Workload: wl})
}

// snapshot builds the Workload a running domain currently represents:
// its XML-declared network identity, resolved IP, and metadata
// labels. ok is false when the IP could not be resolved within
// ipTimeout, which the caller treats as a skip, not an error.
func (a *Adapter) snapshot(ctx context.Context, dom libvirt.Domain) (types.Workload, bool, error) {
	raw, err := a.l.DomainGetXMLDesc(dom, 0)
	if err != nil {
		return types.Workload{}, false, fmt.Errorf("get domain xml: %w", err)
	}

	dx, err := parseDomainXML(raw)
	if err != nil {
		return types.Workload{}, false, fmt.Errorf("parse domain xml: %w", err)
	}

	network, _ := dx.firstInterfaceNetwork()

	ip, ok, err := resolveIP(ctx, a.l, dom, dx, a.ipTimeout)
	if err != nil {
		return types.Workload{}, false, fmt.Errorf("resolve ip: %w", err)
	}
	if !ok {
		return types.Workload{}, false, nil
	}

	labels, err := a.labels(dom)
	if err != nil {
		return types.Workload{}, false, fmt.Errorf("read domain metadata: %w", err)
	}

	return types.Workload{
		SourceID:  sourceID(dom),
		Source:    types.SourceVM,
		Name:      dom.Name,
		Hostname:  dom.Name,
		IP:        ip,
		Network:   network,
		Labels:    labels,
		StartedAt: time.Now(),
	}, true, nil
}

// labels reads a domain's custom metadata, treating libvirt's
// "no metadata of this type" response as an empty label set rather
// than an error: most domains never carry any.
func (a *Adapter) labels(dom libvirt.Domain) (types.Labels, error) {
	raw, err := a.l.DomainGetMetadata(dom, metadataType, libvirt.OptString{metadataURI}, 0)
	if err != nil {
		if isNoMetadataError(err) {
			return types.Labels{}, nil
		}
		return nil, err
	}
	return parseLabels(raw)
}

func sourceID(dom libvirt.Domain) string {
	return "vm:" + uuid.UUID(dom.UUID).String()
}
