// Package containeradapter watches a containerd runtime and turns its
// container lifecycle into workload.start/workload.stop events.
package containeradapter

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/containerd/containerd"
	apievents "github.com/containerd/containerd/api/events"
	"github.com/containerd/containerd/namespaces"
	typeurl "github.com/containerd/typeurl/v2"
	specs "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/rs/zerolog"

	ctrdevents "github.com/containerd/containerd/events"

	"github.com/cuemby/beacond/pkg/events"
	"github.com/cuemby/beacond/pkg/log"
	"github.com/cuemby/beacond/pkg/selfaddr"
	"github.com/cuemby/beacond/pkg/types"
)

// Namespace isolates beacond's view of containerd from every other
// consumer of the same socket (CRI, other daemons).
const Namespace = "beacond"

// hostNetworkLabel marks a container that shares the host's network
// namespace; its IP is reported as the daemon's own.
const hostNetworkLabel = "network"

// Adapter watches a containerd socket for running containers. A nil
// *Adapter is a valid no-op: Enumerate returns nothing and Run blocks
// on ctx until cancellation, satisfying the "socket absent" contract
// without a separate interface or sentinel error type.
type Adapter struct {
	client *containerd.Client
	self   selfaddr.Addr

	mu    sync.Mutex
	cache map[string]types.Workload // keyed by full container ID
}

// New connects to the containerd socket at socketPath (accepting both
// bare paths and "unix://"-prefixed values). If the socket does not
// exist, New returns a nil *Adapter and a nil error: the adapter is
// optional per spec, and the daemon must still start.
func New(socketPath string, self selfaddr.Addr) (*Adapter, error) {
	path := normalizeSocket(socketPath)

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			log.WithComponent("containeradapter").Info().Str("socket", path).Msg("containerd socket not found, adapter disabled")
			return nil, nil
		}
		return nil, fmt.Errorf("stat containerd socket %s: %w", path, err)
	}

	client, err := containerd.New(path, containerd.WithDefaultNamespace(Namespace))
	if err != nil {
		return nil, fmt.Errorf("connect to containerd at %s: %w", path, err)
	}

	return &Adapter{
		client: client,
		self:   self,
		cache:  make(map[string]types.Workload),
	}, nil
}

func normalizeSocket(raw string) string {
	return strings.TrimPrefix(raw, "unix://")
}

// Close releases the containerd client connection. Safe to call on a
// nil *Adapter.
func (a *Adapter) Close() error {
	if a == nil || a.client == nil {
		return nil
	}
	return a.client.Close()
}

// Enumerate lists every running container and converts each to a
// Workload. A container whose IP or spec cannot be determined is
// logged and skipped; the rest of the enumeration still proceeds.
func (a *Adapter) Enumerate(ctx context.Context) ([]types.Workload, error) {
	if a == nil {
		return nil, nil
	}
	ctx = namespaces.WithNamespace(ctx, Namespace)

	containers, err := a.client.Containers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	logger := log.WithComponent("containeradapter")
	workloads := make([]types.Workload, 0, len(containers))
	for _, c := range containers {
		ws, ok, err := a.inspect(ctx, c)
		if err != nil {
			logger.Warn().Err(err).Str("container_id", c.ID()).Msg("skipping container")
			continue
		}
		if !ok {
			continue
		}
		workloads = append(workloads, ws)
	}
	return workloads, nil
}

// FindSelf scans every running container for one whose reported IP and
// hostname both match self, identifying the daemon's own container so
// pkg/core can own synthetic LB-frontend DNS entries under a real
// source_id instead of a made-up one (spec §4.1.1). ok is false when no
// running container matches; the caller treats that as fatal while a
// container adapter is active.
func (a *Adapter) FindSelf(ctx context.Context, self selfaddr.Addr) (types.Workload, bool, error) {
	if a == nil {
		return types.Workload{}, false, nil
	}
	workloads, err := a.Enumerate(ctx)
	if err != nil {
		return types.Workload{}, false, fmt.Errorf("enumerate containers for self-discovery: %w", err)
	}
	for _, ws := range workloads {
		if ws.IP == self.IP && ws.Hostname == self.Hostname {
			return ws, true, nil
		}
	}
	return types.Workload{}, false, nil
}

// Run subscribes to containerd's /tasks/start and /tasks/exit events
// and publishes a workload.start or workload.stop event to broker for
// each one, until ctx is canceled. Safe to call on a nil *Adapter,
// which simply blocks until ctx is done.
func (a *Adapter) Run(ctx context.Context, broker *events.Broker) error {
	if a == nil {
		<-ctx.Done()
		return nil
	}
	ctx = namespaces.WithNamespace(ctx, Namespace)

	eventCh, errCh := a.client.Subscribe(ctx, `topic=="/tasks/start"`, `topic=="/tasks/exit"`)
	logger := log.WithComponent("containeradapter")

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("containerd event stream: %w", err)
			}
			return nil
		case env := <-eventCh:
			a.handleEvent(ctx, env, broker, logger)
		}
	}
}

func (a *Adapter) handleEvent(ctx context.Context, env *ctrdevents.Envelope, broker *events.Broker, logger zerolog.Logger) {
	payload, err := typeurl.UnmarshalAny(env.Event)
	if err != nil {
		logger.Warn().Err(err).Str("topic", env.Topic).Msg("could not decode containerd event")
		return
	}

	switch ev := payload.(type) {
	case *apievents.TaskStart:
		a.publishStart(ctx, ev.ContainerID, broker, logger)
	case *apievents.TaskExit:
		a.invalidate(ev.ContainerID)
		broker.Publish(&events.Event{
			Type: events.EventWorkloadStop,
			Workload: types.Workload{
				SourceID: sourceID(ev.ContainerID),
				Source:   types.SourceContainer,
			},
		})
	}
}

func (a *Adapter) publishStart(ctx context.Context, containerID string, broker *events.Broker, logger zerolog.Logger) {
	c, err := a.client.LoadContainer(ctx, containerID)
	if err != nil {
		logger.Warn().Err(err).Str("container_id", containerID).Msg("could not load started container")
		return
	}
	ws, ok, err := a.inspect(ctx, c)
	if err != nil {
		logger.Warn().Err(err).Str("container_id", containerID).Msg("could not inspect started container")
		return
	}
	if !ok {
		return
	}
	broker.Publish(&events.Event{Type: events.EventWorkloadStart, Workload: ws})
}

func (a *Adapter) invalidate(containerID string) {
	a.mu.Lock()
	delete(a.cache, containerID)
	a.mu.Unlock()
}

// inspect converts one containerd.Container into a Workload, or
// (_, false, nil) if it has no running task. Results are cached per
// container ID until invalidate is called for that ID.
func (a *Adapter) inspect(ctx context.Context, c containerd.Container) (types.Workload, bool, error) {
	a.mu.Lock()
	if ws, ok := a.cache[c.ID()]; ok {
		a.mu.Unlock()
		return ws, true, nil
	}
	a.mu.Unlock()

	task, err := c.Task(ctx, nil)
	if err != nil {
		return types.Workload{}, false, nil // no task: not running
	}
	status, err := task.Status(ctx)
	if err != nil {
		return types.Workload{}, false, fmt.Errorf("task status: %w", err)
	}
	if status.Status != containerd.Running {
		return types.Workload{}, false, nil
	}

	labels, err := c.Labels(ctx)
	if err != nil {
		labels = nil
	}

	hostNetwork, err := a.hasHostNetwork(ctx, c, labels)
	if err != nil {
		return types.Workload{}, false, fmt.Errorf("read oci spec: %w", err)
	}

	var ip string
	if hostNetwork {
		ip = a.self.IP
	} else {
		ip, err = primaryIPv4ForPid(int(task.Pid()))
		if err != nil {
			return types.Workload{}, false, fmt.Errorf("resolve IP: %w", err)
		}
	}

	hostname := c.ID()
	if spec, err := c.Spec(ctx); err == nil && spec != nil && spec.Hostname != "" {
		hostname = spec.Hostname
	}

	var startedAt time.Time
	if info, err := c.Info(ctx); err == nil {
		startedAt = info.CreatedAt
	}

	ws := types.Workload{
		SourceID:  sourceID(c.ID()),
		Source:    types.SourceContainer,
		Name:      c.ID(),
		Hostname:  hostname,
		IP:        ip,
		Network:   networkLabel(hostNetwork),
		Labels:    types.Labels(labels),
		StartedAt: startedAt,
	}

	a.mu.Lock()
	a.cache[c.ID()] = ws
	a.mu.Unlock()

	return ws, true, nil
}

// hasHostNetwork reports whether c shares the host's network
// namespace, either via an empty-Path network namespace entry in its
// OCI spec or the containerd label "network=host".
func (a *Adapter) hasHostNetwork(ctx context.Context, c containerd.Container, labels map[string]string) (bool, error) {
	if labels[hostNetworkLabel] == "host" {
		return true, nil
	}

	spec, err := c.Spec(ctx)
	if err != nil {
		return false, err
	}
	if spec.Linux == nil {
		return false, nil
	}
	for _, ns := range spec.Linux.Namespaces {
		if ns.Type == specs.NetworkNamespace && ns.Path == "" {
			return true, nil
		}
	}
	return false, nil
}

func networkLabel(hostNetwork bool) string {
	if hostNetwork {
		return "host"
	}
	return "bridge"
}

func sourceID(containerID string) string {
	return "container:" + containerID
}
