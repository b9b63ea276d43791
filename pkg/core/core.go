// Package core owns the in-memory DNS/load-balancer model and is the
// only place that mutates it.
package core

import (
	"fmt"
	"sync"

	"github.com/cuemby/beacond/pkg/dnsgen"
	"github.com/cuemby/beacond/pkg/lbgen"
	"github.com/cuemby/beacond/pkg/log"
	"github.com/cuemby/beacond/pkg/metrics"
	"github.com/cuemby/beacond/pkg/types"
)

// Core replaces the teacher's Raft-backed cluster state with a plain
// mutex-guarded pair of maps, rebuilt from scratch on every daemon
// startup and never persisted: spec.md §1/§3.2 rule out a replicated
// log here, since there is nothing to recover — a restart simply
// re-enumerates the adapters.
type Core struct {
	mu    sync.Mutex
	model *types.Model

	selfID string
	selfIP string

	dnsDomain   string
	dnsWildcard bool
	lbDomain    string

	dnsGen *dnsgen.Generator
	lbGen  *lbgen.Generator
}

// New returns a Core ready to accept Start/Stop calls. selfID and selfIP
// identify the daemon's own workload, used by lbgen to mint synthetic
// DNS entries pointing the frontend hosts it generates back at this
// host. dnsDomain/lbDomain are the configured defaults a Workload's
// labels fall back to when dns.domain/lb.domain are unset; dnsWildcard
// is the configured default (DNS_WILDCARD) a Workload's labels fall
// back to when dns.wildcard is unset.
func New(selfID, selfIP, dnsDomain string, dnsWildcard bool, lbDomain string, dnsGen *dnsgen.Generator, lbGen *lbgen.Generator) *Core {
	return &Core{
		model:       types.NewModel(),
		selfID:      selfID,
		selfIP:      selfIP,
		dnsDomain:   dnsDomain,
		dnsWildcard: dnsWildcard,
		lbDomain:    lbDomain,
		dnsGen:      dnsGen,
		lbGen:       lbGen,
	}
}

// Start registers (or re-registers) ws as a DnsEntry and LbEntry, then
// converges. Re-Start of an already-known source_id overwrites both
// entries, idempotently.
func (c *Core) Start(ws types.Workload) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	logger := log.WithSourceID(ws.SourceID)

	c.model.DNS[ws.SourceID] = &types.DnsEntry{
		SourceID: ws.SourceID,
		Hostname: ws.Hostname,
		Name:     ws.Name,
		IP:       ws.IP,
		Network:  ws.Network,
		Domain:   ws.Labels.DNSDomain(c.dnsDomain),
		Aliases:  ws.Labels.DNSAliases(),
		Wildcard: ws.Labels.DNSWildcard(c.dnsWildcard),
	}
	c.model.LB[ws.SourceID] = &types.LbEntry{
		SourceID: ws.SourceID,
		Hostname: ws.Hostname,
		IP:       ws.IP,
		Domain:   ws.Labels.LBDomain(c.lbDomain),
		HTTP:     ws.Labels.LBHTTP(),
		TCP:      ws.Labels.LBTCP(),
	}

	logger.Info().Str("name", ws.Name).Str("ip", ws.IP).Msg("workload started")
	metrics.ConvergenceCyclesTotal.WithLabelValues("start").Inc()
	return c.converge()
}

// Stop deletes source_id's DnsEntry and LbEntry, if present, then
// converges.
func (c *Core) Stop(sourceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.model.DNS, sourceID)
	delete(c.model.LB, sourceID)

	log.WithSourceID(sourceID).Info().Msg("workload stopped")
	metrics.ConvergenceCyclesTotal.WithLabelValues("stop").Inc()
	return c.converge()
}

// converge invokes the load-balancer generator before the DNS
// generator, per spec.md §4.2: the LB generator mutates the model's
// synthetic DNS entries, which the DNS generator must see before it
// renders. Caller must hold mu.
func (c *Core) converge() error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ConvergenceDuration)

	var errs []error
	if err := c.lbGen.Generate(c.model, c.selfID, c.selfIP); err != nil {
		errs = append(errs, fmt.Errorf("lbgen: %w", err))
	}
	if err := c.dnsGen.Generate(c.model); err != nil {
		errs = append(errs, fmt.Errorf("dnsgen: %w", err))
	}

	metrics.WorkloadsTotal.WithLabelValues("all").Set(float64(len(c.model.LB)))

	if len(errs) == 0 {
		return nil
	}
	for _, err := range errs {
		log.WithComponent("core").Error().Msg(err.Error())
	}
	// A generation failure never tears down the core (spec §7); it is
	// logged and the next Start/Stop tries again.
	return nil
}

// Snapshot returns a point-in-time copy of the known source_ids, for
// diagnostics and tests. It does not expose the underlying entries to
// avoid accidental unsynchronized mutation.
func (c *Core) Snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.model.LB))
	for id := range c.model.LB {
		ids = append(ids, id)
	}
	return ids
}
