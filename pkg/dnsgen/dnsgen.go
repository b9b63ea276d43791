package dnsgen

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/cuemby/beacond/pkg/log"
	"github.com/cuemby/beacond/pkg/metrics"
	"github.com/cuemby/beacond/pkg/types"
)

// Reloader signals the resolver process that its files have changed.
// ReloadDNS asks it to re-read the hosts file without restarting;
// RestartDNS asks for a full restart, needed because most resolvers
// only re-read wildcard/address directives at startup.
type Reloader interface {
	ReloadDNS() error
	RestartDNS() error
}

// Generator renders the resolver's hosts and wildcards files from a
// Model and reloads the resolver only when the rendered text changes.
type Generator struct {
	hostsPath     string
	wildcardsPath string
	reloader      Reloader

	lastHosts     []byte
	lastWildcards []byte
}

// New returns a Generator that writes to hostsPath/wildcardsPath and
// signals reloader on change.
func New(hostsPath, wildcardsPath string, reloader Reloader) *Generator {
	return &Generator{hostsPath: hostsPath, wildcardsPath: wildcardsPath, reloader: reloader}
}

// Generate rewrites the hosts and wildcards files if their content
// changed since the last call, firing the matching reload signal for
// each file independently.
func (g *Generator) Generate(model *types.Model) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.GenerationDuration, "dns")

	metrics.DNSEntriesTotal.Set(float64(len(model.DNS)))

	hosts := renderHosts(model)
	if !bytes.Equal(hosts, g.lastHosts) {
		if err := os.WriteFile(g.hostsPath, hosts, 0644); err != nil {
			metrics.ReloadsTotal.WithLabelValues("dns", "error").Inc()
			return fmt.Errorf("write hosts file %s: %w", g.hostsPath, err)
		}
		g.lastHosts = hosts
		if err := g.reloader.ReloadDNS(); err != nil {
			metrics.ReloadsTotal.WithLabelValues("dns", "error").Inc()
			log.WithComponent("dnsgen").Error().Err(err).Msg("reload dns")
		} else {
			metrics.ReloadsTotal.WithLabelValues("dns", "success").Inc()
		}
	}

	wildcards := renderWildcards(model)
	if !bytes.Equal(wildcards, g.lastWildcards) {
		if err := os.WriteFile(g.wildcardsPath, wildcards, 0644); err != nil {
			metrics.ReloadsTotal.WithLabelValues("dns", "error").Inc()
			return fmt.Errorf("write wildcards file %s: %w", g.wildcardsPath, err)
		}
		g.lastWildcards = wildcards
		if err := g.reloader.RestartDNS(); err != nil {
			metrics.ReloadsTotal.WithLabelValues("dns", "error").Inc()
			log.WithComponent("dnsgen").Error().Err(err).Msg("restart dns")
		} else {
			metrics.ReloadsTotal.WithLabelValues("dns", "success").Inc()
		}
	}

	return nil
}

// renderHosts builds the hosts-file text: one line per DnsEntry, FQDN
// first, each name deduplicated within the line.
func renderHosts(model *types.Model) []byte {
	entries := sortedEntries(model)

	var buf bytes.Buffer
	for _, e := range entries {
		names := hostNames(e)
		if len(names) == 0 {
			continue
		}
		buf.WriteString(e.IP)
		for _, n := range names {
			buf.WriteByte(' ')
			buf.WriteString(n)
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// hostNames lists the deduplicated names to publish for one entry, FQDN
// first per spec (the resolver uses the first name for reverse lookups).
func hostNames(e *types.DnsEntry) []string {
	seen := make(map[string]bool)
	var names []string
	add := func(n string) {
		if n == "" || seen[n] {
			return
		}
		seen[n] = true
		names = append(names, n)
	}

	add(e.FQDN())
	add(e.Hostname)
	if e.Name != "" {
		add(joinDomain(e.Name, e.Domain))
		add(e.Name)
	}
	for _, alias := range e.Aliases {
		alias = normalizeAlias(alias, e.Domain)
		add(alias)
		add(joinDomain(alias, e.Domain))
	}
	return names
}

// normalizeAlias strips a leading "*.", ".", or "*" (in that order) and
// collapses "alias.domain.domain" down to "alias.domain".
func normalizeAlias(alias, domain string) string {
	switch {
	case strings.HasPrefix(alias, "*."):
		alias = alias[2:]
	case strings.HasPrefix(alias, "."):
		alias = alias[1:]
	case strings.HasPrefix(alias, "*"):
		alias = alias[1:]
	}
	if domain != "" && strings.HasSuffix(alias, "."+domain+"."+domain) {
		alias = strings.TrimSuffix(alias, "."+domain)
	}
	return alias
}

func joinDomain(name, domain string) string {
	if domain == "" || strings.HasSuffix(name, "."+domain) {
		return name
	}
	return name + "." + domain
}

// renderWildcards builds the dnsmasq-style wildcards file: one
// "address=/<host>/<ip>" line for every host that appears on the
// entry's hosts-file line (testable property: wildcard mapping).
func renderWildcards(model *types.Model) []byte {
	entries := sortedEntries(model)

	var buf bytes.Buffer
	for _, e := range entries {
		if !e.Wildcard {
			continue
		}
		for _, host := range hostNames(e) {
			buf.WriteString(fmt.Sprintf("address=/%s/%s\n", host, e.IP))
		}
	}
	return buf.Bytes()
}

// sortedEntries returns model.DNS's values ordered by source_id, so
// rendering is a deterministic function of the model.
func sortedEntries(model *types.Model) []*types.DnsEntry {
	keys := make([]string, 0, len(model.DNS))
	for k := range model.DNS {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]*types.DnsEntry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, model.DNS[k])
	}
	return entries
}
