package lbgen

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/template"

	"github.com/cuemby/beacond/pkg/log"
	"github.com/cuemby/beacond/pkg/metrics"
	"github.com/cuemby/beacond/pkg/types"
)

// Reloader invokes the external proxy-reload helper once the assembled
// config text changes.
type Reloader interface {
	ReloadProxy(configPath string) error
}

// Generator rebuilds the downstream proxy configuration from the model
// on every convergence cycle and mints the synthetic DNS entries that
// let the frontend hosts it just generated resolve back to this host.
type Generator struct {
	templatePath string
	configPath   string
	reloader     Reloader

	lastRendered []byte
}

// New returns a Generator reading its static config head from
// templatePath and writing the rendered config to configPath.
func New(templatePath, configPath string, reloader Reloader) *Generator {
	return &Generator{templatePath: templatePath, configPath: configPath, reloader: reloader}
}

// Generate flushes and repopulates model's synthetic DNS entries, then
// rebuilds the proxy config from scratch and reloads the proxy only if
// the rendered text changed since the last call.
func (g *Generator) Generate(model *types.Model, selfID, selfIP string) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.GenerationDuration, "lb")

	flushSynthetic(model, selfID)

	httpGroups := collectHTTP(model)
	tcpGroups := collectTCP(model)

	for _, g := range httpGroups {
		addSynthetic(model, selfID, selfIP, g.host, g.domain, g.wildcard)
	}
	for _, g := range tcpGroups {
		addSynthetic(model, selfID, selfIP, g.host, g.domain, g.wildcard)
	}

	metrics.LBEntriesTotal.Set(float64(len(model.LB)))

	prefix, err := os.ReadFile(g.templatePath)
	if err != nil {
		return fmt.Errorf("read proxy config template %s: %w", g.templatePath, err)
	}

	rendered, err := render(prefix, httpGroups, tcpGroups)
	if err != nil {
		return fmt.Errorf("render proxy config: %w", err)
	}

	if bytes.Equal(rendered, g.lastRendered) {
		return nil
	}

	if err := os.WriteFile(g.configPath, rendered, 0644); err != nil {
		metrics.ReloadsTotal.WithLabelValues("lb", "error").Inc()
		return fmt.Errorf("write proxy config %s: %w", g.configPath, err)
	}
	g.lastRendered = rendered

	if err := g.reloader.ReloadProxy(g.configPath); err != nil {
		metrics.ReloadsTotal.WithLabelValues("lb", "error").Inc()
		log.WithComponent("lbgen").Error().Err(err).Msg("reload proxy")
		return nil // downstream reload failures are logged, not fatal (spec §7)
	}
	metrics.ReloadsTotal.WithLabelValues("lb", "success").Inc()
	return nil
}

func syntheticKey(selfID, host string) string {
	return selfID + "_" + host
}

// flushSynthetic removes every DNS entry this generator previously
// minted for selfID, guaranteeing that a host dropped from the LB table
// does not survive as a stale synthetic entry (spec invariant 2).
func flushSynthetic(model *types.Model, selfID string) {
	prefix := selfID + "_"
	for k, e := range model.DNS {
		if e.Synthetic && strings.HasPrefix(k, prefix) {
			delete(model.DNS, k)
		}
	}
}

// addSynthetic registers (or bumps the refcount of) the synthetic DNS
// entry that lets host resolve to the daemon's own address.
func addSynthetic(model *types.Model, selfID, selfIP, host, domain string, wildcard bool) {
	key := syntheticKey(selfID, host)
	if existing, ok := model.DNS[key]; ok {
		existing.RefCount++
		return
	}
	model.DNS[key] = &types.DnsEntry{
		SourceID:  key,
		Hostname:  host,
		IP:        selfIP,
		Domain:    domain,
		Wildcard:  wildcard,
		RefCount:  1,
		Synthetic: true,
	}
}

type httpServer struct {
	workloadHost string
	ip           string
	port         int
}

type httpGroup struct {
	host     string
	domain   string
	wildcard bool
	servers  []httpServer
}

// collectHTTP parses every LbEntry's lb.http values and groups the
// resulting routes by host, skipping and logging malformed entries so
// the rest of the workload still registers (spec §7).
func collectHTTP(model *types.Model) []httpGroup {
	groups := make(map[string]*httpGroup)
	var order []string

	for _, entry := range model.LB {
		for _, raw := range entry.HTTP {
			route, err := types.ParseHTTPRoute(raw)
			if err != nil {
				log.WithComponent("lbgen").Warn().Str("source_id", entry.SourceID).Str("entry", raw).Err(err).Msg("skip lb.http entry")
				continue
			}
			g, ok := groups[route.Host]
			if !ok {
				g = &httpGroup{host: route.Host, domain: entry.Domain, wildcard: route.Wildcard}
				groups[route.Host] = g
				order = append(order, route.Host)
			}
			if route.Wildcard {
				g.wildcard = true
			}
			g.servers = append(g.servers, httpServer{workloadHost: entry.Hostname, ip: entry.IP, port: route.Port})
		}
	}

	sort.Strings(order)
	result := make([]httpGroup, 0, len(order))
	for _, host := range order {
		g := groups[host]
		sort.Slice(g.servers, func(i, j int) bool {
			if g.servers[i].workloadHost != g.servers[j].workloadHost {
				return g.servers[i].workloadHost < g.servers[j].workloadHost
			}
			return g.servers[i].ip < g.servers[j].ip
		})
		result = append(result, *g)
	}
	return result
}

type tcpServer struct {
	ip   string
	port int
}

type tcpGroup struct {
	frontPort int
	host      string
	domain    string
	wildcard  bool
	servers   []tcpServer
}

// collectTCP parses every LbEntry's lb.tcp values and groups the
// resulting routes by front_port, not by host (spec §4.4). When two
// distinct hosts claim the same front_port, the group's host/domain are
// whichever was seen first while ranging model.LB — Go map iteration has
// no stable order, so which one "wins" is intentionally undefined; this
// affects the frontend/backend names rendered for that port and the
// synthetic DNS entry minted for it, never the aggregated backend server
// list.
func collectTCP(model *types.Model) []tcpGroup {
	groups := make(map[int]*tcpGroup)
	var order []int

	for _, entry := range model.LB {
		for _, raw := range entry.TCP {
			route, err := types.ParseTCPRoute(raw)
			if err != nil {
				log.WithComponent("lbgen").Warn().Str("source_id", entry.SourceID).Str("entry", raw).Err(err).Msg("skip lb.tcp entry")
				continue
			}
			g, ok := groups[route.FrontPort]
			if !ok {
				g = &tcpGroup{frontPort: route.FrontPort, host: route.Host, domain: entry.Domain, wildcard: route.Wildcard}
				groups[route.FrontPort] = g
				order = append(order, route.FrontPort)
			} else if g.host != route.Host {
				log.WithComponent("lbgen").Warn().
					Int("front_port", route.FrontPort).Str("kept_host", g.host).Str("conflicting_host", route.Host).
					Msg("tcp front_port claimed by two distinct hosts")
			}
			g.servers = append(g.servers, tcpServer{ip: entry.IP, port: route.BackPort})
		}
	}

	sort.Ints(order)
	result := make([]tcpGroup, 0, len(order))
	for _, port := range order {
		g := groups[port]
		sort.Slice(g.servers, func(i, j int) bool {
			if g.servers[i].ip != g.servers[j].ip {
				return g.servers[i].ip < g.servers[j].ip
			}
			return g.servers[i].port < g.servers[j].port
		})
		result = append(result, *g)
	}
	return result
}

type templateData struct {
	Prefix       string
	HTTPFrontend []string
	HTTPBackends []httpBackendData
	TCPFrontends []tcpFrontendData
}

type httpBackendData struct {
	Name    string
	Servers []string
}

type tcpFrontendData struct {
	Host      string
	FrontPort int
	Servers   []string
}

var configTemplate = template.Must(template.New("proxy-config").Parse(`{{.Prefix}}

frontend http-in
    bind *:80
{{- range .HTTPFrontend}}
{{.}}
{{- end}}
{{range .HTTPBackends}}
backend backend_http_{{.Name}}
{{- range .Servers}}
    {{.}}
{{- end}}
{{end -}}
{{range .TCPFrontends}}
frontend frontend_tcp_{{.Host}}_{{.FrontPort}}
    bind *:{{.FrontPort}}
    mode tcp
    default_backend backend_tcp_{{.Host}}_{{.FrontPort}}

backend backend_tcp_{{.Host}}_{{.FrontPort}}
    mode tcp
    balance roundrobin
{{- range .Servers}}
    {{.}}
{{- end}}
{{end -}}
`))

func render(prefix []byte, httpGroups []httpGroup, tcpGroups []tcpGroup) ([]byte, error) {
	data := templateData{Prefix: strings.TrimRight(string(prefix), "\n")}

	for _, g := range httpGroups {
		data.HTTPFrontend = append(data.HTTPFrontend, hostACL(g.host), useBackend(g.host))

		servers := make([]string, 0, len(g.servers))
		for _, s := range g.servers {
			servers = append(servers, fmt.Sprintf("server %s %s:%d check port %d", serverName(s.workloadHost, s.ip), s.ip, s.port, s.port))
		}
		data.HTTPBackends = append(data.HTTPBackends, httpBackendData{Name: identifierSafe(g.host), Servers: servers})
	}

	for _, g := range tcpGroups {
		servers := make([]string, 0, len(g.servers))
		for i, s := range g.servers {
			servers = append(servers, fmt.Sprintf("server tcp_%d_%d %s:%d check port %d", g.frontPort, i, s.ip, s.port, s.port))
		}
		data.TCPFrontends = append(data.TCPFrontends, tcpFrontendData{Host: identifierSafe(g.host), FrontPort: g.frontPort, Servers: servers})
	}

	var buf bytes.Buffer
	if err := configTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func serverName(workloadHost, ip string) string {
	if workloadHost == "" {
		workloadHost = strings.ReplaceAll(ip, ".", "_")
	}
	return identifierSafe(workloadHost)
}
