package lbgen

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cuemby/beacond/pkg/types"
)

type fakeReloader struct {
	reloads int
	lastCfg string
	err     error
}

func (f *fakeReloader) ReloadProxy(configPath string) error {
	f.reloads++
	f.lastCfg = configPath
	return f.err
}

func TestMatchesHost(t *testing.T) {
	tests := []struct {
		pattern, host string
		want          bool
	}{
		{"", "anything", true},
		{"app.local", "app.local", true},
		{"app.local", "app.local:8080", true},
		{"app.local", "other.local", false},
		{"*.app.local", "api.app.local", true},
		{"*.app.local", "app.local", false},
	}
	for _, tt := range tests {
		if got := MatchesHost(tt.pattern, tt.host); got != tt.want {
			t.Errorf("MatchesHost(%q, %q) = %v, want %v", tt.pattern, tt.host, got, tt.want)
		}
	}
}

func TestHostACLLine(t *testing.T) {
	line := hostACL("app.local")
	if !strings.Contains(line, "acl is_app_local") {
		t.Errorf("hostACL output missing acl name: %s", line)
	}
	if !strings.Contains(line, `hdr_reg(host) ^(.*\.|)app.local(\..+$|$)`) {
		t.Errorf("hostACL output missing regex: %s", line)
	}
}

func TestCollectHTTPGroupsByHostAndSkipsMalformed(t *testing.T) {
	model := types.NewModel()
	model.LB["container:a"] = &types.LbEntry{
		SourceID: "container:a", Hostname: "web-1", IP: "10.0.0.1", Domain: "local",
		HTTP: []string{"app.local:8080"},
	}
	model.LB["container:b"] = &types.LbEntry{
		SourceID: "container:b", Hostname: "web-2", IP: "10.0.0.2", Domain: "local",
		HTTP: []string{"app.local:8081", "not-a-route"},
	}

	groups := collectHTTP(model)
	if len(groups) != 1 {
		t.Fatalf("len(groups) = %d, want 1", len(groups))
	}
	if groups[0].host != "app.local" {
		t.Errorf("group host = %q, want app.local", groups[0].host)
	}
	if len(groups[0].servers) != 2 {
		t.Errorf("len(servers) = %d, want 2 (malformed entry must be skipped)", len(groups[0].servers))
	}
}

func TestCollectTCPGroupsByFrontPort(t *testing.T) {
	model := types.NewModel()
	model.LB["container:a"] = &types.LbEntry{
		SourceID: "container:a", IP: "10.0.0.1", Domain: "local",
		TCP: []string{"db.local:5432:5432"},
	}
	model.LB["container:b"] = &types.LbEntry{
		SourceID: "container:b", IP: "10.0.0.2", Domain: "local",
		TCP: []string{"db.local:5432"},
	}

	groups := collectTCP(model)
	if len(groups) != 1 {
		t.Fatalf("len(groups) = %d, want 1", len(groups))
	}
	if groups[0].frontPort != 5432 {
		t.Errorf("frontPort = %d, want 5432", groups[0].frontPort)
	}
	if len(groups[0].servers) != 2 {
		t.Errorf("len(servers) = %d, want 2", len(groups[0].servers))
	}
}

// TestScenarioS4HTTPBackend is spec.md's scenario S4: a single
// lb.http=tomcat:8080 workload must render a literal "tomcat-server"
// server line, not a port-suffixed identifier.
func TestScenarioS4HTTPBackend(t *testing.T) {
	model := types.NewModel()
	model.LB["container:tomcat"] = &types.LbEntry{
		SourceID: "container:tomcat", Hostname: "tomcat-server", IP: "172.17.0.2",
		Domain: "my.local.env", HTTP: []string{"tomcat:8080"},
	}

	httpGroups := collectHTTP(model)
	rendered, err := render([]byte("global\n"), httpGroups, nil)
	if err != nil {
		t.Fatalf("render() error = %v", err)
	}
	out := string(rendered)

	if !strings.Contains(out, `acl is_tomcat hdr_reg(host) ^(.*\.|)tomcat(\..+$|$)`) {
		t.Errorf("missing tomcat ACL, got:\n%s", out)
	}
	if !strings.Contains(out, "backend backend_http_tomcat") {
		t.Errorf("missing backend_http_tomcat, got:\n%s", out)
	}
	if !strings.Contains(out, "server tomcat-server 172.17.0.2:8080 check port 8080") {
		t.Errorf("missing literal server line, got:\n%s", out)
	}
}

// TestScenarioS5HTTPBackendTwoServers is S5: a second workload routing
// to the same lb.http host adds a second server line to the same backend.
func TestScenarioS5HTTPBackendTwoServers(t *testing.T) {
	model := types.NewModel()
	model.LB["container:tomcat-a"] = &types.LbEntry{
		SourceID: "container:tomcat-a", Hostname: "tomcat-server-a", IP: "172.17.0.2",
		Domain: "my.local.env", HTTP: []string{"tomcat:8080"},
	}
	model.LB["container:tomcat-b"] = &types.LbEntry{
		SourceID: "container:tomcat-b", Hostname: "tomcat-server-b", IP: "172.17.0.3",
		Domain: "my.local.env", HTTP: []string{"tomcat:8080"},
	}

	httpGroups := collectHTTP(model)
	if len(httpGroups) != 1 {
		t.Fatalf("len(httpGroups) = %d, want 1 (single DNS entry for tomcat)", len(httpGroups))
	}
	if len(httpGroups[0].servers) != 2 {
		t.Fatalf("len(servers) = %d, want 2", len(httpGroups[0].servers))
	}

	rendered, err := render([]byte("global\n"), httpGroups, nil)
	if err != nil {
		t.Fatalf("render() error = %v", err)
	}
	out := string(rendered)
	if strings.Count(out, "server tomcat-server-") != 2 {
		t.Errorf("expected 2 server lines in backend_http_tomcat, got:\n%s", out)
	}
}

// TestScenarioS6TCPBackend is S6: lb.tcp=redis:1234:6379 renders a
// host-qualified TCP frontend/backend pair with a port-suffixed check.
func TestScenarioS6TCPBackend(t *testing.T) {
	model := types.NewModel()
	model.LB["container:redis"] = &types.LbEntry{
		SourceID: "container:redis", Hostname: "redis-1", IP: "172.17.0.2",
		Domain: "my.local.env", TCP: []string{"redis:1234:6379"},
	}

	tcpGroups := collectTCP(model)
	rendered, err := render([]byte("global\n"), nil, tcpGroups)
	if err != nil {
		t.Fatalf("render() error = %v", err)
	}
	out := string(rendered)

	if !strings.Contains(out, "frontend frontend_tcp_redis_1234") {
		t.Errorf("missing host-qualified tcp frontend, got:\n%s", out)
	}
	if !strings.Contains(out, "bind *:1234") {
		t.Errorf("missing frontend bind on front_port, got:\n%s", out)
	}
	if !strings.Contains(out, "mode tcp") {
		t.Errorf("missing mode tcp, got:\n%s", out)
	}
	if !strings.Contains(out, "backend backend_tcp_redis_1234") {
		t.Errorf("missing host-qualified tcp backend, got:\n%s", out)
	}
	if !strings.Contains(out, "server tcp_1234_0 172.17.0.2:6379 check port 6379") {
		t.Errorf("missing literal server line with port check, got:\n%s", out)
	}
	if !strings.Contains(out, "balance roundrobin") {
		t.Errorf("missing balance roundrobin, got:\n%s", out)
	}
}

func TestGenerateMintsSyntheticDNSAndFlushesStale(t *testing.T) {
	dir := t.TempDir()
	templatePath := filepath.Join(dir, "haproxy.cfg.tmpl")
	configPath := filepath.Join(dir, "haproxy.cfg")
	if err := os.WriteFile(templatePath, []byte("global\n    daemon\n"), 0644); err != nil {
		t.Fatalf("write template: %v", err)
	}

	reloader := &fakeReloader{}
	g := New(templatePath, configPath, reloader)

	model := types.NewModel()
	model.LB["container:a"] = &types.LbEntry{
		SourceID: "container:a", Hostname: "web", IP: "10.0.0.1", Domain: "local",
		HTTP: []string{"app.local:8080"},
	}

	if err := g.Generate(model, "container:self", "10.0.0.9"); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if reloader.reloads != 1 {
		t.Fatalf("reloads = %d, want 1", reloader.reloads)
	}

	synthKey := "container:self_app.local"
	entry, ok := model.DNS[synthKey]
	if !ok {
		t.Fatalf("expected synthetic DNS entry %q, model.DNS = %v", synthKey, model.DNS)
	}
	if entry.IP != "10.0.0.9" {
		t.Errorf("synthetic entry IP = %q, want daemon IP 10.0.0.9", entry.IP)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("ReadFile(configPath) error = %v", err)
	}
	if !strings.Contains(string(data), "backend_http_app_local") {
		t.Errorf("rendered config missing backend block:\n%s", data)
	}

	// Remove the only LB entry: the next cycle must flush the stale
	// synthetic DNS entry (invariant 2).
	delete(model.LB, "container:a")
	if err := g.Generate(model, "container:self", "10.0.0.9"); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if _, ok := model.DNS[synthKey]; ok {
		t.Errorf("stale synthetic DNS entry %q survived an LB table with no matching host", synthKey)
	}
}

func TestGenerateOnlyReloadsOnDiff(t *testing.T) {
	dir := t.TempDir()
	templatePath := filepath.Join(dir, "haproxy.cfg.tmpl")
	configPath := filepath.Join(dir, "haproxy.cfg")
	if err := os.WriteFile(templatePath, []byte("global\n"), 0644); err != nil {
		t.Fatalf("write template: %v", err)
	}

	reloader := &fakeReloader{}
	g := New(templatePath, configPath, reloader)

	model := types.NewModel()
	model.LB["container:a"] = &types.LbEntry{SourceID: "container:a", Hostname: "web", IP: "10.0.0.1", Domain: "local", HTTP: []string{"app.local:80"}}

	if err := g.Generate(model, "container:self", "10.0.0.9"); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if err := g.Generate(model, "container:self", "10.0.0.9"); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if reloader.reloads != 1 {
		t.Errorf("unchanged model triggered reload: reloads = %d, want 1", reloader.reloads)
	}
}
