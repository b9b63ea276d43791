package dnsgen

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cuemby/beacond/pkg/types"
)

type fakeReloader struct {
	reloads  int
	restarts int
	err      error
}

func (f *fakeReloader) ReloadDNS() error  { f.reloads++; return f.err }
func (f *fakeReloader) RestartDNS() error { f.restarts++; return f.err }

func TestNormalizeAlias(t *testing.T) {
	tests := []struct {
		name   string
		alias  string
		domain string
		want   string
	}{
		{"plain", "api", "local", "api"},
		{"wildcard prefix", "*.api", "local", "api"},
		{"dot prefix", ".api", "local", "api"},
		{"star prefix", "*api", "local", "api"},
		{"collapse domain.domain", "api.local.local", "local", "api.local"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeAlias(tt.alias, tt.domain); got != tt.want {
				t.Errorf("normalizeAlias(%q, %q) = %q, want %q", tt.alias, tt.domain, got, tt.want)
			}
		})
	}
}

func TestHostNamesFQDNFirstAndDeduped(t *testing.T) {
	e := &types.DnsEntry{
		Hostname: "web",
		Name:     "web",
		Domain:   "local",
		Aliases:  []string{"web", "*.app"},
	}
	names := hostNames(e)
	if len(names) == 0 || names[0] != "web.local" {
		t.Fatalf("hostNames()[0] = %v, want FQDN first, got %v", names[0], names)
	}
	seen := map[string]int{}
	for _, n := range names {
		seen[n]++
	}
	for n, count := range seen {
		if count > 1 {
			t.Errorf("name %q appears %d times, want at most once", n, count)
		}
	}
}

func TestRenderHostsDeterministicOrder(t *testing.T) {
	model := types.NewModel()
	model.DNS["container:b"] = &types.DnsEntry{SourceID: "container:b", Hostname: "bravo", IP: "10.0.0.2", Domain: "local"}
	model.DNS["container:a"] = &types.DnsEntry{SourceID: "container:a", Hostname: "alpha", IP: "10.0.0.1", Domain: "local"}

	out1 := string(renderHosts(model))
	out2 := string(renderHosts(model))
	if out1 != out2 {
		t.Fatalf("renderHosts is not deterministic across calls")
	}
	if strings.Index(out1, "10.0.0.1") > strings.Index(out1, "10.0.0.2") {
		t.Errorf("expected alpha (sorted by source_id) before bravo, got:\n%s", out1)
	}
}

func TestRenderWildcardsOnlyWildcardEntries(t *testing.T) {
	model := types.NewModel()
	model.DNS["container:a"] = &types.DnsEntry{Hostname: "alpha", IP: "10.0.0.1", Wildcard: true}
	model.DNS["container:b"] = &types.DnsEntry{Hostname: "bravo", IP: "10.0.0.2", Wildcard: false}

	out := string(renderWildcards(model))
	if !strings.Contains(out, "address=/alpha/10.0.0.1") {
		t.Errorf("expected wildcard line for alpha, got:\n%s", out)
	}
	if strings.Contains(out, "bravo") {
		t.Errorf("non-wildcard entry bravo leaked into wildcards file:\n%s", out)
	}
}

// TestScenarioS1BasicWorkload is spec.md's scenario S1: a plain
// container with no labels gets a hosts line in FQDN-first order, and
// no wildcards output.
func TestScenarioS1BasicWorkload(t *testing.T) {
	model := types.NewModel()
	model.DNS["container:qwerty"] = &types.DnsEntry{
		SourceID: "container:qwerty", Hostname: "asdfgh", Name: "qwerty",
		IP: "172.17.0.7", Domain: "my.local.env",
	}

	hosts := string(renderHosts(model))
	want := "172.17.0.7 asdfgh.my.local.env asdfgh qwerty.my.local.env qwerty\n"
	if hosts != want {
		t.Errorf("renderHosts() =\n%q\nwant\n%q", hosts, want)
	}

	if wildcards := renderWildcards(model); len(wildcards) != 0 {
		t.Errorf("renderWildcards() = %q, want empty (no dns.wildcard)", wildcards)
	}
}

// TestScenarioS2Aliases is S2: dns.aliases appends each alias and its
// domain-qualified form to the same hosts line.
func TestScenarioS2Aliases(t *testing.T) {
	model := types.NewModel()
	model.DNS["container:qwerty"] = &types.DnsEntry{
		SourceID: "container:qwerty", Hostname: "asdfgh", Name: "qwerty",
		IP: "172.17.0.7", Domain: "my.local.env",
		Aliases: []string{"alias1", "alias2"},
	}

	hosts := string(renderHosts(model))
	want := "172.17.0.7 asdfgh.my.local.env asdfgh qwerty.my.local.env qwerty alias1 alias1.my.local.env alias2 alias2.my.local.env\n"
	if hosts != want {
		t.Errorf("renderHosts() =\n%q\nwant\n%q", hosts, want)
	}
}

// TestScenarioS3Wildcard is S3: dns.wildcard=true leaves the hosts line
// unchanged and adds one wildcards-file line per host name.
func TestScenarioS3Wildcard(t *testing.T) {
	model := types.NewModel()
	model.DNS["container:qwerty"] = &types.DnsEntry{
		SourceID: "container:qwerty", Hostname: "asdfgh", Name: "qwerty",
		IP: "172.17.0.7", Domain: "my.local.env", Wildcard: true,
	}

	hosts := string(renderHosts(model))
	wantHosts := "172.17.0.7 asdfgh.my.local.env asdfgh qwerty.my.local.env qwerty\n"
	if hosts != wantHosts {
		t.Errorf("renderHosts() =\n%q\nwant\n%q", hosts, wantHosts)
	}

	wildcards := string(renderWildcards(model))
	for _, want := range []string{
		"address=/asdfgh/172.17.0.7\n",
		"address=/asdfgh.my.local.env/172.17.0.7\n",
		"address=/qwerty/172.17.0.7\n",
		"address=/qwerty.my.local.env/172.17.0.7\n",
	} {
		if !strings.Contains(wildcards, want) {
			t.Errorf("renderWildcards() missing %q, got:\n%s", want, wildcards)
		}
	}
}

func TestGenerateOnlyReloadsOnDiff(t *testing.T) {
	dir := t.TempDir()
	hostsPath := filepath.Join(dir, "hosts")
	wildcardsPath := filepath.Join(dir, "wildcards")
	reloader := &fakeReloader{}
	g := New(hostsPath, wildcardsPath, reloader)

	model := types.NewModel()
	model.DNS["container:a"] = &types.DnsEntry{Hostname: "alpha", IP: "10.0.0.1", Domain: "local", Wildcard: true}

	if err := g.Generate(model); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if reloader.reloads != 1 || reloader.restarts != 1 {
		t.Fatalf("first Generate: reloads=%d restarts=%d, want 1 and 1", reloader.reloads, reloader.restarts)
	}

	if err := g.Generate(model); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if reloader.reloads != 1 || reloader.restarts != 1 {
		t.Errorf("unchanged model triggered a reload: reloads=%d restarts=%d", reloader.reloads, reloader.restarts)
	}

	model.DNS["container:b"] = &types.DnsEntry{Hostname: "bravo", IP: "10.0.0.2", Domain: "local"}
	if err := g.Generate(model); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if reloader.reloads != 2 {
		t.Errorf("hosts changed but reloads = %d, want 2", reloader.reloads)
	}
	if reloader.restarts != 1 {
		t.Errorf("wildcards unchanged but restarts = %d, want 1", reloader.restarts)
	}

	data, err := os.ReadFile(hostsPath)
	if err != nil {
		t.Fatalf("ReadFile(hostsPath) error = %v", err)
	}
	if !strings.Contains(string(data), "bravo") {
		t.Errorf("hosts file missing bravo:\n%s", data)
	}
}
