package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Keys for every environment variable beacond recognizes. Each is bound
// individually via BindEnv so viper's automatic env lookup doesn't have
// to guess a prefix.
const (
	KeyDNSDomain             = "dns_domain"
	KeyDNSWildcard           = "dns_wildcard"
	KeyLBDomain              = "lb_domain"
	KeyDockerSocket          = "docker_socket"
	KeyLibvirtSocket         = "libvirt_socket"
	KeyLibvirtIPTimeout      = "libvirt_ip_timeout"
	KeyExternalIP            = "external_ip"
	KeyHAProxyConfigTemplate = "haproxy_config_template"
	KeyHAProxyConfigFile     = "haproxy_config_file"
	KeyDnsmasqHostsFile      = "dnsmasq_hosts_file"
	KeyDnsmasqWildcardsFile  = "dnsmasq_wildcards_file"
	KeyDnsmasqPIDFile        = "dnsmasq_pid_file"
	KeyLBReloadHelper        = "lb_reload_helper"
)

// Config holds every setting beacond needs to run a convergence loop.
// Field values come from environment variables first, an optional YAML
// file second, and the defaults below last.
type Config struct {
	DNSDomain      string
	DNSWildcard    bool
	LBDomain       string
	DockerSocket   string
	LibvirtSocket  string
	LibvirtIPTimeout time.Duration
	ExternalIP     string // empty means auto-detect via pkg/selfaddr

	HAProxyConfigTemplate string
	HAProxyConfigFile     string
	DnsmasqHostsFile      string
	DnsmasqWildcardsFile  string
	DnsmasqPIDFile        string
	LBReloadHelper        string
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		KeyDNSDomain:             "local",
		KeyDNSWildcard:           false,
		KeyLBDomain:              "local",
		KeyDockerSocket:          "/run/containerd/containerd.sock",
		KeyLibvirtSocket:         "/var/run/libvirt/libvirt-sock",
		KeyLibvirtIPTimeout:      30.0,
		KeyExternalIP:            "",
		KeyHAProxyConfigTemplate: "/etc/beacond/haproxy.cfg.tmpl",
		KeyHAProxyConfigFile:     "/etc/haproxy/haproxy.cfg",
		KeyDnsmasqHostsFile:      "/etc/dnsmasq.d/beacond-hosts",
		KeyDnsmasqWildcardsFile:  "/etc/dnsmasq.d/beacond-wildcards",
		KeyDnsmasqPIDFile:        "/var/run/dnsmasq.pid",
		KeyLBReloadHelper:        "/usr/local/bin/beacond-lbreload",
	}
}

// envKeys lists every bound key, in the same order as the const block,
// so Load can bind them deterministically.
func envKeys() []string {
	return []string{
		KeyDNSDomain, KeyDNSWildcard, KeyLBDomain, KeyDockerSocket,
		KeyLibvirtSocket, KeyLibvirtIPTimeout, KeyExternalIP,
		KeyHAProxyConfigTemplate, KeyHAProxyConfigFile,
		KeyDnsmasqHostsFile, KeyDnsmasqWildcardsFile,
		KeyDnsmasqPIDFile, KeyLBReloadHelper,
	}
}

// Load builds a Config from environment variables, an optional YAML
// file at configPath (ignored if empty), and the package defaults, in
// that order of precedence (env wins).
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, def := range defaults() {
		v.SetDefault(key, def)
	}
	for _, key := range envKeys() {
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configPath, err)
		}
	}

	timeoutSeconds := v.GetFloat64(KeyLibvirtIPTimeout)

	cfg := &Config{
		DNSDomain:             v.GetString(KeyDNSDomain),
		DNSWildcard:           v.GetBool(KeyDNSWildcard),
		LBDomain:              v.GetString(KeyLBDomain),
		DockerSocket:          v.GetString(KeyDockerSocket),
		LibvirtSocket:         v.GetString(KeyLibvirtSocket),
		LibvirtIPTimeout:      time.Duration(timeoutSeconds * float64(time.Second)),
		ExternalIP:            v.GetString(KeyExternalIP),
		HAProxyConfigTemplate: v.GetString(KeyHAProxyConfigTemplate),
		HAProxyConfigFile:     v.GetString(KeyHAProxyConfigFile),
		DnsmasqHostsFile:      v.GetString(KeyDnsmasqHostsFile),
		DnsmasqWildcardsFile:  v.GetString(KeyDnsmasqWildcardsFile),
		DnsmasqPIDFile:        v.GetString(KeyDnsmasqPIDFile),
		LBReloadHelper:        v.GetString(KeyLBReloadHelper),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DNSDomain == "" {
		return fmt.Errorf("dns_domain must not be empty")
	}
	if c.LBDomain == "" {
		return fmt.Errorf("lb_domain must not be empty")
	}
	if c.LibvirtIPTimeout <= 0 {
		return fmt.Errorf("libvirt_ip_timeout must be positive, got %s", c.LibvirtIPTimeout)
	}
	return nil
}
