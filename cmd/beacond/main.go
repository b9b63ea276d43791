package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/beacond/pkg/config"
	"github.com/cuemby/beacond/pkg/containeradapter"
	"github.com/cuemby/beacond/pkg/core"
	"github.com/cuemby/beacond/pkg/dnsgen"
	"github.com/cuemby/beacond/pkg/events"
	"github.com/cuemby/beacond/pkg/lbgen"
	"github.com/cuemby/beacond/pkg/log"
	"github.com/cuemby/beacond/pkg/metrics"
	"github.com/cuemby/beacond/pkg/selfaddr"
	"github.com/cuemby/beacond/pkg/supervisor"
	"github.com/cuemby/beacond/pkg/vmadapter"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "beacond",
	Short: "beacond - service discovery for containers and VMs",
	Long: `beacond watches containerd and libvirt for workload lifecycle
events and keeps a local DNS resolver and reverse proxy converged with
whatever is currently running, with no central store and no cluster
state to recover.`,
	Version: Version,
	RunE:    runDaemon,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"beacond version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.Flags().String("config", "", "Path to an optional YAML config file")
	rootCmd.Flags().Bool("dry-run", false, "Enumerate current workloads, print the generated DNS/proxy config, and exit")
	rootCmd.Flags().Bool("metrics", true, "Serve /metrics over HTTP")
	rootCmd.Flags().String("metrics-addr", ":9540", "Address to serve /metrics on")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(versionCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("beacond version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime)
	},
}

func runDaemon(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	serveMetrics, _ := cmd.Flags().GetBool("metrics")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	self, err := selfaddr.Detect(cfg.ExternalIP)
	if err != nil {
		log.Fatal(fmt.Sprintf("determine self address: %v", err))
	}
	log.WithComponent("beacond").Info().Str("ip", self.IP).Str("hostname", self.Hostname).Msg("self address detected")

	containerAdapter, err := containeradapter.New(cfg.DockerSocket, self)
	if err != nil {
		return fmt.Errorf("init container adapter: %w", err)
	}
	vmAdapter, err := vmadapter.New(cfg.LibvirtSocket, cfg.LibvirtIPTimeout, self)
	if err != nil {
		return fmt.Errorf("init vm adapter: %w", err)
	}

	selfID, err := resolveSelfID(cmd.Context(), containerAdapter, self)
	if err != nil {
		return err
	}

	if dryRun {
		return runDryRun(cmd.Context(), cfg, self, selfID, containerAdapter, vmAdapter)
	}

	sup := supervisor.New(cfg.DnsmasqPIDFile, cfg.LBReloadHelper)
	dnsGen := dnsgen.New(cfg.DnsmasqHostsFile, cfg.DnsmasqWildcardsFile, sup)
	lbGen := lbgen.New(cfg.HAProxyConfigTemplate, cfg.HAProxyConfigFile, sup)
	conv := core.New(selfID, self.IP, cfg.DNSDomain, cfg.DNSWildcard, cfg.LBDomain, dnsGen, lbGen)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.WithComponent("beacond").Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	}()

	if serveMetrics {
		go serveMetricsHTTP(metricsAddr)
	}

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	if err := enumerate(ctx, conv, containerAdapter, vmAdapter); err != nil {
		return fmt.Errorf("initial enumeration: %w", err)
	}

	go runAdapter("containeradapter", func() error { return containerAdapter.Run(ctx, broker) })
	go runAdapter("vmadapter", func() error { return vmAdapter.Run(ctx, broker) })

	return consume(ctx, conv, sub)
}

// resolveSelfID identifies the source_id the daemon publishes its own
// synthetic LB-frontend DNS entries under. While a container adapter is
// active, spec.md §4.1.1 requires matching the daemon's own IP and
// hostname against a running container; failing to find one is fatal,
// since nothing else can own those entries. With no container adapter
// running (socket absent), there is no container to match against, so a
// synthetic id derived from the host name is used instead.
func resolveSelfID(ctx context.Context, containerAdapter *containeradapter.Adapter, self selfaddr.Addr) (string, error) {
	if containerAdapter == nil {
		return "self:" + self.Hostname, nil
	}
	ws, ok, err := containerAdapter.FindSelf(ctx, self)
	if err != nil {
		return "", fmt.Errorf("self-discovery: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("could not identify the daemon's own container by ip %s / hostname %s; self-discovery is required while a container adapter is active", self.IP, self.Hostname)
	}
	log.WithComponent("beacond").Info().Str("source_id", ws.SourceID).Msg("self-identified own container")
	return ws.SourceID, nil
}

// runAdapter logs an adapter's Run error instead of tearing down the
// daemon: a dead adapter just means that runtime's workloads stop
// updating, not that DNS/LB generation for the other runtime should
// stop too.
func runAdapter(name string, run func() error) {
	if err := run(); err != nil {
		log.WithComponent(name).Error().Err(err).Msg("adapter stopped")
	}
}

// consume drains the broker's subscription until ctx is canceled,
// converging the model on every event.
func consume(ctx context.Context, conv *core.Core, sub events.Subscriber) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub:
			if !ok {
				return nil
			}
			handleEvent(conv, ev)
		}
	}
}

func handleEvent(conv *core.Core, ev *events.Event) {
	logger := log.WithSourceID(ev.Workload.SourceID)
	switch ev.Type {
	case events.EventWorkloadStart:
		metrics.AdapterEventsTotal.WithLabelValues(string(ev.Workload.Source), "start").Inc()
		if err := conv.Start(ev.Workload); err != nil {
			logger.Error().Err(err).Msg("start convergence failed")
		}
	case events.EventWorkloadStop:
		metrics.AdapterEventsTotal.WithLabelValues(string(ev.Workload.Source), "stop").Inc()
		if err := conv.Stop(ev.Workload.SourceID); err != nil {
			logger.Error().Err(err).Msg("stop convergence failed")
		}
	}
}

// enumerate runs both adapters' startup reconciliation pass, seeding
// conv with whatever is already running before either adapter's event
// stream opens.
func enumerate(ctx context.Context, conv *core.Core, containerAdapter *containeradapter.Adapter, vmAdapter *vmadapter.Adapter) error {
	containerWorkloads, err := containerAdapter.Enumerate(ctx)
	if err != nil {
		return fmt.Errorf("enumerate containers: %w", err)
	}
	vmWorkloads, err := vmAdapter.Enumerate(ctx)
	if err != nil {
		return fmt.Errorf("enumerate vms: %w", err)
	}

	for _, wl := range append(containerWorkloads, vmWorkloads...) {
		if err := conv.Start(wl); err != nil {
			log.WithSourceID(wl.SourceID).Error().Err(err).Msg("start convergence failed during enumeration")
		}
	}
	log.WithComponent("beacond").Info().
		Int("containers", len(containerWorkloads)).
		Int("vms", len(vmWorkloads)).
		Msg("initial enumeration complete")
	return nil
}

func serveMetricsHTTP(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	log.WithComponent("beacond").Info().Str("addr", addr).Msg("serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		log.WithComponent("beacond").Error().Err(err).Msg("metrics server stopped")
	}
}

// noopSupervisor discards every reload/restart call, used by dry-run
// so it never signals a real resolver or proxy process.
type noopSupervisor struct{}

func (noopSupervisor) ReloadDNS() error          { return nil }
func (noopSupervisor) RestartDNS() error         { return nil }
func (noopSupervisor) ReloadProxy(_ string) error { return nil }

func runDryRun(ctx context.Context, cfg *config.Config, self selfaddr.Addr, selfID string, containerAdapter *containeradapter.Adapter, vmAdapter *vmadapter.Adapter) error {
	tmpDir, err := os.MkdirTemp("", "beacond-dry-run-*")
	if err != nil {
		return fmt.Errorf("create dry-run scratch dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	hostsPath := filepath.Join(tmpDir, "hosts")
	wildcardsPath := filepath.Join(tmpDir, "wildcards")
	proxyConfigPath := filepath.Join(tmpDir, "proxy.cfg")

	sup := noopSupervisor{}
	dnsGen := dnsgen.New(hostsPath, wildcardsPath, sup)
	lbGen := lbgen.New(cfg.HAProxyConfigTemplate, proxyConfigPath, sup)
	conv := core.New(selfID, self.IP, cfg.DNSDomain, cfg.DNSWildcard, cfg.LBDomain, dnsGen, lbGen)

	if err := enumerate(ctx, conv, containerAdapter, vmAdapter); err != nil {
		return fmt.Errorf("dry-run enumeration: %w", err)
	}

	fmt.Println("# --- dnsmasq hosts ---")
	printFile(hostsPath)
	fmt.Println("# --- dnsmasq wildcards ---")
	printFile(wildcardsPath)
	fmt.Println("# --- proxy config ---")
	printFile(proxyConfigPath)
	return nil
}

func printFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("(not generated: %v)\n", err)
		return
	}
	fmt.Println(string(data))
}
