// Package supervisor implements the abstract supervision hook that
// pkg/dnsgen and pkg/lbgen call after writing a regenerated file:
// reload_dns, restart_dns, and reload_proxy.
//
// Unlike pkg/embedded's ContainerdManager, which extracts and launches
// its own bundled binary, Supervisor never starts the resolver or the
// proxy itself — both are expected to already be running under an
// external supervisor (systemd, runit, or similar). Its job is limited
// to signaling the resolver and invoking the proxy reload helper.
package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"github.com/cuemby/beacond/pkg/log"
)

// Supervisor implements both pkg/dnsgen.Reloader and pkg/lbgen.Reloader.
type Supervisor struct {
	dnsPIDFile     string
	lbReloadHelper string
}

// New returns a Supervisor that signals the resolver whose pid is
// written at dnsPIDFile and invokes lbReloadHelper (an executable path)
// to reload the proxy.
func New(dnsPIDFile, lbReloadHelper string) *Supervisor {
	return &Supervisor{
		dnsPIDFile:     dnsPIDFile,
		lbReloadHelper: lbReloadHelper,
	}
}

// ReloadDNS sends SIGHUP to the resolver, asking it to re-read its
// hosts file without dropping in-flight queries.
func (s *Supervisor) ReloadDNS() error {
	return s.signalDNS(syscall.SIGHUP)
}

// RestartDNS sends SIGTERM to the resolver. dnsmasq does not re-read a
// changed wildcard/address configuration on SIGHUP, only on a full
// restart; the external supervisor watching the process is expected to
// bring it back up.
func (s *Supervisor) RestartDNS() error {
	return s.signalDNS(syscall.SIGTERM)
}

func (s *Supervisor) signalDNS(sig syscall.Signal) error {
	pid, err := readPID(s.dnsPIDFile)
	if err != nil {
		return fmt.Errorf("read dns pid file %s: %w", s.dnsPIDFile, err)
	}
	if err := syscall.Kill(pid, sig); err != nil {
		return fmt.Errorf("signal dns pid %d: %w", pid, err)
	}
	log.WithComponent("supervisor").Debug().
		Int("pid", pid).Str("signal", sig.String()).Msg("signaled resolver")
	return nil
}

// ReloadProxy execs the proxy reload helper binary with configPath as
// its sole argument. The helper owns the SIGTERM-newest-keeps-running,
// SIGKILL-after-grace-period, start-with--sf protocol described in
// spec.md §6; Supervisor only needs to invoke it and surface its exit
// status.
func (s *Supervisor) ReloadProxy(configPath string) error {
	cmd := exec.Command(s.lbReloadHelper, configPath)
	cmd.Stdout = &logWriter{component: "lbreload", level: "info"}
	cmd.Stderr = &logWriter{component: "lbreload", level: "error"}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run %s %s: %w", s.lbReloadHelper, configPath, err)
	}
	return nil
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pid: %w", err)
	}
	return pid, nil
}

// logWriter adapts a subprocess's stdout/stderr to the structured
// logger, the way pkg/embedded's logWriter adapts containerd's output.
type logWriter struct {
	component string
	level     string
}

func (lw *logWriter) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\n")
	if line == "" {
		return len(p), nil
	}
	logger := log.WithComponent(lw.component)
	if lw.level == "error" {
		logger.Error().Msg(line)
	} else {
		logger.Info().Msg(line)
	}
	return len(p), nil
}
