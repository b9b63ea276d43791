// Command beacond-lbreload is the external helper spec.md §6 hands the
// proxy-reload responsibility to: given a freshly-written config file,
// find the running proxy processes, keep the newest one alive to drain
// its connections, terminate the rest, and start a replacement bound to
// the new config with "-sf <pid>" so it takes over listening sockets
// without dropping in-flight requests.
//
// pkg/supervisor invokes this binary rather than doing the process-table
// work itself, the same separation warren-migrate drew between the
// daemon and its one-shot maintenance tool.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"
)

var (
	procName   = flag.String("proc-name", "haproxy", "process name (comm) to look for")
	binPath    = flag.String("bin", "/usr/sbin/haproxy", "path to the proxy binary to start")
	killGrace  = flag.Duration("kill-grace", 5*time.Second, "time to wait after SIGTERM before SIGKILL")
	extraFlags = flag.String("extra-flags", "", "additional space-separated flags passed to the new proxy process")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)
	log.SetPrefix("beacond-lbreload: ")

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <config-path>\n", os.Args[0])
		os.Exit(2)
	}
	configPath := flag.Arg(0)

	if _, err := os.Stat(configPath); err != nil {
		log.Fatalf("config path %s: %v", configPath, err)
	}

	procs, err := findProcesses(*procName)
	if err != nil {
		log.Fatalf("scan /proc: %v", err)
	}
	log.Printf("found %d running %s process(es)", len(procs), *procName)

	var newest *process
	if len(procs) > 0 {
		sort.Slice(procs, func(i, j int) bool { return procs[i].startedAt.Before(procs[j].startedAt) })
		newest = &procs[len(procs)-1]
		for _, p := range procs[:len(procs)-1] {
			terminate(p)
		}
	}

	if err := start(configPath, newest); err != nil {
		log.Fatalf("start new %s: %v", *procName, err)
	}
}

type process struct {
	pid       int
	startedAt time.Time
}

// terminate sends SIGTERM to p, then SIGKILL if it is still alive after
// killGrace. A process that has already exited between the scan and the
// signal (ESRCH) is not an error: that's the expected outcome.
func terminate(p process) {
	log.Printf("terminating stale pid %d", p.pid)
	if err := syscall.Kill(p.pid, syscall.SIGTERM); err != nil && err != syscall.ESRCH {
		log.Printf("sigterm pid %d: %v", p.pid, err)
	}
	go func(pid int) {
		time.Sleep(*killGrace)
		if alive(pid) {
			log.Printf("pid %d still alive after grace period, sending sigkill", pid)
			if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
				log.Printf("sigkill pid %d: %v", pid, err)
			}
		}
	}(p.pid)
}

// start execs a new proxy bound to configPath. When newest is non-nil,
// "-sf <pid>" tells the new process to take over the old one's listening
// sockets once it has finished binding, draining rather than dropping
// connections still in flight on the old process.
func start(configPath string, newest *process) error {
	args := []string{"-f", configPath}
	if newest != nil {
		args = append(args, "-sf", strconv.Itoa(newest.pid))
	}
	if *extraFlags != "" {
		args = append(args, strings.Fields(*extraFlags)...)
	}

	cmd := exec.Command(*binPath, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("exec %s %v: %w", *binPath, args, err)
	}
	log.Printf("started new %s pid %d with config %s", *procName, cmd.Process.Pid, configPath)

	// Detach: the new proxy outlives this helper process.
	return cmd.Process.Release()
}

// findProcesses scans /proc for processes whose comm matches name,
// tolerating processes that exit mid-scan (ENOENT) since /proc is a
// live, racy view of the process table.
func findProcesses(name string) ([]process, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, err
	}

	var procs []process
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}

		comm, err := os.ReadFile(filepath.Join("/proc", e.Name(), "comm"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(comm)) != name {
			continue
		}

		started, err := startTime(pid)
		if err != nil {
			continue
		}
		procs = append(procs, process{pid: pid, startedAt: started})
	}
	return procs, nil
}

// startTime returns the process's start time via the mtime of its
// /proc/<pid> directory, a cheap proxy for process age that avoids
// parsing /proc/<pid>/stat's clock-ticks-since-boot field against
// /proc/uptime.
func startTime(pid int) (time.Time, error) {
	info, err := os.Stat(filepath.Join("/proc", strconv.Itoa(pid)))
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

func alive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}
