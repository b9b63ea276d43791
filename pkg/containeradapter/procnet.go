package containeradapter

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strings"
)

// primaryIPv4ForPid returns the first non-loopback IPv4 address owned
// by pid's network namespace, read from /proc/<pid>/net/fib_trie.
// This avoids shelling out to "ip" (or nsenter) just to read an
// address the kernel already exposes as a procfs file.
func primaryIPv4ForPid(pid int) (string, error) {
	path := fmt.Sprintf("/proc/%d/net/fib_trie", pid)
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var candidate string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if addr, ok := fibTrieAddress(line); ok {
			candidate = addr
			continue
		}

		if candidate == "" {
			continue
		}
		if strings.Contains(line, "LOCAL") {
			ip := net.ParseIP(candidate)
			if ip != nil && ip.To4() != nil && !ip.IsLoopback() {
				return candidate, nil
			}
			candidate = ""
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan %s: %w", path, err)
	}
	return "", fmt.Errorf("no local IPv4 address found in %s", path)
}

// fibTrieAddress extracts the address from a fib_trie tree line of the
// form "+-- 172.17.0.2/32 2 0 2" or "+-- 172.17.0.2/32".
func fibTrieAddress(line string) (string, bool) {
	if !strings.HasPrefix(line, "+-- ") {
		return "", false
	}
	fields := strings.Fields(strings.TrimPrefix(line, "+-- "))
	if len(fields) == 0 {
		return "", false
	}
	host, _, ok := strings.Cut(fields[0], "/")
	if !ok || net.ParseIP(host) == nil {
		return "", false
	}
	return host, true
}
