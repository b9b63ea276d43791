package containeradapter

import (
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleFibTrie = `Main:
  +-- 0.0.0.0/0 3 0 5
     +-- 0.0.0.0/0
        /0 universe UNICAST
     +-- 127.0.0.0/8 2 0 2
        +-- 127.0.0.0/8
           /8 link UNICAST
        +-- 127.0.0.1/32
           /32 host LOCAL
     +-- 172.17.0.2/32 2 0 2
        +-- 172.17.0.2/32
           /32 host LOCAL
Local:
  +-- 127.0.0.0/8 2 0 2
     +-- 127.0.0.1/32
        /32 host LOCAL
`

func TestFibTrieAddress(t *testing.T) {
	tests := []struct {
		line string
		want string
		ok   bool
	}{
		{"+-- 172.17.0.2/32 2 0 2", "172.17.0.2", true},
		{"+-- 172.17.0.2/32", "172.17.0.2", true},
		{"/32 host LOCAL", "", false},
		{"Main:", "", false},
	}
	for _, tt := range tests {
		got, ok := fibTrieAddress(tt.line)
		require.Equal(t, tt.ok, ok, tt.line)
		if ok {
			require.Equal(t, tt.want, got, tt.line)
		}
	}
}

func TestPrimaryIPv4ForPidSkipsLoopback(t *testing.T) {
	// primaryIPv4ForPid hardcodes /proc/<pid>/net/fib_trie, so exercise
	// its scanning rule directly against sample content instead of
	// faking procfs.
	addr, ok := findFirstLocalIPv4(sampleFibTrie)
	require.True(t, ok)
	require.Equal(t, "172.17.0.2", addr)
}

// findFirstLocalIPv4 mirrors primaryIPv4ForPid's scanning logic over
// an in-memory string, so the parsing rules can be tested without
// touching /proc.
func findFirstLocalIPv4(content string) (string, bool) {
	var candidate string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
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
				return candidate, true
			}
			candidate = ""
		}
	}
	return "", false
}
