package lbgen

import (
	"fmt"
	"strings"
)

// MatchesHost reports whether host satisfies pattern, using the same
// exact/wildcard comparison Warren's ingress Router used for host-based
// routing (matchHost): an empty pattern matches everything, an exact
// string matches itself, and a "*." prefix matches any host sharing the
// pattern's suffix. It exists to keep the ACL regex below honest.
func MatchesHost(pattern, host string) bool {
	if pattern == "" {
		return true
	}
	if idx := strings.IndexByte(host, ':'); idx != -1 {
		host = host[:idx]
	}
	if pattern == host {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		return strings.HasSuffix(host, pattern[1:])
	}
	return false
}

// aclName turns a host into a valid HAProxy ACL identifier.
func aclName(host string) string {
	return "is_" + identifierSafe(host)
}

func identifierSafe(host string) string {
	return strings.NewReplacer(".", "_", "*", "wild", ":", "_").Replace(host)
}

// hostACL renders the acl line that matches host and any of its
// subdomains against the HTTP Host header, generalizing matchHost's
// exact/wildcard comparison into a single regex HAProxy can evaluate.
func hostACL(host string) string {
	return fmt.Sprintf(`    acl %s hdr_reg(host) ^(.*\.|)%s(\..+$|$)`, aclName(host), host)
}

// useBackend renders the line that routes an ACL match to its backend.
func useBackend(host string) string {
	return fmt.Sprintf("    use_backend backend_http_%s if %s", identifierSafe(host), aclName(host))
}
