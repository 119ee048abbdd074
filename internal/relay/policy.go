// Package relay implements the Notary Relay Proxy described in spec.md
// §4.2: the HTTP upgrade surface, access-control policy, bidirectional
// byte pump, and session table. It is grounded on the teacher's
// session_manager.SessionManager for the session-table shape and TTL
// reaper, and on notary.go's main() for the mux/graceful-shutdown pattern
// adapted into cmd/notaryd.
package relay

import (
	"fmt"
	"net"
)

// Policy controls which target hosts the relay is permitted to connect to.
type Policy struct {
	// AllowPrivateTargets permits connecting to reserved/private/loopback
	// addresses. Per spec.md §4.2's explicit design requirement ("the
	// source only does it partially; implementers must close this gap"),
	// this defaults to false and must be set deliberately.
	AllowPrivateTargets bool
}

// ErrForbiddenTarget is returned when a resolved target address falls in a
// disallowed range.
type ErrForbiddenTarget struct {
	Host string
	IP   net.IP
}

func (e *ErrForbiddenTarget) Error() string {
	return fmt.Sprintf("relay: target %q resolves to %s, which is a reserved/private/loopback address", e.Host, e.IP)
}

// CheckTarget resolves host and, unless AllowPrivateTargets is set, rejects
// any address in a private, loopback, link-local, or otherwise reserved
// range, per spec.md §4.2's Policy.
func (p Policy) CheckTarget(host string) (net.IP, error) {
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil {
			return nil, fmt.Errorf("relay: resolving target host %q: %w", host, err)
		}
		if len(ips) == 0 {
			return nil, fmt.Errorf("relay: target host %q did not resolve to any address", host)
		}
		ip = ips[0]
	}

	if p.AllowPrivateTargets {
		return ip, nil
	}

	if isDisallowed(ip) {
		return nil, &ErrForbiddenTarget{Host: host, IP: ip}
	}
	return ip, nil
}

// isDisallowed reports whether ip falls in a private, loopback, link-local,
// unspecified, or multicast range. "localhost" is handled upstream of this
// function by net.LookupIP/net.ParseIP resolving it to 127.0.0.1, which
// IsLoopback already catches.
func isDisallowed(ip net.IP) bool {
	return ip.IsPrivate() ||
		ip.IsLoopback() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified() ||
		ip.IsMulticast()
}
