package security

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"

	"github.com/sipeed/picocast/pkg/failure"
)

// Guard checks URLs and dialed addresses against the fetch policy.
type Guard struct {
	allowLoopback bool
}

type GuardOption func(*Guard)

// AllowLoopback lets localhost and loopback addresses through. Only meant for tests
// that fetch from a local server.
func AllowLoopback() GuardOption {
	return func(g *Guard) { g.allowLoopback = true }
}

func NewGuard(opts ...GuardOption) *Guard {
	g := &Guard{}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var defaultGuard = NewGuard()

// ValidateURL applies the default policy. It never resolves host names.
func ValidateURL(raw string) (string, error) {
	return defaultGuard.CheckURL(raw)
}

// CheckURL returns the trimmed URL if it is an absolute http(s) URL whose host is
// not local, private, link-local or a metadata endpoint.
func (g *Guard) CheckURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", failure.Security(component, "Invalid URL: must be a non-empty string")
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return "", failure.Security(component, "Invalid URL format")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", failure.Security(component, "Only HTTP and HTTPS URLs are allowed")
	}
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" {
		return "", failure.Security(component, "Invalid URL format")
	}

	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		if g.allowLoopback {
			return raw, nil
		}
		return "", failure.Security(component, "Local URLs are not allowed")
	}
	if ip := net.ParseIP(host); ip != nil {
		if err := g.checkIP(ip); err != nil {
			return "", err
		}
	}
	return raw, nil
}

// Control is a net.Dialer Control hook. It runs after name resolution, so it
// refuses public host names that resolve to a blocked address.
func (g *Guard) Control(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return failure.Security(component, "Invalid dial address %q", address)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return failure.Security(component, "Invalid dial address %q", address)
	}
	return g.checkIP(ip)
}

func (g *Guard) checkIP(ip net.IP) error {
	switch {
	case ip.IsLoopback():
		if g.allowLoopback {
			return nil
		}
		return blocked("Local URLs are not allowed", ip)
	case ip.IsUnspecified():
		return blocked("Local URLs are not allowed", ip)
	case isMetadataEndpoint(ip):
		return blocked("Cloud metadata endpoints are not allowed", ip)
	case ip.IsPrivate():
		return blocked("Private IP addresses are not allowed", ip)
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		return blocked("Link-local addresses are not allowed", ip)
	}
	return nil
}

func blocked(reason string, ip net.IP) error {
	return &failure.Error{
		Kind:      failure.KindSecurity,
		Component: component,
		Message:   reason,
		Cause:     fmt.Errorf("blocked address %s", ip),
	}
}

var metadataIPs = []net.IP{
	net.ParseIP("169.254.169.254"),
	net.ParseIP("fd00:ec2::254"),
}

func isMetadataEndpoint(ip net.IP) bool {
	for _, m := range metadataIPs {
		if ip.Equal(m) {
			return true
		}
	}
	return false
}
