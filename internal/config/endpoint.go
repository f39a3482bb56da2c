package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidateEndpoint rejects target URLs whose host is a literal loopback,
// link-local, private or multicast IP, or a localhost name, unless
// explicitly allowed via allowPrivateNetworks (a list of CIDR strings, e.g.
// "10.0.0.0/8"). Other host names are accepted without being resolved.
func ValidateEndpoint(raw string, allowPrivateNetworks []string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.User != nil {
		return fmt.Errorf("endpoint URL must not carry userinfo")
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("endpoint URL has no host")
	}

	allowed := parseAllowedRanges(allowPrivateNetworks)

	if ip := net.ParseIP(host); ip != nil {
		return validateIP(ip, allowed)
	}
	return validateHostname(host, allowed)
}

func parseAllowedRanges(cidrs []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, c := range cidrs {
		if _, ipnet, err := net.ParseCIDR(c); err == nil {
			nets = append(nets, ipnet)
		}
	}
	return nets
}

func isAllowed(ip net.IP, allowed []*net.IPNet) bool {
	for _, n := range allowed {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func validateIP(ip net.IP, allowed []*net.IPNet) error {
	if isAllowed(ip, allowed) {
		return nil
	}
	switch {
	case ip.IsLoopback():
		return fmt.Errorf("loopback address %s is blocked (allow with --allow-private-networks)", ip)
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		return fmt.Errorf("link-local address %s is blocked (allow with --allow-private-networks)", ip)
	case ip.IsPrivate():
		return fmt.Errorf("private address %s is blocked (allow with --allow-private-networks)", ip)
	case ip.IsMulticast():
		return fmt.Errorf("multicast address %s is blocked", ip)
	}
	return nil
}

func validateHostname(host string, allowed []*net.IPNet) error {
	lower := strings.ToLower(host)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") {
		if isAllowed(net.ParseIP("127.0.0.1"), allowed) {
			return nil
		}
		return fmt.Errorf("localhost endpoint is blocked (allow with --allow-private-networks)")
	}
	return nil
}
