package v1

import (
	"log/slog"
	"net"
	"net/netip"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// loopbackFallback is recorded when no public address can be resolved.
const loopbackFallback = "127.0.0.1"

var proxyHeaders = []string{
	"X-Real-IP",
	"CF-Connecting-IP",
	"True-Client-IP",
	"X-Client-IP",
}

var privateBlocks = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("::1/128"),
}

// clientIP resolves the visitor address of a collector request. Collectors
// usually sit behind a proxy, so forwarding headers take precedence over the
// socket address. Private addresses are never returned.
func clientIP(c *fiber.Ctx) string {
	if ip := selectPublicIP(strings.Split(c.Get(fiber.HeaderXForwardedFor), ",")); ip != "" {
		return ip
	}

	for _, header := range proxyHeaders {
		if value := c.Get(header); value != "" {
			if ip := selectPublicIP([]string{value}); ip != "" {
				return ip
			}
		}
	}

	if forwarded := c.Get("Forwarded"); forwarded != "" {
		if ip := selectPublicIP(forwardedFor(forwarded)); ip != "" {
			return ip
		}
	}

	if ip := selectPublicIP([]string{c.Context().RemoteAddr().String(), c.IP()}); ip != "" {
		return ip
	}

	slog.Default().Debug("no public client address, using loopback",
		slog.String("path", c.Path()))
	return loopbackFallback
}

func isPrivateIP(ip net.IP) bool {
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return false
	}
	return isPrivateAddr(addr.Unmap())
}

func isPrivateAddr(addr netip.Addr) bool {
	if addr.IsUnspecified() {
		return true
	}
	for _, block := range privateBlocks {
		if block.Contains(addr) {
			return true
		}
	}
	return false
}

// selectPublicIP returns the first public IPv4 candidate, or the first
// public IPv6 candidate when no IPv4 address is present.
func selectPublicIP(values []string) string {
	var v6 string
	for _, raw := range values {
		addr, ok := normalizeIP(raw)
		if !ok || isPrivateAddr(addr) {
			continue
		}
		if addr.Is4() {
			return addr.String()
		}
		if v6 == "" {
			v6 = addr.String()
		}
	}
	return v6
}

// normalizeIP parses header values such as `"203.0.113.9:443"`,
// `[2001:db8::1]:8443` or `fe80::1%eth0` into a bare address.
func normalizeIP(raw string) (netip.Addr, bool) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"")
	if clean == "" {
		return netip.Addr{}, false
	}

	if addrPort, err := netip.ParseAddrPort(clean); err == nil {
		return addrPort.Addr().WithZone("").Unmap(), true
	}

	clean = strings.TrimSuffix(strings.TrimPrefix(clean, "["), "]")
	if addr, err := netip.ParseAddr(clean); err == nil {
		return addr.WithZone("").Unmap(), true
	}

	if host, _, err := net.SplitHostPort(clean); err == nil && host != clean {
		return normalizeIP(host)
	}
	return netip.Addr{}, false
}

// forwardedFor extracts the for= parameters of an RFC 7239 Forwarded header.
func forwardedFor(header string) []string {
	var candidates []string
	for _, entry := range strings.Split(header, ",") {
		for _, part := range strings.Split(entry, ";") {
			part = strings.TrimSpace(part)
			if len(part) > 4 && strings.EqualFold(part[:4], "for=") {
				candidates = append(candidates, part[4:])
			}
		}
	}
	return candidates
}
