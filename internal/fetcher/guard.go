package fetcher

import (
	"context"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

// Resolver looks up the addresses of a host.
// *net.Resolver satisfies it.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// blockedHostnames are names that always point inside the local network.
var blockedHostnames = map[string]struct{}{
	"localhost":                {},
	"metadata.google.internal": {},
}

// reservedPrefixes are ranges not covered by the netip predicates.
var reservedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("192.0.2.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("198.51.100.0/24"),
	netip.MustParsePrefix("203.0.113.0/24"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("100::/64"),
	netip.MustParsePrefix("2001:db8::/32"),
	netip.MustParsePrefix("fec0::/10"),
}

// AddressGuard rejects URLs whose host is, or resolves to, a non-public address.
type AddressGuard struct {
	resolver Resolver
}

// NewAddressGuard creates a guard. A nil resolver uses net.DefaultResolver.
func NewAddressGuard(resolver Resolver) *AddressGuard {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &AddressGuard{resolver: resolver}
}

// Blocked reports whether rawURL must not be fetched.
// Every resolved address is checked, not just the first. A host that fails
// to resolve is not blocked; the fetch itself will fail instead.
func (g *AddressGuard) Blocked(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	return g.BlockedHost(ctx, u.Hostname())
}

// BlockedHost is Blocked for a bare hostname or IP literal.
func (g *AddressGuard) BlockedHost(ctx context.Context, host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return true
	}
	if _, ok := blockedHostnames[host]; ok {
		return true
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		return IsPrivateAddr(addr)
	}

	addrs, err := g.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return false
	}
	for _, a := range addrs {
		addr, ok := netip.AddrFromSlice(a.IP)
		if !ok {
			continue
		}
		if IsPrivateAddr(addr) {
			return true
		}
	}
	return false
}

// IsPrivateAddr reports whether addr is private, loopback, link-local,
// unspecified, multicast or otherwise reserved.
func IsPrivateAddr(addr netip.Addr) bool {
	addr = addr.Unmap().WithZone("")
	if addr.IsPrivate() ||
		addr.IsLoopback() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsInterfaceLocalMulticast() ||
		addr.IsMulticast() ||
		addr.IsUnspecified() {
		return true
	}
	for _, p := range reservedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
