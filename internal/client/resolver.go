package client

import (
	"context"
	"net"
	"strings"

	lfserrors "github.com/GSI-HPC/lfs-utils/internal/errors"
)

// DNSResolver resolves between IP addresses and hostnames through the
// system resolver.
type DNSResolver struct {
	resolver *net.Resolver
}

// NewDNSResolver creates a resolver backed by net.DefaultResolver.
func NewDNSResolver() *DNSResolver {
	return &DNSResolver{resolver: net.DefaultResolver}
}

// HostnameByAddr resolves an IP address to its primary hostname.
func (r *DNSResolver) HostnameByAddr(ctx context.Context, addr string) (string, error) {
	if addr == "" {
		return "", lfserrors.Validation("address is not set")
	}

	names, err := r.resolver.LookupAddr(ctx, addr)
	if err != nil {
		return "", lfserrors.Lookup("no hostname found for address %s: %v", addr, err)
	}

	if len(names) == 0 || names[0] == "" {
		return "", lfserrors.Lookup("no hostname found for address %s", addr)
	}

	return strings.TrimSuffix(names[0], "."), nil
}

// AddrByHostname resolves a hostname to its first IP address.
func (r *DNSResolver) AddrByHostname(ctx context.Context, hostname string) (string, error) {
	if hostname == "" {
		return "", lfserrors.Validation("hostname is not set")
	}

	addrs, err := r.resolver.LookupHost(ctx, hostname)
	if err != nil {
		return "", lfserrors.Lookup("no address found for hostname %s: %v", hostname, err)
	}

	if len(addrs) == 0 || addrs[0] == "" {
		return "", lfserrors.Lookup("no address found for hostname %s", hostname)
	}

	return addrs[0], nil
}
