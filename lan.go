package main

import (
	"fmt"
	"io"
	"net"
	"net/netip"
	"strconv"
	"strings"
)

// lanAddress picks the address phones on the same network are most likely
// to reach: 192.168/16 first, then 10/8, then any other private IPv4.
func lanAddress(addrs []net.Addr) string {
	rank := func(ip netip.Addr) int {
		switch {
		case netip.MustParsePrefix("192.168.0.0/16").Contains(ip):
			return 0
		case netip.MustParsePrefix("10.0.0.0/8").Contains(ip):
			return 1
		case ip.IsPrivate():
			return 2
		default:
			return 3
		}
	}

	best, bestRank := "", 4
	for _, a := range addrs {
		prefix, err := netip.ParsePrefix(a.String())
		if err != nil {
			continue
		}

		ip := prefix.Addr()
		if !ip.Is4() || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
			continue
		}

		if r := rank(ip); r < bestRank {
			best, bestRank = ip.String(), r
		}
	}

	if best == "" {
		return "localhost"
	}

	return best
}

func interfaceAddrs() []net.Addr {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}

	return addrs
}

// publicBase is the URL prefix players use to reach the server.
func publicBase(cfg *Config) string {
	if cfg.publicURL != "" {
		return strings.TrimSuffix(cfg.publicURL, "/")
	}

	host := cfg.bind
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = lanAddress(interfaceAddrs())
	}

	return cfg.scheme() + "://" + net.JoinHostPort(host, strconv.Itoa(cfg.port)) + cfg.prefix
}

func printBanner(cfg *Config, w io.Writer) {
	fmt.Fprintf(w, "partyquiz v%s\n", releaseVersion)
	fmt.Fprintf(w, "  Host screen:  %s/host\n", cfg.joinBase)
	fmt.Fprintf(w, "  Players join: %s/client\n", cfg.joinBase)
	fmt.Fprintf(w, "  Health check: %s/api/health\n", cfg.joinBase)
}
