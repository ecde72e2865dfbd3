package main

import (
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ipNet(cidr string) net.Addr {
	ip, n, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(err)
	}
	n.IP = ip

	return n
}

func TestLANAddress(t *testing.T) {
	var (
		loopback  = ipNet("127.0.0.1/8")
		linkLocal = ipNet("169.254.10.1/16")
		v6        = ipNet("fd00::1/64")
		home      = ipNet("192.168.1.10/24")
		office    = ipNet("10.0.0.2/8")
		docker    = ipNet("172.17.0.1/16")
		public    = ipNet("203.0.113.5/24")
	)

	tests := []struct {
		name  string
		addrs []net.Addr
		want  string
	}{
		{"prefers 192.168", []net.Addr{loopback, docker, office, home, public}, "192.168.1.10"},
		{"then 10/8", []net.Addr{public, docker, office}, "10.0.0.2"},
		{"then other private", []net.Addr{public, docker}, "172.17.0.1"},
		{"any ipv4 over nothing", []net.Addr{v6, public}, "203.0.113.5"},
		{"skips loopback and link-local", []net.Addr{loopback, linkLocal, v6}, "localhost"},
		{"plain ip addresses are ignored", []net.Addr{&net.IPAddr{IP: net.ParseIP("192.168.1.2")}}, "localhost"},
		{"nothing", nil, "localhost"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, lanAddress(tt.addrs))
		})
	}
}

func TestPublicBase(t *testing.T) {
	cfg := validConfig()
	cfg.publicURL = "https://quiz.example.com/"
	assert.Equal(t, "https://quiz.example.com", publicBase(cfg))

	cfg = validConfig()
	cfg.bind = "127.0.0.1"
	cfg.prefix = "/quiz"
	assert.Equal(t, "http://127.0.0.1:8080/quiz", publicBase(cfg))

	cfg = validConfig()
	cfg.bind = "::1"
	cfg.tlsCert, cfg.tlsKey = "cert.pem", "key.pem"
	assert.Equal(t, "https://[::1]:8080", publicBase(cfg))

	cfg = validConfig()
	cfg.bind = "0.0.0.0"
	base := publicBase(cfg)
	assert.True(t, strings.HasPrefix(base, "http://"), base)
	assert.True(t, strings.HasSuffix(base, ":8080"), base)
	assert.NotContains(t, base, "0.0.0.0")
}

func TestPrintBanner(t *testing.T) {
	cfg := validConfig()
	cfg.joinBase = "http://192.168.1.10:8080"

	var out strings.Builder
	printBanner(cfg, &out)

	assert.Contains(t, out.String(), "http://192.168.1.10:8080/host")
	assert.Contains(t, out.String(), "http://192.168.1.10:8080/client")
}
