package recon

import (
	"fmt"
	"net/netip"
)

// Default candidate space: the Android emulator's alias for the host
// loopback, then the two most common home /24 networks.
const (
	DefaultEmulatorHost = "10.0.2.2"
	DefaultPort         = 4000
	DefaultScheme       = "http"
)

// DefaultSubnets are scanned in order after the emulator host.
var DefaultSubnets = []string{"192.168.0.0/24", "192.168.1.0/24"}

// CandidateConfig describes the candidate list.
type CandidateConfig struct {
	Scheme       string
	Port         int
	EmulatorHost string
	Subnets      []string
}

// DefaultCandidateConfig returns the stock candidate space.
func DefaultCandidateConfig() CandidateConfig {
	return CandidateConfig{
		Scheme:       DefaultScheme,
		Port:         DefaultPort,
		EmulatorHost: DefaultEmulatorHost,
		Subnets:      append([]string(nil), DefaultSubnets...),
	}
}

// Candidates expands cfg into the ordered list of base URLs to probe.
// The emulator host comes first (when set), followed by every host
// address of each subnet in the order given. Network and broadcast
// addresses are skipped for prefixes shorter than /31. Duplicates keep
// their first position.
func Candidates(cfg CandidateConfig) ([]string, error) {
	scheme := cfg.Scheme
	if scheme == "" {
		scheme = DefaultScheme
	}
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", scheme)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}

	seen := make(map[netip.Addr]struct{})
	var out []string
	add := func(a netip.Addr) {
		if _, ok := seen[a]; ok {
			return
		}
		seen[a] = struct{}{}
		out = append(out, scheme+"://"+netip.AddrPortFrom(a, uint16(cfg.Port)).String())
	}

	if cfg.EmulatorHost != "" {
		a, err := netip.ParseAddr(cfg.EmulatorHost)
		if err != nil {
			return nil, fmt.Errorf("emulator host: %w", err)
		}
		add(a)
	}

	for _, s := range cfg.Subnets {
		prefix, err := netip.ParsePrefix(s)
		if err != nil {
			return nil, fmt.Errorf("subnet %q: %w", s, err)
		}
		prefix = prefix.Masked()
		if !prefix.Addr().Is4() {
			return nil, fmt.Errorf("subnet %q: only IPv4 is supported", s)
		}
		if prefix.Bits() < 16 {
			return nil, fmt.Errorf("subnet %q: prefix too large to scan", s)
		}

		hostBits := 32 - prefix.Bits()
		first := prefix.Addr()
		for a := first; prefix.Contains(a); a = a.Next() {
			if hostBits > 1 && (a == first || !prefix.Contains(a.Next())) {
				continue // network or broadcast
			}
			add(a)
		}
	}
	return out, nil
}
