package sweep

import (
	"context"
	"fmt"
	"strings"

	"github.com/Ullaakut/nmap/v3"
	"go.uber.org/zap"
)

// NmapDiscoverer runs an nmap ping scan (-sn) per range.
type NmapDiscoverer struct {
	binaryPath string
	logger     *zap.Logger
}

// NewNmapDiscoverer uses the nmap binary at binaryPath, or the one on PATH
// when empty.
func NewNmapDiscoverer(binaryPath string, logger *zap.Logger) *NmapDiscoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NmapDiscoverer{binaryPath: binaryPath, logger: logger}
}

// Discover enumerates every host nmap reports for target.
func (n *NmapDiscoverer) Discover(ctx context.Context, target string) ([]Host, error) {
	opts := []nmap.Option{
		nmap.WithTargets(target),
		nmap.WithPingScan(),
	}
	if n.binaryPath != "" {
		opts = append(opts, nmap.WithBinaryPath(n.binaryPath))
	}

	scanner, err := nmap.NewScanner(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create nmap scanner: %w", err)
	}

	result, warnings, err := scanner.Run()
	if warnings != nil && len(*warnings) > 0 {
		n.logger.Warn("nmap warnings", zap.String("range", target), zap.Strings("warnings", *warnings))
	}
	if err != nil {
		return nil, fmt.Errorf("nmap ping scan: %w", err)
	}

	hosts := make([]Host, 0, len(result.Hosts))
	for _, h := range result.Hosts {
		hosts = append(hosts, Host{
			Address:  hostAddress(h),
			Hostname: hostName(h),
			Status:   h.Status.State,
		})
	}
	return hosts, nil
}

// hostAddress prefers the IP address over a MAC entry.
func hostAddress(h nmap.Host) string {
	for _, a := range h.Addresses {
		if strings.HasPrefix(a.AddrType, "ipv") {
			return a.Addr
		}
	}
	if len(h.Addresses) > 0 {
		return h.Addresses[0].Addr
	}
	return ""
}

func hostName(h nmap.Host) string {
	for _, hn := range h.Hostnames {
		if hn.Name != "" {
			return hn.Name
		}
	}
	return ""
}
