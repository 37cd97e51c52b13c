package recon

import (
	"context"
	"fmt"
	"time"

	"github.com/Ullaakut/nmap/v3"

	"github.com/anstrom/reconnoiter/internal/logging"
)

// NmapPinger delegates host discovery to nmap's ping scan (-sn). It needs
// the nmap binary on PATH.
type NmapPinger struct {
	Timeout time.Duration
}

// NewNmapPinger creates an nmap-backed liveness probe.
func NewNmapPinger(timeout time.Duration) *NmapPinger {
	return &NmapPinger{Timeout: timeout}
}

// Ping implements LivenessProbe.
func (p *NmapPinger) Ping(ctx context.Context, host string) error {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	scanner, err := nmap.NewScanner(ctx,
		nmap.WithTargets(host),
		nmap.WithPingScan(),
		nmap.WithTimingTemplate(nmap.TimingAggressive),
	)
	if err != nil {
		return fmt.Errorf("failed to create nmap scanner: %w", err)
	}

	result, warnings, err := scanner.Run()
	if err != nil {
		return fmt.Errorf("nmap ping scan failed: %w", err)
	}
	if warnings != nil && len(*warnings) > 0 {
		logging.Debug("nmap ping scan warnings", "host", host, "warnings", *warnings)
	}

	for i := range result.Hosts {
		if result.Hosts[i].Status.State == "up" {
			return nil
		}
	}
	return fmt.Errorf("host %s is down", host)
}
