package recon

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/anstrom/reconnoiter/internal/errors"
	"github.com/anstrom/reconnoiter/internal/metrics"
	"github.com/anstrom/reconnoiter/internal/workers"
)

// PingSweep probes every host of an IPv4 CIDR and returns the responsive
// addresses in ascending order. Host bits set in cidr are ignored. Any probe
// failure means the host is absent.
func (s *Scanner) PingSweep(ctx context.Context, cidr string) ([]string, error) {
	start := time.Now()
	s.metrics.AddActiveOperations(OpPingSweep, 1)
	defer s.metrics.AddActiveOperations(OpPingSweep, -1)

	hosts, err := EnumerateHosts(cidr)
	if err != nil {
		s.finish(OpPingSweep, statusInvalid, start)
		return nil, errors.WrapScanErrorWithTarget(errors.CodeTargetInvalid, "Invalid sweep range", cidr, err)
	}

	s.logger.InfoSweep("Starting ping sweep", cidr, "hosts", len(hosts))
	Emit(ctx, Event{Type: EventStageStarted, Stage: StageSweep, Target: cidr, Count: len(hosts)})

	outcomes, err := workers.Map(ctx, s.sweepPool, hosts, func(ctx context.Context, host string) (bool, error) {
		return s.pingHost(ctx, cidr, host)
	})
	if err = stageErr(ctx, err); err != nil {
		s.finish(OpPingSweep, statusCanceled, start)
		return nil, errors.ErrCanceled(cidr, err)
	}

	alive := []string{}
	for i, o := range outcomes {
		if o.Value {
			alive = append(alive, hosts[i])
		}
	}

	s.metrics.AddFindings("live_host", len(alive))
	s.finish(OpPingSweep, statusSuccess, start)
	Emit(ctx, Event{Type: EventStageCompleted, Stage: StageSweep, Target: cidr, Count: len(alive)})
	s.logger.InfoSweep("Ping sweep completed", cidr, "alive", len(alive), "duration", time.Since(start))
	return alive, nil
}

func (s *Scanner) pingHost(ctx context.Context, cidr, host string) (bool, error) {
	start := time.Now()
	if err := s.liveness.Ping(ctx, host); err != nil {
		s.metrics.ObserveProbe(StageSweep, metrics.ResultMissing, time.Since(start))
		s.logger.DebugProbe(StageSweep, host, errors.NewProbeError(errors.CodeSweepProbe, StageSweep, host, err))
		return false, err
	}
	s.metrics.ObserveProbe(StageSweep, metrics.ResultFound, time.Since(start))
	Emit(ctx, Event{Type: EventHostAlive, Stage: StageSweep, Target: cidr, Value: host})
	return true, nil
}

// EnumerateHosts lists the host addresses of an IPv4 range. Network and
// broadcast addresses are excluded except for /31 and /32, where every
// address is a host. A bare address is treated as /32.
func EnumerateHosts(cidr string) ([]string, error) {
	cidr = strings.TrimSpace(cidr)
	if !strings.Contains(cidr, "/") {
		cidr += "/32"
	}
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return nil, err
	}
	if !prefix.Addr().Is4() {
		return nil, fmt.Errorf("%s is not an IPv4 range", cidr)
	}
	prefix = prefix.Masked()

	first := prefix.Addr()
	size := 1 << (32 - prefix.Bits())

	var hosts []string
	switch prefix.Bits() {
	case 32, 31:
		hosts = make([]string, 0, size)
		for a, i := first, 0; i < size; a, i = a.Next(), i+1 {
			hosts = append(hosts, a.String())
		}
	default:
		hosts = make([]string, 0, size-2)
		a := first.Next()
		for i := 0; i < size-2; a, i = a.Next(), i+1 {
			hosts = append(hosts, a.String())
		}
	}
	return hosts, nil
}
