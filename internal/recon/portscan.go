package recon

import (
	"context"
	stderrors "errors"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/anstrom/reconnoiter/internal/errors"
	"github.com/anstrom/reconnoiter/internal/metrics"
	"github.com/anstrom/reconnoiter/internal/workers"
)

// scanPorts connects to every port of target.IP and returns the open ones
// sorted ascending. The only error is ctx's.
func (s *Scanner) scanPorts(ctx context.Context, target ScanTarget, ports []int) ([]int, error) {
	Emit(ctx, Event{Type: EventStageStarted, Stage: StagePort, Target: target.Raw, Count: len(ports)})

	outcomes, err := workers.Map(ctx, s.probePool, ports, func(ctx context.Context, port int) (bool, error) {
		return s.probePort(ctx, target, port)
	})
	if err = stageErr(ctx, err); err != nil {
		return nil, err
	}

	open := make([]int, 0, len(ports))
	for i, o := range outcomes {
		if o.Value {
			open = append(open, ports[i])
		}
	}
	open = sortedUnique(open)

	Emit(ctx, Event{Type: EventStageCompleted, Stage: StagePort, Target: target.Raw, Count: len(open)})
	return open, nil
}

// probePort reports whether a TCP connect to ip:port succeeds. The
// connection is closed without exchanging data.
func (s *Scanner) probePort(ctx context.Context, target ScanTarget, port int) (bool, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return false, err
	}

	addr := net.JoinHostPort(target.IP, strconv.Itoa(port))
	start := time.Now()

	dialCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()
	conn, err := s.dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		code := connectCode(err)
		result := metrics.ResultClosed
		if code == errors.CodeProbeTimeout {
			result = metrics.ResultTimeout
		}
		s.metrics.ObserveProbe(StagePort, result, time.Since(start))
		probeErr := errors.NewProbeError(code, StagePort, addr, err)
		s.logger.DebugProbe(StagePort, addr, probeErr)
		return false, probeErr
	}
	_ = conn.Close()

	s.metrics.ObserveProbe(StagePort, metrics.ResultOpen, time.Since(start))
	Emit(ctx, Event{Type: EventPortOpen, Stage: StagePort, Target: target.Raw, Port: port})
	return true, nil
}

// connectCode classifies a dial or read error.
func connectCode(err error) errors.ErrorCode {
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, os.ErrDeadlineExceeded) {
		return errors.CodeProbeTimeout
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.CodeProbeTimeout
	}
	return errors.CodeConnect
}
