package recon

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/anstrom/reconnoiter/internal/errors"
	"github.com/anstrom/reconnoiter/internal/metrics"
	"github.com/anstrom/reconnoiter/internal/workers"
)

// serviceProbes holds the payload written before reading a banner. Ports not
// listed are read without sending anything; FTP, SSH, POP3, IMAP, MySQL and
// VNC greet on connect.
var serviceProbes = map[int]func(ip string) []byte{
	25:   func(string) []byte { return []byte("EHLO test\r\n") },
	80:   httpProbe,
	8080: httpProbe,
	6379: func(string) []byte { return []byte("PING\r\n") },
}

func httpProbe(ip string) []byte {
	return []byte("GET / HTTP/1.1\r\nHost: " + ip + "\r\n\r\n")
}

// versionPatterns are tried in order; the first match wins.
var versionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d+\.\d+\.\d+)`),
	regexp.MustCompile(`(?i)(\d+\.\d+)`),
	regexp.MustCompile(`(?i)version\s+(\d+\.\d+\.\d+)`),
	regexp.MustCompile(`(?i)v(\d+\.\d+)`),
}

// ExtractVersion returns the first version-looking token in banner.
func ExtractVersion(banner string) (string, bool) {
	for _, re := range versionPatterns {
		if m := re.FindStringSubmatch(banner); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// probeServices builds a ServiceInfo for every open port. Banner failures
// leave Banner and Version nil.
func (s *Scanner) probeServices(ctx context.Context, target ScanTarget, open []int) (ServiceMap, error) {
	Emit(ctx, Event{Type: EventStageStarted, Stage: StageBanner, Target: target.Raw, Count: len(open)})

	outcomes, err := workers.Map(ctx, s.probePool, open, func(ctx context.Context, port int) (ServiceInfo, error) {
		return s.identifyService(ctx, target, port), nil
	})
	if err = stageErr(ctx, err); err != nil {
		return nil, err
	}

	services := make(ServiceMap, len(open))
	for i, o := range outcomes {
		services[open[i]] = o.Value
	}

	Emit(ctx, Event{Type: EventStageCompleted, Stage: StageBanner, Target: target.Raw, Count: len(services)})
	return services, nil
}

func (s *Scanner) identifyService(ctx context.Context, target ScanTarget, port int) ServiceInfo {
	info := ServiceInfo{
		Port:    port,
		Service: ServiceName(port),
	}

	banner, err := s.grabBanner(ctx, target.IP, port)
	if err != nil {
		s.logger.DebugProbe(StageBanner, net.JoinHostPort(target.IP, strconv.Itoa(port)), err)
		return info
	}
	if banner == "" {
		return info
	}

	info.Banner = &banner
	if v, ok := ExtractVersion(banner); ok {
		info.Version = &v
	}
	Emit(ctx, Event{Type: EventServiceIdentified, Stage: StageBanner, Target: target.Raw, Port: port, Value: info.Service})
	return info
}

// grabBanner connects, writes the port's probe if it has one and performs a
// single bounded read. Connect and read share one Timeout budget. An empty string with a nil error means the service
// closed without saying anything.
func (s *Scanner) grabBanner(ctx context.Context, ip string, port int) (string, error) {
	addr := net.JoinHostPort(ip, strconv.Itoa(port))
	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}
	start := time.Now()
	deadline := start.Add(s.config.Timeout)

	dialCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()
	conn, err := s.dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		s.metrics.ObserveProbe(StageBanner, metrics.ResultError, time.Since(start))
		return "", errors.NewProbeError(connectCode(err), StageBanner, addr, err)
	}
	defer conn.Close()

	_ = conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if probe, ok := serviceProbes[port]; ok {
		if _, err := conn.Write(probe(ip)); err != nil {
			s.metrics.ObserveProbe(StageBanner, metrics.ResultError, time.Since(start))
			return "", errors.NewProbeError(errors.CodeBanner, StageBanner, addr, err)
		}
	}

	buf := make([]byte, s.config.BannerSize)
	n, err := conn.Read(buf)
	if n == 0 {
		if err == nil || stderrors.Is(err, io.EOF) {
			s.metrics.ObserveProbe(StageBanner, metrics.ResultMissing, time.Since(start))
			return "", nil
		}
		code := connectCode(err)
		result := metrics.ResultError
		if code == errors.CodeProbeTimeout {
			result = metrics.ResultTimeout
		} else {
			code = errors.CodeBanner
		}
		s.metrics.ObserveProbe(StageBanner, result, time.Since(start))
		return "", errors.NewProbeError(code, StageBanner, addr, err)
	}

	s.metrics.ObserveProbe(StageBanner, metrics.ResultFound, time.Since(start))
	return cleanBanner(buf[:n]), nil
}

// cleanBanner drops invalid UTF-8 and surrounding whitespace.
func cleanBanner(b []byte) string {
	return strings.TrimSpace(strings.ToValidUTF8(string(b), ""))
}
