package recon

import (
	"context"
	"net"
	"time"

	"github.com/anstrom/reconnoiter/internal/errors"
	"github.com/anstrom/reconnoiter/internal/logging"
	"github.com/anstrom/reconnoiter/internal/metrics"
	"github.com/anstrom/reconnoiter/internal/workers"
)

// Operation names used in logs and metrics.
const (
	OpScanTarget         = "scan_target"
	OpDiscoverSubdomains = "discover_subdomains"
	OpPingSweep          = "ping_sweep"
)

// Operation statuses.
const (
	statusSuccess  = "success"
	statusInvalid  = "invalid"
	statusFailed   = "resolution_failed"
	statusCanceled = "canceled"
)

// Dialer opens network connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Scanner runs recon operations. One Scanner owns one RateLimiter, so every
// operation on it shares the same probe budget for the Scanner's lifetime.
// A Scanner is safe for concurrent use.
type Scanner struct {
	config   Config
	limiter  *RateLimiter
	resolver Resolver
	dialer   Dialer
	liveness LivenessProbe

	probePool     *workers.Pool
	subdomainPool *workers.Pool
	sweepPool     *workers.Pool

	metrics metrics.Recorder
	logger  *logging.Logger
}

// Option customizes a Scanner.
type Option func(*Scanner)

// WithResolver replaces the name resolver.
func WithResolver(r Resolver) Option {
	return func(s *Scanner) { s.resolver = r }
}

// WithDialer replaces the dialer used by port, banner and web probes.
func WithDialer(d Dialer) Option {
	return func(s *Scanner) { s.dialer = d }
}

// WithLivenessProbe replaces the probe used by PingSweep.
func WithLivenessProbe(p LivenessProbe) Option {
	return func(s *Scanner) { s.liveness = p }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(s *Scanner) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Scanner) { s.logger = l }
}

// New validates cfg and builds a Scanner. Invalid configuration fails here
// with a ConfigError, never on first use.
func New(cfg Config, opts ...Option) (*Scanner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Scanner{
		config:  cfg,
		dialer:  &net.Dialer{},
		metrics: metrics.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Default()
	}
	s.logger = s.logger.WithComponent("recon")

	if s.resolver == nil {
		if cfg.DNSServer != "" {
			s.resolver = NewDNSResolver(cfg.DNSServer, cfg.Timeout)
		} else {
			s.resolver = NewSystemResolver()
		}
	}

	var err error
	if s.limiter, err = NewRateLimiter(cfg.RateLimit, s.metrics); err != nil {
		return nil, err
	}
	if s.probePool, err = workers.New(workers.Config{Name: "probe", Size: cfg.MaxWorkers}); err != nil {
		return nil, errors.WrapConfigError(errors.CodeValidation, "Invalid max_workers", err)
	}
	if s.subdomainPool, err = workers.New(workers.Config{Name: "subdomain", Size: cfg.SubdomainWorkers}); err != nil {
		return nil, errors.WrapConfigError(errors.CodeValidation, "Invalid subdomain_workers", err)
	}
	if s.sweepPool, err = workers.New(workers.Config{Name: "sweep", Size: cfg.SweepWorkers}); err != nil {
		return nil, errors.WrapConfigError(errors.CodeValidation, "Invalid sweep_workers", err)
	}
	if s.liveness == nil {
		if s.liveness, err = NewLivenessProbe(cfg, s.dialer); err != nil {
			return nil, err
		}
	}

	if cfg.InsecureTLS {
		s.logger.Warn("TLS certificate verification disabled for web fingerprinting")
	}
	s.logger.Debug("Scanner created",
		"timeout", cfg.Timeout,
		"max_workers", cfg.MaxWorkers,
		"rate_limit", cfg.RateLimit,
		"liveness", cfg.LivenessMethod,
		"insecure_tls", cfg.InsecureTLS)
	return s, nil
}

// Config returns the scanner's configuration.
func (s *Scanner) Config() Config {
	return s.config
}

// ScanTarget resolves target and runs port scan, service probe and web
// fingerprint in sequence. It returns a nil result with a ResolutionError
// when the hostname does not resolve, and a nil result with a CANCELED
// error when ctx ends first. Individual probe failures never surface.
func (s *Scanner) ScanTarget(ctx context.Context, target string) (*ScanResult, error) {
	return s.ScanTargetPorts(ctx, target, nil)
}

// ScanTargetPorts is ScanTarget over an explicit port list. An empty list
// means the configured ports, or CommonPorts. The target's default port is
// always added.
func (s *Scanner) ScanTargetPorts(ctx context.Context, raw string, ports []int) (*ScanResult, error) {
	start := time.Now()
	s.metrics.AddActiveOperations(OpScanTarget, 1)
	defer s.metrics.AddActiveOperations(OpScanTarget, -1)

	target, err := ParseTarget(raw)
	if err != nil {
		s.finish(OpScanTarget, statusInvalid, start)
		return nil, err
	}
	if len(ports) == 0 {
		ports = s.config.Ports
	}
	list, err := portList(ports, target.DefaultPort)
	if err != nil {
		s.finish(OpScanTarget, statusInvalid, start)
		return nil, errors.WrapScanErrorWithTarget(errors.CodeValidation, "Invalid port list", raw, err)
	}

	logger := s.logger.WithTarget(raw)
	logger.Info("Starting scan", "ports", len(list))

	target, err = resolveTarget(ctx, s.resolver, target)
	if err != nil {
		status := statusFailed
		if errors.IsCode(err, errors.CodeCanceled) {
			status = statusCanceled
		}
		logger.Error("Could not resolve target", "hostname", target.Hostname, "error", err)
		s.finish(OpScanTarget, status, start)
		return nil, err
	}

	result := newScanResult(target)
	logger = logger.WithScanID(result.ID.String())

	if result.OpenPorts, err = s.scanPorts(ctx, target, list); err == nil {
		if result.Services, err = s.probeServices(ctx, target, result.OpenPorts); err == nil {
			result.WebServers, err = s.fingerprintWeb(ctx, target, result.OpenPorts)
		}
	}
	if err != nil {
		logger.Warn("Scan canceled", "error", err)
		s.finish(OpScanTarget, statusCanceled, start)
		return nil, errors.ErrCanceled(raw, err)
	}

	result.Duration = Duration(time.Since(start))
	s.metrics.AddFindings("open_port", len(result.OpenPorts))
	s.finish(OpScanTarget, statusSuccess, start)
	logger.Info("Scan completed",
		"ip", target.IP,
		"open_ports", len(result.OpenPorts),
		"web_servers", len(result.WebServers),
		"duration", time.Since(start))
	return result, nil
}

func (s *Scanner) finish(op, status string, start time.Time) {
	s.metrics.IncrementOperations(op, status)
	s.metrics.RecordOperationDuration(op, time.Since(start))
}

// stageErr reports ctx's error when ctx ended during a stage even if every
// unit had already been dispatched.
func stageErr(ctx context.Context, dispatchErr error) error {
	if dispatchErr != nil {
		return dispatchErr
	}
	return ctx.Err()
}
