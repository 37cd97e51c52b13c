package recon

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os/exec"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/anstrom/reconnoiter/internal/errors"
)

// LivenessProbe decides whether one host answers. A nil error means alive;
// any error means absent.
type LivenessProbe interface {
	Ping(ctx context.Context, host string) error
}

// NewLivenessProbe builds the probe named by cfg.LivenessMethod.
func NewLivenessProbe(cfg Config, dialer Dialer) (LivenessProbe, error) {
	switch cfg.LivenessMethod {
	case LivenessExec, "":
		return NewExecPinger(cfg.PingTimeout), nil
	case LivenessICMP:
		return NewICMPPinger(cfg.PingTimeout, cfg.ICMPPrivileged), nil
	case LivenessTCP:
		return NewTCPPinger(cfg.TCPPingPorts, cfg.PingTimeout, dialer), nil
	case LivenessNmap:
		return NewNmapPinger(cfg.PingTimeout), nil
	default:
		return nil, errors.ErrConfigInvalid("liveness_method", cfg.LivenessMethod)
	}
}

// ExecPinger runs the system ping command for a single echo request.
type ExecPinger struct {
	Command string
	Timeout time.Duration
	GOOS    string
}

// NewExecPinger returns a pinger for the current platform.
func NewExecPinger(timeout time.Duration) *ExecPinger {
	return &ExecPinger{
		Command: "ping",
		Timeout: timeout,
		GOOS:    runtime.GOOS,
	}
}

// Args returns the ping arguments for host.
func (p *ExecPinger) Args(host string) []string {
	if p.GOOS == "windows" {
		return []string{"-n", "1", "-w", "1000", host}
	}
	return []string{"-c", "1", "-W", "1", host}
}

// Ping implements LivenessProbe. The process is killed when Timeout elapses
// or ctx ends.
func (p *ExecPinger) Ping(ctx context.Context, host string) error {
	if net.ParseIP(host) == nil {
		return fmt.Errorf("ping target %q is not an IP address", host)
	}
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.Command, p.Args(host)...) //nolint:gosec // host is a parsed IP
	return cmd.Run()
}

// TCPPinger treats a host as alive when any of its ports accepts or actively
// refuses a connection.
type TCPPinger struct {
	Ports   []int
	Timeout time.Duration
	dialer  Dialer
}

// NewTCPPinger creates a TCP liveness probe.
func NewTCPPinger(ports []int, timeout time.Duration, dialer Dialer) *TCPPinger {
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	return &TCPPinger{Ports: ports, Timeout: timeout, dialer: dialer}
}

// Ping implements LivenessProbe. All ports are tried at once; the first
// answer wins and cancels the rest.
func (p *TCPPinger) Ping(ctx context.Context, host string) error {
	if len(p.Ports) == 0 {
		return fmt.Errorf("no tcp ping ports configured")
	}
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	errs := make(chan error, len(p.Ports))
	for _, port := range p.Ports {
		port := port
		go func() {
			conn, err := p.dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
			if err == nil {
				_ = conn.Close()
			} else if stderrors.Is(err, syscall.ECONNREFUSED) {
				err = nil
			}
			errs <- err
		}()
	}

	var last error
	for range p.Ports {
		if last = <-errs; last == nil {
			return nil
		}
	}
	return last
}
