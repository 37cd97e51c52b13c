package recon

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anstrom/reconnoiter/internal/errors"
	"github.com/anstrom/reconnoiter/internal/metrics"
	"github.com/anstrom/reconnoiter/internal/workers"
)

// techIndicators maps a lowercase needle to the technology it reveals. Order
// is the order technologies are reported in.
var techIndicators = []struct {
	needle string
	name   string
}{
	{"apache", "Apache"},
	{"nginx", "Nginx"},
	{"iis", "IIS"},
	{"php", "PHP"},
	{"asp.net", "ASP.NET"},
	{"python", "Python"},
	{"node.js", "Node.js"},
	{"express", "Express.js"},
}

// SecurityHeaders is the whitelist copied into WebServerInfo.
var SecurityHeaders = []string{
	"X-Frame-Options",
	"X-Content-Type-Options",
	"X-XSS-Protection",
	"Strict-Transport-Security",
	"Content-Security-Policy",
}

// fingerprintWeb issues one GET per open web port. Ports whose request fails
// are left out.
func (s *Scanner) fingerprintWeb(ctx context.Context, target ScanTarget, open []int) ([]WebServerInfo, error) {
	var ports []int
	for _, p := range open {
		if IsWebPort(p) {
			ports = append(ports, p)
		}
	}
	servers := make([]WebServerInfo, 0, len(ports))
	if len(ports) == 0 {
		return servers, ctx.Err()
	}

	Emit(ctx, Event{Type: EventStageStarted, Stage: StageWeb, Target: target.Raw, Count: len(ports)})

	client := s.httpClient(target)
	defer client.CloseIdleConnections()

	outcomes, err := workers.Map(ctx, s.probePool, ports, func(ctx context.Context, port int) (WebServerInfo, error) {
		return s.fingerprint(ctx, client, target, port)
	})
	if err = stageErr(ctx, err); err != nil {
		return nil, err
	}

	for i, o := range outcomes {
		if o.Err != nil {
			s.logger.DebugProbe(StageWeb, net.JoinHostPort(target.Hostname, strconv.Itoa(ports[i])), o.Err)
			continue
		}
		servers = append(servers, o.Value)
	}

	Emit(ctx, Event{Type: EventStageCompleted, Stage: StageWeb, Target: target.Raw, Count: len(servers)})
	return servers, nil
}

// httpClient builds a client that never follows redirects and dials the
// already-resolved address for the target's hostname.
func (s *Scanner) httpClient(target ScanTarget) *http.Client {
	transport := &http.Transport{
		Proxy: nil,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if host, port, err := net.SplitHostPort(addr); err == nil && strings.EqualFold(host, target.Hostname) {
				addr = net.JoinHostPort(target.IP, port)
			}
			return s.dialer.DialContext(ctx, network, addr)
		},
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: s.config.InsecureTLS, //nolint:gosec // opt-in via insecure_tls
		},
		TLSHandshakeTimeout:   s.config.Timeout,
		ResponseHeaderTimeout: s.config.Timeout,
		DisableKeepAlives:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   s.config.Timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (s *Scanner) fingerprint(ctx context.Context, client *http.Client, target ScanTarget, port int) (WebServerInfo, error) {
	url := fmt.Sprintf("%s://%s/", webSchemes[port], net.JoinHostPort(target.Hostname, strconv.Itoa(port)))
	if err := s.limiter.Acquire(ctx); err != nil {
		return WebServerInfo{}, err
	}
	start := time.Now()

	fail := func(err error) (WebServerInfo, error) {
		code := errors.CodeFingerprint
		result := metrics.ResultError
		if connectCode(err) == errors.CodeProbeTimeout {
			code = errors.CodeProbeTimeout
			result = metrics.ResultTimeout
		}
		s.metrics.ObserveProbe(StageWeb, result, time.Since(start))
		return WebServerInfo{}, errors.NewProbeError(code, StageWeb, url, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fail(err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fail(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.config.WebBodyLimit))
	if err != nil {
		return fail(err)
	}

	info := WebServerInfo{
		URL:             url,
		Port:            port,
		StatusCode:      resp.StatusCode,
		Server:          resp.Header.Get("Server"),
		PoweredBy:       resp.Header.Get("X-Powered-By"),
		Technologies:    DetectTechnologies(resp.Header, body),
		SecurityHeaders: PresentSecurityHeaders(resp.Header),
	}
	if info.Server == "" {
		info.Server = "Unknown"
	}

	s.metrics.ObserveProbe(StageWeb, metrics.ResultFound, time.Since(start))
	Emit(ctx, Event{Type: EventWebFingerprinted, Stage: StageWeb, Target: target.Raw, Port: port, Value: info.Server})
	return info, nil
}

// DetectTechnologies matches the Server and X-Powered-By headers and the
// body against the indicator table, case-insensitively. Each technology is
// reported once.
func DetectTechnologies(h http.Header, body []byte) []string {
	server := strings.ToLower(h.Get("Server"))
	poweredBy := strings.ToLower(h.Get("X-Powered-By"))
	content := strings.ToLower(string(body))

	techs := []string{}
	for _, ind := range techIndicators {
		if strings.Contains(server, ind.needle) ||
			strings.Contains(poweredBy, ind.needle) ||
			strings.Contains(content, ind.needle) {
			techs = append(techs, ind.name)
		}
	}
	return techs
}

// PresentSecurityHeaders copies whitelisted headers that the response
// actually carried. A header sent with an empty value counts as present.
func PresentSecurityHeaders(h http.Header) map[string]string {
	found := make(map[string]string)
	for _, name := range SecurityHeaders {
		if values, ok := h[http.CanonicalHeaderKey(name)]; ok && len(values) > 0 {
			found[name] = values[0]
		}
	}
	return found
}
