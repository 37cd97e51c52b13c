package recon

import (
	"time"

	"github.com/google/uuid"
)

// ScanTarget is a parsed and resolved target.
type ScanTarget struct {
	// Raw is the caller's input, unmodified.
	Raw string `json:"raw"`
	// Hostname is the host part of Raw.
	Hostname string `json:"hostname"`
	// IP is the resolved address, empty until resolution.
	IP string `json:"ip"`
	// DefaultPort is implied by a URL scheme, 0 when none.
	DefaultPort int `json:"default_port,omitempty"`
	// Scheme is "http", "https" or empty for bare hosts.
	Scheme string `json:"scheme,omitempty"`
}

// ScanResult is the outcome of one ScanTarget call. The scanner keeps no
// reference to it after returning.
type ScanResult struct {
	ID         uuid.UUID       `json:"id"`
	Target     string          `json:"target"`
	Hostname   string          `json:"hostname"`
	IP         string          `json:"ip_address"`
	Timestamp  time.Time       `json:"timestamp"`
	Duration   Duration        `json:"duration"`
	OpenPorts  []int           `json:"open_ports"`
	Services   ServiceMap      `json:"services"`
	WebServers []WebServerInfo `json:"web_servers"`

	// Vulnerabilities is filled in by downstream analysis, never by the scanner.
	Vulnerabilities []string `json:"vulnerabilities"`
}

// ServiceMap maps an open port to what was learned about it.
type ServiceMap map[int]ServiceInfo

// ServiceInfo describes the service on one open port.
type ServiceInfo struct {
	Port    int     `json:"port"`
	Service string  `json:"service"`
	Banner  *string `json:"banner"`
	Version *string `json:"version"`
}

// WebServerInfo is the fingerprint of one HTTP(S) endpoint.
type WebServerInfo struct {
	URL             string            `json:"url"`
	Port            int               `json:"port"`
	StatusCode      int               `json:"status_code"`
	Server          string            `json:"server"`
	PoweredBy       string            `json:"powered_by"`
	Technologies    []string          `json:"technologies"`
	SecurityHeaders map[string]string `json:"security_headers"`
}

// Summary is the view consumed by downstream analysis.
type Summary struct {
	OpenPorts  []int           `json:"open_ports"`
	Services   ServiceMap      `json:"services"`
	WebServers []WebServerInfo `json:"web_servers"`
}

// Summary returns the open ports, services and web servers of the result.
func (r *ScanResult) Summary() Summary {
	return Summary{
		OpenPorts:  r.OpenPorts,
		Services:   r.Services,
		WebServers: r.WebServers,
	}
}

// Duration marshals as a Go duration string.
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func newScanResult(target ScanTarget) *ScanResult {
	return &ScanResult{
		ID:              uuid.New(),
		Target:          target.Raw,
		Hostname:        target.Hostname,
		IP:              target.IP,
		Timestamp:       time.Now().UTC(),
		OpenPorts:       []int{},
		Services:        ServiceMap{},
		WebServers:      []WebServerInfo{},
		Vulnerabilities: []string{},
	}
}
