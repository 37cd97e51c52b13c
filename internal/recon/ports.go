package recon

import (
	"fmt"
	"slices"
)

// CommonPorts is the well-known port list scanned when none is configured.
var CommonPorts = []int{
	21, 22, 23, 25, 53, 80, 110, 111, 135, 139, 143, 443, 993, 995,
	1723, 3306, 3389, 5432, 5900, 6379, 8080, 8443, 9200, 27017,
}

var serviceNames = map[int]string{
	21:    "FTP",
	22:    "SSH",
	23:    "Telnet",
	25:    "SMTP",
	53:    "DNS",
	80:    "HTTP",
	110:   "POP3",
	135:   "RPC",
	139:   "NetBIOS",
	143:   "IMAP",
	443:   "HTTPS",
	993:   "IMAPS",
	995:   "POP3S",
	1433:  "MSSQL",
	1723:  "PPTP",
	3306:  "MySQL",
	3389:  "RDP",
	5432:  "PostgreSQL",
	5900:  "VNC",
	6379:  "Redis",
	8080:  "HTTP-Alt",
	8443:  "HTTPS-Alt",
	9200:  "Elasticsearch",
	27017: "MongoDB",
}

// ServiceName returns the conventional service for a port, or "Unknown".
func ServiceName(port int) string {
	if name, ok := serviceNames[port]; ok {
		return name
	}
	return "Unknown"
}

// webSchemes lists the ports fingerprinted over HTTP and their scheme.
var webSchemes = map[int]string{
	80:   "http",
	443:  "https",
	8080: "http",
	8443: "https",
}

// IsWebPort reports whether a port is fingerprinted over HTTP(S).
func IsWebPort(port int) bool {
	_, ok := webSchemes[port]
	return ok
}

// portList builds the probe list: base (or CommonPorts when empty) plus the
// target's default port, deduplicated with first-seen order kept.
func portList(base []int, defaultPort int) ([]int, error) {
	if len(base) == 0 {
		base = CommonPorts
	}
	seen := make(map[int]bool, len(base)+1)
	ports := make([]int, 0, len(base)+1)
	for _, p := range base {
		if p < 1 || p > 65535 {
			return nil, fmt.Errorf("port %d out of range", p)
		}
		if !seen[p] {
			seen[p] = true
			ports = append(ports, p)
		}
	}
	if defaultPort > 0 && !seen[defaultPort] {
		ports = append(ports, defaultPort)
	}
	return ports, nil
}

// sortedUnique returns ports sorted ascending without duplicates.
func sortedUnique(ports []int) []int {
	out := slices.Clone(ports)
	slices.Sort(out)
	return slices.Compact(out)
}
