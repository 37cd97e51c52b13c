// Package recon is the reconnaissance engine behind Reconnoiter.
//
// A Scanner resolves a target, finds its open TCP ports, reads service
// banners and fingerprints web servers. It can also enumerate subdomains
// from a wordlist and sweep an IPv4 range for live hosts.
//
// # Overview
//
// Every operation fans out over a bounded worker pool. Port, banner and web
// probes additionally pass through the Scanner's RateLimiter, which is shared
// by all operations for the Scanner's lifetime, so the probe rate never
// exceeds Config.RateLimit no matter how wide the pools are.
//
// # Main Components
//
// ## Target scanning
//
//   - ScanTarget / ScanTargetPorts: resolve, port scan, banner grab, web fingerprint
//   - ScanResult: the per-target result handed to callers
//   - ExtractVersion, DetectTechnologies, PresentSecurityHeaders: pure helpers
//
// ## Discovery
//
//   - DiscoverSubdomains: resolve label.domain for each wordlist label
//   - PingSweep: probe each host of a CIDR with a LivenessProbe
//
// ## Liveness probes
//
//   - ExecPinger: the system ping command
//   - ICMPPinger: in-process ICMP echo
//   - TCPPinger: TCP connect to a few ports
//   - NmapPinger: nmap ping scan
//
// # Failure model
//
// Individual probe failures are logged at debug level and absorbed: a port
// that cannot be connected is closed, a banner that cannot be read is nil.
// Only three failures reach the caller: an unparseable target, a name that
// does not resolve, and cancellation of the caller's context. Canceling
// stops dispatch and interrupts in-flight probes; the operation then returns
// a nil result and a CANCELED error.
//
// # Progress events
//
// Attach an EventSink with WithEventSink to receive per-probe events while
// an operation runs.
package recon

//go:generate mockgen -destination=mocks/mock_recon.go -package=mocks github.com/anstrom/reconnoiter/internal/recon Resolver,LivenessProbe
