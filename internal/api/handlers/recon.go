package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/anstrom/reconnoiter/internal/api/middleware"
	"github.com/anstrom/reconnoiter/internal/logging"
	"github.com/anstrom/reconnoiter/internal/recon"
)

// Recon is the engine surface the API drives. *recon.Scanner satisfies it.
type Recon interface {
	ScanTargetPorts(ctx context.Context, target string, ports []int) (*recon.ScanResult, error)
	DiscoverSubdomains(ctx context.Context, domain string, wordlist []string) ([]string, error)
	PingSweep(ctx context.Context, cidr string) ([]string, error)
}

// ScanRequest asks for a full scan of one target.
type ScanRequest struct {
	Target string `json:"target" validate:"required,max=2048"`
	Ports  []int  `json:"ports,omitempty" validate:"omitempty,max=4096,dive,min=1,max=65535"`
}

// ScanResponse wraps a scan result with its downstream summary.
type ScanResponse struct {
	Result  *recon.ScanResult `json:"result"`
	Summary recon.Summary     `json:"summary"`
}

// SubdomainRequest asks for subdomain enumeration of a domain.
type SubdomainRequest struct {
	Domain   string   `json:"domain" validate:"required,max=253"`
	Wordlist []string `json:"wordlist,omitempty" validate:"omitempty,max=100000,dive,required,max=63"`
}

// SubdomainResponse lists discovered subdomains.
type SubdomainResponse struct {
	Domain     string         `json:"domain"`
	Subdomains []string       `json:"subdomains"`
	Count      int            `json:"count"`
	Duration   recon.Duration `json:"duration"`
}

// SweepRequest asks for a liveness sweep of a network.
type SweepRequest struct {
	Network string `json:"network" validate:"required,cidr"`
}

// SweepResponse lists live hosts.
type SweepResponse struct {
	Network   string         `json:"network"`
	LiveHosts []string       `json:"live_hosts"`
	Count     int            `json:"count"`
	Duration  recon.Duration `json:"duration"`
}

// ReconHandler serves synchronous recon operations.
type ReconHandler struct {
	recon  Recon
	logger *logging.Logger
}

// NewReconHandler creates a new recon handler.
func NewReconHandler(r Recon, logger *logging.Logger) *ReconHandler {
	return &ReconHandler{
		recon:  r,
		logger: logger.WithFields("handler", "recon"),
	}
}

// CreateScan runs a scan and returns its result. The request context bounds
// the scan; a client disconnect or request timeout cancels it.
func (h *ReconHandler) CreateScan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := parseJSON(r, &req); err != nil {
		writeCodedError(w, r, err)
		return
	}

	logger := h.logger.WithFields("request_id", middleware.GetRequestID(r))
	result, err := h.recon.ScanTargetPorts(r.Context(), req.Target, req.Ports)
	if err != nil {
		logger.ErrorScan("Scan request failed", req.Target, err)
		writeCodedError(w, r, err)
		return
	}

	logger.InfoScan("Scan request completed", req.Target,
		"scan_id", result.ID,
		"open_ports", len(result.OpenPorts))
	writeJSON(w, r, http.StatusOK, ScanResponse{Result: result, Summary: result.Summary()})
}

// DiscoverSubdomains enumerates subdomains of the requested domain.
func (h *ReconHandler) DiscoverSubdomains(w http.ResponseWriter, r *http.Request) {
	var req SubdomainRequest
	if err := parseJSON(r, &req); err != nil {
		writeCodedError(w, r, err)
		return
	}

	start := time.Now()
	found, err := h.recon.DiscoverSubdomains(r.Context(), req.Domain, req.Wordlist)
	if err != nil {
		h.logger.Error("Subdomain request failed",
			"request_id", middleware.GetRequestID(r),
			"domain", req.Domain,
			"error", err)
		writeCodedError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, SubdomainResponse{
		Domain:     req.Domain,
		Subdomains: nonNil(found),
		Count:      len(found),
		Duration:   recon.Duration(time.Since(start)),
	})
}

// PingSweep reports the live hosts of the requested network.
func (h *ReconHandler) PingSweep(w http.ResponseWriter, r *http.Request) {
	var req SweepRequest
	if err := parseJSON(r, &req); err != nil {
		writeCodedError(w, r, err)
		return
	}

	start := time.Now()
	live, err := h.recon.PingSweep(r.Context(), req.Network)
	if err != nil {
		h.logger.ErrorSweep("Sweep request failed", req.Network, err,
			"request_id", middleware.GetRequestID(r))
		writeCodedError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, SweepResponse{
		Network:   req.Network,
		LiveHosts: nonNil(live),
		Count:     len(live),
		Duration:  recon.Duration(time.Since(start)),
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
