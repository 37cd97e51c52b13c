package recon

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/anstrom/reconnoiter/internal/errors"
	"github.com/anstrom/reconnoiter/internal/metrics"
	"github.com/anstrom/reconnoiter/internal/workers"
)

// DefaultWordlist is used when neither the caller nor the config supplies one.
var DefaultWordlist = []string{
	"www", "mail", "ftp", "localhost", "webmail", "smtp", "pop", "ns1", "webdisk",
	"ns2", "cpanel", "whm", "autodiscover", "autoconfig", "whcms", "owa",
	"crm", "cms", "wiki", "blog", "dev", "test", "staging", "admin", "api",
}

// DiscoverSubdomains resolves label.domain for every label and returns the
// names that resolved, sorted. The result is a set: it never holds a name
// outside the candidates and never more names than labels.
func (s *Scanner) DiscoverSubdomains(ctx context.Context, domain string, wordlist []string) ([]string, error) {
	start := time.Now()
	s.metrics.AddActiveOperations(OpDiscoverSubdomains, 1)
	defer s.metrics.AddActiveOperations(OpDiscoverSubdomains, -1)

	domain = strings.TrimSuffix(strings.TrimSpace(domain), ".")
	if domain == "" {
		s.finish(OpDiscoverSubdomains, statusInvalid, start)
		return nil, errors.ErrInvalidTarget(domain)
	}
	if len(wordlist) == 0 {
		wordlist = s.config.Wordlist
	}
	if len(wordlist) == 0 {
		wordlist = DefaultWordlist
	}
	candidates := subdomainCandidates(domain, wordlist)

	logger := s.logger.WithFields("domain", domain)
	logger.Info("Starting subdomain enumeration", "candidates", len(candidates))
	Emit(ctx, Event{Type: EventStageStarted, Stage: StageSubdomain, Target: domain, Count: len(candidates)})

	outcomes, err := workers.Map(ctx, s.subdomainPool, candidates, func(ctx context.Context, name string) (bool, error) {
		return s.checkSubdomain(ctx, domain, name)
	})
	if err = stageErr(ctx, err); err != nil {
		s.finish(OpDiscoverSubdomains, statusCanceled, start)
		return nil, errors.ErrCanceled(domain, err)
	}

	found := []string{}
	for i, o := range outcomes {
		if o.Value {
			found = append(found, candidates[i])
		}
	}
	slices.Sort(found)

	s.metrics.AddFindings("subdomain", len(found))
	s.finish(OpDiscoverSubdomains, statusSuccess, start)
	Emit(ctx, Event{Type: EventStageCompleted, Stage: StageSubdomain, Target: domain, Count: len(found)})
	s.logger.InfoSubdomain("Subdomain enumeration completed", domain, "found", len(found), "duration", time.Since(start))
	return found, nil
}

func (s *Scanner) checkSubdomain(ctx context.Context, domain, name string) (bool, error) {
	start := time.Now()
	addrs, err := s.resolver.LookupHost(ctx, name)
	if err != nil || len(addrs) == 0 {
		s.metrics.ObserveProbe(StageSubdomain, metrics.ResultMissing, time.Since(start))
		if err != nil {
			s.logger.DebugProbe(StageSubdomain, name, errors.NewProbeError(errors.CodeDNSLookup, StageSubdomain, name, err))
		}
		return false, err
	}
	s.metrics.ObserveProbe(StageSubdomain, metrics.ResultFound, time.Since(start))
	s.logger.Info("Discovered subdomain", "subdomain", name)
	Emit(ctx, Event{Type: EventSubdomainFound, Stage: StageSubdomain, Target: domain, Value: name})
	return true, nil
}

// subdomainCandidates joins each distinct non-empty label to domain.
func subdomainCandidates(domain string, labels []string) []string {
	seen := make(map[string]bool, len(labels))
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		label = strings.Trim(strings.TrimSpace(label), ".")
		if label == "" {
			continue
		}
		name := label + "." + domain
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}
