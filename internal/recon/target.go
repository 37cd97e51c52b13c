package recon

import (
	"context"
	"net/url"
	"strings"

	"github.com/anstrom/reconnoiter/internal/errors"
)

// ParseTarget splits a bare host or an http(s) URL into its parts. It does
// not resolve anything.
func ParseTarget(raw string) (ScanTarget, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ScanTarget{}, errors.ErrInvalidTarget(raw)
	}

	lower := strings.ToLower(trimmed)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return ScanTarget{Raw: raw, Hostname: trimmed}, nil
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return ScanTarget{}, errors.WrapScanErrorWithTarget(errors.CodeTargetInvalid,
			"Invalid target URL", raw, err)
	}
	host := u.Hostname()
	if host == "" {
		return ScanTarget{}, errors.ErrInvalidTarget(raw)
	}

	scheme := strings.ToLower(u.Scheme)
	port := 80
	if scheme == "https" {
		port = 443
	}
	return ScanTarget{
		Raw:         raw,
		Hostname:    host,
		DefaultPort: port,
		Scheme:      scheme,
	}, nil
}

// resolveTarget fills in target.IP. Any lookup failure, including an empty
// answer, is a ResolutionError.
func resolveTarget(ctx context.Context, r Resolver, target ScanTarget) (ScanTarget, error) {
	addrs, err := r.LookupHost(ctx, target.Hostname)
	if err != nil {
		if ctx.Err() != nil {
			return target, errors.ErrCanceled(target.Raw, ctx.Err())
		}
		return target, errors.ErrResolution(target.Raw, err).
			WithContext("hostname", target.Hostname)
	}
	ip := pickAddress(addrs)
	if ip == "" {
		return target, errors.ErrResolution(target.Raw, nil).
			WithContext("hostname", target.Hostname)
	}
	target.IP = ip
	return target, nil
}
