package recon

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/reconnoiter/internal/errors"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		raw  string
		want ScanTarget
	}{
		{"example.com", ScanTarget{Raw: "example.com", Hostname: "example.com"}},
		{" 10.0.0.5 ", ScanTarget{Raw: " 10.0.0.5 ", Hostname: "10.0.0.5"}},
		{"http://example.com", ScanTarget{Raw: "http://example.com", Hostname: "example.com", DefaultPort: 80, Scheme: "http"}},
		{"HTTPS://Example.com:8443/path?q=1", ScanTarget{Raw: "HTTPS://Example.com:8443/path?q=1", Hostname: "Example.com", DefaultPort: 443, Scheme: "https"}},
		{"https://[2001:db8::1]/", ScanTarget{Raw: "https://[2001:db8::1]/", Hostname: "2001:db8::1", DefaultPort: 443, Scheme: "https"}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseTarget(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTarget_Invalid(t *testing.T) {
	for _, raw := range []string{"", "  ", "http://", "https://:443"} {
		_, err := ParseTarget(raw)
		assert.True(t, errors.IsCode(err, errors.CodeTargetInvalid), "%q: %v", raw, err)
	}
}

func TestResolveTarget_PrefersIPv4(t *testing.T) {
	r := staticResolver{"dual.test": {"2001:db8::10", "192.0.2.10"}}

	got, err := resolveTarget(context.Background(), r, ScanTarget{Raw: "dual.test", Hostname: "dual.test"})
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.10", got.IP)
}

func TestResolveTarget_Failure(t *testing.T) {
	_, err := resolveTarget(context.Background(), staticResolver{}, ScanTarget{Raw: "x.test", Hostname: "x.test"})

	var scanErr *errors.ScanError
	require.ErrorAs(t, err, &scanErr)
	assert.Equal(t, errors.CodeResolution, scanErr.Code)
	assert.Equal(t, "x.test", scanErr.Context["hostname"])
}

func TestPickAddress(t *testing.T) {
	assert.Equal(t, "", pickAddress(nil))
	assert.Equal(t, "", pickAddress([]string{"not-an-ip"}))
	assert.Equal(t, "2001:db8::1", pickAddress([]string{"2001:db8::1"}))
	assert.Equal(t, "10.0.0.1", pickAddress([]string{"::1", "10.0.0.1"}))
}
