package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/reconnoiter/internal/errors"
	"github.com/anstrom/reconnoiter/internal/recon"
)

func postJSON(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestCreateScan(t *testing.T) {
	var gotTarget string
	var gotPorts []int
	fake := &fakeRecon{
		scan: func(_ context.Context, target string, ports []int) (*recon.ScanResult, error) {
			gotTarget, gotPorts = target, ports
			return sampleResult(target), nil
		},
	}
	h := NewReconHandler(fake, testLogger())

	rec := postJSON(t, h.CreateScan, `{"target":"example.com","ports":[22,80]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "example.com", gotTarget)
	assert.Equal(t, []int{22, 80}, gotPorts)

	var resp struct {
		Result  map[string]any `json:"result"`
		Summary recon.Summary  `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "example.com", resp.Result["target"])
	assert.Equal(t, "192.0.2.10", resp.Result["ip_address"])
	assert.Equal(t, "1.5s", resp.Result["duration"])
	assert.Equal(t, []int{22, 80}, resp.Summary.OpenPorts)
	assert.Equal(t, "SSH", resp.Summary.Services[22].Service)
	require.NotNil(t, resp.Summary.Services[22].Banner)
	assert.Nil(t, resp.Summary.Services[80].Banner)
	require.Len(t, resp.Summary.WebServers, 1)
	assert.Equal(t, "nginx", resp.Summary.WebServers[0].Server)
}

func TestCreateScan_DefaultPortsOmitted(t *testing.T) {
	var gotPorts []int
	called := false
	fake := &fakeRecon{
		scan: func(_ context.Context, target string, ports []int) (*recon.ScanResult, error) {
			called, gotPorts = true, ports
			return sampleResult(target), nil
		},
	}
	h := NewReconHandler(fake, testLogger())

	rec := postJSON(t, h.CreateScan, `{"target":"example.com"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
	assert.Nil(t, gotPorts)
}

func TestCreateScan_Errors(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		scanErr      error
		expectStatus int
		expectCode   string
	}{
		{
			name:         "missing target",
			body:         `{}`,
			expectStatus: http.StatusBadRequest,
			expectCode:   "VALIDATION",
		},
		{
			name:         "invalid port",
			body:         `{"target":"a","ports":[70000]}`,
			expectStatus: http.StatusBadRequest,
			expectCode:   "VALIDATION",
		},
		{
			name:         "invalid target",
			body:         `{"target":"http://"}`,
			scanErr:      errors.ErrInvalidTarget("http://"),
			expectStatus: http.StatusBadRequest,
			expectCode:   "TARGET_INVALID",
		},
		{
			name:         "unresolvable",
			body:         `{"target":"nope.invalid"}`,
			scanErr:      errors.ErrResolution("nope.invalid", stderrors.New("no such host")),
			expectStatus: http.StatusUnprocessableEntity,
			expectCode:   "RESOLUTION_FAILED",
		},
		{
			name:         "engine failure",
			body:         `{"target":"example.com"}`,
			scanErr:      stderrors.New("boom"),
			expectStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeRecon{
				scan: func(_ context.Context, target string, _ []int) (*recon.ScanResult, error) {
					if tt.scanErr != nil {
						return nil, tt.scanErr
					}
					return sampleResult(target), nil
				},
			}
			h := NewReconHandler(fake, testLogger())

			rec := postJSON(t, h.CreateScan, tt.body)

			assert.Equal(t, tt.expectStatus, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.expectCode, resp.Code)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestCreateScan_UsesRequestContext(t *testing.T) {
	fake := &fakeRecon{
		scan: func(ctx context.Context, target string, _ []int) (*recon.ScanResult, error) {
			<-ctx.Done()
			return nil, errors.ErrCanceled(target, ctx.Err())
		},
	}
	h := NewReconHandler(fake, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"target":"example.com"}`)).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.CreateScan(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "CANCELED", decodeError(t, rec).Code)
}

func TestDiscoverSubdomains(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		found        []string
		err          error
		expectStatus int
		expectCount  int
	}{
		{
			name:         "found",
			body:         `{"domain":"example.com","wordlist":["www","mail"]}`,
			found:        []string{"www.example.com"},
			expectStatus: http.StatusOK,
			expectCount:  1,
		},
		{
			name:         "none found",
			body:         `{"domain":"example.com"}`,
			expectStatus: http.StatusOK,
		},
		{
			name:         "missing domain",
			body:         `{"wordlist":["www"]}`,
			expectStatus: http.StatusBadRequest,
		},
		{
			name:         "label too long",
			body:         `{"domain":"example.com","wordlist":["` + strings.Repeat("a", 64) + `"]}`,
			expectStatus: http.StatusBadRequest,
		},
		{
			name:         "invalid domain",
			body:         `{"domain":"-bad-"}`,
			err:          errors.ErrInvalidTarget("-bad-"),
			expectStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeRecon{
				subdomains: func(context.Context, string, []string) ([]string, error) {
					return tt.found, tt.err
				},
			}
			h := NewReconHandler(fake, testLogger())

			rec := postJSON(t, h.DiscoverSubdomains, tt.body)

			require.Equal(t, tt.expectStatus, rec.Code)
			if tt.expectStatus != http.StatusOK {
				return
			}
			var resp SubdomainResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "example.com", resp.Domain)
			assert.Equal(t, tt.expectCount, resp.Count)
			assert.NotNil(t, resp.Subdomains)
			assert.Len(t, resp.Subdomains, tt.expectCount)
		})
	}
}

func TestPingSweep(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		live         []string
		err          error
		expectStatus int
	}{
		{
			name:         "live hosts",
			body:         `{"network":"192.0.2.0/30"}`,
			live:         []string{"192.0.2.1", "192.0.2.2"},
			expectStatus: http.StatusOK,
		},
		{
			name:         "not a cidr",
			body:         `{"network":"192.0.2.1"}`,
			expectStatus: http.StatusBadRequest,
		},
		{
			name:         "too large",
			body:         `{"network":"10.0.0.0/8"}`,
			err:          errors.NewScanError(errors.CodeValidation, "network too large"),
			expectStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeRecon{
				sweep: func(context.Context, string) ([]string, error) {
					return tt.live, tt.err
				},
			}
			h := NewReconHandler(fake, testLogger())

			rec := postJSON(t, h.PingSweep, tt.body)

			require.Equal(t, tt.expectStatus, rec.Code)
			if tt.expectStatus != http.StatusOK {
				return
			}
			var resp SweepResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "192.0.2.0/30", resp.Network)
			assert.Equal(t, tt.live, resp.LiveHosts)
			assert.Equal(t, len(tt.live), resp.Count)
		})
	}
}
