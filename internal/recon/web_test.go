package recon

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectTechnologies(t *testing.T) {
	tests := []struct {
		name   string
		header http.Header
		body   string
		want   []string
	}{
		{
			name:   "server header",
			header: http.Header{"Server": {"Apache/2.4.41 (Ubuntu)"}},
			want:   []string{"Apache"},
		},
		{
			name:   "powered by and body",
			header: http.Header{"X-Powered-By": {"PHP/8.1"}},
			body:   "<script>/* built with express */</script>",
			want:   []string{"PHP", "Express.js"},
		},
		{
			name:   "table order and no duplicates",
			header: http.Header{"Server": {"nginx"}, "X-Powered-By": {"ASP.NET"}},
			body:   "nginx apache",
			want:   []string{"Apache", "Nginx", "ASP.NET"},
		},
		{
			name:   "nothing",
			header: http.Header{},
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectTechnologies(tt.header, []byte(tt.body)))
		})
	}
}

func TestPresentSecurityHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Strict-Transport-Security", "max-age=63072000")
	h.Set("X-Content-Type-Options", "nosniff")
	h["Content-Security-Policy"] = []string{""}
	h.Set("Referrer-Policy", "no-referrer")

	got := PresentSecurityHeaders(h)
	assert.Equal(t, map[string]string{
		"Strict-Transport-Security": "max-age=63072000",
		"X-Content-Type-Options":    "nosniff",
		"Content-Security-Policy":   "",
	}, got)
}

func TestFingerprintWeb_DefaultsAndRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusFound)
	}))
	defer srv.Close()

	dialer := newFakeDialer()
	dialer.route("192.0.2.30:8080", srv.Listener.Addr().String())
	s := newTestScanner(t, testConfig(), WithDialer(dialer))

	target := ScanTarget{Raw: "app.test", Hostname: "app.test", IP: "192.0.2.30"}
	servers, err := s.fingerprintWeb(context.Background(), target, []int{22, 8080})
	require.NoError(t, err)
	require.Len(t, servers, 1)

	web := servers[0]
	assert.Equal(t, "http://app.test:8080/", web.URL)
	assert.Equal(t, 8080, web.Port)
	assert.Equal(t, http.StatusFound, web.StatusCode, "redirects are not followed")
	assert.Equal(t, "Unknown", web.Server)
	assert.Equal(t, "", web.PoweredBy)
	assert.Empty(t, web.SecurityHeaders)
}

func TestFingerprintWeb_FailedPortOmitted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "Microsoft-IIS/10.0")
		w.Header().Set("X-Powered-By", "ASP.NET")
	}))
	defer srv.Close()

	dialer := newFakeDialer()
	dialer.route("192.0.2.30:80", srv.Listener.Addr().String())
	s := newTestScanner(t, testConfig(), WithDialer(dialer))

	target := ScanTarget{Raw: "win.test", Hostname: "win.test", IP: "192.0.2.30"}
	servers, err := s.fingerprintWeb(context.Background(), target, []int{80, 443})
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, 80, servers[0].Port)
	assert.Equal(t, "ASP.NET", servers[0].PoweredBy)
	assert.Equal(t, []string{"IIS", "ASP.NET"}, servers[0].Technologies)
}

func TestFingerprintWeb_TLS(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "caddy")
	}))
	defer srv.Close()

	tests := []struct {
		name     string
		insecure bool
		want     int
	}{
		{"self-signed rejected by default", false, 0},
		{"self-signed accepted with insecure_tls", true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dialer := newFakeDialer()
			dialer.route(net.JoinHostPort("192.0.2.40", "443"), srv.Listener.Addr().String())
			cfg := testConfig()
			cfg.InsecureTLS = tt.insecure
			s := newTestScanner(t, cfg, WithDialer(dialer))

			target := ScanTarget{Raw: "tls.test", Hostname: "tls.test", IP: "192.0.2.40"}
			servers, err := s.fingerprintWeb(context.Background(), target, []int{443})
			require.NoError(t, err)
			require.Len(t, servers, tt.want)
			if tt.want == 1 {
				assert.Equal(t, "https://tls.test:443/", servers[0].URL)
				assert.Equal(t, "caddy", servers[0].Server)
			}
		})
	}
}

func TestFingerprintWeb_NoWebPorts(t *testing.T) {
	s := newTestScanner(t, testConfig(), WithDialer(newFakeDialer()))
	servers, err := s.fingerprintWeb(context.Background(), ScanTarget{IP: "192.0.2.1"}, []int{22, 3306})
	require.NoError(t, err)
	assert.NotNil(t, servers)
	assert.Empty(t, servers)
}
