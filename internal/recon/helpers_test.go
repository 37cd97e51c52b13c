package recon

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/anstrom/reconnoiter/internal/logging"
)

// fakeDialer routes selected addresses to local listeners and refuses
// everything else immediately.
type fakeDialer struct {
	mu     sync.Mutex
	routes map[string]string
	dialed []string
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{routes: make(map[string]string)}
}

func (d *fakeDialer) route(from, to string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes[from] = to
}

func (d *fakeDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	d.mu.Lock()
	d.dialed = append(d.dialed, address)
	to, ok := d.routes[address]
	d.mu.Unlock()

	if !ok {
		return nil, &net.OpError{Op: "dial", Net: network, Err: syscall.ECONNREFUSED}
	}
	var nd net.Dialer
	return nd.DialContext(ctx, network, to)
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dialed)
}

// staticResolver answers from a fixed table.
type staticResolver map[string][]string

func (r staticResolver) LookupHost(_ context.Context, host string) ([]string, error) {
	if addrs, ok := r[host]; ok {
		return addrs, nil
	}
	return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
}

// blockingResolver answers "no such host" after delay and tracks how many
// lookups overlap.
type blockingResolver struct {
	delay    time.Duration
	inFlight *int32
	peak     *int32
}

func (r blockingResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	n := atomic.AddInt32(r.inFlight, 1)
	defer atomic.AddInt32(r.inFlight, -1)
	for {
		p := atomic.LoadInt32(r.peak)
		if n <= p || atomic.CompareAndSwapInt32(r.peak, p, n) {
			break
		}
	}

	select {
	case <-time.After(r.delay):
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Timeout = time.Second
	cfg.RateLimit = 1000
	cfg.PingTimeout = time.Second
	return cfg
}

func newTestScanner(t *testing.T, cfg Config, opts ...Option) *Scanner {
	t.Helper()
	opts = append([]Option{WithLogger(logging.NewNop())}, opts...)
	s, err := New(cfg, opts...)
	require.NoError(t, err)
	return s
}

// bannerServer accepts connections and writes greeting to each, or echoes
// whatever it reads first when greeting is empty.
func bannerServer(t *testing.T, greeting string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				if greeting != "" {
					_, _ = conn.Write([]byte(greeting))
					return
				}
				buf := make([]byte, 256)
				_ = conn.SetReadDeadline(time.Now().Add(time.Second))
				n, _ := conn.Read(buf)
				_, _ = conn.Write(buf[:n])
			}()
		}
	}()
	return ln.Addr().String()
}

// quietServer accepts connections and never writes. With hold set each
// connection stays open until the test ends; otherwise it is closed at once.
func quietServer(t *testing.T, hold bool) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	t.Cleanup(func() {
		close(done)
		_ = ln.Close()
	})

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			if !hold {
				_ = conn.Close()
				continue
			}
			go func() {
				<-done
				_ = conn.Close()
			}()
		}
	}()
	return ln.Addr().String()
}

// eventRecorder collects events from concurrent workers.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) ofType(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
