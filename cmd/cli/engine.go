package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/anstrom/reconnoiter/internal/config"
	"github.com/anstrom/reconnoiter/internal/logging"
	"github.com/anstrom/reconnoiter/internal/metrics"
	"github.com/anstrom/reconnoiter/internal/recon"
)

// engine is the recon surface the commands drive.
type engine interface {
	ScanTargetPorts(ctx context.Context, target string, ports []int) (*recon.ScanResult, error)
	DiscoverSubdomains(ctx context.Context, domain string, wordlist []string) ([]string, error)
	PingSweep(ctx context.Context, cidr string) ([]string, error)
}

// newEngine builds the scanner; tests replace it.
var newEngine = func(cfg *config.Config, logger *logging.Logger, recorder metrics.Recorder) (engine, error) {
	return recon.New(cfg.Recon, recon.WithLogger(logger), recon.WithMetrics(recorder))
}

// withProgress attaches an event sink printing to w when verbose is set.
func withProgress(ctx context.Context, w io.Writer) context.Context {
	if !verbose {
		return ctx
	}
	var mu sync.Mutex
	return recon.WithEventSink(ctx, recon.EventSinkFunc(func(e recon.Event) {
		mu.Lock()
		defer mu.Unlock()
		printEvent(w, e)
	}))
}

// parsePorts parses "22,80,8000-8100". An empty list yields nil, meaning the
// scanner's default port list.
func parsePorts(list string) ([]int, error) {
	list = strings.TrimSpace(list)
	if list == "" {
		return nil, nil
	}

	var ports []int
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, err := parsePort(lo)
			if err != nil {
				return nil, fmt.Errorf("invalid start port in range %q", part)
			}
			end, err := parsePort(hi)
			if err != nil {
				return nil, fmt.Errorf("invalid end port in range %q", part)
			}
			if start > end {
				return nil, fmt.Errorf("start port cannot be greater than end port: %s", part)
			}
			for p := start; p <= end; p++ {
				ports = append(ports, p)
			}
			continue
		}

		port, err := parsePort(part)
		if err != nil {
			return nil, fmt.Errorf("invalid port: %s", part)
		}
		ports = append(ports, port)
	}

	if len(ports) == 0 {
		return nil, fmt.Errorf("empty port list")
	}
	return ports, nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range", port)
	}
	return port, nil
}

// readWordlist loads one label per line, skipping blanks and # comments.
func readWordlist(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wordlist: %w", err)
	}
	defer f.Close()
	return parseWordlist(f)
}

func parseWordlist(r io.Reader) ([]string, error) {
	var words []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read wordlist: %w", err)
	}
	return words, nil
}
