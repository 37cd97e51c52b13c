package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/anstrom/reconnoiter/internal/logging"
	"github.com/anstrom/reconnoiter/internal/metrics"
	"github.com/anstrom/reconnoiter/internal/recon"
)

var (
	scanPorts  string
	scanOutput string
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan TARGET [TARGET...]",
	Short: "Scan targets for open ports, services and web servers",
	Long: `Scan one or more targets for open TCP ports, then grab service banners
and fingerprint every web-capable port.

A target is a hostname, an IP address or a URL. A URL's scheme adds its
default port to the probe list. Targets run one after another on a single
scanner, so the probe rate limit holds across all of them.`,
	Example: `  reconnoiter scan example.com
  reconnoiter scan https://example.com --ports 22,80,8000-8100
  reconnoiter scan 192.0.2.10 198.51.100.7 --output json
  reconnoiter scan example.com --rate-limit 50 --insecure-tls -v`,
	Args: cobra.MinimumNArgs(1),
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return bindFlags(cmd, scanBindings)
	},
	RunE: runScan,
}

var scanBindings = map[string]string{
	"recon.rate_limit":   "rate-limit",
	"recon.timeout":      "timeout",
	"recon.max_workers":  "workers",
	"recon.insecure_tls": "insecure-tls",
	"recon.dns_server":   "dns-server",
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVarP(&scanPorts, "ports", "p", "", "ports to scan, e.g. 22,80,8000-8100 (default: well-known ports)")
	scanCmd.Flags().StringVarP(&scanOutput, "output", "o", outputAuto, "output format: table, json, auto")
	scanCmd.Flags().Float64("rate-limit", recon.DefaultRateLimit, "maximum probes per second")
	scanCmd.Flags().Duration("timeout", recon.DefaultTimeout, "timeout for each connect, banner read and HTTP request")
	scanCmd.Flags().Int("workers", recon.DefaultMaxWorkers, "maximum concurrent probes")
	scanCmd.Flags().Bool("insecure-tls", false, "skip certificate verification when fingerprinting HTTPS")
	scanCmd.Flags().String("dns-server", "", "resolve targets through this host:port instead of the system resolver")
}

func runScan(cmd *cobra.Command, args []string) error {
	ports, err := parsePorts(scanPorts)
	if err != nil {
		return fmt.Errorf("invalid --ports: %w", err)
	}
	format, err := resolveOutput(scanOutput, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := initLogging(cfg)

	eng, err := newEngine(cfg, logger, metrics.Nop{})
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	results, failed := scanTargets(withProgress(ctx, cmd.ErrOrStderr()), eng, args, ports, cmd.ErrOrStderr(), logger)
	if err := printScanResults(cmd.OutOrStdout(), format, results); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d target(s) failed", failed, len(args))
	}
	return nil
}

// scanTargets scans each target in turn. Failures are reported to errOut and
// counted; the remaining targets still run unless ctx ends.
func scanTargets(ctx context.Context, eng engine, targets []string, ports []int,
	errOut io.Writer, logger *logging.Logger) ([]*recon.ScanResult, int) {
	results := make([]*recon.ScanResult, 0, len(targets))
	failed := 0
	for i, target := range targets {
		if ctx.Err() != nil {
			failed += len(targets) - i
			break
		}
		result, err := eng.ScanTargetPorts(ctx, target, ports)
		if err != nil {
			failed++
			logger.ErrorScan("Scan failed", target, err)
			fmt.Fprintf(errOut, "%s: %v\n", target, err)
			continue
		}
		results = append(results, result)
	}
	return results, failed
}

func printScanResults(w io.Writer, format string, results []*recon.ScanResult) error {
	if format == outputJSON {
		return writeJSON(w, results)
	}
	for _, result := range results {
		if err := renderScanTable(w, result); err != nil {
			return err
		}
	}
	return nil
}

// signalContext cancels on SIGINT or SIGTERM so in-flight probes stop.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
