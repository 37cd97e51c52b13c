package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/anstrom/reconnoiter/internal/api"
	apihandlers "github.com/anstrom/reconnoiter/internal/api/handlers"
	"github.com/anstrom/reconnoiter/internal/config"
	"github.com/anstrom/reconnoiter/internal/logging"
	"github.com/anstrom/reconnoiter/internal/metrics"
	"github.com/anstrom/reconnoiter/internal/recon"
	"github.com/anstrom/reconnoiter/internal/scheduler"
)

const (
	systemMetricsInterval = 15 * time.Second
	resolverCheckHost     = "localhost"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server and scheduled jobs",
	Long: `Run the HTTP API in the foreground together with any jobs listed under
schedules in the config file. All requests and jobs share one scanner, so the
probe rate limit applies to the whole process.

The server stops on SIGINT or SIGTERM, finishing in-flight requests within
api.shutdown_timeout.`,
	Example: `  reconnoiter serve
  reconnoiter serve --config /etc/reconnoiter.yaml
  reconnoiter serve --listen 0.0.0.0 --port 9090`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return bindFlags(cmd, serveBindings)
	},
	RunE: runServe,
}

var serveBindings = map[string]string{
	"api.listen_addr":  "listen",
	"api.port":         "port",
	"recon.rate_limit": "rate-limit",
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("listen", "", "address to listen on")
	serveCmd.Flags().Int("port", 0, "port to listen on")
	serveCmd.Flags().Float64("rate-limit", 0, "maximum probes per second across all requests")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := initLogging(cfg)

	ctx, stop := signalContext(cmd)
	defer stop()

	return serve(ctx, cfg, logger)
}

// serve wires the scanner, scheduler and API server and blocks until ctx ends.
func serve(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	var (
		recorder   metrics.Recorder = metrics.Nop{}
		exposition http.Handler
	)
	if cfg.Metrics.Enabled {
		pm := metrics.NewPrometheusMetrics()
		go pm.StartPeriodicUpdates(ctx, systemMetricsInterval)
		recorder = pm
		exposition = pm.Handler()
	}

	scanner, err := recon.New(cfg.Recon,
		recon.WithLogger(logger.WithComponent("recon")),
		recon.WithMetrics(recorder))
	if err != nil {
		return fmt.Errorf("failed to create scanner: %w", err)
	}

	sched, err := scheduler.New(scanner, cfg.Schedules,
		scheduler.WithMetrics(recorder),
		scheduler.WithLogger(logger.WithComponent("scheduler")))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	server, err := api.New(cfg, scanner, sched,
		api.WithMetrics(recorder, exposition),
		api.WithLogger(logger.WithComponent("api")),
		api.WithBuildInfo(apihandlers.BuildInfo{Version: version, Commit: commit, BuildTime: buildTime}),
		api.WithHealthCheck("resolver", resolverCheck(cfg.Recon)))
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	serveErr := server.Start(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil {
		logger.WithError(err).Warn("Scheduler did not stop cleanly")
	}

	return serveErr
}

// resolverCheck reports whether the configured resolver answers at all.
func resolverCheck(cfg recon.Config) apihandlers.HealthCheck {
	var resolver recon.Resolver = recon.NewSystemResolver()
	if cfg.DNSServer != "" {
		resolver = recon.NewDNSResolver(cfg.DNSServer, cfg.Timeout)
	}
	return func(ctx context.Context) error {
		_, err := resolver.LookupHost(ctx, resolverCheckHost)
		return err
	}
}
