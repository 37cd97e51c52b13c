package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anstrom/reconnoiter/internal/logging"
	"github.com/anstrom/reconnoiter/internal/metrics"
)

var sweepOutput string

// sweepCmd represents the sweep command
var sweepCmd = &cobra.Command{
	Use:   "sweep CIDR",
	Short: "Find live hosts in a network",
	Long: `Probe every usable host address in CIDR and report the ones that answer.

Liveness is checked with the system ping command by default. --method selects
raw ICMP echo, a TCP connect to common ports, or an nmap ping scan instead.`,
	Example: `  reconnoiter sweep 192.168.1.0/24
  reconnoiter sweep 10.0.0.0/28 --method tcp --output json`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return bindFlags(cmd, sweepBindings)
	},
	RunE: runSweep,
}

var sweepBindings = map[string]string{
	"recon.rate_limit":      "rate-limit",
	"recon.timeout":         "timeout",
	"recon.liveness_method": "method",
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().StringVarP(&sweepOutput, "output", "o", outputAuto, "output format: table, json, auto")
	sweepCmd.Flags().String("method", "", "liveness method: exec, icmp, tcp, nmap")
	sweepCmd.Flags().Float64("rate-limit", 0, "maximum pings per second")
	sweepCmd.Flags().Duration("timeout", 0, "timeout for each probe")
}

func runSweep(cmd *cobra.Command, args []string) error {
	format, err := resolveOutput(sweepOutput, cmd.OutOrStdout())
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

	alive, err := eng.PingSweep(withProgress(ctx, cmd.ErrOrStderr()), args[0])
	if err != nil {
		logging.ErrorSweep("Sweep failed", args[0], err)
		return fmt.Errorf("sweep of %s failed: %w", args[0], err)
	}

	if alive == nil {
		alive = []string{}
	}
	if format == outputJSON {
		return writeJSON(cmd.OutOrStdout(), alive)
	}
	return renderList(cmd.OutOrStdout(), "Live Host", alive)
}
