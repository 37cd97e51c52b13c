package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anstrom/reconnoiter/internal/metrics"
)

var (
	subdomainsWordlist string
	subdomainsOutput   string
)

// subdomainsCmd represents the subdomains command
var subdomainsCmd = &cobra.Command{
	Use:   "subdomains DOMAIN",
	Short: "Enumerate subdomains of a domain from a wordlist",
	Long: `Resolve <label>.DOMAIN for every label in the wordlist and report the
names that resolve. Without --wordlist a built-in list of common labels is used.`,
	Example: `  reconnoiter subdomains example.com
  reconnoiter subdomains example.com --wordlist labels.txt --output json
  reconnoiter subdomains example.com --dns-server 1.1.1.1:53`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return bindFlags(cmd, subdomainsBindings)
	},
	RunE: runSubdomains,
}

var subdomainsBindings = map[string]string{
	"recon.rate_limit": "rate-limit",
	"recon.timeout":    "timeout",
	"recon.dns_server": "dns-server",
}

func init() {
	rootCmd.AddCommand(subdomainsCmd)

	subdomainsCmd.Flags().StringVarP(&subdomainsWordlist, "wordlist", "w", "", "file with one label per line")
	subdomainsCmd.Flags().StringVarP(&subdomainsOutput, "output", "o", outputAuto, "output format: table, json, auto")
	subdomainsCmd.Flags().Float64("rate-limit", 0, "maximum lookups per second")
	subdomainsCmd.Flags().Duration("timeout", 0, "timeout for each lookup")
	subdomainsCmd.Flags().String("dns-server", "", "resolve through this host:port instead of the system resolver")
}

func runSubdomains(cmd *cobra.Command, args []string) error {
	wordlist, err := readWordlist(subdomainsWordlist)
	if err != nil {
		return err
	}
	format, err := resolveOutput(subdomainsOutput, cmd.OutOrStdout())
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

	found, err := eng.DiscoverSubdomains(withProgress(ctx, cmd.ErrOrStderr()), args[0], wordlist)
	if err != nil {
		return fmt.Errorf("subdomain discovery for %s failed: %w", args[0], err)
	}

	if found == nil {
		found = []string{}
	}
	if format == outputJSON {
		return writeJSON(cmd.OutOrStdout(), found)
	}
	return renderList(cmd.OutOrStdout(), "Subdomain", found)
}
