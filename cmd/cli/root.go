// Package cli provides command-line interface commands for reconnoiter.
// This package implements the Cobra-based CLI structure with commands for
// port scanning, subdomain enumeration, host sweeps and the API server.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/anstrom/reconnoiter/internal/config"
	"github.com/anstrom/reconnoiter/internal/logging"
)

// envPrefix namespaces environment overrides, e.g. RECONNOITER_RECON_RATE_LIMIT.
const envPrefix = "RECONNOITER"

var (
	cfgFile string
	verbose bool
)

// Build information - these will be set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "reconnoiter",
	Short: "Network reconnaissance toolkit",
	Long: `Reconnoiter discovers what a host exposes: open TCP ports, service banners
and web server fingerprints. It also enumerates subdomains from a wordlist and
sweeps networks for live hosts, all under one shared probe rate limit.

Run it once from the command line, or as an API server with scheduled jobs.`,
	Version:       getVersion(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is ./reconnoiter.yaml or $HOME/.config/reconnoiter/reconnoiter.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print progress events and debug logs")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text, json, auto")

	bindFlag(rootCmd, "logging.level", "log-level")
	bindFlag(rootCmd, "logging.format", "log-format")
}

// bindFlag ties a persistent or local flag to a viper key so the flag,
// RECONNOITER_* variables and the config file share one precedence chain.
func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := bindFlags(cmd, map[string]string{key: flag}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

// bindFlags binds several keys at once. Commands sharing a viper key call it
// from PreRunE, so the running command's flag is the one bound.
func bindFlags(cmd *cobra.Command, bindings map[string]string) error {
	for key, flag := range bindings {
		f := lookupFlag(cmd, flag)
		if f == nil {
			return fmt.Errorf("unknown flag %q", flag)
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind %s flag: %w", flag, err)
		}
	}
	return nil
}

// lookupFlag finds a local, persistent or inherited flag by name.
func lookupFlag(cmd *cobra.Command, name string) *pflag.Flag {
	if f := cmd.Flags().Lookup(name); f != nil {
		return f
	}
	if f := cmd.PersistentFlags().Lookup(name); f != nil {
		return f
	}
	return cmd.InheritedFlags().Lookup(name)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home + "/.config/reconnoiter")
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName("reconnoiter")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig loads the config file viper found, then applies flag and
// environment overrides for the keys the CLI exposes.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFilePath())
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// configFilePath returns the file viper resolved, or an explicit --config.
func configFilePath() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return cfgFile
}

// applyOverrides copies values set by flag or RECONNOITER_* variable onto cfg.
func applyOverrides(cfg *config.Config) {
	if v := viper.GetString("logging.level"); v != "" {
		cfg.Logging.Level = v
	}
	if v := viper.GetString("logging.format"); v != "" {
		cfg.Logging.Format = v
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	if viper.IsSet("recon.rate_limit") {
		cfg.Recon.RateLimit = viper.GetFloat64("recon.rate_limit")
	}
	if viper.IsSet("recon.timeout") {
		cfg.Recon.Timeout = viper.GetDuration("recon.timeout")
	}
	if viper.IsSet("recon.max_workers") {
		cfg.Recon.MaxWorkers = viper.GetInt("recon.max_workers")
	}
	if viper.IsSet("recon.insecure_tls") {
		cfg.Recon.InsecureTLS = viper.GetBool("recon.insecure_tls")
	}
	if v := viper.GetString("recon.dns_server"); v != "" {
		cfg.Recon.DNSServer = v
	}
	if v := viper.GetString("recon.liveness_method"); v != "" {
		cfg.Recon.LivenessMethod = v
	}

	if v := viper.GetString("api.listen_addr"); v != "" {
		cfg.API.ListenAddr = v
	}
	if viper.IsSet("api.port") {
		cfg.API.Port = viper.GetInt("api.port")
	}
}

// initLogging builds the process logger from cfg and installs it as default.
func initLogging(cfg *config.Config) *logging.Logger {
	logConfig := logging.Config{
		Level:     logging.LogLevel(cfg.Logging.Level),
		Format:    logging.LogFormat(cfg.Logging.Format),
		Output:    cfg.Logging.Output,
		AddSource: cfg.Logging.Level == "debug",
	}

	logger, err := logging.New(logConfig)
	if err != nil {
		logger = logging.NewDefault()
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}
	logging.SetDefault(logger)
	return logger
}

// getVersion returns the version string.
func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the version information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = getVersion()
}
