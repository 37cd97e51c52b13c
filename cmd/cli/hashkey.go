package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/anstrom/reconnoiter/internal/auth"
	"github.com/anstrom/reconnoiter/internal/config"
)

var (
	hashKeyName  string
	hashKeyValue string
)

// hashKeyCmd represents the hashkey command
var hashKeyCmd = &cobra.Command{
	Use:   "hashkey",
	Short: "Generate an API key and the config entry that accepts it",
	Long: `Generate a new API key, or hash an existing one with --key, and print the
api.api_keys entry to paste into the config file. Only the hash is stored in
config; the key itself is shown once.`,
	Example: `  reconnoiter hashkey --name ci
  reconnoiter hashkey --name ops --key rk_existingkeyvalue`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runHashKey(cmd.OutOrStdout(), hashKeyName, hashKeyValue)
	},
}

func init() {
	rootCmd.AddCommand(hashKeyCmd)

	hashKeyCmd.Flags().StringVarP(&hashKeyName, "name", "n", "", "key name, reported in request logs")
	hashKeyCmd.Flags().StringVarP(&hashKeyValue, "key", "k", "", "hash this key instead of generating one")
	_ = hashKeyCmd.MarkFlagRequired("name")
}

func runHashKey(w io.Writer, name, key string) error {
	var generated *auth.GeneratedAPIKey
	if key == "" {
		var err error
		generated, err = auth.GenerateAPIKey(name)
		if err != nil {
			return fmt.Errorf("failed to generate API key: %w", err)
		}
	} else {
		if !auth.IsValidAPIKeyFormat(key) {
			return fmt.Errorf("invalid API key format")
		}
		hash, err := auth.HashAPIKey(key)
		if err != nil {
			return fmt.Errorf("failed to hash API key: %w", err)
		}
		generated = &auth.GeneratedAPIKey{Name: name, Key: key, Hash: hash, KeyPrefix: auth.CreateDisplayPrefix(key)}
	}

	snippet, err := yaml.Marshal(map[string]any{
		"api": map[string]any{
			"api_keys": []config.APIKeyConfig{{Name: generated.Name, Hash: generated.Hash}},
		},
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "# API key for %q (%s). It is not shown again.\n", generated.Name, generated.KeyPrefix)
	fmt.Fprintf(w, "# X-API-Key: %s\n", generated.Key)
	_, err = w.Write(snippet)
	return err
}
